package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"unicode/utf8"
)

// DecodeDownloadURL percent-decodes one path segment. Malformed escapes and
// escapes that do not decode to UTF-8 are rejected.
func DecodeDownloadURL(encoded string) (string, error) {
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !utf8.ValidString(decoded) {
		return "", fmt.Errorf("%w: encoded url is not valid UTF-8", ErrInvalidInput)
	}
	return decoded, nil
}

// OpenDownload starts a GET for target and returns the live response for the
// caller to relay. The caller owns resp.Body.
func (m *Manager) OpenDownload(ctx context.Context, target string) (*http.Response, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: download target must be an absolute http(s) url", ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", m.config.Download.UserAgent)

	resp, err := m.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u.Host, err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("download %s failed with status: %d", u.Host, resp.StatusCode)
	}

	m.logger.Info("Proxying download from", u.Host)
	return resp, nil
}
