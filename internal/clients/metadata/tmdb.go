package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"
	"golang.org/x/net/html/charset"

	"moviebox/internal/metrics"
	"moviebox/internal/models"
	"moviebox/internal/utils"
)

type TMDBClient struct {
	baseURL       string
	apiKey        string
	language      string
	retryAttempts uint
	retryDelay    time.Duration
	httpClient    *http.Client
	logger        *utils.Logger
}

type TMDBOptions struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
	// RetryAttempts counts total attempts; 1 disables retries.
	RetryAttempts uint
	RetryDelay    time.Duration
	HTTPClient    *http.Client
}

var _ Client = (*TMDBClient)(nil)

func NewTMDBClient(opts TMDBOptions, logger *utils.Logger) *TMDBClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &TMDBClient{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        strings.TrimSpace(opts.APIKey),
		language:      opts.Language,
		retryAttempts: attempts,
		retryDelay:    opts.RetryDelay,
		httpClient:    httpClient,
		logger:        logger,
	}
}

func (t *TMDBClient) SearchMovies(ctx context.Context, query string) (*SearchPage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	params.Set("language", t.language)

	var page SearchPage
	if err := t.get(ctx, "search/movie", "/search/movie", params, &page); err != nil {
		return nil, fmt.Errorf("failed to search TMDB movies: %w", err)
	}
	return &page, nil
}

func (t *TMDBClient) SearchTV(ctx context.Context, query string) (*SearchPage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("language", t.language)

	var page SearchPage
	if err := t.get(ctx, "search/tv", "/search/tv", params, &page); err != nil {
		return nil, fmt.Errorf("failed to search TMDB tv: %w", err)
	}
	return &page, nil
}

func (t *TMDBClient) Details(ctx context.Context, kind models.MediaKind, id string, appendToResponse ...string) (map[string]any, error) {
	params := url.Values{}
	params.Set("language", t.language)
	if len(appendToResponse) > 0 {
		params.Set("append_to_response", strings.Join(appendToResponse, ","))
	}

	var details map[string]any
	path := "/" + string(kind) + "/" + url.PathEscape(id)
	if err := t.get(ctx, string(kind)+"/details", path, params, &details); err != nil {
		return nil, fmt.Errorf("failed to fetch %s details: %w", kind, err)
	}
	return details, nil
}

func (t *TMDBClient) Videos(ctx context.Context, kind models.MediaKind, id string) ([]models.Video, error) {
	params := url.Values{}
	params.Set("language", t.language)

	var resp struct {
		Results []models.Video `json:"results"`
	}
	path := "/" + string(kind) + "/" + url.PathEscape(id) + "/videos"
	if err := t.get(ctx, string(kind)+"/videos", path, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s videos: %w", kind, err)
	}
	if resp.Results == nil {
		return []models.Video{}, nil
	}
	return resp.Results, nil
}

func (t *TMDBClient) WatchProviders(ctx context.Context, kind models.MediaKind, id string) (map[string]any, error) {
	var resp struct {
		Results map[string]any `json:"results"`
	}
	path := "/" + string(kind) + "/" + url.PathEscape(id) + "/watch/providers"
	if err := t.get(ctx, string(kind)+"/watch/providers", path, url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s watch providers: %w", kind, err)
	}
	if resp.Results == nil {
		return map[string]any{}, nil
	}
	return resp.Results, nil
}

func (t *TMDBClient) SeasonDetails(ctx context.Context, id string, season int) (map[string]any, error) {
	params := url.Values{}
	params.Set("language", t.language)

	var details map[string]any
	path := fmt.Sprintf("/tv/%s/season/%d", url.PathEscape(id), season)
	if err := t.get(ctx, "tv/season", path, params, &details); err != nil {
		return nil, fmt.Errorf("failed to fetch season %d: %w", season, err)
	}
	return details, nil
}

func (t *TMDBClient) EpisodeDetails(ctx context.Context, id, season, episode string) (map[string]any, error) {
	params := url.Values{}
	params.Set("language", t.language)
	params.Set("append_to_response", "credits")

	var details map[string]any
	path := fmt.Sprintf("/tv/%s/season/%s/episode/%s", url.PathEscape(id), url.PathEscape(season), url.PathEscape(episode))
	if err := t.get(ctx, "tv/season/episode", path, params, &details); err != nil {
		return nil, fmt.Errorf("failed to fetch episode S%sE%s: %w", season, episode, err)
	}
	return details, nil
}

// List fetches a fixed list endpoint such as "movie/popular" or
// "trending/all/day".
func (t *TMDBClient) List(ctx context.Context, path string, page int) (*ListPage, error) {
	params := url.Values{}
	params.Set("language", t.language)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}

	path = strings.Trim(path, "/")
	var list ListPage
	if err := t.get(ctx, path, "/"+path, params, &list); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	return &list, nil
}

func (t *TMDBClient) Genres(ctx context.Context, kind models.MediaKind) ([]models.Genre, error) {
	params := url.Values{}
	params.Set("language", t.language)

	var resp struct {
		Genres []models.Genre `json:"genres"`
	}
	if err := t.get(ctx, "genre/"+string(kind)+"/list", "/genre/"+string(kind)+"/list", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s genres: %w", kind, err)
	}
	if resp.Genres == nil {
		return []models.Genre{}, nil
	}
	return resp.Genres, nil
}

func (t *TMDBClient) Discover(ctx context.Context, kind models.MediaKind, opts DiscoverOptions) (*ListPage, error) {
	params := url.Values{}
	params.Set("language", t.language)
	if opts.SortBy != "" {
		params.Set("sort_by", opts.SortBy)
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Genre != "" {
		params.Set("with_genres", opts.Genre)
	}

	var list ListPage
	if err := t.get(ctx, "discover/"+string(kind), "/discover/"+string(kind), params, &list); err != nil {
		return nil, fmt.Errorf("failed to discover %s: %w", kind, err)
	}
	return &list, nil
}

// Ping checks that the upstream is reachable and accepts the API key.
func (t *TMDBClient) Ping(ctx context.Context) error {
	var discard map[string]any
	return t.get(ctx, "configuration", "/configuration", url.Values{}, &discard)
}

// get performs one logical GET. Retries follow the configured attempt count
// and only apply to transport errors, 429 and 5xx responses.
func (t *TMDBClient) get(ctx context.Context, endpoint, path string, params url.Values, target any) error {
	params.Set("api_key", t.apiKey)
	fullURL := t.baseURL + path + "?" + params.Encode()

	start := time.Now()
	err := retry.Do(
		func() error {
			return t.do(ctx, path, fullURL, target)
		},
		retry.Context(ctx),
		retry.Attempts(t.retryAttempts),
		retry.Delay(t.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Warn(fmt.Sprintf("[tmdb] retrying %s (attempt %d/%d): %v", path, n+2, t.retryAttempts, err))
		}),
	)
	metrics.RecordUpstream(endpoint, err, time.Since(start))
	if err != nil {
		t.logger.Debug("[tmdb]", path, "failed:", err)
	}
	return err
}

func (t *TMDBClient) do(ctx context.Context, path, fullURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create tmdb request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// *url.Error embeds the full URL, api key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("tmdb request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Path: path}
	}

	body, err := decodedBody(resp)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("unsupported tmdb response charset for %s: %w", path, err))
	}
	if err := json.NewDecoder(body).Decode(target); err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to decode tmdb response for %s: %w", path, err))
	}
	return nil
}

// decodedBody converts non UTF-8 payloads using the declared charset.
func decodedBody(resp *http.Response) (io.Reader, error) {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return resp.Body, nil
	}
	cs := strings.TrimSpace(params["charset"])
	if cs == "" || strings.EqualFold(cs, "utf-8") || strings.EqualFold(cs, "utf8") {
		return resp.Body, nil
	}
	return charset.NewReaderLabel(cs, resp.Body)
}

func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
