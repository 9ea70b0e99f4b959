package utils

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeFilename removes characters that are invalid in file names or would
// break a quoted Content-Disposition value.
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "")
	return strings.TrimRight(sanitized, " .")
}

// FilenameFromURL returns the sanitised last path segment of rawURL, or
// fallback when there is nothing usable.
func FilenameFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return fallback
	}
	if name := SanitizeFilename(base); name != "" {
		return name
	}
	return fallback
}
