package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"moviebox/internal/models"
)

const (
	PosterSize   = "w500"
	BackdropSize = "original"
)

// Client is the interface to the upstream metadata provider.
type Client interface {
	SearchMovies(ctx context.Context, query string) (*SearchPage, error)
	SearchTV(ctx context.Context, query string) (*SearchPage, error)
	Details(ctx context.Context, kind models.MediaKind, id string, appendToResponse ...string) (map[string]any, error)
	Videos(ctx context.Context, kind models.MediaKind, id string) ([]models.Video, error)
	WatchProviders(ctx context.Context, kind models.MediaKind, id string) (map[string]any, error)
	SeasonDetails(ctx context.Context, id string, season int) (map[string]any, error)
	EpisodeDetails(ctx context.Context, id, season, episode string) (map[string]any, error)
	List(ctx context.Context, path string, page int) (*ListPage, error)
	Genres(ctx context.Context, kind models.MediaKind) ([]models.Genre, error)
	Discover(ctx context.Context, kind models.MediaKind, opts DiscoverOptions) (*ListPage, error)
	Ping(ctx context.Context) error
}

// SearchItem covers both movie and tv search hits; movies fill Title and
// ReleaseDate, series fill Name and FirstAirDate.
type SearchItem struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	PosterPath   string   `json:"poster_path"`
	Overview     string   `json:"overview"`
	VoteAverage  *float64 `json:"vote_average"`
}

type SearchPage struct {
	Page         int          `json:"page"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
	Results      []SearchItem `json:"results"`
}

// ListPage is a page of raw list entries (popular, trending, discover).
type ListPage struct {
	Page         int              `json:"page"`
	TotalPages   int              `json:"total_pages"`
	TotalResults int              `json:"total_results"`
	Results      []map[string]any `json:"results"`
}

type DiscoverOptions struct {
	Page   int
	SortBy string
	Genre  string
}

// APIError is returned for any non-2xx upstream response.
type APIError struct {
	StatusCode int
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tmdb request %s failed with status: %d", e.Path, e.StatusCode)
}

// IsNotFound reports whether err carries an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// BuildImageURL joins an image path fragment onto the image CDN. It returns
// nil when the upstream had no image.
func BuildImageURL(base, size, path string) *string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := strings.TrimRight(base, "/") + "/" + size + path
	return &u
}
