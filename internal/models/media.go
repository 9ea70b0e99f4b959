package models

import (
	"errors"
	"fmt"
	"strings"
)

type MediaKind string

const (
	MediaKindMovie MediaKind = "movie"
	MediaKindTV    MediaKind = "tv"
)

// ParseMediaKind accepts "movie" or "tv"; an empty string defaults to movie.
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(MediaKindMovie):
		return MediaKindMovie, nil
	case string(MediaKindTV):
		return MediaKindTV, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

var ErrEmptyID = errors.New("empty media id")

// CompositeID is the caller-facing identifier "<kind>_<tmdbId>".
type CompositeID struct {
	Raw      string
	Kind     MediaKind
	NativeID string
}

// ParseCompositeID splits raw on its kind prefix. Input without a recognised
// prefix is treated as a bare movie id.
func ParseCompositeID(raw string) (CompositeID, error) {
	if raw == "" {
		return CompositeID{}, ErrEmptyID
	}

	id := CompositeID{Raw: raw, Kind: MediaKindMovie, NativeID: raw}
	for _, kind := range []MediaKind{MediaKindMovie, MediaKindTV} {
		if rest, ok := strings.CutPrefix(raw, string(kind)+"_"); ok {
			id.Kind = kind
			id.NativeID = rest
			break
		}
	}

	if id.NativeID == "" {
		return CompositeID{}, ErrEmptyID
	}
	return id, nil
}

func (c CompositeID) String() string {
	return string(c.Kind) + "_" + c.NativeID
}

// WithKind returns the same native id under another collection.
func (c CompositeID) WithKind(kind MediaKind) CompositeID {
	c.Kind = kind
	return c
}

type SearchResult struct {
	ID          string    `json:"id"`
	TMDBID      int64     `json:"tmdb_id"`
	Type        MediaKind `json:"type"`
	Title       string    `json:"title"`
	Year        string    `json:"year"`
	PosterURL   *string   `json:"poster_url"`
	Overview    *string   `json:"overview"`
	VoteAverage *float64  `json:"vote_average"`
}

type DetailInfo struct {
	ID     string         `json:"id"`
	TMDBID string         `json:"tmdb_id"`
	Type   MediaKind      `json:"type"`
	Info   map[string]any `json:"info"`
}

type SourceBundle struct {
	ID          string         `json:"id"`
	TMDBID      string         `json:"tmdb_id"`
	Type        MediaKind      `json:"type"`
	Season      *string        `json:"season"`
	Episode     *string        `json:"episode"`
	Videos      []Video        `json:"videos"`
	Providers   map[string]any `json:"providers"`
	EpisodeInfo map[string]any `json:"episode_info"`
}

// Video is one entry of the upstream videos list (trailers, teasers, clips).
type Video struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Site        string `json:"site"`
	Type        string `json:"type"`
	Size        int    `json:"size,omitempty"`
	Official    bool   `json:"official"`
	ISO639_1    string `json:"iso_639_1,omitempty"`
	ISO3166_1   string `json:"iso_3166_1,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Homepage struct {
	Featured   []map[string]any `json:"featured"`
	NowPlaying []map[string]any `json:"now_playing"`
	TVPopular  []map[string]any `json:"tv_popular"`
}

type DiscoverPage struct {
	Type         MediaKind        `json:"type"`
	Page         int              `json:"page"`
	TotalPages   int              `json:"total_pages"`
	TotalResults int              `json:"total_results"`
	Results      []map[string]any `json:"results"`
}

type Embed struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	EmbedURL  string `json:"embed_url"`
	EmbedHTML string `json:"embed_html"`
}

type WatchlistEntry struct {
	UserID string   `json:"userId"`
	Items  []string `json:"items"`
}
