package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"

	"moviebox/internal/clients/metadata"
	"moviebox/internal/config"
	"moviebox/internal/database"
	"moviebox/internal/models"
	"moviebox/internal/utils"
)

const (
	homepageSliceSize = 6
	defaultSortBy     = "popularity.desc"
)

// infoAppend lists the extra blocks requested with a detail lookup.
var infoAppend = []string{"credits", "images", "videos"}

type Manager struct {
	config         *config.Config
	client         metadata.Client
	watchlist      *database.WatchlistRepository
	logger         *utils.Logger
	scheduler      *cron.Cron
	downloadClient *http.Client
	startedAt      time.Time

	healthMu sync.RWMutex
	health   UpstreamHealth
}

func NewManager(cfg *config.Config, client metadata.Client, logger *utils.Logger) *Manager {
	return &Manager{
		config:         cfg,
		client:         client,
		watchlist:      database.NewWatchlistRepository(),
		logger:         logger,
		scheduler:      cron.New(),
		downloadClient: &http.Client{},
		startedAt:      time.Now(),
	}
}

// Search runs the movie and tv searches concurrently and returns movie hits
// first, each group in upstream order.
func (m *Manager) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	var movies, shows *metadata.SearchPage

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		movies, err = m.client.SearchMovies(ctx, query)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		shows, err = m.client.SearchTV(ctx, query)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := make([]models.SearchResult, 0, len(movies.Results)+len(shows.Results))
	for _, r := range movies.Results {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		results = append(results, m.searchResult(models.MediaKindMovie, r, title, r.ReleaseDate))
	}
	for _, r := range shows.Results {
		results = append(results, m.searchResult(models.MediaKindTV, r, r.Name, r.FirstAirDate))
	}
	return results, nil
}

func (m *Manager) searchResult(kind models.MediaKind, r metadata.SearchItem, title, date string) models.SearchResult {
	var overview *string
	if r.Overview != "" {
		o := r.Overview
		overview = &o
	}
	id := strconv.FormatInt(r.ID, 10)
	return models.SearchResult{
		ID:          string(kind) + "_" + id,
		TMDBID:      r.ID,
		Type:        kind,
		Title:       title,
		Year:        yearOf(date),
		PosterURL:   metadata.BuildImageURL(m.config.Metadata.ImageBaseURL, metadata.PosterSize, r.PosterPath),
		Overview:    overview,
		VoteAverage: r.VoteAverage,
	}
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// Info looks up one title. A movie id that fails upstream is retried once as
// a tv id; tv ids never fall back.
func (m *Manager) Info(ctx context.Context, raw string) (*models.DetailInfo, error) {
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}

	info, err := m.client.Details(ctx, id.Kind, id.NativeID, infoAppend...)
	if err != nil && id.Kind == models.MediaKindMovie {
		m.logger.Debug("info: movie lookup failed for", raw, "- trying tv:", err)
		id = id.WithKind(models.MediaKindTV)
		info, err = m.client.Details(ctx, id.Kind, id.NativeID, infoAppend...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, raw, err)
	}

	m.rewriteImages(info)
	return &models.DetailInfo{
		ID:     raw,
		TMDBID: id.NativeID,
		Type:   id.Kind,
		Info:   info,
	}, nil
}

func (m *Manager) rewriteImages(item map[string]any) {
	if item == nil {
		return
	}
	base := m.config.Metadata.ImageBaseURL
	item["poster_path"] = metadata.BuildImageURL(base, metadata.PosterSize, stringField(item, "poster_path"))
	item["backdrop_path"] = metadata.BuildImageURL(base, metadata.BackdropSize, stringField(item, "backdrop_path"))
}

func (m *Manager) rewritePosters(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	base := m.config.Metadata.ImageBaseURL
	for _, item := range items {
		item["poster_path"] = metadata.BuildImageURL(base, metadata.PosterSize, stringField(item, "poster_path"))
	}
	return items
}

func stringField(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return s
}

// Sources bundles videos, watch providers and, for a tv episode, the episode
// details. A failed episode lookup leaves EpisodeInfo nil.
func (m *Manager) Sources(ctx context.Context, raw, season, episode string) (*models.SourceBundle, error) {
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}

	bundle := &models.SourceBundle{
		ID:     raw,
		TMDBID: id.NativeID,
		Type:   id.Kind,
	}
	if season != "" {
		bundle.Season = &season
	}
	if episode != "" {
		bundle.Episode = &episode
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		bundle.Videos, err = m.client.Videos(ctx, id.Kind, id.NativeID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		bundle.Providers, err = m.client.WatchProviders(ctx, id.Kind, id.NativeID)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("sources for %s: %w", raw, err)
	}
	if bundle.Videos == nil {
		bundle.Videos = []models.Video{}
	}
	if bundle.Providers == nil {
		bundle.Providers = map[string]any{}
	}

	if id.Kind == models.MediaKindTV && season != "" && episode != "" {
		info, err := m.client.EpisodeDetails(ctx, id.NativeID, season, episode)
		if err != nil {
			m.logger.Debug("sources: episode lookup failed for", raw, season, episode, ":", err)
		} else {
			bundle.EpisodeInfo = info
		}
	}

	return bundle, nil
}

func (m *Manager) Homepage(ctx context.Context) (*models.Homepage, error) {
	var popular, nowPlaying, tvPopular *metadata.ListPage

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		popular, err = m.client.List(ctx, "movie/popular", 1)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		nowPlaying, err = m.client.List(ctx, "movie/now_playing", 1)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		tvPopular, err = m.client.List(ctx, "tv/popular", 1)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("homepage: %w", err)
	}

	return &models.Homepage{
		Featured:   m.rewritePosters(head(popular.Results, homepageSliceSize)),
		NowPlaying: m.rewritePosters(head(nowPlaying.Results, homepageSliceSize)),
		TVPopular:  m.rewritePosters(head(tvPopular.Results, homepageSliceSize)),
	}, nil
}

func head(items []map[string]any, n int) []map[string]any {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// Trending returns trending titles of every kind for the "day" or "week"
// window; an empty window means "day".
func (m *Manager) Trending(ctx context.Context, window string) ([]map[string]any, error) {
	switch window {
	case "":
		window = "day"
	case "day", "week":
	default:
		return nil, fmt.Errorf("%w: trending window must be day or week", ErrInvalidInput)
	}

	list, err := m.client.List(ctx, "trending/all/"+window, 0)
	if err != nil {
		return nil, fmt.Errorf("trending %s: %w", window, err)
	}
	return m.rewritePosters(list.Results), nil
}

func (m *Manager) Genres(ctx context.Context, mediaType string) (models.MediaKind, []models.Genre, error) {
	kind, err := models.ParseMediaKind(mediaType)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	genres, err := m.client.Genres(ctx, kind)
	if err != nil {
		return "", nil, fmt.Errorf("genres: %w", err)
	}
	return kind, genres, nil
}

func (m *Manager) Discover(ctx context.Context, mediaType, genre, page, sortBy string) (*models.DiscoverPage, error) {
	kind, err := models.ParseMediaKind(mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	pageNum := 1
	if page = strings.TrimSpace(page); page != "" {
		pageNum, err = strconv.Atoi(page)
		if err != nil || pageNum < 1 {
			return nil, fmt.Errorf("%w: page must be a positive integer", ErrInvalidInput)
		}
	}
	if sortBy = strings.TrimSpace(sortBy); sortBy == "" {
		sortBy = defaultSortBy
	}

	list, err := m.client.Discover(ctx, kind, metadata.DiscoverOptions{
		Page:   pageNum,
		SortBy: sortBy,
		Genre:  strings.TrimSpace(genre),
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", kind, err)
	}

	return &models.DiscoverPage{
		Type:         kind,
		Page:         list.Page,
		TotalPages:   list.TotalPages,
		TotalResults: list.TotalResults,
		Results:      m.rewritePosters(list.Results),
	}, nil
}

// Seasons returns the season summaries of a series. Only tv ids are accepted.
func (m *Manager) Seasons(ctx context.Context, raw string) (models.CompositeID, []any, error) {
	id, err := parseTVID(raw)
	if err != nil {
		return id, nil, err
	}

	details, err := m.client.Details(ctx, models.MediaKindTV, id.NativeID)
	if err != nil {
		return id, nil, upstreamLookupError(raw, err)
	}
	return id, listField(details, "seasons"), nil
}

func (m *Manager) Episodes(ctx context.Context, raw, season string) (models.CompositeID, int, []any, error) {
	id, err := parseTVID(raw)
	if err != nil {
		return id, 0, nil, err
	}
	seasonNum, err := strconv.Atoi(season)
	if err != nil || seasonNum < 0 {
		return id, 0, nil, fmt.Errorf("%w: season must be a non-negative integer", ErrInvalidInput)
	}

	details, err := m.client.SeasonDetails(ctx, id.NativeID, seasonNum)
	if err != nil {
		return id, seasonNum, nil, upstreamLookupError(raw, err)
	}
	return id, seasonNum, listField(details, "episodes"), nil
}

func listField(item map[string]any, key string) []any {
	if list, ok := item[key].([]any); ok {
		return list
	}
	return []any{}
}

func upstreamLookupError(raw string, err error) error {
	if metadata.IsNotFound(err) {
		return fmt.Errorf("%w: %s: %v", ErrNotFound, raw, err)
	}
	return fmt.Errorf("lookup %s: %w", raw, err)
}

func (m *Manager) Watchlist(userID string) []string {
	return m.watchlist.Get(userID)
}

func (m *Manager) AddToWatchlist(userID, itemID string) []string {
	items := m.watchlist.Add(userID, itemID)
	m.logger.Debug("watchlist:", userID, "now has", len(items), "items")
	return items
}

func parseID(raw string) (models.CompositeID, error) {
	id, err := models.ParseCompositeID(raw)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return id, nil
}

func parseTVID(raw string) (models.CompositeID, error) {
	id, err := parseID(raw)
	if err != nil {
		return id, err
	}
	if id.Kind != models.MediaKindTV {
		return id, fmt.Errorf("%w: %q is not a tv id", ErrInvalidInput, raw)
	}
	return id, nil
}

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
