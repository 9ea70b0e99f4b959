package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviebox/internal/clients/metadata"
	"moviebox/internal/config"
	"moviebox/internal/models"
	"moviebox/internal/utils"
)

// fakeClient records calls and answers from canned fields.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	movies    *metadata.SearchPage
	shows     *metadata.SearchPage
	searchErr error

	details    map[models.MediaKind]map[string]any
	detailsErr map[models.MediaKind]error

	videos       []models.Video
	videosErr    error
	providers    map[string]any
	providersErr error
	episode      map[string]any
	episodeErr   error
	season       map[string]any
	seasonErr    error

	lists   map[string]*metadata.ListPage
	listErr error

	genres       []models.Genre
	discover     *metadata.ListPage
	lastDiscover metadata.DiscoverOptions
	pingErr      error
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) SearchMovies(_ context.Context, query string) (*metadata.SearchPage, error) {
	f.record("search/movie:" + query)
	return f.movies, f.searchErr
}

func (f *fakeClient) SearchTV(_ context.Context, query string) (*metadata.SearchPage, error) {
	f.record("search/tv:" + query)
	return f.shows, f.searchErr
}

func (f *fakeClient) Details(_ context.Context, kind models.MediaKind, id string, _ ...string) (map[string]any, error) {
	f.record(fmt.Sprintf("%s/%s", kind, id))
	if err := f.detailsErr[kind]; err != nil {
		return nil, err
	}
	if d, ok := f.details[kind]; ok {
		out := make(map[string]any, len(d))
		for k, v := range d {
			out[k] = v
		}
		return out, nil
	}
	return nil, &metadata.APIError{StatusCode: http.StatusNotFound, Path: "/" + string(kind) + "/" + id}
}

func (f *fakeClient) Videos(_ context.Context, kind models.MediaKind, id string) ([]models.Video, error) {
	f.record(fmt.Sprintf("%s/%s/videos", kind, id))
	return f.videos, f.videosErr
}

func (f *fakeClient) WatchProviders(_ context.Context, kind models.MediaKind, id string) (map[string]any, error) {
	f.record(fmt.Sprintf("%s/%s/watch/providers", kind, id))
	return f.providers, f.providersErr
}

func (f *fakeClient) SeasonDetails(_ context.Context, id string, season int) (map[string]any, error) {
	f.record(fmt.Sprintf("tv/%s/season/%d", id, season))
	return f.season, f.seasonErr
}

func (f *fakeClient) EpisodeDetails(_ context.Context, id, season, episode string) (map[string]any, error) {
	f.record(fmt.Sprintf("tv/%s/season/%s/episode/%s", id, season, episode))
	return f.episode, f.episodeErr
}

func (f *fakeClient) List(_ context.Context, path string, _ int) (*metadata.ListPage, error) {
	f.record(path)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if l, ok := f.lists[path]; ok {
		return l, nil
	}
	return &metadata.ListPage{}, nil
}

func (f *fakeClient) Genres(_ context.Context, kind models.MediaKind) ([]models.Genre, error) {
	f.record("genre/" + string(kind))
	return f.genres, nil
}

func (f *fakeClient) Discover(_ context.Context, kind models.MediaKind, opts metadata.DiscoverOptions) (*metadata.ListPage, error) {
	f.record("discover/" + string(kind))
	f.lastDiscover = opts
	return f.discover, nil
}

func (f *fakeClient) Ping(context.Context) error {
	f.record("configuration")
	return f.pingErr
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Metadata.ImageBaseURL = "https://image.tmdb.org/t/p"
	cfg.Metadata.Language = "fr-FR"
	cfg.Metadata.HealthInterval = "@every 5m"
	cfg.Download.Mode = config.DownloadModeEcho
	cfg.Download.UserAgent = "moviebox-test"
	return cfg
}

func newTestManager(client *fakeClient) *Manager {
	return NewManager(testConfig(), client, utils.NewDiscardLogger())
}

func ptr[T any](v T) *T { return &v }

func TestSearchMergesMoviesBeforeShows(t *testing.T) {
	client := &fakeClient{
		movies: &metadata.SearchPage{Results: []metadata.SearchItem{
			{ID: 1, Title: "Alpha", ReleaseDate: "2001-02-03", PosterPath: "/a.jpg", VoteAverage: ptr(7.5)},
			{ID: 2, Title: "Beta"},
		}},
		shows: &metadata.SearchPage{Results: []metadata.SearchItem{
			{ID: 3, Name: "Gamma", FirstAirDate: "2010-01-01", Overview: "A show"},
		}},
	}
	m := newTestManager(client)

	results, err := m.Search(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "movie_1", results[0].ID)
	assert.Equal(t, "movie_2", results[1].ID)
	assert.Equal(t, "tv_3", results[2].ID)
	assert.Equal(t, models.MediaKindTV, results[2].Type)

	assert.Equal(t, "2001", results[0].Year)
	assert.Equal(t, "", results[1].Year)
	require.NotNil(t, results[0].PosterURL)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/a.jpg", *results[0].PosterURL)
	assert.Nil(t, results[1].PosterURL)
	assert.Nil(t, results[0].Overview)
	require.NotNil(t, results[2].Overview)
	assert.Equal(t, "A show", *results[2].Overview)
	assert.Equal(t, "Gamma", results[2].Title)

	assert.ElementsMatch(t, []string{"search/movie:abc", "search/tv:abc"}, client.Calls())
}

func TestSearchFailsWhenEitherUpstreamFails(t *testing.T) {
	client := &fakeClient{
		movies:    &metadata.SearchPage{},
		shows:     &metadata.SearchPage{},
		searchErr: errors.New("boom"),
	}
	_, err := newTestManager(client).Search(context.Background(), "abc")
	require.Error(t, err)
	assert.False(t, IsInvalidInput(err))
	assert.False(t, IsNotFound(err))
}

func TestInfoMovieFallsBackToTV(t *testing.T) {
	client := &fakeClient{
		details: map[models.MediaKind]map[string]any{
			models.MediaKindTV: {"name": "Show", "poster_path": "/p.jpg"},
		},
	}
	m := newTestManager(client)

	info, err := m.Info(context.Background(), "movie_42")
	require.NoError(t, err)
	assert.Equal(t, []string{"movie/42", "tv/42"}, client.Calls())
	assert.Equal(t, models.MediaKindTV, info.Type)
	assert.Equal(t, "movie_42", info.ID)
	assert.Equal(t, "42", info.TMDBID)

	poster, ok := info.Info["poster_path"].(*string)
	require.True(t, ok)
	require.NotNil(t, poster)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/p.jpg", *poster)
	assert.Nil(t, info.Info["backdrop_path"].(*string))
}

func TestInfoBareIDIsMovieFirst(t *testing.T) {
	client := &fakeClient{
		details: map[models.MediaKind]map[string]any{
			models.MediaKindMovie: {"title": "Film", "backdrop_path": "/b.jpg"},
		},
	}
	info, err := newTestManager(client).Info(context.Background(), "550")
	require.NoError(t, err)
	assert.Equal(t, []string{"movie/550"}, client.Calls())
	assert.Equal(t, models.MediaKindMovie, info.Type)
	assert.Equal(t, "https://image.tmdb.org/t/p/original/b.jpg", *info.Info["backdrop_path"].(*string))
}

func TestInfoTVDoesNotFallBack(t *testing.T) {
	client := &fakeClient{
		details: map[models.MediaKind]map[string]any{
			models.MediaKindMovie: {"title": "Should not be used"},
		},
	}
	_, err := newTestManager(client).Info(context.Background(), "tv_42")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, []string{"tv/42"}, client.Calls())
}

func TestInfoBothAttemptsFailIsNotFound(t *testing.T) {
	client := &fakeClient{
		detailsErr: map[models.MediaKind]error{
			models.MediaKindMovie: errors.New("connection refused"),
			models.MediaKindTV:    errors.New("connection refused"),
		},
	}
	_, err := newTestManager(client).Info(context.Background(), "movie_42")
	assert.True(t, IsNotFound(err))
}

func TestSourcesForEpisode(t *testing.T) {
	client := &fakeClient{
		videos:  []models.Video{{Key: "abc", Site: "YouTube", Type: "Trailer"}},
		episode: map[string]any{"name": "Pilot"},
	}
	bundle, err := newTestManager(client).Sources(context.Background(), "tv_1399", "1", "2")
	require.NoError(t, err)

	assert.Equal(t, models.MediaKindTV, bundle.Type)
	assert.Equal(t, "1", *bundle.Season)
	assert.Equal(t, "2", *bundle.Episode)
	assert.Len(t, bundle.Videos, 1)
	assert.NotNil(t, bundle.Providers)
	assert.Empty(t, bundle.Providers)
	assert.Equal(t, "Pilot", bundle.EpisodeInfo["name"])
	assert.Contains(t, client.Calls(), "tv/1399/season/1/episode/2")
}

func TestSourcesEpisodeFailureIsNotFatal(t *testing.T) {
	client := &fakeClient{
		providers:  map[string]any{"FR": map[string]any{}},
		episodeErr: errors.New("episode missing"),
	}
	bundle, err := newTestManager(client).Sources(context.Background(), "tv_1399", "9", "99")
	require.NoError(t, err)
	assert.Nil(t, bundle.EpisodeInfo)
	assert.NotNil(t, bundle.Videos)
}

func TestSourcesSkipsEpisodeForMovies(t *testing.T) {
	client := &fakeClient{}
	bundle, err := newTestManager(client).Sources(context.Background(), "movie_1", "1", "1")
	require.NoError(t, err)
	assert.Nil(t, bundle.EpisodeInfo)
	assert.ElementsMatch(t, []string{"movie/1/videos", "movie/1/watch/providers"}, client.Calls())
}

func TestSourcesFailsOnVideosError(t *testing.T) {
	client := &fakeClient{videosErr: errors.New("down")}
	_, err := newTestManager(client).Sources(context.Background(), "movie_1", "", "")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestHomepageSlicesAndRewritesPosters(t *testing.T) {
	many := make([]map[string]any, 10)
	for i := range many {
		many[i] = map[string]any{"id": float64(i), "poster_path": fmt.Sprintf("/%d.jpg", i)}
	}
	client := &fakeClient{lists: map[string]*metadata.ListPage{
		"movie/popular": {Results: many},
		"tv/popular":    {Results: []map[string]any{{"id": float64(1)}}},
	}}

	home, err := newTestManager(client).Homepage(context.Background())
	require.NoError(t, err)
	assert.Len(t, home.Featured, 6)
	assert.Empty(t, home.NowPlaying)
	assert.NotNil(t, home.NowPlaying)
	assert.Len(t, home.TVPopular, 1)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/0.jpg", *home.Featured[0]["poster_path"].(*string))
	assert.Nil(t, home.TVPopular[0]["poster_path"].(*string))
}

func TestHomepageFailsWhenAnyListFails(t *testing.T) {
	client := &fakeClient{listErr: errors.New("down")}
	_, err := newTestManager(client).Homepage(context.Background())
	assert.Error(t, err)
}

func TestTrendingWindow(t *testing.T) {
	client := &fakeClient{}
	m := newTestManager(client)

	_, err := m.Trending(context.Background(), "")
	require.NoError(t, err)
	_, err = m.Trending(context.Background(), "week")
	require.NoError(t, err)
	assert.Equal(t, []string{"trending/all/day", "trending/all/week"}, client.Calls())

	_, err = m.Trending(context.Background(), "month")
	assert.True(t, IsInvalidInput(err))
}

func TestGenresAndDiscover(t *testing.T) {
	client := &fakeClient{
		genres:   []models.Genre{{ID: 18, Name: "Drame"}},
		discover: &metadata.ListPage{Page: 3, TotalPages: 9, TotalResults: 170, Results: []map[string]any{{"id": float64(5)}}},
	}
	m := newTestManager(client)

	kind, genres, err := m.Genres(context.Background(), "tv")
	require.NoError(t, err)
	assert.Equal(t, models.MediaKindTV, kind)
	assert.Len(t, genres, 1)

	_, _, err = m.Genres(context.Background(), "anime")
	assert.True(t, IsInvalidInput(err))

	page, err := m.Discover(context.Background(), "", "18", "3", "")
	require.NoError(t, err)
	assert.Equal(t, models.MediaKindMovie, page.Type)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, metadata.DiscoverOptions{Page: 3, SortBy: "popularity.desc", Genre: "18"}, client.lastDiscover)

	_, err = m.Discover(context.Background(), "movie", "", "zero", "")
	assert.True(t, IsInvalidInput(err))
	_, err = m.Discover(context.Background(), "movie", "", "0", "")
	assert.True(t, IsInvalidInput(err))
}

func TestSeasonsRequireTVPrefix(t *testing.T) {
	client := &fakeClient{
		details: map[models.MediaKind]map[string]any{
			models.MediaKindTV: {"seasons": []any{map[string]any{"season_number": float64(1)}}},
		},
	}
	m := newTestManager(client)

	_, _, err := m.Seasons(context.Background(), "movie_1")
	assert.True(t, IsInvalidInput(err))
	_, _, err = m.Seasons(context.Background(), "1399")
	assert.True(t, IsInvalidInput(err))

	id, seasons, err := m.Seasons(context.Background(), "tv_1399")
	require.NoError(t, err)
	assert.Equal(t, "1399", id.NativeID)
	assert.Len(t, seasons, 1)
	assert.Equal(t, []string{"tv/1399"}, client.Calls())
}

func TestSeasonsNotFound(t *testing.T) {
	_, _, err := newTestManager(&fakeClient{}).Seasons(context.Background(), "tv_0")
	assert.True(t, IsNotFound(err))
}

func TestEpisodes(t *testing.T) {
	client := &fakeClient{season: map[string]any{"episodes": []any{map[string]any{"episode_number": float64(1)}, map[string]any{"episode_number": float64(2)}}}}
	m := newTestManager(client)

	_, season, episodes, err := m.Episodes(context.Background(), "tv_1399", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, season)
	assert.Len(t, episodes, 2)

	_, _, _, err = m.Episodes(context.Background(), "tv_1399", "two")
	assert.True(t, IsInvalidInput(err))
	_, _, _, err = m.Episodes(context.Background(), "movie_1399", "2")
	assert.True(t, IsInvalidInput(err))

	client.seasonErr = errors.New("timeout")
	_, _, _, err = m.Episodes(context.Background(), "tv_1399", "2")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestWatchlistThroughManager(t *testing.T) {
	m := newTestManager(&fakeClient{})
	assert.Empty(t, m.Watchlist("u1"))
	m.AddToWatchlist("u1", "movie_1")
	assert.Equal(t, []string{"movie_1"}, m.AddToWatchlist("u1", "movie_1"))
	assert.Equal(t, 1, m.GetSystemStatus().WatchlistUsers)
}

func TestEmbedPicksFirstYouTubeTrailer(t *testing.T) {
	client := &fakeClient{videos: []models.Video{
		{Key: "teaser", Site: "YouTube", Type: "Teaser"},
		{Key: "vimeo", Site: "Vimeo", Type: "Trailer"},
		{Key: "yt1", Site: "YouTube", Type: "Trailer", Name: "Official \"Trailer\""},
		{Key: "yt2", Site: "YouTube", Type: "Trailer"},
	}}
	embed, err := newTestManager(client).Embed(context.Background(), "tv_7")
	require.NoError(t, err)
	assert.Equal(t, "yt1", embed.Key)
	assert.Equal(t, "https://www.youtube.com/embed/yt1", embed.EmbedURL)
	assert.Contains(t, embed.EmbedHTML, `src="https://www.youtube.com/embed/yt1"`)
	assert.Contains(t, embed.EmbedHTML, "Official &#34;Trailer&#34;")
	assert.Equal(t, []string{"tv/7/videos"}, client.Calls())
}

func TestEmbedWithoutTrailerIsNotFound(t *testing.T) {
	client := &fakeClient{videos: []models.Video{{Key: "x", Site: "Vimeo", Type: "Trailer"}}}
	_, err := newTestManager(client).Embed(context.Background(), "movie_7")
	assert.True(t, IsNotFound(err))
}

func TestDecodeDownloadURL(t *testing.T) {
	u, err := DecodeDownloadURL("https%3A%2F%2Fcdn.example.com%2Fa%20b.mp4%3Fx%3D1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a b.mp4?x=1", u)

	for _, bad := range []string{"%zz", "abc%", "%C3%28"} {
		_, err := DecodeDownloadURL(bad)
		assert.True(t, IsInvalidInput(err), bad)
	}
}

func TestOpenDownloadSendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "moviebox-test", r.Header.Get("User-Agent"))
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	m := newTestManager(&fakeClient{})
	resp, err := m.OpenDownload(context.Background(), srv.URL+"/file.bin")
	require.NoError(t, err)
	resp.Body.Close()

	_, err = m.OpenDownload(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.False(t, IsInvalidInput(err))

	_, err = m.OpenDownload(context.Background(), "file:///etc/passwd")
	assert.True(t, IsInvalidInput(err))
}

func TestProbeUpstreamUpdatesStatus(t *testing.T) {
	client := &fakeClient{pingErr: errors.New("unauthorized")}
	m := newTestManager(client)

	assert.Nil(t, m.GetSystemStatus().Upstream.CheckedAt)

	m.probeUpstream()
	status := m.GetSystemStatus()
	assert.False(t, status.Upstream.Reachable)
	assert.NotNil(t, status.Upstream.CheckedAt)
	assert.Equal(t, "unauthorized", status.Upstream.LastError)

	client.pingErr = nil
	m.probeUpstream()
	assert.True(t, m.GetSystemStatus().Upstream.Reachable)
}

func TestStartSchedulerRejectsBadSpec(t *testing.T) {
	m := newTestManager(&fakeClient{})
	m.config.Metadata.HealthInterval = "whenever"
	assert.Error(t, m.StartScheduler())
}
