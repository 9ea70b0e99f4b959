package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"moviebox/internal/config"
	"moviebox/internal/core"
	"moviebox/internal/models"
	"moviebox/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

const echoNote = "Echo mode: the URL is not fetched. Set download.mode to stream to relay the file through this server."

type APIHandler struct {
	manager  *core.Manager
	logger   *utils.Logger
	config   *config.Config
	validate *validator.Validate
}

type watchlistRequest struct {
	UserID string `json:"userId" validate:"required"`
	ItemID string `json:"itemId" validate:"required"`
}

// A helper function to respond with JSON
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to respond with a JSON error
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]interface{}{"success": false, "message": message})
}

// respondFailure maps a manager error onto the error envelope. Invalid input
// is echoed back; anything from upstream is logged and replaced by message.
func (h *APIHandler) respondFailure(w http.ResponseWriter, op string, err error, notFoundMsg, failureMsg string) {
	switch {
	case core.IsInvalidInput(err):
		respondError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), core.ErrInvalidInput.Error()+": "))
	case core.IsNotFound(err) && notFoundMsg != "":
		h.logger.Debug(op+":", err)
		respondError(w, http.StatusNotFound, notFoundMsg)
	default:
		h.logger.Error(op+":", err)
		respondError(w, http.StatusInternalServerError, failureMsg)
	}
}

func NewAPIHandler(manager *core.Manager, logger *utils.Logger, config *config.Config) *APIHandler {
	return &APIHandler{manager: manager, logger: logger, config: config, validate: validator.New()}
}

// pathVar returns the decoded route variable. The router matches on the
// encoded path, so every variable arrives still escaped.
func pathVar(r *http.Request, name string) (string, error) {
	v, err := url.PathUnescape(mux.Vars(r)[name])
	if err != nil {
		return "", fmt.Errorf("%w: malformed %s", core.ErrInvalidInput, name)
	}
	return v, nil
}

func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := pathVar(r, "query")
	if err != nil {
		h.respondFailure(w, "search", err, "", "TMDB search failed")
		return
	}

	results, err := h.manager.Search(r.Context(), query)
	if err != nil {
		h.respondFailure(w, "search", err, "", "TMDB search failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (h *APIHandler) Info(w http.ResponseWriter, r *http.Request) {
	id, err := pathVar(r, "id")
	if err != nil {
		h.respondFailure(w, "info", err, "", "")
		return
	}

	info, err := h.manager.Info(r.Context(), id)
	if err != nil {
		h.respondFailure(w, "info", err, "Not found or TMDB error", "Not found or TMDB error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      info.ID,
		"tmdb_id": info.TMDBID,
		"type":    info.Type,
		"info":    info.Info,
	})
}

func (h *APIHandler) Sources(w http.ResponseWriter, r *http.Request) {
	id, err := pathVar(r, "id")
	if err != nil {
		h.respondFailure(w, "sources", err, "", "Failed to fetch sources")
		return
	}
	q := r.URL.Query()

	bundle, err := h.manager.Sources(r.Context(), id, q.Get("season"), q.Get("episode"))
	if err != nil {
		h.respondFailure(w, "sources", err, "", "Failed to fetch sources")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"id":           bundle.ID,
		"tmdb_id":      bundle.TMDBID,
		"type":         bundle.Type,
		"season":       bundle.Season,
		"episode":      bundle.Episode,
		"videos":       bundle.Videos,
		"providers":    bundle.Providers,
		"episode_info": bundle.EpisodeInfo,
	})
}

func (h *APIHandler) Homepage(w http.ResponseWriter, r *http.Request) {
	home, err := h.manager.Homepage(r.Context())
	if err != nil {
		h.respondFailure(w, "homepage", err, "", "Failed to build homepage")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "homepage": home})
}

func (h *APIHandler) Trending(w http.ResponseWriter, r *http.Request) {
	trending, err := h.manager.Trending(r.Context(), r.URL.Query().Get("window"))
	if err != nil {
		h.respondFailure(w, "trending", err, "", "Failed to fetch trending")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "trending": trending})
}

func (h *APIHandler) Genres(w http.ResponseWriter, r *http.Request) {
	kind, genres, err := h.manager.Genres(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		h.respondFailure(w, "genres", err, "", "Failed to fetch genres")
		return
	}
	if genres == nil {
		genres = []models.Genre{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "type": kind, "genres": genres})
}

func (h *APIHandler) Discover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.manager.Discover(r.Context(), q.Get("type"), q.Get("genre"), q.Get("page"), q.Get("sort"))
	if err != nil {
		h.respondFailure(w, "discover", err, "", "Failed to discover titles")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"type":          page.Type,
		"page":          page.Page,
		"total_pages":   page.TotalPages,
		"total_results": page.TotalResults,
		"results":       page.Results,
	})
}

func (h *APIHandler) Seasons(w http.ResponseWriter, r *http.Request) {
	raw, err := pathVar(r, "id")
	if err != nil {
		h.respondFailure(w, "seasons", err, "", "")
		return
	}

	id, seasons, err := h.manager.Seasons(r.Context(), raw)
	if err != nil {
		h.respondFailure(w, "seasons", err, "Series not found", "Failed to fetch seasons")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      raw,
		"tmdb_id": id.NativeID,
		"seasons": seasons,
	})
}

func (h *APIHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	raw, err := pathVar(r, "id")
	if err != nil {
		h.respondFailure(w, "episodes", err, "", "")
		return
	}
	seasonVar, err := pathVar(r, "season")
	if err != nil {
		h.respondFailure(w, "episodes", err, "", "")
		return
	}

	id, season, episodes, err := h.manager.Episodes(r.Context(), raw, seasonVar)
	if err != nil {
		h.respondFailure(w, "episodes", err, "Season not found", "Failed to fetch episodes")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"id":       raw,
		"tmdb_id":  id.NativeID,
		"season":   season,
		"episodes": episodes,
	})
}

func (h *APIHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"userId":  userID,
		"items":   h.manager.Watchlist(userID),
	})
}

func (h *APIHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "userId and itemId are required")
		return
	}

	items := h.manager.AddToWatchlist(req.UserID, req.ItemID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"userId":  req.UserID,
		"items":   items,
	})
}

func (h *APIHandler) Embed(w http.ResponseWriter, r *http.Request) {
	id, err := pathVar(r, "id")
	if err != nil {
		h.respondFailure(w, "embed", err, "", "")
		return
	}

	embed, err := h.manager.Embed(r.Context(), id)
	if err != nil {
		h.respondFailure(w, "embed", err, "No trailer found", "Failed to fetch videos")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"id":         embed.ID,
		"key":        embed.Key,
		"embed_url":  embed.EmbedURL,
		"embed_html": embed.EmbedHTML,
	})
}

// Download decodes the target URL and, depending on download.mode, echoes it
// or relays the upstream body.
func (h *APIHandler) Download(w http.ResponseWriter, r *http.Request) {
	target, err := core.DecodeDownloadURL(mux.Vars(r)["encodedUrl"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid encoded url")
		return
	}

	if h.config.Download.Mode != config.DownloadModeStream {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"proxiedUrl": target,
			"note":       echoNote,
		})
		return
	}

	resp, err := h.manager.OpenDownload(r.Context(), target)
	if err != nil {
		if core.IsInvalidInput(err) {
			respondError(w, http.StatusBadRequest, "Invalid encoded url")
			return
		}
		h.logger.Error("download:", err)
		respondError(w, http.StatusInternalServerError, "Proxy failed")
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, utils.FilenameFromURL(target, "download")))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		// Headers are already sent; the client sees a truncated body.
		h.logger.Warn("download: relay interrupted after", n, "bytes:", err)
		return
	}
	h.logger.Debug("download: relayed", n, "bytes from", resp.Request.URL.Host)
}

func (h *APIHandler) GetSystemStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  h.manager.GetSystemStatus(),
	})
}
