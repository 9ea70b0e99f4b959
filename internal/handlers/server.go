package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"moviebox/internal/config"
	"moviebox/internal/core"
	"moviebox/internal/metrics"
	"moviebox/internal/utils"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	config     *config.Config
	manager    *core.Manager
	logger     *utils.Logger
	httpServer *http.Server
	apiHandler *APIHandler
}

func NewServer(cfg *config.Config, manager *core.Manager, logger *utils.Logger) *Server {
	return &Server{
		config:     cfg,
		manager:    manager,
		logger:     logger,
		apiHandler: NewAPIHandler(manager, logger, cfg),
	}
}

// Handler builds the full route table wrapped in the CORS layer.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	// Keep %2F inside a single segment so download targets survive routing.
	router.UseEncodedPath()
	router.Use(s.requestIDMiddleware, s.loggingMiddleware, s.metricsMiddleware)

	router.HandleFunc("/health", s.apiHandler.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/search/{query}", s.apiHandler.Search).Methods("GET")
	api.HandleFunc("/info/{id}", s.apiHandler.Info).Methods("GET")
	api.HandleFunc("/sources/{id}", s.apiHandler.Sources).Methods("GET")
	api.HandleFunc("/homepage", s.apiHandler.Homepage).Methods("GET")
	api.HandleFunc("/trending", s.apiHandler.Trending).Methods("GET")
	api.HandleFunc("/genres", s.apiHandler.Genres).Methods("GET")
	api.HandleFunc("/discover", s.apiHandler.Discover).Methods("GET")
	api.HandleFunc("/seasons/{id}", s.apiHandler.Seasons).Methods("GET")
	api.HandleFunc("/episodes/{id}/{season}", s.apiHandler.Episodes).Methods("GET")
	api.HandleFunc("/watchlist", s.apiHandler.GetWatchlist).Methods("GET")
	api.HandleFunc("/watchlist", s.apiHandler.AddToWatchlist).Methods("POST")
	api.HandleFunc("/embed/{id}", s.apiHandler.Embed).Methods("GET")
	api.HandleFunc("/download/{encodedUrl}", s.apiHandler.Download).Methods("GET")
	api.HandleFunc("/status", s.apiHandler.GetSystemStatus).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})(router)
}

func (s *Server) Start() error {
	writeTimeout := 15 * time.Second
	if s.config.Download.Mode == config.DownloadModeStream {
		// Relayed downloads can outlive any fixed deadline.
		writeTimeout = 0
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.App.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
	}

	s.logger.Info("Starting server on port", s.config.App.Port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)
		s.logger.Debug(w.Header().Get(requestIDHeader), r.Method, routeTemplate(r), rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// routeTemplate returns the matched route pattern, e.g. "/api/info/{id}".
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
