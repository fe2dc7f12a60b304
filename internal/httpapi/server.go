package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/publisher"
	"github.com/pgm9-art/mcmahon-news/internal/ratelimit"
)

const (
	feedCacheControl = "s-maxage=300, stale-while-revalidate=600"
	maxLimit         = 100
	refreshGateKey   = ratelimit.ManualRefreshKey
)

// Feed is the read and refresh surface the API serves. *publisher.Publisher
// satisfies it.
type Feed interface {
	ResultSet(category models.Category, limit int) models.ResultSet
	Refresh(ctx context.Context) (models.RefreshCounts, error)
	Health() models.Health
}

type Options struct {
	AllowedOrigins      []string
	RequestsPerMinute   int
	EnableManualRefresh bool
	RefreshTimeout      time.Duration
	PostsLimit          int
	VideosLimit         int

	// RefreshGate throttles manual refreshes across callers; nil allows all.
	RefreshGate ratelimit.RateLimiter
}

type Server struct {
	feed   Feed
	opts   Options
	logger *logging.Logger
}

// New creates a new HTTP API server
func New(feed Feed, opts Options, logger *logging.Logger) *Server {
	if opts.PostsLimit <= 0 {
		opts.PostsLimit = 30
	}
	if opts.VideosLimit <= 0 {
		opts.VideosLimit = 20
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 2 * time.Minute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{feed: feed, opts: opts, logger: logger}
}

// HTTPServer wraps the router in an *http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.opts.RefreshTimeout + 15*time.Second,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	if s.opts.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(s.opts.RequestsPerMinute, time.Minute))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/tweets", s.handlePosts)
		r.Get("/posts", s.handlePosts)
		r.Get("/videos", s.handleVideos)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/health", s.handleHealth)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type postsResponse struct {
	Tweets      []models.FeedItem `json:"tweets"`
	Left        []models.FeedItem `json:"left"`
	Right       []models.FeedItem `json:"right"`
	Count       int               `json:"count"`
	Errors      []string          `json:"errors"`
	Stale       []string          `json:"stale"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

type videosResponse struct {
	Videos      []models.FeedItem `json:"videos"`
	Count       int               `json:"count"`
	Errors      []string          `json:"errors"`
	Stale       []string          `json:"stale"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	set := s.feed.ResultSet(models.CategoryPosts, parseLimit(r, s.opts.PostsLimit))
	left, right := zigzag(set.Items)

	w.Header().Set("Cache-Control", feedCacheControl)
	s.writeJSON(w, http.StatusOK, postsResponse{
		Tweets:      set.Items,
		Left:        left,
		Right:       right,
		Count:       set.Count,
		Errors:      set.Errors,
		Stale:       set.Stale,
		LastUpdated: set.GeneratedAt,
	})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	set := s.feed.ResultSet(models.CategoryVideos, parseLimit(r, s.opts.VideosLimit))

	w.Header().Set("Cache-Control", feedCacheControl)
	s.writeJSON(w, http.StatusOK, videosResponse{
		Videos:      set.Items,
		Count:       set.Count,
		Errors:      set.Errors,
		Stale:       set.Stale,
		LastUpdated: set.GeneratedAt,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.opts.EnableManualRefresh {
		s.writeError(w, http.StatusForbidden, "refresh_disabled", "manual refresh is disabled")
		return
	}
	if s.opts.RefreshGate != nil && !s.opts.RefreshGate.Allow(refreshGateKey) {
		s.writeError(w, http.StatusTooManyRequests, "rate_limited", "refresh requested too recently")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RefreshTimeout)
	defer cancel()

	counts, err := s.feed.Refresh(ctx)
	switch {
	case errors.Is(err, publisher.ErrRefreshInProgress):
		s.writeError(w, http.StatusConflict, "refresh_in_progress", err.Error())
		return
	case err != nil:
		s.logger.Error("Manual refresh failed", logging.WithError(err))
		s.writeError(w, http.StatusInternalServerError, "refresh_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": counts,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.Health())
}

// parseLimit reads ?limit=, falling back to def for missing or invalid
// values and clamping to maxLimit.
func parseLimit(r *http.Request, def int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// zigzag deals ranked items into two columns: 1st, 3rd, 5th... left and
// 2nd, 4th, 6th... right.
func zigzag(items []models.FeedItem) (left, right []models.FeedItem) {
	left = make([]models.FeedItem, 0, (len(items)+1)/2)
	right = make([]models.FeedItem, 0, len(items)/2)
	for i, item := range items {
		if i%2 == 0 {
			left = append(left, item)
		} else {
			right = append(right, item)
		}
	}
	return left, right
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("Failed to write response", logging.WithError(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
