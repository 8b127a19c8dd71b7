// Package api exposes the marketplace over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/auction"
	"github.com/fishonbid/fishbid/internal/audit"
	"github.com/fishonbid/fishbid/internal/event"
	"github.com/fishonbid/fishbid/internal/live"
	"github.com/fishonbid/fishbid/internal/marketsync"
	"github.com/fishonbid/fishbid/internal/pricing"
	"github.com/fishonbid/fishbid/internal/store"
	"github.com/fishonbid/fishbid/internal/vision"
)

// Server bundles the service dependencies behind the HTTP routes.
type Server struct {
	engine   *auction.Engine
	pricing  *pricing.Engine
	analyzer vision.Analyzer
	audit    *audit.Recorder
	sync     *marketsync.Service
	bus      *event.Bus
	hub      *live.Hub
	log      *zap.Logger
}

// Deps lists what the server needs. Audit, Sync, and Hub may be nil in
// reduced deployments; the sync and ws routes then return 404.
type Deps struct {
	Engine   *auction.Engine
	Pricing  *pricing.Engine
	Analyzer vision.Analyzer
	Audit    *audit.Recorder
	Sync     *marketsync.Service
	Bus      *event.Bus
	Hub      *live.Hub
}

// NewServer creates the HTTP server facade.
func NewServer(d Deps) *Server {
	return &Server{
		engine:   d.Engine,
		pricing:  d.Pricing,
		analyzer: d.Analyzer,
		audit:    d.Audit,
		sync:     d.Sync,
		bus:      d.Bus,
		hub:      d.Hub,
		log:      zap.L().Named("api"),
	}
}

// Router builds the chi route tree.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auctions", func(r chi.Router) {
			r.Post("/", s.handleCreateAuction)
			r.Get("/", s.handleListAuctions)
			r.Get("/{id}", s.handleGetAuction)
			r.Post("/{id}/bids", s.handlePlaceBid)
			r.Get("/{id}/bids", s.handleBidHistory)
			r.Post("/{id}/close", s.handleCloseAuction)
		})

		r.Post("/pricing/suggest", s.handleSuggestPrice)
		r.Post("/vision/analyze", s.handleVisionAnalyze)

		if s.sync != nil {
			r.Post("/sync", s.handleTriggerSync)
			r.Get("/sync/status", s.handleSyncStatus)
		}

		r.Get("/events", s.handleEvents)
		r.Get("/events/stats", s.handleEventStats)
	})

	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}
	return r
}

// requestLogger logs one line per request with latency and status.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(started)),
			)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, auction.ErrAuctionNotFound) || eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "auction not found")
	case eris.Is(err, auction.ErrAuctionClosed):
		writeError(w, http.StatusConflict, "auction is closed")
	case eris.Is(err, auction.ErrAuctionExpired):
		writeError(w, http.StatusGone, "auction has expired")
	case eris.Is(err, auction.ErrBidTooLow):
		writeError(w, http.StatusUnprocessableEntity, "bid must exceed the current price")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
