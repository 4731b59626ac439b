// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/biggame/internal/adapters/broker"
	service "github.com/okian/biggame/internal/app"
	"github.com/okian/biggame/internal/domain/types"
	"github.com/okian/biggame/pkg/logger"
)

const defaultPingInterval = 30 * time.Second

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AssignPlace(ctx context.Context, req types.PlacementRequest) (types.PlacementResult, error)
	Reset(ctx context.Context) (types.Scoreboard, error)
	Reload(ctx context.Context) (types.Scoreboard, error)
	Scoreboard(ctx context.Context) (types.Scoreboard, error)
	Standings(ctx context.Context) ([]types.Standing, error)

	// Subscribe returns a channel of scoreboard events for a live stream.
	Subscribe(transport string) chan broker.Event
	Unsubscribe(ch chan broker.Event)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	scoreboardHandler *ScoreboardHandler
	streamHandler     *StreamHandler
	qrHandler         *QRHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	publicURL    string
	pingInterval time.Duration
	logger       logger.Logger
}

// WithPublicURL sets the base URL encoded in the QR code. When empty the
// request host is used.
func WithPublicURL(u string) Option {
	return func(c *serverConfig) { c.publicURL = u }
}

// WithPingInterval sets how often idle streams are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(c *serverConfig) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithLogger sets the logger used by streaming handlers.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{pingInterval: defaultPingInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		scoreboardHandler: NewScoreboardHandler(deps),
		streamHandler:     NewStreamHandler(deps, cfg.pingInterval, cfg.logger),
		qrHandler:         NewQRHandler(cfg.publicURL),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /qr", MetricsMiddleware(s.qrHandler.HandleQR, "qr"))

	mux.HandleFunc("GET /api/v1/scoreboard", MetricsMiddleware(s.scoreboardHandler.HandleGetScoreboard, "scoreboard"))
	mux.HandleFunc("GET /api/v1/standings", MetricsMiddleware(s.scoreboardHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("POST /api/v1/placements", MetricsMiddleware(s.scoreboardHandler.HandlePostPlacement, "placements"))
	mux.HandleFunc("POST /api/v1/reset", MetricsMiddleware(s.scoreboardHandler.HandlePostReset, "reset"))
	mux.HandleFunc("POST /api/v1/reload", MetricsMiddleware(s.scoreboardHandler.HandlePostReload, "reload"))

	mux.HandleFunc("GET /api/v1/events", MetricsMiddleware(s.streamHandler.HandleSSE, "events"))
	mux.HandleFunc("GET /ws", MetricsMiddleware(s.streamHandler.HandleWS, "ws"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service failures to HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, service.ErrPendingChanges):
		writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
	}
}
