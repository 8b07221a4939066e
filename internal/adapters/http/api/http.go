// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/lootrota/internal/adapters/mq/feed"
	"github.com/okian/lootrota/internal/adapters/repository"
	service "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/domain/cascade"
	"github.com/okian/lootrota/internal/domain/history"
	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/internal/domain/priority"
	"github.com/okian/lootrota/pkg/logger"
	"github.com/okian/lootrota/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	RegisterPlayer(ctx context.Context, in service.PlayerInput) (model.Player, error)
	UpdatePlayer(ctx context.Context, id string, patch repository.PlayerPatch) (model.Player, error)
	DeletePlayer(ctx context.Context, id string) error
	GetPlayer(ctx context.Context, id string) (model.Player, error)
	ListPlayers(ctx context.Context, byPower bool) ([]model.Player, error)
	ClearPlayers(ctx context.Context) error

	RegisterItem(ctx context.Context, it model.Item) (model.Item, error)
	UpdateItem(ctx context.Context, id string, patch repository.ItemPatch) (model.Item, error)
	DeleteItem(ctx context.Context, id string) error
	GetItem(ctx context.Context, id string) (model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	ClearItems(ctx context.Context) error
	ClearHistory(ctx context.Context) error

	Queue(ctx context.Context, itemID string) ([]model.Player, error)
	Dashboard(ctx context.Context, viewerID string) ([]service.DashboardEntry, error)
	Lookahead(ctx context.Context, playerID string) ([]priority.Eligibility, error)
	Profile(ctx context.Context, playerID string) (service.Profile, error)
	History(ctx context.Context, f history.Filter) (service.HistoryPage, error)

	Distribute(ctx context.Context, req service.DistributeRequest) (service.Distribution, error)
	EnqueueWork(ctx context.Context, itemID string, quantity int) (model.WorkItem, error)
	RemoveWork(ctx context.Context, id string) error
	Worklist(ctx context.Context) ([]model.WorkItem, error)
	DistributeHead(ctx context.Context, action cascade.Action, requestID string) (service.HeadDistribution, error)

	Subscribe(ctx context.Context) (*feed.Subscription, error)
	Location() *time.Location
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps  Dependencies
	stats StatsProvider

	adminToken      string
	maxHistoryLimit int
	liveWriteWait   time.Duration
	logger          logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		stats:           stats,
		maxHistoryLimit: defaultMaxHistoryLimit,
		liveWriteWait:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Router builds the chi router with every route attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/stats", s.handleStats)

	r.Route("/api/v1", func(r chi.Router) {
		// Reads are open.
		r.Get("/players", s.handleListPlayers)
		r.Get("/players/{id}", s.handleGetPlayer)
		r.Get("/players/{id}/profile", s.handleProfile)
		r.Get("/players/{id}/lookahead", s.handleLookahead)
		r.Get("/items", s.handleListItems)
		r.Get("/items/{id}", s.handleGetItem)
		r.Get("/items/{id}/queue", s.handleQueue)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/worklist", s.handleWorklist)
		r.Get("/history", s.handleHistory)
		r.Get("/history/export", s.handleHistoryExport)
		r.Get("/live", s.handleLive)

		// Writes go through the admin token check.
		r.Group(func(r chi.Router) {
			r.Use(AdminGuard(s.adminToken))

			r.Post("/players", s.handleCreatePlayer)
			r.Patch("/players/{id}", s.handleUpdatePlayer)
			r.Delete("/players/{id}", s.handleDeletePlayer)
			r.Delete("/players", s.handleClearPlayers)

			r.Post("/items", s.handleCreateItem)
			r.Patch("/items/{id}", s.handleUpdateItem)
			r.Delete("/items/{id}", s.handleDeleteItem)
			r.Delete("/items", s.handleClearItems)

			r.Post("/distributions", s.handleDistribute)

			r.Post("/worklist", s.handleEnqueueWork)
			r.Delete("/worklist/{id}", s.handleRemoveWork)
			r.Post("/worklist/head/distribute", s.handleDistributeHead)

			r.Delete("/history", s.handleClearHistory)
		})
	})

	return r
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
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

// writeServiceError translates a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return wrapBadRequest(err)
	}
	return nil
}
