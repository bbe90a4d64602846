// Package http serves the JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/period"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

type transactionService interface {
	Create(ctx context.Context, userID uuid.UUID, in services.CreateInput) (services.CreateResult, error)
	Get(ctx context.Context, userID uuid.UUID, id int64) (core.Transaction, error)
	Update(ctx context.Context, userID uuid.UUID, id int64, in services.UpdateInput, cascade bool) (services.UpdateResult, error)
	Confirm(ctx context.Context, userID uuid.UUID, id int64) error
	Delete(ctx context.Context, userID uuid.UUID, id int64) error
	DeleteSeries(ctx context.Context, userID uuid.UUID, templateID int64, from core.Date) (int64, error)
	Templates(ctx context.Context, userID uuid.UUID, scope core.Scope) ([]core.Transaction, error)
	History(ctx context.Context, userID uuid.UUID, q services.HistoryQuery) (services.History, error)
	Labels(ctx context.Context, userID uuid.UUID, scope core.Scope, col storage.LabelColumn) ([]string, error)
}

type statsService interface {
	Period(ctx context.Context, userID uuid.UUID, year, month int) (period.Range, error)
	Dashboard(ctx context.Context, userID uuid.UUID, scope core.Scope, year, month int) (services.Dashboard, error)
	Analysis(ctx context.Context, userID uuid.UUID, scope core.Scope, year, month int, typ core.BreakdownType) (services.Analysis, error)
}

type settingsService interface {
	Get(ctx context.Context, userID uuid.UUID) (core.UserSettings, error)
	Update(ctx context.Context, userID uuid.UUID, s core.UserSettings) (core.UserSettings, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Transactions transactionService
	Stats        statsService
	Settings     settingsService
	DB           pinger
	Logger       *log.Logger
	// Today is used for request defaults such as the series deletion date.
	Today services.Clock
	// MutationsPerMinute caps state-changing requests per client. Zero
	// uses the limiter default.
	MutationsPerMinute int
}

type Server struct {
	http.Server
	deps    Deps
	limiter *ratelimit.Limiter
}

// NewServer wires the router and returns a server ready to ListenAndServe.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		deps:    deps,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.MutationsPerMinute}),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.deps.Logger))
	r.Use(security.Headers(security.APIHeadersConfig()))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireUser)
		r.Use(s.limiter.Middleware(security.ClientIP, ratelimit.Mutating, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests, retry later")
		}))

		r.Get("/period", s.handlePeriod)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Post("/", s.handleCreate)
			r.Get("/{id}", s.handleGet)
			r.Patch("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
			r.Post("/{id}/confirm", s.handleConfirm)
		})

		r.Get("/recurring", s.handleTemplates)
		r.Delete("/recurring/{id}", s.handleDeleteSeries)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/categories", s.handleLabels(storage.CategoryColumn))
		r.Get("/counterparties", s.handleLabels(storage.CounterpartyColumn))

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
	})

	return r
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			log.FromContext(r.Context()).Error("Health check failed", log.FieldError, err)
			writeError(w, r, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
