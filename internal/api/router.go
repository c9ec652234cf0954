// Package api exposes the stats and game server workflows over HTTP.
package api

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"get5-api/internal/auth"
	"get5-api/internal/metrics"
	"get5-api/internal/model"
	"get5-api/internal/service"
)

// StatsService is the stats workflow as seen by the handlers.
type StatsService interface {
	List(ctx context.Context) ([]model.PlayerStat, error)
	ListBySteamID(ctx context.Context, steamID string) ([]model.PlayerStat, error)
	ListByMatchID(ctx context.Context, matchID int64) ([]model.PlayerStat, error)
	Create(ctx context.Context, in *model.PlayerStatInput) (int64, error)
	Upsert(ctx context.Context, in *model.PlayerStatInput) (service.UpsertResult, error)
	Delete(ctx context.Context, in *model.StatDeleteInput) error
}

// ServerService is the game server workflow as seen by the handlers.
type ServerService interface {
	Create(ctx context.Context, p *model.Principal, in *model.GameServerInput) (int64, error)
	ListPublic(ctx context.Context) ([]model.PublicServer, error)
	ListMine(ctx context.Context, p model.Principal) ([]model.GameServer, error)
	Get(ctx context.Context, p model.Principal, id int64) (*model.GameServer, error)
	Update(ctx context.Context, p model.Principal, in *model.GameServerInput) error
	Delete(ctx context.Context, p model.Principal, in *model.ServerDeleteInput) error
}

// UserStore resolves the user behind a token.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators of the router. Metrics and Health may be nil.
type Deps struct {
	Stats          StatsService
	Servers        ServerService
	Users          UserStore
	Auth           *auth.Service
	Metrics        *metrics.Metrics
	Health         map[string]HealthCheck
	LoginURL       string
	RequestTimeout time.Duration
}

// Router holds the HTTP routes and dependencies.
type Router struct {
	chi.Router
	deps Deps
}

// NewRouter creates the HTTP handler of the API.
func NewRouter(deps Deps) *Router {
	if deps.LoginURL == "" {
		deps.LoginURL = "/auth/steam"
	}
	r := &Router{Router: chi.NewRouter(), deps: deps}

	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recovery)
	r.Use(observe(deps.Metrics))
	if deps.RequestTimeout > 0 {
		r.Use(timeout(deps.RequestTimeout))
	}
	r.Use(r.authenticate)

	r.Get("/health", r.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/playerstats", func(pr chi.Router) {
		pr.Get("/", r.handleListStats)
		pr.Get("/match/{match_id}", r.handleListStatsByMatch)
		pr.Get("/{steam_id}", r.handleListStatsBySteamID)
		pr.Post("/create", r.handleCreateStats)
		pr.Put("/update", r.handleUpsertStats)
		pr.Delete("/delete", r.handleDeleteStats)
	})

	r.Route("/servers", func(sr chi.Router) {
		sr.Get("/", r.handleListPublicServers)
		sr.Post("/create", r.handleCreateServer)

		sr.Group(func(protected chi.Router) {
			protected.Use(r.requireAuth)
			protected.Get("/myservers", r.handleListMyServers)
			protected.Get("/{server_id}", r.handleGetServer)
			protected.Put("/update", r.handleUpdateServer)
			protected.Delete("/delete", r.handleDeleteServer)
		})
	})

	return r
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(r.deps.Health))

	names := slices.Sorted(maps.Keys(r.deps.Health))
	for _, name := range names {
		if err := r.deps.Health[name](req.Context()); err != nil {
			logFor(req).Error().Err(err).Str("check", name).Msg("Health check failed")
			checks[name] = "unavailable"
			status, code = "unavailable", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
