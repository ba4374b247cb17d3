// Package api exposes the decision engine over HTTP: a blocking
// authorize endpoint, a dry-run check, the pending-confirmation queue,
// and the event stream.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/events"
	"github.com/toolgate/toolgate/internal/flow"
	"github.com/toolgate/toolgate/internal/guard"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/store/sqlite"
)

type App struct {
	cfg        config.Config
	provider   *policy.Provider
	guard      *guard.Guard
	controller *flow.Controller
	exchange   *flow.ExchangePrompter
	broker     *events.Broker
	store      *sqlite.Store
	totpSecret string
	logger     *slog.Logger
	apiKeys    map[string]struct{}
}

type AppConfig struct {
	Config     config.Config
	Provider   *policy.Provider
	Guard      *guard.Guard
	Controller *flow.Controller
	Exchange   *flow.ExchangePrompter
	Broker     *events.Broker
	Store      *sqlite.Store // nil when audit is disabled
	TOTPSecret string
	Logger     *slog.Logger
	APIKeys    []string
}

func NewApp(ac AppConfig) *App {
	logger := ac.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keys := make(map[string]struct{}, len(ac.APIKeys))
	for _, k := range ac.APIKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return &App{
		cfg:        ac.Config,
		provider:   ac.Provider,
		guard:      ac.Guard,
		controller: ac.Controller,
		exchange:   ac.Exchange,
		broker:     ac.Broker,
		store:      ac.Store,
		totpSecret: ac.TOTPSecret,
		logger:     logger,
		apiKeys:    keys,
	}
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(a.authMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/authorize", a.authorize)
		r.Post("/check", a.check)

		r.Get("/approvals", a.listApprovals)
		r.Post("/approvals/{id}", a.resolveApproval)

		r.Get("/events", a.streamEvents)
		r.Get("/events/search", a.searchEvents)
	})

	return r
}

func (a *App) authMiddleware(next http.Handler) http.Handler {
	authType := a.cfg.Server.Auth.Type
	if authType == "" || strings.EqualFold(authType, "none") {
		return next
	}
	if strings.EqualFold(authType, "api_key") {
		header := a.cfg.Server.Auth.HeaderName
		if header == "" {
			header = "X-API-Key"
		}
		if len(a.apiKeys) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"error": "api key auth enabled but keys not loaded",
				})
			})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(header)
			if _, ok := a.apiKeys[key]; key == "" || !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unsupported auth type"})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
