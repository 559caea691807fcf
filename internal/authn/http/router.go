// Package http exposes the authenticator over a loopback HTTP API for the
// host application driving the browser.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/internal/authn/provider"
	"github.com/farelight/zkauth/internal/authn/service"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/httpx"
	"github.com/farelight/zkauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store     store.Store
	epochs    epoch.Source
	providers *provider.Registry

	LoginService *service.LoginService
	Signer       *service.TransactionSigner
}

func NewRouter(
	buildVersion string,
	st store.Store,
	epochs epoch.Source,
	providers *provider.Registry,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		epochs:       epochs,
		providers:    providers,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerSessions()
	r.registerProviders()
	r.registerSystem()
}

func (r *Router) registerLogin() {
	h := &LoginHandler{LoginService: r.LoginService}

	// Each begin mints a fresh key pair, so the login surface is strictly
	// limited.
	r.Mux.Handle("POST /v1/login/begin",
		httpx.Chain(http.HandlerFunc(h.HandleBegin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/login/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/login/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleCancel),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	sessions := &SessionsHandler{Store: r.store, Epochs: r.epochs}
	sign := &SignHandler{Signer: r.Signer}

	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(http.HandlerFunc(sessions.HandleList),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(sessions.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(sessions.HandleRevoke),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/sessions/{id}/sign",
		httpx.Chain(http.HandlerFunc(sign.HandleSign),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerProviders() {
	h := &ProvidersHandler{Providers: r.providers}

	r.Mux.Handle("GET /v1/providers",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.epochs),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
