package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/ratelimit"
)

// Server is the engine's HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds HTTP settings and the handler dependencies for creating a
// Server. Limiter and Broker are optional (nil = disabled).
type Config struct {
	Deps HandlersDeps

	Limiter ratelimit.Limiter

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(cfg.Deps)
	logger := cfg.Deps.Logger

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Actions are limited per adapter; token exchange per source IP.
	actionRL := ratelimit.Middleware(cfg.Limiter, adapterKeyFunc, reqIDFunc)
	authRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Token exchange (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.HandleAuthToken)))

	// Player actions (adapter+, rate limited).
	adapterRole := requireRole(model.RoleAdapter, model.RoleAdmin)
	mux.Handle("POST /v1/actions", actionRL(adapterRole(http.HandlerFunc(h.HandleAction))))

	// Reads (adapter+, rate limited).
	mux.Handle("GET /v1/players/{player_id}", actionRL(adapterRole(http.HandlerFunc(h.HandleGetPlayer))))
	mux.Handle("GET /v1/players/{player_id}/collection", actionRL(adapterRole(http.HandlerFunc(h.HandleGetCollection))))
	mux.Handle("GET /v1/players/{player_id}/duplicates", actionRL(adapterRole(http.HandlerFunc(h.HandleGetDuplicates))))
	mux.Handle("GET /v1/players/{player_id}/mailbox", actionRL(adapterRole(http.HandlerFunc(h.HandleGetMailbox))))
	mux.Handle("GET /v1/players/{player_id}/inventory", actionRL(adapterRole(http.HandlerFunc(h.HandleGetInventory))))
	mux.Handle("GET /v1/players/{player_id}/trade", actionRL(adapterRole(http.HandlerFunc(h.HandleGetPendingTrade))))
	mux.Handle("PUT /v1/players/{player_id}/notifications", actionRL(adapterRole(http.HandlerFunc(h.HandleSetNotifications))))
	mux.Handle("GET /v1/rankings", actionRL(adapterRole(http.HandlerFunc(h.HandleGlobalRanking))))
	mux.Handle("GET /v1/rooms/{room_id}/rankings", actionRL(adapterRole(http.HandlerFunc(h.HandleRoomRanking))))
	mux.Handle("GET /v1/rooms/{room_id}/events", actionRL(adapterRole(http.HandlerFunc(h.HandleRoomEvents))))

	// Announcement stream (adapter+, no rate limit; long-lived connection).
	mux.Handle("GET /v1/announcements", adapterRole(http.HandlerFunc(h.HandleSubscribe)))

	// Admin surface (admin only, no rate limit).
	adminOnly := requireRole(model.RoleAdmin)
	mux.Handle("POST /v1/admin/adapters", adminOnly(http.HandlerFunc(h.HandleCreateAdapter)))
	mux.Handle("PUT /v1/admin/adapters/{adapter_id}/active", adminOnly(http.HandlerFunc(h.HandleSetAdapterActive)))
	mux.Handle("PUT /v1/admin/players/{player_id}/restricted", adminOnly(http.HandlerFunc(h.HandleSetPlayerRestricted)))
	mux.Handle("POST /v1/admin/rooms/{room_id}/start", adminOnly(http.HandlerFunc(h.HandleStartRoom)))
	mux.Handle("POST /v1/admin/rooms/{room_id}/stop", adminOnly(http.HandlerFunc(h.HandleStopRoom)))
	mux.Handle("POST /v1/admin/rooms/{room_id}/ban", adminOnly(http.HandlerFunc(h.HandleBanRoom)))
	mux.Handle("POST /v1/admin/rooms/{room_id}/unban", adminOnly(http.HandlerFunc(h.HandleUnbanRoom)))
	mux.Handle("POST /v1/admin/rankings/settle", adminOnly(http.HandlerFunc(h.HandleSettleRanking)))

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(logger, handler)
	handler = authMiddleware(cfg.Deps.JWTMgr, handler)
	handler = loggingMiddleware(logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   logger,
	}
}

// adapterKeyFunc extracts the adapter ID from the request context for rate
// limiting. Returns empty string for admins (exempt from rate limits).
func adapterKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	if claims.Role == model.RoleAdmin {
		return ""
	}
	return "adapter:" + claims.AdapterID
}

// Handlers returns the underlying Handlers, for wiring and tests.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
