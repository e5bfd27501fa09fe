package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-art-session/internal/config"
	"go-art-session/internal/handler"
	"go-art-session/internal/middleware"
	"go-art-session/internal/websocket"
)

func New(
	cfg *config.Config,
	gatherer prometheus.Gatherer,
	health func(ctx context.Context) error,
	authMiddleware *middleware.AuthMiddleware,
	sessionHandler *handler.SessionHandler,
	eventsHandler *handler.EventsHandler,
	hub *websocket.Hub,
	guardHandler *handler.GuardHandler,
	localHandler *handler.LocalHandler,
	proxyHandler *handler.ProxyHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	timeout := middleware.Timeout(cfg.RequestTimeout)

	r.Route("/session", func(s chi.Router) {
		// Idle timeout at twice the heartbeat so a healthy stream never trips it.
		s.With(middleware.StreamingTimeout(cfg.EventsMaxDuration, 2*cfg.EventsHeartbeat)).
			Get("/events", eventsHandler.Stream)
		s.Get("/ws", hub.ServeWS)

		s.Group(func(s chi.Router) {
			s.Use(timeout)
			s.Get("/", sessionHandler.Get)
			s.Post("/login", sessionHandler.Login)
			s.Post("/register", sessionHandler.Register)
			s.Post("/logout", sessionHandler.Logout)
			s.Post("/refresh", sessionHandler.Refresh)
			s.Post("/reconcile", sessionHandler.Reconcile)
			s.With(authMiddleware.RequireAuth).Get("/token", sessionHandler.Token)
		})
	})

	r.Group(func(api chi.Router) {
		api.Use(timeout)
		api.Get("/guard", guardHandler.Decide)
		api.Get("/local/{key}", localHandler.Get)
		api.Put("/local/{key}", localHandler.Put)
		api.HandleFunc("/api/*", proxyHandler.Forward)
	})

	return r
}
