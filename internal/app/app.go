package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-art-session/internal/apiclient"
	"go-art-session/internal/authapi"
	"go-art-session/internal/config"
	"go-art-session/internal/credential"
	"go-art-session/internal/database"
	"go-art-session/internal/event"
	"go-art-session/internal/handler"
	"go-art-session/internal/middleware"
	"go-art-session/internal/repository"
	"go-art-session/internal/router"
	"go-art-session/internal/session"
	"go-art-session/internal/websocket"
)

type App struct {
	server       *http.Server
	coordinator  *session.Coordinator
	logger       *slog.Logger
	cleanupFuncs []func()
}

// storage is the credential backend chosen by STORE_DRIVER plus whatever it holds open.
type storage struct {
	backend credential.Backend
	db      *database.DB
	repo    *repository.CredentialRepository
}

func (s *storage) close() {
	if s.db != nil {
		s.db.Close()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage, error) {
	s := &storage{}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		s.backend = credential.NewMemoryBackend()
	case config.StoreDriverFile:
		fb, err := credential.NewFileBackend(cfg.StoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential file: %w", err)
		}
		s.backend = fb
	case config.StoreDriverPostgres:
		log.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		s.db = db
		s.repo = repository.NewCredentialRepository(db.Pool, cfg.StoreNamespace)
		s.backend = s.repo
		log.Info("database ready", "namespace", cfg.StoreNamespace)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}

	if cfg.StoreSecret != "" {
		sealed, err := credential.NewSealedBackend(s.backend, cfg.StoreSecret)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to seal credential store: %w", err)
		}
		s.backend = sealed
	}

	return s, nil
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx := context.Background()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	store := credential.NewStore(st.backend, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := event.NewBus(log)
	authClient := authapi.New(cfg.BackendURL, log, authapi.WithTimeout(cfg.BackendTimeout))
	coordinator := session.New(ctx, store, authClient, bus, session.Options{
		ExpiryBuffer:    cfg.TokenExpiryBuffer,
		RefreshInterval: cfg.RefreshInterval,
		RefreshWindow:   cfg.RefreshWindow,
		CallTimeout:     cfg.BackendTimeout,
		VerifyRetries:   cfg.VerifyMaxRetries,
		Logger:          log,
		Metrics:         session.NewMetrics(registry),
	})
	marketplace := apiclient.New(cfg.BackendURL, coordinator, cfg.BackendTimeout, log)

	hubCtx, hubCancel := context.WithCancel(ctx)
	hub := websocket.NewHub(bus, coordinator, cfg.CORSOrigins, log)
	go hub.Run(hubCtx)

	var health func(context.Context) error
	if st.db != nil {
		health = st.db.Health
	}

	appRouter := router.New(
		cfg,
		registry,
		health,
		middleware.NewAuthMiddleware(coordinator),
		handler.NewSessionHandler(coordinator),
		handler.NewEventsHandler(bus, coordinator, cfg.EventsHeartbeat, log),
		hub,
		handler.NewGuardHandler(coordinator),
		handler.NewLocalHandler(store),
		handler.NewProxyHandler(marketplace, cfg.ProxyMaxBodyBytes),
	)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}
	// Cancel request contexts on shutdown so open event streams return.
	baseCtx, baseCancel := context.WithCancel(context.Background())
	server.BaseContext = func(net.Listener) context.Context { return baseCtx }
	server.RegisterOnShutdown(baseCancel)

	return &App{
		server:      server,
		coordinator: coordinator,
		logger:      log,
		cleanupFuncs: []func(){
			hubCancel,
			coordinator.Close,
			st.close,
		},
	}, nil
}

// Purge removes every stored credential and UI-local key for the configured store.
func Purge(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if st.repo != nil {
		n, err := st.repo.Purge(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge credentials: %w", err)
		}
		log.Info("credentials purged", "namespace", cfg.StoreNamespace, "rows", n)
		return nil
	}

	store := credential.NewStore(st.backend, log)
	store.ClearAll(ctx)
	store.ClearAncillary(ctx)
	log.Info("credentials purged", "driver", cfg.StoreDriver)
	return nil
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("session agent starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.logger.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	go func() {
		if err := a.coordinator.Reconcile(context.Background()); err != nil {
			a.logger.Warn("startup reconcile ended without a session", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.Close()

	a.logger.Info("session agent stopped")
	return nil
}

// Handler is the agent's HTTP surface, for serving it outside Run.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Close stops the coordinator's background work and releases storage.
func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
