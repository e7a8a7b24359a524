package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ride-console/internal/backend"
	"ride-console/internal/config"
	"ride-console/internal/confirm"
	"ride-console/internal/database"
	"ride-console/internal/event"
	"ride-console/internal/handler"
	"ride-console/internal/middleware"
	"ride-console/internal/moderation"
	"ride-console/internal/repository"
	"ride-console/internal/router"
	"ride-console/internal/scheduler"
	"ride-console/internal/session"
	"ride-console/internal/tokenstore"
	"ride-console/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg       *config.Config
	server    *http.Server
	session   *session.Store
	engine    *confirm.Engine
	scheduler *scheduler.Scheduler

	base         context.Context
	cancelBase   context.CancelFunc
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	base, cancelBase := context.WithCancel(context.Background())
	a := &App{cfg: cfg, base: base, cancelBase: cancelBase}

	if err := a.build(); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.cfg
	checks := map[string]handler.HealthCheck{}

	tokens, err := a.tokenStore(checks)
	if err != nil {
		return err
	}

	backendCfg := backend.DefaultConfig(cfg.BackendURL)
	backendCfg.Timeout = cfg.BackendTimeout
	backendCfg.MaxRetries = cfg.BackendMaxRetries
	api := backend.New(backendCfg)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	go hub.Run(a.base)

	policy := session.NewPolicy(cfg.AdminRoles)
	a.session = session.New(api, tokens, policy, bus)
	a.engine = confirm.NewEngine(a.base, bus)
	a.session.OnEnd(func() { a.engine.Reset(confirm.ReasonSessionEnded) })
	a.scheduler = scheduler.New(a.base, a.session, cfg.SessionRevalidateInterval, cfg.BackendTimeout)

	var moderationLog moderation.Log
	var logReader handler.ModerationLog
	if cfg.DatabaseURL != "" {
		repo, err := a.moderationRepository(checks)
		if err != nil {
			return err
		}
		moderationLog = repo
		logReader = repo
	} else {
		slog.Info("DATABASE_URL not set; moderation log disabled")
	}

	dispatcher := moderation.NewDispatcher(api, a.engine, moderation.NewBusNotifier(bus), moderationLog, a.session)

	appRouter := router.New(cfg, middleware.NewGuards(a.session), policy.AdminRoles(), router.Handlers{
		Session:       handler.NewSessionHandler(a.session),
		Pages:         handler.NewPageHandler(),
		Confirmations: handler.NewConfirmationHandler(a.engine),
		Moderation:    handler.NewModerationHandler(dispatcher, bus),
		ModerationLog: handler.NewModerationLogHandler(logReader),
		Health:        handler.NewHealthHandler(checks),
		Docs:          handler.NewDocsHandler(),
		Events:        websocket.NewHandler(hub, cfg.CORSOrigins),
		Metrics:       promhttp.Handler(),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}
	return nil
}

func (a *App) tokenStore(checks map[string]handler.HealthCheck) (tokenstore.Store, error) {
	cfg := a.cfg

	if cfg.TokenStore != config.TokenStoreRedis {
		store, err := tokenstore.NewFileStore(cfg.TokenFile, cfg.TokenSealKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token file: %w", err)
		}
		slog.Info("token store ready", "kind", config.TokenStoreFile, "path", cfg.TokenFile, "sealed", cfg.TokenSealKey != "")
		return store, nil
	}

	ctx, cancel := context.WithTimeout(a.base, 5*time.Second)
	defer cancel()

	client, err := tokenstore.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = client.Close() })
	checks["redis"] = redisCheck(client)

	slog.Info("token store ready", "kind", config.TokenStoreRedis, "addr", cfg.RedisAddr, "key", cfg.RedisTokenKey)
	return tokenstore.NewRedisStore(client, cfg.RedisTokenKey), nil
}

func redisCheck(client *redis.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func (a *App) moderationRepository(checks map[string]handler.HealthCheck) (*repository.ModerationRepository, error) {
	ctx, cancel := context.WithTimeout(a.base, 10*time.Second)
	defer cancel()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Config{
		URL:      a.cfg.DatabaseURL,
		MaxConns: a.cfg.DBMaxConns,
		MinConns: a.cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	checks["database"] = db.Health

	return repository.NewModerationRepository(db.Pool), nil
}

// Run serves until SIGINT or SIGTERM. The persisted session is restored in
// the background; guards answer with a waiting page until it settles.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(a.base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.restoreSession()

	if err := a.scheduler.Start(); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("console starting", "addr", a.server.Addr, "backend", a.cfg.BackendURL)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	return a.shutdown()
}

func (a *App) restoreSession() {
	ctx, cancel := context.WithTimeout(a.base, a.cfg.BackendTimeout*time.Duration(a.cfg.BackendMaxRetries+1))
	defer cancel()

	if err := a.session.Restore(ctx); err != nil {
		slog.Info("no session restored", "error", err)
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("console shutting down")
	err := a.server.Shutdown(ctx)

	a.scheduler.Stop(ctx)

	commits := make(chan struct{})
	go func() {
		a.engine.Wait()
		close(commits)
	}()
	select {
	case <-commits:
	case <-ctx.Done():
		slog.Warn("moderation commits still running at shutdown")
	}

	a.cleanup()

	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("console stopped")
	return nil
}

func (a *App) cleanup() {
	a.cancelBase()
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
