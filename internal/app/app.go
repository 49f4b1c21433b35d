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

	"go-iot-backend/internal/cache"
	"go-iot-backend/internal/config"
	"go-iot-backend/internal/database"
	"go-iot-backend/internal/event"
	"go-iot-backend/internal/handler"
	"go-iot-backend/internal/middleware"
	"go-iot-backend/internal/mqtt"
	"go-iot-backend/internal/repository"
	"go-iot-backend/internal/router"
	"go-iot-backend/internal/service"
	"go-iot-backend/internal/tsdb"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	handler.ExposeInternalErrors(cfg.Development())

	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.cleanup()
		}
	}()

	ctx := context.Background()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:          cfg.DatabaseURL,
		MaxConns:     cfg.DBMaxConns,
		MinConns:     cfg.DBMinConns,
		PingAttempts: 5,
		PingBackoff:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.onClose(db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	readingRepo := repository.NewReadingRepository(pool)
	controlRepo := repository.NewControlRepository(pool)
	slog.Info("database ready")

	bus := event.NewBus()

	var controlCache service.ControlCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.onClose(func() { _ = redisClient.Close() })
		controlCache = cache.NewControlCache(redisClient, cfg.ControlCacheTTL)
		slog.Info("control cache enabled", "ttl", cfg.ControlCacheTTL)
	}

	auditService := service.NewAuditService(userRepo)
	authService, err := service.NewAuthService(cfg.JWTSecret, userRepo, service.NewBcryptHasher(), auditService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	telemetryService := service.NewTelemetryService(readingRepo, bus)
	controlService := service.NewControlService(controlRepo, controlCache, bus)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	appRouter := router.New(cfg, authMiddleware,
		handler.NewAuthHandler(authService, auditService),
		handler.NewDistanceHandler(telemetryService),
		handler.NewControlHandler(controlService),
		handler.NewHealthHandler(db),
	)

	workersCtx, workersCancel := context.WithCancel(context.Background())
	app.onClose(workersCancel)

	if cfg.MQTT.Enabled() {
		if err := startMQTT(workersCtx, app, cfg.MQTT, bus, telemetryService, controlService); err != nil {
			return nil, err
		}
	}

	if cfg.Influx.Enabled() {
		influx, err := tsdb.Connect(cfg.Influx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to influxdb: %w", err)
		}
		app.onClose(influx.Close)

		events, unsubscribe := bus.Subscribe()
		app.onClose(unsubscribe)
		go tsdb.NewSink(influx.Writer()).Run(workersCtx, events)
	}

	if cfg.RetentionDays > 0 {
		slog.Info("retention enabled", "days", cfg.RetentionDays, "interval", cfg.RetentionInterval)
		go telemetryService.StartRetentionTicker(workersCtx, cfg.RetentionInterval, cfg.RetentionDays)
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	ok = true
	return app, nil
}

func startMQTT(
	ctx context.Context,
	app *App,
	cfg config.MQTTConfig,
	bus event.Bus,
	telemetry *service.TelemetryService,
	control *service.ControlService,
) error {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	app.onClose(client.Close)

	bridge := mqtt.NewBridge(client, telemetry, mqtt.Topics{Prefix: cfg.TopicPrefix})
	if err := bridge.Start(); err != nil {
		return err
	}

	state, err := control.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to read control state: %w", err)
	}
	if err := bridge.PublishControl(event.ControlChanged{TV: state.TV, UpdatedAt: state.UpdatedAt}); err != nil {
		slog.Warn("initial control state not published", "error", err)
	}

	events, unsubscribe := bus.Subscribe()
	app.onClose(unsubscribe)
	go bridge.Run(ctx, events)
	return nil
}

// onClose registers a cleanup step. Steps run in reverse order.
func (a *App) onClose(fn func()) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
