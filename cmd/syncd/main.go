package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wavechat/client/internal/application/connectivity"
	"github.com/wavechat/client/internal/application/queue"
	"github.com/wavechat/client/internal/application/session"
	"github.com/wavechat/client/internal/application/syncsched"
	"github.com/wavechat/client/internal/infrastructure/backend"
	"github.com/wavechat/client/internal/infrastructure/cache"
	"github.com/wavechat/client/internal/infrastructure/config"
	"github.com/wavechat/client/internal/infrastructure/event"
	"github.com/wavechat/client/internal/infrastructure/logger"
	"github.com/wavechat/client/internal/infrastructure/persistence"
	"github.com/wavechat/client/internal/interfaces/http/handler"
	"github.com/wavechat/client/internal/interfaces/http/middleware"
	"github.com/wavechat/client/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting sync daemon",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	// Open the local store
	db, err := persistence.Open(cfg.Store, cfg.Log, log)
	if err != nil {
		log.Fatal("Failed to open local store", zap.Error(err))
	}
	log.Info("Local store ready", zap.String("path", cfg.Store.Path))

	// Repositories
	queueRepo := persistence.NewGormQueueRepository(db)
	stateRepo := persistence.NewGormStateRepository(db)

	// Credential store owns the device identity
	creds := session.NewCredentialStore(stateRepo, log)
	deviceID, err := creds.DeviceID(context.Background())
	if err != nil {
		log.Fatal("Failed to establish device identity", zap.Error(err))
	}
	log.Info("Device identity ready", zap.String("device_id", deviceID))

	// Event bus
	bus := event.NewBus(log)

	// Backend client
	client := backend.NewClient(cfg.Backend, deviceID, log)

	// Connectivity monitor
	monitor := connectivity.NewMonitor(client, bus, log,
		connectivity.WithProbeInterval(cfg.Connectivity.ProbeInterval),
		connectivity.WithProbeTimeout(cfg.Connectivity.ProbeTimeout),
		connectivity.WithMirror(stateRepo),
	)

	// User-scoped cache
	store, err := cache.NewStoreFromConfig(cfg)
	if err != nil {
		log.Fatal("Failed to initialize cache store", zap.Error(err))
	}
	userCache := cache.NewUserScopedCache(store, bus, log,
		cache.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cache.WithJanitorInterval(cfg.Cache.JanitorInterval),
		cache.WithOnlineCheck(monitor.Online),
	)
	defer userCache.Close()

	// Session validator
	validator := session.NewValidator(client, creds, monitor, bus, stateRepo, cfg.Session, log)

	// Offline action queue
	actionQueue := queue.NewQueue(queueRepo, client, validator, bus, cfg.Queue, log)

	// Sync scheduler
	scheduler := syncsched.NewScheduler(monitor, validator, actionQueue, client, client, userCache, bus, cfg.Scheduler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)
	defer monitor.Stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Session restore runs in the background so the UI is never blocked
	// on the network. The ready ceiling guarantees an outcome either way.
	validator.StartReadyFallback(ctx)
	go func() {
		result := validator.Validate(ctx)
		if result.User != nil {
			// A degraded restore still scopes the cache to the last
			// known identity so stale reads work offline.
			userCache.SetOwner(result.User.ID)
		}
	}()

	// Gin engine for the local UI API
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	authHandler := handler.NewAuthHandler(client, validator, userCache)
	statusHandler := handler.NewStatusHandler(monitor, validator, scheduler, actionQueue)
	actionHandler := handler.NewActionHandler(actionQueue)
	syncHandler := handler.NewSyncHandler(scheduler)

	router.NewRouter(engine).
		Register(statusHandler).
		Register(authHandler).
		Register(actionHandler).
		Register(syncHandler).
		Setup()

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("Local API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start local API", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Local API forced to shutdown", zap.Error(err))
	}

	log.Info("Daemon exited gracefully")
}
