package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/sprauser-coder/Cataloro-sub005/internal/adapters/primary/http"
	mw "github.com/sprauser-coder/Cataloro-sub005/internal/adapters/primary/http/middleware"
	"github.com/sprauser-coder/Cataloro-sub005/internal/adapters/secondary/postgres"
	"github.com/sprauser-coder/Cataloro-sub005/internal/auth"
	"github.com/sprauser-coder/Cataloro-sub005/internal/config"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/registry"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/services"
	"github.com/sprauser-coder/Cataloro-sub005/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.Token.Secret)

	presence := registry.NewPresence(registry.PresenceConfig{
		HeartbeatTimeout: cfg.Realtime.HeartbeatTimeout,
		SweepInterval:    cfg.Realtime.HeartbeatSweep,
	}, logger)
	go presence.Run(ctx)

	rooms := registry.NewRooms(presence, logger)

	// Repositories (Secondary Adapters)
	notificationRepo := postgres.NewNotificationRepository(pool)

	// Services (Core)
	router := services.NewRouter(presence, rooms, notificationRepo, logger)
	notificationService := services.NewNotificationService(notificationRepo, logger)

	// Presence transitions fan out through the router as presence_change
	// events. Wired here to keep the registry free of a router dependency.
	presence.SetPresenceHook(router.HandlePresenceChange)

	// 5. Initialize Rate Limiters
	var generalRateLimiter *mw.RateLimiter
	var syncRateLimiter *mw.RateLimitByKey
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})

		syncRateLimiter = mw.NewRateLimitByKey(cfg.RateLimit.SyncRPS, cfg.RateLimit.SyncBurst)
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Handlers (Primary Adapters)
	eventHandler := httpAdapter.NewEventHandler(router, rooms, errorHandler, logger)
	notificationHandler := httpAdapter.NewNotificationHandler(notificationService, syncRateLimiter, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(presence, rooms, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, rooms, cfg.Polling, cfg.App.Version)

	// 7. Background Maintenance
	go runRetentionSweep(ctx, notificationRepo, cfg.Realtime, logger)

	// 8. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))

	corsOrigins := cfg.WebSocket.AllowedOrigins
	if cfg.IsDevelopment() && len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if generalRateLimiter != nil {
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket route (Authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.TokenMiddleware(tokenManager))
			r.Route("/events", eventHandler.RegisterEventRoutes)
			r.Route("/rooms", eventHandler.RegisterRoomRoutes)
			r.Route("/notifications", notificationHandler.RegisterRoutes)
		})
	})

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// runRetentionSweep periodically expires notifications past the retention
// window.
func runRetentionSweep(ctx context.Context, repo interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}, cfg config.RealtimeConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.RetentionSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cfg.NotificationRetention)
			deleted, err := repo.DeleteExpired(ctx, cutoff)
			if err != nil {
				logger.Error("notification retention sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("expired notifications removed",
					"count", deleted,
					"cutoff", cutoff.UTC().Format(time.RFC3339),
				)
			}
		}
	}
}
