package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/handler"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/metrics"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/middleware"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/orchestrator"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/service"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded successfully", "version", version)

	metrics.Register()

	extractor := service.NewExtractorClient(&cfg.Extractor)
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := extractor.Init(probeCtx); err != nil {
		// sessions check again when they start capturing
		slog.Warn("face extractor not ready", "url", cfg.Extractor.APIURL, "error", err)
	}
	cancel()

	registry := orchestrator.NewRegistry()
	deps := handler.SessionDeps{
		Registry:  registry,
		Store:     service.NewSessionStore(&cfg.Store),
		Backend:   service.NewGatewayClient(&cfg.Gateway),
		Extractor: extractor,
		Scheduler: capture.NewFrameScheduler(cfg.Capture.FrameInterval()),
		Capture:   cfg.Capture,
	}

	if cfg.Minio.Enabled() {
		archive, err := service.NewReceiptArchive(&cfg.Minio)
		if err != nil {
			return fmt.Errorf("failed to initialize receipt archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure receipt bucket: %w", err)
		}
		deps.Receipts = archive
		deps.Sinks = append(deps.Sinks, archive)
	} else {
		slog.Info("receipt archive disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, handler.NewSessionHandler(deps), handler.NewAuthHandler(registry))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server...", "live_sessions", registry.Len())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	err := multierr.Combine(
		srv.Shutdown(shutdownCtx),
		registry.StopAll(shutdownCtx, "Agent shutting down"),
	)
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, sessions *handler.SessionHandler, auth *handler.AuthHandler) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())

	router.GET("/health", middleware.Quiet(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", middleware.Quiet(), gin.WrapH(metrics.Handler()))

	limit := middleware.RateLimit(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	api := router.Group("/api")
	api.Use(noStoreMiddleware())
	api.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		api.GET("/auth/me", auth.GetCurrentUser)

		api.POST("/payments", limit, sessions.StartPayment)
		api.POST("/enrollments", limit, sessions.StartEnrollment)

		api.GET("/sessions", sessions.List)
		api.GET("/sessions/:id", sessions.Get)
		api.DELETE("/sessions/:id", sessions.Stop)
		api.POST("/sessions/:id/frames", middleware.Quiet(), sessions.PushFrame)
		api.GET("/sessions/:id/receipt", sessions.Receipt)
	}

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// noStoreMiddleware keeps session state and receipt links out of caches
func noStoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
