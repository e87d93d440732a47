package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/bouncer/config"
	"github.com/dev-mohitbeniwal/bouncer/controller"
	"github.com/dev-mohitbeniwal/bouncer/db"
	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/middleware"
	"github.com/dev-mohitbeniwal/bouncer/router"
	"github.com/dev-mohitbeniwal/bouncer/service"
	"github.com/dev-mohitbeniwal/bouncer/util"
)

func buildServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// Initialize configuration
	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	// Initialize logger
	if err := logger.InitLogger(cfg.Log.Dir); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	backends, closeBackends, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer closeBackends()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)
	util.NewNotificationService(eventBus)

	auditService, err := newAuditService(cfg.Elasticsearch)
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}

	services, err := service.InitializeServices(cfg, backends, auditService, eventBus)
	if err != nil {
		return err
	}

	services.PolicyCache.Start(ctx)
	defer services.PolicyCache.Stop()
	syncDone := services.Bouncer.StartSyncLoop(ctx, cfg.Distribution.Interval)

	routerOpts := router.Options{
		JWTSecret:  cfg.Auth.JWTSecret,
		AdminGroup: cfg.Auth.AdminGroup,
	}
	if cfg.RateLimit.Enabled {
		if backends.Redis != nil {
			routerOpts.Limiter = db.NewRedisLimiter(backends.Redis)
		} else {
			logger.Info("Redis not configured, rate limits are enforced per instance")
			routerOpts.Limiter = middleware.NewLocalLimiter()
		}
		routerOpts.RateLimitRequests = cfg.RateLimit.Requests
		routerOpts.RateLimitDuration = cfg.RateLimit.Per
	}

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	r := router.SetupRouter(controller.InitializeControllers(services.Bouncer), routerOpts)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	<-syncDone
	eventBus.Wait()

	logger.Info("Server exiting")
	return nil
}
