// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ayash-Bera/deathstroke/internal/api/handlers"
	"github.com/Ayash-Bera/deathstroke/internal/app"
	"github.com/Ayash-Bera/deathstroke/internal/config"
	"github.com/Ayash-Bera/deathstroke/internal/middleware"
	"github.com/Ayash-Bera/deathstroke/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	memory      = flag.Bool("memory", false, "Keep results in memory instead of postgres and redis")
	skipMigrate = flag.Bool("skip-migrations", false, "Don't run database migrations on startup")
)

func main() {
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	utils.InitLogger(cfg.Log.Level)
	logger := utils.GetLogger()

	if err := cfg.ValidateSearch(); err != nil {
		logger.WithError(err).Fatal("Search configuration validation failed")
	}

	a, err := app.New(cfg, logger, app.Options{Memory: *memory})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	if !*memory && !*skipMigrate {
		if err := a.Migrate(); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
	stopCleanup := make(chan struct{})
	go limiter.CleanupLoop(time.Minute, stopCleanup)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.SecurityHeaders(),
		limiter.RateLimit(),
	)

	handlers.NewSearchHandler(a.Search, a.Health, logger).Register(router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.Health.PeriodicHealthCheck(ctx, 30*time.Second)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")
	close(stopCleanup)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
