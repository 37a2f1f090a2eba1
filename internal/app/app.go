// Package app builds the search pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ayash-Bera/deathstroke/internal/config"
	"github.com/Ayash-Bera/deathstroke/internal/database"
	"github.com/Ayash-Bera/deathstroke/internal/enhancer"
	"github.com/Ayash-Bera/deathstroke/internal/fetcher"
	"github.com/Ayash-Bera/deathstroke/internal/health"
	"github.com/Ayash-Bera/deathstroke/internal/migration"
	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/Ayash-Bera/deathstroke/internal/repository"
	"github.com/Ayash-Bera/deathstroke/internal/searchapi"
	"github.com/Ayash-Bera/deathstroke/internal/services"
	"github.com/sirupsen/logrus"
)

var ErrNoDatabase = errors.New("no database configured")

type Options struct {
	// Memory keeps results in process memory instead of postgres and redis.
	Memory bool
}

type App struct {
	Config *config.Config
	Search *services.SearchService
	Health *health.HealthChecker
	Store  models.ResultStore
	DB     *database.Manager
	Repos  *repository.RepositoryManager
	LLM    *enhancer.Enhancer
	logger *logrus.Logger
}

func New(cfg *config.Config, logger *logrus.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	if err := a.openStore(opts); err != nil {
		return nil, err
	}

	var enh services.Enhancer
	if cfg.LLMEnabled() {
		e, err := newEnhancer(cfg, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM enhancer: %w", err)
		}
		a.LLM = e
		enh = e
	} else {
		logger.Warn("No LLM API key configured, search results will not be enhanced")
	}

	client := searchapi.NewClient(searchapi.Config{
		BaseURL:     cfg.Search.BaseURL,
		APIKey:      cfg.Search.APIKey,
		EngineID:    cfg.Search.EngineID,
		ResultCount: cfg.Search.ResultCount,
		RateLimit:   cfg.Search.RateLimit,
	}, logger)

	pages := fetcher.NewPageFetcher(fetcher.Config{
		Timeout:     cfg.Fetch.Timeout,
		Parallelism: cfg.Fetch.Parallelism,
		UserAgent:   cfg.Fetch.UserAgent,
	}, logger)

	a.Search = services.NewSearchService(client, pages, enh, a.Store, logger)
	a.Health = health.NewHealthChecker(logger, a.healthChecks()...)

	return a, nil
}

func (a *App) openStore(opts Options) error {
	if opts.Memory {
		a.logger.Info("Using in-memory result store")
		a.Store = repository.NewMemoryStore()
		return nil
	}

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: a.Config.Database.URL,
		RedisURL:    a.Config.Redis.URL,
		LogLevel:    a.Config.Log.Level,
	}, a.logger)
	if err != nil {
		return err
	}

	a.DB = dbManager
	a.Repos = repository.NewRepositoryManager(dbManager.DB)
	a.Store = a.Repos.Results
	if dbManager.Redis != nil {
		a.Store = database.NewCachedStore(a.Repos.Results, dbManager.Redis, a.Config.Cache.TTL, a.logger)
	}
	return nil
}

func newEnhancer(cfg *config.Config, logger *logrus.Logger) (*enhancer.Enhancer, error) {
	model, err := enhancer.NewOpenAIModel(enhancer.ModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, err
	}

	retry := enhancer.DefaultRetryConfig()
	retry.MaxRetries = cfg.LLM.MaxRetries

	return enhancer.New(model, logger,
		enhancer.WithPoolSize(cfg.LLM.Workers),
		enhancer.WithRateLimit(cfg.LLM.RateLimit),
		enhancer.WithRetryConfig(retry),
	)
}

func (a *App) healthChecks() []health.Check {
	if a.DB == nil {
		return nil
	}

	checks := []health.Check{{
		Name:     "postgresql",
		Critical: true,
		Probe:    func(context.Context) error { return a.DB.PingDatabase() },
	}}
	if a.DB.Redis != nil {
		checks = append(checks, health.Check{
			Name:  "redis",
			Probe: func(context.Context) error { return a.DB.PingRedis() },
		})
	}
	return checks
}

// Migrate runs schema migrations against the configured database.
func (a *App) Migrate() error {
	if a.DB == nil {
		return ErrNoDatabase
	}
	return migration.NewRunner(a.DB, a.DB.DB, a.logger).RunMigrations()
}

func (a *App) Close() {
	if a.LLM != nil {
		a.LLM.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.WithError(err).Error("Failed to close database connections")
		}
	}
}
