package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/config"
	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/internal/observability"
	"github.com/upb/sorobai/backend/internal/prompt"
	"github.com/upb/sorobai/backend/internal/rag"
	"github.com/upb/sorobai/backend/middleware"
	"github.com/upb/sorobai/backend/repositories"
	"github.com/upb/sorobai/backend/repositories/postgres"
	"github.com/upb/sorobai/backend/repositories/sqlite"
	"github.com/upb/sorobai/backend/services/audit"
	"github.com/upb/sorobai/backend/services/embedding"
	"github.com/upb/sorobai/backend/services/inference"
	"github.com/upb/sorobai/backend/services/ingest"
	"github.com/upb/sorobai/backend/services/providers"
	"github.com/upb/sorobai/backend/services/providers/openai"
	"github.com/upb/sorobai/backend/services/retrieval"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	Redis  *redis.Client

	// Repositories
	Fragments    repositories.FragmentRepository
	ChatRequests repositories.ChatRequestRepository
	TxManager    repositories.TransactionManager
	Store        repositories.Pinger
	closeStore   func() error

	// Collaborators
	Embedder embedding.Embedder
	Provider providers.Provider
	Metrics  *observability.InMemoryMetrics

	// Services
	Audit     *audit.AuditService
	auditUp   bool
	Retrieval *retrieval.Service
	Inference *inference.InferenceService
	Ingest    *ingest.Service

	// HTTP
	Tokens         *middleware.HMACValidator // nil when auth is disabled
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
}

// NewDependencies creates and wires up all application dependencies.
// The request log workers are started; Close stops them.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	deps.initCache(ctx, cfg)

	if err := deps.initEmbedder(ctx, cfg); err != nil {
		deps.closeQuietly()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	deps.initProvider(cfg)

	if err := deps.initServices(cfg); err != nil {
		deps.closeQuietly()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.Store.Driver),
		zap.String("generation_model", deps.Inference.Model()),
		zap.String("embedding_model", deps.Embedder.Model()),
		zap.Bool("auth", deps.AuthMiddleware.Enabled()),
		zap.Bool("rate_limit", deps.RateLimiter.Enabled()))
	return deps, nil
}

// initStore opens the configured fragment store
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	var repos *repositories.Repositories

	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		store, err := sqlite.NewStore(cfg.Store.SQLitePath, d.Logger)
		if err != nil {
			return err
		}
		repos = store.Repositories()
		d.closeStore = store.Close

		d.Logger.Info("sqlite store opened", zap.String("path", store.Path()))

	case config.StoreDriverPostgres:
		factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		d.closeStore = factory.Close

		if err := factory.GetDB().PingContext(ctx); err != nil {
			_ = factory.Close()
			return fmt.Errorf("database ping failed: %w", err)
		}
		if cfg.Store.InitSchema {
			if err := factory.InitSchema(ctx, cfg.Embedding.Dimensions); err != nil {
				_ = factory.Close()
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
		}
		repos = factory.NewRepositories()

		d.Logger.Info("database connection established",
			zap.String("connection", cfg.Database.LogString()))

	default:
		return fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	d.Fragments = repos.Fragments
	d.ChatRequests = repos.ChatRequests
	d.TxManager = repos.Transactions
	d.Store = repos.Health
	return nil
}

// initCache connects to Redis when configured. The cache is optional, so an
// unreachable server only disables it.
func (d *Dependencies) initCache(ctx context.Context, cfg *config.Config) {
	if !cfg.CacheEnabled() {
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		d.Logger.Warn("redis unreachable, embedding cache disabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
		_ = client.Close()
		return
	}

	d.Redis = client
	d.Logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
}

func (d *Dependencies) initEmbedder(ctx context.Context, cfg *config.Config) error {
	e, err := embedding.New(ctx, cfg.Embedding, d.Redis, cfg.Redis.TTL, d.Logger)
	if err != nil {
		return err
	}
	d.Embedder = e
	return nil
}

// initProvider configures the OpenAI-compatible generation endpoint
func (d *Dependencies) initProvider(cfg *config.Config) {
	gen := cfg.Providers.Generation
	if gen.APIKey == "" {
		d.Logger.Warn("no generation API key configured, answers will fail upstream")
	}

	d.Provider = openai.NewOpenAIAdapter(providers.ProviderConfig{
		Name:         "openrouter",
		APIKey:       gen.APIKey,
		BaseURL:      gen.BaseURL,
		DefaultModel: gen.Model,
		MaxTokens:    gen.MaxTokens,
		Timeout:      gen.Timeout,
		MaxRetries:   gen.MaxRetries,
	})
}

// initServices builds the pipeline from the leaves up
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Audit = audit.NewAuditService(d.ChatRequests, d.Logger, audit.Config{
		BufferSize:  cfg.Pipeline.LogBufferSize,
		WorkerCount: cfg.Pipeline.LogWorkers,
	})
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start request log: %w", err)
	}
	d.auditUp = true

	selectorCfg := rag.DefaultSelectorConfig()
	if cfg.Retrieval.Entity != "" {
		selectorCfg.Entity = cfg.Retrieval.Entity
	}
	if cfg.Retrieval.CanonicalFile != "" {
		selectorCfg.CanonicalFile = cfg.Retrieval.CanonicalFile
	}

	d.Retrieval = retrieval.NewService(
		d.Fragments,
		d.Embedder,
		rag.NewClassifier(rag.DefaultVocabulary()),
		rag.NewSelector(selectorCfg),
		cfg.Retrieval.Overfetch,
		d.Logger,
	)

	prompts, err := prompt.NewBuilder(selectorCfg.CanonicalFile)
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}

	d.Inference = inference.NewInferenceService(
		d.Retrieval,
		d.Provider,
		prompts,
		codecheck.NewValidator(),
		d.Audit,
		d.Metrics,
		inference.Config{
			Timeout:          cfg.Pipeline.Timeout,
			Model:            cfg.Providers.Generation.Model,
			MaxTokens:        cfg.Providers.Generation.MaxTokens,
			ValidateAnswers:  cfg.Pipeline.ValidateAnswers,
			RegenerateOnFail: cfg.Pipeline.RegenerateOnFail,
			DefaultK:         cfg.Retrieval.DefaultK,
			Temperature:      cfg.Pipeline.Temperature,
		},
		d.Logger,
	)

	d.Ingest = ingest.NewService(
		docsFS(cfg.Ingest.DocsPath),
		d.Fragments,
		d.TxManager,
		d.Embedder,
		rag.NewChunker(rag.ChunkerConfig{
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
		}),
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initAuth enables bearer auth when a JWT secret is configured
func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.AuthEnabled() {
		d.Tokens = middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		d.AuthMiddleware = middleware.NewAuthMiddleware(d.Tokens, d.Logger)
		d.Logger.Info("bearer auth enabled")
	} else {
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		d.Logger.Warn("AUTH_JWT_SECRET not set, API is unauthenticated")
	}

	d.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, d.Logger)
}

func docsFS(path string) fs.FS {
	return os.DirFS(path)
}

func (d *Dependencies) closeQuietly() {
	if err := d.Close(context.Background()); err != nil {
		d.Logger.Warn("cleanup after failed initialization", zap.Error(err))
	}
}

// Close gracefully shuts down all dependencies. The request log is drained
// first so pending entries reach the store before it closes.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.auditUp {
		d.auditUp = false
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop request log: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.Redis = nil
	}

	if d.closeStore != nil {
		if err := d.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		} else {
			d.Logger.Info("store closed")
		}
		d.closeStore = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
