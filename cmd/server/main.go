package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/config"
	"github.com/vsudarshan995/RAG-AI/internal/gemini"
	"github.com/vsudarshan995/RAG-AI/internal/handler"
	"github.com/vsudarshan995/RAG-AI/internal/llm"
	"github.com/vsudarshan995/RAG-AI/internal/middleware"
	"github.com/vsudarshan995/RAG-AI/internal/pipeline"
	"github.com/vsudarshan995/RAG-AI/internal/registry"
	"github.com/vsudarshan995/RAG-AI/internal/repository"
	"github.com/vsudarshan995/RAG-AI/internal/retrieval"
	"github.com/vsudarshan995/RAG-AI/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// generator is what the pipeline and the health endpoint need from an inference client
type generator interface {
	pipeline.Generator
	handler.ModelInfoer
	Close() error
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Claim Evaluation Service...", zap.String("config", configPath))

	llmClient := newInferenceClient(cfg, logger)
	defer llmClient.Close()

	auditRepo := newAuditRepository(cfg, logger)
	defer auditRepo.Close()

	retriever := newRetriever(cfg, logger)

	reg := registry.New()

	engine := pipeline.NewEngine(logger, pipeline.DefaultStages(pipeline.Dependencies{
		Audit:           auditRepo,
		Retriever:       retriever,
		LLM:             llmClient,
		ComplianceRules: cfg.Pipeline.ComplianceRules,
		Logger:          logger,
	})...)

	dispatcher := service.NewDispatcher(engine, reg, auditRepo, cfg.Dispatcher.MaxConcurrent, logger)
	reconciler := service.NewReconciler(auditRepo, reg, logger)

	// Close out anything the previous process left running before taking traffic.
	sweepCtx, cancelSweep := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := reconciler.Sweep(sweepCtx); err != nil {
		logger.Error("Orphan sweep failed", zap.Error(err))
	}
	cancelSweep()

	auth := service.NewAuthService(
		cfg.Auth.AdminUsername,
		cfg.Auth.AdminPasswordHash,
		cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTL,
		logger,
	)
	if !auth.Enabled() {
		logger.Warn("Admin authentication not configured; admin endpoints will reject every request")
	}

	apiHandler := handler.NewHandler(handler.Deps{
		Dispatcher: dispatcher,
		Status:     service.NewStatusReconstructor(auditRepo, reg),
		Reconciler: reconciler,
		Advisor:    service.NewAdvisor(retriever, llmClient, logger),
		Auth:       auth,
		Registry:   reg,
		Model:      llmClient,
	}, logger)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), middleware.CORS())
	apiHandler.RegisterRoutes(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	modelName := "unknown"
	if m, ok := llmClient.GetModelInfo()["model"].(string); ok {
		modelName = m
	}
	logger.Info("Claim Evaluation Service is running",
		zap.String("address", serverAddr),
		zap.String("model", modelName),
		zap.String("database", cfg.Database.Type),
		zap.String("retrieval", cfg.Retrieval.Type))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Running pipelines are not cancellable; give them a grace period. Anything
	// still running is picked up by the next startup sweep.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := dispatcher.Wait(drainCtx); err != nil {
		logger.Warn("Exiting with evaluations still running", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

func newInferenceClient(cfg *config.Config, logger *zap.Logger) generator {
	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
		}, logger)
		if err == nil {
			logger.Info("Multi-provider client initialized",
				zap.Int("provider_count", len(cfg.Providers)))
			return multiClient
		}
		logger.Warn("Failed to initialize multi-provider client, falling back to Gemini",
			zap.Error(err))
	}

	if cfg.Gemini.APIKey == "" {
		logger.Fatal("No inference provider configured. Set providers or gemini.api_key in the config file")
	}

	geminiClient, err := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		ModelName:  cfg.Gemini.ModelName,
		MaxRetries: cfg.Gemini.MaxRetries,
		RetryDelay: 2 * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}

	return llm.NewRateLimitedProvider(geminiClient, 8, logger)
}

func newAuditRepository(cfg *config.Config, logger *zap.Logger) repository.AuditRepository {
	switch cfg.Database.Type {
	case "postgres":
		db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}

		migrateLog := logrus.New()
		migrateLog.SetFormatter(&logrus.JSONFormatter{})
		if err := repository.MigrateDB(db, cfg.Database.MigrationsPath, migrateLog); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}

		return repository.NewPostgresAuditRepository(db, logger)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}

		repo, err := repository.NewSQLiteAuditRepository(cfg.Database.Path, logger)
		if err != nil {
			logger.Fatal("Failed to initialize repository", zap.Error(err))
		}
		return repo
	}
}

func newRetriever(cfg *config.Config, logger *zap.Logger) retrieval.Retriever {
	if cfg.Retrieval.Type == "http" {
		client := retrieval.NewClient(cfg.Retrieval.URL, cfg.Retrieval.Timeout, logger)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Retrieval.Timeout)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			// Not fatal: the pipeline degrades to empty context while search is down.
			logger.Warn("Retrieval service not reachable", zap.String("url", cfg.Retrieval.URL), zap.Error(err))
		}
		return client
	}

	if cfg.Retrieval.CorpusPath == "" {
		logger.Warn("No retrieval corpus configured; every search will return no matches")
		return retrieval.NewMemoryIndex()
	}

	idx, err := retrieval.LoadCorpus(cfg.Retrieval.CorpusPath)
	if err != nil {
		logger.Fatal("Failed to load retrieval corpus", zap.Error(err))
	}
	logger.Info("Retrieval corpus loaded",
		zap.String("path", cfg.Retrieval.CorpusPath),
		zap.Int("policy", idx.Len(retrieval.NamespacePolicy)),
		zap.Int("history", idx.Len(retrieval.NamespaceHistory)))
	return idx
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
