// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"eduforge/internal/common/config"
	"eduforge/internal/common/database"
	stderrors "eduforge/internal/common/errors"
	"eduforge/internal/common/logger"
	"eduforge/internal/common/observability"
	"eduforge/internal/curriculum"
	"eduforge/internal/models"
	"eduforge/internal/pipeline"
	"eduforge/pkg/registry"

	"eduforge/internal/nodes/calibrate"
	"eduforge/internal/nodes/enhance"
	"eduforge/internal/nodes/finalize"
	"eduforge/internal/nodes/generate"
	"eduforge/internal/nodes/retrieve"
	"eduforge/internal/nodes/validate"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	configPath := flag.String("config", "", "path to a config file; the default search path is used when empty")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting pipeline manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("pipeline-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Node registry manifest ---
	nodeRegistry, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("node registry load failed", zap.Error(err))
	}
	if err := nodeRegistry.Validate([]string{
		pipeline.NodeCalibrate, pipeline.NodeRetrieve, pipeline.NodeGenerate,
		pipeline.NodeValidate, pipeline.NodeEnhance, pipeline.NodeFinalize,
	}); err != nil {
		zapLog.Fatal("node registry invalid", zap.Error(err))
	}

	// --- Curriculum topic store ---
	curriculumStore := curriculum.NewStore(
		pg.DB, redis.Client,
		config.GetDuration(config.GetNodeConfig(cfg, pipeline.NodeRetrieve).CacheTTL*1000),
		&curriculumLoggerAdapter{log},
	)

	// --- Assemble the pipeline ---
	engine := buildEngine(cfg, esClient, redis, curriculumStore, log)
	zapLog.Info("Pipeline engine assembled", zap.Strings("nodes", engine.DescribeNodes()))
	for _, name := range engine.DescribeNodes() {
		if spec := nodeRegistry.Find(name); spec != nil {
			zapLog.Info("node manifest",
				zap.String("node", spec.ID),
				zap.String("stage", spec.Stage),
				zap.String("timeout", spec.Timeout),
				zap.Int("retries", spec.Retries),
			)
		}
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/questions", questionsHandler(engine, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		depCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		deps := map[string]string{"postgres": "ok", "redis": "ok", "elasticsearch": "ok"}
		ready := true
		if err := pg.Ping(depCtx); err != nil {
			deps["postgres"] = err.Error()
			ready = false
		}
		if err := redis.Ping(depCtx); err != nil {
			deps["redis"] = err.Error()
			ready = false
		}
		if err := esClient.Info(depCtx); err != nil {
			deps["elasticsearch"] = err.Error()
			ready = false
		}

		status := "ready"
		code := http.StatusOK
		if !ready {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       status,
			"dependencies": deps,
			"time":         time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: mux,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.App.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Pipeline manager stopped gracefully")
}

// buildEngine wires node handlers into the workflow engine.
func buildEngine(cfg *config.Config, es *database.ElasticsearchClient, redis *database.RedisClient, store *curriculum.Store, log logger.Logger) *pipeline.Engine {
	router := pipeline.NewRouter(cfg.Pipeline.MaxRetries)

	finalizeHandler := finalize.NewHandler(
		&finalize.Config{
			ValidationWeight:      cfg.Scoring.ValidationWeight,
			RetrievalWeight:       cfg.Scoring.RetrievalWeight,
			PersonalizationWeight: cfg.Scoring.PersonalizationWeight,
			DiversityShare:        cfg.Scoring.DiversityShare,
		},
		&finalizeLoggerAdapter{log},
	)

	engine := pipeline.NewEngine(
		pipeline.EngineConfig{
			MaxRetries:    cfg.Pipeline.MaxRetries,
			GlobalTimeout: config.GetDuration(cfg.Pipeline.GlobalTimeout),
		},
		router,
		finalizeHandler,
		log,
	)

	engine.Register(calibrate.NewNode(calibrate.NewHandler(
		calibrate.LoadConfig(),
		&calibrateLoggerAdapter{log},
	)))

	retrieveCfg := config.GetNodeConfig(cfg, pipeline.NodeRetrieve)
	engine.Register(retrieve.NewNode(retrieve.NewHandler(
		&retrieve.Config{
			Index:    cfg.Database.Elasticsearch.Index,
			TopK:     cfg.Pipeline.TopK,
			Timeout:  config.GetDuration(retrieveCfg.Timeout),
			CacheTTL: time.Duration(retrieveCfg.CacheTTL) * time.Second,
		},
		es.Client, redis.Client, store,
		&retrieveLoggerAdapter{log},
	)))

	generateCfg := config.GetNodeConfig(cfg, pipeline.NodeGenerate)
	engine.Register(generate.NewNode(generate.NewHandler(
		&generate.Config{
			GenAIBaseURL:       cfg.APIs.GenAI.BaseURL,
			APIKey:             cfg.APIs.GenAI.APIKey,
			Timeout:            config.GetDuration(cfg.APIs.GenAI.Timeout),
			MaxRetries:         generateCfg.MaxRetries,
			MaxTokens:          cfg.APIs.GenAI.MaxTokens,
			Temperature:        cfg.APIs.GenAI.Temperature,
			RouterRetries:      cfg.Pipeline.MaxRetries,
			MaxContextSnippets: cfg.Pipeline.TopK,
		},
		&generateLoggerAdapter{log},
	)))

	engine.Register(validate.NewNode(validate.NewHandler(
		validate.LoadConfig(),
		&validateLoggerAdapter{log},
	)))

	engine.Register(enhance.NewNode(enhance.NewHandler(
		enhance.LoadConfig(),
		&enhanceLoggerAdapter{log},
	)))

	return engine
}

// questionsHandler is the thin caller-facing boundary: decode, run, encode.
// The engine returns an error only for invalid requests; everything else
// degrades into the result.
func questionsHandler(engine *pipeline.Engine, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var request models.WorkflowRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
			return
		}
		if request.RequestID == "" {
			request.RequestID = uuid.New().String()
		}

		result, err := engine.Run(r.Context(), request)
		if err != nil {
			if stdErr, ok := err.(*stderrors.StandardError); ok && stdErr.Code == stderrors.ErrCodeInvalidRequest {
				writeError(w, http.StatusBadRequest, stdErr.Details)
				return
			}
			log.Error("pipeline run failed unexpectedly", map[string]interface{}{
				"requestId": request.RequestID,
				"error":     err.Error(),
			})
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Logger adapters for node packages that declare their own Logger interfaces
type calibrateLoggerAdapter struct {
	logger.Logger
}

func (a *calibrateLoggerAdapter) WithFields(fields map[string]interface{}) calibrate.Logger {
	return &calibrateLoggerAdapter{a.Logger.WithFields(fields)}
}

type retrieveLoggerAdapter struct {
	logger.Logger
}

func (a *retrieveLoggerAdapter) WithFields(fields map[string]interface{}) retrieve.Logger {
	return &retrieveLoggerAdapter{a.Logger.WithFields(fields)}
}

type generateLoggerAdapter struct {
	logger.Logger
}

func (a *generateLoggerAdapter) WithFields(fields map[string]interface{}) generate.Logger {
	return &generateLoggerAdapter{a.Logger.WithFields(fields)}
}

type validateLoggerAdapter struct {
	logger.Logger
}

func (a *validateLoggerAdapter) WithFields(fields map[string]interface{}) validate.Logger {
	return &validateLoggerAdapter{a.Logger.WithFields(fields)}
}

type enhanceLoggerAdapter struct {
	logger.Logger
}

func (a *enhanceLoggerAdapter) WithFields(fields map[string]interface{}) enhance.Logger {
	return &enhanceLoggerAdapter{a.Logger.WithFields(fields)}
}

type finalizeLoggerAdapter struct {
	logger.Logger
}

func (a *finalizeLoggerAdapter) WithFields(fields map[string]interface{}) finalize.Logger {
	return &finalizeLoggerAdapter{a.Logger.WithFields(fields)}
}

type curriculumLoggerAdapter struct {
	logger.Logger
}

func (a *curriculumLoggerAdapter) WithFields(fields map[string]interface{}) curriculum.Logger {
	return &curriculumLoggerAdapter{a.Logger.WithFields(fields)}
}
