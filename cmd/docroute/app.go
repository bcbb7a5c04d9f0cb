package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docroute/docroute/internal/classify"
	"github.com/docroute/docroute/internal/config"
	"github.com/docroute/docroute/internal/engine"
	"github.com/docroute/docroute/internal/extract"
	"github.com/docroute/docroute/internal/extraction"
	"github.com/docroute/docroute/internal/pipeline"
	"github.com/docroute/docroute/internal/storage"
)

// hostedDefaultModel is llm.model's default; it names a hosted model that
// Ollama does not serve, so the ollama provider swaps in defaultOllamaModel.
const (
	hostedDefaultModel = "llama-3.3-70b-versatile"
	defaultOllamaModel = "llama3.1"
)

// app is the wired processing stack shared by process and serve.
type app struct {
	cfg        config.Config
	model      string
	engine     engine.Engine
	threads    *storage.Threads
	dispatcher *pipeline.Dispatcher
}

// loadConfig loads configuration and installs the slog default handler.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		setupLogging(logLevel)
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func modelFor(cfg config.Config) string {
	if cfg.LLM.Provider == config.ProviderOllama && (cfg.LLM.Model == "" || cfg.LLM.Model == hostedDefaultModel) {
		return defaultOllamaModel
	}
	return cfg.LLM.Model
}

func newEngine(cfg config.Config) (engine.Engine, error) {
	if err := cfg.RequireLLMCredentials(); err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Provider:      cfg.LLM.Provider,
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		OllamaBaseURL: cfg.Ollama.BaseURL,
	})
}

func openThreads(ctx context.Context, cfg config.Config) (*storage.Threads, error) {
	return storage.Open(ctx, storage.Config{
		Backend:       cfg.Store.Backend,
		RedisHost:     cfg.Redis.Host,
		RedisPort:     cfg.Redis.Port,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		DataDir:       cfg.Storage.DataDir,
		Timeout:       cfg.Store.Timeout,
	}, slog.Default())
}

// newApp builds the engine, thread store and dispatcher. With the ollama
// provider the model is pulled if missing; progress goes to progress.
func newApp(ctx context.Context, cfg config.Config, reg prometheus.Registerer, progress io.Writer) (*app, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	model := modelFor(cfg)
	if cfg.LLM.Provider == config.ProviderOllama {
		if err := engine.EnsureReady(ctx, eng, model, progress); err != nil {
			return nil, err
		}
	}

	threads, err := openThreads(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log := slog.Default()
	client := extraction.New(eng, extraction.Options{
		Model:         model,
		Timeout:       cfg.LLM.Timeout,
		RatePerSecond: cfg.LLM.RatePerSecond,
		Logger:        log,
	})
	d := pipeline.NewDispatcher(pipeline.Deps{
		Classifier: classify.New(client, log),
		JSON:       extract.NewJSONExtractor(client, log),
		Email:      extract.NewEmailExtractor(client, log),
		Threads:    threads,
		Metrics:    pipeline.NewMetrics(reg),
		Logger:     log,
	})

	log.Debug("processing stack ready", "engine", eng.Name(), "model", model, "store", cfg.Store.Backend)
	return &app{
		cfg:        cfg,
		model:      model,
		engine:     eng,
		threads:    threads,
		dispatcher: d,
	}, nil
}

func (a *app) Close() error {
	return a.threads.Close()
}
