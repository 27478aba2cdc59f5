package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/pharmaguard/internal/analysis"
	"github.com/inodb/pharmaguard/internal/config"
	"github.com/inodb/pharmaguard/internal/duckdb"
	"github.com/inodb/pharmaguard/internal/explain"
	"github.com/inodb/pharmaguard/internal/knowledge"
)

// app holds the components shared by commands.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	kb          *knowledge.Base
	orch        *analysis.Orchestrator
	llmProvider string
}

func newApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	kb, err := loadKnowledge(cfg.Knowledge, logger)
	if err != nil {
		return nil, err
	}

	provider, name, err := newProvider(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	orch := analysis.New(kb, provider, analysis.Options{
		MaxFileSize:    cfg.Upload.MaxBytes,
		ExplainTimeout: cfg.Analysis.ExplainTimeout,
		Workers:        cfg.Analysis.Workers,
	})
	orch.SetLogger(logger)

	return &app{cfg: cfg, logger: logger, kb: kb, orch: orch, llmProvider: name}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// loadKnowledge picks the knowledge source. With both a YAML file and a
// snapshot configured, the snapshot is reused while it matches the file and
// rebuilt otherwise.
func loadKnowledge(kc config.KnowledgeConfig, logger *zap.Logger) (*knowledge.Base, error) {
	switch {
	case kc.DuckDB == "" && kc.File == "":
		return knowledge.Default()
	case kc.DuckDB == "":
		return knowledge.LoadFile(kc.File)
	}

	store, err := duckdb.Open(kc.DuckDB)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if kc.File == "" {
		kb, err := store.LoadKnowledgeBase()
		if errors.Is(err, duckdb.ErrEmptySnapshot) {
			logger.Info("seeding empty snapshot with the embedded knowledge base", zap.String("path", kc.DuckDB))
			if kb, err = knowledge.Default(); err != nil {
				return nil, err
			}
			return kb, store.WriteKnowledgeBase(kb.Spec())
		}
		return kb, err
	}

	fp, err := duckdb.StatFile(kc.File)
	if err != nil {
		return nil, fmt.Errorf("stat knowledge file: %w", err)
	}
	if store.SourceMatches(fp) {
		logger.Debug("using knowledge snapshot", zap.String("path", kc.DuckDB))
		return store.LoadKnowledgeBase()
	}

	kb, err := knowledge.LoadFile(kc.File)
	if err != nil {
		return nil, err
	}
	logger.Info("refreshing knowledge snapshot",
		zap.String("source", kc.File),
		zap.String("path", kc.DuckDB),
		zap.String("version", kb.Version()))
	if err := store.WriteKnowledgeBase(kb.Spec()); err != nil {
		return nil, err
	}
	if err := store.SetSource(fp); err != nil {
		return nil, err
	}
	return kb, nil
}

// newProvider builds the explanation provider, or nil when explanations are off.
func newProvider(lc config.LLMConfig, logger *zap.Logger) (explain.Provider, string, error) {
	if !lc.Enabled || lc.APIKey == "" {
		logger.Debug("explanations disabled")
		return nil, "", nil
	}

	client := explain.NewClient(explain.Config{
		BaseURL:     lc.BaseURL,
		APIKey:      lc.APIKey,
		Model:       lc.Model,
		Temperature: lc.Temperature,
		Timeout:     lc.Timeout,
		MaxRetries:  lc.MaxRetries,
		RateLimit:   lc.RateLimit,
	})
	client.SetLogger(logger)

	if lc.CacheSize <= 0 {
		return client, lc.Model, nil
	}
	cached, err := explain.NewCached(client, lc.CacheSize)
	if err != nil {
		return nil, "", fmt.Errorf("explanation cache: %w", err)
	}
	return cached, lc.Model, nil
}
