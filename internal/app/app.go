// Package app wires configuration into the batch pipeline and its stores.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/batch"
	"github.com/influencer-lens/backend/internal/cache/redis"
	"github.com/influencer-lens/backend/internal/evaluation"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/llm/anthropic"
	"github.com/influencer-lens/backend/internal/llm/openai"
	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/internal/storage/sqlite"
	"github.com/influencer-lens/backend/pkg/config"
	"github.com/influencer-lens/backend/pkg/logger"
)

type App struct {
	Config     *config.Config
	Client     *llm.Client
	Submitter  *batch.Submitter
	Poller     *batch.Poller
	Reconciler *batch.Reconciler
	Retrier    *batch.RetryCoordinator
	Evaluator  *evaluation.Evaluator

	// SQLite and Redis are nil when disabled.
	SQLite *sqlite.Client
	Redis  *redis.Client
}

func NewProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.BaseURL)
	case "openai":
		return openai.New(cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}

// New builds the pipeline around provider. Store connection failures are
// logged and the store is left out; the checkpoint files are enough to run.
func New(cfg *config.Config, provider llm.Provider) *App {
	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	client := llm.NewClient(provider, llm.ClientOptions{
		Model: cfg.LLM.Model,
		Pricing: llm.Pricing{
			InputPerMTok:  cfg.Pricing.InputPerMTok,
			OutputPerMTok: cfg.Pricing.OutputPerMTok,
		},
		Timeout:           time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxRetries:        cfg.LLM.MaxRetries,
	})

	a := &App{Config: cfg, Client: client}

	var (
		observers []batch.JobObserver
		sinks     []batch.ResultSink
		recorder  batch.RunRecorder
	)

	if cfg.SQLite.Path != "" {
		db, err := sqlite.NewClient(cfg.SQLite.Path)
		if err == nil {
			err = db.InitSchema()
		}
		if err != nil {
			logger.Warn("SQLite disabled", zap.String("path", cfg.SQLite.Path), zap.Error(err))
		} else {
			a.SQLite = db
			observers = append(observers, db)
			sinks = append(sinks, db)
			recorder = db
		}
	}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL())
		if err != nil {
			logger.Warn("Redis disabled", zap.Error(err))
		} else {
			a.Redis = rc
			observers = append(observers, rc)
			sinks = append(sinks, rc)
		}
	}

	maxTokens := map[analysis.Kind]int{
		analysis.KindSemantic:  cfg.Batch.SemanticMaxTokens,
		analysis.KindSentiment: cfg.Batch.SentimentMaxTokens,
	}

	a.Submitter = batch.NewSubmitter(client, batch.SubmitterOptions{
		MaxBatchSize: cfg.Batch.MaxBatchSize,
		MaxTokens:    maxTokens,
		Observers:    observers,
	})
	a.Poller = batch.NewPoller(client, observers...)
	a.Reconciler = batch.NewReconciler(client, batch.ReconcilerOptions{Sinks: sinks, Recorder: recorder})
	a.Retrier = batch.NewRetryCoordinator(client, a.Submitter)
	a.Evaluator = evaluation.NewEvaluator(client, maxTokens)

	return a
}

func (a *App) Runner(kinds []analysis.Kind) *batch.Runner {
	return batch.NewRunner(a.Submitter, a.Poller, a.Reconciler, a.Retrier, batch.RunOptions{
		OutputDir:    a.Config.Batch.OutputDir,
		Kinds:        kinds,
		PollInterval: a.Config.Batch.PollInterval(),
		MaxWait:      a.Config.Batch.MaxWait(),
		AutoRetry:    a.Config.Batch.AutoRetry,
	})
}

func (a *App) Close() {
	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			logger.Warn("Failed to close SQLite", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("Failed to close Redis", zap.Error(err))
		}
	}
}
