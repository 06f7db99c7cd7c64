package batch

import (
	"context"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/storage/models"
	"github.com/influencer-lens/backend/pkg/logger"
)

// JobObserver receives a snapshot after every submission and status change.
type JobObserver interface {
	ObserveJob(ctx context.Context, rec models.JobRecord) error
}

// ResultSink receives reconciled results in addition to the exported files.
// A later write for the same id replaces the earlier one.
type ResultSink interface {
	WriteSemantic(ctx context.Context, batchID string, results []analysis.SemanticResult) error
	WriteSentiment(ctx context.Context, batchID string, results []analysis.SentimentResult) error
}

// RunRecorder stores per-reconciliation bookkeeping.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.ReconcileRun) error
}

func notifyObservers(ctx context.Context, observers []JobObserver, rec models.JobRecord) {
	for _, o := range observers {
		if err := o.ObserveJob(ctx, rec); err != nil {
			logger.Warn("Job observer failed",
				zap.String("batch_id", rec.BatchID),
				zap.Error(err),
			)
		}
	}
}
