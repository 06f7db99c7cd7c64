package batch

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/pkg/logger"
)

// RetryDir is the checkpoint directory used when retrying a batch from dir.
func RetryDir(dir string) string {
	return filepath.Clean(strings.TrimRight(dir, `/\`)) + "_retry"
}

type RetryCoordinator struct {
	client    *llm.Client
	submitter *Submitter
}

func NewRetryCoordinator(client *llm.Client, submitter *Submitter) *RetryCoordinator {
	return &RetryCoordinator{client: client, submitter: submitter}
}

// Retry resubmits the errored and expired items of a finished batch into
// RetryDir(checkpointDir). Canceled items are never retried. A nil job with a
// nil error means there was nothing to retry.
func (rc *RetryCoordinator) Retry(ctx context.Context, batchID string, items []content.Item, kind analysis.Kind, checkpointDir string) (*Job, error) {
	outcomes, err := rc.client.Results(ctx, batchID)
	if err != nil {
		return nil, err
	}

	failed := RetryableIDs(outcomes)
	if len(failed) == 0 {
		logger.Info("No failed requests to retry", zap.String("batch_id", batchID))
		return nil, nil
	}

	index := content.Index(items)
	var retry []content.Item
	for _, item := range items {
		if _, ok := failed[item.ID]; ok {
			retry = append(retry, item)
		}
	}
	for id := range failed {
		if _, ok := index[id]; !ok {
			logger.Warn("Failed id has no matching content item, dropping", zap.String("id", id))
		}
	}
	if len(retry) == 0 {
		logger.Warn("No content items matched the failed ids", zap.String("batch_id", batchID))
		return nil, nil
	}

	logger.Info("Retrying failed requests",
		zap.String("batch_id", batchID),
		zap.String("kind", string(kind)),
		zap.Int("items", len(retry)),
	)

	job, err := rc.submitter.SubmitOrResume(ctx, retry, kind, RetryDir(checkpointDir))
	if err != nil {
		return job, err
	}
	metrics.RetriesSubmitted.WithLabelValues(string(kind)).Add(float64(len(retry)))
	return job, nil
}

// RetryableIDs returns the ids whose outcome was errored or expired.
func RetryableIDs(outcomes []llm.Outcome) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, o := range outcomes {
		if o.Type == llm.OutcomeErrored || o.Type == llm.OutcomeExpired {
			ids[o.CustomID] = struct{}{}
		}
	}
	return ids
}
