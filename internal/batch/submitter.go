package batch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/checkpoint"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/internal/prompt"
	"github.com/influencer-lens/backend/pkg/logger"
	"github.com/influencer-lens/backend/pkg/utils"
)

// DefaultMaxBatchSize stays well below the provider ceiling of 100k requests / 256MB.
const DefaultMaxBatchSize = 50000

type SubmitterOptions struct {
	MaxBatchSize int
	MaxTokens    map[analysis.Kind]int
	Observers    []JobObserver
}

type Submitter struct {
	client       *llm.Client
	maxBatchSize int
	maxTokens    map[analysis.Kind]int
	observers    []JobObserver
}

func NewSubmitter(client *llm.Client, opts SubmitterOptions) *Submitter {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Submitter{
		client:       client,
		maxBatchSize: opts.MaxBatchSize,
		maxTokens:    opts.MaxTokens,
		observers:    opts.Observers,
	}
}

func (s *Submitter) MaxBatchSize() int { return s.maxBatchSize }

// CheckpointStore returns the store a submission into dir uses for kind.
func CheckpointStore(dir string, kind analysis.Kind) *checkpoint.Store {
	return checkpoint.NewStore(dir, kind.CheckpointFile())
}

// SubmitOrResume submits items as one batch unless checkpointDir already
// holds a batch id that has not ended, in which case that job is returned and
// nothing is submitted. Only the first MaxBatchSize valid items are submitted
// per call. The checkpoint is written before returning; if that write fails
// the submitted job is returned alongside the error.
func (s *Submitter) SubmitOrResume(ctx context.Context, items []content.Item, kind analysis.Kind, checkpointDir string) (*Job, error) {
	store := CheckpointStore(checkpointDir, kind)

	existing, err := store.Load()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.BatchID != "" && existing.Status != string(llm.StatusEnded) {
			job := jobFromCheckpoint(existing)
			if job.Kind == "" {
				job.Kind = kind
			}
			logger.Info("Resuming existing batch",
				zap.String("batch_id", job.BatchID),
				zap.String("kind", string(kind)),
				zap.String("status", string(job.Status)),
				zap.String("checkpoint", store.Path()),
			)
			s.warnOnDrift(existing, items)
			metrics.BatchesResumed.WithLabelValues(string(kind)).Inc()
			return job, nil
		}
		if existing.BatchID == "" {
			logger.Warn("Checkpoint has no batch id, submitting a new batch",
				zap.String("status", existing.Status),
				zap.String("checkpoint", store.Path()),
			)
		} else {
			logger.Info("Checkpointed batch already ended, submitting a new batch",
				zap.String("previous_batch_id", existing.BatchID),
				zap.String("checkpoint", store.Path()),
			)
		}
	}

	valid, removed := content.Validate(items)
	metrics.ItemsRejected.Add(float64(removed))
	if len(valid) == 0 {
		return nil, ErrNoItems
	}

	chunks := content.Partition(valid, s.maxBatchSize)
	chunk := chunks[0]
	if len(chunks) > 1 {
		logger.Warn("Item count exceeds batch size, submitting first chunk only",
			zap.Int("items", len(valid)),
			zap.Int("chunk_size", len(chunk)),
			zap.Int("chunks", len(chunks)),
		)
	}

	requests, err := prompt.NewRequests(chunk, kind, prompt.Params{
		Model:     s.client.Model(),
		MaxTokens: s.maxTokens[kind],
	})
	if err != nil {
		return nil, err
	}

	b, err := s.client.Submit(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s batch: %w", kind, err)
	}

	job := newJob(b, kind, len(requests))

	cp := &checkpoint.Checkpoint{ContentIDs: content.IDs(chunk)}
	job.fillCheckpoint(cp)
	if err := store.Save(cp); err != nil {
		logger.Error("Batch submitted but checkpoint could not be written",
			zap.String("batch_id", job.BatchID),
			zap.Error(err),
		)
		return job, err
	}

	metrics.BatchesSubmitted.WithLabelValues(string(kind), s.client.ProviderName()).Inc()
	metrics.RequestsSubmitted.WithLabelValues(string(kind)).Add(float64(len(requests)))
	notifyObservers(ctx, s.observers, job.Record(s.client.ProviderName(), checkpointDir))

	logger.Info("Batch submitted",
		zap.String("batch_id", job.BatchID),
		zap.String("kind", string(kind)),
		zap.Int("requests", len(requests)),
		zap.String("status", string(job.Status)),
		zap.String("checkpoint", store.Path()),
	)

	return job, nil
}

func (s *Submitter) warnOnDrift(cp *checkpoint.Checkpoint, items []content.Item) {
	valid, _ := content.Validate(items)
	n := len(cp.ContentIDs)
	if n > len(valid) {
		n = len(valid)
	}
	if utils.HashStrings(cp.ContentIDs) != utils.HashStrings(content.IDs(valid[:n])) || len(cp.ContentIDs) > len(valid) {
		logger.Warn("Input differs from the checkpointed id set; resumed batch keeps its original items",
			zap.String("batch_id", cp.BatchID),
			zap.Int("checkpoint_ids", len(cp.ContentIDs)),
			zap.Int("input_items", len(valid)),
		)
	}
}
