package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/checkpoint"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/pkg/logger"
)

type PollOptions struct {
	Interval time.Duration
	// MaxWait bounds this call only. Zero means a single status query.
	MaxWait time.Duration
	// Checkpoint, when set, is rewritten after every status query.
	Checkpoint *checkpoint.Store
	OnProgress func(job Job)
}

type Poller struct {
	client    *llm.Client
	observers []JobObserver
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewPoller(client *llm.Client, observers ...JobObserver) *Poller {
	return &Poller{
		client:    client,
		observers: observers,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Poll queries the batch until it ends or MaxWait elapses and updates job in
// place. Running out of MaxWait is not an error: callers must check
// job.Status on return.
func (p *Poller) Poll(ctx context.Context, job *Job, opts PollOptions) (*Job, error) {
	if job.Ended() {
		return job, nil
	}

	start := p.now()
	for {
		b, err := p.client.Status(ctx, job.BatchID)
		if err != nil {
			return job, fmt.Errorf("failed to poll batch %s: %w", job.BatchID, err)
		}

		job.apply(b)
		if err := p.report(ctx, job, opts); err != nil {
			return job, err
		}

		if job.Ended() {
			logger.Info("Batch ended",
				zap.String("batch_id", job.BatchID),
				zap.String("kind", string(job.Kind)),
				zap.Int("succeeded", job.Counts.Succeeded),
				zap.Int("errored", job.Counts.Errored),
				zap.Int("canceled", job.Counts.Canceled),
				zap.Int("expired", job.Counts.Expired),
			)
			return job, nil
		}

		if p.now().Sub(start) >= opts.MaxWait {
			if opts.MaxWait > 0 {
				logger.Warn("Max wait reached, batch still in progress",
					zap.String("batch_id", job.BatchID),
					zap.Duration("max_wait", opts.MaxWait),
					zap.String("status", string(job.Status)),
				)
			}
			return job, nil
		}

		if err := p.sleep(ctx, opts.Interval); err != nil {
			return job, err
		}
	}
}

// PollID polls a batch known only by id.
func (p *Poller) PollID(ctx context.Context, batchID string, opts PollOptions) (*Job, error) {
	return p.Poll(ctx, &Job{BatchID: batchID}, opts)
}

func (p *Poller) report(ctx context.Context, job *Job, opts PollOptions) error {
	logger.Info("Batch status",
		zap.String("batch_id", job.BatchID),
		zap.String("kind", string(job.Kind)),
		zap.String("status", string(job.Status)),
		zap.String("progress", fmt.Sprintf("%d/%d", job.Completed(), job.TotalRequests)),
		zap.String("percent", fmt.Sprintf("%.1f%%", job.Progress())),
		zap.Int("processing", job.Counts.Processing),
	)

	metrics.PollsTotal.WithLabelValues(string(job.Kind), string(job.Status)).Inc()
	if job.Ended() {
		metrics.BatchProgress.DeleteLabelValues(string(job.Kind), job.BatchID)
	} else {
		metrics.BatchProgress.WithLabelValues(string(job.Kind), job.BatchID).Set(job.Progress() / 100)
	}

	dir := ""
	if opts.Checkpoint != nil {
		dir = opts.Checkpoint.Dir()
		if err := opts.Checkpoint.Update(job.fillCheckpoint); err != nil {
			return fmt.Errorf("failed to update checkpoint for %s: %w", job.BatchID, err)
		}
	}

	notifyObservers(ctx, p.observers, job.Record(p.client.ProviderName(), dir))

	if opts.OnProgress != nil {
		opts.OnProgress(*job)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
