package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/checkpoint"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/pkg/logger"
)

type RunOptions struct {
	OutputDir    string
	Kinds        []analysis.Kind
	PollInterval time.Duration
	MaxWait      time.Duration
	AutoRetry    bool
	OnProgress   func(job Job)
}

// Tracked is a job the runner is responsible for.
type Tracked struct {
	Job   *Job
	Dir   string
	Retry bool
	store *checkpoint.Store
}

type Report struct {
	Jobs      []*Tracked
	Summaries []*Summary
	Pending   []*Job
	Usage     llm.Usage
	Cost      float64
}

func (r *Report) Succeeded() int {
	n := 0
	for _, s := range r.Summaries {
		n += s.Succeeded - s.ParseErrors
	}
	return n
}

func (r *Report) Results() int {
	n := 0
	for _, s := range r.Summaries {
		n += s.Results
	}
	return n
}

type Runner struct {
	submitter  *Submitter
	poller     *Poller
	reconciler *Reconciler
	retrier    *RetryCoordinator
	opts       RunOptions
}

func NewRunner(submitter *Submitter, poller *Poller, reconciler *Reconciler, retrier *RetryCoordinator, opts RunOptions) *Runner {
	if len(opts.Kinds) == 0 {
		opts.Kinds = analysis.Kinds
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 24 * time.Hour
	}
	return &Runner{submitter: submitter, poller: poller, reconciler: reconciler, retrier: retrier, opts: opts}
}

// KindDir is where a kind's checkpoint and exports live under outputDir.
func KindDir(outputDir string, kind analysis.Kind) string {
	return filepath.Join(outputDir, string(kind))
}

// Run submits (or resumes) every kind, waits for all jobs with interleaved
// polling, then reconciles whatever has ended. Jobs still running when MaxWait
// runs out are reported as pending; rerunning resumes them.
func (r *Runner) Run(ctx context.Context, items []content.Item) (*Report, error) {
	valid, _ := content.Validate(items)
	if len(valid) == 0 {
		return nil, ErrNoItems
	}

	report := &Report{}
	chunks := content.Partition(valid, r.submitter.MaxBatchSize())

	for _, kind := range r.opts.Kinds {
		for i, chunk := range chunks {
			dir := KindDir(r.opts.OutputDir, kind)
			if len(chunks) > 1 {
				dir = filepath.Join(dir, fmt.Sprintf("part-%03d", i+1))
			}

			job, err := r.submitter.SubmitOrResume(ctx, chunk, kind, dir)
			if err != nil {
				return report, err
			}
			report.Jobs = append(report.Jobs, &Tracked{Job: job, Dir: dir, store: CheckpointStore(dir, kind)})
		}
	}

	deadline := time.Now().Add(r.opts.MaxWait)
	if err := r.waitAll(ctx, report.Jobs, deadline); err != nil {
		return report, err
	}

	var retries []*Tracked
	for _, t := range report.Jobs {
		if !t.Job.Ended() {
			report.Pending = append(report.Pending, t.Job)
			continue
		}

		covered, err := r.coveredItems(t, valid)
		if err != nil {
			return report, err
		}
		summary, err := r.reconciler.Reconcile(ctx, t.Job.BatchID, covered, t.Job.Kind, t.Dir)
		if err != nil {
			return report, err
		}
		report.Summaries = append(report.Summaries, summary)

		if !r.opts.AutoRetry || r.retrier == nil {
			continue
		}
		retryJob, err := r.retrier.Retry(ctx, t.Job.BatchID, covered, t.Job.Kind, t.Dir)
		if err != nil {
			return report, err
		}
		if retryJob != nil {
			dir := RetryDir(t.Dir)
			retries = append(retries, &Tracked{Job: retryJob, Dir: dir, Retry: true, store: CheckpointStore(dir, t.Job.Kind)})
		}
	}

	if len(retries) > 0 {
		report.Jobs = append(report.Jobs, retries...)
		if err := r.waitAll(ctx, retries, deadline); err != nil {
			return report, err
		}
		for _, t := range retries {
			if !t.Job.Ended() {
				report.Pending = append(report.Pending, t.Job)
				continue
			}
			covered, err := r.coveredItems(t, valid)
			if err != nil {
				return report, err
			}
			summary, err := r.reconciler.Reconcile(ctx, t.Job.BatchID, covered, t.Job.Kind, t.Dir)
			if err != nil {
				return report, err
			}
			report.Summaries = append(report.Summaries, summary)
		}
	}

	for _, s := range report.Summaries {
		report.Usage = report.Usage.Add(s.Usage)
		report.Cost += s.EstimatedCost
	}
	r.logReport(report)
	return report, nil
}

// waitAll polls each outstanding job once per round until all have ended
// or the deadline passes.
func (r *Runner) waitAll(ctx context.Context, jobs []*Tracked, deadline time.Time) error {
	for {
		outstanding := 0
		for _, t := range jobs {
			if t.Job.Ended() {
				continue
			}
			if _, err := r.poller.Poll(ctx, t.Job, PollOptions{
				Checkpoint: t.store,
				OnProgress: r.opts.OnProgress,
			}); err != nil {
				return err
			}
			if !t.Job.Ended() {
				outstanding++
			}
		}

		if outstanding == 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			logger.Warn("Stopped waiting with batches still in progress; rerun to resume",
				zap.Int("outstanding", outstanding),
			)
			return nil
		}
		if err := r.poller.sleep(ctx, r.opts.PollInterval); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Warn("Polling interrupted; checkpoints allow resuming")
			}
			return err
		}
	}
}

// coveredItems resolves the checkpointed id set of a job against the input.
// Ids missing from the input still get a placeholder item so reconciliation
// stays complete.
func (r *Runner) coveredItems(t *Tracked, valid []content.Item) ([]content.Item, error) {
	cp, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("checkpoint for batch %s disappeared from %s", t.Job.BatchID, t.Dir)
	}

	selected, missing := content.Select(valid, cp.ContentIDs)
	if len(missing) == 0 {
		return selected, nil
	}

	logger.Warn("Checkpointed ids missing from input",
		zap.String("batch_id", t.Job.BatchID),
		zap.Int("missing", len(missing)),
	)
	lookup := content.Index(selected)
	covered := make([]content.Item, 0, len(cp.ContentIDs))
	for _, id := range cp.ContentIDs {
		if item, ok := lookup[id]; ok {
			covered = append(covered, item)
		} else {
			covered = append(covered, content.Item{ID: id, Platform: content.PlatformUnknown})
		}
	}
	return covered, nil
}

func (r *Runner) logReport(report *Report) {
	results := report.Results()
	efficiency := 0.0
	perItem := 0.0
	if results > 0 {
		efficiency = float64(report.Succeeded()) / float64(results) * 100
	}
	if ok := report.Succeeded(); ok > 0 {
		perItem = report.Cost / float64(ok)
	}

	logger.Info("Analysis run complete",
		zap.Int("jobs", len(report.Jobs)),
		zap.Int("pending", len(report.Pending)),
		zap.Int("results", results),
		zap.Int("usable_results", report.Succeeded()),
		zap.String("efficiency", fmt.Sprintf("%.1f%%", efficiency)),
		zap.Int("input_tokens", report.Usage.InputTokens),
		zap.Int("output_tokens", report.Usage.OutputTokens),
		zap.String("estimated_cost", fmt.Sprintf("$%.4f", report.Cost)),
		zap.String("cost_per_result", fmt.Sprintf("$%.6f", perItem)),
	)
}
