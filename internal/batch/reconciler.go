package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/export"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/internal/storage/models"
	"github.com/influencer-lens/backend/pkg/logger"
)

const (
	reasonParseError = "JSON parse error"
	reasonMissing    = "no result returned for request"
	reasonUnknownErr = "Unknown error"
)

// Summary describes one reconciliation pass.
type Summary struct {
	RunID         string        `json:"run_id"`
	BatchID       string        `json:"batch_id"`
	Kind          analysis.Kind `json:"kind"`
	Results       int           `json:"results"`
	Succeeded     int           `json:"succeeded"`
	Errored       int           `json:"errored"`
	Canceled      int           `json:"canceled"`
	Expired       int           `json:"expired"`
	ParseErrors   int           `json:"parse_errors"`
	Missing       int           `json:"missing"`
	Unknown       int           `json:"unknown"`
	Usage         llm.Usage     `json:"usage"`
	EstimatedCost float64       `json:"estimated_cost_usd"`
	OutputDir     string        `json:"output_dir"`
}

// ErrorResults counts results that carry no genuine analysis.
func (s *Summary) ErrorResults() int {
	return s.Results - (s.Succeeded - s.ParseErrors)
}

type ReconcilerOptions struct {
	Sinks    []ResultSink
	Recorder RunRecorder
}

type Reconciler struct {
	client   *llm.Client
	sinks    []ResultSink
	recorder RunRecorder
	now      func() time.Time
}

func NewReconciler(client *llm.Client, opts ReconcilerOptions) *Reconciler {
	return &Reconciler{
		client:   client,
		sinks:    opts.Sinks,
		recorder: opts.Recorder,
		now:      time.Now,
	}
}

// Reconcile dispatches on kind and discards the typed results.
func (r *Reconciler) Reconcile(ctx context.Context, batchID string, items []content.Item, kind analysis.Kind, outputDir string) (*Summary, error) {
	switch kind {
	case analysis.KindSemantic:
		_, summary, err := r.ReconcileSemantic(ctx, batchID, items, outputDir)
		return summary, err
	case analysis.KindSentiment:
		_, summary, err := r.ReconcileSentiment(ctx, batchID, items, outputDir)
		return summary, err
	default:
		return nil, fmt.Errorf("unknown analysis kind: %q", kind)
	}
}

// ReconcileSemantic joins the batch outcomes to items by id and writes the
// semantic exports into outputDir. items should be the batch's covered set.
func (r *Reconciler) ReconcileSemantic(ctx context.Context, batchID string, items []content.Item, outputDir string) ([]analysis.SemanticResult, *Summary, error) {
	outcomes, err := r.client.Results(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}

	results, summary := reconcile[analysis.SemanticResult](outcomes, items, analysis.KindSemantic,
		analysis.ParseSemantic, analysis.SemanticError, r.now().UTC())
	summary.BatchID = batchID
	summary.OutputDir = outputDir

	if err := export.WriteSemantic(outputDir, results); err != nil {
		return nil, nil, err
	}
	for _, sink := range r.sinks {
		if err := sink.WriteSemantic(ctx, batchID, results); err != nil {
			logger.Warn("Result sink failed", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	r.finish(ctx, summary)
	return results, summary, nil
}

func (r *Reconciler) ReconcileSentiment(ctx context.Context, batchID string, items []content.Item, outputDir string) ([]analysis.SentimentResult, *Summary, error) {
	outcomes, err := r.client.Results(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}

	results, summary := reconcile[analysis.SentimentResult](outcomes, items, analysis.KindSentiment,
		analysis.ParseSentiment, analysis.SentimentError, r.now().UTC())
	summary.BatchID = batchID
	summary.OutputDir = outputDir

	if err := export.WriteSentiment(outputDir, results); err != nil {
		return nil, nil, err
	}
	for _, sink := range r.sinks {
		if err := sink.WriteSentiment(ctx, batchID, results); err != nil {
			logger.Warn("Result sink failed", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	r.finish(ctx, summary)
	return results, summary, nil
}

func (r *Reconciler) finish(ctx context.Context, s *Summary) {
	s.RunID = uuid.NewString()
	s.EstimatedCost = r.client.RecordUsage(s.Usage)

	kind := string(s.Kind)
	metrics.OutcomesTotal.WithLabelValues(kind, string(llm.OutcomeSucceeded)).Add(float64(s.Succeeded))
	metrics.OutcomesTotal.WithLabelValues(kind, string(llm.OutcomeErrored)).Add(float64(s.Errored))
	metrics.OutcomesTotal.WithLabelValues(kind, string(llm.OutcomeCanceled)).Add(float64(s.Canceled))
	metrics.OutcomesTotal.WithLabelValues(kind, string(llm.OutcomeExpired)).Add(float64(s.Expired))
	metrics.ParseErrors.WithLabelValues(kind).Add(float64(s.ParseErrors))

	if r.recorder != nil {
		err := r.recorder.RecordRun(ctx, models.ReconcileRun{
			ID:            s.RunID,
			BatchID:       s.BatchID,
			Kind:          kind,
			Results:       s.Results,
			ErrorResults:  s.ErrorResults(),
			InputTokens:   s.Usage.InputTokens,
			OutputTokens:  s.Usage.OutputTokens,
			EstimatedCost: s.EstimatedCost,
			CreatedAt:     r.now().UTC(),
		})
		if err != nil {
			logger.Warn("Failed to record reconcile run", zap.String("batch_id", s.BatchID), zap.Error(err))
		}
	}

	logger.Info("Batch reconciled",
		zap.String("batch_id", s.BatchID),
		zap.String("kind", kind),
		zap.Int("results", s.Results),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("errored", s.Errored),
		zap.Int("canceled", s.Canceled),
		zap.Int("expired", s.Expired),
		zap.Int("parse_errors", s.ParseErrors),
		zap.Int("input_tokens", s.Usage.InputTokens),
		zap.Int("output_tokens", s.Usage.OutputTokens),
		zap.String("estimated_cost", fmt.Sprintf("$%.4f", s.EstimatedCost)),
		zap.String("output_dir", s.OutputDir),
	)
}

type (
	parseFunc[T analysis.Result] func(item content.Item, text string, at time.Time) (T, error)
	failFunc[T analysis.Result]  func(item content.Item, reason string, at time.Time) T
)

// reconcile produces exactly one result per covered item, in item order,
// followed by results for ids the provider returned but items lacks.
func reconcile[T analysis.Result](outcomes []llm.Outcome, items []content.Item, kind analysis.Kind, parse parseFunc[T], fail failFunc[T], at time.Time) ([]T, *Summary) {
	summary := &Summary{Kind: kind}
	index := content.Index(items)
	byID := make(map[string]T, len(outcomes))
	var unknown []string

	for _, o := range outcomes {
		if _, dup := byID[o.CustomID]; dup {
			logger.Warn("Ignoring duplicate outcome", zap.String("id", o.CustomID))
			continue
		}

		item, known := index[o.CustomID]
		if !known {
			logger.Warn("Outcome for id outside the submitted set", zap.String("id", o.CustomID))
			item = content.Item{ID: o.CustomID}
			unknown = append(unknown, o.CustomID)
		}

		summary.Usage = summary.Usage.Add(o.Usage)

		switch o.Type {
		case llm.OutcomeSucceeded:
			summary.Succeeded++
			result, err := parse(item, o.Text, at)
			if err != nil {
				summary.ParseErrors++
				logger.Debug("Unparseable model response", zap.String("id", o.CustomID), zap.Error(err))
				result = fail(item, reasonParseError, at)
			}
			byID[o.CustomID] = result
		case llm.OutcomeErrored:
			summary.Errored++
			reason := o.Error
			if reason == "" {
				reason = reasonUnknownErr
			}
			byID[o.CustomID] = fail(item, reason, at)
		case llm.OutcomeCanceled:
			summary.Canceled++
			byID[o.CustomID] = fail(item, string(o.Type), at)
		case llm.OutcomeExpired:
			summary.Expired++
			byID[o.CustomID] = fail(item, string(o.Type), at)
		default:
			summary.Errored++
			byID[o.CustomID] = fail(item, fmt.Sprintf("unexpected outcome %q", o.Type), at)
		}
	}

	results := make([]T, 0, len(items)+len(unknown))
	for _, item := range items {
		if result, ok := byID[item.ID]; ok {
			results = append(results, result)
			delete(byID, item.ID)
			continue
		}
		summary.Missing++
		logger.Warn("No outcome returned for item", zap.String("id", item.ID))
		results = append(results, fail(item, reasonMissing, at))
	}
	for _, id := range unknown {
		results = append(results, byID[id])
	}

	summary.Unknown = len(unknown)
	summary.Results = len(results)
	return results, summary
}
