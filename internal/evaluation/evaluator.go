// Package evaluation runs a small synchronous sample through the analysis
// prompts before a full batch is committed.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/prompt"
	"github.com/influencer-lens/backend/pkg/logger"
)

// synchronousPremium is how much more a non-batch request costs than the same
// request inside a batch.
const synchronousPremium = 2.0

type Evaluator struct {
	client    *llm.Client
	maxTokens map[analysis.Kind]int
	now       func() time.Time
}

// ItemEvaluation is the outcome of analyzing one item synchronously.
type ItemEvaluation struct {
	ID         string        `json:"video_id"`
	Parsed     bool          `json:"parsed"`
	Failed     bool          `json:"failed"`
	Reason     string        `json:"reason,omitempty"`
	Confidence float64       `json:"confidence"`
	Usage      llm.Usage     `json:"usage"`
	Result     interface{}   `json:"result,omitempty"`
	Kind       analysis.Kind `json:"kind"`
	Latency    time.Duration `json:"latency"`
}

type SampleReport struct {
	Kind            analysis.Kind    `json:"kind"`
	Sampled         int              `json:"sampled"`
	Parsed          int              `json:"parsed"`
	ParseErrors     int              `json:"parse_errors"`
	Failed          int              `json:"failed"`
	AvgConfidence   float64          `json:"avg_confidence"`
	AvgInputTokens  float64          `json:"avg_input_tokens"`
	AvgOutputTokens float64          `json:"avg_output_tokens"`
	AvgLatency      time.Duration    `json:"avg_latency"`
	PopulationSize  int              `json:"population_size"`
	ProjectedCost   float64          `json:"projected_batch_cost_usd"`
	Items           []ItemEvaluation `json:"items"`
}

func (r *SampleReport) ParseRate() float64 {
	answered := r.Sampled - r.Failed
	if answered <= 0 {
		return 0
	}
	return float64(r.Parsed) / float64(answered) * 100
}

func NewEvaluator(client *llm.Client, maxTokens map[analysis.Kind]int) *Evaluator {
	return &Evaluator{
		client:    client,
		maxTokens: maxTokens,
		now:       time.Now,
	}
}

// EvaluateItem analyzes one item with a synchronous request. Provider
// failures are reported in the evaluation, not returned.
func (e *Evaluator) EvaluateItem(ctx context.Context, item content.Item, kind analysis.Kind) (*ItemEvaluation, error) {
	req, err := prompt.NewRequest(item, kind, prompt.Params{
		Model:     e.client.Model(),
		MaxTokens: e.maxTokens[kind],
	})
	if err != nil {
		return nil, err
	}

	eval := &ItemEvaluation{ID: item.ID, Kind: kind}
	start := e.now()
	resp, err := e.client.Complete(ctx, req)
	eval.Latency = e.now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Sample request failed", zap.String("id", item.ID), zap.Error(err))
		eval.Failed = true
		eval.Reason = err.Error()
		return eval, nil
	}
	eval.Usage = resp.Usage

	at := e.now().UTC()
	switch kind {
	case analysis.KindSemantic:
		r, perr := analysis.ParseSemantic(item, resp.Text, at)
		if perr == nil {
			eval.Parsed, eval.Confidence, eval.Result = true, r.AnalysisConfidence, r
		}
		err = perr
	case analysis.KindSentiment:
		r, perr := analysis.ParseSentiment(item, resp.Text, at)
		if perr == nil {
			eval.Parsed, eval.Confidence, eval.Result = true, r.Confidence, r
		}
		err = perr
	}
	if err != nil {
		eval.Reason = "JSON parse error"
		logger.Debug("Unparseable sample response", zap.String("id", item.ID), zap.Error(err))
	}

	return eval, nil
}

// RunSample evaluates the first n valid items and projects what analyzing all
// of them in a batch would cost.
func (e *Evaluator) RunSample(ctx context.Context, items []content.Item, kind analysis.Kind, n int) (*SampleReport, error) {
	valid, _ := content.Validate(items)
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid content items to sample")
	}
	sample := valid
	if n > 0 && n < len(sample) {
		sample = sample[:n]
	}

	logger.Info("Running sample evaluation",
		zap.String("kind", string(kind)),
		zap.Int("sample", len(sample)),
		zap.Int("population", len(valid)),
	)

	report := &SampleReport{Kind: kind, Sampled: len(sample), PopulationSize: len(valid)}

	var usage llm.Usage
	var confidence float64
	var latency time.Duration
	for i, item := range sample {
		logger.Info("Evaluating item", zap.Int("index", i+1), zap.Int("total", len(sample)), zap.String("id", item.ID))

		eval, err := e.EvaluateItem(ctx, item, kind)
		if err != nil {
			return report, err
		}
		report.Items = append(report.Items, *eval)

		latency += eval.Latency
		switch {
		case eval.Failed:
			report.Failed++
			continue
		case eval.Parsed:
			report.Parsed++
			confidence += eval.Confidence
		default:
			report.ParseErrors++
		}
		usage = usage.Add(eval.Usage)
	}

	answered := report.Sampled - report.Failed
	if report.Parsed > 0 {
		report.AvgConfidence = confidence / float64(report.Parsed)
	}
	if report.Sampled > 0 {
		report.AvgLatency = latency / time.Duration(report.Sampled)
	}
	if answered > 0 {
		report.AvgInputTokens = float64(usage.InputTokens) / float64(answered)
		report.AvgOutputTokens = float64(usage.OutputTokens) / float64(answered)
		perItem := e.client.Pricing().Cost(llm.Usage{
			InputTokens:  int(report.AvgInputTokens),
			OutputTokens: int(report.AvgOutputTokens),
		})
		report.ProjectedCost = perItem * float64(report.PopulationSize)
	}

	logger.Info("Sample evaluation completed",
		zap.String("kind", string(kind)),
		zap.Int("parsed", report.Parsed),
		zap.Int("parse_errors", report.ParseErrors),
		zap.Int("failed", report.Failed),
		zap.String("projected_batch_cost", fmt.Sprintf("$%.2f", report.ProjectedCost)),
	)

	return report, nil
}

func (e *Evaluator) GenerateReport(report *SampleReport) string {
	sampleCost := e.client.Pricing().Cost(llm.Usage{
		InputTokens:  int(report.AvgInputTokens * float64(report.Sampled-report.Failed)),
		OutputTokens: int(report.AvgOutputTokens * float64(report.Sampled-report.Failed)),
	}) * synchronousPremium

	return fmt.Sprintf(`
Sample Evaluation (%s)
=======================

Sampled: %d of %d items
- Parsed:       %d (%.1f%% of answered)
- Parse errors: %d
- Failed:       %d

Average confidence: %.2f
Average tokens:     %.0f input / %.0f output
Average latency:    %s

Sample cost (synchronous): $%.4f
Projected batch cost for all %d items: $%.2f
`,
		report.Kind,
		report.Sampled, report.PopulationSize,
		report.Parsed, report.ParseRate(),
		report.ParseErrors,
		report.Failed,
		report.AvgConfidence,
		report.AvgInputTokens, report.AvgOutputTokens,
		report.AvgLatency.Round(time.Millisecond),
		sampleCost,
		report.PopulationSize, report.ProjectedCost,
	)
}
