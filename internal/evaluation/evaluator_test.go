package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/llm/llmtest"
)

func newEvaluator(p llm.Provider) *Evaluator {
	client := llm.NewClient(p, llm.ClientOptions{
		Model:      "test-model",
		Pricing:    llm.Pricing{InputPerMTok: 0.5, OutputPerMTok: 2.5},
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	return NewEvaluator(client, nil)
}

func items(ids ...string) []content.Item {
	out := make([]content.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, content.Item{ID: id, Title: "title " + id, Platform: content.PlatformTikTok})
	}
	return out
}

func TestRunSample(t *testing.T) {
	p := llmtest.New()
	p.OutcomeFor = func(req llm.Request) llm.Outcome {
		usage := llm.Usage{InputTokens: 1000, OutputTokens: 400}
		switch req.CustomID {
		case "a":
			return llm.Outcome{Type: llm.OutcomeSucceeded, Usage: usage, Text: `{"sentiment_score": 0.3, "confidence": 0.8}`}
		case "b":
			return llm.Outcome{Type: llm.OutcomeSucceeded, Usage: usage, Text: "not json"}
		default:
			return llm.Outcome{Type: llm.OutcomeErrored, Error: "overloaded"}
		}
	}
	e := newEvaluator(p)

	report, err := e.RunSample(context.Background(), items("a", "b", "c", "d"), analysis.KindSentiment, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Sampled)
	assert.Equal(t, 4, report.PopulationSize)
	assert.Equal(t, 1, report.Parsed)
	assert.Equal(t, 1, report.ParseErrors)
	assert.Equal(t, 1, report.Failed)
	assert.InDelta(t, 50.0, report.ParseRate(), 1e-9)
	assert.InDelta(t, 0.8, report.AvgConfidence, 1e-9)
	assert.InDelta(t, 1000.0, report.AvgInputTokens, 1e-9)
	// (1000*0.5 + 400*2.5) / 1e6 per item, four items.
	assert.InDelta(t, 0.006, report.ProjectedCost, 1e-9)
	require.Len(t, report.Items, 3)
	assert.Equal(t, "JSON parse error", report.Items[1].Reason)
	assert.True(t, report.Items[2].Failed)

	text := e.GenerateReport(report)
	assert.Contains(t, text, "Sampled: 3 of 4 items")
	assert.Contains(t, text, "$0.01")
}

func TestRunSampleNoItems(t *testing.T) {
	_, err := newEvaluator(llmtest.New()).RunSample(context.Background(), nil, analysis.KindSemantic, 5)
	assert.Error(t, err)
}

func TestEvaluateItemUsesKindParser(t *testing.T) {
	p := llmtest.New()
	p.OutcomeFor = func(llm.Request) llm.Outcome {
		return llm.Outcome{Type: llm.OutcomeSucceeded, Text: `{"main_topic": "Atlantic City", "analysis_confidence": 0.9}`}
	}

	eval, err := newEvaluator(p).EvaluateItem(context.Background(), items("a")[0], analysis.KindSemantic)
	require.NoError(t, err)
	assert.True(t, eval.Parsed)
	assert.Equal(t, 0.9, eval.Confidence)
	result, ok := eval.Result.(analysis.SemanticResult)
	require.True(t, ok)
	assert.Equal(t, "Atlantic City", result.MainTopic)
}
