package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/llm/llmtest"
)

func scriptedProvider() *llmtest.Provider {
	p := llmtest.New()
	p.OutcomeFor = func(req llm.Request) llm.Outcome {
		usage := llm.Usage{InputTokens: 1000, OutputTokens: 200}
		switch req.CustomID {
		case "a":
			return llm.Outcome{Type: llm.OutcomeSucceeded, Usage: usage,
				Text: "```json\n{\"main_topic\": \"Jersey Shore\", \"nj_relevance_score\": 1.4, \"sentiment_score\": -3, \"sentiment_label\": \"positive\"}\n```"}
		case "b":
			return llm.Outcome{Type: llm.OutcomeErrored, Error: "overloaded_error: Overloaded"}
		case "c":
			return llm.Outcome{Type: llm.OutcomeSucceeded, Usage: usage, Text: "I cannot analyze this video."}
		case "d":
			return llm.Outcome{Type: llm.OutcomeExpired}
		default:
			return llm.Outcome{Type: llm.OutcomeCanceled}
		}
	}
	return p
}

func TestReconcileSemanticIsolatesFailures(t *testing.T) {
	p := scriptedProvider()
	client := testClient(p)
	sink := newRecordingSink()
	r := NewReconciler(client, ReconcilerOptions{Sinks: []ResultSink{sink}, Recorder: sink})
	batchID := submitAndEnd(t, client, "a", "b", "c")
	dir := t.TempDir()

	results, summary, err := r.ReconcileSemantic(context.Background(), batchID, testItems("a", "b", "c"), dir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].VideoID)
	assert.Equal(t, "Jersey Shore", results[0].MainTopic)
	assert.Equal(t, 1.0, results[0].NJRelevanceScore)
	assert.False(t, results[0].IsError())
	assert.Equal(t, "creator_a", results[0].Influencer)

	assert.Equal(t, "b", results[1].VideoID)
	assert.True(t, results[1].IsError())
	assert.Equal(t, "overloaded_error: Overloaded", results[1].RawResponse)

	assert.Equal(t, "c", results[2].VideoID)
	assert.True(t, results[2].IsError())
	assert.Equal(t, "JSON parse error", results[2].RawResponse)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.ParseErrors)
	assert.Equal(t, 2, summary.ErrorResults())
	assert.Equal(t, llm.Usage{InputTokens: 2000, OutputTokens: 400}, summary.Usage)
	assert.InDelta(t, 0.002, summary.EstimatedCost, 1e-9)
	assert.NotEmpty(t, summary.RunID)

	assert.Len(t, sink.semantic[batchID], 3)
	require.Len(t, sink.runs, 1)
	assert.Equal(t, summary.RunID, sink.runs[0].ID)
	assert.Equal(t, 2, sink.runs[0].ErrorResults)

	for _, name := range []string{"semantic_analysis_full.json", "semantic_analysis_summary.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestReconcileSentimentClampsScores(t *testing.T) {
	p := scriptedProvider()
	client := testClient(p)
	r := NewReconciler(client, ReconcilerOptions{})
	batchID := submitAndEnd(t, client, "a", "d", "e")
	dir := t.TempDir()

	results, summary, err := r.ReconcileSentiment(context.Background(), batchID, testItems("a", "d", "e"), dir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, -1.0, results[0].SentimentScore)
	assert.Equal(t, "positive", results[0].SentimentLabel)
	assert.Equal(t, "expired", results[1].RawResponse)
	assert.Equal(t, "canceled", results[2].RawResponse)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 1, summary.Canceled)

	_, err = os.Stat(filepath.Join(dir, "sentiment_aggregate_stats.json"))
	assert.NoError(t, err)
}

func TestReconcileMissingAndUnknownIDs(t *testing.T) {
	p := scriptedProvider()
	client := testClient(p)
	r := NewReconciler(client, ReconcilerOptions{})
	batchID := submitAndEnd(t, client, "a", "zz")

	results, summary, err := r.ReconcileSemantic(context.Background(), batchID, testItems("a", "m"), t.TempDir())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].VideoID)
	assert.Equal(t, "m", results[1].VideoID)
	assert.Equal(t, "no result returned for request", results[1].RawResponse)
	assert.Equal(t, "zz", results[2].VideoID)
	assert.Empty(t, results[2].Influencer)
	assert.Equal(t, 1, summary.Missing)
	assert.Equal(t, 1, summary.Unknown)
	assert.Equal(t, 3, summary.Results)
}

func TestReconcileRequiresEndedBatch(t *testing.T) {
	p := llmtest.New()
	p.PollsToEnd = 5
	client := testClient(p)
	r := NewReconciler(client, ReconcilerOptions{})

	b, err := client.Submit(context.Background(), []llm.Request{{CustomID: "a"}})
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background(), b.ID, testItems("a"), analysis.KindSemantic, t.TempDir())
	require.Error(t, err)
}

func TestReconcileUnknownKind(t *testing.T) {
	r := NewReconciler(testClient(llmtest.New()), ReconcilerOptions{})
	_, err := r.Reconcile(context.Background(), "b", nil, analysis.Kind("other"), t.TempDir())
	require.Error(t, err)
}

func TestReconcileErroredWithoutMessage(t *testing.T) {
	outcomes := []llm.Outcome{{CustomID: "a", Type: llm.OutcomeErrored}}
	results, summary := reconcile[analysis.SemanticResult](outcomes, testItems("a"), analysis.KindSemantic,
		analysis.ParseSemantic, analysis.SemanticError, newFakeClock().Now())

	require.Len(t, results, 1)
	assert.Equal(t, "Unknown error", results[0].RawResponse)
	assert.Equal(t, 1, summary.Errored)
}
