package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "data", "analysis.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestJobHistory(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := models.JobRecord{
		BatchID:       "msgbatch_1",
		Kind:          "semantic",
		Provider:      "anthropic",
		Status:        "processing",
		TotalRequests: 10,
		Processing:    10,
		CheckpointDir: "out/semantic",
		CreatedAt:     created,
	}
	require.NoError(t, c.ObserveJob(ctx, rec))

	rec.Status = "ended"
	rec.Processing = 0
	rec.Succeeded = 9
	rec.Errored = 1
	rec.CheckpointDir = ""
	rec.CreatedAt = created.Add(time.Hour)
	require.NoError(t, c.ObserveJob(ctx, rec))

	got, err := c.GetJob(ctx, "msgbatch_1")
	require.NoError(t, err)
	assert.Equal(t, "ended", got.Status)
	assert.Equal(t, 10, got.Completed())
	assert.Equal(t, "out/semantic", got.CheckpointDir)
	assert.Equal(t, created, got.CreatedAt)

	require.NoError(t, c.ObserveJob(ctx, models.JobRecord{
		BatchID: "msgbatch_2", Kind: "sentiment", Provider: "anthropic", Status: "processing", CreatedAt: created.Add(2 * time.Hour),
	}))

	jobs, err := c.ListJobs(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "msgbatch_2", jobs[0].BatchID)

	jobs, err = c.ListJobs(ctx, "ended", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "msgbatch_1", jobs[0].BatchID)

	_, err = c.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResultsUpsertByVideoID(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	item := content.Item{ID: "v1", Influencer: "jane", Platform: content.PlatformYouTube}

	failed := analysis.SemanticError(item, "expired", at)
	require.NoError(t, c.WriteSemantic(ctx, "batch_1", []analysis.SemanticResult{failed}))

	ok, err := analysis.ParseSemantic(item, `{"main_topic":"Hoboken food"}`, at)
	require.NoError(t, err)
	require.NoError(t, c.WriteSemantic(ctx, "batch_1_retry", []analysis.SemanticResult{ok}))

	raw, err := c.GetResult(ctx, analysis.KindSemantic, "v1")
	require.NoError(t, err)
	var decoded analysis.SemanticResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Hoboken food", decoded.MainTopic)

	sent, err := analysis.ParseSentiment(item, `{"sentiment_score":0.4}`, at)
	require.NoError(t, err)
	require.NoError(t, c.WriteSentiment(ctx, "batch_2", []analysis.SentimentResult{sent}))

	raw, err = c.GetResult(ctx, analysis.KindSentiment, "v1")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sentiment_score":0.4`)

	_, err = c.GetResult(ctx, analysis.KindSentiment, "v2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetResult(ctx, analysis.Kind("other"), "v1")
	assert.Error(t, err)
}

func TestReconcileRuns(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	run := models.ReconcileRun{
		ID:            "run-1",
		BatchID:       "batch_1",
		Kind:          "sentiment",
		Results:       5,
		ErrorResults:  1,
		InputTokens:   4000,
		OutputTokens:  900,
		EstimatedCost: 0.00425,
		CreatedAt:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.RecordRun(ctx, run))

	runs, err := c.ListRuns(ctx, "batch_1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0])
}
