package batch

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/checkpoint"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/llm/llmtest"
)

func TestSubmitWritesCheckpoint(t *testing.T) {
	p := llmtest.New()
	obs := &recordingObserver{}
	s := NewSubmitter(testClient(p), SubmitterOptions{Observers: []JobObserver{obs}})
	dir := t.TempDir()

	job, err := s.SubmitOrResume(context.Background(), testItems("a", "b", "c"), analysis.KindSemantic, dir)
	require.NoError(t, err)
	assert.Equal(t, "batch_001", job.BatchID)
	assert.Equal(t, 3, job.TotalRequests)
	assert.Equal(t, llm.StatusProcessing, job.Status)

	cp, err := CheckpointStore(dir, analysis.KindSemantic).Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "batch_001", cp.BatchID)
	assert.Equal(t, "semantic", cp.BatchType)
	assert.Equal(t, []string{"a", "b", "c"}, cp.ContentIDs)
	assert.Equal(t, "processing", cp.Status)

	reqs := p.Requests(0)
	require.Len(t, reqs, 3)
	assert.Equal(t, 2048, reqs[0].MaxTokens)
	assert.Equal(t, "test-model", reqs[0].Model)
	assert.Contains(t, reqs[0].Prompt, "Video a")

	require.Len(t, obs.records, 1)
	assert.Equal(t, "fake", obs.records[0].Provider)
	assert.Equal(t, dir, obs.records[0].CheckpointDir)
}

func TestSubmitOrResumeIsIdempotent(t *testing.T) {
	p := llmtest.New()
	s := NewSubmitter(testClient(p), SubmitterOptions{})
	dir := t.TempDir()
	ctx := context.Background()

	first, err := s.SubmitOrResume(ctx, testItems("a", "b"), analysis.KindSentiment, dir)
	require.NoError(t, err)

	second, err := s.SubmitOrResume(ctx, testItems("a", "b", "c"), analysis.KindSentiment, dir)
	require.NoError(t, err)

	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Equal(t, analysis.KindSentiment, second.Kind)
	assert.Equal(t, 1, p.SubmitCalls())

	cp, err := CheckpointStore(dir, analysis.KindSentiment).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cp.ContentIDs)
}

func TestSubmitOverEndedCheckpointResubmits(t *testing.T) {
	p := llmtest.New()
	s := NewSubmitter(testClient(p), SubmitterOptions{})
	dir := t.TempDir()
	store := CheckpointStore(dir, analysis.KindSemantic)
	require.NoError(t, store.Save(&checkpoint.Checkpoint{
		BatchID:    "old_batch",
		BatchType:  "semantic",
		Status:     "ended",
		ContentIDs: []string{"a"},
	}))

	job, err := s.SubmitOrResume(context.Background(), testItems("a"), analysis.KindSemantic, dir)
	require.NoError(t, err)
	assert.NotEqual(t, "old_batch", job.BatchID)
	assert.Equal(t, 1, p.SubmitCalls())

	cp, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, job.BatchID, cp.BatchID)
}

func TestSubmitOverCheckpointWithoutBatchIDResubmits(t *testing.T) {
	p := llmtest.New()
	s := NewSubmitter(testClient(p), SubmitterOptions{})
	dir := t.TempDir()
	store := CheckpointStore(dir, analysis.KindSemantic)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"status":"in_progress","content_ids":[]}`), 0o644))

	job, err := s.SubmitOrResume(context.Background(), testItems("a", "b"), analysis.KindSemantic, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, job.BatchID)
	assert.Equal(t, 1, p.SubmitCalls())

	cp, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, job.BatchID, cp.BatchID)
	assert.Equal(t, []string{"a", "b"}, cp.ContentIDs)

	again, err := s.SubmitOrResume(context.Background(), testItems("a", "b"), analysis.KindSemantic, dir)
	require.NoError(t, err)
	assert.Equal(t, job.BatchID, again.BatchID)
	assert.Equal(t, 1, p.SubmitCalls())
}

func TestSubmitFailureLeavesNoCheckpoint(t *testing.T) {
	p := llmtest.New()
	p.SubmitErr = errors.New("invalid api key")
	s := NewSubmitter(testClient(p), SubmitterOptions{})
	dir := t.TempDir()

	job, err := s.SubmitOrResume(context.Background(), testItems("a"), analysis.KindSemantic, dir)
	require.Error(t, err)
	assert.Nil(t, job)

	_, statErr := os.Stat(CheckpointStore(dir, analysis.KindSemantic).Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	p := llmtest.New()
	s := NewSubmitter(testClient(p), SubmitterOptions{})

	_, err := s.SubmitOrResume(context.Background(), []content.Item{{ID: ""}}, analysis.KindSemantic, t.TempDir())
	require.ErrorIs(t, err, ErrNoItems)
	assert.Zero(t, p.SubmitCalls())
}

func TestSubmitOnlyFirstChunk(t *testing.T) {
	p := llmtest.New()
	s := NewSubmitter(testClient(p), SubmitterOptions{MaxBatchSize: 2})

	job, err := s.SubmitOrResume(context.Background(), testItems("a", "b", "c"), analysis.KindSemantic, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, job.TotalRequests)
	assert.Equal(t, [][]string{{"a", "b"}}, p.Submitted())
}

func TestSubmitDeduplicatesIDs(t *testing.T) {
	p := llmtest.New()
	s := NewSubmitter(testClient(p), SubmitterOptions{MaxTokens: map[analysis.Kind]int{analysis.KindSentiment: 100}})

	items := append(testItems("a", "b"), testItems("a")...)
	_, err := s.SubmitOrResume(context.Background(), items, analysis.KindSentiment, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, p.Submitted())
	assert.Equal(t, 100, p.Requests(0)[0].MaxTokens)
}
