package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/llm/llmtest"
)

func TestRetryDir(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "semantic_retry"), RetryDir(filepath.Join("out", "semantic")+"/"))
	assert.Equal(t, "batch_retry", RetryDir("batch"))
}

func TestRetryableIDsExcludesCanceled(t *testing.T) {
	ids := RetryableIDs([]llm.Outcome{
		{CustomID: "a", Type: llm.OutcomeSucceeded},
		{CustomID: "b", Type: llm.OutcomeErrored},
		{CustomID: "c", Type: llm.OutcomeCanceled},
		{CustomID: "d", Type: llm.OutcomeExpired},
	})
	assert.Equal(t, map[string]struct{}{"b": {}, "d": {}}, ids)
}

func TestRetrySubmitsFailedItemsInOrder(t *testing.T) {
	p := scriptedProvider()
	client := testClient(p)
	rc := NewRetryCoordinator(client, NewSubmitter(client, SubmitterOptions{}))
	batchID := submitAndEnd(t, client, "a", "b", "c", "d", "e")
	dir := filepath.Join(t.TempDir(), "semantic")

	job, err := rc.Retry(context.Background(), batchID, testItems("e", "d", "c", "b", "a"), analysis.KindSemantic, dir)
	require.NoError(t, err)
	require.NotNil(t, job)

	submitted := p.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, []string{"d", "b"}, submitted[1])

	cp, err := CheckpointStore(RetryDir(dir), analysis.KindSemantic).Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, job.BatchID, cp.BatchID)
}

func TestRetryNothingToDo(t *testing.T) {
	p := llmtest.New()
	client := testClient(p)
	rc := NewRetryCoordinator(client, NewSubmitter(client, SubmitterOptions{}))
	batchID := submitAndEnd(t, client, "a", "b")

	job, err := rc.Retry(context.Background(), batchID, testItems("a", "b"), analysis.KindSentiment, t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Equal(t, 1, p.SubmitCalls())
}

func TestRetryDropsIDsWithoutItems(t *testing.T) {
	p := scriptedProvider()
	client := testClient(p)
	rc := NewRetryCoordinator(client, NewSubmitter(client, SubmitterOptions{}))
	batchID := submitAndEnd(t, client, "b")

	job, err := rc.Retry(context.Background(), batchID, testItems("a"), analysis.KindSemantic, t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, job)
}
