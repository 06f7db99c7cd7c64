package openai

import (
	"encoding/json"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/llm"
)

func decodeBatch(t *testing.T, raw string) openai.Batch {
	t.Helper()
	var b openai.Batch
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return b
}

func TestMapBatchInProgress(t *testing.T) {
	b := decodeBatch(t, `{"id":"batch_1","status":"in_progress","created_at":1735689600,
		"request_counts":{"total":10,"completed":4,"failed":1}}`)

	got := mapBatch(b)
	assert.Equal(t, llm.StatusProcessing, got.Status)
	assert.Equal(t, llm.Counts{Processing: 5, Succeeded: 4, Errored: 1}, got.Counts)
	assert.Equal(t, int64(1735689600), got.CreatedAt.Unix())
}

func TestMapBatchExpiredRemainder(t *testing.T) {
	b := decodeBatch(t, `{"id":"batch_2","status":"expired","output_file_id":"file-out",
		"request_counts":{"total":10,"completed":7,"failed":1}}`)

	got := mapBatch(b)
	assert.Equal(t, llm.StatusEnded, got.Status)
	assert.Equal(t, llm.Counts{Succeeded: 7, Errored: 1, Expired: 2}, got.Counts)
	assert.Equal(t, 10, got.Counts.Total())
	assert.Equal(t, "file-out", got.ResultsURL)
}

func TestMapStatus(t *testing.T) {
	for _, s := range []string{"validating", "in_progress", "finalizing"} {
		assert.Equal(t, llm.StatusProcessing, mapStatus(s), s)
	}
	assert.Equal(t, llm.StatusCanceling, mapStatus("cancelling"))
	for _, s := range []string{"completed", "failed", "expired", "cancelled"} {
		assert.Equal(t, llm.StatusEnded, mapStatus(s), s)
	}
}

func TestParseOutcomes(t *testing.T) {
	input := strings.Join([]string{
		`{"custom_id":"a","response":{"status_code":200,"body":{"choices":[{"message":{"role":"assistant","content":"{\"x\":1}"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}},"error":null}`,
		`{"custom_id":"b","response":{"status_code":429,"body":{"error":{"message":"rate_limited"}}},"error":null}`,
		`{"custom_id":"c","response":null,"error":{"code":"batch_expired","message":"expired"}}`,
		`{"custom_id":"d","response":null,"error":{"code":"batch_cancelled","message":"cancelled"}}`,
		``,
		`not json`,
	}, "\n")

	outcomes, err := parseOutcomes(strings.NewReader(input), "completed")
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, llm.Outcome{CustomID: "a", Type: llm.OutcomeSucceeded, Text: `{"x":1}`,
		Usage: llm.Usage{InputTokens: 12, OutputTokens: 3}}, outcomes[0])
	assert.Equal(t, llm.OutcomeErrored, outcomes[1].Type)
	assert.Contains(t, outcomes[1].Error, "rate_limited")
	assert.Equal(t, llm.OutcomeExpired, outcomes[2].Type)
	assert.Equal(t, llm.OutcomeCanceled, outcomes[3].Type)
}
