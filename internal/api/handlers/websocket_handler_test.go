package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/batch"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/llm/llmtest"
)

func newWatchFixture(t *testing.T, pollsToEnd int) (*ProgressHandler, string) {
	t.Helper()
	p := llmtest.New()
	p.PollsToEnd = pollsToEnd
	client := llm.NewClient(p, llm.ClientOptions{Model: "m", MaxRetries: 1, RetryDelay: time.Millisecond})

	b, err := client.Submit(context.Background(), []llm.Request{{CustomID: "a"}, {CustomID: "b"}})
	require.NoError(t, err)

	return NewProgressHandler(batch.NewPoller(client), time.Millisecond, time.Second), b.ID
}

func TestWatchStreamsUntilEnded(t *testing.T) {
	h, id := newWatchFixture(t, 3)

	var types []string
	err := h.Watch(context.Background(), id, func(v interface{}) error {
		types = append(types, v.(map[string]interface{})["type"].(string))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"progress", "progress", "progress", "ended"}, types)
}

func TestWatchStopsOnSendError(t *testing.T) {
	h, id := newWatchFixture(t, 100)
	boom := errors.New("connection closed")

	sends := 0
	err := h.Watch(context.Background(), id, func(interface{}) error {
		sends++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sends)
}

func TestWatchUnknownBatch(t *testing.T) {
	h, _ := newWatchFixture(t, 1)
	err := h.Watch(context.Background(), "missing", func(interface{}) error { return nil })
	require.ErrorIs(t, err, llm.ErrBatchNotFound)
}
