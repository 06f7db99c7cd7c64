package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/storage/models"
)

func testClient(p llm.Provider) *llm.Client {
	return llm.NewClient(p, llm.ClientOptions{
		Model:      "test-model",
		Pricing:    llm.Pricing{InputPerMTok: 0.5, OutputPerMTok: 2.5},
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
}

func testItems(ids ...string) []content.Item {
	items := make([]content.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, content.Item{
			ID:          id,
			Influencer:  "creator_" + id,
			Platform:    content.PlatformTikTok,
			Title:       "Video " + id,
			Description: "Description for " + id,
		})
	}
	return items
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func testPoller(client *llm.Client, clock *fakeClock, observers ...JobObserver) *Poller {
	p := NewPoller(client, observers...)
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p
}

// submitAndEnd submits items and polls once so the fake batch ends.
func submitAndEnd(t *testing.T, client *llm.Client, ids ...string) string {
	t.Helper()
	reqs := make([]llm.Request, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, llm.Request{CustomID: id, Model: "test-model", Prompt: "p"})
	}
	b, err := client.Submit(context.Background(), reqs)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := client.Status(context.Background(), b.ID); err != nil {
		t.Fatalf("status: %v", err)
	}
	return b.ID
}

type recordingObserver struct {
	mu      sync.Mutex
	records []models.JobRecord
}

func (o *recordingObserver) ObserveJob(_ context.Context, rec models.JobRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
	return nil
}

type recordingSink struct {
	semantic  map[string][]analysis.SemanticResult
	sentiment map[string][]analysis.SentimentResult
	runs      []models.ReconcileRun
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		semantic:  map[string][]analysis.SemanticResult{},
		sentiment: map[string][]analysis.SentimentResult{},
	}
}

func (s *recordingSink) WriteSemantic(_ context.Context, batchID string, results []analysis.SemanticResult) error {
	s.semantic[batchID] = results
	return nil
}

func (s *recordingSink) WriteSentiment(_ context.Context, batchID string, results []analysis.SentimentResult) error {
	s.sentiment[batchID] = results
	return nil
}

func (s *recordingSink) RecordRun(_ context.Context, run models.ReconcileRun) error {
	s.runs = append(s.runs, run)
	return nil
}
