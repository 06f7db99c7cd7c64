// Package llmtest provides an in-memory llm.Provider for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/influencer-lens/backend/internal/llm"
)

// Provider simulates an asynchronous batch API. Each batch ends after
// PollsToEnd status queries; results are returned in reverse submission order.
type Provider struct {
	// OutcomeFor scripts the eventual outcome of each request. The default
	// succeeds with an empty JSON object.
	OutcomeFor func(req llm.Request) llm.Outcome
	PollsToEnd int
	SubmitErr  error
	StatusErr  error

	mu          sync.Mutex
	seq         int
	submitCalls int
	submitted   [][]llm.Request
	batches     map[string]*fakeBatch
	order       []string
}

type fakeBatch struct {
	batch    llm.Batch
	outcomes []llm.Outcome
	polls    int
	canceled bool
}

func New() *Provider {
	return &Provider{batches: make(map[string]*fakeBatch)}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Submit(_ context.Context, requests []llm.Request) (*llm.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.submitCalls++
	if p.SubmitErr != nil {
		return nil, p.SubmitErr
	}

	p.seq++
	id := fmt.Sprintf("batch_%03d", p.seq)
	reqs := append([]llm.Request(nil), requests...)
	p.submitted = append(p.submitted, reqs)

	outcomes := make([]llm.Outcome, len(reqs))
	for i, req := range reqs {
		outcomes[i] = p.outcome(req)
	}

	fb := &fakeBatch{
		batch: llm.Batch{
			ID:        id,
			Status:    llm.StatusProcessing,
			Counts:    llm.Counts{Processing: len(reqs)},
			CreatedAt: time.Date(2025, 1, 1, 0, 0, p.seq, 0, time.UTC),
		},
		outcomes: outcomes,
	}
	p.batches[id] = fb
	p.order = append(p.order, id)

	b := fb.batch
	return &b, nil
}

func (p *Provider) outcome(req llm.Request) llm.Outcome {
	if p.OutcomeFor != nil {
		o := p.OutcomeFor(req)
		o.CustomID = req.CustomID
		return o
	}
	return llm.Outcome{CustomID: req.CustomID, Type: llm.OutcomeSucceeded, Text: "{}"}
}

func (p *Provider) Status(_ context.Context, batchID string) (*llm.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.StatusErr != nil {
		return nil, p.StatusErr
	}
	fb, ok := p.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("status %s: %w", batchID, llm.ErrBatchNotFound)
	}

	fb.polls++
	if fb.batch.Status != llm.StatusEnded && (fb.canceled || fb.polls >= p.PollsToEnd) {
		p.end(fb)
	}

	b := fb.batch
	return &b, nil
}

func (p *Provider) end(fb *fakeBatch) {
	if fb.canceled {
		for i := range fb.outcomes {
			fb.outcomes[i] = llm.Outcome{CustomID: fb.outcomes[i].CustomID, Type: llm.OutcomeCanceled}
		}
	}

	var counts llm.Counts
	for _, o := range fb.outcomes {
		switch o.Type {
		case llm.OutcomeSucceeded:
			counts.Succeeded++
		case llm.OutcomeErrored:
			counts.Errored++
		case llm.OutcomeCanceled:
			counts.Canceled++
		case llm.OutcomeExpired:
			counts.Expired++
		}
	}
	fb.batch.Counts = counts
	fb.batch.Status = llm.StatusEnded
	fb.batch.EndedAt = fb.batch.CreatedAt.Add(time.Hour)
	fb.batch.ResultsURL = "memory://" + fb.batch.ID
}

func (p *Provider) Results(_ context.Context, batchID string) ([]llm.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fb, ok := p.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("results %s: %w", batchID, llm.ErrBatchNotFound)
	}
	if fb.batch.Status != llm.StatusEnded {
		return nil, errors.New("results not available until batch has ended")
	}

	out := make([]llm.Outcome, 0, len(fb.outcomes))
	for i := len(fb.outcomes) - 1; i >= 0; i-- {
		out = append(out, fb.outcomes[i])
	}
	return out, nil
}

func (p *Provider) Cancel(_ context.Context, batchID string) (*llm.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fb, ok := p.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("cancel %s: %w", batchID, llm.ErrBatchNotFound)
	}
	if fb.batch.Status != llm.StatusEnded {
		fb.canceled = true
		fb.batch.Status = llm.StatusCanceling
	}
	b := fb.batch
	return &b, nil
}

func (p *Provider) List(_ context.Context, limit int) ([]llm.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := append([]string(nil), p.order...)
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]llm.Batch, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.batches[id].batch)
	}
	return out, nil
}

func (p *Provider) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	o := p.outcome(req)
	if o.Type != llm.OutcomeSucceeded {
		return nil, fmt.Errorf("completion %s: %s", o.Type, o.Error)
	}
	return &llm.Completion{Text: o.Text, Usage: o.Usage}, nil
}

// SubmitCalls reports how many times Submit was invoked.
func (p *Provider) SubmitCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitCalls
}

// Submitted returns the custom ids of each submitted batch.
func (p *Provider) Submitted() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([][]string, len(p.submitted))
	for i, reqs := range p.submitted {
		for _, r := range reqs {
			out[i] = append(out[i], r.CustomID)
		}
	}
	return out
}

// Requests returns the requests of the n-th submitted batch.
func (p *Provider) Requests(n int) []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Request(nil), p.submitted[n]...)
}

// Polls reports how many status queries a batch received.
func (p *Provider) Polls(batchID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fb, ok := p.batches[batchID]; ok {
		return fb.polls
	}
	return 0
}
