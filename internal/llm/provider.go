package llm

import (
	"context"
	"errors"
	"time"
)

var ErrBatchNotFound = errors.New("batch not found")

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCanceling  Status = "canceling"
	StatusEnded      Status = "ended"
)

func (s Status) Terminal() bool {
	return s == StatusEnded
}

type OutcomeType string

const (
	OutcomeSucceeded OutcomeType = "succeeded"
	OutcomeErrored   OutcomeType = "errored"
	OutcomeCanceled  OutcomeType = "canceled"
	OutcomeExpired   OutcomeType = "expired"
)

// Request is one prompt submitted inside a batch.
type Request struct {
	CustomID  string
	Model     string
	MaxTokens int
	Prompt    string
}

type Counts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Canceled   int `json:"canceled"`
	Expired    int `json:"expired"`
}

func (c Counts) Completed() int {
	return c.Succeeded + c.Errored + c.Canceled + c.Expired
}

func (c Counts) Total() int {
	return c.Processing + c.Completed()
}

// Batch is a provider's view of an asynchronous job.
type Batch struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Counts     Counts    `json:"counts"`
	CreatedAt  time.Time `json:"created_at"`
	EndedAt    time.Time `json:"ended_at,omitempty"`
	ResultsURL string    `json:"results_url,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// Outcome is the per-request result of a finished batch. Text is set for
// succeeded outcomes and Error for errored ones.
type Outcome struct {
	CustomID string
	Type     OutcomeType
	Text     string
	Error    string
	Usage    Usage
}

// Completion is the reply to a synchronous single request.
type Completion struct {
	Text  string
	Usage Usage
}

// Provider is an LLM vendor's asynchronous batch API.
type Provider interface {
	Name() string
	Submit(ctx context.Context, requests []Request) (*Batch, error)
	Status(ctx context.Context, batchID string) (*Batch, error)
	Results(ctx context.Context, batchID string) ([]Outcome, error)
	Cancel(ctx context.Context, batchID string) (*Batch, error)
	List(ctx context.Context, limit int) ([]Batch, error)
	Complete(ctx context.Context, request Request) (*Completion, error)
}
