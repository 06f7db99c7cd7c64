package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/pkg/logger"
)

// Provider talks to the Anthropic Message Batches API.
type Provider struct {
	client anthropic.Client
}

func New(apiKey, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	logger.Info("Anthropic provider initialized")
	return &Provider{client: anthropic.NewClient(opts...)}, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Submit(ctx context.Context, requests []llm.Request) (*llm.Batch, error) {
	params := anthropic.MessageBatchNewParams{
		Requests: make([]anthropic.MessageBatchNewParamsRequest, 0, len(requests)),
	}
	for _, req := range requests {
		params.Requests = append(params.Requests, anthropic.MessageBatchNewParamsRequest{
			CustomID: req.CustomID,
			Params: anthropic.MessageBatchNewParamsRequestParams{
				Model:     anthropic.Model(req.Model),
				MaxTokens: int64(req.MaxTokens),
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
				},
			},
		})
	}

	batch, err := p.client.Messages.Batches.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create message batch: %w", err)
	}

	logger.Debug("Anthropic batch created",
		zap.String("batch_id", batch.ID),
		zap.Int("requests", len(requests)),
	)
	return mapBatch(batch), nil
}

func (p *Provider) Status(ctx context.Context, batchID string) (*llm.Batch, error) {
	batch, err := p.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, wrapError("retrieve batch", batchID, err)
	}
	return mapBatch(batch), nil
}

func (p *Provider) Results(ctx context.Context, batchID string) ([]llm.Outcome, error) {
	stream := p.client.Messages.Batches.ResultsStreaming(ctx, batchID)
	defer stream.Close()

	var outcomes []llm.Outcome
	for stream.Next() {
		outcomes = append(outcomes, mapResult(stream.Current()))
	}
	if err := stream.Err(); err != nil {
		return nil, wrapError("stream batch results", batchID, err)
	}

	return outcomes, nil
}

func (p *Provider) Cancel(ctx context.Context, batchID string) (*llm.Batch, error) {
	batch, err := p.client.Messages.Batches.Cancel(ctx, batchID)
	if err != nil {
		return nil, wrapError("cancel batch", batchID, err)
	}
	return mapBatch(batch), nil
}

func (p *Provider) List(ctx context.Context, limit int) ([]llm.Batch, error) {
	page, err := p.client.Messages.Batches.List(ctx, anthropic.MessageBatchListParams{
		Limit: anthropic.Int(int64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	batches := make([]llm.Batch, 0, len(page.Data))
	for i := range page.Data {
		batches = append(batches, *mapBatch(&page.Data[i]))
	}
	return batches, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return &llm.Completion{
		Text:  messageText(msg),
		Usage: llm.Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)},
	}, nil
}

func mapBatch(b *anthropic.MessageBatch) *llm.Batch {
	out := &llm.Batch{
		ID:        b.ID,
		Status:    mapStatus(string(b.ProcessingStatus)),
		CreatedAt: b.CreatedAt,
		EndedAt:   b.EndedAt,
		Counts: llm.Counts{
			Processing: int(b.RequestCounts.Processing),
			Succeeded:  int(b.RequestCounts.Succeeded),
			Errored:    int(b.RequestCounts.Errored),
			Canceled:   int(b.RequestCounts.Canceled),
			Expired:    int(b.RequestCounts.Expired),
		},
		ResultsURL: b.ResultsURL,
	}
	return out
}

func mapStatus(s string) llm.Status {
	switch s {
	case "ended":
		return llm.StatusEnded
	case "canceling":
		return llm.StatusCanceling
	default:
		return llm.StatusProcessing
	}
}

func mapResult(r anthropic.MessageBatchIndividualResponse) llm.Outcome {
	out := llm.Outcome{CustomID: r.CustomID}

	switch r.Result.Type {
	case "succeeded":
		out.Type = llm.OutcomeSucceeded
		out.Text = messageText(&r.Result.Message)
		out.Usage = llm.Usage{
			InputTokens:  int(r.Result.Message.Usage.InputTokens),
			OutputTokens: int(r.Result.Message.Usage.OutputTokens),
		}
	case "errored":
		out.Type = llm.OutcomeErrored
		out.Error = errorDescription(r.Result.RawJSON())
	case "canceled":
		out.Type = llm.OutcomeCanceled
	case "expired":
		out.Type = llm.OutcomeExpired
	default:
		out.Type = llm.OutcomeErrored
		out.Error = fmt.Sprintf("unexpected result type %q", r.Result.Type)
	}
	return out
}

func messageText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

type erroredResult struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Error   struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"error"`
}

func errorDescription(raw string) string {
	var payload erroredResult
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "unknown error"
	}

	inner := payload.Error.Error
	switch {
	case inner.Message != "":
		return strings.TrimSpace(inner.Type + ": " + inner.Message)
	case payload.Error.Message != "":
		return payload.Error.Message
	case inner.Type != "":
		return inner.Type
	default:
		return "unknown error"
	}
}

func wrapError(op, batchID string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("failed to %s %s: %w", op, batchID, llm.ErrBatchNotFound)
	}
	return fmt.Errorf("failed to %s %s: %w", op, batchID, err)
}
