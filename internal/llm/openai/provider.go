package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/pkg/logger"
)

const completionWindow = "24h"

// Provider talks to the OpenAI Batch API using chat completion requests.
type Provider struct {
	client *openai.Client
}

func New(apiKey, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	logger.Info("OpenAI provider initialized")
	return &Provider{client: openai.NewClientWithConfig(cfg)}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Submit(ctx context.Context, requests []llm.Request) (*llm.Batch, error) {
	upload := openai.UploadBatchFileRequest{
		FileName: fmt.Sprintf("analysis-%d.jsonl", time.Now().UnixNano()),
	}
	for _, req := range requests {
		upload.AddChatCompletion(req.CustomID, chatRequest(req))
	}

	resp, err := p.client.CreateBatchWithUploadFile(ctx, openai.CreateBatchWithUploadFileRequest{
		Endpoint:               openai.BatchEndpointChatCompletions,
		CompletionWindow:       completionWindow,
		UploadBatchFileRequest: upload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	logger.Debug("OpenAI batch created",
		zap.String("batch_id", resp.ID),
		zap.String("input_file_id", resp.InputFileID),
		zap.Int("requests", len(requests)),
	)
	return mapBatch(resp.Batch), nil
}

func (p *Provider) Status(ctx context.Context, batchID string) (*llm.Batch, error) {
	resp, err := p.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return nil, wrapError("retrieve batch", batchID, err)
	}
	return mapBatch(resp.Batch), nil
}

func (p *Provider) Results(ctx context.Context, batchID string) ([]llm.Outcome, error) {
	resp, err := p.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return nil, wrapError("retrieve batch", batchID, err)
	}
	if mapStatus(resp.Status) != llm.StatusEnded {
		return nil, fmt.Errorf("batch %s has not ended (status %s)", batchID, resp.Status)
	}

	var outcomes []llm.Outcome
	for _, fileID := range []*string{resp.OutputFileID, resp.ErrorFileID} {
		if fileID == nil || *fileID == "" {
			continue
		}
		fileOutcomes, err := p.readOutcomes(ctx, *fileID, resp.Status)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, fileOutcomes...)
	}

	return outcomes, nil
}

func (p *Provider) readOutcomes(ctx context.Context, fileID, batchStatus string) ([]llm.Outcome, error) {
	raw, err := p.client.GetFileContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to download results file %s: %w", fileID, err)
	}
	defer raw.Close()

	outcomes, err := parseOutcomes(raw, batchStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file %s: %w", fileID, err)
	}
	return outcomes, nil
}

func (p *Provider) Cancel(ctx context.Context, batchID string) (*llm.Batch, error) {
	resp, err := p.client.CancelBatch(ctx, batchID)
	if err != nil {
		return nil, wrapError("cancel batch", batchID, err)
	}
	return mapBatch(resp.Batch), nil
}

func (p *Provider) List(ctx context.Context, limit int) ([]llm.Batch, error) {
	resp, err := p.client.ListBatch(ctx, nil, &limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	batches := make([]llm.Batch, 0, len(resp.Data))
	for _, b := range resp.Data {
		batches = append(batches, *mapBatch(b))
	}
	return batches, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	resp, err := p.client.CreateChatCompletion(ctx, chatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	return completionOf(resp), nil
}

func chatRequest(req llm.Request) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
}

func completionOf(resp openai.ChatCompletionResponse) *llm.Completion {
	c := &llm.Completion{
		Usage: llm.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
	}
	if len(resp.Choices) > 0 {
		c.Text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	return c
}

func mapStatus(s string) llm.Status {
	switch s {
	case "completed", "failed", "expired", "cancelled":
		return llm.StatusEnded
	case "cancelling":
		return llm.StatusCanceling
	default:
		return llm.StatusProcessing
	}
}

func mapBatch(b openai.Batch) *llm.Batch {
	status := mapStatus(b.Status)
	total := b.RequestCounts.Total
	remaining := total - b.RequestCounts.Completed - b.RequestCounts.Failed
	if remaining < 0 {
		remaining = 0
	}

	counts := llm.Counts{
		Succeeded: b.RequestCounts.Completed,
		Errored:   b.RequestCounts.Failed,
	}
	if status != llm.StatusEnded {
		counts.Processing = remaining
	} else {
		switch b.Status {
		case "expired":
			counts.Expired = remaining
		case "cancelled":
			counts.Canceled = remaining
		default:
			counts.Errored += remaining
		}
	}

	out := &llm.Batch{
		ID:        b.ID,
		Status:    status,
		Counts:    counts,
		CreatedAt: time.Unix(int64(b.CreatedAt), 0).UTC(),
	}
	if b.OutputFileID != nil {
		out.ResultsURL = *b.OutputFileID
	}
	return out
}

type outputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int             `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseOutcomes(r io.Reader, batchStatus string) ([]llm.Outcome, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var outcomes []llm.Outcome
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry outputLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			logger.Warn("Skipping malformed batch output line", zap.Error(err))
			continue
		}
		outcomes = append(outcomes, lineOutcome(entry, batchStatus))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func lineOutcome(entry outputLine, batchStatus string) llm.Outcome {
	out := llm.Outcome{CustomID: entry.CustomID}

	if entry.Error != nil {
		switch entry.Error.Code {
		case "batch_expired":
			out.Type = llm.OutcomeExpired
		case "batch_cancelled":
			out.Type = llm.OutcomeCanceled
		default:
			out.Type = llm.OutcomeErrored
			out.Error = strings.TrimSpace(entry.Error.Code + ": " + entry.Error.Message)
		}
		return out
	}

	if entry.Response == nil {
		out.Type = llm.OutcomeErrored
		out.Error = "missing response (batch " + batchStatus + ")"
		return out
	}

	if entry.Response.StatusCode != http.StatusOK {
		var body struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(entry.Response.Body, &body)
		out.Type = llm.OutcomeErrored
		out.Error = fmt.Sprintf("status %d: %s", entry.Response.StatusCode, body.Error.Message)
		return out
	}

	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(entry.Response.Body, &completion); err != nil {
		out.Type = llm.OutcomeErrored
		out.Error = "unreadable completion body"
		return out
	}

	c := completionOf(completion)
	out.Type = llm.OutcomeSucceeded
	out.Text = c.Text
	out.Usage = c.Usage
	return out
}

func wrapError(op, batchID string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("failed to %s %s: %w", op, batchID, llm.ErrBatchNotFound)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("failed to %s %s: %w", op, batchID, llm.ErrBatchNotFound)
	}
	return fmt.Errorf("failed to %s %s: %w", op, batchID, err)
}
