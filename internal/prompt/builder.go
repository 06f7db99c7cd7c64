package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
)

type limits struct {
	transcript  int
	ocr         int
	description int
}

var (
	semanticLimits  = limits{transcript: 8000, ocr: 2000, description: 2000}
	sentimentLimits = limits{transcript: 6000, ocr: 1500, description: 4000}
)

var templates = map[analysis.Kind]*template.Template{
	analysis.KindSemantic:  template.Must(template.New("semantic").Parse(semanticTemplate)),
	analysis.KindSentiment: template.Must(template.New("sentiment").Parse(sentimentTemplate)),
}

type view struct {
	Platform    string
	Influencer  string
	Title       string
	Description string
	Duration    string
	Transcript  string
	OCRText     string
}

// Build renders the analysis prompt for item. The output depends only on the
// item and kind.
func Build(item content.Item, kind analysis.Kind) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("no prompt template for kind %q", kind)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, render(item, kind)); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", kind, err)
	}
	return sb.String(), nil
}

func render(item content.Item, kind analysis.Kind) view {
	v := view{
		Platform:   orDefault(string(item.Platform), string(content.PlatformUnknown)),
		Influencer: orDefault(item.Influencer, "unknown"),
		Title:      orDefault(item.Title, "(no title)"),
		Duration:   strconv.FormatFloat(item.Duration, 'f', -1, 64),
	}

	switch kind {
	case analysis.KindSentiment:
		transcript := content.Truncate(item.Transcript, sentimentLimits.transcript)
		if strings.TrimSpace(transcript) == "" {
			transcript = content.Truncate(item.Description, sentimentLimits.description)
		}
		v.Transcript = orDefault(transcript, "(no transcript)")
		v.OCRText = orDefault(content.Truncate(item.OCRText, sentimentLimits.ocr), "(no OCR text)")
	default:
		v.Description = orDefault(content.Truncate(item.Description, semanticLimits.description), "(no description)")
		v.Transcript = orDefault(content.Truncate(item.Transcript, semanticLimits.transcript), "(no transcript available)")
		v.OCRText = orDefault(content.Truncate(item.OCRText, semanticLimits.ocr), "(no OCR text)")
	}

	return v
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

type Params struct {
	Model     string
	MaxTokens int
}

// NewRequest builds the provider request for item. The custom id is the item id.
func NewRequest(item content.Item, kind analysis.Kind, params Params) (llm.Request, error) {
	text, err := Build(item, kind)
	if err != nil {
		return llm.Request{}, err
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = kind.DefaultMaxTokens()
	}

	return llm.Request{
		CustomID:  item.ID,
		Model:     params.Model,
		MaxTokens: maxTokens,
		Prompt:    text,
	}, nil
}

// NewRequests builds one request per item, preserving order.
func NewRequests(items []content.Item, kind analysis.Kind, params Params) ([]llm.Request, error) {
	requests := make([]llm.Request, 0, len(items))
	for _, item := range items {
		req, err := NewRequest(item, kind, params)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", item.ID, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}
