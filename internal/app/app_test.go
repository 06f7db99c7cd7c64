package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm/llmtest"
	"github.com/influencer-lens/backend/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		LLM:     config.LLMConfig{Provider: "anthropic", Model: "test-model", MaxRetries: 1},
		Batch:   config.BatchConfig{OutputDir: filepath.Join(dir, "out"), PollIntervalSec: 1, MaxWaitSec: 60, MaxBatchSize: 100},
		Pricing: config.PricingConfig{InputPerMTok: 0.5, OutputPerMTok: 2.5},
		SQLite:  config.SQLiteConfig{Path: filepath.Join(dir, "db", "analysis.db")},
	}
}

func TestNewProviderRejectsUnknown(t *testing.T) {
	_, err := NewProvider(config.LLMConfig{Provider: "other"})
	assert.Error(t, err)

	_, err = NewProvider(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, llmtest.New())
	defer a.Close()
	require.NotNil(t, a.SQLite)
	assert.Nil(t, a.Redis)

	items := []content.Item{
		{ID: "v1", Title: "Boardwalk", Platform: content.PlatformTikTok},
		{ID: "v2", Title: "Pork roll", Platform: content.PlatformInstagram},
	}
	report, err := a.Runner([]analysis.Kind{analysis.KindSentiment}).Run(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, report.Summaries, 1)

	ctx := context.Background()
	jobs, err := a.SQLite.ListJobs(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "ended", jobs[0].Status)
	assert.Equal(t, "sentiment", jobs[0].Kind)

	runs, err := a.SQLite.ListRuns(ctx, jobs[0].BatchID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = a.SQLite.GetResult(ctx, analysis.KindSentiment, "v2")
	assert.NoError(t, err)
}
