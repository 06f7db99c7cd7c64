package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
)

var at = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteSemantic(t *testing.T) {
	dir := t.TempDir()
	item := content.Item{ID: "v1", Influencer: "Jane", Platform: content.PlatformTikTok}
	ok, err := analysis.ParseSemantic(item, `{"main_topic":"Shore towns, summer","nj_relevance_score":0.75}`, at)
	require.NoError(t, err)
	results := []analysis.SemanticResult{ok, analysis.SemanticError(content.Item{ID: "v2"}, "expired", at)}

	require.NoError(t, WriteSemantic(dir, results))

	rows := readCSV(t, filepath.Join(dir, "semantic_analysis_summary.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, semanticColumns, rows[0])
	assert.Equal(t, "Shore towns, summer", rows[1][3])
	assert.Equal(t, "0.75", rows[1][6])
	assert.Equal(t, "error", rows[2][4])

	data, err := os.ReadFile(filepath.Join(dir, "semantic_analysis_full.json"))
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "expired", decoded[1]["raw_response"])
	assert.Equal(t, []any{}, decoded[0]["subtopics"])
}

func TestWriteSemanticEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteSemantic(dir, nil))
	data, err := os.ReadFile(filepath.Join(dir, "semantic_analysis_full.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestWriteSentiment(t *testing.T) {
	dir := t.TempDir()
	a, err := analysis.ParseSentiment(content.Item{ID: "a", Influencer: "Jane", Platform: content.PlatformTikTok},
		`{"sentiment_score":0.5,"sentiment_label":"positive","primary_emotion":"joy","authenticity_score":0.8}`, at)
	require.NoError(t, err)
	b, err := analysis.ParseSentiment(content.Item{ID: "b", Influencer: "Jane", Platform: content.PlatformYouTube},
		`{"sentiment_score":-0.5,"sentiment_label":"negative","primary_emotion":"anger","authenticity_score":0.4}`, at)
	require.NoError(t, err)
	failed := analysis.SentimentError(content.Item{ID: "c", Influencer: "Joe"}, "rate_limited", at)

	require.NoError(t, WriteSentiment(dir, []analysis.SentimentResult{a, b, failed}))

	rows := readCSV(t, filepath.Join(dir, "sentiment_summary.csv"))
	require.Len(t, rows, 4)
	assert.Equal(t, sentimentColumns, rows[0])
	assert.Equal(t, "error", rows[3][4])

	data, err := os.ReadFile(filepath.Join(dir, AggregateStatsFile))
	require.NoError(t, err)
	var agg SentimentAggregate
	require.NoError(t, json.Unmarshal(data, &agg))
	assert.Equal(t, 2, agg.Overall.Count)
	assert.Equal(t, 1, agg.ErrorResults)
	assert.InDelta(t, 0.0, agg.Overall.AvgSentiment, 1e-9)
	assert.InDelta(t, 0.6, agg.ByInfluencer["Jane"].AvgAuthenticity, 1e-9)
	assert.Equal(t, 1, agg.ByPlatform["youtube"].Count)
	assert.NotContains(t, agg.ByInfluencer, "Joe")
}

func TestCountFieldTopN(t *testing.T) {
	var rs []analysis.SentimentResult
	for _, e := range []string{"a", "a", "b", "c", "c", "c"} {
		rs = append(rs, analysis.SentimentResult{PrimaryEmotion: e})
	}
	got := countField(rs, primaryEmotion, 2)
	assert.Equal(t, map[string]int{"c": 3, "a": 2}, got)
}
