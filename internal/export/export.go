package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/pkg/logger"
	"github.com/influencer-lens/backend/pkg/utils"
)

const AggregateStatsFile = "sentiment_aggregate_stats.json"

var semanticColumns = []string{
	"video_id", "influencer", "platform", "main_topic", "content_type", "content_format",
	"nj_relevance_score", "local_vs_universal", "tone", "target_audience", "production_quality",
	"originality_score", "analysis_confidence",
}

var sentimentColumns = []string{
	"video_id", "influencer", "platform", "sentiment_score", "sentiment_label", "primary_emotion",
	"secondary_emotion", "formality", "energy_level", "humor_level", "rhetorical_mode",
	"authenticity_score", "controversy_potential", "shareability_score", "confidence",
}

// WriteSemantic writes the full JSON array and the flattened CSV summary.
func WriteSemantic(dir string, results []analysis.SemanticResult) error {
	if results == nil {
		results = []analysis.SemanticResult{}
	}
	if err := writeJSON(filepath.Join(dir, analysis.KindSemantic.ResultsFile()), results); err != nil {
		return err
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.VideoID, r.Influencer, r.Platform, r.MainTopic, r.ContentType, r.ContentFormat,
			formatFloat(r.NJRelevanceScore), r.LocalVsUniversal, r.Tone, r.TargetAudience, r.ProductionQuality,
			formatFloat(r.OriginalityScore), formatFloat(r.AnalysisConfidence),
		})
	}
	if err := writeCSV(filepath.Join(dir, analysis.KindSemantic.SummaryFile()), semanticColumns, rows); err != nil {
		return err
	}

	logger.Info("Semantic results exported", zap.String("dir", dir), zap.Int("results", len(results)))
	return nil
}

// WriteSentiment writes the full JSON array, the CSV summary and aggregate statistics.
func WriteSentiment(dir string, results []analysis.SentimentResult) error {
	if results == nil {
		results = []analysis.SentimentResult{}
	}
	if err := writeJSON(filepath.Join(dir, analysis.KindSentiment.ResultsFile()), results); err != nil {
		return err
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.VideoID, r.Influencer, r.Platform, formatFloat(r.SentimentScore), r.SentimentLabel, r.PrimaryEmotion,
			r.SecondaryEmotion, r.Formality, r.EnergyLevel, formatFloat(r.HumorLevel), r.RhetoricalMode,
			formatFloat(r.AuthenticityScore), formatFloat(r.ControversyPotential), formatFloat(r.ShareabilityScore),
			formatFloat(r.Confidence),
		})
	}
	if err := writeCSV(filepath.Join(dir, analysis.KindSentiment.SummaryFile()), sentimentColumns, rows); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(dir, AggregateStatsFile), AggregateSentiment(results)); err != nil {
		return err
	}

	logger.Info("Sentiment results exported", zap.String("dir", dir), zap.Int("results", len(results)))
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to encode csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to encode csv rows: %w", err)
	}
	if err := utils.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
