package export

import (
	"sort"

	"github.com/influencer-lens/backend/internal/analysis"
)

const topN = 10

type GroupStats struct {
	Count                 int            `json:"count"`
	AvgSentiment          float64        `json:"avg_sentiment"`
	AvgAuthenticity       float64        `json:"avg_authenticity"`
	AvgControversy        float64        `json:"avg_controversy"`
	AvgShareability       float64        `json:"avg_shareability"`
	SentimentDistribution map[string]int `json:"sentiment_distribution,omitempty"`
	PrimaryEmotions       map[string]int `json:"primary_emotions,omitempty"`
	RhetoricalModes       map[string]int `json:"rhetorical_modes,omitempty"`
}

type SentimentAggregate struct {
	Overall      GroupStats            `json:"overall"`
	ByPlatform   map[string]GroupStats `json:"by_platform"`
	ByInfluencer map[string]GroupStats `json:"by_influencer"`
	ErrorResults int                   `json:"error_results"`
}

// AggregateSentiment averages the genuine results overall, per platform and
// per influencer. Error results are counted but excluded from every average.
func AggregateSentiment(results []analysis.SentimentResult) SentimentAggregate {
	agg := SentimentAggregate{
		ByPlatform:   map[string]GroupStats{},
		ByInfluencer: map[string]GroupStats{},
	}

	var ok []analysis.SentimentResult
	byPlatform := map[string][]analysis.SentimentResult{}
	byInfluencer := map[string][]analysis.SentimentResult{}
	for _, r := range results {
		if r.IsError() {
			agg.ErrorResults++
			continue
		}
		ok = append(ok, r)
		byPlatform[r.Platform] = append(byPlatform[r.Platform], r)
		byInfluencer[r.Influencer] = append(byInfluencer[r.Influencer], r)
	}

	agg.Overall = group(ok)
	agg.Overall.SentimentDistribution = countField(ok, func(r analysis.SentimentResult) string { return r.SentimentLabel }, 0)
	agg.Overall.RhetoricalModes = countField(ok, func(r analysis.SentimentResult) string { return r.RhetoricalMode }, topN)
	agg.Overall.PrimaryEmotions = countField(ok, primaryEmotion, topN)

	for platform, rs := range byPlatform {
		agg.ByPlatform[platform] = group(rs)
	}
	for influencer, rs := range byInfluencer {
		g := group(rs)
		g.PrimaryEmotions = countField(rs, primaryEmotion, topN)
		agg.ByInfluencer[influencer] = g
	}

	return agg
}

func primaryEmotion(r analysis.SentimentResult) string { return r.PrimaryEmotion }

func group(rs []analysis.SentimentResult) GroupStats {
	g := GroupStats{Count: len(rs)}
	if len(rs) == 0 {
		return g
	}
	for _, r := range rs {
		g.AvgSentiment += r.SentimentScore
		g.AvgAuthenticity += r.AuthenticityScore
		g.AvgControversy += r.ControversyPotential
		g.AvgShareability += r.ShareabilityScore
	}
	n := float64(len(rs))
	g.AvgSentiment /= n
	g.AvgAuthenticity /= n
	g.AvgControversy /= n
	g.AvgShareability /= n
	return g
}

// countField tallies values, keeping the limit most frequent (ties broken by
// name). A zero limit keeps everything.
func countField(rs []analysis.SentimentResult, field func(analysis.SentimentResult) string, limit int) map[string]int {
	counts := map[string]int{}
	for _, r := range rs {
		counts[field(r)]++
	}
	if limit <= 0 || len(counts) <= limit {
		return counts
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	top := make(map[string]int, limit)
	for _, k := range keys[:limit] {
		top[k] = counts[k]
	}
	return top
}
