package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "influencer_lens_provider_request_duration_seconds",
			Help:    "Duration of LLM provider API calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 120},
		},
		[]string{"provider", "operation", "status"},
	)

	BatchesSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_batches_submitted_total",
			Help: "Batches submitted to the provider",
		},
		[]string{"kind", "provider"},
	)

	BatchesResumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_batches_resumed_total",
			Help: "Submissions answered from an existing checkpoint",
		},
		[]string{"kind"},
	)

	RequestsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_requests_submitted_total",
			Help: "Analysis requests submitted inside batches",
		},
		[]string{"kind"},
	)

	ItemsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "influencer_lens_items_rejected_total",
			Help: "Content items dropped by validation",
		},
	)

	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_polls_total",
			Help: "Batch status polls",
		},
		[]string{"kind", "status"},
	)

	BatchProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "influencer_lens_batch_progress_ratio",
			Help: "Completed fraction of an in-flight batch at the last poll",
		},
		[]string{"kind", "batch_id"},
	)

	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_outcomes_total",
			Help: "Per-item batch outcomes seen during reconciliation",
		},
		[]string{"kind", "outcome"},
	)

	ParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_parse_errors_total",
			Help: "Succeeded outcomes whose response could not be parsed",
		},
		[]string{"kind"},
	)

	RetriesSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_retry_items_total",
			Help: "Items resubmitted by the retry coordinator",
		},
		[]string{"kind"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	LLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_llm_cost_usd",
			Help: "Estimated LLM API cost in USD",
		},
		[]string{"model"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influencer_lens_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			ProviderRequestDuration,
			BatchesSubmitted,
			BatchesResumed,
			RequestsSubmitted,
			ItemsRejected,
			PollsTotal,
			BatchProgress,
			OutcomesTotal,
			ParseErrors,
			RetriesSubmitted,
			LLMTokensUsed,
			LLMCost,
			CacheHits,
			CacheMisses,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
