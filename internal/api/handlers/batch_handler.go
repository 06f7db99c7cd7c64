package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/batch"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/metrics"
	"github.com/influencer-lens/backend/internal/storage/models"
	"github.com/influencer-lens/backend/pkg/logger"
)

const maxListLimit = 100

type BatchHandler struct {
	client *llm.Client
	poller *batch.Poller
	cache  JobCache
}

// NewBatchHandler serves provider-side batch operations. cache may be nil.
func NewBatchHandler(client *llm.Client, poller *batch.Poller, cache JobCache) *BatchHandler {
	return &BatchHandler{
		client: client,
		poller: poller,
		cache:  cache,
	}
}

func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxListLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	batches, err := h.client.List(c.Context(), limit)
	if err != nil {
		logger.Error("Failed to list batches", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to list batches",
		})
	}

	return c.JSON(fiber.Map{
		"provider": h.client.ProviderName(),
		"batches":  batches,
	})
}

// GetBatch answers from the cache when a fresh snapshot exists and otherwise
// performs a single status query.
func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	batchID := c.Params("id")

	if h.cache != nil {
		rec, ok, err := h.cache.GetJob(c.Context(), batchID)
		if err != nil {
			logger.Warn("Job cache lookup failed", zap.String("batch_id", batchID), zap.Error(err))
		}
		if ok {
			metrics.CacheHits.WithLabelValues("job").Inc()
			return c.JSON(jobResponse(*rec, true))
		}
		metrics.CacheMisses.WithLabelValues("job").Inc()
	}

	job, err := h.poller.PollID(c.Context(), batchID, batch.PollOptions{})
	if err != nil {
		return h.providerError(c, batchID, "Failed to get batch status", err)
	}

	rec := job.Record(h.client.ProviderName(), "")
	if h.cache != nil {
		if err := h.cache.SetJob(c.Context(), rec); err != nil {
			logger.Warn("Failed to cache job", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	return c.JSON(jobResponse(rec, false))
}

func (h *BatchHandler) CancelBatch(c *fiber.Ctx) error {
	batchID := c.Params("id")

	b, err := h.client.Cancel(c.Context(), batchID)
	if err != nil {
		return h.providerError(c, batchID, "Failed to cancel batch", err)
	}

	rec := batch.JobFromBatch(b).Record(h.client.ProviderName(), "")
	if h.cache != nil {
		if err := h.cache.SetJob(c.Context(), rec); err != nil {
			logger.Warn("Failed to cache job", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	logger.Info("Batch cancellation requested", zap.String("batch_id", batchID), zap.String("status", rec.Status))
	return c.Status(fiber.StatusAccepted).JSON(jobResponse(rec, false))
}

func (h *BatchHandler) providerError(c *fiber.Ctx, batchID, msg string, err error) error {
	if errors.Is(err, llm.ErrBatchNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Batch not found",
		})
	}
	logger.Error(msg, zap.String("batch_id", batchID), zap.Error(err))
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": msg,
	})
}

func jobResponse(rec models.JobRecord, cached bool) fiber.Map {
	progress := 0.0
	if rec.TotalRequests > 0 {
		progress = float64(rec.Completed()) / float64(rec.TotalRequests) * 100
	}
	return fiber.Map{
		"job":      rec,
		"progress": progress,
		"cached":   cached,
	}
}
