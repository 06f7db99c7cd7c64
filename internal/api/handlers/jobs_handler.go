package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/storage/models"
	"github.com/influencer-lens/backend/internal/storage/sqlite"
	"github.com/influencer-lens/backend/pkg/logger"
)

type JobsHandler struct {
	history JobHistory
}

func NewJobsHandler(history JobHistory) *JobsHandler {
	return &JobsHandler{history: history}
}

func (h *JobsHandler) ListJobs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > maxListLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	jobs, err := h.history.ListJobs(c.Context(), c.Query("status"), limit)
	if err != nil {
		logger.Error("Failed to list jobs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list jobs",
		})
	}
	if jobs == nil {
		jobs = []models.JobRecord{}
	}

	return c.JSON(fiber.Map{
		"jobs": jobs,
	})
}

func (h *JobsHandler) GetJob(c *fiber.Ctx) error {
	batchID := c.Params("id")

	job, err := h.history.GetJob(c.Context(), batchID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get job", zap.String("batch_id", batchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get job",
		})
	}

	runs, err := h.history.ListRuns(c.Context(), batchID)
	if err != nil {
		logger.Warn("Failed to list reconcile runs", zap.String("batch_id", batchID), zap.Error(err))
	}
	if runs == nil {
		runs = []models.ReconcileRun{}
	}

	return c.JSON(fiber.Map{
		"job":  job,
		"runs": runs,
	})
}

func (h *JobsHandler) GetResult(c *fiber.Ctx) error {
	kind, err := analysis.ParseKind(c.Params("kind"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	raw, err := h.history.GetResult(c.Context(), kind, c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Result not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get result", zap.String("video_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get result",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}
