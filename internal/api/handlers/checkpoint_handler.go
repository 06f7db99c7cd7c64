package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/checkpoint"
	"github.com/influencer-lens/backend/pkg/logger"
)

type CheckpointHandler struct {
	outputDir string
}

func NewCheckpointHandler(outputDir string) *CheckpointHandler {
	return &CheckpointHandler{outputDir: outputDir}
}

// ListCheckpoints reports every checkpoint under the output directory,
// including chunk and retry directories.
func (h *CheckpointHandler) ListCheckpoints(c *fiber.Ctx) error {
	names := make([]string, 0, len(analysis.Kinds))
	for _, k := range analysis.Kinds {
		names = append(names, k.CheckpointFile())
	}

	entries, err := checkpoint.Scan(h.outputDir, names...)
	if err != nil {
		logger.Error("Failed to scan checkpoints", zap.String("dir", h.outputDir), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to scan checkpoints",
		})
	}
	if entries == nil {
		entries = []checkpoint.Entry{}
	}

	return c.JSON(fiber.Map{
		"output_dir":  h.outputDir,
		"checkpoints": entries,
	})
}
