package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/batch"
	"github.com/influencer-lens/backend/pkg/logger"
)

// ProgressHandler streams poll progress for a batch over a websocket.
type ProgressHandler struct {
	poller   *batch.Poller
	interval time.Duration
	maxWait  time.Duration
}

func NewProgressHandler(poller *batch.Poller, interval, maxWait time.Duration) *ProgressHandler {
	return &ProgressHandler{
		poller:   poller,
		interval: interval,
		maxWait:  maxWait,
	}
}

type watchMessage struct {
	Type    string `json:"type"`
	BatchID string `json:"batch_id"`
}

func (h *ProgressHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg watchMessage
		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "watch" || msg.BatchID == "" {
			h.sendError(c, "expected {\"type\":\"watch\",\"batch_id\":...}")
			continue
		}

		logger.Info("Watching batch", zap.String("batch_id", msg.BatchID))

		if err := h.Watch(context.Background(), msg.BatchID, c.WriteJSON); err != nil {
			logger.Error("Failed to watch batch", zap.String("batch_id", msg.BatchID), zap.Error(err))
			h.sendError(c, "Failed to watch batch")
		}
	}
}

// Watch polls until the batch ends or maxWait passes, sending a progress
// message per status query and a final ended message.
func (h *ProgressHandler) Watch(ctx context.Context, batchID string, send func(v interface{}) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sendErr error
	job, err := h.poller.PollID(ctx, batchID, batch.PollOptions{
		Interval: h.interval,
		MaxWait:  h.maxWait,
		OnProgress: func(j batch.Job) {
			if sendErr != nil {
				return
			}
			if sendErr = send(progressMessage(j)); sendErr != nil {
				cancel()
			}
		},
	})
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		return err
	}

	if !job.Ended() {
		return send(map[string]interface{}{
			"type":     "timeout",
			"batch_id": batchID,
			"status":   job.Status,
		})
	}
	return send(map[string]interface{}{
		"type":     "ended",
		"batch_id": batchID,
		"counts":   job.Counts,
	})
}

func progressMessage(j batch.Job) map[string]interface{} {
	return map[string]interface{}{
		"type":      "progress",
		"batch_id":  j.BatchID,
		"status":    j.Status,
		"completed": j.Completed(),
		"total":     j.TotalRequests,
		"percent":   j.Progress(),
		"counts":    j.Counts,
	}
}

func (h *ProgressHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
