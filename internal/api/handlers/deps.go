package handlers

import (
	"context"
	"encoding/json"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/storage/models"
)

// JobCache is the short-lived snapshot cache in front of provider status calls.
type JobCache interface {
	GetJob(ctx context.Context, batchID string) (*models.JobRecord, bool, error)
	SetJob(ctx context.Context, rec models.JobRecord) error
}

// JobHistory is the durable record of submitted jobs and their results.
type JobHistory interface {
	ListJobs(ctx context.Context, status string, limit int) ([]models.JobRecord, error)
	GetJob(ctx context.Context, batchID string) (*models.JobRecord, error)
	ListRuns(ctx context.Context, batchID string) ([]models.ReconcileRun, error)
	GetResult(ctx context.Context, kind analysis.Kind, videoID string) (json.RawMessage, error)
}
