package batch

import (
	"errors"
	"time"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/checkpoint"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/storage/models"
)

var ErrNoItems = errors.New("no valid content items to submit")

// Job is a submitted batch as tracked locally. It is refreshed in place by
// each poll and stops changing once its status is ended.
type Job struct {
	BatchID       string        `json:"batch_id"`
	Kind          analysis.Kind `json:"kind"`
	TotalRequests int           `json:"total_requests"`
	Counts        llm.Counts    `json:"counts"`
	Status        llm.Status    `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ResultsURL    string        `json:"results_url,omitempty"`
}

func newJob(b *llm.Batch, kind analysis.Kind, total int) *Job {
	j := &Job{BatchID: b.ID, Kind: kind, TotalRequests: total}
	j.apply(b)
	return j
}

// JobFromBatch wraps a provider snapshot whose kind is not known locally.
func JobFromBatch(b *llm.Batch) *Job {
	return newJob(b, "", 0)
}

func jobFromCheckpoint(cp *checkpoint.Checkpoint) *Job {
	return &Job{
		BatchID:       cp.BatchID,
		Kind:          analysis.Kind(cp.BatchType),
		TotalRequests: cp.TotalRequests,
		Counts: llm.Counts{
			Processing: cp.Processing,
			Succeeded:  cp.Succeeded,
			Errored:    cp.Errored,
			Canceled:   cp.Canceled,
			Expired:    cp.Expired,
		},
		Status:     llm.Status(cp.Status),
		CreatedAt:  cp.CreatedAt,
		ResultsURL: cp.ResultsURL,
	}
}

func (j *Job) apply(b *llm.Batch) {
	if j.Status == llm.StatusEnded {
		return
	}
	j.Counts = b.Counts
	j.Status = b.Status
	j.ResultsURL = b.ResultsURL
	if !b.CreatedAt.IsZero() {
		j.CreatedAt = b.CreatedAt
	}
	if total := b.Counts.Total(); j.TotalRequests == 0 || (b.Status.Terminal() && total > 0) {
		j.TotalRequests = total
	}
}

func (j *Job) Completed() int {
	return j.Counts.Completed()
}

// Progress is the completed percentage in [0, 100].
func (j *Job) Progress() float64 {
	if j.TotalRequests <= 0 {
		return 0
	}
	return float64(j.Completed()) / float64(j.TotalRequests) * 100
}

func (j *Job) Ended() bool {
	return j.Status.Terminal()
}

func (j *Job) fillCheckpoint(cp *checkpoint.Checkpoint) {
	cp.BatchID = j.BatchID
	cp.BatchType = string(j.Kind)
	cp.TotalRequests = j.TotalRequests
	cp.Processing = j.Counts.Processing
	cp.Succeeded = j.Counts.Succeeded
	cp.Errored = j.Counts.Errored
	cp.Canceled = j.Counts.Canceled
	cp.Expired = j.Counts.Expired
	cp.Status = string(j.Status)
	cp.CreatedAt = j.CreatedAt
	cp.ResultsURL = j.ResultsURL
}

func (j *Job) Record(provider, checkpointDir string) models.JobRecord {
	return models.JobRecord{
		BatchID:       j.BatchID,
		Kind:          string(j.Kind),
		Provider:      provider,
		Status:        string(j.Status),
		TotalRequests: j.TotalRequests,
		Processing:    j.Counts.Processing,
		Succeeded:     j.Counts.Succeeded,
		Errored:       j.Counts.Errored,
		Canceled:      j.Counts.Canceled,
		Expired:       j.Counts.Expired,
		CheckpointDir: checkpointDir,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     time.Now().UTC(),
	}
}
