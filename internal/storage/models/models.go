package models

import "time"

// JobRecord is a point-in-time snapshot of a batch job as persisted by
// history stores and caches.
type JobRecord struct {
	BatchID       string    `json:"batch_id"`
	Kind          string    `json:"kind"`
	Provider      string    `json:"provider"`
	Status        string    `json:"status"`
	TotalRequests int       `json:"total_requests"`
	Processing    int       `json:"processing"`
	Succeeded     int       `json:"succeeded"`
	Errored       int       `json:"errored"`
	Canceled      int       `json:"canceled"`
	Expired       int       `json:"expired"`
	CheckpointDir string    `json:"checkpoint_dir,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r JobRecord) Completed() int {
	return r.Succeeded + r.Errored + r.Canceled + r.Expired
}

// ReconcileRun records one reconciliation pass over a batch.
type ReconcileRun struct {
	ID            string    `json:"id"`
	BatchID       string    `json:"batch_id"`
	Kind          string    `json:"kind"`
	Results       int       `json:"results"`
	ErrorResults  int       `json:"error_results"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	EstimatedCost float64   `json:"estimated_cost_usd"`
	CreatedAt     time.Time `json:"created_at"`
}
