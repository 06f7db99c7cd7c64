package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/storage/models"
	"github.com/influencer-lens/backend/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

// Client keeps job history, the latest result per content item and
// reconciliation bookkeeping. Checkpoint files remain the source of truth
// for resuming; this database only mirrors them.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_jobs (
		batch_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		provider TEXT NOT NULL,
		status TEXT NOT NULL,
		total_requests INTEGER NOT NULL,
		processing INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0,
		canceled INTEGER NOT NULL DEFAULT 0,
		expired INTEGER NOT NULL DEFAULT 0,
		checkpoint_dir TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON batch_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_created ON batch_jobs(created_at);

	CREATE TABLE IF NOT EXISTS semantic_results (
		video_id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		influencer TEXT,
		platform TEXT,
		main_topic TEXT,
		content_type TEXT,
		nj_relevance_score REAL,
		is_error INTEGER NOT NULL DEFAULT 0,
		result_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_semantic_batch ON semantic_results(batch_id);
	CREATE INDEX IF NOT EXISTS idx_semantic_influencer ON semantic_results(influencer);

	CREATE TABLE IF NOT EXISTS sentiment_results (
		video_id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		influencer TEXT,
		platform TEXT,
		sentiment_score REAL,
		sentiment_label TEXT,
		primary_emotion TEXT,
		is_error INTEGER NOT NULL DEFAULT 0,
		result_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sentiment_batch ON sentiment_results(batch_id);
	CREATE INDEX IF NOT EXISTS idx_sentiment_influencer ON sentiment_results(influencer);

	CREATE TABLE IF NOT EXISTS reconcile_runs (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		results INTEGER NOT NULL,
		error_results INTEGER NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		estimated_cost REAL NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_batch ON reconcile_runs(batch_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// ObserveJob upserts the latest snapshot of a job. The original created_at
// is kept once set.
func (c *Client) ObserveJob(ctx context.Context, rec models.JobRecord) error {
	query := `
		INSERT INTO batch_jobs (batch_id, kind, provider, status, total_requests, processing, succeeded,
			errored, canceled, expired, checkpoint_dir, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			status = excluded.status,
			total_requests = excluded.total_requests,
			processing = excluded.processing,
			succeeded = excluded.succeeded,
			errored = excluded.errored,
			canceled = excluded.canceled,
			expired = excluded.expired,
			checkpoint_dir = COALESCE(NULLIF(excluded.checkpoint_dir, ''), batch_jobs.checkpoint_dir),
			kind = COALESCE(NULLIF(excluded.kind, ''), batch_jobs.kind),
			updated_at = excluded.updated_at
	`

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	_, err := c.db.ExecContext(ctx, query,
		rec.BatchID,
		rec.Kind,
		rec.Provider,
		rec.Status,
		rec.TotalRequests,
		rec.Processing,
		rec.Succeeded,
		rec.Errored,
		rec.Canceled,
		rec.Expired,
		rec.CheckpointDir,
		createdAt.Unix(),
		updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}

	logger.Debug("Job recorded", zap.String("batch_id", rec.BatchID), zap.String("status", rec.Status))
	return nil
}

const jobColumns = `batch_id, kind, provider, status, total_requests, processing, succeeded, errored,
	canceled, expired, checkpoint_dir, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (models.JobRecord, error) {
	var rec models.JobRecord
	var checkpointDir sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&rec.BatchID,
		&rec.Kind,
		&rec.Provider,
		&rec.Status,
		&rec.TotalRequests,
		&rec.Processing,
		&rec.Succeeded,
		&rec.Errored,
		&rec.Canceled,
		&rec.Expired,
		&checkpointDir,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return rec, err
	}

	rec.CheckpointDir = checkpointDir.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

func (c *Client) GetJob(ctx context.Context, batchID string) (*models.JobRecord, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM batch_jobs WHERE batch_id = ?`, batchID)

	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &rec, nil
}

// ListJobs returns the most recently created jobs first. status filters when non-empty.
func (c *Client) ListJobs(ctx context.Context, status string, limit int) ([]models.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM batch_jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, batch_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, rec)
	}
	return jobs, rows.Err()
}

// WriteSemantic stores the latest semantic result per video id.
func (c *Client) WriteSemantic(ctx context.Context, batchID string, results []analysis.SemanticResult) error {
	query := `
		INSERT INTO semantic_results (video_id, batch_id, influencer, platform, main_topic, content_type,
			nj_relevance_score, is_error, result_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			batch_id = excluded.batch_id,
			influencer = excluded.influencer,
			platform = excluded.platform,
			main_topic = excluded.main_topic,
			content_type = excluded.content_type,
			nj_relevance_score = excluded.nj_relevance_score,
			is_error = excluded.is_error,
			result_json = excluded.result_json,
			updated_at = excluded.updated_at
	`

	return c.inTx(ctx, query, len(results), func(stmt *sql.Stmt, i int, now int64) error {
		r := results[i]
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, r.VideoID, batchID, r.Influencer, r.Platform, r.MainTopic,
			r.ContentType, r.NJRelevanceScore, boolInt(r.IsError()), string(data), now)
		return err
	})
}

func (c *Client) WriteSentiment(ctx context.Context, batchID string, results []analysis.SentimentResult) error {
	query := `
		INSERT INTO sentiment_results (video_id, batch_id, influencer, platform, sentiment_score,
			sentiment_label, primary_emotion, is_error, result_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			batch_id = excluded.batch_id,
			influencer = excluded.influencer,
			platform = excluded.platform,
			sentiment_score = excluded.sentiment_score,
			sentiment_label = excluded.sentiment_label,
			primary_emotion = excluded.primary_emotion,
			is_error = excluded.is_error,
			result_json = excluded.result_json,
			updated_at = excluded.updated_at
	`

	return c.inTx(ctx, query, len(results), func(stmt *sql.Stmt, i int, now int64) error {
		r := results[i]
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, r.VideoID, batchID, r.Influencer, r.Platform, r.SentimentScore,
			r.SentimentLabel, r.PrimaryEmotion, boolInt(r.IsError()), string(data), now)
		return err
	})
}

func (c *Client) inTx(ctx context.Context, query string, n int, exec func(stmt *sql.Stmt, i int, now int64) error) error {
	if n == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i := 0; i < n; i++ {
		if err := exec(stmt, i, now); err != nil {
			return fmt.Errorf("failed to store result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	logger.Debug("Results stored", zap.Int("count", n))
	return nil
}

// GetResult returns the stored JSON document for one video.
func (c *Client) GetResult(ctx context.Context, kind analysis.Kind, videoID string) (json.RawMessage, error) {
	var table string
	switch kind {
	case analysis.KindSemantic:
		table = "semantic_results"
	case analysis.KindSentiment:
		table = "sentiment_results"
	default:
		return nil, fmt.Errorf("unknown analysis kind: %q", kind)
	}

	var data string
	err := c.db.QueryRowContext(ctx, `SELECT result_json FROM `+table+` WHERE video_id = ?`, videoID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return json.RawMessage(data), nil
}

func (c *Client) RecordRun(ctx context.Context, run models.ReconcileRun) error {
	query := `
		INSERT INTO reconcile_runs (id, batch_id, kind, results, error_results, input_tokens,
			output_tokens, estimated_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		run.ID,
		run.BatchID,
		run.Kind,
		run.Results,
		run.ErrorResults,
		run.InputTokens,
		run.OutputTokens,
		run.EstimatedCost,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reconcile run: %w", err)
	}

	logger.Info("Reconcile run recorded",
		zap.String("run_id", run.ID),
		zap.String("batch_id", run.BatchID),
		zap.Float64("estimated_cost", run.EstimatedCost),
	)
	return nil
}

func (c *Client) ListRuns(ctx context.Context, batchID string) ([]models.ReconcileRun, error) {
	query := `
		SELECT id, batch_id, kind, results, error_results, input_tokens, output_tokens, estimated_cost, created_at
		FROM reconcile_runs
		WHERE batch_id = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconcile runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ReconcileRun
	for rows.Next() {
		var run models.ReconcileRun
		var createdAt int64
		if err := rows.Scan(
			&run.ID,
			&run.BatchID,
			&run.Kind,
			&run.Results,
			&run.ErrorResults,
			&run.InputTokens,
			&run.OutputTokens,
			&run.EstimatedCost,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconcile run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
