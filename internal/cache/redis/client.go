package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/storage/models"
	"github.com/influencer-lens/backend/pkg/logger"
)

// endedJobTTL applies to snapshots of ended jobs, which no longer change.
const endedJobTTL = 24 * time.Hour

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient connects and pings. ttl bounds how long an in-flight job snapshot
// is served before the provider is asked again.
func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func jobKey(batchID string) string {
	return fmt.Sprintf("job:%s", batchID)
}

func resultKey(kind analysis.Kind, videoID string) string {
	return fmt.Sprintf("result:%s:%s", kind, videoID)
}

func jobTTL(rec models.JobRecord, ttl time.Duration) time.Duration {
	if rec.Status == "ended" {
		return endedJobTTL
	}
	return ttl
}

// ObserveJob caches the latest snapshot of a job.
func (c *Client) ObserveJob(ctx context.Context, rec models.JobRecord) error {
	return c.SetJob(ctx, rec)
}

func (c *Client) SetJob(ctx context.Context, rec models.JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ttl := jobTTL(rec, c.ttl)
	err = c.client.Set(ctx, jobKey(rec.BatchID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set job cache: %w", err)
	}

	logger.Debug("Job cached", zap.String("batch_id", rec.BatchID), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetJob(ctx context.Context, batchID string) (*models.JobRecord, bool, error) {
	data, err := c.client.Get(ctx, jobKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get job cache: %w", err)
	}

	var rec models.JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	logger.Debug("Job cache hit", zap.String("batch_id", batchID))
	return &rec, true, nil
}

func (c *Client) WriteSemantic(ctx context.Context, batchID string, results []analysis.SemanticResult) error {
	values := make(map[string][]byte, len(results))
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		values[resultKey(analysis.KindSemantic, r.VideoID)] = data
	}
	return c.setResults(ctx, batchID, analysis.KindSemantic, values)
}

func (c *Client) WriteSentiment(ctx context.Context, batchID string, results []analysis.SentimentResult) error {
	values := make(map[string][]byte, len(results))
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		values[resultKey(analysis.KindSentiment, r.VideoID)] = data
	}
	return c.setResults(ctx, batchID, analysis.KindSentiment, values)
}

func (c *Client) setResults(ctx context.Context, batchID string, kind analysis.Kind, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for key, data := range values {
		pipe.Set(ctx, key, data, endedJobTTL)
	}
	pipe.IncrBy(ctx, metricKey("results_"+string(kind)), int64(len(values)))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache results: %w", err)
	}

	logger.Debug("Results cached",
		zap.String("batch_id", batchID),
		zap.String("kind", string(kind)),
		zap.Int("count", len(values)),
	)
	return nil
}

// GetResult returns the cached JSON document for one video.
func (c *Client) GetResult(ctx context.Context, kind analysis.Kind, videoID string) (json.RawMessage, bool, error) {
	data, err := c.client.Get(ctx, resultKey(kind, videoID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get result cache: %w", err)
	}
	return json.RawMessage(data), true, nil
}

// InvalidateJobs drops every cached job snapshot.
func (c *Client) InvalidateJobs(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "job:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Job cache invalidated")
	return nil
}

func metricKey(name string) string {
	return fmt.Sprintf("metric:%s", name)
}

func (c *Client) IncrementMetric(ctx context.Context, metricName string) error {
	return c.client.Incr(ctx, metricKey(metricName)).Err()
}

func (c *Client) GetMetric(ctx context.Context, metricName string) (int64, error) {
	val, err := c.client.Get(ctx, metricKey(metricName)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}
