package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/storage/models"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "job:msgbatch_1", jobKey("msgbatch_1"))
	assert.Equal(t, "result:sentiment:v1", resultKey(analysis.KindSentiment, "v1"))
	assert.Equal(t, "metric:results_semantic", metricKey("results_semantic"))
}

func TestJobTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, jobTTL(models.JobRecord{Status: "processing"}, 30*time.Second))
	assert.Equal(t, endedJobTTL, jobTTL(models.JobRecord{Status: "ended"}, 30*time.Second))
}

// TestLiveRedis runs against a real server when INFLUENCER_LENS_TEST_REDIS_PORT is set.
func TestLiveRedis(t *testing.T) {
	portEnv := os.Getenv("INFLUENCER_LENS_TEST_REDIS_PORT")
	if portEnv == "" {
		t.Skip("INFLUENCER_LENS_TEST_REDIS_PORT not set")
	}
	port, err := strconv.Atoi(portEnv)
	require.NoError(t, err)

	c, err := NewClient("localhost", port, "", 15, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	rec := models.JobRecord{BatchID: "test_batch", Kind: "semantic", Status: "processing", TotalRequests: 3}
	require.NoError(t, c.ObserveJob(ctx, rec))

	got, ok, err := c.GetJob(ctx, "test_batch")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalRequests)

	result := analysis.SemanticError(content.Item{ID: "v1"}, "expired", time.Now())
	require.NoError(t, c.WriteSemantic(ctx, "test_batch", []analysis.SemanticResult{result}))

	raw, ok, err := c.GetResult(ctx, analysis.KindSemantic, "v1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"video_id":"v1"`)

	require.NoError(t, c.InvalidateJobs(ctx))
	_, ok, err = c.GetJob(ctx, "test_batch")
	require.NoError(t, err)
	assert.False(t, ok)
}
