package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/batch"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/internal/llm/llmtest"
	"github.com/influencer-lens/backend/internal/storage/models"
	"github.com/influencer-lens/backend/internal/storage/sqlite"
)

type memoryCache struct {
	mu   sync.Mutex
	jobs map[string]models.JobRecord
}

func (m *memoryCache) GetJob(_ context.Context, id string) (*models.JobRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (m *memoryCache) SetJob(_ context.Context, rec models.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[rec.BatchID] = rec
	return nil
}

type fixture struct {
	provider *llmtest.Provider
	client   *llm.Client
	cache    *memoryCache
	history  *sqlite.Client
	out      string
	do       func(method, path string) (int, map[string]interface{})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := llmtest.New()
	p.PollsToEnd = 2
	client := llm.NewClient(p, llm.ClientOptions{Model: "test-model", MaxRetries: 1, RetryDelay: time.Millisecond})

	history, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, history.InitSchema())
	t.Cleanup(func() { history.Close() })

	f := &fixture{
		provider: p,
		client:   client,
		cache:    &memoryCache{jobs: map[string]models.JobRecord{}},
		history:  history,
		out:      t.TempDir(),
	}

	app, stop := NewApp(Deps{
		Client:       client,
		Poller:       batch.NewPoller(client, history),
		Cache:        f.cache,
		History:      history,
		OutputDir:    f.out,
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
		RateLimit:    1000,
		RateBurst:    1000,
	})
	t.Cleanup(stop)

	f.do = func(method, path string) (int, map[string]interface{}) {
		resp, err := app.Test(httptest.NewRequest(method, path, nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var decoded map[string]interface{}
		_ = json.Unmarshal(body, &decoded)
		return resp.StatusCode, decoded
	}
	return f
}

func (f *fixture) submit(t *testing.T, kind analysis.Kind, ids ...string) *batch.Job {
	t.Helper()
	var items []content.Item
	for _, id := range ids {
		items = append(items, content.Item{ID: id, Title: "title " + id, Platform: content.PlatformYouTube})
	}
	s := batch.NewSubmitter(f.client, batch.SubmitterOptions{Observers: []batch.JobObserver{f.history}})
	job, err := s.SubmitOrResume(context.Background(), items, kind, batch.KindDir(f.out, kind))
	require.NoError(t, err)
	return job
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	status, body := f.do("GET", "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = f.do("GET", "/ready")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "fake", body["provider"])
}

func TestGetBatchUsesCache(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, analysis.KindSemantic, "a", "b")

	status, body := f.do("GET", "/api/v1/batches/"+job.BatchID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, 1, f.provider.Polls(job.BatchID))

	status, body = f.do("GET", "/api/v1/batches/"+job.BatchID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, 1, f.provider.Polls(job.BatchID))
}

func TestGetBatchErrors(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do("GET", "/api/v1/batches/unknown_batch")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do("GET", "/api/v1/batches/bad$id")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCancelBatch(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, analysis.KindSentiment, "a")

	status, body := f.do("POST", "/api/v1/batches/"+job.BatchID+"/cancel")
	require.Equal(t, http.StatusAccepted, status)
	rec := body["job"].(map[string]interface{})
	assert.Equal(t, "canceling", rec["status"])

	cached, ok, err := f.cache.GetJob(context.Background(), job.BatchID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "canceling", cached.Status)
}

func TestListBatches(t *testing.T) {
	f := newFixture(t)
	f.submit(t, analysis.KindSemantic, "a")
	f.submit(t, analysis.KindSentiment, "a")

	status, body := f.do("GET", "/api/v1/batches?limit=1")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["batches"], 1)

	status, _ = f.do("GET", "/api/v1/batches?limit=0")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCheckpointsAndJobs(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, analysis.KindSemantic, "a", "b")

	status, body := f.do("GET", "/api/v1/checkpoints")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["checkpoints"], 1)

	status, body = f.do("GET", "/api/v1/jobs")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["jobs"], 1)

	status, body = f.do("GET", "/api/v1/jobs/"+job.BatchID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, job.BatchID, body["job"].(map[string]interface{})["batch_id"])

	status, _ = f.do("GET", "/api/v1/jobs/nope")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetResult(t *testing.T) {
	f := newFixture(t)
	result := analysis.SemanticError(content.Item{ID: "v1"}, "expired", time.Now())
	require.NoError(t, f.history.WriteSemantic(context.Background(), "batch_1", []analysis.SemanticResult{result}))

	status, body := f.do("GET", "/api/v1/results/semantic/v1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v1", body["video_id"])

	status, _ = f.do("GET", "/api/v1/results/other/v1")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do("GET", "/api/v1/results/sentiment/v1")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do("GET", "/ws/progress")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}
