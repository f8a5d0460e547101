package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/oceangate/oceangate/internal/jobs"
)

type fakeWarmer struct {
	calls int
	err   error
}

func (f *fakeWarmer) Warm(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestDashboardWarmupJobHandle(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewDashboardWarmupJob(warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewDashboardWarmupTask("cron")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, warmer.calls)

	warmer.err = errors.New("redis down")
	assert.ErrorContains(t, job.Handle(context.Background(), task), "redis down")
	assert.Equal(t, 2, warmer.calls)
}

func TestDashboardWarmupJobRejectsBadPayload(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewDashboardWarmupJob(warmer, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, warmer.calls)
}

func TestDashboardWarmupJobNotConfigured(t *testing.T) {
	var job *DashboardWarmupJob
	task, err := NewDashboardWarmupTask("")
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestNewDashboardWarmupTaskDefaultsReason(t *testing.T) {
	task, err := NewDashboardWarmupTask("")
	require.NoError(t, err)
	assert.Equal(t, TaskDashboardWarmup, task.Type())

	var payload DashboardWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "manual", payload.Reason)
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func TestEnqueueDashboardWarmupSwallowsDuplicates(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)

	info, err := client.EnqueueDashboardWarmup(context.Background(), "manual")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, TaskDashboardWarmup, info.Type)

	enq.err = asynq.ErrDuplicateTask
	info, err = client.EnqueueDashboardWarmup(context.Background(), "manual")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestWarmOnBumpEnqueuesPerVersion(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)
	bumps := make(chan int64, 2)
	bumps <- 2
	bumps <- 3
	close(bumps)

	done := make(chan struct{})
	go func() {
		client.WarmOnBump(context.Background(), bumps, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WarmOnBump did not return after channel close")
	}
	assert.Equal(t, 2, enq.count())
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestJobsHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   float64
	}{
		{name: "no inspector", inspector: nil, status: http.StatusOK},
		{name: "queue info", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, status: http.StatusOK, pending: 4},
		{name: "redis error", inspector: fakeInspector{err: errors.New("dial tcp")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rec.Code)

			var body struct {
				Success bool           `json:"success"`
				Data    map[string]any `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tc.status != http.StatusOK {
				assert.False(t, body.Success)
				return
			}
			assert.True(t, body.Success)
			assert.Equal(t, QueueDefault, body.Data["queue"])
			assert.Equal(t, tc.pending, body.Data["pending"])
		})
	}
}

type fakeCleaner struct {
	olderThan time.Duration
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	f.olderThan = olderThan
	return nil
}

func TestIdempotencyCleanupUsesDefaultRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := &IdempotencyCleanupJob{Store: cleaner, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, IdempotencyRetention, cleaner.olderThan)
}
