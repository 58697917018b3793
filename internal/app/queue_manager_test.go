package app

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tiktock-go/internal/domain"
)

// blockingRunner holds each batch until released or cancelled
type blockingRunner struct {
	mu      sync.Mutex
	ran     []string
	started chan string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan string, 10),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context, id string, urls []string, opts domain.DownloadOptions, logSink io.Writer, observer domain.ItemObserver) (*domain.BatchReport, error) {
	r.mu.Lock()
	r.ran = append(r.ran, id)
	r.mu.Unlock()
	r.started <- id
	observer.ItemStateChanged(domain.NewMediaRequest(urls[0], 1, len(urls)), domain.ItemFetching)

	report := &domain.BatchReport{
		ID:             id,
		State:          domain.BatchCompleted,
		TotalRequested: len(urls),
		Completed:      []string{},
		Failed:         []domain.FailedEntry{},
	}
	select {
	case <-r.release:
		report.Completed = urls
	case <-ctx.Done():
		report.State = domain.BatchInterrupted
	}
	for i, u := range report.Completed {
		req := domain.NewMediaRequest(u, i+1, len(urls))
		outcome := domain.DownloadOutcome{URL: u, Success: true}
		observer.ItemStateChanged(req, outcome.State())
		observer.ItemFinished(req, outcome)
	}
	return report, nil
}

func (r *blockingRunner) runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func startTestQueue(t *testing.T, runner BatchRunner) *QueueManager {
	t.Helper()
	qm := NewQueueManager(runner, 4, nil)
	require.NoError(t, qm.Start(context.Background()))
	t.Cleanup(func() {
		if qm.IsRunning() {
			qm.Stop()
		}
	})
	return qm
}

func waitForState(t *testing.T, qm *QueueManager, id string, state domain.BatchState) *BatchJob {
	t.Helper()
	var job *BatchJob
	require.Eventually(t, func() bool {
		var err error
		job, err = qm.Get(id)
		return err == nil && job.State == state
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestSubmit_RejectsWhenNoValidURLs(t *testing.T) {
	qm := NewQueueManager(newBlockingRunner(), 4, nil)

	job, invalid, err := qm.Submit([]string{"https://example.com/a", "nope"}, testOptions())
	require.Error(t, err)
	assert.Nil(t, job)
	assert.Equal(t, []string{"https://example.com/a", "nope"}, invalid)
	assert.Empty(t, qm.List())
}

func TestSubmit_DropsInvalidURLs(t *testing.T) {
	qm := NewQueueManager(newBlockingRunner(), 4, nil)
	urls := append(testURLs(2), "https://example.com/a")

	job, invalid, err := qm.Submit(urls, testOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchQueued, job.State)
	assert.Equal(t, urls[:2], job.URLs)
	assert.Equal(t, []string{"https://example.com/a"}, invalid)
}

func TestSubmit_QueueFull(t *testing.T) {
	qm := NewQueueManager(newBlockingRunner(), 1, nil)

	_, _, err := qm.Submit(testURLs(1), testOptions())
	require.NoError(t, err)
	_, _, err = qm.Submit(testURLs(1), testOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}

func TestQueue_RunsBatchesOneAtATime(t *testing.T) {
	runner := newBlockingRunner()
	qm := startTestQueue(t, runner)

	first, _, err := qm.Submit(testURLs(2), testOptions())
	require.NoError(t, err)
	second, _, err := qm.Submit(testURLs(1), testOptions())
	require.NoError(t, err)

	assert.Equal(t, first.ID, <-runner.started)
	waitForState(t, qm, first.ID, domain.BatchRunning)

	job, err := qm.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchQueued, job.State, "second batch waits for the first")

	runner.release <- struct{}{}
	done := waitForState(t, qm, first.ID, domain.BatchCompleted)
	assert.Equal(t, 2, done.Processed)
	require.NotNil(t, done.Report)
	assert.Len(t, done.Report.Completed, 2)

	assert.Equal(t, second.ID, <-runner.started)
	runner.release <- struct{}{}
	waitForState(t, qm, second.ID, domain.BatchCompleted)

	assert.Equal(t, []string{first.ID, second.ID}, runner.runs())
	ids := []string{}
	for _, j := range qm.List() {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{first.ID, second.ID}, ids)
}

func TestCancel_QueuedBatchNeverRuns(t *testing.T) {
	runner := newBlockingRunner()
	qm := startTestQueue(t, runner)

	first, _, err := qm.Submit(testURLs(1), testOptions())
	require.NoError(t, err)
	second, _, err := qm.Submit(testURLs(3), testOptions())
	require.NoError(t, err)
	<-runner.started

	require.NoError(t, qm.Cancel(second.ID))
	job, err := qm.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchInterrupted, job.State)
	assert.Equal(t, 3, job.Report.TotalRequested)

	runner.release <- struct{}{}
	waitForState(t, qm, first.ID, domain.BatchCompleted)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{first.ID}, runner.runs())
}

func TestCancel_RunningBatchIsInterrupted(t *testing.T) {
	runner := newBlockingRunner()
	qm := startTestQueue(t, runner)

	job, _, err := qm.Submit(testURLs(2), testOptions())
	require.NoError(t, err)
	<-runner.started
	waitForState(t, qm, job.ID, domain.BatchRunning)

	require.NoError(t, qm.Cancel(job.ID))
	done := waitForState(t, qm, job.ID, domain.BatchInterrupted)
	assert.True(t, done.Report.IsInterrupted())

	err = qm.Cancel(job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")
}

func TestCancel_NotFound(t *testing.T) {
	qm := NewQueueManager(newBlockingRunner(), 4, nil)

	assert.Error(t, qm.Cancel("missing"))
	_, err := qm.Get("missing")
	assert.Error(t, err)
}

func TestQueue_StartStop(t *testing.T) {
	qm := NewQueueManager(newBlockingRunner(), 4, nil)

	assert.Error(t, qm.Stop())
	require.NoError(t, qm.Start(context.Background()))
	assert.True(t, qm.IsRunning())
	assert.Error(t, qm.Start(context.Background()))

	require.NoError(t, qm.Stop())
	assert.False(t, qm.IsRunning())
}

func TestQueue_StopInterruptsRunningBatch(t *testing.T) {
	runner := newBlockingRunner()
	qm := NewQueueManager(runner, 4, nil)
	require.NoError(t, qm.Start(context.Background()))

	job, _, err := qm.Submit(testURLs(1), testOptions())
	require.NoError(t, err)
	<-runner.started
	waitForState(t, qm, job.ID, domain.BatchRunning)

	require.NoError(t, qm.Stop())

	got, err := qm.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchInterrupted, got.State)
}

func TestQueue_ExposesItemInFlight(t *testing.T) {
	runner := newBlockingRunner()
	qm := startTestQueue(t, runner)

	job, _, err := qm.Submit(testURLs(2), testOptions())
	require.NoError(t, err)
	<-runner.started

	require.Eventually(t, func() bool {
		got, err := qm.Get(job.ID)
		return err == nil && got.ItemState == domain.ItemFetching
	}, 2*time.Second, 10*time.Millisecond)
	got, err := qm.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentItem)
	assert.Zero(t, got.Processed, "an item in flight is not processed yet")

	runner.release <- struct{}{}
	done := waitForState(t, qm, job.ID, domain.BatchCompleted)
	assert.Equal(t, 2, done.CurrentItem)
	assert.Equal(t, domain.ItemSucceeded, done.ItemState)
	assert.Equal(t, 2, done.Processed)
}

func TestQueue_UnusableOptionsFailBatch(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(h *testHarness, o *domain.DownloadOptions)
		wantErr string
	}{
		{
			name:    "negative retries",
			modify:  func(_ *testHarness, o *domain.DownloadOptions) { o.MaxRetries = -1 },
			wantErr: "max retries cannot be negative",
		},
		{
			name:    "template strategy without template",
			modify:  func(_ *testHarness, o *domain.DownloadOptions) { o.FilenameStrategy = domain.FilenameByTemplate },
			wantErr: "filename template required",
		},
		{
			name: "read-only output directory",
			modify: func(h *testHarness, _ *domain.DownloadOptions) {
				h.dm.fs = afero.NewReadOnlyFs(afero.NewMemMapFs())
			},
			wantErr: "output directory is not usable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(nil)
			opts := testOptions()
			tt.modify(h, &opts)
			qm := startTestQueue(t, h.dm)

			job, _, err := qm.Submit(testURLs(2), opts)
			require.NoError(t, err)

			done := waitForState(t, qm, job.ID, domain.BatchFailed)
			assert.Contains(t, done.Error, tt.wantErr)
			assert.Nil(t, done.Report)
			assert.Empty(t, h.resolver.calls)

			err = qm.Cancel(job.ID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "already finished")
		})
	}
}
