package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/domain"
	"github.com/yourusername/tiktock-go/pkg/logger"
)

// DefaultQueueCapacity is the number of batches that may wait behind the running one
const DefaultQueueCapacity = 64

// BatchRunner runs one batch to completion; DownloadManager implements it
type BatchRunner interface {
	Run(ctx context.Context, id string, urls []string, opts domain.DownloadOptions, logSink io.Writer, observer domain.ItemObserver) (*domain.BatchReport, error)
}

// BatchJob is a submitted batch and, once finished, its report
type BatchJob struct {
	ID          string                 `json:"id"`
	URLs        []string               `json:"urls"`
	Options     domain.DownloadOptions `json:"-"`
	State       domain.BatchState      `json:"state"`
	Processed   int                    `json:"processed"`
	CurrentItem int                    `json:"current_item,omitempty"`
	ItemState   domain.ItemState       `json:"item_state,omitempty"`
	SubmittedAt time.Time              `json:"submitted_at"`
	Report      *domain.BatchReport    `json:"report,omitempty"`
	Error       string                 `json:"error,omitempty"`

	cancel context.CancelFunc
}

func (j *BatchJob) snapshot() *BatchJob {
	c := *j
	c.URLs = append([]string(nil), j.URLs...)
	c.cancel = nil
	return &c
}

// QueueManager runs submitted batches one at a time on a single worker
type QueueManager struct {
	runner      BatchRunner
	multiLogger *logger.MultiLogger
	mu          sync.RWMutex
	running     bool
	stopChan    chan struct{}
	workerWg    sync.WaitGroup
	pending     chan string
	jobs        map[string]*BatchJob
	order       []string
}

// NewQueueManager creates a new queue manager
func NewQueueManager(runner BatchRunner, capacity int, multiLogger *logger.MultiLogger) *QueueManager {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &QueueManager{
		runner:      runner,
		multiLogger: multiLogger,
		stopChan:    make(chan struct{}),
		pending:     make(chan string, capacity),
		jobs:        make(map[string]*BatchJob),
	}
}

// Start starts the batch worker
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.mu.Unlock()

	qm.logEvent("queue_started")

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop interrupts the running batch and stops the worker
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	for _, job := range qm.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	qm.mu.Unlock()

	qm.logEvent("queue_stopped")
	close(qm.stopChan)
	qm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// Submit queues a batch of URLs. Unsupported URLs are dropped and returned.
func (qm *QueueManager) Submit(urls []string, opts domain.DownloadOptions) (*BatchJob, []string, error) {
	valid, invalid := PartitionURLs(urls)
	if len(valid) == 0 {
		return nil, invalid, fmt.Errorf("no valid URLs submitted")
	}

	job := &BatchJob{
		ID:          uuid.New().String(),
		URLs:        valid,
		Options:     opts,
		State:       domain.BatchQueued,
		SubmittedAt: time.Now(),
	}

	qm.mu.Lock()
	select {
	case qm.pending <- job.ID:
	default:
		qm.mu.Unlock()
		return nil, invalid, fmt.Errorf("queue is full")
	}
	qm.jobs[job.ID] = job
	qm.order = append(qm.order, job.ID)
	snapshot := job.snapshot()
	qm.mu.Unlock()

	qm.logEvent("batch_queued",
		zap.String("id", job.ID),
		zap.Int("urls", len(valid)),
		zap.Int("rejected", len(invalid)))

	return snapshot, invalid, nil
}

// Get returns a snapshot of a batch
func (qm *QueueManager) Get(id string) (*BatchJob, error) {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	job, ok := qm.jobs[id]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	return job.snapshot(), nil
}

// List returns snapshots of all batches in submission order
func (qm *QueueManager) List() []*BatchJob {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	return lo.Map(qm.order, func(id string, _ int) *BatchJob {
		return qm.jobs[id].snapshot()
	})
}

// Cancel interrupts a batch. A queued batch never starts; a running batch stops
// after its in-flight item.
func (qm *QueueManager) Cancel(id string) error {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	job, ok := qm.jobs[id]
	if !ok {
		return fmt.Errorf("batch %s not found", id)
	}

	switch job.State {
	case domain.BatchQueued:
		job.State = domain.BatchInterrupted
		job.Report = &domain.BatchReport{
			ID:             job.ID,
			State:          domain.BatchInterrupted,
			TotalRequested: len(job.URLs),
			Completed:      []string{},
			Failed:         []domain.FailedEntry{},
			OutputDir:      job.Options.OutputDirectory,
			FinishedAt:     time.Now(),
		}
	case domain.BatchRunning:
		job.cancel()
	default:
		return fmt.Errorf("batch already finished: %s", job.State)
	}

	qm.logEvent("batch_cancelled", zap.String("id", id))
	return nil
}

// processQueue runs queued batches in submission order
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	for {
		select {
		case <-ctx.Done():
			qm.logEvent("queue_processor_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-qm.stopChan:
			qm.logEvent("queue_processor_stopped", zap.String("reason", "stop_signal"))
			return
		case id := <-qm.pending:
			qm.runJob(ctx, id)
		}
	}
}

func (qm *QueueManager) runJob(ctx context.Context, id string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	qm.mu.Lock()
	job := qm.jobs[id]
	if job.State != domain.BatchQueued {
		qm.mu.Unlock()
		return
	}
	job.State = domain.BatchRunning
	job.cancel = cancel
	urls, opts := job.URLs, job.Options
	qm.mu.Unlock()

	qm.logEvent("batch_started", zap.String("id", id), zap.Int("urls", len(urls)))

	report, err := qm.runner.Run(jobCtx, id, urls, opts, nil, &jobObserver{qm: qm, id: id})

	qm.mu.Lock()
	job.cancel = nil
	job.Report = report
	switch {
	case report != nil:
		job.State = report.State
		job.Processed = report.Processed()
	case err != nil:
		job.State = domain.BatchFailed
	}
	if err != nil {
		job.Error = err.Error()
	}
	qm.mu.Unlock()

	if err != nil {
		qm.logError("Batch failed", zap.String("id", id), zap.Error(err))
	}
	fields := []zap.Field{zap.String("id", id), zap.String("state", string(job.State))}
	if report != nil {
		fields = append(fields,
			zap.Int("completed", len(report.Completed)),
			zap.Int("failed", len(report.Failed)))
	}
	qm.logEvent("batch_finished", fields...)
}

func (qm *QueueManager) logEvent(event string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogBatchEvent(event, fields...)
	}
}

func (qm *QueueManager) logError(msg string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogAppError(msg, fields...)
	}
}

// jobObserver tracks per-item progress of a running job
type jobObserver struct {
	qm *QueueManager
	id string
}

func (o *jobObserver) ItemStarted(req domain.MediaRequest) domain.ProgressSink {
	return nil
}

// ItemStateChanged exposes the item in flight on the job; a terminal state counts it as processed
func (o *jobObserver) ItemStateChanged(req domain.MediaRequest, state domain.ItemState) {
	o.qm.mu.Lock()
	defer o.qm.mu.Unlock()

	job, ok := o.qm.jobs[o.id]
	if !ok {
		return
	}
	job.CurrentItem = req.SequenceIndex
	job.ItemState = state
	if state.IsTerminal() {
		job.Processed = req.SequenceIndex
	}
}

func (o *jobObserver) ItemFinished(req domain.MediaRequest, outcome domain.DownloadOutcome) {
	if !outcome.Success {
		o.qm.logEvent("item_failed",
			zap.String("id", o.id),
			zap.String("url", outcome.URL),
			zap.String("error", outcome.ErrorMessage))
	}
}
