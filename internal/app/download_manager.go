package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/domain"
	"github.com/yourusername/tiktock-go/internal/infrastructure"
)

// DownloadManager runs batches: one URL at a time, in input order
type DownloadManager struct {
	shortLinks domain.ShortLinkResolver
	resolver   domain.LinkResolver
	fetcher    domain.StreamFetcher
	fs         afero.Fs
	repo       domain.BatchRepository
	notifier   *infrastructure.NotificationService
	logger     *zap.Logger
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewDownloadManager creates a new download manager.
// repo and notifier are optional; fs defaults to the OS filesystem.
func NewDownloadManager(
	shortLinks domain.ShortLinkResolver,
	resolver domain.LinkResolver,
	fetcher domain.StreamFetcher,
	fs afero.Fs,
	repo domain.BatchRepository,
	notifier *infrastructure.NotificationService,
	logger *zap.Logger,
) *DownloadManager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadManager{
		shortLinks: shortLinks,
		resolver:   resolver,
		fetcher:    fetcher,
		fs:         fs,
		repo:       repo,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// PartitionURLs splits urls into supported and unsupported, keeping input order
func PartitionURLs(urls []string) (valid, invalid []string) {
	valid = lo.Filter(urls, func(u string, _ int) bool { return domain.IsSupported(u) })
	invalid = lo.Reject(urls, func(u string, _ int) bool { return domain.IsSupported(u) })
	return valid, invalid
}

// Run downloads urls in order and returns the batch report.
//
// Per-item failures never surface as an error: they are recorded in the report.
// Cancelling ctx stops the batch before the next item starts; the item in flight
// finishes its current attempt but is not retried. An error is returned only when the options or the
// output directory are unusable (before any item starts) or the log sink fails.
// An empty id gets a new UUID.
func (dm *DownloadManager) Run(
	ctx context.Context,
	id string,
	urls []string,
	opts domain.DownloadOptions,
	logSink io.Writer,
	observer domain.ItemObserver,
) (*domain.BatchReport, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	if err := dm.checkOutputDir(opts.OutputDirectory); err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.New().String()
	}

	report := &domain.BatchReport{
		ID:             id,
		State:          domain.BatchRunning,
		TotalRequested: len(urls),
		Completed:      []string{},
		Failed:         []domain.FailedEntry{},
		Outcomes:       []domain.DownloadOutcome{},
		OutputDir:      opts.OutputDirectory,
		StartedAt:      dm.now(),
	}
	namer := NewNamer(opts, report.StartedAt)

	dm.logger.Info("Batch started",
		zap.String("batch_id", id),
		zap.Int("total", len(urls)),
		zap.String("output", opts.OutputDirectory))

	// In-flight items are shielded from cancellation.
	itemCtx := context.WithoutCancel(ctx)

	for i, url := range urls {
		if ctx.Err() != nil {
			report.State = domain.BatchInterrupted
			dm.logger.Warn("Batch interrupted",
				zap.String("batch_id", id),
				zap.Int("processed", report.Processed()),
				zap.Int("total", report.TotalRequested))
			break
		}

		req := domain.NewMediaRequest(url, i+1, len(urls))
		var sink domain.ProgressSink
		if observer != nil {
			sink = observer.ItemStarted(req)
		}
		track := stateTracker(observer, req)
		track(domain.ItemPending)

		outcome := dm.processItem(ctx, itemCtx, req, namer, opts, sink, track)
		if outcome.Success {
			report.Completed = append(report.Completed, url)
		} else {
			report.Failed = append(report.Failed, domain.FailedEntry{URL: url, Error: outcome.ErrorMessage})
		}
		report.Outcomes = append(report.Outcomes, outcome)
		track(outcome.State())

		if observer != nil {
			observer.ItemFinished(req, outcome)
		}
	}

	if report.State == domain.BatchRunning {
		report.State = domain.BatchCompleted
	}
	report.FinishedAt = dm.now()

	dm.logger.Info("Batch finished",
		zap.String("batch_id", id),
		zap.String("state", string(report.State)),
		zap.Int("completed", len(report.Completed)),
		zap.Int("failed", len(report.Failed)),
		zap.Int64("bytes", lo.SumBy(report.Outcomes, func(o domain.DownloadOutcome) int64 { return o.SizeBytes })))

	dm.persist(report)

	if logSink != nil {
		if err := WriteLogPayload(logSink, report, opts); err != nil {
			return report, fmt.Errorf("failed to write batch log: %w", err)
		}
	}

	return report, nil
}

// stateTracker reports item transitions to observer; a nil observer gets a no-op
func stateTracker(observer domain.ItemObserver, req domain.MediaRequest) func(domain.ItemState) {
	if observer == nil {
		return func(domain.ItemState) {}
	}
	return func(state domain.ItemState) {
		observer.ItemStateChanged(req, state)
	}
}

// processItem takes one request from Pending to Succeeded or Failed.
// batchCtx gates retries; itemCtx carries the attempt in flight.
func (dm *DownloadManager) processItem(
	batchCtx, itemCtx context.Context,
	req domain.MediaRequest,
	namer *Namer,
	opts domain.DownloadOptions,
	sink domain.ProgressSink,
	track func(domain.ItemState),
) domain.DownloadOutcome {
	dm.logger.Info("Processing item",
		zap.Int("index", req.SequenceIndex),
		zap.Int("total", req.TotalCount),
		zap.String("url", req.URL))

	if !domain.IsSupported(req.URL) {
		err := domain.NewValidationError(req.URL)
		dm.logger.Warn("Item failed", zap.String("url", req.URL), zap.Error(err))
		return domain.NewFailedOutcome(req, domain.UnknownAuthor, err)
	}

	resolvedURL := req.URL
	if dm.shortLinks != nil {
		resolvedURL = dm.shortLinks.Resolve(itemCtx, req.URL)
	}
	author := domain.ExtractAuthor(resolvedURL)
	outputPath := namer.Path(opts.OutputDirectory, req, resolvedURL)

	var (
		result  *domain.FetchResult
		err     error
		attempt int
	)
	for attempt = 1; attempt <= opts.MaxRetries+1; attempt++ {
		preDelay := opts.PerItemDelay
		if attempt > 1 {
			if batchCtx.Err() != nil {
				dm.logger.Warn("Retry skipped, batch interrupted",
					zap.String("url", req.URL),
					zap.Int("attempt", attempt))
				break
			}
			dm.logger.Info("Retrying item",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", opts.MaxRetries))
			dm.sleep(opts.RetryDelay)
			preDelay = 0
		}

		result, err = dm.fetchOnce(itemCtx, resolvedURL, outputPath, opts.ChunkSizeBytes, preDelay, sink, track)
		if err == nil {
			break
		}
		dm.logger.Warn("Item attempt failed",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	if err != nil {
		outcome := domain.NewFailedOutcome(req, author, err)
		outcome.Attempts = attempt - 1
		dm.logger.Warn("Item failed",
			zap.String("url", req.URL),
			zap.String("reason", outcome.ErrorMessage))
		return outcome
	}

	outcome := domain.NewSucceededOutcome(req, author, result)
	outcome.Attempts = attempt
	dm.logger.Info("Item completed",
		zap.String("url", req.URL),
		zap.String("path", result.Path),
		zap.Int64("size", result.SizeBytes))
	return outcome
}

func (dm *DownloadManager) fetchOnce(
	ctx context.Context,
	pageURL, outputPath string,
	chunkSize int,
	preDelay time.Duration,
	sink domain.ProgressSink,
	track func(domain.ItemState),
) (*domain.FetchResult, error) {
	track(domain.ItemResolving)
	loc, err := dm.resolver.Resolve(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	track(domain.ItemFetching)
	return dm.fetcher.Fetch(ctx, loc, domain.FetchRequest{
		OutputPath: outputPath,
		ChunkSize:  chunkSize,
		PreDelay:   preDelay,
		Progress:   sink,
	})
}

// checkOutputDir creates the output directory and checks it is writable by
// creating and removing a scratch file
func (dm *DownloadManager) checkOutputDir(dir string) error {
	if dir == "" {
		return domain.NewConfigError("output directory not configured", nil)
	}
	if err := dm.fs.MkdirAll(dir, 0755); err != nil {
		return domain.NewConfigError("output directory is not usable", err)
	}
	scratch, err := afero.TempFile(dm.fs, dir, ".tiktock-write-check-*")
	if err != nil {
		return domain.NewConfigError("output directory is not writable", err)
	}
	name := scratch.Name()
	if err := scratch.Close(); err != nil {
		dm.logger.Warn("Failed to close write check file", zap.String("path", name), zap.Error(err))
	}
	if err := dm.fs.Remove(name); err != nil {
		dm.logger.Warn("Failed to remove write check file", zap.String("path", name), zap.Error(err))
	}
	return nil
}

func (dm *DownloadManager) persist(report *domain.BatchReport) {
	if dm.repo != nil {
		if err := dm.repo.Save(report); err != nil {
			dm.logger.Error("Failed to save batch history",
				zap.String("batch_id", report.ID),
				zap.Error(err))
		}
	}
	if dm.notifier != nil {
		dm.notifier.NotifyBatchFinished(report)
	}
}

// ValidateOptions rejects option sets that cannot run a batch
func ValidateOptions(opts domain.DownloadOptions) error {
	if opts.ChunkSizeBytes < 0 {
		return domain.NewConfigError(fmt.Sprintf("invalid chunk size: %d", opts.ChunkSizeBytes), nil)
	}
	if opts.PerItemDelay < 0 {
		return domain.NewConfigError("delay cannot be negative", nil)
	}
	if opts.MaxRetries < 0 {
		return domain.NewConfigError("max retries cannot be negative", nil)
	}
	if opts.FilenameStrategy != "" && !domain.ValidateFilenameStrategy(opts.FilenameStrategy) {
		return domain.NewConfigError(fmt.Sprintf("unknown filename strategy: %s", opts.FilenameStrategy), nil)
	}
	if opts.FilenameStrategy == domain.FilenameByTemplate && opts.FilenameTemplate == "" {
		return domain.NewConfigError("filename template required for template strategy", nil)
	}
	return nil
}

// WriteLogPayload writes the batch log document for report to w
func WriteLogPayload(w io.Writer, report *domain.BatchReport, opts domain.DownloadOptions) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(domain.NewLogPayload(report, opts))
}
