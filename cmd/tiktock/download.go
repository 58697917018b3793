package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/app"
	"github.com/yourusername/tiktock-go/internal/domain"
	"github.com/yourusername/tiktock-go/internal/infrastructure"
)

var downloadCmd = newDownloadCmd()

// defaultLogFile is written when --log is given without a value
const defaultLogFile = "tiktock_log.json"

// downloadFlags holds the per-run overrides for the download section of the config
type downloadFlags struct {
	output        string
	delaySeconds  float64
	chunkSize     int
	logFile       string
	template      string
	nameByIndex   bool
	keepWatermark bool
	retries       int
}

func newDownloadCmd() *cobra.Command {
	flags := &downloadFlags{}
	cmd := &cobra.Command{
		Use:   "download [url...]",
		Short: "Download one or more TikTok videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, flags, args)
		},
	}
	bindDownloadFlags(cmd, flags)
	return cmd
}

func bindDownloadFlags(cmd *cobra.Command, flags *downloadFlags) {
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output directory")
	cmd.Flags().Float64VarP(&flags.delaySeconds, "delay", "d", 0, "Delay in seconds before each download")
	cmd.Flags().IntVarP(&flags.chunkSize, "chunk-size", "c", 0, "Chunk size in bytes")
	cmd.Flags().StringVar(&flags.logFile, "log", "", "Write a JSON report of the batch to this file (default "+defaultLogFile+" when given without a value)")
	cmd.Flags().Lookup("log").NoOptDefVal = defaultLogFile
	cmd.Flags().StringVar(&flags.template, "filename-template", "", "Filename template using {index}, {author}, {id}, {timestamp}")
	cmd.Flags().BoolVar(&flags.nameByIndex, "name-by-index", false, "Name files by their position in the batch")
	cmd.Flags().BoolVar(&flags.keepWatermark, "keep-watermark", false, "Do not rewrite watermarked video URLs")
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "Retries per failed item")
}

// apply overlays the flags the user actually set onto the download config
func (f *downloadFlags) apply(cmd *cobra.Command, config *domain.DownloadConfig) error {
	changed := cmd.Flags().Changed

	if changed("output") {
		config.OutputDir = f.output
	}
	if changed("delay") {
		if f.delaySeconds < 0 {
			return fmt.Errorf("delay must be >= 0, got %v", f.delaySeconds)
		}
		config.Delay = time.Duration(f.delaySeconds * float64(time.Second))
	}
	if changed("chunk-size") {
		if f.chunkSize < 1 {
			return fmt.Errorf("chunk size must be >= 1, got %d", f.chunkSize)
		}
		config.ChunkSize = f.chunkSize
	}
	if changed("retries") {
		if f.retries < 0 {
			return fmt.Errorf("retries must be >= 0, got %d", f.retries)
		}
		config.MaxRetries = f.retries
	}
	if changed("keep-watermark") && f.keepWatermark {
		config.Watermark = domain.WatermarkKeep
	}

	switch {
	case changed("filename-template") && changed("name-by-index") && f.nameByIndex:
		return errors.New("--filename-template and --name-by-index are mutually exclusive")
	case changed("filename-template"):
		config.FilenameStrategy = domain.FilenameByTemplate
		config.FilenameTemplate = f.template
	case changed("name-by-index") && f.nameByIndex:
		config.FilenameStrategy = domain.FilenameByIndex
	}
	return nil
}

func runDownload(cmd *cobra.Command, flags *downloadFlags, args []string) error {
	config, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := flags.apply(cmd, &config.Download); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	urls, invalid := app.PartitionURLs(args)
	for _, u := range invalid {
		fmt.Fprintf(out, "Skipping invalid URL: %s\n", u)
	}
	if len(urls) == 0 {
		return errors.New("no valid TikTok URLs to download")
	}

	opts := config.Download.Options()
	logFile, err := openLogSink(flags.logFile, opts)
	if err != nil {
		return err
	}
	var logSink io.Writer
	if logFile != nil {
		defer logFile.Close()
		logSink = logFile
	}

	dm, _, closeRepo := buildDownloadManager(config, log)
	defer closeRepo()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Downloading %d video(s) to %s\n", len(urls), config.Download.OutputDir)

	observer := newProgressObserver(out)
	report, err := dm.Run(ctx, "", urls, opts, logSink, observer)
	if report == nil {
		return err
	}

	printSummary(out, report)
	if err != nil {
		return err
	}
	if report.IsInterrupted() {
		fmt.Fprintln(out, "Download interrupted")
		return domain.ErrInterrupted
	}
	return nil
}

// openLogSink creates the batch log file once opts are known to be runnable.
// An empty path means no log; the returned file is then nil.
func openLogSink(path string, opts domain.DownloadOptions) (*os.File, error) {
	if err := app.ValidateOptions(opts); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// buildDownloadManager wires the HTTP collaborators and, when enabled, batch history.
// The repository is nil when history is off; the returned func releases it.
func buildDownloadManager(config *domain.Config, log *zap.Logger) (*app.DownloadManager, domain.BatchRepository, func()) {
	client := infrastructure.NewHTTPClient()
	fs := afero.NewOsFs()

	var repo domain.BatchRepository
	closeRepo := func() {}
	if config.History.Enabled {
		sqliteRepo, err := infrastructure.NewSQLiteBatchRepository(config.History.DatabasePath)
		if err != nil {
			log.Warn("Batch history disabled", zap.Error(err))
		} else {
			repo = sqliteRepo
			closeRepo = func() { sqliteRepo.Close() }
		}
	}

	dm := app.NewDownloadManager(
		infrastructure.NewShortLinkResolver(client, &config.Resolver, log),
		infrastructure.NewPageResolver(client, &config.Resolver, config.Download.Watermark, log),
		infrastructure.NewHTTPStreamFetcher(client, &config.Resolver, fs, log),
		fs,
		repo,
		infrastructure.NewNotificationService(&config.Notification, log),
		log,
	)
	return dm, repo, closeRepo
}

// openHistory opens the history database for read-only commands
func openHistory(config *domain.Config) (*infrastructure.SQLiteBatchRepository, error) {
	if !config.History.Enabled {
		return nil, errors.New("batch history is disabled in the configuration")
	}
	return infrastructure.NewSQLiteBatchRepository(config.History.DatabasePath)
}
