package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/api"
	"github.com/yourusername/tiktock-go/api/handlers"
	"github.com/yourusername/tiktock-go/internal/app"
	"github.com/yourusername/tiktock-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = newServeCmd()

func newServeCmd() *cobra.Command {
	var (
		host     string
		port     int
		capacity int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API that accepts batches and runs them one at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cmd.Flags().Changed("host") {
				config.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				config.Server.Port = port
			}

			multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
				Level:   config.Logging.Level,
				LogsDir: config.Logging.LogsDir,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize event logs: %w", err)
			}
			defer multiLog.Close()

			log.Info("Starting tiktock server",
				zap.String("version", handlers.Version),
				zap.String("host", config.Server.Host),
				zap.Int("port", config.Server.Port),
				zap.String("output_dir", config.Download.OutputDir),
				zap.Bool("history", config.History.Enabled))

			dm, repo, closeRepo := buildDownloadManager(config, log)
			defer closeRepo()

			queueMgr := app.NewQueueManager(dm, capacity, multiLog)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := queueMgr.Start(ctx); err != nil {
				return fmt.Errorf("failed to start queue manager: %w", err)
			}

			deps := api.RouterDeps{
				QueueMgr:    queueMgr,
				Repo:        repo,
				Defaults:    config.Download.Options(),
				Logger:      log,
				MultiLogger: multiLog,
				LogsDir:     config.Logging.LogsDir,
			}

			addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
			server := &http.Server{
				Addr:    addr,
				Handler: api.SetupRouter(deps),
			}

			serverErr := make(chan error, 1)
			go func() {
				log.Info("HTTP server listening", zap.String("addr", addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			select {
			case <-ctx.Done():
				log.Info("Received shutdown signal")
			case err := <-serverErr:
				if err != nil {
					queueMgr.Stop()
					return fmt.Errorf("failed to start server: %w", err)
				}
			}

			log.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("Server forced to shutdown", zap.Error(err))
			}
			if err := queueMgr.Stop(); err != nil {
				log.Error("Error stopping queue manager", zap.Error(err))
			}

			log.Info("Server exited")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")
	cmd.Flags().IntVar(&capacity, "queue-size", app.DefaultQueueCapacity, "Maximum number of queued batches")
	return cmd
}
