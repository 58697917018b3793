package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/domain"
)

const defaultChunkSize = 1024

// HTTPStreamFetcher implements domain.StreamFetcher with a chunked GET
type HTTPStreamFetcher struct {
	client  *http.Client
	headers BrowserHeaders
	fs      afero.Fs
	sleep   func(time.Duration)
	logger  *zap.Logger
}

// NewHTTPStreamFetcher creates a fetcher writing to fs (the OS filesystem when nil)
func NewHTTPStreamFetcher(client *http.Client, config *domain.ResolverConfig, fs afero.Fs, logger *zap.Logger) *HTTPStreamFetcher {
	if client == nil {
		client = NewHTTPClient()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPStreamFetcher{
		client:  client,
		headers: NewBrowserHeaders(config),
		fs:      fs,
		sleep:   time.Sleep,
		logger:  logger,
	}
}

// SetSleep replaces the pre-download sleep, used by tests
func (f *HTTPStreamFetcher) SetSleep(sleep func(time.Duration)) {
	f.sleep = sleep
}

// Fetch sleeps req.PreDelay, then streams loc into req.OutputPath.
// A failed download leaves the partially written file in place.
func (f *HTTPStreamFetcher) Fetch(ctx context.Context, loc domain.MediaLocation, req domain.FetchRequest) (*domain.FetchResult, error) {
	if req.PreDelay > 0 {
		f.sleep(req.PreDelay)
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.DirectURL, nil)
	if err != nil {
		return nil, domain.NewFetchError("invalid media URL", err)
	}
	f.headers.Apply(httpReq)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewFetchError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewFetchError("request failed",
			fmt.Errorf("unexpected status %d for %s", resp.StatusCode, loc.DirectURL))
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	file, err := f.fs.OpenFile(req.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, domain.NewFetchError("failed to create output file", err)
	}
	defer file.Close()

	written, err := copyChunks(file, resp.Body, chunkSize, total, req.Progress)
	if err != nil {
		f.logger.Debug("Stream interrupted",
			zap.String("path", req.OutputPath),
			zap.Int64("written", written),
			zap.Error(err))
		return nil, domain.NewFetchError("download failed", err)
	}

	return &domain.FetchResult{
		Success:   true,
		SizeBytes: written,
		Path:      req.OutputPath,
	}, nil
}

// copyChunks copies src to dst in chunkSize reads, reporting progress after every
// non-empty write when total is known.
func copyChunks(dst io.Writer, src io.Reader, chunkSize int, total int64, sink domain.ProgressSink) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if sink != nil && total > 0 {
				sink.Progress(written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
