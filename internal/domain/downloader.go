package domain

import "context"

// LinkResolver turns a page URL into the direct asset URL
type LinkResolver interface {
	// Resolve fetches the page and extracts the media location
	Resolve(ctx context.Context, pageURL string) (MediaLocation, error)
}

// StreamFetcher downloads a resolved asset to disk
type StreamFetcher interface {
	// Fetch streams the asset at loc into req.OutputPath
	Fetch(ctx context.Context, loc MediaLocation, req FetchRequest) (*FetchResult, error)
}

// ShortLinkResolver follows short-link redirects.
// Resolve never fails: on any problem it returns the input unchanged.
type ShortLinkResolver interface {
	Resolve(ctx context.Context, rawURL string) string
}

// ProgressSink receives byte counts while an item downloads
type ProgressSink interface {
	Progress(downloaded, total int64)
}

// ProgressFunc adapts a function to ProgressSink
type ProgressFunc func(downloaded, total int64)

// Progress calls f(downloaded, total)
func (f ProgressFunc) Progress(downloaded, total int64) {
	f(downloaded, total)
}

// ItemObserver is notified as the orchestrator moves through a batch
type ItemObserver interface {
	// ItemStarted is called before resolution; the returned sink (may be nil) receives progress
	ItemStarted(req MediaRequest) ProgressSink

	// ItemStateChanged is called on every lifecycle transition, ending with a terminal state
	ItemStateChanged(req MediaRequest, state ItemState)

	// ItemFinished is called once the outcome for req is recorded
	ItemFinished(req MediaRequest, outcome DownloadOutcome)
}

// FilenameStrategy selects how an output file's base name is derived
type FilenameStrategy string

const (
	FilenameByID       FilenameStrategy = "id"
	FilenameByIndex    FilenameStrategy = "index"
	FilenameByTemplate FilenameStrategy = "template"
)

// ValidateFilenameStrategy checks if a filename strategy is known
func ValidateFilenameStrategy(s FilenameStrategy) bool {
	return s == FilenameByID || s == FilenameByIndex || s == FilenameByTemplate
}

// WatermarkMode controls the /watermark/ -> /no-watermark/ rewrite
type WatermarkMode string

const (
	WatermarkKeep       WatermarkMode = "keep"        // never rewrite
	WatermarkRemove     WatermarkMode = "remove"      // rewrite, silently no-op when the segment is absent
	WatermarkRemoveWarn WatermarkMode = "remove-warn" // rewrite, log a warning when the segment is absent
)

// ValidateWatermarkMode checks if a watermark mode is known
func ValidateWatermarkMode(m WatermarkMode) bool {
	return m == WatermarkKeep || m == WatermarkRemove || m == WatermarkRemoveWarn
}
