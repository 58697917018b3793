package domain

import "time"

// ItemState represents where a single URL is in its download lifecycle
type ItemState string

const (
	ItemPending   ItemState = "pending"
	ItemResolving ItemState = "resolving"
	ItemFetching  ItemState = "fetching"
	ItemSucceeded ItemState = "succeeded"
	ItemFailed    ItemState = "failed"
)

// IsTerminal checks if the item has reached a final state
func (s ItemState) IsTerminal() bool {
	return s == ItemSucceeded || s == ItemFailed
}

// MediaRequest describes one URL inside a batch
type MediaRequest struct {
	URL           string
	SequenceIndex int // 1-based
	TotalCount    int
}

// NewMediaRequest creates a request for the item at the given 1-based index
func NewMediaRequest(url string, index, total int) MediaRequest {
	return MediaRequest{
		URL:           url,
		SequenceIndex: index,
		TotalCount:    total,
	}
}

// MediaLocation is the direct, fetchable asset URL for an item
type MediaLocation struct {
	DirectURL string
}

// DownloadOutcome is the result of processing a single URL
type DownloadOutcome struct {
	URL          string    `json:"url"`
	Index        int       `json:"index"`
	Success      bool      `json:"success"`
	Author       string    `json:"author,omitempty"`
	OutputPath   string    `json:"output_path,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempts     int       `json:"attempts"`
	FinishedAt   time.Time `json:"finished_at"`
}

// State returns the terminal item state for the outcome
func (o DownloadOutcome) State() ItemState {
	if o.Success {
		return ItemSucceeded
	}
	return ItemFailed
}

// NewSucceededOutcome creates a successful outcome
func NewSucceededOutcome(req MediaRequest, author string, result *FetchResult) DownloadOutcome {
	return DownloadOutcome{
		URL:        req.URL,
		Index:      req.SequenceIndex,
		Success:    true,
		Author:     author,
		OutputPath: result.Path,
		SizeBytes:  result.SizeBytes,
		FinishedAt: time.Now(),
	}
}

// NewFailedOutcome creates a failed outcome carrying the user-visible reason for err
func NewFailedOutcome(req MediaRequest, author string, err error) DownloadOutcome {
	return DownloadOutcome{
		URL:          req.URL,
		Index:        req.SequenceIndex,
		Success:      false,
		Author:       author,
		ErrorMessage: FailureReason(err),
		FinishedAt:   time.Now(),
	}
}

// FetchRequest carries everything the stream fetcher needs besides the location
type FetchRequest struct {
	OutputPath string
	ChunkSize  int
	PreDelay   time.Duration
	Progress   ProgressSink
}

// FetchResult is returned by a successful fetch
type FetchResult struct {
	Success   bool
	SizeBytes int64
	Path      string
}
