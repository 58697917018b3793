package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// BatchState represents the state of a whole batch
type BatchState string

const (
	BatchQueued      BatchState = "queued"
	BatchRunning     BatchState = "running"
	BatchCompleted   BatchState = "completed"
	BatchInterrupted BatchState = "interrupted"
	// BatchFailed means the batch never started: its options or output directory were unusable
	BatchFailed      BatchState = "failed"
)

// FailedEntry pairs a failed URL with its reason. It serializes as a two-element JSON array.
type FailedEntry struct {
	URL   string
	Error string
}

// MarshalJSON encodes the entry as [url, error]
func (f FailedEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.URL, f.Error})
}

// UnmarshalJSON decodes a [url, error] pair
func (f *FailedEntry) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("failed entry must have 2 elements, got %d", len(pair))
	}
	f.URL, f.Error = pair[0], pair[1]
	return nil
}

// DownloadOptions configures one batch run. Read-only to the orchestrator.
type DownloadOptions struct {
	OutputDirectory  string
	PerItemDelay     time.Duration
	ChunkSizeBytes   int
	FilenameStrategy FilenameStrategy
	FilenameTemplate string
	MaxRetries       int
	RetryDelay       time.Duration
}

// BatchReport is the aggregate accounting for one batch
type BatchReport struct {
	ID             string            `json:"id"`
	State          BatchState        `json:"state"`
	TotalRequested int               `json:"total"`
	Completed      []string          `json:"completed"`
	Failed         []FailedEntry     `json:"failed"`
	Outcomes       []DownloadOutcome `json:"outcomes"`
	OutputDir      string            `json:"output"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// Processed returns how many items reached an outcome
func (r *BatchReport) Processed() int {
	return len(r.Completed) + len(r.Failed)
}

// IsInterrupted checks if the batch stopped before processing every URL
func (r *BatchReport) IsInterrupted() bool {
	return r.State == BatchInterrupted
}

// LogPayload is the JSON document written to the log sink after a batch
type LogPayload struct {
	Total            int           `json:"total"`
	Output           string        `json:"output"`
	Delay            float64       `json:"delay"`
	ChunkSize        int           `json:"chunk_size"`
	FilenameTemplate string        `json:"filename_template"`
	Completed        []string      `json:"completed"`
	Failed           []FailedEntry `json:"failed"`
}

// NewLogPayload builds the log document for a finished report
func NewLogPayload(report *BatchReport, opts DownloadOptions) LogPayload {
	template := opts.FilenameTemplate
	if template == "" {
		template = "None"
	}
	completed := report.Completed
	if completed == nil {
		completed = []string{}
	}
	failed := report.Failed
	if failed == nil {
		failed = []FailedEntry{}
	}
	return LogPayload{
		Total:            report.TotalRequested,
		Output:           opts.OutputDirectory,
		Delay:            opts.PerItemDelay.Seconds(),
		ChunkSize:        opts.ChunkSizeBytes,
		FilenameTemplate: template,
		Completed:        completed,
		Failed:           failed,
	}
}
