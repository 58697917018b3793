package domain

import "time"

// BatchRecord is the persisted summary of a finished batch
type BatchRecord struct {
	ID             string       `json:"id" gorm:"primaryKey"`
	State          BatchState   `json:"state" gorm:"not null;index"`
	TotalRequested int          `json:"total"`
	CompletedCount int          `json:"completed_count"`
	FailedCount    int          `json:"failed_count"`
	OutputDir      string       `json:"output_dir"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at" gorm:"index"`
	Items          []ItemRecord `json:"items,omitempty" gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (BatchRecord) TableName() string {
	return "batches"
}

// ItemRecord is the persisted outcome of one URL within a batch
type ItemRecord struct {
	ID           uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	BatchID      string `json:"batch_id" gorm:"not null;index"`
	Sequence     int    `json:"sequence"`
	URL          string `json:"url" gorm:"not null"`
	Success      bool   `json:"success"`
	Author       string `json:"author,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// TableName specifies the table name for GORM
func (ItemRecord) TableName() string {
	return "batch_items"
}

// NewBatchRecord converts a finished report into its persisted form
func NewBatchRecord(report *BatchReport) *BatchRecord {
	record := &BatchRecord{
		ID:             report.ID,
		State:          report.State,
		TotalRequested: report.TotalRequested,
		CompletedCount: len(report.Completed),
		FailedCount:    len(report.Failed),
		OutputDir:      report.OutputDir,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
	}
	for _, o := range report.Outcomes {
		record.Items = append(record.Items, ItemRecord{
			BatchID:      report.ID,
			Sequence:     o.Index,
			URL:          o.URL,
			Success:      o.Success,
			Author:       o.Author,
			OutputPath:   o.OutputPath,
			SizeBytes:    o.SizeBytes,
			ErrorMessage: o.ErrorMessage,
		})
	}
	return record
}

// BatchRepository defines the interface for batch history persistence
type BatchRepository interface {
	// Save stores a finished batch and its items
	Save(report *BatchReport) error

	// FindByID finds a batch by ID, including its items
	FindByID(id string) (*BatchRecord, error)

	// FindRecent returns the most recent batches, newest first
	FindRecent(limit int) ([]*BatchRecord, error)

	// Delete deletes a batch and its items
	Delete(id string) error

	// GetStats returns aggregate statistics over all batches
	GetStats() (*HistoryStats, error)
}

// HistoryStats represents aggregate statistics over stored batches
type HistoryStats struct {
	Batches     int64 `json:"batches"`
	Interrupted int64 `json:"interrupted"`
	Items       int64 `json:"items"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
	Bytes       int64 `json:"bytes"`
}
