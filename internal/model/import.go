package model

import "time"

// ImportStatus tracks an import job through its lifecycle.
type ImportStatus string

// Import status constants. Valid transitions are pending -> processing ->
// completed or pending -> processing -> failed.
const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// ImportFormat identifies the detected file format of a batch.
type ImportFormat string

// Import format constants.
const (
	FormatCSV     ImportFormat = "csv"
	FormatOFX     ImportFormat = "ofx"
	FormatUnknown ImportFormat = "unknown"
)

// ImportRowError records a single row that failed to import.
type ImportRowError struct {
	Reason string `json:"reason"`
	Row    int    `json:"row"`
}

// TransactionImport is the state of one batch import job. Counters always
// satisfy TotalRows = ImportedCount + DuplicateCount + ErrorCount once the
// job reaches a terminal status.
type TransactionImport struct {
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	FieldMapping   map[string]string `json:"field_mapping,omitempty"`
	ID             string            `json:"id"`
	HouseholdID    string            `json:"household_id"`
	Filename       string            `json:"filename"`
	Format         ImportFormat      `json:"format"`
	Status         ImportStatus      `json:"status"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	RowErrors      []ImportRowError  `json:"row_errors,omitempty"`
	TotalRows      int               `json:"total_rows"`
	ImportedCount  int               `json:"imported_count"`
	DuplicateCount int               `json:"duplicate_count"`
	ErrorCount     int               `json:"error_count"`
}
