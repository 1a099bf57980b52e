package dto

// RowError reports one failed row of a bulk import. Row numbers are
// 1-based over data rows, matching what the operator sees in the file
// (header excluded).
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult reports the outcome of a bulk import atomically: counts plus
// the collected per-row errors.
type ImportResult struct {
	CreatedCount int        `json:"created_count"`
	UpdatedCount int        `json:"updated_count"`
	TotalRows    int        `json:"total_rows"`
	Errors       []RowError `json:"errors"`
}

// ExportJob describes an asynchronous export and its download token.
type ExportJob struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	FileName    string `json:"file_name,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Export job states.
const (
	ExportStatusPending   = "pending"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)
