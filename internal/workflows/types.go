package workflows

// Job and paper states reported by the progress queries.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type IngestBatchInput struct {
	JobID                 string   `json:"job_id"`
	PaperIDs              []string `json:"paper_ids"`
	MaxConcurrentChildren int      `json:"max_concurrent_children"`
}

type PaperIngestInput struct {
	JobID   string `json:"job_id"`
	PaperID string `json:"paper_id"`
}

type PaperStatus struct {
	PaperID    string `json:"paper_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Title      string `json:"title,omitempty"`
	Chunks     int    `json:"chunks"`
}

// IngestProgress is the GetProgress view of a batch job. ProcessedPapers counts papers that
// were ingested successfully.
type IngestProgress struct {
	JobID           string            `json:"job_id"`
	Status          string            `json:"status"`
	TotalPapers     int               `json:"total_papers"`
	ProcessedPapers int               `json:"processed_papers"`
	FailedPapers    int               `json:"failed_papers"`
	PerPaper        map[string]string `json:"per_paper"`
	Messages        []string          `json:"messages"`
}
