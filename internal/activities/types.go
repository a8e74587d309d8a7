package activities

type IngestPaperInput struct {
	JobID   string `json:"job_id"`
	PaperID string `json:"paper_id"`
}

type IngestPaperOutput struct {
	PaperID   string `json:"paper_id"`
	Title     string `json:"title"`
	Chunks    int    `json:"chunks"`
	Authors   int    `json:"authors"`
	Citations int    `json:"citations"`
}
