package models

import "time"

type Paper struct {
	PaperID       string    `json:"paper_id"`
	Title         string    `json:"title"`
	Abstract      string    `json:"abstract,omitempty"`
	Authors       []string  `json:"authors"`
	Year          int       `json:"year,omitempty"`
	Source        string    `json:"source"`
	PDFReference  string    `json:"pdf_reference,omitempty"`
	PublishedDate string    `json:"published_date,omitempty"`
	HasChunks     bool      `json:"has_chunks"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// PaperDetail is the read model returned for a single paper.
type PaperDetail struct {
	Paper
	Citations     []string `json:"citations"`
	CitationCount int      `json:"citation_count"`
	ChunkCount    int      `json:"chunk_count"`
}

type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	PaperID    string    `json:"paper_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

type Author struct {
	AuthorID string `json:"author_id"`
	Name     string `json:"name"`
}

// PaperGraph is everything written for one paper in a single store transaction.
type PaperGraph struct {
	Paper     Paper
	Chunks    []Chunk
	Authors   []Author
	Citations []string
}

type Origin string

const (
	OriginVector Origin = "vector"
	OriginGraph  Origin = "graph"
)

type RetrievalContext struct {
	ChunkID    string  `json:"chunk_id"`
	PaperID    string  `json:"paper_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Origin     Origin  `json:"origin"`
}

type GraphIntent struct {
	IntentType    string   `json:"intent_type"`
	SemanticQuery string   `json:"semantic_query"`
	Entities      []string `json:"entities"`
	Relations     []string `json:"relations,omitempty"`
	PaperScope    string   `json:"paper_scope"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

type AuthorCount struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
}

// Overview aggregates store-wide counts for dashboards.
type Overview struct {
	TotalPapers   int           `json:"total_papers"`
	TotalAuthors  int           `json:"total_authors"`
	TotalChunks   int           `json:"total_chunks"`
	PapersPerYear []YearCount   `json:"papers_per_year"`
	TopAuthors    []AuthorCount `json:"top_authors"`
}

// Traversal bounds graph expansion from a seed paper. Hops count paper-to-paper steps;
// AUTHORED_BY links papers sharing an author and CITES links papers in either direction.
type Traversal struct {
	MaxHops     int      `json:"max_hops"`
	EdgeTypes   []string `json:"edge_types"`
	IncludeSeed bool     `json:"include_seed"`
}
