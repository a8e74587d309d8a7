package vector

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"paperchat/internal/models"
)

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchChunks returns the topK chunks nearest to queryVec by cosine distance, restricted to
// paperID unless it is empty. Score is the cosine similarity.
func (s *Searcher) SearchChunks(ctx context.Context, paperID string, queryVec []float32, topK int) ([]models.RetrievalContext, error) {
	if topK <= 0 {
		topK = 8
	}
	args := []any{pgvector.NewVector(queryVec), topK}
	filterSQL := ""
	if paperID != "" {
		filterSQL = " WHERE c.paper_id = $3"
		args = append(args, paperID)
	}

	query := `
SELECT c.chunk_id,
       c.paper_id,
       c.chunk_index,
       c.text,
       1 - (c.embedding <=> $1) AS score
FROM chunks c` + filterSQL + `
ORDER BY c.embedding <=> $1, c.chunk_index
LIMIT $2`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.RetrievalContext, 0, min(topK, 64))
	for rows.Next() {
		r := models.RetrievalContext{Origin: models.OriginVector}
		if err := rows.Scan(&r.ChunkID, &r.PaperID, &r.ChunkIndex, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector or
// the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
