package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"paperchat/internal/models"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// replaceChunks upserts chunks for one paper and deletes any stored chunk beyond the new
// last index, so re-ingesting shorter text converges to the new chunk set.
func (r *ChunkRepo) replaceChunks(ctx context.Context, tx pgx.Tx, paperID string, chunks []models.Chunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
INSERT INTO chunks (chunk_id, paper_id, chunk_index, text, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (chunk_id)
DO UPDATE SET
  chunk_index = EXCLUDED.chunk_index,
  text = EXCLUDED.text,
  embedding = EXCLUDED.embedding`,
			c.ChunkID, paperID, c.ChunkIndex, c.Text, pgvector.NewVector(c.Embedding))
	}
	batch.Queue(`DELETE FROM chunks WHERE paper_id = $1 AND chunk_index >= $2`, paperID, len(chunks))

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if i < len(chunks) {
				return fmt.Errorf("upsert chunk %s: %w", chunks[i].ChunkID, err)
			}
			return fmt.Errorf("delete stale chunks: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close chunk batch: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ChunksByPaper(ctx context.Context, paperID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, paper_id, chunk_index, text
FROM chunks
WHERE paper_id = $1
ORDER BY chunk_index ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by paper: %w", classify(err))
	}
	out, err := pgx.CollectRows(rows, scanChunk)
	if err != nil {
		return nil, fmt.Errorf("scan chunk by paper: %w", classify(err))
	}
	return out, nil
}

// LexicalChunks returns chunks of the given papers whose text contains any of terms,
// case-insensitively, ordered by how many distinct terms they contain.
func (r *ChunkRepo) LexicalChunks(ctx context.Context, paperIDs, terms []string, limit int) ([]models.Chunk, error) {
	if len(paperIDs) == 0 || len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	patterns := likePatterns(terms)
	rows, err := r.db.Pool.Query(ctx, `
SELECT c.chunk_id, c.paper_id, c.chunk_index, c.text
FROM chunks c
CROSS JOIN LATERAL (
  SELECT COUNT(*) AS hits FROM unnest($2::text[]) AS t(pattern) WHERE c.text ILIKE t.pattern
) m
WHERE c.paper_id = ANY($1) AND m.hits > 0
ORDER BY m.hits DESC, c.paper_id ASC, c.chunk_index ASC
LIMIT $3`, paperIDs, patterns, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical chunk search: %w", classify(err))
	}
	out, err := pgx.CollectRows(rows, scanChunk)
	if err != nil {
		return nil, fmt.Errorf("scan lexical chunk: %w", classify(err))
	}
	return out, nil
}

func scanChunk(row pgx.CollectableRow) (models.Chunk, error) {
	var c models.Chunk
	err := row.Scan(&c.ChunkID, &c.PaperID, &c.ChunkIndex, &c.Text)
	return c, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePatterns(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, "%"+likeEscaper.Replace(t)+"%")
	}
	return out
}
