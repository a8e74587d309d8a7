package storage

import (
	"context"
	"fmt"

	"paperchat/internal/models"
	"paperchat/internal/vector"
)

// Store is the Postgres + pgvector graph store.
type Store struct {
	db       *DB
	papers   *PaperRepo
	chunks   *ChunkRepo
	graph    *GraphRepo
	searcher *vector.Searcher
}

func NewStore(db *DB) *Store {
	return &Store{
		db:       db,
		papers:   NewPaperRepo(db),
		chunks:   NewChunkRepo(db),
		graph:    NewGraphRepo(db),
		searcher: vector.NewSearcher(db.Pool),
	}
}

// WritePaperGraph upserts the paper, its chunks, authors and edges in one transaction.
// Concurrent writers of the same paper are serialized by a transaction-scoped advisory lock.
func (s *Store) WritePaperGraph(ctx context.Context, g models.PaperGraph) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin paper graph tx: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	paperID := g.Paper.PaperID
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, paperID); err != nil {
		return fmt.Errorf("lock paper %s: %w", paperID, classify(err))
	}
	if err := s.papers.upsertPaper(ctx, tx, g.Paper, len(g.Chunks) > 0); err != nil {
		return classify(err)
	}
	if err := s.chunks.replaceChunks(ctx, tx, paperID, g.Chunks); err != nil {
		return classify(err)
	}
	if err := s.graph.replaceEdges(ctx, tx, paperID, g.Authors, g.Citations); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit paper graph tx: %w", classify(err))
	}
	return nil
}

func (s *Store) VectorSearch(ctx context.Context, paperID string, query []float32, topK int) ([]models.RetrievalContext, error) {
	out, err := s.searcher.SearchChunks(ctx, paperID, query, topK)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) RelatedPapers(ctx context.Context, paperID string, t models.Traversal) ([]string, error) {
	return s.graph.RelatedPapers(ctx, paperID, t)
}

func (s *Store) LexicalChunks(ctx context.Context, paperIDs, terms []string, limit int) ([]models.Chunk, error) {
	return s.chunks.LexicalChunks(ctx, paperIDs, terms, limit)
}

func (s *Store) ChunksByPaper(ctx context.Context, paperID string) ([]models.Chunk, error) {
	return s.chunks.ChunksByPaper(ctx, paperID)
}

func (s *Store) GetPaper(ctx context.Context, paperID string) (models.PaperDetail, error) {
	return s.papers.GetPaper(ctx, paperID)
}

func (s *Store) Overview(ctx context.Context) (models.Overview, error) {
	return s.papers.Overview(ctx)
}
