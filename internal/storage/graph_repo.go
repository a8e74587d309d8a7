package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"paperchat/internal/graph"
	"paperchat/internal/models"
)

type GraphRepo struct {
	db *DB
}

func NewGraphRepo(db *DB) *GraphRepo {
	return &GraphRepo{db: db}
}

// replaceEdges rewrites the outgoing AUTHORED_BY and CITES edges of one paper.
func (r *GraphRepo) replaceEdges(ctx context.Context, q execer, paperID string, authors []models.Author, citations []string) error {
	for _, a := range authors {
		_, err := q.Exec(ctx, `
INSERT INTO authors (author_id, name) VALUES ($1, $2)
ON CONFLICT (author_id) DO NOTHING`, a.AuthorID, a.Name)
		if err != nil {
			return fmt.Errorf("upsert author %s: %w", a.AuthorID, err)
		}
	}
	if _, err := q.Exec(ctx, `DELETE FROM graph_edges WHERE source_id = $1`, paperID); err != nil {
		return fmt.Errorf("clear edges of %s: %w", paperID, err)
	}
	for i, a := range authors {
		_, err := q.Exec(ctx, `
INSERT INTO graph_edges (source_id, target_id, edge_type, position)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source_id, target_id, edge_type) DO NOTHING`, paperID, a.AuthorID, string(graph.RelAuthoredBy), i)
		if err != nil {
			return fmt.Errorf("insert authorship edge: %w", err)
		}
	}
	for i, cited := range citations {
		_, err := q.Exec(ctx, `
INSERT INTO graph_edges (source_id, target_id, edge_type, position)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source_id, target_id, edge_type) DO NOTHING`, paperID, cited, string(graph.RelCites), i)
		if err != nil {
			return fmt.Errorf("insert citation edge: %w", err)
		}
	}
	return nil
}

// RelatedPapers walks up to t.MaxHops paper-to-paper steps from paperID. Papers are
// returned nearest first.
func (r *GraphRepo) RelatedPapers(ctx context.Context, paperID string, t models.Traversal) ([]string, error) {
	edgeTypes := t.EdgeTypes
	if edgeTypes == nil {
		edgeTypes = []string{}
	}
	rows, err := r.db.Pool.Query(ctx, `
WITH RECURSIVE adjacency AS (
  SELECT a.source_id AS src, b.source_id AS dst
  FROM graph_edges a
  JOIN graph_edges b ON b.target_id = a.target_id AND b.edge_type = 'AUTHORED_BY'
  WHERE a.edge_type = 'AUTHORED_BY' AND 'AUTHORED_BY' = ANY($2) AND a.source_id <> b.source_id
  UNION
  SELECT source_id, target_id FROM graph_edges WHERE edge_type = 'CITES' AND 'CITES' = ANY($2)
  UNION
  SELECT target_id, source_id FROM graph_edges WHERE edge_type = 'CITES' AND 'CITES' = ANY($2)
),
walk AS (
  SELECT $1::text AS paper_id, 0 AS depth
  UNION
  SELECT adjacency.dst, walk.depth + 1
  FROM walk
  JOIN adjacency ON adjacency.src = walk.paper_id
  WHERE walk.depth < $3
)
SELECT paper_id
FROM walk
WHERE $4 OR paper_id <> $1
GROUP BY paper_id
ORDER BY MIN(depth) ASC, paper_id ASC`, paperID, edgeTypes, t.MaxHops, t.IncludeSeed)
	if err != nil {
		return nil, fmt.Errorf("walk related papers: %w", classify(err))
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan related paper: %w", classify(err))
	}
	return out, nil
}
