package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"paperchat/internal/models"
)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

func (r *PaperRepo) upsertPaper(ctx context.Context, q execer, p models.Paper, hasChunks bool) error {
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	_, err := q.Exec(ctx, `
INSERT INTO papers (paper_id, title, abstract, authors, year, source, pdf_reference, published_date, has_chunks)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (paper_id)
DO UPDATE SET
  title = EXCLUDED.title,
  abstract = EXCLUDED.abstract,
  authors = EXCLUDED.authors,
  year = EXCLUDED.year,
  source = EXCLUDED.source,
  pdf_reference = EXCLUDED.pdf_reference,
  published_date = EXCLUDED.published_date,
  has_chunks = EXCLUDED.has_chunks,
  updated_at = NOW()`,
		p.PaperID, p.Title, p.Abstract, authors, p.Year, p.Source, p.PDFReference, p.PublishedDate, hasChunks,
	)
	if err != nil {
		return fmt.Errorf("upsert paper %s: %w", p.PaperID, err)
	}
	return nil
}

func (r *PaperRepo) GetPaper(ctx context.Context, paperID string) (models.PaperDetail, error) {
	var d models.PaperDetail
	err := r.db.Pool.QueryRow(ctx, `
SELECT p.paper_id, p.title, p.abstract, p.authors, p.year, p.source, p.pdf_reference, p.published_date,
       p.has_chunks, p.updated_at,
       (SELECT COUNT(*) FROM chunks c WHERE c.paper_id = p.paper_id)
FROM papers p
WHERE p.paper_id = $1`, paperID).
		Scan(&d.PaperID, &d.Title, &d.Abstract, &d.Authors, &d.Year, &d.Source, &d.PDFReference, &d.PublishedDate,
			&d.HasChunks, &d.UpdatedAt, &d.ChunkCount)
	if err != nil {
		return models.PaperDetail{}, fmt.Errorf("get paper %s: %w", paperID, classify(err))
	}

	rows, err := r.db.Pool.Query(ctx, `
SELECT target_id FROM graph_edges
WHERE source_id = $1 AND edge_type = 'CITES'
ORDER BY position ASC`, paperID)
	if err != nil {
		return models.PaperDetail{}, fmt.Errorf("list citations: %w", classify(err))
	}
	cites, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return models.PaperDetail{}, fmt.Errorf("scan citations: %w", classify(err))
	}
	d.Citations = cites
	d.CitationCount = len(cites)
	return d, nil
}

func (r *PaperRepo) Overview(ctx context.Context) (models.Overview, error) {
	var o models.Overview
	err := r.db.Pool.QueryRow(ctx, `
SELECT (SELECT COUNT(*) FROM papers),
       (SELECT COUNT(*) FROM authors),
       (SELECT COUNT(*) FROM chunks)`).Scan(&o.TotalPapers, &o.TotalAuthors, &o.TotalChunks)
	if err != nil {
		return models.Overview{}, fmt.Errorf("count graph: %w", classify(err))
	}

	rows, err := r.db.Pool.Query(ctx, `
SELECT year, COUNT(*) FROM papers
WHERE year > 0
GROUP BY year
ORDER BY year ASC`)
	if err != nil {
		return models.Overview{}, fmt.Errorf("papers per year: %w", classify(err))
	}
	o.PapersPerYear, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.YearCount, error) {
		var yc models.YearCount
		err := row.Scan(&yc.Year, &yc.Count)
		return yc, err
	})
	if err != nil {
		return models.Overview{}, fmt.Errorf("scan papers per year: %w", classify(err))
	}

	rows, err = r.db.Pool.Query(ctx, `
SELECT a.name, COUNT(*) AS n
FROM graph_edges e
JOIN authors a ON a.author_id = e.target_id
WHERE e.edge_type = 'AUTHORED_BY'
GROUP BY a.name
ORDER BY n DESC, a.name ASC
LIMIT 10`)
	if err != nil {
		return models.Overview{}, fmt.Errorf("top authors: %w", classify(err))
	}
	o.TopAuthors, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuthorCount, error) {
		var ac models.AuthorCount
		err := row.Scan(&ac.Author, &ac.Count)
		return ac, err
	})
	if err != nil {
		return models.Overview{}, fmt.Errorf("scan top authors: %w", classify(err))
	}
	return o, nil
}
