package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"paperchat/internal/graph"
	"paperchat/internal/models"
	"paperchat/internal/vector"
)

func (s *Store) VectorSearch(ctx context.Context, paperID string, query []float32, topK int) ([]models.RetrievalContext, error) {
	if topK <= 0 {
		topK = 8
	}
	p := []byte(chunkPrefix + sep)
	if paperID != "" {
		p = prefix(chunkPrefix, paperID)
	}
	var out []models.RetrievalContext
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var c models.Chunk
			err := it.Item().Value(func(val []byte) error {
				var err error
				c, err = decodeChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			out = append(out, models.RetrievalContext{
				ChunkID:    c.ChunkID,
				PaperID:    c.PaperID,
				ChunkIndex: c.ChunkIndex,
				Text:       c.Text,
				Score:      vector.Cosine(query, c.Embedding),
				Origin:     models.OriginVector,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vector scan: %w", classify(err))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// RelatedPapers walks up to t.MaxHops paper-to-paper steps from paperID, nearest first.
func (s *Store) RelatedPapers(ctx context.Context, paperID string, t models.Traversal) ([]string, error) {
	useAuthors, useCites := false, false
	for _, e := range t.EdgeTypes {
		switch graph.RelationType(e) {
		case graph.RelAuthoredBy:
			useAuthors = true
		case graph.RelCites:
			useCites = true
		}
	}

	depth := map[string]int{paperID: 0}
	err := s.db.View(func(txn *badger.Txn) error {
		frontier := []string{paperID}
		for hop := 1; hop <= t.MaxHops && len(frontier) > 0; hop++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var next []string
			for _, p := range frontier {
				neighbours, err := s.neighbours(txn, p, useAuthors, useCites)
				if err != nil {
					return err
				}
				for _, n := range neighbours {
					if _, seen := depth[n]; seen {
						continue
					}
					depth[n] = hop
					next = append(next, n)
				}
			}
			frontier = next
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk related papers: %w", classify(err))
	}

	out := make([]string, 0, len(depth))
	for id := range depth {
		if id == paperID && !t.IncludeSeed {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if depth[out[i]] != depth[out[j]] {
			return depth[out[i]] < depth[out[j]]
		}
		return out[i] < out[j]
	})
	return out, nil
}

func (s *Store) neighbours(txn *badger.Txn, paperID string, useAuthors, useCites bool) ([]string, error) {
	var out []string
	if useAuthors {
		var rec paperRecord
		switch err := getJSON(txn, paperKey(paperID), &rec); {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return nil, err
		}
		for _, aid := range rec.AuthorIDs {
			p := prefix(authoredPrefix, aid)
			for _, k := range keysWithPrefix(txn, p) {
				if other := lastPart(k, p); other != paperID {
					out = append(out, other)
				}
			}
		}
	}
	if useCites {
		for _, pre := range [][]byte{prefix(citesPrefix, paperID), prefix(citedByPrefix, paperID)} {
			for _, k := range keysWithPrefix(txn, pre) {
				out = append(out, lastPart(k, pre))
			}
		}
	}
	return out, nil
}

// LexicalChunks returns chunks of paperIDs containing any of terms (case-insensitive),
// ordered by the number of distinct terms matched.
func (s *Store) LexicalChunks(ctx context.Context, paperIDs, terms []string, limit int) ([]models.Chunk, error) {
	if len(paperIDs) == 0 || len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}

	type hit struct {
		chunk models.Chunk
		n     int
	}
	var hits []hit
	for _, pid := range paperIDs {
		chunks, err := s.ChunksByPaper(ctx, pid)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			low := strings.ToLower(c.Text)
			n := 0
			for _, t := range lowered {
				if strings.Contains(low, t) {
					n++
				}
			}
			if n > 0 {
				hits = append(hits, hit{chunk: c, n: n})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].n != hits[j].n {
			return hits[i].n > hits[j].n
		}
		if hits[i].chunk.PaperID != hits[j].chunk.PaperID {
			return hits[i].chunk.PaperID < hits[j].chunk.PaperID
		}
		return hits[i].chunk.ChunkIndex < hits[j].chunk.ChunkIndex
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]models.Chunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.chunk)
	}
	return out, nil
}

func (s *Store) ChunksByPaper(ctx context.Context, paperID string) ([]models.Chunk, error) {
	var out []models.Chunk
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix(chunkPrefix, paperID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				c, err := decodeChunk(val)
				if err != nil {
					return err
				}
				out = append(out, c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list chunks by paper: %w", classify(err))
	}
	return out, nil
}

func (s *Store) GetPaper(ctx context.Context, paperID string) (models.PaperDetail, error) {
	if err := ctx.Err(); err != nil {
		return models.PaperDetail{}, err
	}
	var rec paperRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, paperKey(paperID), &rec)
	})
	if err != nil {
		return models.PaperDetail{}, fmt.Errorf("get paper %s: %w", paperID, classify(err))
	}
	cites := rec.Citations
	if cites == nil {
		cites = []string{}
	}
	return models.PaperDetail{
		Paper:         rec.Paper,
		Citations:     cites,
		CitationCount: len(cites),
		ChunkCount:    rec.Chunks,
	}, nil
}

func (s *Store) Overview(ctx context.Context) (models.Overview, error) {
	if err := ctx.Err(); err != nil {
		return models.Overview{}, err
	}
	o := models.Overview{PapersPerYear: []models.YearCount{}, TopAuthors: []models.AuthorCount{}}
	years := map[int]int{}
	perAuthor := map[string]int{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix(paperPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec paperRecord
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return err
			}
			o.TotalPapers++
			o.TotalChunks += rec.Chunks
			if rec.Paper.Year > 0 {
				years[rec.Paper.Year]++
			}
			for _, aid := range rec.AuthorIDs {
				perAuthor[aid]++
			}
		}
		o.TotalAuthors = len(keysWithPrefix(txn, prefix(authorPrefix)))

		for aid, n := range perAuthor {
			var a models.Author
			if err := getJSON(txn, authorKey(aid), &a); err != nil {
				return err
			}
			o.TopAuthors = append(o.TopAuthors, models.AuthorCount{Author: a.Name, Count: n})
		}
		return nil
	})
	if err != nil {
		return models.Overview{}, fmt.Errorf("overview: %w", classify(err))
	}
	for y, n := range years {
		o.PapersPerYear = append(o.PapersPerYear, models.YearCount{Year: y, Count: n})
	}
	sort.Slice(o.PapersPerYear, func(i, j int) bool { return o.PapersPerYear[i].Year < o.PapersPerYear[j].Year })
	sort.Slice(o.TopAuthors, func(i, j int) bool {
		if o.TopAuthors[i].Count != o.TopAuthors[j].Count {
			return o.TopAuthors[i].Count > o.TopAuthors[j].Count
		}
		return o.TopAuthors[i].Author < o.TopAuthors[j].Author
	})
	if len(o.TopAuthors) > 10 {
		o.TopAuthors = o.TopAuthors[:10]
	}
	return o, nil
}
