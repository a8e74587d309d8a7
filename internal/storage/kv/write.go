package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"paperchat/internal/models"
)

// WritePaperGraph stages the paper, its chunks, authors and edges in one Badger
// transaction. Nothing is visible to readers until the transaction commits.
func (s *Store) WritePaperGraph(ctx context.Context, g models.PaperGraph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paperID := g.Paper.PaperID
	err := s.db.Update(func(txn *badger.Txn) error {
		var old paperRecord
		switch err := getJSON(txn, paperKey(paperID), &old); {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("read paper %s: %w", paperID, err)
		}

		for _, k := range keysWithPrefix(txn, prefix(chunkPrefix, paperID)) {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete stale chunk: %w", err)
			}
		}
		for _, aid := range old.AuthorIDs {
			if err := txn.Delete(key(authoredPrefix, aid, paperID)); err != nil {
				return fmt.Errorf("delete authorship edge: %w", err)
			}
		}
		for _, cited := range old.Citations {
			if err := txn.Delete(key(citesPrefix, paperID, cited)); err != nil {
				return fmt.Errorf("delete citation edge: %w", err)
			}
			if err := txn.Delete(key(citedByPrefix, cited, paperID)); err != nil {
				return fmt.Errorf("delete citation edge: %w", err)
			}
		}

		for _, c := range g.Chunks {
			b, err := encodeChunk(c)
			if err != nil {
				return fmt.Errorf("encode chunk %s: %w", c.ChunkID, err)
			}
			if err := txn.Set(chunkKey(paperID, c.ChunkIndex), b); err != nil {
				return fmt.Errorf("put chunk %s: %w", c.ChunkID, err)
			}
		}

		rec := paperRecord{Paper: g.Paper, Citations: g.Citations, Chunks: len(g.Chunks)}
		rec.Paper.HasChunks = len(g.Chunks) > 0
		rec.Paper.UpdatedAt = time.Now().UTC()
		for _, a := range g.Authors {
			if _, err := txn.Get(authorKey(a.AuthorID)); errors.Is(err, badger.ErrKeyNotFound) {
				if err := setJSON(txn, authorKey(a.AuthorID), a); err != nil {
					return fmt.Errorf("put author %s: %w", a.AuthorID, err)
				}
			} else if err != nil {
				return fmt.Errorf("read author %s: %w", a.AuthorID, err)
			}
			if err := txn.Set(key(authoredPrefix, a.AuthorID, paperID), nil); err != nil {
				return fmt.Errorf("put authorship edge: %w", err)
			}
			rec.AuthorIDs = append(rec.AuthorIDs, a.AuthorID)
		}
		for _, cited := range g.Citations {
			if err := txn.Set(key(citesPrefix, paperID, cited), nil); err != nil {
				return fmt.Errorf("put citation edge: %w", err)
			}
			if err := txn.Set(key(citedByPrefix, cited, paperID), nil); err != nil {
				return fmt.Errorf("put citation edge: %w", err)
			}
		}
		if err := setJSON(txn, paperKey(paperID), rec); err != nil {
			return fmt.Errorf("put paper %s: %w", paperID, err)
		}

		if s.beforeCommit != nil {
			if err := s.beforeCommit(paperID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("paper graph write rolled back", "paper_id", paperID, "err", err)
		return classify(err)
	}
	return nil
}
