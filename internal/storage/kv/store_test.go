package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/graph"
	"paperchat/internal/models"
	"paperchat/internal/util"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func paperGraph(id string, authors []string, cites []string, texts ...string) models.PaperGraph {
	g := models.PaperGraph{
		Paper:     models.Paper{PaperID: id, Title: "Paper " + id, Authors: authors, Year: 2021, Source: "test"},
		Citations: cites,
	}
	for _, name := range authors {
		g.Authors = append(g.Authors, models.Author{AuthorID: graph.AuthorID(name), Name: name})
	}
	for i, text := range texts {
		g.Chunks = append(g.Chunks, models.Chunk{
			ChunkID:    graph.ChunkID(id, i),
			PaperID:    id,
			ChunkIndex: i,
			Text:       text,
			Embedding:  []float32{float32(i + 1), 1, 0},
		})
	}
	return g
}

func TestWriteAndReadBack(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P1", []string{"Ada Lovelace"}, []string{"P0"}, "first", "second")))

	chunks, err := s.ChunksByPaper(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "P1_chunk_0", chunks[0].ChunkID)
	assert.Equal(t, []float32{2, 1, 0}, chunks[1].Embedding)

	d, err := s.GetPaper(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, d.HasChunks)
	assert.Equal(t, 2, d.ChunkCount)
	assert.Equal(t, []string{"P0"}, d.Citations)

	_, err = s.GetPaper(ctx, "nope")
	require.ErrorIs(t, err, util.ErrNotFound)
}

func TestRewriteConvergesAndDropsStaleChunks(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P1", []string{"A"}, []string{"P0"}, "a", "b", "c")))
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P1", []string{"B"}, nil, "a", "b")))

	chunks, err := s.ChunksByPaper(ctx, "P1")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	related, err := s.RelatedPapers(ctx, "P0", models.Traversal{MaxHops: 1, EdgeTypes: []string{"CITES"}})
	require.NoError(t, err)
	assert.Empty(t, related, "old citation edge removed")
}

func TestFailedCommitLeavesNothing(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	s.OnBeforeCommit(func(string) error { return errors.New("disk on fire") })

	err := s.WritePaperGraph(ctx, paperGraph("P1", []string{"A"}, nil, "a", "b"))
	require.Error(t, err)

	chunks, err := s.ChunksByPaper(ctx, "P1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	_, err = s.GetPaper(ctx, "P1")
	require.ErrorIs(t, err, util.ErrNotFound)
}

func TestVectorSearchRanksByCosine(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P1", nil, nil, "a", "b", "c")))
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P2", nil, nil, "z")))

	got, err := s.VectorSearch(ctx, "P1", []float32{2, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P1_chunk_1", got[0].ChunkID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, models.OriginVector, got[0].Origin)

	all, err := s.VectorSearch(ctx, "", []float32{1, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRelatedPapersHonoursPolicy(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	// P1 -cites-> P2 -cites-> P3; P1 and P4 share an author.
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P1", []string{"Grace Hopper"}, []string{"P2"}, "x")))
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P2", []string{"Alan Turing"}, []string{"P3"}, "x")))
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P3", nil, nil, "x")))
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P4", []string{"grace  hopper"}, nil, "x")))

	both := []string{"AUTHORED_BY", "CITES"}
	got, err := s.RelatedPapers(ctx, "P1", models.Traversal{MaxHops: 1, EdgeTypes: both, IncludeSeed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P4"}, got)

	got, err = s.RelatedPapers(ctx, "P1", models.Traversal{MaxHops: 2, EdgeTypes: []string{"CITES"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P3"}, got)

	got, err = s.RelatedPapers(ctx, "P3", models.Traversal{MaxHops: 1, EdgeTypes: []string{"CITES"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"P2"}, got, "citations are walked in both directions")

	got, err = s.RelatedPapers(ctx, "P1", models.Traversal{MaxHops: 0, EdgeTypes: both})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLexicalChunksOrdersByHits(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P1", nil, nil,
		"We use a Swin Transformer backbone.",
		"Nothing relevant here.",
		"The backbone is pretrained.")))

	got, err := s.LexicalChunks(ctx, []string{"P1"}, []string{"swin", "BACKBONE"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, 2, got[1].ChunkIndex)

	none, err := s.LexicalChunks(ctx, []string{"P1"}, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOverview(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P1", []string{"A", "B"}, nil, "x", "y")))
	require.NoError(t, s.WritePaperGraph(ctx, paperGraph("P2", []string{"A"}, nil, "z")))

	o, err := s.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, o.TotalPapers)
	assert.Equal(t, 2, o.TotalAuthors)
	assert.Equal(t, 3, o.TotalChunks)
	assert.Equal(t, []models.YearCount{{Year: 2021, Count: 2}}, o.PapersPerYear)
	assert.Equal(t, models.AuthorCount{Author: "A", Count: 2}, o.TopAuthors[0])
}

func TestReadsHonourCancelledContext(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.WritePaperGraph(context.Background(), paperGraph("P1", []string{"A"}, nil, "x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.GetPaper(ctx, "P1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Overview(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
