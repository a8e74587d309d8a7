package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/graph"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/storage/kv"
	"paperchat/internal/util"
)

const dim = 16

var (
	swinChunks = []string{
		"Swin Transformer builds hierarchical feature maps.",
		"Shifted window attention limits computation to local windows.",
		"Results on ImageNet-1K reach 87.3 top-1 accuracy.",
	}
	vitChunks = []string{
		"ViT splits an image into fixed-size patches.",
		"Unlike a shifted window scheme, ViT attends globally.",
	}
)

func seed(t *testing.T) (*kv.Store, *providers.MockProvider) {
	t.Helper()
	store, err := kv.Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	mock := providers.NewMockProvider(dim)

	write := func(id, author string, cites []string, texts []string) {
		vecs, _, err := mock.Embed(context.Background(), providers.EmbedRequest{Inputs: texts, Dimension: dim})
		require.NoError(t, err)
		g := models.PaperGraph{
			Paper:     models.Paper{PaperID: id, Title: id, Authors: []string{author}},
			Authors:   []models.Author{{AuthorID: graph.AuthorID(author), Name: author}},
			Citations: cites,
		}
		for i, text := range texts {
			g.Chunks = append(g.Chunks, models.Chunk{
				ChunkID: graph.ChunkID(id, i), PaperID: id, ChunkIndex: i, Text: text, Embedding: vecs[i],
			})
		}
		require.NoError(t, store.WritePaperGraph(context.Background(), g))
	}
	write("2103.14030", "Ze Liu", []string{"2010.11929"}, swinChunks)
	write("2010.11929", "Alexey Dosovitskiy", nil, vitChunks)
	return store, mock
}

func TestRetrieveIdenticalTextRanksFirst(t *testing.T) {
	store, mock := seed(t)
	r := New(mock, store, WithDimension(dim))

	got, err := r.Retrieve(context.Background(), models.GraphIntent{
		SemanticQuery: swinChunks[2],
		PaperScope:    "2103.14030",
	}, 5)
	require.NoError(t, err)
	require.Len(t, got, 3, "vector pass is scoped to the paper")
	assert.Equal(t, "2103.14030_chunk_2", got[0].ChunkID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-5)
	for _, c := range got {
		assert.Equal(t, models.OriginVector, c.Origin, "no entities means no graph evidence")
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestRetrieveGraphEvidenceRanksBelowVector(t *testing.T) {
	store, mock := seed(t)
	r := New(mock, store)

	got, err := r.Retrieve(context.Background(), models.GraphIntent{
		SemanticQuery: swinChunks[1],
		Entities:      []string{"shifted window"},
		PaperScope:    "2103.14030",
	}, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "2103.14030_chunk_1", got[0].ChunkID)
	assert.Equal(t, models.OriginVector, got[0].Origin, "chunk found by both passes keeps its vector score")
	seen := map[string]int{}
	for _, c := range got {
		seen[c.ChunkID]++
	}
	assert.Equal(t, 1, seen["2103.14030_chunk_1"])

	last := got[len(got)-1]
	assert.Equal(t, "2010.11929_chunk_1", last.ChunkID, "cited paper is reached through the graph")
	assert.Equal(t, models.OriginGraph, last.Origin)
	assert.Equal(t, 0.0, last.Score)
}

func TestRetrieveHonoursEdgeTypes(t *testing.T) {
	store, mock := seed(t)
	r := New(mock, store, WithPolicy(Policy{MaxHops: 1, EdgeTypes: []string{"AUTHORED_BY"}, IncludeSeed: true}))

	got, err := r.Retrieve(context.Background(), models.GraphIntent{
		SemanticQuery: "windows",
		Entities:      []string{"shifted window"},
		PaperScope:    "2103.14030",
	}, 10)
	require.NoError(t, err)
	for _, c := range got {
		assert.Equal(t, "2103.14030", c.PaperID)
	}
}

func TestRetrieveWithoutScopeSearchesAllPapers(t *testing.T) {
	store, mock := seed(t)
	got, err := New(mock, store).Retrieve(context.Background(), models.GraphIntent{
		SemanticQuery: vitChunks[0],
		Entities:      []string{"patches"},
	}, 10)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "2010.11929_chunk_0", got[0].ChunkID)
}

func TestRetrieveClampsPositiveGraphScore(t *testing.T) {
	store, mock := seed(t)
	r := New(mock, store, WithPolicy(Policy{MaxHops: 1, EdgeTypes: []string{"CITES"}, Score: 0.9}))
	got, err := r.Retrieve(context.Background(), models.GraphIntent{
		SemanticQuery: swinChunks[0],
		Entities:      []string{"globally"},
		PaperScope:    "2103.14030",
	}, 10)
	require.NoError(t, err)
	last := got[len(got)-1]
	assert.Equal(t, models.OriginGraph, last.Origin)
	assert.Equal(t, 0.0, last.Score)
}

type brokenStore struct {
	Store
}

func (brokenStore) LexicalChunks(context.Context, []string, []string, int) ([]models.Chunk, error) {
	return nil, util.Mark(errors.New("connection reset"), util.ErrUnavailable)
}

func TestRetrieveSurfacesStoreErrors(t *testing.T) {
	store, mock := seed(t)
	_, err := New(mock, brokenStore{Store: store}).Retrieve(context.Background(), models.GraphIntent{
		SemanticQuery: "x",
		Entities:      []string{"window"},
		PaperScope:    "2103.14030",
	}, 3)
	require.ErrorIs(t, err, util.ErrUnavailable)

	_, err = New(mock, store).Retrieve(context.Background(), models.GraphIntent{SemanticQuery: "x"}, 0)
	require.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestRetrieveEmptyStoreIsNotAnError(t *testing.T) {
	store, err := kv.Open("", true, nil)
	require.NoError(t, err)
	defer store.Close()
	got, err := New(providers.NewMockProvider(dim), store).Retrieve(context.Background(), models.GraphIntent{
		SemanticQuery: "anything",
		Entities:      []string{"anything"},
		PaperScope:    "missing",
	}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMerge(t *testing.T) {
	vector := []models.RetrievalContext{
		{ChunkID: "a", PaperID: "P1", ChunkIndex: 0, Score: 0.5, Origin: models.OriginVector},
		{ChunkID: "b", PaperID: "P1", ChunkIndex: 1, Score: 0, Origin: models.OriginVector},
	}
	graphHits := []models.RetrievalContext{
		{ChunkID: "a", PaperID: "P1", ChunkIndex: 0, Score: 0, Origin: models.OriginGraph},
		{ChunkID: "c", PaperID: "P0", ChunkIndex: 3, Score: 0, Origin: models.OriginGraph},
		{ChunkID: "d", PaperID: "P0", ChunkIndex: 1, Score: 0, Origin: models.OriginGraph},
	}
	got := Merge(vector, graphHits, 10)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ChunkID)
	}
	assert.Equal(t, []string{"a", "b", "d", "c"}, ids)
	assert.Equal(t, models.OriginVector, got[0].Origin)

	assert.Len(t, Merge(vector, graphHits, 2), 2)
	assert.Empty(t, Merge(nil, nil, 3))
}
