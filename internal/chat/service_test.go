package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/answer"
	"paperchat/internal/graph"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/query"
	"paperchat/internal/retrieval"
	"paperchat/internal/storage/kv"
	"paperchat/internal/util"
)

const dim = 8

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := kv.Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	mock := providers.NewMockProvider(dim)

	texts := []string{"Swin uses shifted windows.", "Swin reaches 87.3 top-1 on ImageNet."}
	vecs, _, err := mock.Embed(context.Background(), providers.EmbedRequest{Inputs: texts, Dimension: dim})
	require.NoError(t, err)
	g := models.PaperGraph{Paper: models.Paper{PaperID: "2103.14030", Title: "Swin Transformer"}}
	for i, text := range texts {
		g.Chunks = append(g.Chunks, models.Chunk{ChunkID: graph.ChunkID("2103.14030", i), PaperID: "2103.14030", ChunkIndex: i, Text: text, Embedding: vecs[i]})
	}
	require.NoError(t, store.WritePaperGraph(context.Background(), g))

	return NewService(
		query.NewOptimizer(mock),
		retrieval.New(mock, store, retrieval.WithDimension(dim)),
		answer.NewGenerator(mock),
		WithTopK(5),
	)
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, models.GraphIntent, int) ([]models.RetrievalContext, error) {
	return nil, util.Mark(errors.New("store offline"), util.ErrUnavailable)
}

func TestAskAnswersWithSources(t *testing.T) {
	s := newService(t)
	resp, err := s.Ask(context.Background(), Request{PaperID: "2103.14030", Query: "Does Swin use shifted windows?"})
	require.NoError(t, err)

	assert.Equal(t, "2103.14030", resp.PaperID)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Sources, 2)
	assert.Contains(t, resp.Response, "[C1]")
	assert.Equal(t, "Does Swin use shifted windows?", resp.Intent.SemanticQuery)
	assert.Equal(t, "2103.14030", resp.Intent.PaperScope)
}

func TestAskValidatesInput(t *testing.T) {
	s := newService(t)
	for _, req := range []Request{{Query: "q"}, {PaperID: "P1", Query: "   "}} {
		_, err := s.Ask(context.Background(), req)
		require.ErrorIs(t, err, util.ErrInvalidInput)
		_, err = s.AskStream(context.Background(), req)
		require.ErrorIs(t, err, util.ErrInvalidInput)
	}
}

type countingRetriever struct{ calls int }

func (r *countingRetriever) Retrieve(context.Context, models.GraphIntent, int) ([]models.RetrievalContext, error) {
	r.calls++
	return nil, nil
}

func TestAskRejectsTopKAboveMax(t *testing.T) {
	mock := providers.NewMockProvider(dim)
	r := &countingRetriever{}
	s := NewService(query.NewOptimizer(mock), r, answer.NewGenerator(mock))

	for _, k := range []int{MaxTopK + 1, 50_000_000, 1 << 62} {
		_, err := s.Ask(context.Background(), Request{PaperID: "2103.14030", Query: "q", TopK: k})
		require.ErrorIs(t, err, util.ErrInvalidInput, "top_k=%d", k)
		_, err = s.AskStream(context.Background(), Request{PaperID: "2103.14030", Query: "q", TopK: k})
		require.ErrorIs(t, err, util.ErrInvalidInput, "top_k=%d", k)
	}
	assert.Zero(t, r.calls)

	_, err := s.Ask(context.Background(), Request{PaperID: "2103.14030", Query: "q", TopK: MaxTopK})
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestAskStreamEvents(t *testing.T) {
	s := newService(t)
	ch, err := s.AskStream(context.Background(), Request{PaperID: "2103.14030", Query: "What accuracy does Swin reach?"})
	require.NoError(t, err)

	var events []answer.Event
	for ev := range ch {
		events = append(events, ev)
	}
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, answer.EventSources, events[0].Type)
	assert.Len(t, events[0].Sources, 2)
	assert.Equal(t, answer.EventDone, events[len(events)-1].Type)
}

func TestRetrievalFailureSurfacesBeforeStream(t *testing.T) {
	mock := providers.NewMockProvider(dim)
	s := NewService(query.NewOptimizer(mock), failingRetriever{}, answer.NewGenerator(mock))

	ch, err := s.AskStream(context.Background(), Request{PaperID: "P1", Query: "q"})
	require.ErrorIs(t, err, util.ErrUnavailable)
	assert.Nil(t, ch)
	_, err = s.Ask(context.Background(), Request{PaperID: "P1", Query: "q"})
	require.ErrorIs(t, err, util.ErrUnavailable)
}
