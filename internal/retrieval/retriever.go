package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/util"
)

// Store is the read side of the graph store used for retrieval.
type Store interface {
	VectorSearch(ctx context.Context, paperID string, query []float32, topK int) ([]models.RetrievalContext, error)
	RelatedPapers(ctx context.Context, paperID string, t models.Traversal) ([]string, error)
	LexicalChunks(ctx context.Context, paperIDs, terms []string, limit int) ([]models.Chunk, error)
}

// Policy controls the graph pass. Score is the fixed score given to graph evidence and must
// not be above zero, the lowest possible vector score.
type Policy struct {
	MaxHops     int
	EdgeTypes   []string
	IncludeSeed bool
	Score       float64
}

func DefaultPolicy() Policy {
	return Policy{MaxHops: 1, EdgeTypes: []string{"AUTHORED_BY", "CITES"}, IncludeSeed: true}
}

func PolicyFromConfig(cfg config.Config) Policy {
	return Policy{
		MaxHops:     cfg.GraphMaxHops,
		EdgeTypes:   cfg.EdgeTypes(),
		IncludeSeed: cfg.GraphIncludeSeed,
		Score:       cfg.GraphScore,
	}
}

type Retriever struct {
	embedder providers.EmbeddingProvider
	store    Store
	policy   Policy
	dim      int
	logger   *slog.Logger
}

type Option func(*Retriever)

func WithPolicy(p Policy) Option {
	return func(r *Retriever) { r.policy = p }
}

// WithDimension makes Retrieve reject query vectors of any other length.
func WithDimension(dim int) Option {
	return func(r *Retriever) { r.dim = dim }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(embedder providers.EmbeddingProvider, store Store, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, store: store, policy: DefaultPolicy(), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "retriever")
	if r.policy.Score > 0 {
		r.logger.Warn("graph score above zero clamped", "score", r.policy.Score)
		r.policy.Score = 0
	}
	if r.policy.MaxHops < 0 {
		r.policy.MaxHops = 0
	}
	return r
}

// Retrieve runs the vector and graph passes concurrently and returns at most topK contexts,
// best first. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, intent models.GraphIntent, topK int) ([]models.RetrievalContext, error) {
	if topK <= 0 {
		return nil, util.Mark(fmt.Errorf("top_k must be positive, got %d", topK), util.ErrInvalidInput)
	}

	var vec, grp []models.RetrievalContext
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vec, err = r.vectorPass(gctx, intent, topK)
		return err
	})
	g.Go(func() error {
		var err error
		grp, err = r.graphPass(gctx, intent, topK)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := Merge(vec, grp, topK)
	r.logger.Debug("retrieved contexts",
		"paper_scope", intent.PaperScope,
		"vector", len(vec),
		"graph", len(grp),
		"returned", len(out),
	)
	return out, nil
}

func (r *Retriever) vectorPass(ctx context.Context, intent models.GraphIntent, topK int) ([]models.RetrievalContext, error) {
	if intent.SemanticQuery == "" {
		return nil, nil
	}
	vectors, info, err := r.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "retrieve_query",
		TaskType:  providers.TaskQuery,
		Inputs:    []string{intent.SemanticQuery},
		Dimension: r.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, util.Mark(fmt.Errorf("embed query: %s returned %d vectors", info.Name, len(vectors)), util.ErrUnavailable)
	}
	if r.dim > 0 && len(vectors[0]) != r.dim {
		return nil, util.Mark(fmt.Errorf("embed query: dimension %d, want %d", len(vectors[0]), r.dim), util.ErrInvalidInput)
	}

	hits, err := r.store.VectorSearch(ctx, intent.PaperScope, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	for i := range hits {
		hits[i].Score = clamp01(hits[i].Score)
		hits[i].Origin = models.OriginVector
	}
	return hits, nil
}

func (r *Retriever) graphPass(ctx context.Context, intent models.GraphIntent, topK int) ([]models.RetrievalContext, error) {
	if intent.PaperScope == "" || len(intent.Entities) == 0 {
		return nil, nil
	}
	related, err := r.store.RelatedPapers(ctx, intent.PaperScope, models.Traversal{
		MaxHops:     r.policy.MaxHops,
		EdgeTypes:   r.policy.EdgeTypes,
		IncludeSeed: r.policy.IncludeSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("expand graph: %w", err)
	}
	if len(related) == 0 {
		return nil, nil
	}
	chunks, err := r.store.LexicalChunks(ctx, related, intent.Entities, topK)
	if err != nil {
		return nil, fmt.Errorf("match entities: %w", err)
	}
	out := make([]models.RetrievalContext, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, models.RetrievalContext{
			ChunkID:    c.ChunkID,
			PaperID:    c.PaperID,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Score:      r.policy.Score,
			Origin:     models.OriginGraph,
		})
	}
	return out, nil
}

// Merge unions both passes keyed by chunk id, keeping the higher score (vector evidence on
// ties), and returns the best topK.
func Merge(vector, graph []models.RetrievalContext, topK int) []models.RetrievalContext {
	byID := make(map[string]models.RetrievalContext, len(vector)+len(graph))
	add := func(list []models.RetrievalContext) {
		for _, c := range list {
			cur, ok := byID[c.ChunkID]
			if !ok || better(c, cur) {
				byID[c.ChunkID] = c
			}
		}
	}
	add(vector)
	add(graph)

	out := make([]models.RetrievalContext, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Origin != b.Origin {
			return a.Origin == models.OriginVector
		}
		if a.PaperID != b.PaperID {
			return a.PaperID < b.PaperID
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func better(c, cur models.RetrievalContext) bool {
	if c.Score != cur.Score {
		return c.Score > cur.Score
	}
	return c.Origin == models.OriginVector && cur.Origin != models.OriginVector
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
