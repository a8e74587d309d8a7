package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"

	"paperchat/internal/discovery"
	"paperchat/internal/graph"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/util"
)

// GraphWriter persists everything known about one paper atomically.
type GraphWriter interface {
	WritePaperGraph(ctx context.Context, g models.PaperGraph) error
}

type Result struct {
	PaperID   string `json:"paper_id"`
	Title     string `json:"title"`
	Chunks    int    `json:"chunks"`
	Authors   int    `json:"authors"`
	Citations int    `json:"citations"`
	// Shared is set when this call joined an ingestion already in flight for the paper.
	Shared bool `json:"shared"`
}

type Orchestrator struct {
	resolver discovery.Resolver
	embedder providers.EmbeddingProvider
	store    GraphWriter
	chunker  *util.Chunker

	pool        *ants.Pool
	inflight    singleflight.Group
	batchSize   int
	concurrency int
	dim         int
	logger      *slog.Logger
}

type Option func(*Orchestrator) error

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithBatchSize sets how many chunks go into one embedding request. Default 16.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		o.batchSize = n
		return nil
	}
}

// WithConcurrency bounds the embedding requests in flight across all papers. Default 4.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		o.concurrency = n
		return nil
	}
}

// WithDimension sets the required embedding length. Default 768.
func WithDimension(dim int) Option {
	return func(o *Orchestrator) error {
		if dim < 1 {
			return fmt.Errorf("dimension must be positive, got %d", dim)
		}
		o.dim = dim
		return nil
	}
}

func New(resolver discovery.Resolver, embedder providers.EmbeddingProvider, store GraphWriter, chunker *util.Chunker, opts ...Option) (*Orchestrator, error) {
	switch {
	case resolver == nil:
		return nil, ErrResolverRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case store == nil:
		return nil, ErrStoreRequired
	case chunker == nil:
		return nil, ErrChunkerRequired
	}
	o := &Orchestrator{
		resolver:    resolver,
		embedder:    embedder,
		store:       store,
		chunker:     chunker,
		batchSize:   16,
		concurrency: 4,
		dim:         768,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "ingest")

	pool, err := ants.NewPool(o.concurrency)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	o.pool = pool
	return o, nil
}

// Close releases the embedding worker pool.
func (o *Orchestrator) Close() {
	o.pool.Release()
}

// Ingest resolves, chunks, embeds and stores one paper. Calls for a paper that is already
// being ingested wait for that run and return its result.
func (o *Orchestrator) Ingest(ctx context.Context, paperID string) (Result, error) {
	paperID = strings.TrimSpace(paperID)
	if paperID == "" {
		return Result{}, util.Mark(errors.New("paper id is required"), util.ErrInvalidInput)
	}
	v, err, shared := o.inflight.Do(paperID, func() (any, error) {
		return o.ingest(ctx, paperID)
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)
	res.Shared = shared
	return res, nil
}

func (o *Orchestrator) ingest(ctx context.Context, paperID string) (Result, error) {
	started := time.Now()
	logger := o.logger.With("paper_id", paperID)

	resolved, err := o.resolver.Resolve(ctx, paperID)
	if err != nil {
		if ctx.Err() == nil && util.Kind(err) == "internal" {
			err = util.Mark(err, util.ErrNotFound)
		}
		return Result{}, fmt.Errorf("resolve paper %s: %w", paperID, err)
	}

	text := util.SanitizeText(resolved.Text)
	if text == "" {
		return Result{}, util.Mark(fmt.Errorf("paper %s has no text", paperID), util.ErrInvalidInput)
	}
	segs := o.chunker.Segments(text)
	inputs := make([]string, len(segs))
	for i, s := range segs {
		inputs[i] = s.Text
	}

	vectors, err := o.embed(ctx, paperID, inputs)
	if err != nil {
		return Result{}, err
	}

	g := models.PaperGraph{
		Paper:     resolved.Paper,
		Chunks:    make([]models.Chunk, len(segs)),
		Authors:   authorsOf(resolved.Paper.Authors),
		Citations: citationsOf(paperID, resolved.Citations),
	}
	g.Paper.PaperID = paperID
	for i, s := range segs {
		g.Chunks[i] = models.Chunk{
			ChunkID:    graph.ChunkID(paperID, s.Index),
			PaperID:    paperID,
			ChunkIndex: s.Index,
			Text:       s.Text,
			Embedding:  vectors[i],
		}
	}

	if err := o.store.WritePaperGraph(ctx, g); err != nil {
		if ctx.Err() == nil && !errors.Is(err, util.ErrInvalidInput) {
			err = util.Mark(err, util.ErrPartialWrite)
		}
		return Result{}, fmt.Errorf("write paper %s: %w", paperID, err)
	}

	logger.Info("paper ingested",
		"chunks", len(g.Chunks),
		"authors", len(g.Authors),
		"citations", len(g.Citations),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return Result{
		PaperID:   paperID,
		Title:     g.Paper.Title,
		Chunks:    len(g.Chunks),
		Authors:   len(g.Authors),
		Citations: len(g.Citations),
	}, nil
}

// embed sends inputs in batches on the worker pool and reassembles the vectors in input
// order. The first failing batch cancels the rest.
func (o *Orchestrator) embed(ctx context.Context, paperID string, inputs []string) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(inputs))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(inputs); start += o.batchSize {
		end := min(start+o.batchSize, len(inputs))
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				fail(ctx.Err())
				return
			}
			if err := o.embedBatch(ctx, paperID, inputs[start:end], out[start:end]); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(util.Mark(fmt.Errorf("submit embedding batch: %w", err), util.ErrUnavailable))
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (o *Orchestrator) embedBatch(ctx context.Context, paperID string, inputs []string, dst [][]float32) error {
	vectors, info, err := o.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "ingest_chunks",
		TaskType:  providers.TaskDocument,
		Inputs:    inputs,
		Dimension: o.dim,
	})
	if err != nil {
		return fmt.Errorf("embed chunks of %s: %w", paperID, err)
	}
	if len(vectors) != len(inputs) {
		return util.Mark(fmt.Errorf("embed chunks of %s: %s returned %d vectors for %d inputs",
			paperID, info.Name, len(vectors), len(inputs)), util.ErrInvalidInput)
	}
	for i, v := range vectors {
		if len(v) != o.dim {
			return util.Mark(fmt.Errorf("embed chunks of %s: %s returned dimension %d, want %d",
				paperID, info.Name, len(v), o.dim), util.ErrInvalidInput)
		}
		dst[i] = v
	}
	return nil
}

func authorsOf(names []string) []models.Author {
	out := make([]models.Author, 0, len(names))
	seen := map[string]struct{}{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id := graph.AuthorID(name)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, models.Author{AuthorID: id, Name: name})
	}
	return out
}

func citationsOf(paperID string, cites []string) []string {
	out := make([]string, 0, len(cites))
	seen := map[string]struct{}{paperID: {}}
	for _, c := range cites {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
