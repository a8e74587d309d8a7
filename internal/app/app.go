// Package app wires configuration into the stores, providers and services shared by the
// api, worker and paperctl commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"paperchat/internal/answer"
	"paperchat/internal/chat"
	"paperchat/internal/config"
	"paperchat/internal/discovery"
	"paperchat/internal/ingest"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/query"
	"paperchat/internal/retrieval"
	"paperchat/internal/storage"
	"paperchat/internal/storage/kv"
	"paperchat/internal/util"
)

// GraphStore is the full store contract; storage.Store and kv.Store both satisfy it.
type GraphStore interface {
	ingest.GraphWriter
	retrieval.Store
	GetPaper(ctx context.Context, paperID string) (models.PaperDetail, error)
	ChunksByPaper(ctx context.Context, paperID string) ([]models.Chunk, error)
	Overview(ctx context.Context) (models.Overview, error)
}

var (
	_ GraphStore = (*storage.Store)(nil)
	_ GraphStore = (*kv.Store)(nil)
)

func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// NewLogger returns a text logger at level and installs it as the slog default.
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	if err != nil {
		logger.Warn("falling back to info logging", "err", err)
	}
	slog.SetDefault(logger)
	return logger
}

// OpenStore opens the configured graph store. The returned close func releases it.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (GraphStore, func(), error) {
	switch cfg.Store {
	case "badger":
		s, err := kv.Open(cfg.BadgerPath, false, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("close badger store", "err", err)
			}
		}, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx, cfg.EmbedDim); err != nil {
			db.Close()
			return nil, nil, err
		}
		return storage.NewStore(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}

// PaperSource is a discovery backend that can both resolve and search papers.
type PaperSource interface {
	discovery.Resolver
	discovery.Searcher
}

func NewPaperSource(cfg config.Config, logger *slog.Logger) (PaperSource, error) {
	switch cfg.PaperSource {
	case "arxiv":
		return discovery.NewArxiv(cfg.ArxivBaseURL, cfg.PDFStoragePath, discovery.WithLogger(logger)), nil
	case "dir":
		return discovery.NewDir(cfg.PaperDir), nil
	default:
		return nil, fmt.Errorf("unsupported paper source %q", cfg.PaperSource)
	}
}

// Services is the assembled pipeline.
type Services struct {
	Config    config.Config
	Store     GraphStore
	Source    PaperSource
	Providers *providers.Manager
	Ingest    *ingest.Orchestrator
	Chat      *chat.Service

	closeStore func()
}

// Build assembles every service from cfg against the given store.
func Build(cfg config.Config, store GraphStore, source PaperSource, pm *providers.Manager, logger *slog.Logger) (*Services, error) {
	chunker, err := util.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	orch, err := ingest.New(source, pm, store, chunker,
		ingest.WithLogger(logger),
		ingest.WithBatchSize(cfg.EmbedBatchSize),
		ingest.WithConcurrency(cfg.EmbedConcurrency),
		ingest.WithDimension(cfg.EmbedDim),
	)
	if err != nil {
		return nil, fmt.Errorf("build ingest orchestrator: %w", err)
	}
	optimizer := query.NewOptimizer(pm, query.WithLogger(logger), query.WithHistoryTurns(cfg.HistoryTurns))
	retriever := retrieval.New(pm, store,
		retrieval.WithPolicy(retrieval.PolicyFromConfig(cfg)),
		retrieval.WithDimension(cfg.EmbedDim),
		retrieval.WithLogger(logger),
	)
	generator := answer.NewGenerator(pm,
		answer.WithMaxContextChars(cfg.MaxContextChars),
		answer.WithHistoryTurns(cfg.HistoryTurns),
		answer.WithLogger(logger),
	)
	return &Services{
		Config:    cfg,
		Store:     store,
		Source:    source,
		Providers: pm,
		Ingest:    orch,
		Chat:      chat.NewService(optimizer, retriever, generator, chat.WithTopK(cfg.TopK), chat.WithLogger(logger)),
	}, nil
}

// Open opens the configured store, paper source and providers and builds the services on
// top of them.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	pm, err := providers.NewManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}
	source, err := NewPaperSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	svc, err := Build(cfg, store, source, pm, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	svc.closeStore = closeStore
	return svc, nil
}

func (s *Services) Close() {
	if s.Ingest != nil {
		s.Ingest.Close()
	}
	if s.closeStore != nil {
		s.closeStore()
	}
}
