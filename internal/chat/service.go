package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"paperchat/internal/answer"
	"paperchat/internal/models"
	"paperchat/internal/query"
	"paperchat/internal/util"
)

type Retriever interface {
	Retrieve(ctx context.Context, intent models.GraphIntent, topK int) ([]models.RetrievalContext, error)
}

type Request struct {
	PaperID      string               `json:"paper_id"`
	Query        string               `json:"query"`
	SelectedText string               `json:"selected_text,omitempty"`
	History      []models.ChatMessage `json:"chat_history,omitempty"`
	TopK         int                  `json:"top_k,omitempty"`
}

type Response struct {
	Response string                    `json:"response"`
	Sources  []models.RetrievalContext `json:"sources"`
	PaperID  string                    `json:"paper_id"`
	Intent   models.GraphIntent        `json:"intent"`
	// Degraded is set when the question could not be optimized and was used verbatim.
	Degraded bool `json:"degraded"`
}

// Service answers one question about one paper: optimize, retrieve, generate.
type Service struct {
	optimizer *query.Optimizer
	retriever Retriever
	generator *answer.Generator
	topK      int
	logger    *slog.Logger
}

// MaxTopK is the largest top_k a request may ask for.
const MaxTopK = 100

type Option func(*Service)

// WithTopK sets the number of contexts retrieved when a request does not ask for one.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = min(k, MaxTopK)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(optimizer *query.Optimizer, retriever Retriever, generator *answer.Generator, opts ...Option) *Service {
	s := &Service{optimizer: optimizer, retriever: retriever, generator: generator, topK: 10, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	return s
}

type prepared struct {
	result query.Result
	answer answer.Request
}

func (s *Service) prepare(ctx context.Context, req Request) (prepared, error) {
	req.PaperID = strings.TrimSpace(req.PaperID)
	req.Query = strings.TrimSpace(req.Query)
	if req.PaperID == "" || req.Query == "" {
		return prepared{}, util.Mark(errors.New("paper_id and query are required"), util.ErrInvalidInput)
	}
	topK := req.TopK
	switch {
	case topK > MaxTopK:
		return prepared{}, util.Mark(fmt.Errorf("top_k must be at most %d, got %d", MaxTopK, topK), util.ErrInvalidInput)
	case topK <= 0:
		topK = s.topK
	}

	res := s.optimizer.Optimize(ctx, query.Request{
		Question:     req.Query,
		SelectedText: req.SelectedText,
		History:      req.History,
		PaperScope:   req.PaperID,
	})
	contexts, err := s.retriever.Retrieve(ctx, res.Intent, topK)
	if err != nil {
		return prepared{}, fmt.Errorf("retrieve contexts: %w", err)
	}
	s.logger.Info("question prepared",
		"paper_id", req.PaperID,
		"outcome", res.Outcome,
		"intent_type", res.Intent.IntentType,
		"contexts", len(contexts),
	)
	return prepared{
		result: res,
		answer: answer.Request{
			Question:     req.Query,
			SelectedText: req.SelectedText,
			History:      req.History,
			Contexts:     contexts,
		},
	}, nil
}

func (s *Service) Ask(ctx context.Context, req Request) (Response, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return Response{}, err
	}
	resp, err := s.generator.Answer(ctx, p.answer)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Response: resp.Answer,
		Sources:  resp.Sources,
		PaperID:  p.result.Intent.PaperScope,
		Intent:   p.result.Intent,
		Degraded: p.result.Degraded(),
	}, nil
}

// AskStream returns the answer as an event stream. Validation and retrieval errors are
// returned before any event is produced.
func (s *Service) AskStream(ctx context.Context, req Request) (<-chan answer.Event, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.generator.Stream(ctx, p.answer), nil
}
