package answer

import (
	"context"
	"fmt"
	"log/slog"

	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/util"
)

type Request struct {
	Question     string
	SelectedText string
	History      []models.ChatMessage
	Contexts     []models.RetrievalContext
}

type Response struct {
	Answer  string                    `json:"answer"`
	Sources []models.RetrievalContext `json:"sources"`
}

type EventType string

const (
	EventSources EventType = "sources"
	EventContent EventType = "content"
	EventError   EventType = "error"
	EventDone    EventType = "done"
)

// Event is one item of an answer stream: a single sources event, zero or more content
// fragments, then done. A failure is reported as error followed by done.
type Event struct {
	Type    EventType
	Sources []models.RetrievalContext
	Content string
	Err     error
}

type Generator struct {
	llm             providers.LLMProvider
	maxContextChars int
	historyTurns    int
	logger          *slog.Logger
}

type Option func(*Generator)

func WithMaxContextChars(n int) Option {
	return func(g *Generator) { g.maxContextChars = n }
}

func WithHistoryTurns(n int) Option {
	return func(g *Generator) { g.historyTurns = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGenerator(llm providers.LLMProvider, opts ...Option) *Generator {
	g := &Generator{llm: llm, maxContextChars: 32000, historyTurns: 5, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "answer")
	return g
}

func (g *Generator) request(req Request) (providers.GenerateRequest, []models.RetrievalContext) {
	prompt, sources := BuildPrompt(req, g.maxContextChars, g.historyTurns)
	return providers.GenerateRequest{Operation: "rag_answer", System: systemPrompt, Prompt: prompt}, sources
}

// Answer generates the whole answer before returning.
func (g *Generator) Answer(ctx context.Context, req Request) (Response, error) {
	genReq, sources := g.request(req)
	resp, info, err := g.llm.Generate(ctx, genReq)
	if err != nil {
		return Response{}, g.failure(ctx, err)
	}
	g.logger.Debug("answer generated", "provider", info.Name, "model", info.Model, "sources", len(sources))
	return Response{Answer: resp.Text, Sources: sources}, nil
}

// Stream generates the answer as an ordered event stream. The channel is closed when the
// stream ends. Once ctx is cancelled no further events are sent and generation stops at
// the next fragment.
func (g *Generator) Stream(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		send := func(ev Event) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		genReq, sources := g.request(req)
		if !send(Event{Type: EventSources, Sources: sources}) {
			return
		}
		fragments := 0
		err := g.generateStream(ctx, genReq, func(ctx context.Context, fragment string) error {
			if fragment == "" {
				return nil
			}
			if !send(Event{Type: EventContent, Content: fragment}) {
				return ctx.Err()
			}
			fragments++
			return nil
		})
		if ctx.Err() != nil {
			g.logger.Debug("answer stream cancelled", "fragments", fragments)
			return
		}
		if err != nil {
			if !send(Event{Type: EventError, Err: g.failure(ctx, err)}) {
				return
			}
		}
		send(Event{Type: EventDone})
	}()
	return out
}

func (g *Generator) generateStream(ctx context.Context, req providers.GenerateRequest, fn providers.StreamFunc) error {
	if sp, ok := g.llm.(providers.StreamingLLMProvider); ok {
		_, err := sp.GenerateStream(ctx, req, fn)
		return err
	}
	resp, _, err := g.llm.Generate(ctx, req)
	if err != nil {
		return err
	}
	return fn(ctx, resp.Text)
}

func (g *Generator) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("generate answer: %w", err)
	}
	g.logger.Warn("answer generation failed", "err", err)
	return fmt.Errorf("generate answer: %w", util.Mark(err, util.ErrGenerationFailure))
}
