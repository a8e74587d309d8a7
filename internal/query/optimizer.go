package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"paperchat/internal/graph"
	"paperchat/internal/models"
	"paperchat/internal/providers"
)

const maxEntities = 8

type Outcome string

const (
	Optimized Outcome = "optimized"
	Fallback  Outcome = "fallback"
)

type Request struct {
	Question     string
	SelectedText string
	History      []models.ChatMessage
	PaperScope   string
}

// Result always carries a usable intent. On the Fallback branch Reason says why the model
// output could not be used.
type Result struct {
	Intent  models.GraphIntent
	Outcome Outcome
	Reason  string
}

func (r Result) Degraded() bool { return r.Outcome == Fallback }

// Optimizer rewrites a question into a GraphIntent with the help of a generation model.
type Optimizer struct {
	llm          providers.LLMProvider
	historyTurns int
	timeout      time.Duration
	logger       *slog.Logger
}

type Option func(*Optimizer)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHistoryTurns sets how many trailing history messages the prompt includes. Default 5.
func WithHistoryTurns(n int) Option {
	return func(o *Optimizer) {
		if n >= 0 {
			o.historyTurns = n
		}
	}
}

// WithTimeout bounds the model call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Optimizer) { o.timeout = d }
}

func NewOptimizer(llm providers.LLMProvider, opts ...Option) *Optimizer {
	o := &Optimizer{llm: llm, historyTurns: 5, timeout: 30 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "query-optimizer")
	return o
}

// Optimize never fails: any problem with the model call or its output yields the Fallback
// branch with the question as the semantic query.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (res Result) {
	question := strings.TrimSpace(req.Question)
	defer func() {
		if r := recover(); r != nil {
			res = o.fallback(req, fmt.Sprintf("panic: %v", r))
		}
	}()
	if question == "" {
		return o.fallback(req, "empty question")
	}
	if o.llm == nil {
		return o.fallback(req, "no generation provider")
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	resp, info, err := o.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "optimize_query",
		System:    graph.IntentSystemPrompt,
		Prompt:    graph.BuildIntentPrompt(question, req.SelectedText, o.turns(req.History)),
		JSON:      true,
	})
	if err != nil {
		return o.fallback(req, "generation: "+err.Error())
	}
	payload, err := graph.ParseIntentJSON(resp.Text)
	if err != nil {
		if errors.Is(err, graph.ErrEmptyIntent) {
			return o.fallback(req, "empty model output")
		}
		return o.fallback(req, "parse: "+err.Error())
	}

	intent := models.GraphIntent{
		IntentType:    payload.IntentType,
		SemanticQuery: payload.SemanticQuery,
		Entities:      payload.Entities,
		Relations:     payload.Relations,
		PaperScope:    req.PaperScope,
	}
	if intent.SemanticQuery == "" {
		intent.SemanticQuery = question
	}
	if len(intent.Entities) > maxEntities {
		intent.Entities = intent.Entities[:maxEntities]
	}
	o.logger.Debug("query optimized",
		"provider", info.Name,
		"intent_type", intent.IntentType,
		"entities", len(intent.Entities),
	)
	return Result{Intent: intent, Outcome: Optimized}
}

func (o *Optimizer) turns(history []models.ChatMessage) []graph.Turn {
	if len(history) > o.historyTurns {
		history = history[len(history)-o.historyTurns:]
	}
	out := make([]graph.Turn, 0, len(history))
	for _, m := range history {
		out = append(out, graph.Turn{Role: m.Role, Content: m.Content})
	}
	return out
}

func (o *Optimizer) fallback(req Request, reason string) Result {
	o.logger.Warn("query optimizer fell back", "reason", reason)
	question := strings.TrimSpace(req.Question)
	return Result{
		Intent: models.GraphIntent{
			IntentType:    Classify(question),
			SemanticQuery: question,
			Entities:      []string{},
			PaperScope:    req.PaperScope,
		},
		Outcome: Fallback,
		Reason:  reason,
	}
}
