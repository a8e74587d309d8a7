package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/graph"
	"paperchat/internal/models"
	"paperchat/internal/providers"
)

type llmFunc func(ctx context.Context, req providers.GenerateRequest) (string, error)

func (f llmFunc) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	text, err := f(ctx, req)
	return providers.GenerateResponse{Text: text}, providers.ProviderInfo{Name: "stub"}, err
}

func reply(text string) llmFunc {
	return func(context.Context, providers.GenerateRequest) (string, error) { return text, nil }
}

func TestClassify(t *testing.T) {
	cases := []struct {
		q    string
		want string
	}{
		{"What is the difference between Swin and ViT?", graph.IntentComparison},
		{"Compare BERT versus GPT", graph.IntentComparison},
		{"Which papers cite this work?", graph.IntentCitation},
		{"Who wrote the paper?", graph.IntentCitation},
		{"How does the encoder work?", graph.IntentMethodology},
		{"What training data was used", graph.IntentMethodology},
		{"What is self-attention?", graph.IntentDefinition},
		{"Summarise the results", graph.IntentGeneral},
		{"   ", graph.IntentGeneral},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.q), c.q)
	}
}

func TestOptimizeParsesModelOutput(t *testing.T) {
	var seen providers.GenerateRequest
	llm := llmFunc(func(_ context.Context, req providers.GenerateRequest) (string, error) {
		seen = req
		return "```json\n{\"intent_type\":\"Comparison\",\"entities\":[\"Swin Transformer\",\"swin transformer\",\" ViT \"],\"relations\":[\"uses\"],\"semantic_query\":\"Swin vs ViT\",}\n```", nil
	})
	res := NewOptimizer(llm).Optimize(context.Background(), Request{Question: "How is it different from ViT?", PaperScope: "2103.14030"})

	require.Equal(t, Optimized, res.Outcome)
	assert.False(t, res.Degraded())
	assert.Equal(t, models.GraphIntent{
		IntentType:    graph.IntentComparison,
		SemanticQuery: "Swin vs ViT",
		Entities:      []string{"Swin Transformer", "ViT"},
		Relations:     []string{"USES"},
		PaperScope:    "2103.14030",
	}, res.Intent)
	assert.True(t, seen.JSON)
	assert.Equal(t, graph.IntentSystemPrompt, seen.System)
}

func TestOptimizeEmptySemanticQueryUsesQuestion(t *testing.T) {
	res := NewOptimizer(reply(`{"intent_type":"definition","entities":["attention"],"semantic_query":"  "}`)).
		Optimize(context.Background(), Request{Question: "What is attention?"})
	require.Equal(t, Optimized, res.Outcome)
	assert.Equal(t, "What is attention?", res.Intent.SemanticQuery)
}

func TestOptimizeCapsEntities(t *testing.T) {
	res := NewOptimizer(reply(`{"entities":["a1","a2","a3","a4","a5","a6","a7","a8","a9","a10"]}`)).
		Optimize(context.Background(), Request{Question: "q"})
	require.Equal(t, Optimized, res.Outcome)
	assert.Len(t, res.Intent.Entities, 8)
	assert.Equal(t, graph.IntentGeneral, res.Intent.IntentType)
}

func TestOptimizeFallbacks(t *testing.T) {
	cases := map[string]providers.LLMProvider{
		"generation error": llmFunc(func(context.Context, providers.GenerateRequest) (string, error) {
			return "", errors.New("upstream 503")
		}),
		"malformed json": reply("intent: comparison"),
		"empty output":   reply("   "),
		"panicking provider": llmFunc(func(context.Context, providers.GenerateRequest) (string, error) {
			panic("boom")
		}),
		"no provider": nil,
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			res := NewOptimizer(llm).Optimize(context.Background(), Request{
				Question:   "Compare Swin and ViT",
				PaperScope: "2103.14030",
			})
			assert.Equal(t, Fallback, res.Outcome)
			assert.True(t, res.Degraded())
			assert.NotEmpty(t, res.Reason)
			assert.Equal(t, "Compare Swin and ViT", res.Intent.SemanticQuery)
			assert.Equal(t, []string{}, res.Intent.Entities)
			assert.Equal(t, graph.IntentComparison, res.Intent.IntentType)
			assert.Equal(t, "2103.14030", res.Intent.PaperScope)
		})
	}
}

func TestOptimizePromptKeepsRecentHistory(t *testing.T) {
	var prompt string
	llm := llmFunc(func(_ context.Context, req providers.GenerateRequest) (string, error) {
		prompt = req.Prompt
		return `{"semantic_query":"x"}`, nil
	})
	history := []models.ChatMessage{
		{Role: "user", Content: "oldest question"},
		{Role: "assistant", Content: "oldest answer"},
		{Role: "user", Content: "What is Swin?"},
		{Role: "assistant", Content: "A hierarchical vision transformer."},
	}
	NewOptimizer(llm, WithHistoryTurns(2)).Optimize(context.Background(), Request{
		Question:     "How does it scale?",
		SelectedText: "shifted windows",
		History:      history,
	})
	assert.NotContains(t, prompt, "oldest")
	assert.Contains(t, prompt, "User: What is Swin?\nAssistant: A hierarchical vision transformer.")
	assert.True(t, strings.Contains(prompt, "User Query: How does it scale?\nSelected text: shifted windows"))
}

func TestOptimizeWithMockProvider(t *testing.T) {
	res := NewOptimizer(providers.NewMockProvider(8)).Optimize(context.Background(), Request{
		Question:   "Does Swin use shifted windows?",
		PaperScope: "P1",
	})
	require.Equal(t, Optimized, res.Outcome)
	assert.Equal(t, []string{"swin", "use", "shifted", "windows"}, res.Intent.Entities)
	assert.Equal(t, "Does Swin use shifted windows?", res.Intent.SemanticQuery)
}
