package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// chatModel adapts a langchaingo llms.Model to LLMProvider and StreamingLLMProvider.
type chatModel struct {
	info ProviderInfo
	llm  llms.Model
	err  error
}

func (c *chatModel) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if c.err != nil {
		return GenerateResponse{}, c.info, c.err
	}
	resp, err := c.llm.GenerateContent(ctx, messages(req), callOptions(req)...)
	if err != nil {
		return GenerateResponse{}, c.info, fmt.Errorf("%s generate: %w", c.info.Name, err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, c.info, fmt.Errorf("%s returned empty choices", c.info.Name)
	}
	return GenerateResponse{Text: resp.Choices[0].Content}, c.info, nil
}

func (c *chatModel) GenerateStream(ctx context.Context, req GenerateRequest, fn StreamFunc) (ProviderInfo, error) {
	if c.err != nil {
		return c.info, c.err
	}
	opts := append(callOptions(req), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return fn(ctx, string(chunk))
	}))
	if _, err := c.llm.GenerateContent(ctx, messages(req), opts...); err != nil {
		return c.info, fmt.Errorf("%s stream: %w", c.info.Name, err)
	}
	return c.info, nil
}

func messages(req GenerateRequest) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		out = append(out, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		})
	}
	out = append(out, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(req.Prompt)},
	})
	return out
}

func callOptions(req GenerateRequest) []llms.CallOption {
	if req.JSON {
		return []llms.CallOption{llms.WithTemperature(0.0), llms.WithJSONMode()}
	}
	return []llms.CallOption{llms.WithTemperature(0.2)}
}

// embedModel adapts a langchaingo embeddings.Embedder to EmbeddingProvider.
type embedModel struct {
	info     ProviderInfo
	embedder embeddings.Embedder
	err      error
}

func newEmbedModel(info ProviderInfo, client embeddings.EmbedderClient) *embedModel {
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return &embedModel{info: info, err: fmt.Errorf("%s embedder: %w", info.Name, err)}
	}
	return &embedModel{info: info, embedder: e}
}

func (e *embedModel) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if e.err != nil {
		return nil, e.info, e.err
	}
	if len(req.Inputs) == 0 {
		return nil, e.info, errors.New("no embedding inputs")
	}
	if req.TaskType == TaskQuery && len(req.Inputs) == 1 {
		v, err := e.embedder.EmbedQuery(ctx, req.Inputs[0])
		if err != nil {
			return nil, e.info, fmt.Errorf("%s embed query: %w", e.info.Name, err)
		}
		return [][]float32{v}, e.info, nil
	}
	out, err := e.embedder.EmbedDocuments(ctx, req.Inputs)
	if err != nil {
		return nil, e.info, fmt.Errorf("%s embed documents: %w", e.info.Name, err)
	}
	if len(out) != len(req.Inputs) {
		return nil, e.info, fmt.Errorf("%s returned %d embeddings for %d inputs", e.info.Name, len(out), len(req.Inputs))
	}
	return out, e.info, nil
}
