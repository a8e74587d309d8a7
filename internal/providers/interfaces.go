package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type TaskType string

const (
	TaskDocument TaskType = "document"
	TaskQuery    TaskType = "query"
)

type GenerateRequest struct {
	Operation string `json:"operation"`
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt"`
	// JSON asks the model for a single JSON object.
	JSON bool `json:"json,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	TaskType  TaskType `json:"task_type"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

// StreamFunc receives generated text fragments in order. Returning an error stops generation.
type StreamFunc func(ctx context.Context, fragment string) error

type StreamingLLMProvider interface {
	LLMProvider
	GenerateStream(ctx context.Context, req GenerateRequest, fn StreamFunc) (ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}
