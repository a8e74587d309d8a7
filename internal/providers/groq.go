package providers

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"

	"paperchat/internal/config"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider supports LLM generation via Groq's OpenAI-compatible API.
type GroqProvider struct {
	*chatModel
}

func NewGroqProvider(keyName string, cfg config.Config) *GroqProvider {
	info := ProviderInfo{Name: "groq", Model: cfg.GroqChatModel, Key: keyName}
	apiKey := resolveKey("GROQ", keyName)
	if apiKey == "" {
		return &GroqProvider{&chatModel{info: info, err: fmt.Errorf("groq key missing for alias %q", keyName)}}
	}
	client, err := openai.New(
		openai.WithBaseURL(groqBaseURL),
		openai.WithToken(apiKey),
		openai.WithModel(cfg.GroqChatModel),
	)
	if err != nil {
		return &GroqProvider{&chatModel{info: info, err: fmt.Errorf("groq client: %w", err)}}
	}
	return &GroqProvider{&chatModel{info: info, llm: client}}
}
