package providers

import (
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms/openai"

	"paperchat/internal/config"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider serves chat and embeddings through the OpenAI API.
type OpenAIProvider struct {
	*chatModel
	*embedModel
}

func NewOpenAIProvider(keyName string, cfg config.Config) *OpenAIProvider {
	chatInfo := ProviderInfo{Name: "openai", Model: cfg.OpenAIChatModel, Key: keyName}
	embedInfo := ProviderInfo{Name: "openai", Model: cfg.OpenAIEmbedModel, Key: keyName}

	apiKey := resolveKey("OPENAI", keyName)
	if apiKey == "" {
		err := fmt.Errorf("openai key missing for alias %q", keyName)
		return &OpenAIProvider{
			chatModel:  &chatModel{info: chatInfo, err: err},
			embedModel: &embedModel{info: embedInfo, err: err},
		}
	}
	client, err := openai.New(
		openai.WithBaseURL(openAIBaseURL),
		openai.WithToken(apiKey),
		openai.WithModel(cfg.OpenAIChatModel),
		openai.WithEmbeddingModel(cfg.OpenAIEmbedModel),
	)
	if err != nil {
		err = fmt.Errorf("openai client: %w", err)
		return &OpenAIProvider{
			chatModel:  &chatModel{info: chatInfo, err: err},
			embedModel: &embedModel{info: embedInfo, err: err},
		}
	}
	return &OpenAIProvider{
		chatModel:  &chatModel{info: chatInfo, llm: client},
		embedModel: newEmbedModel(embedInfo, client),
	}
}

// resolveKey looks up PAPERCHAT_<VENDOR>_KEY_<ALIAS> first, then <VENDOR>_API_KEY.
func resolveKey(vendor, alias string) string {
	if alias != "" {
		if v := os.Getenv("PAPERCHAT_" + vendor + "_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(vendor + "_API_KEY")
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
