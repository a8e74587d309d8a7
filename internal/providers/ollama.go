package providers

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"

	"paperchat/internal/config"
)

// OllamaProvider supports local, free chat and embeddings via Ollama.
type OllamaProvider struct {
	*chatModel
	*embedModel
}

// NewOllamaProvider builds chat and embedding clients against cfg.OllamaURL. A model name
// given as the alias (e.g. "ollama:nomic-embed-text") overrides the configured embed model.
func NewOllamaProvider(alias string, cfg config.Config) *OllamaProvider {
	embedModelName := resolveOllamaEmbedModel(alias, cfg.OllamaEmbedModel)
	chatInfo := ProviderInfo{Name: "ollama", Model: cfg.OllamaChatModel, Key: alias}
	embedInfo := ProviderInfo{Name: "ollama", Model: embedModelName, Key: alias}
	p := &OllamaProvider{}

	chat, err := ollama.New(ollama.WithServerURL(cfg.OllamaURL), ollama.WithModel(cfg.OllamaChatModel))
	if err != nil {
		p.chatModel = &chatModel{info: chatInfo, err: fmt.Errorf("ollama chat client: %w", err)}
	} else {
		p.chatModel = &chatModel{info: chatInfo, llm: chat}
	}

	emb, err := ollama.New(ollama.WithServerURL(cfg.OllamaURL), ollama.WithModel(embedModelName))
	if err != nil {
		p.embedModel = &embedModel{info: embedInfo, err: fmt.Errorf("ollama embed client: %w", err)}
	} else {
		p.embedModel = newEmbedModel(embedInfo, emb)
	}
	return p
}

func resolveOllamaEmbedModel(alias, fallback string) string {
	alias = strings.TrimSpace(alias)
	switch strings.ToLower(alias) {
	case "":
	case "nomic":
		return "nomic-embed-text"
	case "bge":
		return "bge-small-en-v1.5"
	default:
		if strings.ContainsAny(alias, "-/.") {
			return alias
		}
	}
	if fallback != "" {
		return fallback
	}
	return "nomic-embed-text"
}
