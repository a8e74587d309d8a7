package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"paperchat/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager fronts the configured providers. Generation fails over across LLM providers in
// preferred order; embeddings always come from the first preferred embedding provider since
// vectors from different models do not share a space.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	logger         *slog.Logger
}

func NewManager(cfg config.Config, logger *slog.Logger) (*Manager, error) {
	var llmsOut []NamedLLMProvider
	var embedsOut []NamedEmbedProvider
	refs, err := ParseProviderList(cfg.LLMProviders)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		llmsOut = append(llmsOut, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	refs, err = ParseProviderList(cfg.EmbedProviders)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		embedsOut = append(embedsOut, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	return NewManagerWith(llmsOut, embedsOut, cfg.EmbedDim, logger), nil
}

// NewManagerWith builds a Manager from already constructed providers. Empty lists fall back
// to the mock provider.
func NewManagerWith(llmList []NamedLLMProvider, embedList []NamedEmbedProvider, dim int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{llmProviders: llmList, embedProviders: embedList, logger: logger.With("component", "providers")}
	if len(m.embedProviders) == 0 {
		m.embedProviders = []NamedEmbedProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(dim)}}
	}
	if len(m.llmProviders) == 0 {
		m.llmProviders = []NamedLLMProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(dim)}}
	}
	return m
}

func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	p := m.embedProviders[m.PreferredEmbedOrder()[0]]
	out, info, err := p.Provider.Embed(ctx, req)
	if err != nil {
		m.logger.Warn("embedding failed", "provider", p.Ref.Raw, "operation", req.Operation, "inputs", len(req.Inputs), "err", err)
		return nil, info, Wrap(err)
	}
	return out, info, nil
}

func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var errs []error
	var info ProviderInfo
	for _, i := range m.PreferredLLMOrder() {
		p := m.llmProviders[i]
		resp, pi, err := p.Provider.Generate(ctx, req)
		info = pi
		if err == nil {
			return resp, pi, nil
		}
		errs = append(errs, err)
		m.logger.Warn("generation failed", "provider", p.Ref.Raw, "operation", req.Operation, "err", err)
		if !shouldFailover(err) {
			return GenerateResponse{}, pi, Wrap(err)
		}
	}
	return GenerateResponse{}, info, Wrap(errors.Join(errs...))
}

// GenerateStream streams from the first provider that succeeds. A provider without native
// streaming delivers its whole answer as one fragment. Once any fragment has been delivered
// there is no failover, so the consumer never sees text from two providers.
func (m *Manager) GenerateStream(ctx context.Context, req GenerateRequest, fn StreamFunc) (ProviderInfo, error) {
	var errs []error
	var info ProviderInfo
	for _, i := range m.PreferredLLMOrder() {
		p := m.llmProviders[i]
		emitted := false
		track := func(ctx context.Context, fragment string) error {
			emitted = true
			return fn(ctx, fragment)
		}

		var err error
		if sp, ok := p.Provider.(StreamingLLMProvider); ok {
			info, err = sp.GenerateStream(ctx, req, track)
		} else {
			var resp GenerateResponse
			resp, info, err = p.Provider.Generate(ctx, req)
			if err == nil && resp.Text != "" {
				err = track(ctx, resp.Text)
			}
		}
		if err == nil {
			return info, nil
		}
		errs = append(errs, err)
		m.logger.Warn("stream failed", "provider", p.Ref.Raw, "operation", req.Operation, "emitted", emitted, "err", err)
		if emitted || !shouldFailover(err) {
			return info, Wrap(err)
		}
	}
	return info, Wrap(errors.Join(errs...))
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

func (m *Manager) EmbedCount() int {
	return len(m.embedProviders)
}

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return strings.ToLower(m.llmProviders[i].Ref.Name) })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, cfg config.Config) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.EmbedDim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, cfg), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias, cfg), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
