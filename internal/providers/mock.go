package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"paperchat/internal/util"
)

// MockProvider is a deterministic offline provider for tests and local runs.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 768
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

var (
	citationMarker = regexp.MustCompile(`\[C(\d+)\]`)
	queryLine      = regexp.MustCompile(`(?m)^User Query: (.*)$`)
)

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if req.JSON {
		return GenerateResponse{Text: mockIntent(req.Prompt)}, info, nil
	}

	var b strings.Builder
	b.WriteString("Deterministic answer drawn from the retrieved evidence.")
	seen := map[string]struct{}{}
	for _, match := range citationMarker.FindAllStringSubmatch(req.Prompt, -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		b.WriteString(" [C")
		b.WriteString(match[1])
		b.WriteString("]")
	}
	if len(seen) == 0 {
		b.WriteString(" No passages were available for this question.")
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

// GenerateStream emits the Generate text word by word.
func (m *MockProvider) GenerateStream(ctx context.Context, req GenerateRequest, fn StreamFunc) (ProviderInfo, error) {
	resp, info, err := m.Generate(ctx, req)
	if err != nil {
		return info, err
	}
	for _, part := range strings.SplitAfter(resp.Text, " ") {
		if part == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return info, err
		}
		if err := fn(ctx, part); err != nil {
			return info, err
		}
	}
	return info, nil
}

func mockIntent(prompt string) string {
	question := strings.TrimSpace(prompt)
	if m := queryLine.FindStringSubmatch(prompt); m != nil {
		question = strings.TrimSpace(m[1])
	}
	entities := util.Terms(question)
	if len(entities) > 8 {
		entities = entities[:8]
	}
	b, _ := json.Marshal(map[string]any{
		"intent_type":    "general",
		"entities":       entities,
		"relations":      []string{},
		"semantic_query": question,
	})
	return string(b)
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251), byte(i/251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
