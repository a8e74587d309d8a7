package providers

import (
	"fmt"
	"strings"
)

// ProviderRef names one configured provider, optionally with a key alias:
// "openai:team-a" uses the PAPERCHAT_OPENAI_KEY_TEAM_A key.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

var knownProviders = map[string]bool{"mock": true, "openai": true, "groq": true, "ollama": true}

// ParseProviderList reads a "|" or "," separated provider list in preference order.
// Duplicates are dropped and an empty list means the mock provider.
func ParseProviderList(raw string) ([]ProviderRef, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' })
	out := make([]ProviderRef, 0, len(fields))
	seen := map[string]bool{}
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		name, alias, _ := strings.Cut(f, ":")
		ref := ProviderRef{
			Raw:      f,
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		}
		if !knownProviders[ref.Name] {
			return nil, fmt.Errorf("unknown provider %q", ref.Raw)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out, nil
}
