package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrEmptyIntent = errors.New("empty intent payload")

// IntentPayload is the JSON object the optimizer prompt asks the model for.
type IntentPayload struct {
	IntentType    string   `json:"intent_type"`
	Entities      []string `json:"entities"`
	Relations     []string `json:"relations"`
	SemanticQuery string   `json:"semantic_query"`
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

func ParseIntentJSON(raw string) (IntentPayload, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return IntentPayload{}, ErrEmptyIntent
	}
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		raw = raw[i : j+1]
	}
	var p IntentPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		if err2 := json.Unmarshal([]byte(trailingComma.ReplaceAllString(raw, "$1")), &p); err2 != nil {
			return IntentPayload{}, fmt.Errorf("decode intent: %w", err)
		}
	}
	p.IntentType = strings.ToLower(strings.TrimSpace(p.IntentType))
	if !IsIntentType(p.IntentType) {
		p.IntentType = IntentGeneral
	}
	p.Entities = NormalizeEntities(p.Entities)
	rels := make([]string, 0, len(p.Relations))
	for _, r := range p.Relations {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r != "" {
			rels = append(rels, r)
		}
	}
	p.Relations = rels
	p.SemanticQuery = strings.TrimSpace(p.SemanticQuery)
	return p, nil
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
