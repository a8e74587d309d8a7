package graph

import (
	"fmt"
	"strings"
)

type NodeLabel string

const (
	NodePaper   NodeLabel = "Paper"
	NodeChunk   NodeLabel = "Chunk"
	NodeAuthor  NodeLabel = "Author"
	NodeMethod  NodeLabel = "Method"
	NodeConcept NodeLabel = "Concept"
)

type RelationType string

const (
	RelHasChunk   RelationType = "HAS_CHUNK"
	RelAuthoredBy RelationType = "AUTHORED_BY"
	RelCites      RelationType = "CITES"
	RelUses       RelationType = "USES"
	RelMentions   RelationType = "MENTIONS"
)

// Intent types produced by the query optimizer.
const (
	IntentDefinition  = "definition"
	IntentComparison  = "comparison"
	IntentMethodology = "methodology"
	IntentCitation    = "citation"
	IntentGeneral     = "general"
)

// Traversable reports whether rel connects two papers and can be walked by graph expansion.
func Traversable(rel RelationType) bool {
	return rel == RelAuthoredBy || rel == RelCites
}

// ParseEdgeTypes parses a comma separated edge list such as "AUTHORED_BY,CITES".
func ParseEdgeTypes(s string) ([]RelationType, error) {
	var out []RelationType
	seen := map[RelationType]struct{}{}
	for _, part := range strings.Split(s, ",") {
		rel := RelationType(strings.ToUpper(strings.TrimSpace(part)))
		if rel == "" {
			continue
		}
		if !Traversable(rel) {
			return nil, fmt.Errorf("unsupported edge type %q", part)
		}
		if _, ok := seen[rel]; ok {
			continue
		}
		seen[rel] = struct{}{}
		out = append(out, rel)
	}
	return out, nil
}

func IsIntentType(s string) bool {
	switch s {
	case IntentDefinition, IntentComparison, IntentMethodology, IntentCitation, IntentGeneral:
		return true
	default:
		return false
	}
}
