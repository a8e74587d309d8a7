package graph

import (
	"strings"
)

const IntentSystemPrompt = `You are a query optimization agent for a research paper knowledge graph.

Graph Schema:
- Nodes: Paper, Chunk, Author, Method, Concept
- Relationships: HAS_CHUNK, AUTHORED_BY, CITES, USES, MENTIONS

Output STRICT JSON with this schema:
{
  "intent_type": "definition|comparison|methodology|citation|general",
  "entities": ["key paper titles, authors, methods or concepts named in the question"],
  "relations": ["relationship names worth exploring"],
  "semantic_query": "a self-contained search query for the question"
}

Rules:
- Resolve pronouns such as "it" or "they" using the conversation so far.
- Keep entities short and verbatim-like; at most 8.
- If nothing applies, return {"intent_type":"general","entities":[],"relations":[],"semantic_query":"<question>"}.
`

// Turn is one prior conversation message as seen by the prompt builders.
type Turn struct {
	Role    string
	Content string
}

// BuildIntentPrompt renders the user half of the optimizer prompt. History is expected to be
// already truncated to the turns worth showing.
func BuildIntentPrompt(question, selectedText string, history []Turn) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			b.WriteString(roleLabel(t.Role))
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(t.Content))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("User Query: ")
	b.WriteString(strings.TrimSpace(question))
	if s := strings.TrimSpace(selectedText); s != "" {
		b.WriteString("\nSelected text: ")
		b.WriteString(s)
	}
	return b.String()
}

func roleLabel(role string) string {
	switch strings.ToLower(role) {
	case "assistant":
		return "Assistant"
	default:
		return "User"
	}
}
