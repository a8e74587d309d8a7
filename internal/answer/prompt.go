package answer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"paperchat/internal/models"
)

const systemPrompt = "You answer questions about research papers using ONLY the provided context passages.\n" +
	"Do NOT use outside knowledge. If the passages do not contain enough information, say what is missing.\n\n" +
	"Citation rules:\n" +
	"- Cite passages as [C1], [C2], etc. immediately after the sentence they support.\n" +
	"- Multiple citations may be used together like [C1][C3].\n" +
	"- Do NOT cite anything not present in the provided passages.\n\n" +
	"When selected text is given, it is the part of the paper the user is looking at: address it first.\n" +
	"Use the conversation so far to resolve references such as \"it\" or \"this method\".\n" +
	"Be specific: include definitions, numbers and limitations when the passages state them."

// BuildPrompt renders the user prompt and returns the contexts admitted into it. Contexts are
// admitted in rank order until maxContextChars would be exceeded; the first one is always
// admitted. History is cut to its last historyTurns messages.
func BuildPrompt(req Request, maxContextChars, historyTurns int) (string, []models.RetrievalContext) {
	var b strings.Builder

	if s := strings.TrimSpace(req.SelectedText); s != "" {
		b.WriteString("Selected text (highest priority):\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	admitted := admit(req.Contexts, maxContextChars)
	if len(admitted) > 0 {
		b.WriteString("Context passages:\n")
		for i, c := range admitted {
			fmt.Fprintf(&b, "[C%d] (paper %s, chunk %d)\n%s\n\n", i+1, c.PaperID, c.ChunkIndex, strings.TrimSpace(c.Text))
		}
	} else {
		b.WriteString("Context passages: none were retrieved.\n\n")
	}

	history := req.History
	if historyTurns >= 0 && len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			role := "User"
			if strings.EqualFold(m.Role, "assistant") {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(m.Content))
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(req.Question))
	return b.String(), admitted
}

func admit(contexts []models.RetrievalContext, maxChars int) []models.RetrievalContext {
	out := make([]models.RetrievalContext, 0, len(contexts))
	used := 0
	for _, c := range contexts {
		n := utf8.RuneCountInString(c.Text)
		if len(out) > 0 && maxChars > 0 && used+n > maxChars {
			break
		}
		used += n
		out = append(out, c)
	}
	return out
}
