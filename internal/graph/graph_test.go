package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorIDStableAcrossSpellings(t *testing.T) {
	a := AuthorID("Ashish Vaswani")
	assert.Equal(t, a, AuthorID("  ashish   VASWANI "))
	assert.NotEqual(t, a, AuthorID("Noam Shazeer"))
	assert.Len(t, a, len("author_")+16)
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "1706.03762v7_chunk_2", ChunkID("1706.03762v7", 2))
}

func TestParseEdgeTypes(t *testing.T) {
	got, err := ParseEdgeTypes(" authored_by, CITES ,cites,")
	require.NoError(t, err)
	assert.Equal(t, []RelationType{RelAuthoredBy, RelCites}, got)

	_, err = ParseEdgeTypes("AUTHORED_BY,MENTIONS")
	require.Error(t, err)
}

func TestParseIntentJSON(t *testing.T) {
	raw := "```json\n{\"intent_type\": \"Methodology\", \"entities\": [\"Swin Transformer\", \"swin transformer \", \"\"], \"relations\": [\"uses\"], \"semantic_query\": \" backbone used \",}\n```"
	p, err := ParseIntentJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, IntentMethodology, p.IntentType)
	assert.Equal(t, []string{"Swin Transformer"}, p.Entities)
	assert.Equal(t, []string{"USES"}, p.Relations)
	assert.Equal(t, "backbone used", p.SemanticQuery)
}

func TestParseIntentJSONRejectsGarbage(t *testing.T) {
	_, err := ParseIntentJSON("")
	require.ErrorIs(t, err, ErrEmptyIntent)

	_, err = ParseIntentJSON("sorry, I cannot help with that")
	require.Error(t, err)
}

func TestParseIntentJSONUnknownIntentIsGeneral(t *testing.T) {
	p, err := ParseIntentJSON(`Here you go: {"intent_type":"vibes","semantic_query":"q"}`)
	require.NoError(t, err)
	assert.Equal(t, IntentGeneral, p.IntentType)
	assert.Empty(t, p.Entities)
}

func TestBuildIntentPrompt(t *testing.T) {
	p := BuildIntentPrompt("What does it improve?", "window attention", []Turn{
		{Role: "user", Content: "Tell me about Swin"},
		{Role: "assistant", Content: "Swin is a hierarchical transformer."},
	})
	assert.Contains(t, p, "User: Tell me about Swin\nAssistant: Swin is a hierarchical transformer.")
	assert.Contains(t, p, "User Query: What does it improve?\nSelected text: window attention")
}
