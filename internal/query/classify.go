package query

import (
	"regexp"
	"strings"

	"paperchat/internal/graph"
)

var (
	reComparison  = regexp.MustCompile(`(?i)\bcompar|\bversus\b|\bvs\.?\s|\bdiffer|\bbetter\s+than\b|\bworse\s+than\b|\btrade-?offs?\b`)
	reCitation    = regexp.MustCompile(`(?i)\bcit(e|es|ed|ing|ation)|\breferences?\b|\brelated\s+work\b|\bprior\s+work\b|\bbuilds?\s+on\b|\bwho\s+(wrote|authored)\b|\bauthors?\b`)
	reMethodology = regexp.MustCompile(`(?i)\bhow\s+(does|do|did|is|are|was|were)\b|\bmethod|\bapproach\b|\barchitecture\b|\balgorithm|\btrain(ed|ing)?\b|\bimplement|\bprocedure\b|\bexperiment`)
	reDefinition  = regexp.MustCompile(`(?i)\bwhat\s+(is|are)\b|\bdefin|\bmeaning\s+of\b|\bstands?\s+for\b|\bexplain\b`)
)

// Classify returns a coarse intent type for a question without calling a model. The more
// specific intents win when several patterns match.
func Classify(q string) string {
	s := strings.TrimSpace(q)
	switch {
	case s == "":
		return graph.IntentGeneral
	case reComparison.MatchString(s):
		return graph.IntentComparison
	case reCitation.MatchString(s):
		return graph.IntentCitation
	case reMethodology.MatchString(s):
		return graph.IntentMethodology
	case reDefinition.MatchString(s):
		return graph.IntentDefinition
	default:
		return graph.IntentGeneral
	}
}
