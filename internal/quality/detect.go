// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"slices"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DetectQueryType classifies text. Explanatory, comparative and procedural
// phrases decide immediately, in that order. Otherwise technical and factual
// patterns are weighted and the highest total wins; on a tie the type whose
// pattern appears first in the lexicon wins. Text with no matching pattern
// is general.
func DetectQueryType(lex *lexicon.Lexicon, text string) types.QueryType {
	tokens := lexicon.Tokenize(text)
	if len(tokens) == 0 {
		return types.QueryGeneral
	}

	for _, t := range lexicon.ExplicitTypes {
		for _, p := range lex.Patterns() {
			if p.Type == t && containsPhrase(tokens, p.Phrase) {
				return t
			}
		}
	}

	scores := make(map[types.QueryType]float64)
	var order []types.QueryType
	for _, p := range lex.Patterns() {
		if slices.Contains(lexicon.ExplicitTypes, p.Type) || !containsPhrase(tokens, p.Phrase) {
			continue
		}
		if _, seen := scores[p.Type]; !seen {
			order = append(order, p.Type)
		}
		scores[p.Type] += p.Weight
	}

	best, bestScore := types.QueryGeneral, 0.0
	for _, t := range order {
		if scores[t] > bestScore {
			best, bestScore = t, scores[t]
		}
	}
	return best
}

// containsPhrase reports whether the tokens of phrase occur consecutively
// in tokens.
func containsPhrase(tokens []string, phrase string) bool {
	want := lexicon.Tokenize(phrase)
	if len(want) == 0 || len(want) > len(tokens) {
		return false
	}
	for i := 0; i+len(want) <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+len(want)], want) {
			return true
		}
	}
	return false
}
