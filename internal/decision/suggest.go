// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import (
	"strings"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/internal/quality"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// SuggestQuery rewrites q to address the first issue in a that a rewrite
// can help with. It returns "" when no rewrite applies or the rewrite would
// not change the query. lex supplies the stopwords dropped when coverage is
// the problem.
func SuggestQuery(lex *lexicon.Lexicon, q types.Query, a types.QualityAssessment) string {
	text := q.Normalized()
	if text == "" {
		return ""
	}

	for _, is := range a.Issues {
		var out string
		switch {
		case strings.HasPrefix(is, quality.IssueNoResults),
			strings.HasPrefix(is, quality.IssueCoverage),
			strings.HasPrefix(is, quality.IssueNoHighlyRel):
			out = strings.Join(lex.Terms(text), " ")
		case strings.HasPrefix(is, quality.IssueAuthority):
			out = withSuffix(text, "official documentation")
		case strings.HasPrefix(is, quality.IssueDepth):
			out = withSuffix(text, "in depth")
		case strings.HasPrefix(is, quality.IssueDiversity),
			strings.HasPrefix(is, quality.IssueMultiSource):
			if a.QueryType == types.QueryComparative {
				out = withSuffix(text, "comparison")
			} else {
				out = withSuffix(text, "overview")
			}
		default:
			continue
		}
		if out == "" || out == text {
			return ""
		}
		return out
	}
	return ""
}

// withSuffix appends suffix unless text already ends with it.
func withSuffix(text, suffix string) string {
	if strings.HasSuffix(text, suffix) {
		return text
	}
	return text + " " + suffix
}
