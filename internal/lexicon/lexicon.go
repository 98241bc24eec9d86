// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lexicon holds the static lookup tables used by scoring and
// classification: stopwords, domain authority, clickbait phrases, query-type
// patterns and anti-bot page signatures. A Lexicon is built once at startup
// and passed to the components that need it; it is never mutated after
// construction.
package lexicon

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Pattern is a weighted phrase that hints at a query type.
type Pattern struct {
	Type   types.QueryType
	Phrase string
	Weight float64
}

// Lexicon is a read-only bundle of lookup tables.
type Lexicon struct {
	stopwords       map[string]struct{}
	authority       map[string]float64
	clickbait       []string
	blockSignatures []string
	patterns        []Pattern
}

// New builds a Lexicon from explicit tables. Inputs are copied.
func New(stopwords []string, authority map[string]float64, clickbait, blockSignatures []string, patterns []Pattern) *Lexicon {
	l := &Lexicon{
		stopwords: make(map[string]struct{}, len(stopwords)),
		authority: make(map[string]float64, len(authority)),
	}
	for _, w := range stopwords {
		l.stopwords[strings.ToLower(w)] = struct{}{}
	}
	for d, s := range authority {
		l.authority[strings.ToLower(d)] = s
	}
	l.clickbait = lowerAll(clickbait)
	l.blockSignatures = lowerAll(blockSignatures)
	l.patterns = append([]Pattern(nil), patterns...)
	for i := range l.patterns {
		l.patterns[i].Phrase = strings.ToLower(l.patterns[i].Phrase)
	}
	return l
}

// Default returns a Lexicon populated with the built-in tables.
func Default() *Lexicon {
	return New(defaultStopwords, defaultAuthority, defaultClickbait, defaultBlockSignatures, defaultPatterns)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// IsStopword reports whether w (any case) is a stopword.
func (l *Lexicon) IsStopword(w string) bool {
	_, ok := l.stopwords[strings.ToLower(w)]
	return ok
}

// Terms returns the distinct non-stopword tokens of text in first-seen order.
func (l *Lexicon) Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range Tokenize(text) {
		if l.IsStopword(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// Authority returns the reputation score of domain. Parent domains match, so
// "docs.python.org" resolves through "python.org". ok is false when neither
// the domain nor any parent is in the table.
func (l *Lexicon) Authority(domain string) (score float64, ok bool) {
	d := strings.TrimPrefix(strings.ToLower(domain), "www.")
	for d != "" {
		if s, found := l.authority[d]; found {
			return s, true
		}
		idx := strings.IndexByte(d, '.')
		if idx < 0 {
			break
		}
		d = d[idx+1:]
	}
	return 0, false
}

// ClickbaitPhrases returns the clickbait phrase list.
func (l *Lexicon) ClickbaitPhrases() []string {
	return l.clickbait
}

// Patterns returns the query-type patterns in declaration order.
func (l *Lexicon) Patterns() []Pattern {
	return l.patterns
}

// BlockSignature returns the first anti-bot signature found in body, or "".
func (l *Lexicon) BlockSignature(body string) string {
	lower := strings.ToLower(body)
	for _, sig := range l.blockSignatures {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}

// Tokenize splits text into lower-cased tokens of letters and digits.
// Characters such as '+' and '#' are kept inside tokens so "c++" and "c#"
// survive.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#')
	})
}

// NormalizeTitle folds accents, lower-cases and strips punctuation so that
// titles from different providers compare equal.
func NormalizeTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
