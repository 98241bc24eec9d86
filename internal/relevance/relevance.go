// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relevance scores individual search results against a query. The
// score combines semantic similarity, keyword density, content quality,
// source authority, a position bonus and a spam penalty into one overall
// value in [0,1]. Scoring is deterministic: identical inputs always yield
// identical scores.
package relevance

import (
	"net"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xrash/smetrics"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Overall score weights.
const (
	WeightSemantic  = 0.35
	WeightKeyword   = 0.25
	WeightQuality   = 0.20
	WeightAuthority = 0.10
	WeightPosition  = 0.05
	WeightSpam      = 0.05
)

// Field weights for semantic similarity and keyword density.
const (
	semanticTitle   = 0.5
	semanticSnippet = 0.3
	semanticContent = 0.2

	keywordTitle   = 1.0
	keywordSnippet = 0.7
	keywordContent = 0.4
)

const (
	// Jaro-Winkler similarities below this floor count as no match.
	similarityFloor = 0.75

	// Only the first tokens of full page content are compared.
	maxContentTokens = 400

	defaultAuthority   = 0.5
	preferredAuthority = 0.9
)

// Factor names used in RelevanceScore.Factors.
const (
	FactorSemantic  = "semantic"
	FactorKeyword   = "keyword"
	FactorQuality   = "quality"
	FactorAuthority = "authority"
	FactorPosition  = "position"
	FactorSpam      = "spam_penalty"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLexicon replaces the built-in lookup tables.
func WithLexicon(lex *lexicon.Lexicon) Option {
	return func(a *Analyzer) { a.lex = lex }
}

// Analyzer scores results. It holds no mutable state and is safe for
// concurrent use.
type Analyzer struct {
	lex       *lexicon.Lexicon
	preferred []string
	blocked   []string
}

// New creates an Analyzer. Preferred domains get an authority floor of 0.9;
// blocked domains get authority 0.
func New(cfg types.RelevanceConfig, opts ...Option) *Analyzer {
	a := &Analyzer{
		lex:       lexicon.Default(),
		preferred: normalizeDomains(cfg.PreferredDomains),
		blocked:   normalizeDomains(cfg.BlockedDomains),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func normalizeDomains(in []string) []string {
	var out []string
	for _, d := range in {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Score computes the relevance of r to q.
func (a *Analyzer) Score(q types.Query, r types.Result) types.RelevanceScore {
	terms := a.queryTerms(q.Text)
	f := newFields(r)

	semantic := a.semantic(terms, f)
	keyword := keywordDensity(terms, f)
	quality := contentQuality(r)
	authority := a.authority(r.URL)
	position := positionBonus(terms, f)
	spam := a.spamPenalty(r)

	overall := WeightSemantic*semantic +
		WeightKeyword*keyword +
		WeightQuality*quality +
		WeightAuthority*authority +
		WeightPosition*position -
		WeightSpam*spam

	return types.RelevanceScore{
		Semantic:  semantic,
		Keyword:   keyword,
		Quality:   quality,
		Authority: authority,
		Overall:   clamp01(overall),
		Factors: map[string]float64{
			FactorSemantic:  semantic,
			FactorKeyword:   keyword,
			FactorQuality:   quality,
			FactorAuthority: authority,
			FactorPosition:  position,
			FactorSpam:      spam,
		},
	}
}

// ScoreAll returns a copy of results with scores attached, ordered by
// overall score descending. Equal scores keep their input order.
func (a *Analyzer) ScoreAll(q types.Query, results []types.Result) []types.Result {
	out := make([]types.Result, len(results))
	for i, r := range results {
		s := a.Score(q, r)
		r.Relevance = &s
		out[i] = r
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance.Overall > out[j].Relevance.Overall
	})
	return out
}

// queryTerms returns the non-stopword terms of text, or every token when
// the query consists of stopwords only.
func (a *Analyzer) queryTerms(text string) []string {
	if terms := a.lex.Terms(text); len(terms) > 0 {
		return terms
	}
	return lexicon.Tokenize(text)
}

// fields holds the tokenized text of one result.
type fields struct {
	title, snippet, content []string
	titleSet                map[string]bool
	snippetSet              map[string]bool
	contentSet              map[string]bool
}

func newFields(r types.Result) fields {
	content := lexicon.Tokenize(r.Content)
	if len(content) > maxContentTokens {
		content = content[:maxContentTokens]
	}
	f := fields{
		title:   lexicon.Tokenize(r.Title),
		snippet: lexicon.Tokenize(r.Snippet),
		content: content,
	}
	f.titleSet = toSet(f.title)
	f.snippetSet = toSet(f.snippet)
	f.contentSet = toSet(f.content)
	return f
}

func toSet(tokens []string) map[string]bool {
	s := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		s[t] = true
	}
	return s
}

// semantic is the weighted string similarity of the query terms to the
// title, snippet and content. Weights of empty fields are redistributed.
func (a *Analyzer) semantic(terms []string, f fields) float64 {
	if len(terms) == 0 {
		return 0
	}
	type part struct {
		tokens []string
		weight float64
	}
	parts := []part{
		{f.title, semanticTitle},
		{f.snippet, semanticSnippet},
		{f.content, semanticContent},
	}
	var sum, weights float64
	for _, p := range parts {
		if len(p.tokens) == 0 {
			continue
		}
		sum += p.weight * fieldSimilarity(terms, p.tokens)
		weights += p.weight
	}
	if weights == 0 {
		return 0
	}
	return clamp01(sum / weights)
}

// fieldSimilarity averages, over query terms, the best Jaro-Winkler match
// among the field's tokens.
func fieldSimilarity(terms, tokens []string) float64 {
	var total float64
	for _, term := range terms {
		best := 0.0
		for _, tok := range tokens {
			if tok == term {
				best = 1
				break
			}
			if s := smetrics.JaroWinkler(term, tok, 0.7, 4); s > best {
				best = s
			}
		}
		if best >= similarityFloor {
			total += best
		}
	}
	return total / float64(len(terms))
}

// keywordDensity credits each query term by the best field it appears in.
func keywordDensity(terms []string, f fields) float64 {
	if len(terms) == 0 {
		return 0
	}
	var total float64
	for _, t := range terms {
		switch {
		case f.titleSet[t]:
			total += keywordTitle
		case f.snippetSet[t]:
			total += keywordSnippet
		case f.contentSet[t]:
			total += keywordContent
		}
	}
	return clamp01(total / float64(len(terms)))
}

// contentQuality rewards descriptive titles, substantial snippets and
// full content with sentence structure.
func contentQuality(r types.Result) float64 {
	score := 0.2

	if n := utf8.RuneCountInString(strings.TrimSpace(r.Title)); n >= 15 && n <= 120 {
		score += 0.15
	}

	switch n := utf8.RuneCountInString(strings.TrimSpace(r.Snippet)); {
	case n >= 150:
		score += 0.3
	case n >= 60:
		score += 0.2
	case n >= 20:
		score += 0.1
	}
	if strings.Count(r.Snippet, ". ") >= 1 {
		score += 0.1
	}

	switch n := utf8.RuneCountInString(r.Content); {
	case n >= 2000:
		score += 0.25
	case n >= 500:
		score += 0.15
	}
	return clamp01(score)
}

// authority scores the source domain of rawURL.
func (a *Analyzer) authority(rawURL string) float64 {
	domain := types.DomainOf(rawURL)
	if domain == "" {
		return 0
	}
	if matchesAny(domain, a.blocked) {
		return 0
	}

	score, known := a.lex.Authority(domain)
	if !known {
		score = defaultAuthority
		switch {
		case strings.HasSuffix(domain, ".gov"), strings.HasSuffix(domain, ".edu"):
			score = 0.8
		case strings.HasSuffix(domain, ".org"):
			score = 0.6
		}
		score -= hostPenalty(domain)
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rawURL)), "https://") {
		score += 0.05
	}
	if matchesAny(domain, a.preferred) {
		score = max(score, preferredAuthority)
	}
	return clamp01(score)
}

// hostPenalty penalizes host shapes typical of throwaway sites.
func hostPenalty(domain string) float64 {
	var p float64
	if net.ParseIP(domain) != nil {
		p += 0.2
	}
	if strings.Count(domain, "-") >= 3 {
		p += 0.1
	}
	if len(domain) > 40 {
		p += 0.1
	}
	if strings.Count(domain, ".") > 3 {
		p += 0.1
	}
	return p
}

// matchesAny reports whether domain equals or is a subdomain of any entry.
func matchesAny(domain string, list []string) bool {
	for _, d := range list {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// positionBonus is 1 when a query term opens the title, 0.5 when one opens
// the snippet, and 0 otherwise.
func positionBonus(terms []string, f fields) float64 {
	if len(terms) == 0 {
		return 0
	}
	has := func(tok string) bool {
		for _, t := range terms {
			if t == tok {
				return true
			}
		}
		return false
	}
	if len(f.title) > 0 && has(f.title[0]) {
		return 1
	}
	if len(f.snippet) > 0 && has(f.snippet[0]) {
		return 0.5
	}
	return 0
}

// spamPenalty is in [0,1]; higher means more spam-like.
func (a *Analyzer) spamPenalty(r types.Result) float64 {
	text := strings.ToLower(r.Title + " " + r.Snippet)
	var p float64
	for _, phrase := range a.lex.ClickbaitPhrases() {
		if strings.Contains(text, phrase) {
			p += 0.4
		}
	}
	if strings.Contains(r.Title, "!!") || strings.Contains(r.Title, "??") {
		p += 0.2
	}

	var letters, upper, symbols, total int
	for _, c := range r.Title {
		if unicode.IsSpace(c) {
			continue
		}
		total++
		switch {
		case unicode.IsLetter(c):
			letters++
			if unicode.IsUpper(c) {
				upper++
			}
		case !unicode.IsDigit(c):
			symbols++
		}
	}
	if total > 0 && float64(symbols)/float64(total) > 0.15 {
		p += 0.3
	}
	if letters >= 10 && float64(upper)/float64(letters) > 0.5 {
		p += 0.3
	}
	return clamp01(p)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
