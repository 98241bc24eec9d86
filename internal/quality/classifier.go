// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality aggregates a scored result set into a QualityAssessment:
// how well the results cover the query, how authoritative and substantive
// they are, and how many independent sources they come from. Thresholds
// depend on the query type.
package quality

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/cache"
	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	// RelevanceFloor is the overall relevance a result needs to count
	// towards coverage, authority and depth.
	RelevanceFloor = 0.3

	// HighRelevance marks a result as strongly relevant.
	HighRelevance = 0.6
)

// Confidence weights.
const (
	weightCoverage      = 0.30
	weightAuthority     = 0.20
	weightDepth         = 0.20
	weightDiversity     = 0.15
	weightHighRelevance = 0.15
)

// Issue texts. Callers match on these prefixes to build follow-up queries.
const (
	IssueNoResults     = "no results"
	IssueCoverage      = "low query coverage"
	IssueAuthority     = "low source authority"
	IssueDepth         = "shallow content"
	IssueDiversity     = "insufficient source diversity"
	IssueNoHighlyRel   = "no highly relevant results"
	IssueMultiSource   = "needs multiple corroborating sources"
	recommendSatisfied = "Sufficient evidence to answer."
)

var recommendations = []struct {
	issue, text string
}{
	{IssueNoResults, "Rephrase the query or broaden its filters."},
	{IssueDiversity, "Broaden the search to more independent sources."},
	{IssueMultiSource, "Broaden the search to more independent sources."},
	{IssueCoverage, "Rephrase the query with more specific terms."},
	{IssueNoHighlyRel, "Rephrase the query with more specific terms."},
	{IssueAuthority, "Prefer authoritative sources such as official documentation."},
	{IssueDepth, "Fetch full page content or search for in-depth material."},
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLexicon replaces the built-in lookup tables.
func WithLexicon(lex *lexicon.Lexicon) Option {
	return func(c *Classifier) { c.lex = lex }
}

// WithProfiles overrides profiles per query type. Types not present keep
// their defaults.
func WithProfiles(p map[types.QueryType]Profile) Option {
	return func(c *Classifier) {
		for t, prof := range p {
			c.profiles[t] = prof
		}
	}
}

// WithCache memoizes assessments.
func WithCache(cc *cache.Cache[types.QualityAssessment]) Option {
	return func(c *Classifier) { c.cache = cc }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Classifier) { c.log = log }
}

// Classifier produces quality assessments. It is safe for concurrent use.
type Classifier struct {
	lex      *lexicon.Lexicon
	profiles map[types.QueryType]Profile
	cache    *cache.Cache[types.QualityAssessment]
	log      *zap.Logger
}

// New creates a Classifier with the default profiles.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		lex:      lexicon.Default(),
		profiles: DefaultProfiles(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile returns the thresholds for t, falling back to the general
// profile for unknown types.
func (c *Classifier) Profile(t types.QueryType) Profile {
	if p, ok := c.profiles[t]; ok {
		return p
	}
	return c.profiles[types.QueryGeneral]
}

// QueryType returns q.Type, or the detected type when q.Type is empty.
func (c *Classifier) QueryType(q types.Query) types.QueryType {
	if q.Type != "" {
		return q.Type
	}
	return DetectQueryType(c.lex, q.Text)
}

// Classify assesses results, which should carry relevance scores, for q.
// providers names the providers that produced the results and is part of
// the cache key.
func (c *Classifier) Classify(q types.Query, results []types.Result, providers []string) types.QualityAssessment {
	qt := c.QueryType(q)

	var key string
	if c.cache != nil {
		key = assessmentKey(q, qt, providers, results)
		if a, ok := c.cache.Get(key); ok {
			return a
		}
	}

	a := c.assess(q.Text, qt, results)
	c.log.Debug("quality assessed",
		zap.String("query_type", string(qt)),
		zap.Bool("satisfactory", a.Satisfactory),
		zap.Float64("confidence", a.Confidence),
		zap.Int("domains", a.SourceDiversity),
	)

	if c.cache != nil {
		if err := c.cache.Set(key, a); err != nil {
			c.log.Debug("assessment cache store failed", zap.Error(err))
		}
	}
	return a
}

func (c *Classifier) assess(text string, qt types.QueryType, results []types.Result) types.QualityAssessment {
	prof := c.Profile(qt)
	a := types.QualityAssessment{QueryType: qt}

	if len(results) == 0 {
		a.Issues = []string{IssueNoResults}
		a.Recommendation = recommend(a.Issues)
		return a
	}

	var qualifying []types.Result
	domains := make(map[string]bool)
	for _, r := range results {
		if d := r.Domain(); d != "" {
			domains[d] = true
		}
		if r.OverallScore() >= RelevanceFloor {
			qualifying = append(qualifying, r)
		}
		if r.OverallScore() >= HighRelevance {
			a.HighRelevanceCount++
		}
	}
	a.SourceDiversity = len(domains)
	a.Coverage = c.coverage(text, qualifying)

	if len(qualifying) > 0 {
		var auth, depth float64
		for _, r := range qualifying {
			if r.Relevance != nil {
				auth += r.Relevance.Authority
			}
			depth += Depth(r)
		}
		a.Authority = auth / float64(len(qualifying))
		a.ContentDepth = depth / float64(len(qualifying))
	}

	minDiversity := max(prof.MinDiversity, 1)
	diversityRatio := min(1, float64(a.SourceDiversity)/float64(minDiversity))
	highFraction := float64(a.HighRelevanceCount) / float64(len(results))
	a.Confidence = clamp01(weightCoverage*a.Coverage +
		weightAuthority*a.Authority +
		weightDepth*a.ContentDepth +
		weightDiversity*diversityRatio +
		weightHighRelevance*highFraction)

	if a.Coverage < prof.MinCoverage {
		a.Issues = append(a.Issues, fmt.Sprintf("%s (%.0f%% of query terms)", IssueCoverage, a.Coverage*100))
	} else {
		a.Strengths = append(a.Strengths, fmt.Sprintf("covers %.0f%% of query terms", a.Coverage*100))
	}
	if a.Authority < prof.MinAuthority {
		a.Issues = append(a.Issues, fmt.Sprintf("%s (%.2f < %.2f)", IssueAuthority, a.Authority, prof.MinAuthority))
	} else {
		a.Strengths = append(a.Strengths, "authoritative sources")
	}
	if a.ContentDepth < prof.MinDepth {
		a.Issues = append(a.Issues, fmt.Sprintf("%s (%.2f < %.2f)", IssueDepth, a.ContentDepth, prof.MinDepth))
	} else {
		a.Strengths = append(a.Strengths, "substantive content")
	}
	if a.SourceDiversity < prof.MinDiversity {
		a.Issues = append(a.Issues, fmt.Sprintf("%s (%d of %d domains)", IssueDiversity, a.SourceDiversity, prof.MinDiversity))
	} else if a.SourceDiversity > 1 {
		a.Strengths = append(a.Strengths, fmt.Sprintf("%d distinct sources", a.SourceDiversity))
	}
	if a.HighRelevanceCount == 0 {
		a.Issues = append(a.Issues, IssueNoHighlyRel)
	}
	if prof.RequireMultipleSources && len(qualifying) < 2 {
		a.Issues = append(a.Issues, IssueMultiSource)
	}

	a.Satisfactory = len(a.Issues) == 0
	a.Recommendation = recommend(a.Issues)
	return a
}

// coverage is the fraction of query terms found in at least one result.
func (c *Classifier) coverage(text string, results []types.Result) float64 {
	terms := c.lex.Terms(text)
	if len(terms) == 0 {
		terms = lexicon.Tokenize(text)
	}
	if len(terms) == 0 || len(results) == 0 {
		return 0
	}

	found := make(map[string]bool)
	for _, r := range results {
		for _, tok := range lexicon.Tokenize(r.Title + " " + r.Snippet + " " + r.Content) {
			found[tok] = true
		}
	}
	covered := 0
	for _, t := range terms {
		if found[t] {
			covered++
		}
	}
	return float64(covered) / float64(len(terms))
}

// Depth scores how substantive a result's text is, from its length plus
// bonuses for code blocks and explicit paragraphing. Content and snippet are
// scored separately and the better one counts.
func Depth(r types.Result) float64 {
	return max(textDepth(r.Content), textDepth(r.Snippet))
}

func textDepth(text string) float64 {
	var score float64
	switch n := utf8.RuneCountInString(strings.TrimSpace(text)); {
	case n >= 2000:
		score = 0.7
	case n >= 800:
		score = 0.55
	case n >= 300:
		score = 0.45
	case n >= 150:
		score = 0.35
	case n >= 60:
		score = 0.25
	case n > 0:
		score = 0.1
	default:
		return 0
	}
	if strings.Contains(text, "```") || strings.Contains(text, "<code") || strings.Contains(text, "<pre") {
		score += 0.15
	}
	if strings.Count(text, "\n\n") >= 2 || strings.Count(text, "\n") >= 3 {
		score += 0.15
	}
	return clamp01(score)
}

func recommend(issues []string) string {
	if len(issues) == 0 {
		return recommendSatisfied
	}
	for _, rec := range recommendations {
		for _, is := range issues {
			if strings.HasPrefix(is, rec.issue) {
				return rec.text
			}
		}
	}
	return "Try a different query."
}

// assessmentKey hashes everything the assessment depends on.
func assessmentKey(q types.Query, qt types.QueryType, providers []string, results []types.Result) string {
	ps := slices.Clone(providers)
	slices.Sort(ps)

	h := xxhash.New()
	h.WriteString(q.Normalized())
	h.WriteString("\x00" + string(qt) + "\x00")
	h.WriteString(strings.Join(ps, ","))
	for _, r := range results {
		h.WriteString("\x00" + r.URL + "|" + strconv.FormatFloat(r.OverallScore(), 'f', 6, 64))
	}
	return strconv.FormatUint(h.Sum64(), 16)
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
