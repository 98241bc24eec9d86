// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence engine:
// queries, results, relevance scores, provider metrics, quality assessments,
// response decisions, and configuration.
package types

import (
	"net/url"
	"strings"
	"time"
)

// QueryType classifies what kind of answer a query is looking for. The type
// selects the quality profile and decision threshold used downstream.
type QueryType string

const (
	QueryFactual     QueryType = "factual"
	QueryTechnical   QueryType = "technical"
	QueryExplanatory QueryType = "explanatory"
	QueryProcedural  QueryType = "procedural"
	QueryComparative QueryType = "comparative"
	QueryGeneral     QueryType = "general"
)

// QueryTypes lists every query type in detection order.
var QueryTypes = []QueryType{
	QueryFactual,
	QueryTechnical,
	QueryExplanatory,
	QueryProcedural,
	QueryComparative,
	QueryGeneral,
}

// ParseQueryType returns the QueryType named by s, or QueryGeneral and false
// when s is not a known type.
func ParseQueryType(s string) (QueryType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range QueryTypes {
		if string(t) == s {
			return t, true
		}
	}
	return QueryGeneral, false
}

// Query is an immutable search request. Methods return derived values and
// never modify the receiver.
type Query struct {
	// Text is the free-text query as typed by the user.
	Text string `json:"text" yaml:"text"`

	// Type is the query classification. Empty means "detect automatically".
	Type QueryType `json:"type,omitempty" yaml:"type,omitempty"`

	// MaxResults caps the number of results returned (0 means provider default).
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`

	// Language is an ISO 639-1 code (e.g. "en").
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// TimeRange restricts results by age: day, week, month or year.
	TimeRange string `json:"time_range,omitempty" yaml:"time_range,omitempty"`

	// Domains restricts results to the given sites.
	Domains []string `json:"domains,omitempty" yaml:"domains,omitempty"`

	// ExcludeTerms are terms that must not appear in results.
	ExcludeTerms []string `json:"exclude_terms,omitempty" yaml:"exclude_terms,omitempty"`

	// Synonyms are alternative phrasings OR-ed with the query text.
	Synonyms []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

// IsEmpty reports whether the query has no searchable text.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// Normalized returns the lower-cased query text with whitespace collapsed.
func (q Query) Normalized() string {
	return strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
}

// WithText returns a copy of q with the text replaced.
func (q Query) WithText(text string) Query {
	q.Text = text
	q.Domains = append([]string(nil), q.Domains...)
	q.ExcludeTerms = append([]string(nil), q.ExcludeTerms...)
	q.Synonyms = append([]string(nil), q.Synonyms...)
	return q
}

// WithType returns a copy of q with the type replaced.
func (q Query) WithType(t QueryType) Query {
	c := q.WithText(q.Text)
	c.Type = t
	return c
}

// Formatted renders the query in search-engine syntax: the text, an OR group
// of synonyms, site: filters and -term exclusions.
func (q Query) Formatted() string {
	parts := []string{strings.TrimSpace(q.Text)}

	if len(q.Synonyms) > 0 {
		var syns []string
		for _, s := range q.Synonyms {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if strings.Contains(s, " ") {
				s = `"` + s + `"`
			}
			syns = append(syns, s)
		}
		if len(syns) > 0 {
			parts = append(parts, "("+strings.Join(syns, " OR ")+")")
		}
	}

	var sites []string
	for _, d := range q.Domains {
		d = strings.TrimSpace(d)
		if d != "" {
			sites = append(sites, "site:"+d)
		}
	}
	switch len(sites) {
	case 0:
	case 1:
		parts = append(parts, sites[0])
	default:
		parts = append(parts, "("+strings.Join(sites, " OR ")+")")
	}

	for _, t := range q.ExcludeTerms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.Contains(t, " ") {
			t = `"` + t + `"`
		}
		parts = append(parts, "-"+t)
	}
	return strings.Join(parts, " ")
}

// Result is a single piece of source material returned by a provider.
type Result struct {
	Title     string    `json:"title" yaml:"title"`
	URL       string    `json:"url" yaml:"url"`
	Snippet   string    `json:"snippet" yaml:"snippet"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Content is the full page text when it was fetched.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// Source names the provider that returned this result.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	Relevance *RelevanceScore   `json:"relevance,omitempty" yaml:"relevance,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Domain returns the lower-cased host of the result URL without a leading
// "www.", or "" when the URL cannot be parsed.
func (r Result) Domain() string {
	return DomainOf(r.URL)
}

// OverallScore returns the attached overall relevance, or 0 when unscored.
func (r Result) OverallScore() float64 {
	if r.Relevance == nil {
		return 0
	}
	return r.Relevance.Overall
}

// DomainOf extracts the normalized host from a URL string.
func DomainOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// RelevanceScore is a multi-factor measure of how well one result matches a
// query. Every sub-score lies in [0,1].
type RelevanceScore struct {
	Semantic  float64 `json:"semantic" yaml:"semantic"`
	Keyword   float64 `json:"keyword" yaml:"keyword"`
	Quality   float64 `json:"quality" yaml:"quality"`
	Authority float64 `json:"authority" yaml:"authority"`
	Overall   float64 `json:"overall" yaml:"overall"`

	// Factors breaks the score down by named factor for explainability.
	Factors map[string]float64 `json:"factors,omitempty" yaml:"factors,omitempty"`
}

// ProviderMetrics are the rolling statistics a provider keeps about its own
// round-trips.
type ProviderMetrics struct {
	TotalSearches      int           `json:"total_searches" yaml:"total_searches"`
	SuccessfulSearches int           `json:"successful_searches" yaml:"successful_searches"`
	AverageLatency     time.Duration `json:"average_latency" yaml:"average_latency"`
	LastUpdated        time.Time     `json:"last_updated" yaml:"last_updated"`
}

// SuccessRate returns successful/total, or 0 when no searches were made.
func (m ProviderMetrics) SuccessRate() float64 {
	if m.TotalSearches == 0 {
		return 0
	}
	return float64(m.SuccessfulSearches) / float64(m.TotalSearches)
}

// FailedSearches returns the number of unsuccessful searches.
func (m ProviderMetrics) FailedSearches() int {
	return m.TotalSearches - m.SuccessfulSearches
}
