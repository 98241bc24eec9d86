// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// duckDuckGoURL is the DuckDuckGo HTML endpoint. Declared as a var so tests
// can substitute an httptest server.
var duckDuckGoURL = "https://html.duckduckgo.com/html/"

var duckDuckGoSelectors = []selectorSet{
	{Container: "div.result", Title: "a.result__a", Link: "a.result__a", Snippet: ".result__snippet"},
	{Container: "div.web-result", Title: "h2 a", Link: "h2 a", Snippet: ".result__snippet"},
	{Container: "div.links_main", Title: "a", Link: "a", Snippet: ".snippet"},
}

// duckDuckGoNoResults marks a page that genuinely has no results.
const duckDuckGoNoResults = "div.no-results, .no-results"

var duckDuckGoTimeRanges = map[string]string{
	"day":   "d",
	"week":  "w",
	"month": "m",
	"year":  "y",
}

// DuckDuckGo scrapes the DuckDuckGo HTML results page.
type DuckDuckGo struct {
	*Base
	lex *lexicon.Lexicon
}

// NewDuckDuckGo creates the provider. An empty name defaults to "duckduckgo".
func NewDuckDuckGo(cfg BaseConfig) *DuckDuckGo {
	if cfg.Name == "" {
		cfg.Name = "duckduckgo"
	}
	return &DuckDuckGo{Base: NewBase(cfg), lex: lexicon.Default()}
}

// CanHandle accepts every non-empty query; DuckDuckGo understands site:,
// OR groups and -term.
func (d *DuckDuckGo) CanHandle(q types.Query) bool { return !q.IsEmpty() }

// Search implements Provider.
func (d *DuckDuckGo) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return d.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		params := url.Values{"q": {q.Formatted()}}
		if q.Language != "" {
			params.Set("kl", "wt-"+strings.ToLower(q.Language))
		}
		if df, ok := duckDuckGoTimeRanges[q.TimeRange]; ok {
			params.Set("df", df)
		}

		body, err := fetchPage(ctx, d.Client(), d.lex, duckDuckGoURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		return parseResults(body, duckDuckGoSelectors, duckDuckGoNoResults, resolveDuckDuckGoLink, limitFor(q))
	})
}

// resolveDuckDuckGoLink unwraps /l/?uddg= redirect links and drops ad and
// internal links.
func resolveDuckDuckGoLink(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		return ""
	}
	return u.String()
}
