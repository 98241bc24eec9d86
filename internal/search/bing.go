// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// bingURL is the Bing web search endpoint. Declared as a var so tests can
// substitute an httptest server.
var bingURL = "https://www.bing.com/search"

var bingSelectors = []selectorSet{
	{Container: "li.b_algo", Title: "h2", Link: "h2 a", Snippet: ".b_caption p"},
	{Container: "li.b_algo", Title: "h2", Link: "h2 a", Snippet: ".b_lineclamp2, .b_lineclamp3, .b_paractl"},
	{Container: "#b_results > li", Title: "h2", Link: "a", Snippet: "p"},
}

// bingNoResults marks a page that genuinely has no results.
const bingNoResults = "li.b_no"

var bingTimeRanges = map[string]string{
	"day":   `ex1:"ez1"`,
	"week":  `ex1:"ez2"`,
	"month": `ex1:"ez3"`,
}

// Bing scrapes the Bing HTML results page.
type Bing struct {
	*Base
	lex *lexicon.Lexicon
}

// NewBing creates the provider. An empty name defaults to "bing".
func NewBing(cfg BaseConfig) *Bing {
	if cfg.Name == "" {
		cfg.Name = "bing"
	}
	return &Bing{Base: NewBase(cfg), lex: lexicon.Default()}
}

// CanHandle rejects the year filter, which the HTML page cannot express.
func (b *Bing) CanHandle(q types.Query) bool {
	return !q.IsEmpty() && q.TimeRange != "year"
}

// Search implements Provider.
func (b *Bing) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return b.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		limit := limitFor(q)
		params := url.Values{
			"q":     {q.Formatted()},
			"count": {strconv.Itoa(limit)},
		}
		if q.Language != "" {
			params.Set("setlang", strings.ToLower(q.Language))
		}
		if f, ok := bingTimeRanges[q.TimeRange]; ok {
			params.Set("filters", f)
		}

		body, err := fetchPage(ctx, b.Client(), b.lex, bingURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		return parseResults(body, bingSelectors, bingNoResults, resolveBingLink, limit)
	})
}

// resolveBingLink unwraps /ck/a click-tracking links, whose u parameter is
// "a1" followed by the base64url target.
func resolveBingLink(href string) string {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "bing.com") {
		enc := u.Query().Get("u")
		if !strings.HasPrefix(enc, "a1") {
			return ""
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(enc[2:], "="))
		if err != nil {
			return ""
		}
		return string(raw)
	}
	return u.String()
}
