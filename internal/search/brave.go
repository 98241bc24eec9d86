// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// braveAPIBase is the Brave Search web endpoint. Declared as a var so tests
// can substitute an httptest server.
var braveAPIBase = "https://api.search.brave.com/res/v1/web/search"

// Brave caps count at 20 per request.
const braveMaxCount = 20

var braveFreshness = map[string]string{
	"day":   "pd",
	"week":  "pw",
	"month": "pm",
	"year":  "py",
}

// Brave queries the Brave Search API. It requires an API key.
type Brave struct {
	*Base
	apiKey string
}

// NewBrave creates the provider. An empty name defaults to "brave".
func NewBrave(cfg BaseConfig, apiKey string) *Brave {
	if cfg.Name == "" {
		cfg.Name = "brave"
	}
	return &Brave{Base: NewBase(cfg), apiKey: apiKey}
}

// CanHandle requires a configured API key.
func (b *Brave) CanHandle(q types.Query) bool {
	return b.apiKey != "" && !q.IsEmpty()
}

// Search implements Provider.
func (b *Brave) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return b.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		limit := min(limitFor(q), braveMaxCount)
		params := url.Values{
			"q":     {q.Formatted()},
			"count": {strconv.Itoa(limit)},
		}
		if q.Language != "" {
			params.Set("search_lang", q.Language)
		}
		if f, ok := braveFreshness[q.TimeRange]; ok {
			params.Set("freshness", f)
		}

		body, err := b.Client().Get(ctx, braveAPIBase+"?"+params.Encode(), map[string]string{
			"Accept":               "application/json",
			"X-Subscription-Token": b.apiKey,
		})
		if err != nil {
			return nil, err
		}

		var br braveResponse
		if err := json.Unmarshal(body, &br); err != nil {
			return nil, fmt.Errorf("%w: brave: %v", ErrParse, err)
		}

		var results []types.Result
		for _, r := range br.Web.Results {
			if r.URL == "" || r.Title == "" {
				continue
			}
			res := types.Result{
				Title:   stripTags(r.Title),
				URL:     r.URL,
				Snippet: stripTags(r.Description),
			}
			if t, err := time.Parse(time.RFC3339, r.PageAge); err == nil {
				res.Timestamp = t
			} else if t, err := time.Parse("2006-01-02T15:04:05", r.PageAge); err == nil {
				res.Timestamp = t
			}
			if r.Age != "" {
				res.Metadata = map[string]string{"age": r.Age}
			}
			results = append(results, res)
			if len(results) >= limit {
				break
			}
		}
		return results, nil
	})
}

// Brave Search API JSON structures.
type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	PageAge     string `json:"page_age"`
	Age         string `json:"age"`
}
