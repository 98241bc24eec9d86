// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// SearXNG queries a self-hosted SearXNG instance through its JSON API.
type SearXNG struct {
	*Base
	baseURL string
}

// NewSearXNG creates the provider for the instance at baseURL. An empty
// name defaults to "searxng".
func NewSearXNG(cfg BaseConfig, baseURL string) *SearXNG {
	if cfg.Name == "" {
		cfg.Name = "searxng"
	}
	return &SearXNG{Base: NewBase(cfg), baseURL: strings.TrimRight(baseURL, "/")}
}

// CanHandle requires a configured instance URL.
func (s *SearXNG) CanHandle(q types.Query) bool {
	return s.baseURL != "" && !q.IsEmpty()
}

// Search implements Provider.
func (s *SearXNG) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return s.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		params := url.Values{
			"q":      {q.Formatted()},
			"format": {"json"},
		}
		if q.Language != "" {
			params.Set("language", q.Language)
		}
		if q.TimeRange != "" {
			params.Set("time_range", q.TimeRange)
		}

		body, err := s.Client().Get(ctx, s.baseURL+"/search?"+params.Encode(), map[string]string{"Accept": "application/json"})
		if err != nil {
			return nil, err
		}

		var sr searxngResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return nil, fmt.Errorf("%w: searxng: %v", ErrParse, err)
		}

		limit := limitFor(q)
		var results []types.Result
		for _, r := range sr.Results {
			if r.URL == "" || r.Title == "" {
				continue
			}
			res := types.Result{
				Title:   collapse(r.Title),
				URL:     r.URL,
				Snippet: stripTags(r.Content),
			}
			if r.Engine != "" {
				res.Metadata = map[string]string{"engine": r.Engine}
			}
			if t, err := time.Parse(time.RFC3339, r.PublishedDate); err == nil {
				res.Timestamp = t
			}
			results = append(results, res)
			if len(results) >= limit {
				break
			}
		}
		return results, nil
	})
}

// SearXNG JSON API structures.
type searxngResponse struct {
	Results []searxngResult `json:"results"`
}

type searxngResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	Engine        string `json:"engine"`
	PublishedDate string `json:"publishedDate"`
}
