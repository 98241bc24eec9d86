// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// wikipediaAPIBase and wikipediaPageBase carry a {lang} placeholder.
// Declared as vars so tests can substitute an httptest server.
var (
	wikipediaAPIBase  = "https://{lang}.wikipedia.org/w/api.php"
	wikipediaPageBase = "https://{lang}.wikipedia.org/wiki/"
)

// Wikipedia queries the MediaWiki search API. It ignores search-engine
// operators and searches the plain text.
type Wikipedia struct {
	*Base
}

// NewWikipedia creates the provider. An empty name defaults to "wikipedia".
func NewWikipedia(cfg BaseConfig) *Wikipedia {
	if cfg.Name == "" {
		cfg.Name = "wikipedia"
	}
	return &Wikipedia{Base: NewBase(cfg)}
}

// CanHandle rejects queries restricted to sites other than wikipedia.org
// and procedural queries, which encyclopedia articles rarely answer.
func (w *Wikipedia) CanHandle(q types.Query) bool {
	if q.IsEmpty() || q.Type == types.QueryProcedural {
		return false
	}
	if len(q.Domains) == 0 {
		return true
	}
	for _, d := range q.Domains {
		if strings.HasSuffix(strings.ToLower(d), "wikipedia.org") {
			return true
		}
	}
	return false
}

// Search implements Provider.
func (w *Wikipedia) Search(ctx context.Context, q types.Query) ([]types.Result, error) {
	return w.Run(ctx, func(ctx context.Context) ([]types.Result, error) {
		lang := strings.ToLower(q.Language)
		if lang == "" {
			lang = "en"
		}
		params := url.Values{
			"action":   {"query"},
			"list":     {"search"},
			"srsearch": {q.Text},
			"srlimit":  {strconv.Itoa(limitFor(q))},
			"format":   {"json"},
			"utf8":     {"1"},
		}
		reqURL := strings.ReplaceAll(wikipediaAPIBase, "{lang}", lang) + "?" + params.Encode()

		body, err := w.Client().Get(ctx, reqURL, map[string]string{"Accept": "application/json"})
		if err != nil {
			return nil, err
		}

		var wr wikipediaResponse
		if err := json.Unmarshal(body, &wr); err != nil {
			return nil, fmt.Errorf("%w: wikipedia: %v", ErrParse, err)
		}

		pageBase := strings.ReplaceAll(wikipediaPageBase, "{lang}", lang)
		var results []types.Result
		for _, p := range wr.Query.Search {
			if p.Title == "" {
				continue
			}
			r := types.Result{
				Title:    p.Title,
				URL:      pageBase + url.PathEscape(strings.ReplaceAll(p.Title, " ", "_")),
				Snippet:  stripTags(p.Snippet),
				Metadata: map[string]string{"pageid": strconv.Itoa(p.PageID), "wordcount": strconv.Itoa(p.WordCount)},
			}
			if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
				r.Timestamp = t
			}
			results = append(results, r)
		}
		return results, nil
	})
}

// MediaWiki search API JSON structures.
type wikipediaResponse struct {
	Query struct {
		Search []wikipediaPage `json:"search"`
	} `json:"query"`
}

type wikipediaPage struct {
	PageID    int    `json:"pageid"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	WordCount int    `json:"wordcount"`
	Timestamp string `json:"timestamp"`
}
