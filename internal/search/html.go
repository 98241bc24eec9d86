// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const defaultMaxResults = 10

// selectorSet describes where one page layout keeps its results. HTML
// providers try several sets in order because engines ship layout variants.
type selectorSet struct {
	Container string
	Title     string
	Link      string
	Snippet   string
}

// fetchPage GETs url and returns the body, mapping captcha and anti-bot
// pages to ErrBlocked.
func fetchPage(ctx context.Context, client *httputil.Client, lex *lexicon.Lexicon, url string, headers map[string]string) ([]byte, error) {
	body, err := client.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	if sig := lex.BlockSignature(string(body)); sig != "" {
		return nil, fmt.Errorf("%w: page contains %q", ErrBlocked, sig)
	}
	return body, nil
}

// genericSnippetLen caps the snippet taken from an anchor's surrounding text.
const genericSnippetLen = 300

// parseResults runs the selector cascade over body and returns the results
// of the first set that yields any. When every set comes up empty a generic
// tier collects external anchors with text. Links are passed through
// resolve, which returns "" for links that should be skipped.
//
// A page matching noResults, or one without any text, is an empty success.
// Any other page where the cascade finds nothing fails with ErrParse.
func parseResults(body []byte, sets []selectorSet, noResults string, resolve func(string) string, limit int) ([]types.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	for _, set := range sets {
		var results []types.Result
		doc.Find(set.Container).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			link := s.Find(set.Link).First()
			href, _ := link.Attr("href")
			href = resolve(strings.TrimSpace(href))
			title := collapse(s.Find(set.Title).First().Text())
			if href == "" || title == "" {
				return true
			}
			results = append(results, types.Result{
				Title:   title,
				URL:     href,
				Snippet: collapse(s.Find(set.Snippet).First().Text()),
			})
			return len(results) < limit
		})
		if len(results) > 0 {
			return results, nil
		}
	}

	if noResults != "" && doc.Find(noResults).Length() > 0 {
		return nil, nil
	}
	if results := genericAnchors(doc, resolve, limit); len(results) > 0 {
		return results, nil
	}
	if collapse(doc.Find("body").Text()) == "" {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: no selector matched the results page", ErrParse)
}

// genericAnchors is the last tier of the cascade: every anchor with text
// whose link resolves to an external URL, deduplicated by URL.
func genericAnchors(doc *goquery.Document, resolve func(string) string, limit int) []types.Result {
	var (
		results []types.Result
		seen    = make(map[string]bool)
	)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		href = resolve(strings.TrimSpace(href))
		title := collapse(a.Text())
		if href == "" || title == "" || seen[href] {
			return true
		}
		seen[href] = true

		snippet := collapse(a.Parent().Text())
		if snippet == title {
			snippet = ""
		}
		if r := []rune(snippet); len(r) > genericSnippetLen {
			snippet = string(r[:genericSnippetLen])
		}
		results = append(results, types.Result{Title: title, URL: href, Snippet: snippet})
		return len(results) < limit
	})
	return results
}

// collapse trims s and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripTags returns the text content of an HTML fragment.
func stripTags(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func limitFor(q types.Query) int {
	if q.MaxResults > 0 {
		return q.MaxResults
	}
	return defaultMaxResults
}
