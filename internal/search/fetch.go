// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/internal/lexicon"
)

// DefaultMaxPageChars bounds the text returned by PageFetcher.
const DefaultMaxPageChars = 20000

// noiseSelectors are removed before text extraction.
const noiseSelectors = "script, style, noscript, template, svg, iframe, nav, header, footer, aside, form, [role=navigation], [aria-hidden=true]"

// contentSelectors are tried in order; the first match supplies the text.
var contentSelectors = []string{"article", "main", "[role=main]", "#content", ".content", "body"}

// PageFetcher retrieves a single page and returns its visible text. It does
// not follow links.
type PageFetcher struct {
	client   *httputil.Client
	lex      *lexicon.Lexicon
	maxChars int
}

// NewPageFetcher creates a fetcher. Non-positive maxChars uses
// DefaultMaxPageChars.
func NewPageFetcher(client *httputil.Client, maxChars int) *PageFetcher {
	if client == nil {
		client = httputil.NewClient()
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxPageChars
	}
	return &PageFetcher{client: client, lex: lexicon.Default(), maxChars: maxChars}
}

// ParsePageURL accepts absolute http and https URLs and rejects anything
// else with ErrInvalidURL.
func ParsePageURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// Fetch downloads rawURL and extracts readable text with scripts, styles
// and navigation stripped and whitespace collapsed.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := ParsePageURL(rawURL)
	if err != nil {
		return "", err
	}

	body, err := fetchPage(ctx, f.client, f.lex, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	return ExtractText(body, f.maxChars)
}

// ExtractText returns the visible text of an HTML document, truncated to
// maxChars runes.
func ExtractText(body []byte, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	doc.Find(noiseSelectors).Remove()

	var text string
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if text = blockText(s); text != "" {
				break
			}
		}
	}
	return truncateRunes(text, maxChars), nil
}

// blockText joins the text of block-level children with newlines so that
// paragraphs survive whitespace collapsing.
func blockText(s *goquery.Selection) string {
	var parts []string
	s.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, b *goquery.Selection) {
		if b.ParentsFiltered("p, li, pre, blockquote, td").Length() > 0 {
			return
		}
		if t := collapse(b.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return collapse(s.Text())
	}
	return strings.Join(parts, "\n")
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
