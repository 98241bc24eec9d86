// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries web search providers and returns unified,
// deduplicated results. The Manager picks a provider per query, guards each
// with a rate limiter and circuit breaker, and falls back sequentially when
// a provider fails.
package search

import (
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Deduplicate merges results that share a canonical URL or normalized
// title. The first occurrence keeps its position; later duplicates fill its
// empty fields. It returns the merged list and the number removed.
func Deduplicate(results []types.Result) ([]types.Result, int) {
	seen := make(map[string]int) // dedup key → index in deduped
	var deduped []types.Result
	removed := 0

	for _, r := range results {
		urlKey := ""
		if c := CanonicalURL(r.URL); c != "" {
			urlKey = "url:" + c
		}
		titleKey := ""
		if t := lexicon.NormalizeTitle(r.Title); t != "" {
			titleKey = "title:" + t
		}

		idx, dup := -1, false
		if urlKey != "" {
			idx, dup = seen[urlKey]
		}
		if !dup && titleKey != "" {
			idx, dup = seen[titleKey]
		}
		if dup {
			mergeInto(&deduped[idx], r)
			removed++
			continue
		}

		idx = len(deduped)
		deduped = append(deduped, r)
		if urlKey != "" {
			seen[urlKey] = idx
		}
		if titleKey != "" {
			seen[titleKey] = idx
		}
	}
	return deduped, removed
}

// trackingParams are query parameters that never change page content.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "gclid", "fbclid", "ref"}

// CanonicalURL lower-cases scheme and host, drops "www.", the fragment,
// tracking parameters and a trailing slash. It returns "" for unparseable
// or relative URLs.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	path := strings.TrimRight(u.EscapedPath(), "/")

	out := host + path
	if enc := q.Encode(); enc != "" {
		out += "?" + enc
	}
	return out
}

// mergeInto fills empty fields of dst from src and records both sources.
func mergeInto(dst *types.Result, src types.Result) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(src.Snippet) > len(dst.Snippet) {
		dst.Snippet = src.Snippet
	}
	if dst.Content == "" {
		dst.Content = src.Content
	}
	if dst.Timestamp.IsZero() {
		dst.Timestamp = src.Timestamp
	}
	if src.Source != "" && !containsSource(dst.Source, src.Source) {
		if dst.Source == "" {
			dst.Source = src.Source
		} else {
			dst.Source = dst.Source + "," + src.Source
		}
	}
	if len(src.Metadata) > 0 {
		if dst.Metadata == nil {
			dst.Metadata = make(map[string]string, len(src.Metadata))
		}
		keys := make([]string, 0, len(src.Metadata))
		for k := range src.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := dst.Metadata[k]; !ok {
				dst.Metadata[k] = src.Metadata[k]
			}
		}
	}
}

func containsSource(list, name string) bool {
	for _, s := range strings.Split(list, ",") {
		if s == name {
			return true
		}
	}
	return false
}

// cloneResults copies the slice and each result's metadata map so callers
// may modify the copy without touching cached data.
func cloneResults(in []types.Result) []types.Result {
	if in == nil {
		return nil
	}
	out := make([]types.Result, len(in))
	for i, r := range in {
		if r.Metadata != nil {
			m := make(map[string]string, len(r.Metadata))
			for k, v := range r.Metadata {
				m[k] = v
			}
			r.Metadata = m
		}
		if r.Relevance != nil {
			rel := *r.Relevance
			r.Relevance = &rel
		}
		out[i] = r
	}
	return out
}
