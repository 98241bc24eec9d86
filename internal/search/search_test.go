// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// --- Deduplication ---

func TestDeduplicateByURL(t *testing.T) {
	results := []types.Result{
		{URL: "https://www.example.com/a/", Title: "Page A", Snippet: "short", Source: "duckduckgo"},
		{URL: "http://example.com/a?utm_source=x#top", Title: "Page A mirror", Snippet: "a much longer snippet", Source: "bing"},
		{URL: "https://example.com/b", Title: "Page B", Source: "duckduckgo"},
	}

	deduped, removed := Deduplicate(results)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	require.Len(t, deduped, 2)
	assert.Equal(t, "Page A", deduped[0].Title)
	assert.Equal(t, "a much longer snippet", deduped[0].Snippet)
	assert.Equal(t, "duckduckgo,bing", deduped[0].Source)
}

func TestDeduplicateByTitle(t *testing.T) {
	results := []types.Result{
		{URL: "https://a.example/x", Title: "Flutter vs React Native", Source: "duckduckgo"},
		{URL: "https://b.example/y", Title: "flutter vs. react native!", Source: "bing"},
	}

	deduped, removed := Deduplicate(results)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if len(deduped) != 1 {
		t.Fatalf("len(deduped) = %d, want 1", len(deduped))
	}
}

func TestDeduplicateNoDuplicates(t *testing.T) {
	results := []types.Result{
		{URL: "https://example.com/a", Title: "Page A"},
		{URL: "https://example.com/b", Title: "Page B"},
	}

	deduped, removed := Deduplicate(results)
	assert.Zero(t, removed)
	assert.Len(t, deduped, 2)
}

func TestDeduplicateMergesMetadataAndSources(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	results := []types.Result{
		{URL: "https://example.com/a", Title: "A", Source: "multi", Metadata: map[string]string{"engine": "ddg"}},
		{URL: "https://example.com/a", Title: "A", Source: "multi", Timestamp: ts, Metadata: map[string]string{"engine": "bing", "age": "2d"}},
	}
	deduped, _ := Deduplicate(results)
	require.Len(t, deduped, 1)
	assert.Equal(t, "multi", deduped[0].Source)
	assert.Equal(t, ts, deduped[0].Timestamp)
	assert.Equal(t, map[string]string{"engine": "ddg", "age": "2d"}, deduped[0].Metadata)
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.Example.com/path/", "example.com/path"},
		{"http://example.com/path#frag", "example.com/path"},
		{"https://example.com/p?utm_source=news&id=3", "example.com/p?id=3"},
		{"/relative/only", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalURL(tt.in), tt.in)
	}
}

func TestCloneResultsIsDeep(t *testing.T) {
	in := []types.Result{{
		Title:     "A",
		Metadata:  map[string]string{"k": "v"},
		Relevance: &types.RelevanceScore{Overall: 0.5},
	}}
	out := cloneResults(in)
	out[0].Metadata["k"] = "changed"
	out[0].Relevance.Overall = 0.9
	out[0].Title = "B"

	assert.Equal(t, "v", in[0].Metadata["k"])
	assert.InDelta(t, 0.5, in[0].Relevance.Overall, 1e-9)
	assert.Equal(t, "A", in[0].Title)
	assert.Nil(t, cloneResults(nil))
}

// --- Formatting ---

func testOutcome() Outcome {
	return Outcome{
		Query:    types.Query{Text: "flutter performance"},
		Provider: "duckduckgo",
		Results: []types.Result{
			{Title: "Flutter performance best practices", URL: "https://docs.flutter.dev/perf/best-practices", Source: "duckduckgo",
				Relevance: &types.RelevanceScore{Overall: 0.82}},
			{Title: strings.Repeat("Very long title ", 10), URL: "https://example.com/long", Source: "duckduckgo"},
		},
		DupsRemoved: 2,
	}
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(testOutcome(), &buf)
	out := buf.String()

	assert.Contains(t, out, "Rank")
	assert.Contains(t, out, "docs.flutter.dev")
	assert.Contains(t, out, "0.82")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "2 results from duckduckgo (2 duplicates removed)")
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(Outcome{}, &buf)
	assert.Equal(t, "No results found.\n", buf.String())
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(testOutcome(), &buf))

	var got []types.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Flutter performance best practices", got[0].Title)
}

// --- Outcome files ---

func TestOutcomeFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcome.yaml")
	out := testOutcome()
	out.Attempts = []Attempt{{Provider: "bing", Kind: KindBlocked, Error: "blocked"}, {Provider: "duckduckgo", Results: 2}}

	require.NoError(t, WriteOutcomeFile(path, out))
	of, err := ReadOutcomeFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, of.Summary.Total)
	assert.Equal(t, "flutter performance", of.Query.Text)
	assert.False(t, of.Summary.Timestamp.IsZero())

	back := of.ToOutcome()
	assert.True(t, back.Cached)
	assert.Equal(t, "duckduckgo", back.Provider)
	assert.Len(t, back.Attempts, 2)
	assert.Equal(t, KindBlocked, back.Attempts[0].Kind)
}

func TestReadOutcomeFileMissing(t *testing.T) {
	_, err := ReadOutcomeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
