// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// FormatTable writes an outcome as a human-readable table to w.
func FormatTable(out Outcome, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-28s  %-6s  %s\n",
		"Rank", "Title", "Domain", "Score", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 116))

	for i, r := range out.Results {
		score := "-"
		if r.Relevance != nil {
			score = fmt.Sprintf("%.2f", r.Relevance.Overall)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-28s  %-6s  %s\n",
			i+1, truncate(r.Title, 60), truncate(r.Domain(), 28), score, r.Source)
	}

	fmt.Fprintf(w, "\n%d results from %s", len(out.Results), out.Provider)
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	if out.Cached {
		fmt.Fprint(w, " [cached]")
	}
	fmt.Fprintln(w)
}

// FormatJSON writes the outcome results as indented JSON to w.
func FormatJSON(out Outcome, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Results)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
