// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/journal"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review journaled decisions (list, show, summary, export, outcome)",
	Long: `History reads the SQLite decision journal written by ask and serve when
journal.path (or --journal) is set. Use subcommands to list recent decisions,
inspect one, summarize the journal, export it, or record whether an answer
turned out to be right.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list [text]",
	Short: "List recent decisions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal()
		if err != nil {
			return err
		}
		defer store.Close()

		opts, err := historyOptsFromFlags(cmd, args)
		if err != nil {
			return err
		}
		records, err := store.Recent(context.Background(), opts)
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return encodeJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No decisions found.")
			return nil
		}

		fmt.Fprintf(os.Stdout, "%-36s  %-7s  %-5s  %-12s  %-14s  %s\n",
			"ID", "Verdict", "Conf", "Type", "When", "Query")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
		for _, r := range records {
			fmt.Fprintf(os.Stdout, "%-36s  %-7s  %.2f   %-12s  %-14s  %s\n",
				r.ID, verdict(r.ShouldRespond), r.Confidence, r.QueryType, humanize.Time(r.DecidedAt), r.Query)
		}
		fmt.Fprintf(os.Stdout, "\n%d decisions\n", len(records))
		return nil
	},
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one decision with its selected sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal()
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := store.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return encodeJSON(r)
		}

		fmt.Printf("Decision:   %s %s (confidence %.2f)\n", r.ID, verdict(r.ShouldRespond), r.Confidence)
		fmt.Printf("Query:      %s (%s, attempt %d via %s)\n", r.Query, r.QueryType, r.Attempt, r.Provider)
		fmt.Printf("Strategy:   %s\n", r.Strategy)
		fmt.Printf("Decided:    %s (%s)\n", r.DecidedAt.Local().Format(time.RFC1123), humanize.Time(r.DecidedAt))
		fmt.Printf("Reasoning:  %s\n", r.Reasoning)
		if r.SuggestedQuery != "" {
			fmt.Printf("Suggested:  %s\n", r.SuggestedQuery)
		}
		if r.Outcome != "" {
			fmt.Printf("Outcome:    %s\n", r.Outcome)
		}
		if len(r.Assessment.Issues) > 0 {
			fmt.Printf("Issues:     %s\n", strings.Join(r.Assessment.Issues, "; "))
		}
		if len(r.Results) > 0 {
			fmt.Println("\nSources:")
			for _, sr := range r.Results {
				fmt.Printf("  %d. [%.2f] %-24s %s\n", sr.Rank, sr.Relevance, sr.Domain, sr.Title)
			}
		}
		return nil
	},
}

// --- summary subcommand ---

var historySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize every journaled decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal()
		if err != nil {
			return err
		}
		defer store.Close()

		sum, err := store.Summary(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return encodeJSON(sum)
		}

		rate := 0.0
		if sum.Decisions > 0 {
			rate = float64(sum.Responded) / float64(sum.Decisions)
		}
		fmt.Printf("Decisions:       %s\n", humanize.Comma(int64(sum.Decisions)))
		fmt.Printf("Answered:        %s (%.0f%%)\n", humanize.Comma(int64(sum.Responded)), rate*100)
		fmt.Printf("Mean confidence: %.2f\n", sum.MeanConfidence)
		fmt.Printf("Outcomes:        %d success, %d failure\n", sum.Successes, sum.Failures)
		if len(sum.ByType) > 0 {
			fmt.Println("\nBy query type:")
			for _, t := range types.QueryTypes {
				if n := sum.ByType[t]; n > 0 {
					fmt.Printf("  %-12s %d\n", t, n)
				}
			}
		}
		if len(sum.TopDomains) > 0 {
			fmt.Println("\nTop domains:")
			for _, d := range sum.TopDomains {
				fmt.Printf("  %-30s %d\n", d.Domain, d.Count)
			}
		}
		return nil
	},
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export [text]",
	Short: "Export decisions to YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal()
		if err != nil {
			return err
		}
		defer store.Close()

		opts, err := historyOptsFromFlags(cmd, args)
		if err != nil {
			return err
		}
		w := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			defer f.Close()
			w = f
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "yaml", "":
			return store.ExportYAML(context.Background(), w, opts)
		case "json":
			return store.ExportJSON(context.Background(), w, opts)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
	},
}

// --- outcome subcommand ---

var historyOutcomeCmd = &cobra.Command{
	Use:   "outcome <id> <success|failure>",
	Short: "Record whether an answered decision turned out to be right",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var success bool
		switch strings.ToLower(args[1]) {
		case "success", "ok", "true":
			success = true
		case "failure", "fail", "false":
		default:
			return fmt.Errorf("outcome must be success or failure, got %q", args[1])
		}

		store, err := openJournal()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetOutcome(context.Background(), args[0], success); err != nil {
			return err
		}
		fmt.Printf("Recorded %s for %s\n", strings.ToLower(args[1]), args[0])
		return nil
	},
}

// --- shared helpers ---

func historyOptsFromFlags(cmd *cobra.Command, args []string) (journal.QueryOptions, error) {
	opts := journal.QueryOptions{Text: strings.Join(args, " ")}
	if t, _ := cmd.Flags().GetString("type"); t != "" {
		qt, ok := types.ParseQueryType(t)
		if !ok {
			return opts, fmt.Errorf("unknown query type %q", t)
		}
		opts.Type = qt
	}
	answered, _ := cmd.Flags().GetBool("answered")
	declined, _ := cmd.Flags().GetBool("declined")
	switch {
	case answered && declined:
		return opts, fmt.Errorf("--answered and --declined are mutually exclusive")
	case answered:
		opts.Responded = &answered
	case declined:
		no := false
		opts.Responded = &no
	}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		opts.Since = time.Now().Add(-since)
	}
	if cmd.Flags().Lookup("limit") != nil {
		opts.Limit, _ = cmd.Flags().GetInt("limit")
	}
	return opts, nil
}

func addHistoryFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "filter by query type")
	cmd.Flags().Bool("answered", false, "only decisions that answered")
	cmd.Flags().Bool("declined", false, "only decisions that declined")
	cmd.Flags().Duration("since", 0, "only decisions newer than this (e.g. 24h)")
}

func verdict(respond bool) string {
	if respond {
		return "answer"
	}
	return "decline"
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	addHistoryFilterFlags(historyListCmd)
	historyListCmd.Flags().Int("limit", journal.DefaultRecent, "maximum decisions")
	historyListCmd.Flags().Bool("json", false, "output as JSON")
	historyShowCmd.Flags().Bool("json", false, "output as JSON")
	historySummaryCmd.Flags().Bool("json", false, "output as JSON")

	addHistoryFilterFlags(historyExportCmd)
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().String("output", "", "write to this file instead of stdout")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySummaryCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyOutcomeCmd)

	rootCmd.AddCommand(historyCmd)
}
