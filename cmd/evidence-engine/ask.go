// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/gate"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Search and decide whether the evidence supports an answer",
	Long: `Ask searches for the question, scores and assesses the results, and
applies the decision strategy. When the evidence falls short and a better
query can be derived from the assessment, ask searches again (up to
decision.max_attempts cycles). The decision, its reasoning and the selected
sources are printed; a decline exits successfully.`,
	RunE: runAsk,
}

func init() {
	addQueryFlags(askCmd)
	askCmd.Flags().String("expertise", "", "caller expertise: novice, intermediate or expert")
	askCmd.Flags().Bool("urgent", false, "accept a lower threshold (balanced strategy)")
	askCmd.Flags().String("strategy", "", "decision strategy (default from config): conservative, balanced, aggressive, adaptive")
	askCmd.Flags().Bool("json", false, "output the answer as JSON")
	askCmd.Flags().String("save", "", "write the answer to this YAML file")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	q, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	expertise, _ := cmd.Flags().GetString("expertise")
	strategy, _ := cmd.Flags().GetString("strategy")
	urgent, _ := cmd.Flags().GetBool("urgent")
	hints, err := gate.ParseHints(expertise, strategy, urgent)
	if err != nil {
		return err
	}

	eng, _, closeAll, err := openEngine()
	if err != nil {
		return err
	}
	defer closeAll()

	answer, err := eng.Evaluate(context.Background(), q, hints)
	if err != nil {
		return fmt.Errorf("could not search: %w", err)
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := writeYAML(path, answer); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved answer to %s\n", path)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	printAnswer(os.Stdout, answer)
	return nil
}

func printAnswer(w io.Writer, a gate.Answer) {
	verdict := "DECLINE"
	if a.CanAnswer {
		verdict = "ANSWER"
	}
	d := a.Decision
	fmt.Fprintf(w, "Decision:   %s (confidence %.2f, %s strategy, %s query)\n",
		verdict, a.Confidence, d.Strategy, d.Assessment.QueryType)
	fmt.Fprintf(w, "Decision ID: %s\n", d.ID)
	fmt.Fprintf(w, "Reasoning:  %s\n", a.Reasoning)
	if len(d.Adjustments) > 0 {
		fmt.Fprintf(w, "Adjusted:   %s\n", strings.Join(d.Adjustments, ", "))
	}

	if len(a.SelectedResults) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, r := range a.SelectedResults {
			fmt.Fprintf(w, "  %d. [%.2f] %-24s %s\n", i+1, r.OverallScore(), r.Domain(), r.Title)
			fmt.Fprintf(w, "     %s\n", r.URL)
		}
	}
	if !a.CanAnswer && len(d.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range d.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}

	if len(a.Cycles) > 1 {
		fmt.Fprintln(w, "\nCycles:")
		for _, c := range a.Cycles {
			status := "declined"
			switch {
			case c.Error != "":
				status = "failed: " + c.Error
			case c.Respond:
				status = "answered"
			}
			fmt.Fprintf(w, "  %d. %q via %s: %d results, confidence %.2f, %s\n",
				c.Attempt, c.Query, c.Provider, c.Results, c.Confidence, status)
		}
	}

	cached := ""
	if a.Cached {
		cached = ", cached"
	}
	fmt.Fprintf(w, "\n%d cycle(s), %d results, %d page(s) fetched in %s%s\n",
		a.Metrics.Cycles, a.Metrics.Results, a.Metrics.PagesFetched, a.Metrics.Elapsed.Round(time.Millisecond), cached)
}
