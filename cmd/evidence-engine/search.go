// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the web and rank results by relevance",
	Long: `Search sends the query to the best available provider, falling back to
the next one on failure, and prints the deduplicated results ranked by
relevance. Use --save to keep the outcome as YAML and --load to print a saved
outcome without searching again.`,
	RunE: runSearch,
}

func init() {
	addQueryFlags(searchCmd)
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("save", "", "write the outcome to this YAML file")
	searchCmd.Flags().String("load", "", "print a saved outcome instead of searching")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if path, _ := cmd.Flags().GetString("load"); path != "" {
		f, err := search.ReadOutcomeFile(path)
		if err != nil {
			return err
		}
		return printOutcome(f.ToOutcome(), jsonOutput)
	}

	q, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	eng, _, closeAll, err := openEngine()
	if err != nil {
		return err
	}
	defer closeAll()

	out, err := eng.Search(context.Background(), q)
	if err != nil {
		return fmt.Errorf("could not search: %w", err)
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := search.WriteOutcomeFile(path, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %d results to %s\n", len(out.Results), path)
	}
	return printOutcome(out, jsonOutput)
}

func printOutcome(out search.Outcome, jsonOutput bool) error {
	if jsonOutput {
		return search.FormatJSON(out, os.Stdout)
	}
	search.FormatTable(out, os.Stdout)
	return nil
}
