// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured providers, breakers and caches",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		st := eng.Status()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return encodeJSON(st)
		}

		if len(st.Providers) == 0 {
			fmt.Println("No providers enabled.")
		} else {
			fmt.Printf("%-26s  %-8s  %-9s  %-9s  %-8s  %s\n",
				"Provider", "Priority", "Available", "Breaker", "Tokens", "Success")
			for _, p := range st.Providers {
				state := "-"
				if p.Breaker != nil {
					state = p.Breaker.State
				}
				fmt.Printf("%-26s  %-8d  %-9t  %-9s  %-8.1f  %d/%d\n",
					p.Name, p.Priority, p.Available, state, p.Limiter.Tokens,
					p.Metrics.SuccessfulSearches, p.Metrics.TotalSearches)
			}
		}

		fmt.Println("\nCaches:")
		for _, c := range st.Caches {
			fmt.Printf("  %-10s %s entries, %s of %s\n", c.Name,
				humanize.Comma(int64(c.Entries)),
				humanize.Bytes(uint64(c.Bytes)), humanize.Bytes(uint64(c.MaxBytes)))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
