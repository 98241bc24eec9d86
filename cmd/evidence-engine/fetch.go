// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Print the readable text of a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, closeAll, err := openEngine()
		if err != nil {
			return err
		}
		defer closeAll()

		text, err := eng.FetchPageContent(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(text)
		fmt.Fprintf(os.Stderr, "%s characters\n", humanize.Comma(int64(len([]rune(text)))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
