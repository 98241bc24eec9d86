// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search and decision API over HTTP",
	Long: `Serve exposes search, ask, fetch, status and (with a journal) history as
a JSON API. The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8088)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := engineConfig.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}

	eng, store, closeAll, err := openEngine()
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	eng.Start(ctx)

	opts := []server.Option{server.WithLogger(logger), server.WithVersion(version)}
	if store != nil {
		opts = append(opts, server.WithHistory(store))
	}
	fmt.Fprintf(os.Stderr, "Listening on %s (%d providers)\n", cfg.Addr, len(eng.Manager().Providers()))
	return server.New(eng, cfg, opts...).ListenAndServe(ctx)
}
