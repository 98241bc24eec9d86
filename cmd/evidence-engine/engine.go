// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/gate"
	"github.com/pdiddy/evidence-engine/internal/journal"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// openEngine builds the gate from the loaded config, attaching the journal
// when one is configured. The returned func releases both.
func openEngine() (*gate.Engine, *journal.Store, func(), error) {
	var (
		store *journal.Store
		opts  []gate.Option
	)
	if path := engineConfig.Journal.Path; path != "" {
		s, err := journal.Open(path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening journal: %w", err)
		}
		store = s
		opts = append(opts, gate.WithJournal(store))
	}

	eng, err := gate.Build(engineConfig, logger, opts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, nil, err
	}
	return eng, store, func() {
		eng.Close()
		if store != nil {
			store.Close()
		}
	}, nil
}

// openJournal opens the configured journal or explains how to enable it.
func openJournal() (*journal.Store, error) {
	path := engineConfig.Journal.Path
	if path == "" {
		return nil, fmt.Errorf("no journal configured: set journal.path or pass --journal")
	}
	return journal.Open(path)
}

// queryFromFlags builds a query from positional args and the shared query
// flags.
func queryFromFlags(cmd *cobra.Command, args []string) (types.Query, error) {
	q := types.Query{Text: strings.TrimSpace(strings.Join(args, " "))}
	if q.Text == "" {
		return q, fmt.Errorf("provide a query")
	}
	if t, _ := cmd.Flags().GetString("type"); t != "" {
		qt, ok := types.ParseQueryType(t)
		if !ok {
			return q, fmt.Errorf("unknown query type %q: use factual, technical, explanatory, procedural, comparative or general", t)
		}
		q.Type = qt
	}
	q.MaxResults, _ = cmd.Flags().GetInt("max-results")
	q.Language, _ = cmd.Flags().GetString("lang")
	q.TimeRange, _ = cmd.Flags().GetString("time")
	q.Domains, _ = cmd.Flags().GetStringSlice("site")
	q.ExcludeTerms, _ = cmd.Flags().GetStringSlice("exclude")
	return q, nil
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "query type (default: detected): factual, technical, explanatory, procedural, comparative, general")
	cmd.Flags().Int("max-results", 0, "maximum results (0 = provider default)")
	cmd.Flags().String("lang", "", "ISO 639-1 language code")
	cmd.Flags().String("time", "", "time range: day, week, month or year")
	cmd.Flags().StringSlice("site", nil, "restrict results to these domains")
	cmd.Flags().StringSlice("exclude", nil, "terms results must not contain")
}

// writeYAML saves v to path.
func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
