// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the evidence-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/logging"
	"github.com/pdiddy/evidence-engine/internal/secrets"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process-wide state prepared by PersistentPreRunE.
var (
	engineConfig types.EngineConfig
	logger       = zap.NewNop()
)

// envOnlyKeys have no default value, so viper would not map them to
// environment variables without an explicit binding.
var envOnlyKeys = []string{
	"http.user_agent",
	"providers.brave.api_key",
	"providers.searxng.base_url",
	"embedding.api_key",
	"journal.path",
}

// rootCmd is the base command for the evidence-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "evidence-engine",
	Short: "Web search with a quality gate that decides when the evidence supports an answer",
	Long: `evidence-engine queries several web search providers with fallback, rate
limiting and circuit breaking, scores every result for relevance, assesses
the result set against a profile for the query type, and decides whether the
evidence is strong enough to answer.

Use search for ranked results, ask for a gated decision, fetch for one page's
text, and serve to expose the same operations over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir, nil)
		if err != nil {
			return err
		}
		if used := secrets.Apply(&cfg, s); len(used) > 0 {
			sort.Strings(used)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", used)
		}

		log, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		engineConfig, logger = cfg, log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./evidence-engine.yaml or ~/.config/evidence-engine/evidence-engine.yaml)")
	pf.String("secrets-dir", ".secrets", "directory of credential files (brave-api-key, searxng-url, openai-api-key)")
	pf.String("log-level", "", "log level: debug, info, warn, error or off")
	pf.String("journal", "", "SQLite decision journal path (empty disables the journal)")

	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("journal.path", pf.Lookup("journal"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("evidence-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "evidence-engine"))
		}
	}

	viper.SetEnvPrefix("EVIDENCE_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envOnlyKeys {
		viper.BindEnv(key)
	}
	setDefaults(viper.GetViper(), types.DefaultEngineConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every leaf of cfg as a viper default so the
// matching environment variables are recognized.
func setDefaults(v *viper.Viper, cfg types.EngineConfig) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
}

// loadConfig decodes the merged viper settings over the built-in defaults.
func loadConfig() (types.EngineConfig, error) {
	cfg := types.DefaultEngineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
