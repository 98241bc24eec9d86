// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration after defaults, the config file, environment
variables, secrets and flags have been merged. API keys are masked unless
--show-secrets is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := engineConfig
		if show, _ := cmd.Flags().GetBool("show-secrets"); !show {
			cfg = maskSecrets(cfg)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "# config file: %s\n", used)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		return enc.Close()
	},
}

func maskSecrets(cfg types.EngineConfig) types.EngineConfig {
	mask := func(s *string) {
		if len(*s) > 4 {
			*s = "****" + (*s)[len(*s)-4:]
		} else if *s != "" {
			*s = "****"
		}
	}
	mask(&cfg.Providers.Brave.APIKey)
	mask(&cfg.Embedding.APIKey)
	return cfg
}

func init() {
	configCmd.Flags().Bool("show-secrets", false, "print API keys unmasked")
	rootCmd.AddCommand(configCmd)
}
