// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider credentials from a directory of plain-text
// files. Each file is one secret: the filename is the key and the trimmed
// contents are the value. Apply copies known keys into an engine config
// without overriding values already set by the config file or environment.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Known key files.
const (
	BraveAPIKey     = "brave-api-key"
	SearXNGURL      = "searxng-url"
	EmbeddingAPIKey = "openai-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log *zap.Logger) (map[string]string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("key", name), zap.Error(err))
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills empty credential fields of cfg from s and returns the keys it
// used. A SearXNG URL also enables that provider.
func Apply(cfg *types.EngineConfig, s map[string]string) []string {
	var used []string
	fill := func(dst *string, key string) bool {
		v, ok := s[key]
		if !ok || *dst != "" {
			return false
		}
		*dst = v
		used = append(used, key)
		return true
	}

	fill(&cfg.Providers.Brave.APIKey, BraveAPIKey)
	if fill(&cfg.Providers.SearXNG.BaseURL, SearXNGURL) {
		cfg.Providers.SearXNG.Enabled = true
	}
	fill(&cfg.Embedding.APIKey, EmbeddingAPIKey)
	return used
}
