// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// OutcomeFile is the on-disk representation of a search and its results.
// A saved search can be reloaded later without querying providers again.
type OutcomeFile struct {
	Query    types.Query    `yaml:"query"`
	Provider string         `yaml:"provider"`
	Results  []types.Result `yaml:"results"`
	Summary  OutcomeSummary `yaml:"summary"`
}

// OutcomeSummary stores result statistics and a timestamp.
type OutcomeSummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	Attempts          []Attempt `yaml:"attempts,omitempty"`
	Cached            bool      `yaml:"cached,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// WriteOutcomeFile saves an outcome to a YAML file.
func WriteOutcomeFile(path string, out Outcome) error {
	of := OutcomeFile{
		Query:    out.Query,
		Provider: out.Provider,
		Results:  out.Results,
		Summary: OutcomeSummary{
			Total:             len(out.Results),
			DuplicatesRemoved: out.DupsRemoved,
			Attempts:          out.Attempts,
			Cached:            out.Cached,
			Timestamp:         time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&of)
	if err != nil {
		return fmt.Errorf("marshaling outcome file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadOutcomeFile loads a previously saved outcome file from disk.
func ReadOutcomeFile(path string) (*OutcomeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading outcome file: %w", err)
	}
	var of OutcomeFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return nil, fmt.Errorf("parsing outcome file: %w", err)
	}
	return &of, nil
}

// ToOutcome converts the stored file back into an Outcome.
func (f *OutcomeFile) ToOutcome() Outcome {
	return Outcome{
		Query:       f.Query,
		Provider:    f.Provider,
		Results:     f.Results,
		DupsRemoved: f.Summary.DuplicatesRemoved,
		Attempts:    f.Summary.Attempts,
		Cached:      true,
	}
}
