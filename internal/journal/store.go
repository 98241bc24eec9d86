// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal persists response decisions to a local SQLite database so
// operators can review what the engine answered, what it declined, and why.
// The journal is optional: the engine works with process-lifetime state
// only, and a journal that fails to write never fails a request.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultRecent is the number of entries Recent returns for a zero limit.
const DefaultRecent = 20

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one decision cycle as recorded in the journal.
type Entry struct {
	Query    types.Query            `json:"query" yaml:"query"`
	Provider string                 `json:"provider" yaml:"provider"`
	Attempt  int                    `json:"attempt" yaml:"attempt"`
	Decision types.ResponseDecision `json:"decision" yaml:"decision"`
}

// Store manages the journal database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			query TEXT NOT NULL,
			query_type TEXT,
			strategy TEXT NOT NULL,
			provider TEXT,
			attempt INTEGER,
			should_respond INTEGER NOT NULL,
			confidence REAL,
			reasoning TEXT,
			suggested_query TEXT,
			assessment TEXT,
			metadata TEXT,
			outcome TEXT,
			decided_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS selected_results (
			decision_id TEXT NOT NULL REFERENCES decisions(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			domain TEXT,
			source TEXT,
			relevance REAL,
			PRIMARY KEY (decision_id, rank)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_query_type ON decisions(query_type)`,
		`CREATE INDEX IF NOT EXISTS idx_selected_domain ON selected_results(domain)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores one decision cycle with its selected results. Recording
// the same decision ID twice replaces the earlier row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	d := e.Decision
	if d.ID == "" {
		return fmt.Errorf("decision has no id")
	}

	assessment, err := json.Marshal(d.Assessment)
	if err != nil {
		return fmt.Errorf("marshaling assessment: %w", err)
	}
	metadata, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE id = ?`, d.ID); err != nil {
		return fmt.Errorf("replacing decision %s: %w", d.ID, err)
	}

	decidedAt := d.Timestamp
	if decidedAt.IsZero() {
		decidedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decisions (id, query, query_type, strategy, provider, attempt,
			should_respond, confidence, reasoning, suggested_query, assessment, metadata, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, e.Query.Text, string(d.Assessment.QueryType), string(d.Strategy), e.Provider, e.Attempt,
		d.ShouldRespond, d.Confidence, d.Reasoning, d.SuggestedQuery,
		string(assessment), string(metadata), decidedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("inserting decision %s: %w", d.ID, err)
	}

	for i, r := range d.SelectedResults {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO selected_results (decision_id, rank, url, title, domain, source, relevance)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, i+1, r.URL, r.Title, r.Domain(), r.Source, r.OverallScore(),
		); err != nil {
			return fmt.Errorf("inserting result %d of %s: %w", i+1, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing decision %s: %w", d.ID, err)
	}
	return nil
}

// SetOutcome stores the caller's feedback for a recorded decision.
func (s *Store) SetOutcome(ctx context.Context, id string, success bool) error {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	res, err := s.db.ExecContext(ctx, `UPDATE decisions SET outcome = ? WHERE id = ?`, outcome, id)
	if err != nil {
		return fmt.Errorf("updating outcome of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("decision %s not in journal", id)
	}
	return nil
}
