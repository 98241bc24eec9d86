// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrNotFound is returned by Get for an unknown decision ID.
var ErrNotFound = errors.New("decision not in journal")

// QueryOptions filters journal listings.
type QueryOptions struct {
	// Text matches query text or reasoning, case-insensitively.
	Text string

	// Type filters by detected query type.
	Type types.QueryType

	// Responded, when non-nil, keeps only answered (true) or declined
	// (false) decisions.
	Responded *bool

	// Since keeps decisions made at or after this time.
	Since time.Time

	// Limit caps the number of rows. Zero uses DefaultRecent.
	Limit int
}

// Record is a journal row with its selected results.
type Record struct {
	ID             string                  `json:"id" yaml:"id"`
	Query          string                  `json:"query" yaml:"query"`
	QueryType      types.QueryType         `json:"query_type" yaml:"query_type"`
	Strategy       types.DecisionStrategy  `json:"strategy" yaml:"strategy"`
	Provider       string                  `json:"provider" yaml:"provider"`
	Attempt        int                     `json:"attempt" yaml:"attempt"`
	ShouldRespond  bool                    `json:"should_respond" yaml:"should_respond"`
	Confidence     float64                 `json:"confidence" yaml:"confidence"`
	Reasoning      string                  `json:"reasoning" yaml:"reasoning"`
	SuggestedQuery string                  `json:"suggested_query,omitempty" yaml:"suggested_query,omitempty"`
	Assessment     types.QualityAssessment `json:"assessment" yaml:"assessment"`
	Metadata       map[string]float64      `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Outcome        string                  `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	DecidedAt      time.Time               `json:"decided_at" yaml:"decided_at"`
	Results        []SelectedResult        `json:"results,omitempty" yaml:"results,omitempty"`
}

// SelectedResult is one result chosen by a decision.
type SelectedResult struct {
	Rank      int     `json:"rank" yaml:"rank"`
	URL       string  `json:"url" yaml:"url"`
	Title     string  `json:"title" yaml:"title"`
	Domain    string  `json:"domain" yaml:"domain"`
	Source    string  `json:"source,omitempty" yaml:"source,omitempty"`
	Relevance float64 `json:"relevance" yaml:"relevance"`
}

const recordColumns = `id, query, query_type, strategy, provider, attempt, should_respond,
	confidence, reasoning, suggested_query, assessment, metadata, outcome, decided_at`

// Recent lists decisions matching opts, newest first.
func (s *Store) Recent(ctx context.Context, opts QueryOptions) ([]Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultRecent
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + recordColumns + ` FROM decisions WHERE 1=1`)

	if opts.Text != "" {
		like := "%" + strings.ToLower(opts.Text) + "%"
		qb.WriteString(` AND (lower(query) LIKE ? OR lower(reasoning) LIKE ?)`)
		args = append(args, like, like)
	}
	if opts.Type != "" {
		qb.WriteString(` AND query_type = ?`)
		args = append(args, string(opts.Type))
	}
	if opts.Responded != nil {
		qb.WriteString(` AND should_respond = ?`)
		args = append(args, *opts.Responded)
	}
	if !opts.Since.IsZero() {
		qb.WriteString(` AND decided_at >= ?`)
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}
	qb.WriteString(` ORDER BY decided_at DESC, rowid DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	for i := range records {
		if records[i].Results, err = s.selected(ctx, records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Get returns one decision with its selected results.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM decisions WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, err
	}
	if r.Results, err = s.selected(ctx, id); err != nil {
		return Record{}, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r                            Record
		queryType, strategy          string
		provider, reasoning          sql.NullString
		suggested, outcome           sql.NullString
		assessmentJSON, metadataJSON sql.NullString
		attempt                      sql.NullInt64
		confidence                   sql.NullFloat64
		decidedAt                    string
	)
	if err := sc.Scan(
		&r.ID, &r.Query, &queryType, &strategy, &provider, &attempt, &r.ShouldRespond,
		&confidence, &reasoning, &suggested, &assessmentJSON, &metadataJSON, &outcome, &decidedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scanning row: %w", err)
	}

	r.QueryType = types.QueryType(queryType)
	r.Strategy = types.DecisionStrategy(strategy)
	r.Provider = provider.String
	r.Attempt = int(attempt.Int64)
	r.Confidence = confidence.Float64
	r.Reasoning = reasoning.String
	r.SuggestedQuery = suggested.String
	r.Outcome = outcome.String
	if assessmentJSON.Valid {
		json.Unmarshal([]byte(assessmentJSON.String), &r.Assessment)
	}
	if metadataJSON.Valid {
		json.Unmarshal([]byte(metadataJSON.String), &r.Metadata)
	}
	if t, err := time.Parse(timeLayout, decidedAt); err == nil {
		r.DecidedAt = t
	}
	return r, nil
}

func (s *Store) selected(ctx context.Context, id string) ([]SelectedResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, url, title, domain, source, relevance
		FROM selected_results WHERE decision_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, fmt.Errorf("querying results of %s: %w", id, err)
	}
	defer rows.Close()

	var out []SelectedResult
	for rows.Next() {
		var (
			sr                    SelectedResult
			title, domain, source sql.NullString
		)
		if err := rows.Scan(&sr.Rank, &sr.URL, &title, &domain, &source, &sr.Relevance); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		sr.Title, sr.Domain, sr.Source = title.String, domain.String, source.String
		out = append(out, sr)
	}
	return out, rows.Err()
}

// Summary aggregates the whole journal.
type Summary struct {
	Decisions      int                     `json:"decisions" yaml:"decisions"`
	Responded      int                     `json:"responded" yaml:"responded"`
	MeanConfidence float64                 `json:"mean_confidence" yaml:"mean_confidence"`
	ByType         map[types.QueryType]int `json:"by_type" yaml:"by_type"`
	TopDomains     []DomainCount           `json:"top_domains,omitempty" yaml:"top_domains,omitempty"`
	Successes      int                     `json:"successes" yaml:"successes"`
	Failures       int                     `json:"failures" yaml:"failures"`
}

// DomainCount is how often a domain appeared among selected results.
type DomainCount struct {
	Domain string `json:"domain" yaml:"domain"`
	Count  int    `json:"count" yaml:"count"`
}

// topDomainLimit bounds Summary.TopDomains.
const topDomainLimit = 10

// Summary returns aggregate counts over every recorded decision.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	sum := Summary{ByType: make(map[types.QueryType]int)}

	var mean sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(should_respond), 0), avg(confidence),
			coalesce(sum(outcome = 'success'), 0), coalesce(sum(outcome = 'failure'), 0)
		FROM decisions`,
	).Scan(&sum.Decisions, &sum.Responded, &mean, &sum.Successes, &sum.Failures); err != nil {
		return Summary{}, fmt.Errorf("summarizing decisions: %w", err)
	}
	sum.MeanConfidence = mean.Float64

	rows, err := s.db.QueryContext(ctx, `SELECT coalesce(query_type, ''), count(*) FROM decisions GROUP BY query_type`)
	if err != nil {
		return Summary{}, fmt.Errorf("counting query types: %w", err)
	}
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			rows.Close()
			return Summary{}, fmt.Errorf("scanning type count: %w", err)
		}
		sum.ByType[types.QueryType(t)] = n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT domain, count(*) AS n FROM selected_results
		WHERE domain != '' GROUP BY domain ORDER BY n DESC, domain LIMIT ?`, topDomainLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("counting domains: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dc DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return Summary{}, fmt.Errorf("scanning domain count: %w", err)
		}
		sum.TopDomains = append(sum.TopDomains, dc)
	}
	return sum, rows.Err()
}
