// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gate runs the full search, score, assess and decide cycle. It is
// the entry point the CLI and the HTTP API call: Search returns ranked
// results, FetchPageContent returns one page's text, and Evaluate decides
// whether the collected evidence justifies an answer, re-querying with a
// rewritten query when the first cycle declines.
package gate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/cache"
	"github.com/pdiddy/evidence-engine/internal/decision"
	"github.com/pdiddy/evidence-engine/internal/journal"
	"github.com/pdiddy/evidence-engine/internal/quality"
	"github.com/pdiddy/evidence-engine/internal/relevance"
	"github.com/pdiddy/evidence-engine/internal/search"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxEnrichConcurrency bounds simultaneous page fetches during enrichment.
const maxEnrichConcurrency = 4

// PageFetcher returns the readable text of one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Journal persists decision cycles.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
	SetOutcome(ctx context.Context, id string, success bool) error
}

// Hints are per-request inputs to the decision.
type Hints struct {
	Expertise types.Expertise        `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Urgent    bool                   `json:"urgent,omitempty" yaml:"urgent,omitempty"`
	Strategy  types.DecisionStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// Cycle summarizes one search-score-decide pass.
type Cycle struct {
	Attempt    int     `json:"attempt" yaml:"attempt"`
	Query      string  `json:"query" yaml:"query"`
	Provider   string  `json:"provider,omitempty" yaml:"provider,omitempty"`
	Results    int     `json:"results" yaml:"results"`
	Fetched    int     `json:"fetched,omitempty" yaml:"fetched,omitempty"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Respond    bool    `json:"respond" yaml:"respond"`
	DecisionID string  `json:"decision_id" yaml:"decision_id"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Metrics describes the work behind one Answer.
type Metrics struct {
	Elapsed      time.Duration `json:"elapsed" yaml:"elapsed"`
	Cycles       int           `json:"cycles" yaml:"cycles"`
	Results      int           `json:"results" yaml:"results"`
	PagesFetched int           `json:"pages_fetched" yaml:"pages_fetched"`
	Providers    []string      `json:"providers,omitempty" yaml:"providers,omitempty"`
}

// Answer is the outcome of Evaluate. A declined answer is a normal result,
// not an error: CanAnswer is false and Reasoning says why.
type Answer struct {
	CanAnswer       bool                   `json:"can_answer" yaml:"can_answer"`
	Confidence      float64                `json:"confidence" yaml:"confidence"`
	Reasoning       string                 `json:"reasoning" yaml:"reasoning"`
	SelectedResults []types.Result         `json:"selected_results" yaml:"selected_results"`
	Decision        types.ResponseDecision `json:"decision" yaml:"decision"`
	Cycles          []Cycle                `json:"cycles" yaml:"cycles"`
	Metrics         Metrics                `json:"metrics" yaml:"metrics"`
	Cached          bool                   `json:"cached" yaml:"cached"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every decision cycle.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithFetcher replaces the page fetcher.
func WithFetcher(f PageFetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock sets the time source used for elapsed-time metrics and
// decision timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCacheStarter registers a background cleanup loop that Start runs.
func WithCacheStarter(start func(ctx context.Context)) Option {
	return func(e *Engine) { e.starters = append(e.starters, start) }
}

// Engine wires the manager, analyzer, classifier and decision engine
// together. It is safe for concurrent use.
type Engine struct {
	manager    *search.Manager
	analyzer   *relevance.Analyzer
	classifier *quality.Classifier
	decider    *decision.Engine
	fetcher    PageFetcher
	journal    Journal
	answers    *cache.Cache[Answer]
	pool       *ants.Pool
	starters   []func(ctx context.Context)

	maxAttempts int
	enrichTop   int
	log         *zap.Logger
	now         func() time.Time

	closeOnce sync.Once
}

// New creates an Engine around mgr. Relevance, quality and decision
// settings come from cfg.
func New(mgr *search.Manager, cfg types.EngineConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		manager:     mgr,
		maxAttempts: max(cfg.Decision.MaxAttempts, 1),
		enrichTop:   max(cfg.Decision.EnrichTop, 0),
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = search.NewPageFetcher(nil, 0)
	}

	assessments := cache.New[types.QualityAssessment](cfg.DecisionCache,
		cache.WithName[types.QualityAssessment]("assessments"),
		cache.WithSizeFunc[types.QualityAssessment](cache.JSONSize[types.QualityAssessment]),
		cache.WithLogger[types.QualityAssessment](e.log),
	)
	e.answers = cache.New[Answer](cfg.DecisionCache,
		cache.WithName[Answer]("answers"),
		cache.WithSizeFunc[Answer](cache.JSONSize[Answer]),
		cache.WithLogger[Answer](e.log),
	)
	e.starters = append(e.starters,
		func(ctx context.Context) { assessments.Start(ctx, cfg.DecisionCache.CleanupInterval) },
		func(ctx context.Context) { e.answers.Start(ctx, cfg.DecisionCache.CleanupInterval) },
	)

	e.analyzer = relevance.New(cfg.Relevance)
	e.classifier = quality.New(quality.WithCache(assessments), quality.WithLogger(e.log))

	dec, err := decision.New(cfg.Decision, decision.WithLogger(e.log), decision.WithClock(e.now))
	if err != nil {
		return nil, fmt.Errorf("creating decision engine: %w", err)
	}
	e.decider = dec

	pool, err := ants.NewPool(maxEnrichConcurrency)
	if err != nil {
		return nil, fmt.Errorf("creating fetch pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Start runs the cache cleanup loops until ctx ends.
func (e *Engine) Start(ctx context.Context) {
	for _, start := range e.starters {
		start(ctx)
	}
}

// Close releases the fetch pool and provider resources.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.pool.Release()
		err = e.manager.Close()
	})
	return err
}

// Manager returns the underlying search manager.
func (e *Engine) Manager() *search.Manager { return e.manager }

// Decisions returns the decision engine.
func (e *Engine) Decisions() *decision.Engine { return e.decider }

// Search runs q through the manager and returns the outcome with relevance
// scores attached, best first.
func (e *Engine) Search(ctx context.Context, q types.Query) (search.Outcome, error) {
	out, err := e.manager.Search(ctx, q)
	if err != nil {
		return out, err
	}
	out.Results = e.analyzer.ScoreAll(q, out.Results)
	return out, nil
}

// FetchPageContent returns the readable text of the page at url.
func (e *Engine) FetchPageContent(ctx context.Context, url string) (string, error) {
	if _, err := search.ParsePageURL(url); err != nil {
		return "", err
	}
	return e.fetcher.Fetch(ctx, url)
}

// SearchIntelligently evaluates free text with the type detected
// automatically.
func (e *Engine) SearchIntelligently(ctx context.Context, text string, hints Hints) (Answer, error) {
	return e.Evaluate(ctx, types.Query{Text: text}, hints)
}

// Evaluate searches for q, scores and assesses the results, and decides
// whether they justify an answer. When a cycle declines and the decision
// suggests a rewritten query, another cycle runs, up to MaxAttempts. The
// returned error is non-nil only when the first search fails; a decline is
// reported through Answer.CanAnswer.
func (e *Engine) Evaluate(ctx context.Context, q types.Query, hints Hints) (Answer, error) {
	if q.IsEmpty() {
		return Answer{}, search.ErrEmptyQuery
	}
	strategy := hints.Strategy
	if strategy == "" {
		strategy = e.decider.Strategy()
	}

	key := answerKey(q, hints, strategy)
	if a, ok := e.answers.Get(key); ok {
		a.Cached = true
		e.log.Debug("answer cache hit", zap.String("query", q.Text))
		return a, nil
	}

	start := e.now()
	var (
		cycles  []Cycle
		best    *types.ResponseDecision
		metrics Metrics
	)
	cur := q
	pages := newPageMemo()
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		d, cyc, err := e.cycle(ctx, cur, attempt, strategy, hints, pages)
		if err != nil {
			if attempt == 1 {
				return Answer{}, fmt.Errorf("searching %q: %w", q.Text, err)
			}
			cycles = append(cycles, Cycle{Attempt: attempt, Query: cur.Text, Error: err.Error()})
			e.log.Info("re-query failed", zap.String("query", cur.Text), zap.Error(err))
			break
		}
		cycles = append(cycles, cyc)
		metrics.Results += cyc.Results
		metrics.PagesFetched += cyc.Fetched
		if cyc.Provider != "" && !contains(metrics.Providers, cyc.Provider) {
			metrics.Providers = append(metrics.Providers, cyc.Provider)
		}

		if best == nil || better(d, *best) {
			best = &d
		}
		if d.ShouldRespond || d.SuggestedQuery == "" {
			break
		}
		e.log.Info("re-querying",
			zap.String("from", cur.Text),
			zap.String("to", d.SuggestedQuery),
			zap.Int("attempt", attempt+1),
		)
		cur = cur.WithText(d.SuggestedQuery)
	}

	metrics.Cycles = len(cycles)
	metrics.Elapsed = e.now().Sub(start)
	a := Answer{
		CanAnswer:       best.ShouldRespond,
		Confidence:      best.Confidence,
		Reasoning:       best.Reasoning,
		SelectedResults: best.SelectedResults,
		Decision:        *best,
		Cycles:          cycles,
		Metrics:         metrics,
	}
	if err := e.answers.Set(key, a); err != nil {
		e.log.Debug("answer cache store failed", zap.Error(err))
	}
	return a, nil
}

// cycle runs one search-score-decide pass for q.
func (e *Engine) cycle(ctx context.Context, q types.Query, attempt int, strategy types.DecisionStrategy, hints Hints, pages *pageMemo) (types.ResponseDecision, Cycle, error) {
	out, err := e.manager.Search(ctx, q)
	if err != nil {
		return types.ResponseDecision{}, Cycle{}, err
	}

	results := e.analyzer.ScoreAll(q, out.Results)
	fetched, attached := e.enrich(ctx, results, pages)
	if attached > 0 {
		results = e.analyzer.ScoreAll(q, results)
	}

	var providers []string
	if out.Provider != "" {
		providers = []string{out.Provider}
	}
	a := e.classifier.Classify(q, results, providers)
	d := e.decider.DecideWith(strategy, q, a, results, types.DecisionContext{
		QueryType: a.QueryType,
		Attempt:   attempt,
		Expertise: hints.Expertise,
		Urgent:    hints.Urgent,
	})

	if e.journal != nil {
		entry := journal.Entry{Query: q, Provider: out.Provider, Attempt: attempt, Decision: d}
		if err := e.journal.Record(ctx, entry); err != nil {
			e.log.Warn("journal write failed", zap.String("decision", d.ID), zap.Error(err))
		}
	}

	return d, Cycle{
		Attempt:    attempt,
		Query:      q.Text,
		Provider:   out.Provider,
		Results:    len(results),
		Fetched:    fetched,
		Confidence: d.Confidence,
		Respond:    d.ShouldRespond,
		DecisionID: d.ID,
	}, nil
}

// pageMemo remembers page fetches within one Evaluate so a re-query does
// not fetch the same URL twice. Failed fetches are remembered as "".
type pageMemo struct {
	mu   sync.Mutex
	text map[string]string
}

func newPageMemo() *pageMemo {
	return &pageMemo{text: make(map[string]string)}
}

func (m *pageMemo) get(url string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.text[url]
	return t, ok
}

func (m *pageMemo) put(url, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text[url] = text
}

// enrich fetches the pages of the top results that have no content yet and
// stores the text in place. Page text is kept only when it is longer than
// the snippet. It returns the number of pages fetched and the number of
// results that gained content, including ones served from pages.
func (e *Engine) enrich(ctx context.Context, results []types.Result, pages *pageMemo) (fetched, attached int) {
	n := min(e.enrichTop, len(results))
	if n == 0 {
		return 0, 0
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	attach := func(i int, text string) bool {
		if utf8.RuneCountInString(strings.TrimSpace(text)) <= utf8.RuneCountInString(results[i].Snippet) {
			return false
		}
		results[i].Content = text
		return true
	}
	for i := range results[:n] {
		if results[i].Content != "" {
			continue
		}
		if text, ok := pages.get(results[i].URL); ok {
			if attach(i, text) {
				attached++
			}
			continue
		}
		i := i // per-iteration copy; go.mod targets go1.21 (pre-1.22 loop semantics)
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			text, err := e.fetcher.Fetch(ctx, results[i].URL)
			if err != nil {
				e.log.Debug("page fetch failed", zap.String("url", results[i].URL), zap.Error(err))
				text = ""
			}
			pages.put(results[i].URL, text)
			if !attach(i, text) {
				return
			}
			mu.Lock()
			fetched++
			attached++
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			e.log.Debug("page fetch not scheduled", zap.Error(err))
		}
	}
	wg.Wait()
	return fetched, attached
}

// RecordOutcome feeds caller feedback into the adaptive thresholds and the
// journal.
func (e *Engine) RecordOutcome(ctx context.Context, id string, success bool) error {
	if err := e.decider.RecordOutcome(id, success); err != nil {
		return err
	}
	if e.journal != nil {
		if err := e.journal.SetOutcome(ctx, id, success); err != nil {
			e.log.Warn("journal outcome write failed", zap.String("decision", id), zap.Error(err))
		}
	}
	return nil
}

// Status is a diagnostic snapshot of the engine.
type Status struct {
	Providers []search.ProviderStatus `json:"providers" yaml:"providers"`
	Decisions decision.Metrics        `json:"decisions" yaml:"decisions"`
	Caches    []cache.Stats           `json:"caches" yaml:"caches"`
}

// Status returns provider, decision and cache diagnostics.
func (e *Engine) Status() Status {
	return Status{
		Providers: e.manager.Snapshot(),
		Decisions: e.decider.Metrics(),
		Caches:    []cache.Stats{e.manager.CacheStats(), e.answers.Stats()},
	}
}

// better reports whether a should be reported instead of b: an answer
// beats a decline, then higher confidence wins.
func better(a, b types.ResponseDecision) bool {
	if a.ShouldRespond != b.ShouldRespond {
		return a.ShouldRespond
	}
	return a.Confidence > b.Confidence
}

func answerKey(q types.Query, h Hints, s types.DecisionStrategy) string {
	parts := search.OutcomeKey(q) + "\x00" + string(s) + "\x00" + string(h.Expertise) + "\x00" + strconv.FormatBool(h.Urgent)
	return strconv.FormatUint(xxhash.Sum64String(parts), 16)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ParseHints validates textual hints as given on the command line or in an
// API request. Empty values are allowed.
func ParseHints(expertise, strategy string, urgent bool) (Hints, error) {
	h := Hints{Urgent: urgent}
	switch ex := types.Expertise(strings.ToLower(strings.TrimSpace(expertise))); ex {
	case "", types.ExpertiseNovice, types.ExpertiseIntermediate, types.ExpertiseExpert:
		h.Expertise = ex
	default:
		return Hints{}, fmt.Errorf("unknown expertise %q: use novice, intermediate or expert", expertise)
	}
	if s := strings.TrimSpace(strategy); s != "" {
		st, err := decision.ParseStrategy(strings.ToLower(s))
		if err != nil {
			return Hints{}, err
		}
		h.Strategy = st
	}
	return h, nil
}
