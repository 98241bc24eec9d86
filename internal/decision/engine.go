// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decision turns a quality assessment into a decision on whether
// the collected evidence justifies an answer. Four strategies are
// available: conservative, balanced, aggressive and adaptive. The adaptive
// strategy learns per-query-type thresholds from its own decisions and from
// outcome feedback. All learning state belongs to one Engine instance.
package decision

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrUnknownDecision is returned by RecordOutcome for an ID not in the
// history.
var ErrUnknownDecision = errors.New("decision not in history")

// Adaptive learning parameters.
const (
	minLearned = 0.3
	maxLearned = 0.9

	// adaptiveStep is the reward or penalty applied to a learned threshold.
	adaptiveStep = 0.05

	// highConfidence marks outcomes that earn a reward when successful.
	highConfidence = 0.7

	// lowConfidence outcomes count towards a penalty run.
	lowConfidence = 0.5
	lowRunLength  = 3
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for decision timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithLexicon replaces the built-in tables used for query suggestions.
func WithLexicon(lex *lexicon.Lexicon) Option {
	return func(e *Engine) { e.lex = lex }
}

// WithIDs sets the decision ID generator.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// Engine produces response decisions and keeps a bounded history. It is
// safe for concurrent use.
type Engine struct {
	cfg   types.DecisionConfig
	now   func() time.Time
	newID func() string
	lex   *lexicon.Lexicon
	log   *zap.Logger

	mu       sync.Mutex
	history  []types.ResponseDecision
	learned  map[types.QueryType]float64
	lowRun   map[types.QueryType]int
	outcomes outcomeCounts
}

type outcomeCounts struct {
	successes, failures int
}

// New creates an Engine. Zero config values take the defaults of
// types.DefaultEngineConfig.
func New(cfg types.DecisionConfig, opts ...Option) (*Engine, error) {
	def := types.DefaultEngineConfig().Decision
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
		return nil, err
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}

	e := &Engine{
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
		lex:     lexicon.Default(),
		log:     zap.NewNop(),
		learned: make(map[types.QueryType]float64),
		lowRun:  make(map[types.QueryType]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Strategy returns the configured default strategy.
func (e *Engine) Strategy() types.DecisionStrategy { return e.cfg.Strategy }

// Decide applies the configured strategy.
func (e *Engine) Decide(q types.Query, a types.QualityAssessment, results []types.Result, dc types.DecisionContext) types.ResponseDecision {
	return e.DecideWith(e.cfg.Strategy, q, a, results, dc)
}

// DecideWith applies strategy s to the assessment of results for q. An
// unknown strategy falls back to balanced. The decision is appended to the
// history before it is returned.
func (e *Engine) DecideWith(s types.DecisionStrategy, q types.Query, a types.QualityAssessment, results []types.Result, dc types.DecisionContext) types.ResponseDecision {
	if dc.QueryType == "" {
		dc.QueryType = a.QueryType
	}
	if dc.QueryType == "" {
		dc.QueryType = types.QueryGeneral
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var v verdict
	switch s {
	case types.StrategyConservative:
		v = conservative(a, dc)
	case types.StrategyAggressive:
		v = aggressive(a, results, dc)
	case types.StrategyAdaptive:
		v = adaptive(a, e.learnedLocked(dc.QueryType))
	default:
		s = types.StrategyBalanced
		v = balanced(a, dc)
	}

	if v.respond && a.Confidence < e.cfg.MinConfidence {
		v.respond = false
		v.reason = fmt.Sprintf("confidence %.2f below the minimum %.2f", a.Confidence, e.cfg.MinConfidence)
		v.adjustments = append(v.adjustments, fmt.Sprintf("minimum confidence %.2f", e.cfg.MinConfidence))
	}
	if dc.Attempt > 0 {
		v.metadata["attempt"] = float64(dc.Attempt)
	}

	d := types.ResponseDecision{
		ID:              e.newID(),
		ShouldRespond:   v.respond,
		Confidence:      a.Confidence,
		Reasoning:       reasoning(s, v, a),
		SelectedResults: topResults(results, v.top),
		Assessment:      a,
		Strategy:        s,
		Metadata:        v.metadata,
		Adjustments:     v.adjustments,
		Timestamp:       e.now(),
	}
	if !d.ShouldRespond {
		d.Recommendations = recommendations(a)
		d.SuggestedQuery = SuggestQuery(e.lex, q, a)
	}

	if s == types.StrategyAdaptive {
		e.learnLocked(dc.QueryType, d)
	}
	e.appendLocked(d)

	e.log.Debug("decision made",
		zap.String("id", d.ID),
		zap.String("strategy", string(s)),
		zap.String("query_type", string(dc.QueryType)),
		zap.Bool("respond", d.ShouldRespond),
		zap.Float64("confidence", d.Confidence),
		zap.Float64("threshold", v.threshold),
	)
	return d
}

// learnedLocked returns the learned threshold for t, seeding it from the
// base threshold on first use.
func (e *Engine) learnedLocked(t types.QueryType) float64 {
	if v, ok := e.learned[t]; ok {
		return v
	}
	v := clampLearned(BaseThreshold(t))
	e.learned[t] = v
	return v
}

// learnLocked updates the learned threshold of t after decision d.
// Accepted decisions pull the threshold toward the observed confidence;
// a run of low-confidence decisions raises it.
func (e *Engine) learnLocked(t types.QueryType, d types.ResponseDecision) {
	th := e.learnedLocked(t)
	if d.ShouldRespond {
		th += e.cfg.LearningRate * (d.Confidence - th)
	}
	if d.Confidence < lowConfidence {
		e.lowRun[t]++
		if e.lowRun[t] >= lowRunLength {
			th += adaptiveStep
			e.lowRun[t] = 0
		}
	} else {
		e.lowRun[t] = 0
	}
	e.learned[t] = clampLearned(th)
}

// RecordOutcome feeds back whether a decision worked out for the caller.
// A successful high-confidence adaptive decision lowers its type's learned
// threshold; a failed answer raises it.
func (e *Engine) RecordOutcome(id string, success bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDecision, id)
	}

	d := e.history[idx]
	if success {
		e.outcomes.successes++
	} else {
		e.outcomes.failures++
	}
	if d.Strategy != types.StrategyAdaptive {
		return nil
	}

	t := d.Assessment.QueryType
	if t == "" {
		t = types.QueryGeneral
	}
	th := e.learnedLocked(t)
	switch {
	case success && d.Confidence >= highConfidence:
		th -= adaptiveStep
	case !success && d.ShouldRespond:
		th += adaptiveStep
	}
	e.learned[t] = clampLearned(th)
	return nil
}

// Threshold returns the current learned threshold for t.
func (e *Engine) Threshold(t types.QueryType) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learnedLocked(t)
}

func (e *Engine) appendLocked(d types.ResponseDecision) {
	e.history = append(e.history, d)
	if over := len(e.history) - e.cfg.HistorySize; over > 0 {
		e.history = append(e.history[:0:0], e.history[over:]...)
	}
}

// History returns the retained decisions, oldest first.
func (e *Engine) History() []types.ResponseDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ResponseDecision(nil), e.history...)
}

// Metrics aggregates the retained history.
type Metrics struct {
	Decisions      int                            `json:"decisions" yaml:"decisions"`
	Responded      int                            `json:"responded" yaml:"responded"`
	ResponseRate   float64                        `json:"response_rate" yaml:"response_rate"`
	MeanConfidence float64                        `json:"mean_confidence" yaml:"mean_confidence"`
	ByStrategy     map[types.DecisionStrategy]int `json:"by_strategy" yaml:"by_strategy"`
	Thresholds     map[types.QueryType]float64    `json:"thresholds" yaml:"thresholds"`
	Successes      int                            `json:"successes" yaml:"successes"`
	Failures       int                            `json:"failures" yaml:"failures"`
}

// Metrics returns aggregate statistics over the history and the current
// learned thresholds.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := Metrics{
		Decisions:  len(e.history),
		ByStrategy: make(map[types.DecisionStrategy]int),
		Thresholds: make(map[types.QueryType]float64, len(e.learned)),
		Successes:  e.outcomes.successes,
		Failures:   e.outcomes.failures,
	}
	var conf float64
	for _, d := range e.history {
		if d.ShouldRespond {
			m.Responded++
		}
		conf += d.Confidence
		m.ByStrategy[d.Strategy]++
	}
	if m.Decisions > 0 {
		m.ResponseRate = float64(m.Responded) / float64(m.Decisions)
		m.MeanConfidence = conf / float64(m.Decisions)
	}
	for t, v := range e.learned {
		m.Thresholds[t] = v
	}
	return m
}

// topResults returns up to n results ordered by relevance, highest first.
func topResults(results []types.Result, n int) []types.Result {
	out := append([]types.Result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverallScore() > out[j].OverallScore()
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func reasoning(s types.DecisionStrategy, v verdict, a types.QualityAssessment) string {
	var b strings.Builder
	if v.respond {
		b.WriteString("answer: ")
	} else {
		b.WriteString("decline: ")
	}
	b.WriteString(v.reason)
	fmt.Fprintf(&b, " (%s strategy, %s query)", s, a.QueryType)
	if !v.respond && len(a.Issues) > 0 {
		b.WriteString("; issues: ")
		b.WriteString(strings.Join(a.Issues, "; "))
	}
	return b.String()
}

func recommendations(a types.QualityAssessment) []string {
	var out []string
	if a.Recommendation != "" {
		out = append(out, a.Recommendation)
	}
	for _, is := range a.Issues {
		out = append(out, "address: "+is)
	}
	return out
}

func clampLearned(v float64) float64 {
	return max(minLearned, min(maxLearned, v))
}
