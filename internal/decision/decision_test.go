// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
	"github.com/pdiddy/evidence-engine/internal/quality"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func newEngine(t *testing.T, mutate func(*types.DecisionConfig), opts ...Option) *Engine {
	t.Helper()
	cfg := types.DefaultEngineConfig().Decision
	if mutate != nil {
		mutate(&cfg)
	}
	n := 0
	opts = append([]Option{WithIDs(func() string {
		n++
		return fmt.Sprintf("d%d", n)
	})}, opts...)
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func ranked(scores ...float64) []types.Result {
	out := make([]types.Result, len(scores))
	for i, s := range scores {
		out[i] = types.Result{
			Title:     fmt.Sprintf("result %d", i),
			URL:       fmt.Sprintf("https://site%d.example/r", i),
			Relevance: &types.RelevanceScore{Overall: s},
		}
	}
	return out
}

var testQuery = types.Query{Text: "go channels"}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	_, err := New(types.DecisionConfig{Strategy: "reckless"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reckless")

	e, err := New(types.DecisionConfig{})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyBalanced, e.Strategy())
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"conservative", "balanced", "aggressive", "adaptive"} {
		got, err := ParseStrategy(s)
		require.NoError(t, err)
		assert.Equal(t, types.DecisionStrategy(s), got)
	}
	_, err := ParseStrategy("")
	assert.Error(t, err)
}

func TestBaseThreshold(t *testing.T) {
	assert.InDelta(t, 0.85, BaseThreshold(types.QueryComparative), 1e-9)
	assert.InDelta(t, 0.65, BaseThreshold("unknown"), 1e-9)
}

// The balanced threshold is inclusive: exactly the adjusted threshold
// answers, the next float below does not.
func TestBalancedThresholdBoundary(t *testing.T) {
	contexts := []types.DecisionContext{
		{QueryType: types.QueryTechnical},
		{QueryType: types.QueryTechnical, Urgent: true},
		{QueryType: types.QueryFactual, Urgent: true, Expertise: types.ExpertiseExpert},
		{QueryType: types.QueryGeneral, Urgent: true, Expertise: types.ExpertiseExpert},
		{QueryType: types.QueryComparative, Expertise: types.ExpertiseExpert},
	}
	for _, dc := range contexts {
		t.Run(fmt.Sprintf("%s/urgent=%v/%s", dc.QueryType, dc.Urgent, dc.Expertise), func(t *testing.T) {
			e := newEngine(t, nil)
			probe := e.Decide(testQuery, types.QualityAssessment{QueryType: dc.QueryType}, nil, dc)
			th, ok := probe.Metadata["threshold"]
			require.True(t, ok)
			require.GreaterOrEqual(t, th, balancedFloor)

			at := e.Decide(testQuery, types.QualityAssessment{QueryType: dc.QueryType, Confidence: th}, nil, dc)
			assert.True(t, at.ShouldRespond, at.Reasoning)

			below := e.Decide(testQuery, types.QualityAssessment{QueryType: dc.QueryType, Confidence: math.Nextafter(th, 0)}, nil, dc)
			assert.False(t, below.ShouldRespond, below.Reasoning)
		})
	}
}

func TestBalancedAdjustments(t *testing.T) {
	e := newEngine(t, nil)
	d := e.Decide(testQuery, types.QualityAssessment{}, nil,
		types.DecisionContext{QueryType: types.QueryGeneral, Urgent: true, Expertise: types.ExpertiseExpert})
	assert.InDelta(t, 0.65, d.Metadata["base_threshold"], 1e-9)
	assert.InDelta(t, balancedFloor, d.Metadata["threshold"], 1e-9)
	assert.Equal(t, []string{"urgent -0.10", "expert user -0.05"}, d.Adjustments[:2])
}

func TestBalancedSatisfactoryShortcut(t *testing.T) {
	e := newEngine(t, nil)
	a := types.QualityAssessment{QueryType: types.QueryComparative, Satisfactory: true, Confidence: 0.62}
	assert.True(t, e.Decide(testQuery, a, nil, types.DecisionContext{}).ShouldRespond)

	a.Satisfactory = false
	assert.False(t, e.Decide(testQuery, a, nil, types.DecisionContext{}).ShouldRespond)
}

// A comparative query answered from a single domain is declined even at
// confidence 0.8.
func TestFlutterVsReactNativeDeclined(t *testing.T) {
	q := types.Query{Text: "Flutter vs React Native performance"}
	snippet := "Flutter and React Native performance compared: rendering, startup time and memory usage across devices. " +
		"Flutter compiles ahead of time while React Native uses a JavaScript bridge."
	results := []types.Result{
		{URL: "https://medium.com/a", Title: "Flutter vs React Native performance", Snippet: snippet,
			Relevance: &types.RelevanceScore{Overall: 0.85, Authority: 0.9}},
		{URL: "https://medium.com/b", Title: "React Native vs Flutter performance", Snippet: snippet,
			Relevance: &types.RelevanceScore{Overall: 0.8, Authority: 0.9}},
	}

	a := quality.New().Classify(q, results, []string{"duckduckgo"})
	require.Equal(t, types.QueryComparative, a.QueryType)
	require.False(t, a.Satisfactory)
	require.NotEmpty(t, a.Issues)
	assert.True(t, strings.HasPrefix(a.Issues[0], quality.IssueDiversity))
	a.Confidence = 0.8

	e := newEngine(t, nil)
	d := e.Decide(q, a, results, types.DecisionContext{})
	assert.False(t, d.ShouldRespond)
	assert.Equal(t, types.StrategyBalanced, d.Strategy)
	assert.InDelta(t, 0.85, d.Metadata["threshold"], 1e-9)
	assert.Contains(t, d.Reasoning, "insufficient source diversity")
	assert.Contains(t, d.Recommendations, "Broaden the search to more independent sources.")
	assert.Equal(t, "flutter vs react native performance comparison", d.SuggestedQuery)
}

func TestConservative(t *testing.T) {
	e := newEngine(t, nil)
	dc := types.DecisionContext{QueryType: types.QueryTechnical}
	good := types.QualityAssessment{Satisfactory: true, Confidence: 0.85, Authority: 0.8}

	d := e.DecideWith(types.StrategyConservative, testQuery, good, ranked(0.1, 0.9, 0.5, 0.7, 0.3), dc)
	assert.True(t, d.ShouldRespond, d.Reasoning)
	assert.InDelta(t, 0.8, d.Metadata["threshold"], 1e-9)
	require.Len(t, d.SelectedResults, conservativeTop)
	assert.InDelta(t, 0.9, d.SelectedResults[0].OverallScore(), 1e-9)
	assert.InDelta(t, 0.7, d.SelectedResults[1].OverallScore(), 1e-9)
	assert.InDelta(t, 0.5, d.SelectedResults[2].OverallScore(), 1e-9)
	assert.Empty(t, d.Recommendations)
	assert.Empty(t, d.SuggestedQuery)

	weak := good
	weak.Authority = 0.6
	assert.False(t, e.DecideWith(types.StrategyConservative, testQuery, weak, nil, dc).ShouldRespond)

	low := good
	low.Confidence = 0.75
	assert.False(t, e.DecideWith(types.StrategyConservative, testQuery, low, nil, dc).ShouldRespond)

	unsat := good
	unsat.Satisfactory = false
	assert.False(t, e.DecideWith(types.StrategyConservative, testQuery, unsat, nil, dc).ShouldRespond)
}

func TestAggressive(t *testing.T) {
	e := newEngine(t, nil)
	dc := types.DecisionContext{QueryType: types.QueryGeneral}

	d := e.DecideWith(types.StrategyAggressive, testQuery, types.QualityAssessment{Confidence: 0.5}, nil, dc)
	assert.True(t, d.ShouldRespond)
	assert.InDelta(t, 0.45, d.Metadata["threshold"], 1e-9)

	d = e.DecideWith(types.StrategyAggressive, testQuery, types.QualityAssessment{Confidence: 0.35}, ranked(0.2, 0.55), dc)
	assert.True(t, d.ShouldRespond, d.Reasoning)
	assert.InDelta(t, 0.55, d.Metadata["best_relevance"], 1e-9)

	d = e.DecideWith(types.StrategyAggressive, testQuery, types.QualityAssessment{Confidence: 0.35}, ranked(0.2, 0.49), dc)
	assert.False(t, d.ShouldRespond)

	many := ranked(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9)
	d = e.DecideWith(types.StrategyAggressive, testQuery, types.QualityAssessment{Confidence: 0.9}, many, dc)
	assert.Len(t, d.SelectedResults, aggressiveTop)
}

func TestMinConfidenceIsHardFloor(t *testing.T) {
	e := newEngine(t, nil)
	d := e.DecideWith(types.StrategyAggressive, testQuery, types.QualityAssessment{Confidence: 0.2}, ranked(0.9), types.DecisionContext{})
	assert.False(t, d.ShouldRespond)
	assert.Contains(t, d.Reasoning, "below the minimum")
	assert.Contains(t, d.Adjustments, "minimum confidence 0.30")

	open := newEngine(t, func(c *types.DecisionConfig) { c.MinConfidence = 0 })
	assert.True(t, open.DecideWith(types.StrategyAggressive, testQuery, types.QualityAssessment{Confidence: 0.2}, ranked(0.9), types.DecisionContext{}).ShouldRespond)
}

func TestUnknownStrategyFallsBackToBalanced(t *testing.T) {
	e := newEngine(t, nil)
	d := e.DecideWith("mystery", testQuery, types.QualityAssessment{Confidence: 0.9}, nil, types.DecisionContext{})
	assert.Equal(t, types.StrategyBalanced, d.Strategy)
	assert.True(t, d.ShouldRespond)
}

func TestAdaptivePullsTowardConfidence(t *testing.T) {
	e := newEngine(t, func(c *types.DecisionConfig) { c.Strategy = types.StrategyAdaptive })
	assert.InDelta(t, 0.65, e.Threshold(types.QueryGeneral), 1e-9)

	d := e.Decide(testQuery, types.QualityAssessment{QueryType: types.QueryGeneral, Confidence: 0.9}, nil, types.DecisionContext{})
	require.True(t, d.ShouldRespond)
	assert.InDelta(t, 0.65, d.Metadata["threshold"], 1e-9)
	assert.InDelta(t, 0.675, e.Threshold(types.QueryGeneral), 1e-9)

	// Other types keep their own state.
	assert.InDelta(t, 0.85, e.Threshold(types.QueryComparative), 1e-9)
}

func TestAdaptiveLowConfidenceRunRaisesThreshold(t *testing.T) {
	e := newEngine(t, func(c *types.DecisionConfig) { c.Strategy = types.StrategyAdaptive })
	low := types.QualityAssessment{QueryType: types.QueryTechnical, Confidence: 0.2}

	e.Decide(testQuery, low, nil, types.DecisionContext{})
	e.Decide(testQuery, low, nil, types.DecisionContext{})
	assert.InDelta(t, 0.70, e.Threshold(types.QueryTechnical), 1e-9)

	e.Decide(testQuery, low, nil, types.DecisionContext{})
	assert.InDelta(t, 0.75, e.Threshold(types.QueryTechnical), 1e-9)

	// A confident decision breaks the run.
	e.Decide(testQuery, low, nil, types.DecisionContext{})
	e.Decide(testQuery, types.QualityAssessment{QueryType: types.QueryTechnical, Confidence: 0.6}, nil, types.DecisionContext{})
	e.Decide(testQuery, low, nil, types.DecisionContext{})
	e.Decide(testQuery, low, nil, types.DecisionContext{})
	assert.InDelta(t, 0.75, e.Threshold(types.QueryTechnical), 1e-9)
}

func TestRecordOutcome(t *testing.T) {
	e := newEngine(t, func(c *types.DecisionConfig) { c.Strategy = types.StrategyAdaptive })
	a := types.QualityAssessment{QueryType: types.QueryGeneral, Confidence: 0.9}

	d := e.Decide(testQuery, a, nil, types.DecisionContext{})
	require.InDelta(t, 0.675, e.Threshold(types.QueryGeneral), 1e-9)

	require.NoError(t, e.RecordOutcome(d.ID, true))
	assert.InDelta(t, 0.625, e.Threshold(types.QueryGeneral), 1e-9)

	require.NoError(t, e.RecordOutcome(d.ID, false))
	assert.InDelta(t, 0.675, e.Threshold(types.QueryGeneral), 1e-9)

	err := e.RecordOutcome("missing", true)
	assert.ErrorIs(t, err, ErrUnknownDecision)

	m := e.Metrics()
	assert.Equal(t, 1, m.Successes)
	assert.Equal(t, 1, m.Failures)
}

func TestRecordOutcomeClamps(t *testing.T) {
	e := newEngine(t, func(c *types.DecisionConfig) { c.Strategy = types.StrategyAdaptive })
	d := e.Decide(testQuery, types.QualityAssessment{QueryType: types.QueryGeneral, Confidence: 0.95}, nil, types.DecisionContext{})
	for rangeIter := 0; rangeIter < 20; rangeIter++ {
		require.NoError(t, e.RecordOutcome(d.ID, true))
	}
	assert.InDelta(t, minLearned, e.Threshold(types.QueryGeneral), 1e-9)

	for rangeIter := 0; rangeIter < 20; rangeIter++ {
		require.NoError(t, e.RecordOutcome(d.ID, false))
	}
	assert.InDelta(t, maxLearned, e.Threshold(types.QueryGeneral), 1e-9)
}

func TestRecordOutcomeNonAdaptiveLeavesThresholds(t *testing.T) {
	e := newEngine(t, nil)
	d := e.Decide(testQuery, types.QualityAssessment{QueryType: types.QueryGeneral, Confidence: 0.9}, nil, types.DecisionContext{})
	require.NoError(t, e.RecordOutcome(d.ID, true))
	assert.InDelta(t, 0.65, e.Threshold(types.QueryGeneral), 1e-9)
	assert.Equal(t, 1, e.Metrics().Successes)
}

func TestHistoryIsBounded(t *testing.T) {
	e := newEngine(t, func(c *types.DecisionConfig) { c.HistorySize = 3 })
	for rangeIter := 0; rangeIter < 5; rangeIter++ {
		e.Decide(testQuery, types.QualityAssessment{Confidence: 0.9}, nil, types.DecisionContext{})
	}
	h := e.History()
	require.Len(t, h, 3)
	assert.Equal(t, "d3", h[0].ID)
	assert.Equal(t, "d5", h[2].ID)

	// Evicted decisions no longer accept outcomes.
	assert.ErrorIs(t, e.RecordOutcome("d1", true), ErrUnknownDecision)
}

func TestMetrics(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newEngine(t, nil, WithClock(func() time.Time { return at }))

	d := e.Decide(testQuery, types.QualityAssessment{Confidence: 0.9}, nil, types.DecisionContext{})
	assert.Equal(t, at, d.Timestamp)
	e.Decide(testQuery, types.QualityAssessment{Confidence: 0.1}, nil, types.DecisionContext{})
	e.DecideWith(types.StrategyAggressive, testQuery, types.QualityAssessment{Confidence: 0.7}, nil, types.DecisionContext{})
	e.DecideWith(types.StrategyConservative, testQuery, types.QualityAssessment{Confidence: 0.5}, nil, types.DecisionContext{})

	m := e.Metrics()
	assert.Equal(t, 4, m.Decisions)
	assert.Equal(t, 2, m.Responded)
	assert.InDelta(t, 0.5, m.ResponseRate, 1e-9)
	assert.InDelta(t, 0.55, m.MeanConfidence, 1e-9)
	assert.Equal(t, 2, m.ByStrategy[types.StrategyBalanced])
	assert.Equal(t, 1, m.ByStrategy[types.StrategyAggressive])

	empty := newEngine(t, nil).Metrics()
	assert.Zero(t, empty.Decisions)
	assert.Zero(t, empty.ResponseRate)
}

func TestDeclineCarriesRecommendations(t *testing.T) {
	e := newEngine(t, nil)
	a := types.QualityAssessment{
		QueryType:      types.QueryTechnical,
		Confidence:     0.4,
		Issues:         []string{"low source authority (0.30 < 0.50)"},
		Recommendation: "Prefer authoritative sources such as official documentation.",
	}
	d := e.Decide(types.Query{Text: "Kubernetes ingress"}, a, nil, types.DecisionContext{Attempt: 2})
	require.False(t, d.ShouldRespond)
	assert.Equal(t, []string{
		"Prefer authoritative sources such as official documentation.",
		"address: low source authority (0.30 < 0.50)",
	}, d.Recommendations)
	assert.Equal(t, "kubernetes ingress official documentation", d.SuggestedQuery)
	assert.InDelta(t, 2, d.Metadata["attempt"], 1e-9)
	assert.True(t, strings.HasPrefix(d.Reasoning, "decline: "))
}

func TestSuggestQuery(t *testing.T) {
	lex := lexicon.Default()
	tests := []struct {
		name  string
		text  string
		qt    types.QueryType
		issue string
		want  string
	}{
		{"coverage drops stopwords", "What is the Go scheduler", types.QueryFactual, "low query coverage (40% of query terms)", "go scheduler"},
		{"no results", "how to install go", types.QueryProcedural, quality.IssueNoResults, "install go"},
		{"authority", "go modules", types.QueryTechnical, "low source authority (0.30 < 0.50)", "go modules official documentation"},
		{"depth", "goroutines", types.QueryGeneral, "shallow content (0.10 < 0.20)", "goroutines in depth"},
		{"diversity comparative", "go vs rust", types.QueryComparative, "insufficient source diversity (1 of 3 domains)", "go vs rust comparison"},
		{"diversity general", "go generics", types.QueryFactual, quality.IssueMultiSource, "go generics overview"},
		{"suffix not repeated", "go modules official documentation", types.QueryTechnical, "low source authority (0.30 < 0.50)", ""},
		{"unchanged rewrite", "go scheduler", types.QueryGeneral, quality.IssueCoverage, ""},
		{"unknown issue", "go scheduler", types.QueryGeneral, "something else", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := types.QualityAssessment{QueryType: tt.qt, Issues: []string{tt.issue}}
			assert.Equal(t, tt.want, SuggestQuery(lex, types.Query{Text: tt.text}, a))
		})
	}
	assert.Empty(t, SuggestQuery(lex, types.Query{}, types.QualityAssessment{Issues: []string{quality.IssueNoResults}}))
}
