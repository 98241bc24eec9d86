// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// QualityAssessment is the aggregate judgment over one result set. It is
// created once per decision cycle and not modified afterwards.
type QualityAssessment struct {
	Satisfactory       bool      `json:"satisfactory" yaml:"satisfactory"`
	Confidence         float64   `json:"confidence" yaml:"confidence"`
	Coverage           float64   `json:"coverage" yaml:"coverage"`
	Authority          float64   `json:"authority" yaml:"authority"`
	ContentDepth       float64   `json:"content_depth" yaml:"content_depth"`
	SourceDiversity    int       `json:"source_diversity" yaml:"source_diversity"`
	HighRelevanceCount int       `json:"high_relevance_count" yaml:"high_relevance_count"`
	QueryType          QueryType `json:"query_type" yaml:"query_type"`
	Issues             []string  `json:"issues,omitempty" yaml:"issues,omitempty"`
	Strengths          []string  `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Recommendation     string    `json:"recommendation" yaml:"recommendation"`
}

// Expertise is the caller's declared familiarity with the topic.
type Expertise string

const (
	ExpertiseNovice       Expertise = "novice"
	ExpertiseIntermediate Expertise = "intermediate"
	ExpertiseExpert       Expertise = "expert"
)

// DecisionContext carries per-request hints into the decision engine.
type DecisionContext struct {
	QueryType QueryType `json:"query_type,omitempty" yaml:"query_type,omitempty"`
	Attempt   int       `json:"attempt,omitempty" yaml:"attempt,omitempty"`
	Expertise Expertise `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	Urgent    bool      `json:"urgent,omitempty" yaml:"urgent,omitempty"`
}

// DecisionStrategy names one of the interchangeable decision strategies.
type DecisionStrategy string

const (
	StrategyConservative DecisionStrategy = "conservative"
	StrategyBalanced     DecisionStrategy = "balanced"
	StrategyAggressive   DecisionStrategy = "aggressive"
	StrategyAdaptive     DecisionStrategy = "adaptive"
)

// ResponseDecision is the gated yes/no on whether the collected evidence
// justifies an answer, with its rationale.
type ResponseDecision struct {
	ID              string            `json:"id" yaml:"id"`
	ShouldRespond   bool              `json:"should_respond" yaml:"should_respond"`
	Confidence      float64           `json:"confidence" yaml:"confidence"`
	Reasoning       string            `json:"reasoning" yaml:"reasoning"`
	Recommendations []string          `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	SelectedResults []Result          `json:"selected_results" yaml:"selected_results"`
	Assessment      QualityAssessment `json:"assessment" yaml:"assessment"`
	Strategy        DecisionStrategy  `json:"strategy" yaml:"strategy"`

	// Metadata records strategy parameters: thresholds used and adjustments.
	Metadata    map[string]float64 `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Adjustments []string           `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`

	// SuggestedQuery is a reworded query worth retrying when the decision
	// declined to answer. Empty when no rewrite applies.
	SuggestedQuery string    `json:"suggested_query,omitempty" yaml:"suggested_query,omitempty"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
}
