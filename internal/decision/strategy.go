// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decision

import (
	"fmt"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Strategy parameters.
const (
	conservativeMargin    = 0.1
	conservativeAuthority = 0.7
	conservativeTop       = 3

	balancedUrgent       = 0.1
	balancedExpert       = 0.05
	balancedFloor        = 0.5
	balancedSatisfactory = 0.6
	balancedTop          = 5

	aggressiveDrop      = 0.2
	aggressiveFloor     = 0.4
	aggressiveRelevance = 0.5
	aggressiveTop       = 7

	adaptiveTop = 5
)

// baseThresholds are the per-type confidence thresholds strategies start
// from.
var baseThresholds = map[types.QueryType]float64{
	types.QueryFactual:     0.75,
	types.QueryTechnical:   0.70,
	types.QueryExplanatory: 0.70,
	types.QueryProcedural:  0.70,
	types.QueryComparative: 0.85,
	types.QueryGeneral:     0.65,
}

// BaseThreshold returns the confidence threshold for t before any strategy
// adjustment.
func BaseThreshold(t types.QueryType) float64 {
	if v, ok := baseThresholds[t]; ok {
		return v
	}
	return baseThresholds[types.QueryGeneral]
}

// verdict is what a strategy returns before the engine fills in the rest of
// the decision.
type verdict struct {
	respond     bool
	threshold   float64
	top         int
	reason      string
	metadata    map[string]float64
	adjustments []string
}

// ParseStrategy returns the strategy named by s.
func ParseStrategy(s string) (types.DecisionStrategy, error) {
	switch st := types.DecisionStrategy(s); st {
	case types.StrategyConservative, types.StrategyBalanced, types.StrategyAggressive, types.StrategyAdaptive:
		return st, nil
	default:
		return "", fmt.Errorf("unknown decision strategy %q", s)
	}
}

func conservative(a types.QualityAssessment, dc types.DecisionContext) verdict {
	threshold := BaseThreshold(dc.QueryType) + conservativeMargin
	v := verdict{
		threshold: threshold,
		top:       conservativeTop,
		metadata: map[string]float64{
			"threshold":       threshold,
			"authority_floor": conservativeAuthority,
		},
		adjustments: []string{fmt.Sprintf("margin +%.2f", conservativeMargin)},
	}
	switch {
	case !a.Satisfactory:
		v.reason = "quality assessment not satisfactory"
	case a.Confidence < threshold:
		v.reason = fmt.Sprintf("confidence %.2f below threshold %.2f", a.Confidence, threshold)
	case a.Authority < conservativeAuthority:
		v.reason = fmt.Sprintf("authority %.2f below %.2f", a.Authority, conservativeAuthority)
	default:
		v.respond = true
		v.reason = fmt.Sprintf("satisfactory with confidence %.2f and authority %.2f", a.Confidence, a.Authority)
	}
	return v
}

func balanced(a types.QualityAssessment, dc types.DecisionContext) verdict {
	threshold := BaseThreshold(dc.QueryType)
	v := verdict{top: balancedTop, metadata: map[string]float64{"base_threshold": threshold}}
	if dc.Urgent {
		threshold -= balancedUrgent
		v.adjustments = append(v.adjustments, fmt.Sprintf("urgent -%.2f", balancedUrgent))
	}
	if dc.Expertise == types.ExpertiseExpert {
		threshold -= balancedExpert
		v.adjustments = append(v.adjustments, fmt.Sprintf("expert user -%.2f", balancedExpert))
	}
	if threshold < balancedFloor {
		threshold = balancedFloor
		v.adjustments = append(v.adjustments, fmt.Sprintf("floored at %.2f", balancedFloor))
	}
	v.threshold = threshold
	v.metadata["threshold"] = threshold

	switch {
	case a.Confidence >= threshold:
		v.respond = true
		v.reason = fmt.Sprintf("confidence %.2f meets threshold %.2f", a.Confidence, threshold)
	case a.Satisfactory && a.Confidence >= balancedSatisfactory:
		v.respond = true
		v.reason = fmt.Sprintf("satisfactory results with confidence %.2f", a.Confidence)
	default:
		v.reason = fmt.Sprintf("confidence %.2f below threshold %.2f", a.Confidence, threshold)
	}
	return v
}

func aggressive(a types.QualityAssessment, results []types.Result, dc types.DecisionContext) verdict {
	threshold := max(BaseThreshold(dc.QueryType)-aggressiveDrop, aggressiveFloor)
	v := verdict{
		threshold:   threshold,
		top:         aggressiveTop,
		metadata:    map[string]float64{"threshold": threshold},
		adjustments: []string{fmt.Sprintf("threshold -%.2f", aggressiveDrop)},
	}
	best := 0.0
	for _, r := range results {
		best = max(best, r.OverallScore())
	}
	v.metadata["best_relevance"] = best

	switch {
	case a.Confidence >= threshold:
		v.respond = true
		v.reason = fmt.Sprintf("confidence %.2f meets threshold %.2f", a.Confidence, threshold)
	case best >= aggressiveRelevance:
		v.respond = true
		v.reason = fmt.Sprintf("a result has relevance %.2f", best)
	default:
		v.reason = fmt.Sprintf("confidence %.2f below threshold %.2f and no result reaches relevance %.2f",
			a.Confidence, threshold, aggressiveRelevance)
	}
	return v
}

func adaptive(a types.QualityAssessment, threshold float64) verdict {
	v := verdict{
		threshold: threshold,
		top:       adaptiveTop,
		metadata:  map[string]float64{"threshold": threshold},
	}
	if a.Confidence >= threshold {
		v.respond = true
		v.reason = fmt.Sprintf("confidence %.2f meets learned threshold %.2f", a.Confidence, threshold)
	} else {
		v.reason = fmt.Sprintf("confidence %.2f below learned threshold %.2f", a.Confidence, threshold)
	}
	return v
}
