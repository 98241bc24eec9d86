// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import "github.com/pdiddy/evidence-engine/pkg/types"

// Profile holds the thresholds a result set must clear for one query type.
type Profile struct {
	MinCoverage  float64 `json:"min_coverage" yaml:"min_coverage"`
	MinAuthority float64 `json:"min_authority" yaml:"min_authority"`
	MinDepth     float64 `json:"min_depth" yaml:"min_depth"`

	// MinDiversity is the minimum number of distinct source domains.
	MinDiversity int `json:"min_diversity" yaml:"min_diversity"`

	// RequireMultipleSources demands at least two qualifying results.
	RequireMultipleSources bool `json:"require_multiple_sources" yaml:"require_multiple_sources"`
}

// DefaultProfiles returns the built-in profile for every query type.
func DefaultProfiles() map[types.QueryType]Profile {
	return map[types.QueryType]Profile{
		types.QueryFactual:     {MinCoverage: 0.6, MinAuthority: 0.6, MinDepth: 0.2, MinDiversity: 2, RequireMultipleSources: true},
		types.QueryTechnical:   {MinCoverage: 0.5, MinAuthority: 0.5, MinDepth: 0.3, MinDiversity: 1},
		types.QueryExplanatory: {MinCoverage: 0.5, MinAuthority: 0.5, MinDepth: 0.4, MinDiversity: 2},
		types.QueryProcedural:  {MinCoverage: 0.5, MinAuthority: 0.4, MinDepth: 0.4, MinDiversity: 1},
		types.QueryComparative: {MinCoverage: 0.6, MinAuthority: 0.5, MinDepth: 0.3, MinDiversity: 3, RequireMultipleSources: true},
		types.QueryGeneral:     {MinCoverage: 0.4, MinAuthority: 0.4, MinDepth: 0.2, MinDiversity: 1},
	}
}
