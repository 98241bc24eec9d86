// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lexicon

import "github.com/pdiddy/evidence-engine/pkg/types"

var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "can", "do", "does",
	"for", "from", "has", "have", "how", "i", "in", "is", "it", "its", "me",
	"my", "of", "on", "or", "our", "should", "so", "than", "that", "the",
	"their", "then", "there", "these", "this", "to", "was", "we", "were",
	"what", "when", "where", "which", "who", "why", "will", "with", "would",
	"you", "your", "vs", "versus",
}

var defaultAuthority = map[string]float64{
	// Reference
	"wikipedia.org":     0.85,
	"britannica.com":    0.9,
	"arxiv.org":         0.9,
	"nature.com":        0.95,
	"sciencedirect.com": 0.9,
	"nih.gov":           0.95,
	"who.int":           0.95,

	// Developer documentation
	"developer.mozilla.org": 0.95,
	"go.dev":                0.95,
	"golang.org":            0.95,
	"python.org":            0.95,
	"docs.python.org":       0.95,
	"rust-lang.org":         0.95,
	"kubernetes.io":         0.9,
	"docs.docker.com":       0.9,
	"docs.flutter.dev":      0.9,
	"flutter.dev":           0.9,
	"reactnative.dev":       0.9,
	"react.dev":             0.9,
	"learn.microsoft.com":   0.9,
	"developer.apple.com":   0.9,
	"developer.android.com": 0.9,
	"cloud.google.com":      0.85,
	"aws.amazon.com":        0.85,

	// Community
	"stackoverflow.com": 0.8,
	"github.com":        0.75,
	"stackexchange.com": 0.75,
	"dev.to":            0.6,
	"medium.com":        0.55,
	"reddit.com":        0.45,
	"quora.com":         0.4,

	// News
	"reuters.com":  0.85,
	"apnews.com":   0.85,
	"bbc.co.uk":    0.8,
	"bbc.com":      0.8,
	"nytimes.com":  0.8,
	"theverge.com": 0.65,
}

var defaultClickbait = []string{
	"you won't believe",
	"shocking",
	"this one trick",
	"one weird trick",
	"doctors hate",
	"what happened next",
	"click here",
	"top 10",
	"must see",
	"mind blowing",
	"gone wrong",
	"will blow your mind",
}

var defaultBlockSignatures = []string{
	"captcha",
	"unusual traffic",
	"are you a robot",
	"not a robot",
	"anomaly-modal",
	"cf-challenge",
	"challenge-form",
	"access denied",
	"automated queries",
}

// defaultPatterns drive query-type detection. The explicit phrases for
// explanatory, comparative and procedural queries are checked before any
// weighting takes place; the remainder are weighted evidence.
var defaultPatterns = []Pattern{
	{types.QueryExplanatory, "why", 1},
	{types.QueryExplanatory, "explain", 1},
	{types.QueryComparative, "vs", 1},
	{types.QueryComparative, "versus", 1},
	{types.QueryComparative, "compare", 1},
	{types.QueryComparative, "comparison", 1},
	{types.QueryComparative, "difference between", 1},
	{types.QueryProcedural, "how to", 1},
	{types.QueryProcedural, "tutorial", 1},
	{types.QueryProcedural, "step by step", 1},
	{types.QueryProcedural, "guide", 1},

	{types.QueryTechnical, "error", 1.0},
	{types.QueryTechnical, "exception", 1.0},
	{types.QueryTechnical, "api", 0.8},
	{types.QueryTechnical, "function", 0.6},
	{types.QueryTechnical, "library", 0.6},
	{types.QueryTechnical, "install", 0.6},
	{types.QueryTechnical, "configure", 0.6},
	{types.QueryTechnical, "compile", 0.8},
	{types.QueryTechnical, "code", 0.5},
	{types.QueryTechnical, "performance", 0.5},
	{types.QueryTechnical, "golang", 0.8},
	{types.QueryTechnical, "python", 0.6},
	{types.QueryTechnical, "javascript", 0.6},
	{types.QueryTechnical, "kubernetes", 0.8},

	{types.QueryFactual, "what is", 1.0},
	{types.QueryFactual, "who is", 1.0},
	{types.QueryFactual, "who was", 1.0},
	{types.QueryFactual, "when did", 1.0},
	{types.QueryFactual, "when was", 1.0},
	{types.QueryFactual, "where is", 1.0},
	{types.QueryFactual, "how many", 1.0},
	{types.QueryFactual, "how much", 0.8},
	{types.QueryFactual, "define", 0.8},
	{types.QueryFactual, "capital of", 0.8},
}

// ExplicitTypes lists the query types whose patterns short-circuit weighted
// detection, in the order they are checked.
var ExplicitTypes = []types.QueryType{
	types.QueryExplanatory,
	types.QueryComparative,
	types.QueryProcedural,
}
