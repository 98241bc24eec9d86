package types

import "time"

// HTTPConfig holds shared HTTP settings used by every component that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent overrides the rotating identity set when non-empty.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty" mapstructure:"user_agent"`
}

// ProviderConfig holds settings for a single search provider.
type ProviderConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Priority breaks ties between providers; higher wins.
	Priority int `json:"priority" yaml:"priority" mapstructure:"priority"`

	// Timeout bounds one complete provider round-trip including retries.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on retryable HTTP failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay is the first backoff delay; it doubles on each retry.
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" mapstructure:"retry_base_delay"`

	// BaseURL overrides the provider endpoint (required for searxng).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKey authenticates against keyed APIs (brave).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// ProvidersConfig groups the per-provider settings.
type ProvidersConfig struct {
	DuckDuckGo ProviderConfig `json:"duckduckgo" yaml:"duckduckgo" mapstructure:"duckduckgo"`
	Bing       ProviderConfig `json:"bing" yaml:"bing" mapstructure:"bing"`
	Brave      ProviderConfig `json:"brave" yaml:"brave" mapstructure:"brave"`
	Wikipedia  ProviderConfig `json:"wikipedia" yaml:"wikipedia" mapstructure:"wikipedia"`
	SearXNG    ProviderConfig `json:"searxng" yaml:"searxng" mapstructure:"searxng"`

	// Multi fans out to duckduckgo and bing concurrently.
	Multi ProviderConfig `json:"multi" yaml:"multi" mapstructure:"multi"`

	// Semantic re-ranks the multi provider's results with embeddings.
	Semantic ProviderConfig `json:"semantic" yaml:"semantic" mapstructure:"semantic"`
}

// RateLimitConfig configures the per-provider token bucket and sliding window.
type RateLimitConfig struct {
	// Capacity is the bucket size and the initial token count.
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`

	// RefillRate is the number of tokens added per second.
	RefillRate float64 `json:"refill_rate" yaml:"refill_rate" mapstructure:"refill_rate"`

	// Window is the sliding window length.
	Window time.Duration `json:"window" yaml:"window" mapstructure:"window"`

	// WindowMax is the maximum number of requests admitted per window.
	WindowMax int `json:"window_max" yaml:"window_max" mapstructure:"window_max"`
}

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold" mapstructure:"success_threshold"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig configures a SmartCache instance.
type CacheConfig struct {
	MaxBytes        int64         `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`
	TTL             time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// ManagerConfig configures provider selection and fallback.
type ManagerConfig struct {
	MaxFallbackAttempts int `json:"max_fallback_attempts" yaml:"max_fallback_attempts" mapstructure:"max_fallback_attempts"`

	// MinSuccessRate excludes providers whose rolling success rate is lower.
	MinSuccessRate float64 `json:"min_success_rate" yaml:"min_success_rate" mapstructure:"min_success_rate"`

	// MinSamples is how many searches a provider needs before
	// MinSuccessRate applies to it.
	MinSamples int `json:"min_samples" yaml:"min_samples" mapstructure:"min_samples"`
}

// DecisionConfig configures the response decision engine.
type DecisionConfig struct {
	Strategy DecisionStrategy `json:"strategy" yaml:"strategy" mapstructure:"strategy"`

	// MinConfidence is a hard floor below which no strategy answers.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"`

	HistorySize  int     `json:"history_size" yaml:"history_size" mapstructure:"history_size"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`

	// MaxAttempts bounds the search-score-decide cycles of one request.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// EnrichTop is how many top-ranked results get their page fetched
	// before classification. Zero classifies on snippets alone.
	EnrichTop int `json:"enrich_top" yaml:"enrich_top" mapstructure:"enrich_top"`
}

// RelevanceConfig holds domain preferences for authority scoring.
type RelevanceConfig struct {
	PreferredDomains []string `json:"preferred_domains,omitempty" yaml:"preferred_domains,omitempty" mapstructure:"preferred_domains"`
	BlockedDomains   []string `json:"blocked_domains,omitempty" yaml:"blocked_domains,omitempty" mapstructure:"blocked_domains"`
}

// EmbeddingBackend selects the embedding service protocol.
type EmbeddingBackend string

const (
	EmbeddingOllama EmbeddingBackend = "ollama"
	EmbeddingOpenAI EmbeddingBackend = "openai"
	EmbeddingHash   EmbeddingBackend = "hash"
)

// EmbeddingConfig configures the embedding service used by the semantic provider.
type EmbeddingConfig struct {
	Backend EmbeddingBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
	BaseURL string           `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Model   string           `json:"model" yaml:"model" mapstructure:"model"`
	APIKey  string           `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout time.Duration    `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// JournalConfig configures the optional decision journal. An empty Path
// disables persistence.
type JournalConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" mapstructure:"allowed_origins"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level       string `json:"level" yaml:"level" mapstructure:"level"`
	Development bool   `json:"development" yaml:"development" mapstructure:"development"`
}

// EngineConfig groups every configurable setting. No field is required:
// DefaultEngineConfig fills in working values.
type EngineConfig struct {
	HTTP          HTTPConfig      `json:"http" yaml:"http" mapstructure:"http"`
	Providers     ProvidersConfig `json:"providers" yaml:"providers" mapstructure:"providers"`
	RateLimit     RateLimitConfig `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	Breaker       BreakerConfig   `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
	SearchCache   CacheConfig     `json:"search_cache" yaml:"search_cache" mapstructure:"search_cache"`
	DecisionCache CacheConfig     `json:"decision_cache" yaml:"decision_cache" mapstructure:"decision_cache"`
	Manager       ManagerConfig   `json:"manager" yaml:"manager" mapstructure:"manager"`
	Decision      DecisionConfig  `json:"decision" yaml:"decision" mapstructure:"decision"`
	Relevance     RelevanceConfig `json:"relevance" yaml:"relevance" mapstructure:"relevance"`
	Embedding     EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Journal       JournalConfig   `json:"journal" yaml:"journal" mapstructure:"journal"`
	Server        ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Log           LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultEngineConfig returns the configuration used when no file, flag or
// environment variable overrides a value.
func DefaultEngineConfig() EngineConfig {
	provider := func(priority int, timeout time.Duration) ProviderConfig {
		return ProviderConfig{
			Enabled:        true,
			Priority:       priority,
			Timeout:        timeout,
			MaxRetries:     2,
			RetryBaseDelay: 500 * time.Millisecond,
		}
	}

	providers := ProvidersConfig{
		DuckDuckGo: provider(6, 10*time.Second),
		Bing:       provider(5, 10*time.Second),
		Brave:      provider(8, 8*time.Second),
		Wikipedia:  provider(4, 8*time.Second),
		SearXNG:    provider(7, 10*time.Second),
		Multi:      provider(3, 15*time.Second),
		Semantic:   provider(2, 20*time.Second),
	}
	// Keyed or self-hosted providers stay off until configured.
	providers.SearXNG.Enabled = false
	providers.Semantic.Enabled = false

	return EngineConfig{
		HTTP: HTTPConfig{Timeout: 10 * time.Second},

		Providers: providers,
		RateLimit: RateLimitConfig{
			Capacity:   5,
			RefillRate: 1,
			Window:     time.Minute,
			WindowMax:  30,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
		SearchCache: CacheConfig{
			MaxBytes:        16 << 20,
			TTL:             15 * time.Minute,
			CleanupInterval: time.Minute,
		},
		DecisionCache: CacheConfig{
			MaxBytes:        8 << 20,
			TTL:             10 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Manager: ManagerConfig{
			MaxFallbackAttempts: 3,
			MinSuccessRate:      0.2,
			MinSamples:          3,
		},
		Decision: DecisionConfig{
			Strategy:      StrategyBalanced,
			MinConfidence: 0.3,
			HistorySize:   100,
			LearningRate:  0.1,
			MaxAttempts:   2,
		},
		Embedding: EmbeddingConfig{
			Backend: EmbeddingOllama,
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8088",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info"},
	}
}
