// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gate

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/breaker"
	"github.com/pdiddy/evidence-engine/internal/cache"
	"github.com/pdiddy/evidence-engine/internal/embedding"
	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/internal/ratelimit"
	"github.com/pdiddy/evidence-engine/internal/search"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// multiConcurrency is the fan-out width of the multi provider.
const multiConcurrency = 2

// Build assembles a ready Engine from cfg: one breaker and limiter per
// provider, the enabled providers, the outcome cache and the page fetcher.
// Extra options are applied after the defaults.
func Build(cfg types.EngineConfig, log *zap.Logger, opts ...Option) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	breakers := breaker.NewRegistry(cfg.Breaker)
	limiters := ratelimit.NewRegistry(cfg.RateLimit)

	outcomes := cache.New[search.Outcome](cfg.SearchCache,
		cache.WithName[search.Outcome]("outcomes"),
		cache.WithLogger[search.Outcome](log),
	)
	mgr := search.NewManager(cfg.Manager,
		search.WithLimiters(limiters),
		search.WithOutcomeCache(outcomes),
		search.WithManagerLogger(log),
	)

	providers, err := buildProviders(cfg, breakers, log)
	if err != nil {
		return nil, err
	}
	mgr.Register(providers...)
	log.Debug("providers registered", zap.Int("count", len(providers)))

	fetcher := search.NewPageFetcher(newClient(cfg.HTTP, cfg.Providers.DuckDuckGo, log), 0)
	base := []Option{
		WithLogger(log),
		WithFetcher(fetcher),
		WithCacheStarter(func(ctx context.Context) { outcomes.Start(ctx, cfg.SearchCache.CleanupInterval) }),
	}
	e, err := New(mgr, cfg, append(base, opts...)...)
	if err != nil {
		mgr.Close()
		return nil, err
	}
	return e, nil
}

func buildProviders(cfg types.EngineConfig, breakers *breaker.Registry, log *zap.Logger) ([]search.Provider, error) {
	pc := cfg.Providers
	baseCfg := func(name string, p types.ProviderConfig) search.BaseConfig {
		return search.BaseConfig{
			Name:     name,
			Priority: p.Priority,
			Timeout:  p.Timeout,
			Breaker:  breakers.Get(name),
			Client:   newClient(cfg.HTTP, p, log),
			Logger:   log,
		}
	}

	var out []search.Provider
	if pc.DuckDuckGo.Enabled {
		out = append(out, search.NewDuckDuckGo(baseCfg("duckduckgo", pc.DuckDuckGo)))
	}
	if pc.Bing.Enabled {
		out = append(out, search.NewBing(baseCfg("bing", pc.Bing)))
	}
	if pc.Brave.Enabled && pc.Brave.APIKey != "" {
		out = append(out, search.NewBrave(baseCfg("brave", pc.Brave), pc.Brave.APIKey))
	} else if pc.Brave.Enabled {
		log.Debug("brave enabled without api key; skipping")
	}
	if pc.Wikipedia.Enabled {
		out = append(out, search.NewWikipedia(baseCfg("wikipedia", pc.Wikipedia)))
	}
	if pc.SearXNG.Enabled {
		if pc.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng enabled without base_url")
		}
		out = append(out, search.NewSearXNG(baseCfg("searxng", pc.SearXNG), pc.SearXNG.BaseURL))
	}

	// Multi and semantic fan out to their own scraper instances so their
	// breakers and metrics stay separate from the standalone providers.
	newFanOut := func(name string, p types.ProviderConfig) (*search.Multi, error) {
		engines := []search.Provider{
			search.NewDuckDuckGo(baseCfg(name+"/duckduckgo", pc.DuckDuckGo)),
			search.NewBing(baseCfg(name+"/bing", pc.Bing)),
		}
		m, err := search.NewMulti(baseCfg(name, p), engines, multiConcurrency)
		if err != nil {
			return nil, fmt.Errorf("creating %s provider: %w", name, err)
		}
		return m, nil
	}
	if pc.Multi.Enabled {
		m, err := newFanOut("multi", pc.Multi)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if pc.Semantic.Enabled {
		emb, err := embedding.New(cfg.Embedding, log)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		inner, err := newFanOut("semantic-inner", pc.Semantic)
		if err != nil {
			return nil, err
		}
		out = append(out, search.NewSemantic(baseCfg("semantic", pc.Semantic), inner, emb))
	}
	return out, nil
}

// newClient builds the retrying HTTP client for one provider.
func newClient(hc types.HTTPConfig, p types.ProviderConfig, log *zap.Logger) *httputil.Client {
	opts := []httputil.Option{
		httputil.WithHTTPClient(&http.Client{Timeout: hc.Timeout}),
		httputil.WithMaxRetries(p.MaxRetries),
		httputil.WithBaseDelay(p.RetryBaseDelay),
		httputil.WithLogger(log),
	}
	if hc.UserAgent != "" {
		ids := make([]httputil.Identity, len(httputil.DefaultIdentities))
		copy(ids, httputil.DefaultIdentities)
		for i := range ids {
			ids[i].UserAgent = hc.UserAgent
		}
		opts = append(opts, httputil.WithIdentities(ids))
	}
	return httputil.NewClient(opts...)
}
