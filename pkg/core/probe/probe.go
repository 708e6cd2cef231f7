// Package probe implements the Data Source Probe: a parallel availability
// check across macro/policy/news/sector/technical sources, cache-first then
// a lightweight live call, bounded by per-source timeouts. News is always
// required fresh and never satisfied from cache.
package probe

import (
	"context"
	"sync"
	"time"

	"marketaoc/pkg/core/cache"
	"marketaoc/pkg/core/facade"
	"marketaoc/pkg/core/session"
)

// LiveTimeout is the probe's own live-call timeout.
const LiveTimeout = 5 * time.Second

// macroRecency is the conservative recency marker for the macro cache-first
// check: a macro artifact no older than 7 days counts as available.
const macroRecency = 7 * 24 * time.Hour

// Source names, used as the probe result map's keys. The Facade registers
// the underlying live calls' health under its own per-provider names
// (e.g. "macro:primary").
const (
	SourceMacro      = "macro"
	SourcePolicy     = "policy"
	SourceNews       = "news"
	SourceSectorFlow = "sector"
	SourceTechnical  = "technical"
)

// Probe runs the pre-analysis availability checks.
type Probe struct {
	facade *facade.Facade
	cache  *cache.Cache
}

// New builds a Probe over the given Facade and Cache.
func New(f *facade.Facade, c *cache.Cache) *Probe {
	return &Probe{facade: f, cache: c}
}

// RunAll launches every source's probe concurrently and returns once all
// have settled (or ctx is cancelled); an error on one probe never cancels
// the others. Total wall time is bounded by the slowest timeout.
func (p *Probe) RunAll(ctx context.Context, req session.Request) map[string]session.SourceProbeResult {
	results := make(map[string]session.SourceProbeResult, 5)
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(source string, r session.SourceProbeResult) {
		mu.Lock()
		results[source] = r
		mu.Unlock()
	}

	probes := []struct {
		name string
		fn   func(context.Context, session.Request) session.SourceProbeResult
	}{
		{SourceMacro, p.probeMacro},
		{SourcePolicy, p.probePolicy},
		{SourceNews, p.probeNews},
		{SourceSectorFlow, p.probeSector},
		{SourceTechnical, p.probeTechnical},
	}

	wg.Add(len(probes))
	for _, pr := range probes {
		pr := pr
		go func() {
			defer wg.Done()
			record(pr.name, pr.fn(ctx, req))
		}()
	}
	wg.Wait()

	return results
}

func timed(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// probeMacro: cache-first (recency marker), else live call.
func (p *Probe) probeMacro(ctx context.Context, req session.Request) session.SourceProbeResult {
	start := time.Now()
	key := cache.Key(cache.KindMacro, "", req.TradeDate)
	if _, age, ok := p.cache.Get(ctx, key); ok && age <= macroRecency {
		return session.SourceProbeResult{Available: true, Source: "cache", LatencyMS: timed(start)}
	}

	callCtx, cancel := context.WithTimeout(ctx, LiveTimeout)
	defer cancel()
	_, err := p.facade.GetMacroData(callCtx, req.TradeDate)
	if err != nil {
		return session.SourceProbeResult{Available: false, Error: err.Error()}
	}
	return session.SourceProbeResult{Available: true, Source: "api", LatencyMS: timed(start)}
}

// probePolicy: cache-first, else live call.
func (p *Probe) probePolicy(ctx context.Context, req session.Request) session.SourceProbeResult {
	start := time.Now()
	key := cache.Key(cache.KindPolicy, "", req.TradeDate)
	if _, age, ok := p.cache.Get(ctx, key); ok && age <= 24*time.Hour {
		return session.SourceProbeResult{Available: true, Source: "cache", LatencyMS: timed(start)}
	}

	callCtx, cancel := context.WithTimeout(ctx, LiveTimeout)
	defer cancel()
	_, err := p.facade.GetPolicyNews(callCtx, 7)
	if err != nil {
		return session.SourceProbeResult{Available: false, Error: err.Error()}
	}
	return session.SourceProbeResult{Available: true, Source: "api", LatencyMS: timed(start)}
}

// probeNews: no cache path; news is always required fresh.
func (p *Probe) probeNews(ctx context.Context, req session.Request) session.SourceProbeResult {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, LiveTimeout)
	defer cancel()
	_, err := p.facade.GetLatestNews(callCtx, 10)
	if err != nil {
		return session.SourceProbeResult{Available: false, Error: err.Error()}
	}
	return session.SourceProbeResult{Available: true, Source: "api", LatencyMS: timed(start)}
}

// probeSector: cache-first, else live call.
func (p *Probe) probeSector(ctx context.Context, req session.Request) session.SourceProbeResult {
	start := time.Now()
	key := cache.Key(cache.KindSector, "", req.TradeDate)
	if _, age, ok := p.cache.Get(ctx, key); ok && age <= time.Hour {
		return session.SourceProbeResult{Available: true, Source: "cache", LatencyMS: timed(start)}
	}

	callCtx, cancel := context.WithTimeout(ctx, LiveTimeout)
	defer cancel()
	_, err := p.facade.GetSectorFlows(callCtx, req.TradeDate)
	if err != nil {
		return session.SourceProbeResult{Available: false, Error: err.Error()}
	}
	return session.SourceProbeResult{Available: true, Source: "api", LatencyMS: timed(start)}
}

// probeTechnical: no cache path; technical indicators need the latest
// data.
func (p *Probe) probeTechnical(ctx context.Context, req session.Request) session.SourceProbeResult {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, LiveTimeout)
	defer cancel()
	_, err := p.facade.GetTechnicalIndicators(callCtx, req.Symbol)
	if err != nil {
		return session.SourceProbeResult{Available: false, Error: err.Error()}
	}
	return session.SourceProbeResult{Available: true, Source: "api", LatencyMS: timed(start)}
}
