// Package snapshot implements the Realtime Snapshot Engine: lazily
// computed, in-memory-cached morning and closing market snapshots consumed
// as analyst inputs. Snapshots compose primitive provider calls, cache for
// five minutes in memory, and carry their generation timestamp so callers
// can reason about freshness.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"marketaoc/pkg/core/cache"
	"marketaoc/pkg/core/facade"
)

// TTL is the in-memory snapshot lifetime.
const TTL = 5 * time.Minute

const (
	keyMorning = "snapshot:morning"
	keyClosing = "snapshot:closing"
)

// Morning is the pre-open snapshot: latest international news (top 3) plus
// the current sector-flow top/bottom slices.
type Morning struct {
	GeneratedAt   time.Time           `json:"generated_at"`
	IntlNews      []facade.NewsItem   `json:"intl_news"`
	TopSectors    []facade.SectorFlow `json:"top_sectors"`
	BottomSectors []facade.SectorFlow `json:"bottom_sectors"`
}

// Closing is the end-of-day snapshot: the full sector flow table,
// policy-tagged items from the latest news, and any anomalies detected in
// the day's bar sequence.
type Closing struct {
	GeneratedAt time.Time           `json:"generated_at"`
	AllSectors  []facade.SectorFlow `json:"all_sectors"`
	PolicyNews  []facade.NewsItem   `json:"policy_news"`
	Anomalies   []AnomalyEvent      `json:"anomalies"`
}

// Engine computes and caches snapshots. Computation is coalesced per key:
// concurrent requests for the same cold snapshot produce one fetch.
type Engine struct {
	facade *facade.Facade
	mem    *cache.MemoryStore
	group  singleflight.Group
	now    func() time.Time

	// anomalyThresholdPct is the |close-to-close| percent move past which a
	// bar is flagged as a surge/drop in the closing snapshot.
	anomalyThresholdPct float64
}

// NewEngine builds an Engine over the Facade. thresholdPct <= 0 takes the
// default of 3 percent.
func NewEngine(f *facade.Facade, thresholdPct float64) *Engine {
	if thresholdPct <= 0 {
		thresholdPct = 3.0
	}
	return &Engine{
		facade:              f,
		mem:                 cache.NewMemoryStore(TTL),
		now:                 time.Now,
		anomalyThresholdPct: thresholdPct,
	}
}

// MorningSnapshot returns the cached morning snapshot, computing it on
// demand. Outside market hours a cache miss still recomputes (the sources
// serve their last-known data); IsMarketOpen is exposed for callers that
// want to skip recomputation entirely when the market is closed.
func (e *Engine) MorningSnapshot(ctx context.Context) (Morning, error) {
	if raw, _, ok := e.mem.Get(keyMorning); ok {
		var snap Morning
		if err := json.Unmarshal(raw, &snap); err == nil {
			return snap, nil
		}
	}

	v, err, _ := e.group.Do(keyMorning, func() (any, error) {
		return e.computeMorning(ctx)
	})
	if err != nil {
		return Morning{}, err
	}
	return v.(Morning), nil
}

func (e *Engine) computeMorning(ctx context.Context) (Morning, error) {
	news, newsErr := e.facade.GetInternationalNews(ctx, nil, 1)
	flows, flowErr := e.facade.GetSectorFlows(ctx, e.now().Format("2006-01-02"))
	if newsErr != nil && flowErr != nil {
		return Morning{}, fmt.Errorf("snapshot: morning inputs unavailable: news=%v flows=%v", newsErr, flowErr)
	}

	if len(news) > 3 {
		news = news[:3]
	}
	snap := Morning{
		GeneratedAt:   e.now(),
		IntlNews:      news,
		TopSectors:    flows.Top,
		BottomSectors: flows.Bottom,
	}
	e.store(keyMorning, snap)
	return snap, nil
}

// ClosingSnapshot returns the cached closing snapshot for symbol, computing
// it on demand. The anomaly scan runs over the symbol's recent daily bars.
func (e *Engine) ClosingSnapshot(ctx context.Context, symbol string) (Closing, error) {
	key := keyClosing + ":" + symbol
	if raw, _, ok := e.mem.Get(key); ok {
		var snap Closing
		if err := json.Unmarshal(raw, &snap); err == nil {
			return snap, nil
		}
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.computeClosing(ctx, symbol)
	})
	if err != nil {
		return Closing{}, err
	}
	return v.(Closing), nil
}

func (e *Engine) computeClosing(ctx context.Context, symbol string) (Closing, error) {
	today := e.now().Format("2006-01-02")
	flows, flowErr := e.facade.GetSectorFlows(ctx, today)
	news, newsErr := e.facade.GetLatestNews(ctx, 50)
	if flowErr != nil && newsErr != nil {
		return Closing{}, fmt.Errorf("snapshot: closing inputs unavailable: flows=%v news=%v", flowErr, newsErr)
	}

	snap := Closing{
		GeneratedAt: e.now(),
		AllSectors:  flows.All,
		PolicyNews:  policyTagged(news),
	}

	// Anomaly scan over the trailing two weeks of bars; a missing
	// timeseries degrades to no anomalies, never to a failed snapshot.
	start := e.now().AddDate(0, 0, -14).Format("2006-01-02")
	if bars, err := e.facade.GetIndexDaily(ctx, symbol, start, today); err == nil {
		snap.Anomalies = DetectAnomalies(symbol, "", bars, e.anomalyThresholdPct, e.now())
	}

	e.store(keyClosing+":"+symbol, snap)
	return snap, nil
}

func policyTagged(items []facade.NewsItem) []facade.NewsItem {
	out := make([]facade.NewsItem, 0)
	for _, item := range items {
		if item.Category == "policy" {
			out = append(out, item)
		}
	}
	return out
}

func (e *Engine) store(key string, snap any) {
	if raw, err := json.Marshal(snap); err == nil {
		e.mem.Put(key, raw)
	}
}

// InvalidateMorning drops the cached morning snapshot ahead of its TTL, for
// callers that require freshness beyond five minutes.
func (e *Engine) InvalidateMorning() {
	e.mem.Invalidate(keyMorning)
}

// InvalidateClosing drops a symbol's cached closing snapshot.
func (e *Engine) InvalidateClosing(symbol string) {
	e.mem.Invalidate(keyClosing + ":" + symbol)
}
