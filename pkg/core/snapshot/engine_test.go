package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketaoc/pkg/core/facade"
	"marketaoc/pkg/core/health"
)

type countingProvider struct {
	flowCalls int32
	newsCalls int32
	bars      []facade.Bar
}

func (p *countingProvider) GetSectorFlows(ctx context.Context, tradeDate string) (facade.SectorFlows, error) {
	atomic.AddInt32(&p.flowCalls, 1)
	top := facade.SectorFlow{Sector: "半导体", NetInflow: 10}
	bottom := facade.SectorFlow{Sector: "地产", NetInflow: -5}
	return facade.SectorFlows{Top: []facade.SectorFlow{top}, Bottom: []facade.SectorFlow{bottom}, All: []facade.SectorFlow{top, bottom}}, nil
}

func (p *countingProvider) GetLatestNews(ctx context.Context, limit int) ([]facade.NewsItem, error) {
	atomic.AddInt32(&p.newsCalls, 1)
	return []facade.NewsItem{
		{Title: "央行降准落地", Category: "policy", Published: time.Now()},
		{Title: "美股收高", Published: time.Now()},
		{Title: "发改委批复新项目", Category: "policy", Published: time.Now()},
		{Title: "纳指新高", Published: time.Now()},
	}, nil
}

func (p *countingProvider) GetIndexDaily(ctx context.Context, code, start, end string) ([]facade.Bar, error) {
	return p.bars, nil
}

func newTestEngine(p *countingProvider) *Engine {
	reg := health.NewRegistry(0, 0)
	f := facade.New(facade.Config{
		SectorFlow:  []facade.SectorFlowProvider{p},
		GeneralNews: []facade.NewsProvider{p},
		IndexDaily:  []facade.IndexDailyProvider{p},
	}, reg)
	return NewEngine(f, 3.0)
}

func TestMorningSnapshotCachesForTTL(t *testing.T) {
	p := &countingProvider{}
	e := newTestEngine(p)

	first, err := e.MorningSnapshot(context.Background())
	if err != nil {
		t.Fatalf("morning snapshot failed: %v", err)
	}
	if len(first.IntlNews) == 0 || len(first.TopSectors) == 0 {
		t.Fatalf("morning snapshot incomplete: %+v", first)
	}
	if first.GeneratedAt.IsZero() {
		t.Fatal("snapshot must carry generated_at")
	}

	before := atomic.LoadInt32(&p.flowCalls)
	if _, err := e.MorningSnapshot(context.Background()); err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if after := atomic.LoadInt32(&p.flowCalls); after != before {
		t.Fatalf("second read within TTL should hit cache, flows fetched %d extra times", after-before)
	}
}

func TestMorningSnapshotCoalescesConcurrentComputes(t *testing.T) {
	p := &countingProvider{}
	e := newTestEngine(p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.MorningSnapshot(context.Background())
		}()
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&p.flowCalls); calls != 1 {
		t.Fatalf("expected single coalesced sector-flow fetch, got %d", calls)
	}
}

func TestClosingSnapshotFiltersPolicyNewsAndDetectsAnomalies(t *testing.T) {
	p := &countingProvider{bars: []facade.Bar{
		{Date: "2026-07-28", Close: 100, Volume: 1000},
		{Date: "2026-07-29", Close: 104.5, Volume: 1500}, // +4.5% surge
		{Date: "2026-07-30", Close: 104.0, Volume: 900},
		{Date: "2026-07-31", Close: 99.0, Volume: 2000}, // -4.8% drop
	}}
	e := newTestEngine(p)

	snap, err := e.ClosingSnapshot(context.Background(), "000001.SH")
	if err != nil {
		t.Fatalf("closing snapshot failed: %v", err)
	}

	if len(snap.PolicyNews) != 2 {
		t.Fatalf("expected 2 policy-tagged items, got %d", len(snap.PolicyNews))
	}
	if len(snap.AllSectors) != 2 {
		t.Fatalf("expected full sector table, got %d entries", len(snap.AllSectors))
	}
	if len(snap.Anomalies) != 2 {
		t.Fatalf("expected one surge and one drop, got %+v", snap.Anomalies)
	}
	if snap.Anomalies[0].Kind != AnomalySurge || snap.Anomalies[1].Kind != AnomalyDrop {
		t.Fatalf("anomaly kinds wrong: %+v", snap.Anomalies)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	p := &countingProvider{}
	e := newTestEngine(p)

	if _, err := e.MorningSnapshot(context.Background()); err != nil {
		t.Fatalf("first snapshot failed: %v", err)
	}
	e.InvalidateMorning()
	if _, err := e.MorningSnapshot(context.Background()); err != nil {
		t.Fatalf("post-invalidate snapshot failed: %v", err)
	}
	if calls := atomic.LoadInt32(&p.flowCalls); calls != 2 {
		t.Fatalf("invalidate should force a recompute, got %d flow fetches", calls)
	}
}

func TestDetectAnomaliesIgnoresSmallMoves(t *testing.T) {
	bars := []facade.Bar{
		{Close: 100}, {Close: 101}, {Close: 102.5}, {Close: 101.8},
	}
	if events := DetectAnomalies("x", "", bars, 3.0, time.Now()); len(events) != 0 {
		t.Fatalf("sub-threshold moves must not flag anomalies: %+v", events)
	}
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday morning session", time.Date(2026, 7, 31, 10, 0, 0, 0, time.Local), true},
		{"weekday lunch break", time.Date(2026, 7, 31, 12, 0, 0, 0, time.Local), false},
		{"weekday afternoon session", time.Date(2026, 7, 31, 14, 30, 0, 0, time.Local), true},
		{"weekday after close", time.Date(2026, 7, 31, 15, 30, 0, 0, time.Local), false},
		{"opening auction", time.Date(2026, 7, 31, 9, 20, 0, 0, time.Local), true},
		{"before auction", time.Date(2026, 7, 31, 9, 0, 0, 0, time.Local), false},
		{"saturday", time.Date(2026, 8, 1, 10, 0, 0, 0, time.Local), false},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.t); got != tc.want {
			t.Errorf("%s: IsMarketOpen = %v, want %v", tc.name, got, tc.want)
		}
	}
}
