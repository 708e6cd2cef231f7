package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"marketaoc/pkg/core/artifact"
	"marketaoc/pkg/core/cache"
	"marketaoc/pkg/core/facade"
	"marketaoc/pkg/core/health"
	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/obslog"
	"marketaoc/pkg/core/probe"
	"marketaoc/pkg/core/session"
	"marketaoc/pkg/core/strategy"
	"marketaoc/pkg/core/toolkit"
)

func TestMain(m *testing.M) {
	obslog.SetOutput(io.Discard)
	m.Run()
}

// Stub providers return instantly so probe latencies stay negligible.
type stubMacro struct{}

func (stubMacro) GetMacroData(ctx context.Context, endDate string) (facade.MacroIndicators, error) {
	return facade.MacroIndicators{GDP: 5.2, CPI: 1.1, PMI: 50.4, M2: 8.0, LPR: 3.45, AsOf: endDate}, nil
}

type stubNews struct{}

func (stubNews) GetPolicyNews(ctx context.Context, lookbackDays int) ([]facade.NewsItem, error) {
	return []facade.NewsItem{{Title: "央行宣布降准", Category: "policy", Published: time.Now()}}, nil
}
func (stubNews) GetLatestNews(ctx context.Context, limit int) ([]facade.NewsItem, error) {
	return []facade.NewsItem{{Title: "美联储按兵不动", Published: time.Now()}}, nil
}
func (stubNews) GetSectorNews(ctx context.Context, sector string, lookbackDays int) ([]facade.NewsItem, error) {
	return []facade.NewsItem{{Title: sector + " 板块获增量资金", Published: time.Now()}}, nil
}

type stubSector struct{}

func (stubSector) GetSectorFlows(ctx context.Context, tradeDate string) (facade.SectorFlows, error) {
	top := facade.SectorFlow{Sector: "半导体", NetInflow: 12.5, ChangePct: 2.1}
	bottom := facade.SectorFlow{Sector: "地产", NetInflow: -8.3, ChangePct: -1.4}
	return facade.SectorFlows{Top: []facade.SectorFlow{top}, Bottom: []facade.SectorFlow{bottom}, All: []facade.SectorFlow{top, bottom}}, nil
}
func (stubSector) GetStockSectorInfo(ctx context.Context, symbol string) (facade.SectorInfo, error) {
	return facade.SectorInfo{Symbol: symbol, SectorName: "半导体"}, nil
}

type stubTechnical struct{}

func (stubTechnical) GetTechnicalIndicators(ctx context.Context, code string) (facade.TechnicalIndicators, error) {
	return facade.TechnicalIndicators{MA5: 3100, MA20: 3050, RSI: 58, Support: 3000, Resistance: 3200}, nil
}

func newTestFacade(t *testing.T) (*facade.Facade, *cache.Cache) {
	t.Helper()
	reg := health.NewRegistry(0, 0)
	f := facade.New(facade.Config{
		Macro:       []facade.MacroProvider{stubMacro{}},
		PolicyNews:  []facade.PolicyNewsProvider{stubNews{}},
		SectorFlow:  []facade.SectorFlowProvider{stubSector{}},
		GeneralNews: []facade.NewsProvider{stubNews{}},
		Technical:   []facade.TechnicalProvider{stubTechnical{}},
		StockSector: []facade.StockSectorProvider{stubSector{}},
		SectorNews:  []facade.SectorNewsProvider{stubNews{}},
	}, reg)
	store := cache.NewPersistentStore(nil, t.TempDir())
	return f, cache.New(store, cache.DefaultTTLs())
}

const (
	macroReply  = `{"kind":"macro","analysis_summary":"growth steady, liquidity supportive across the curve and credit channels","economic_cycle":"expansion","liquidity":"loose","sentiment_score":0.6,"confidence":0.8}`
	policyReply = `{"kind":"policy","analysis_summary":"reserve-ratio cut lands alongside fiscal front-loading, broad supportive stance","monetary_policy":"easing","fiscal_policy":"expansionary","industry_policy":["semiconductor subsidies"],"long_term_policies":[],"overall_support_strength":"strong","long_term_confidence":0.85,"confidence":0.85}`
	sectorReply = `{"kind":"sector","analysis_summary":"rotation into semiconductors on policy tailwind, property still bleeding","top_sectors":["半导体"],"bottom_sectors":["地产"],"rotation_trend":"growth-led","hot_themes":["AI capex"],"sentiment_score":0.5,"confidence":0.75}`
	techReply   = `{"kind":"technical","analysis_summary":"price above both moving averages, momentum positive but not stretched","trend_signal":"BULLISH","position_suggestion":0.7,"key_levels":{"support":3000,"resistance":3200},"confidence":0.7}`
	intlReply   = `{"kind":"intl_news","analysis_summary":"fed hold plus soft dollar is mildly supportive for risk","impact_strength":"medium","impact_duration":"medium","key_news":[{"category":"central-bank","title":"Fed holds rates"}],"confidence":0.6}`
)

// fixedModel answers with one tool call then a fixed artifact, exercising
// the full dispatch cycle on every node.
type fixedModel struct {
	toolName string
	reply    string
	calls    int
	prompts  []string
}

func (m *fixedModel) Invoke(ctx context.Context, msgs []session.Message, tools []llm.ToolSpec) (session.Message, error) {
	for _, msg := range msgs {
		if msg.Role == session.RoleUser {
			m.prompts = append(m.prompts, msg.Content)
		}
	}
	m.calls++
	if m.calls == 1 && m.toolName != "" {
		return session.Message{
			Role:      session.RoleAssistant,
			ToolCalls: []session.ToolCall{{ID: "1", Name: m.toolName, Arguments: "{}"}},
		}, nil
	}
	return session.Message{Role: session.RoleAssistant, Content: m.reply}, nil
}

func newTestScheduler(t *testing.T, models map[session.AnalystKind]llm.ChatModel) *Scheduler {
	t.Helper()
	f, c := newTestFacade(t)
	return NewScheduler(
		probe.New(f, c),
		toolkit.NewDefaultRegistry(f),
		strategy.NewAdvisor(nil),
		func(kind session.AnalystKind) llm.ChatModel { return models[kind] },
		Config{Concurrency: 3, ToolTimeout: 2 * time.Second},
	)
}

func defaultModels() map[session.AnalystKind]llm.ChatModel {
	return map[session.AnalystKind]llm.ChatModel{
		session.KindMacro:    &fixedModel{toolName: "fetch_macro_data", reply: macroReply},
		session.KindPolicy:   &fixedModel{toolName: "fetch_policy_news", reply: policyReply},
		session.KindSector:   &fixedModel{toolName: "fetch_sector_rotation", reply: sectorReply},
		session.KindTech:     &fixedModel{toolName: "fetch_technical_indicators", reply: techReply},
		session.KindIntlNews: &fixedModel{toolName: "fetch_multi_source_news", reply: intlReply},
	}
}

func TestRunProducesAllArtifacts(t *testing.T) {
	s := newTestScheduler(t, defaultModels())

	res, err := s.Run(context.Background(), session.Request{
		Symbol:        "000001.SH",
		SessionKind:   session.SessionMorning,
		TradeDate:     "2026-07-31",
		ResearchDepth: session.DepthStandard,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, kind := range []session.AnalystKind{
		session.KindMacro, session.KindPolicy, session.KindSector,
		session.KindTech, session.KindIntlNews, session.KindStrategy,
	} {
		if _, ok := res.Reports[kind]; !ok {
			t.Fatalf("missing %s report", kind)
		}
	}
	if len(res.DataSourceStatus) != 5 {
		t.Fatalf("expected 5 probe entries, got %d", len(res.DataSourceStatus))
	}
	for source, st := range res.DataSourceStatus {
		if !st.Available {
			t.Fatalf("source %s should be available with stub providers: %s", source, st.Error)
		}
	}
	if res.Strategy.FinalPosition <= 0 || res.Strategy.FinalPosition > 1 {
		t.Fatalf("implausible final position %.4f", res.Strategy.FinalPosition)
	}
	if res.RunID == "" {
		t.Fatal("expected a minted run id")
	}
}

func TestSectorSeesPolicyArtifact(t *testing.T) {
	models := defaultModels()
	sectorModel := models[session.KindSector].(*fixedModel)
	s := newTestScheduler(t, models)

	if _, err := s.Run(context.Background(), session.Request{
		Symbol:      "000001.SH",
		SessionKind: session.SessionMorning,
	}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var sawPolicy bool
	for _, prompt := range sectorModel.prompts {
		if strings.Contains(prompt, "overall_support_strength") {
			sawPolicy = true
		}
	}
	if !sawPolicy {
		t.Fatal("sector prompt never contained the policy artifact; dependency edge was not honored")
	}
}

func TestToolBudgetExhaustionFallsBack(t *testing.T) {
	models := defaultModels()
	models[session.KindMacro] = &llm.MockChatModel{AlwaysToolCallName: "fetch_macro_data", Latency: time.Millisecond}
	s := newTestScheduler(t, models)

	res, err := s.Run(context.Background(), session.Request{
		Symbol:      "000001.SH",
		SessionKind: session.SessionPost,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	macroRaw := res.Reports[session.KindMacro]
	if !strings.Contains(macroRaw, "[degraded]") {
		t.Fatalf("expected degradation marker in fallback macro artifact, got %s", macroRaw)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(macroRaw), &fields); err != nil {
		t.Fatalf("fallback artifact is not JSON: %v", err)
	}
	if conf := fields["confidence"].(float64); conf > 0.3 {
		t.Fatalf("fallback confidence %.2f exceeds 0.3", conf)
	}
}

func TestPolicyPositionFieldIsStripped(t *testing.T) {
	models := defaultModels()
	violating := `{"kind":"policy","analysis_summary":"supportive stance with an illegal sizing hint attached by the model","overall_support_strength":"strong","long_term_confidence":0.8,"confidence":0.8,"recommended_position":0.9}`
	models[session.KindPolicy] = &fixedModel{toolName: "fetch_policy_news", reply: violating}
	s := newTestScheduler(t, models)

	res, err := s.Run(context.Background(), session.Request{
		Symbol:      "000001.SH",
		SessionKind: session.SessionClosing,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if err := artifact.ValidatePositionFree(res.Reports[session.KindPolicy]); err != nil {
		t.Fatalf("policy artifact still violates responsibility separation: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(res.Reports[session.KindPolicy]), &fields); err != nil {
		t.Fatalf("normalised policy artifact is not JSON: %v", err)
	}
	if conf := fields["confidence"].(float64); conf >= 0.8 {
		t.Fatalf("confidence should be reduced after normalisation, got %.2f", conf)
	}
}

func TestQuickDepthSkipsTechnicalAndIntl(t *testing.T) {
	models := defaultModels()
	techModel := models[session.KindTech].(*fixedModel)
	intlModel := models[session.KindIntlNews].(*fixedModel)
	s := newTestScheduler(t, models)

	res, err := s.Run(context.Background(), session.Request{
		Symbol:        "000001.SH",
		SessionKind:   session.SessionMorning,
		ResearchDepth: session.DepthQuick,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if techModel.calls != 0 || intlModel.calls != 0 {
		t.Fatalf("quick depth must not invoke technical/intl models (got %d/%d calls)",
			techModel.calls, intlModel.calls)
	}
	if _, ok := res.Reports[session.KindStrategy]; !ok {
		t.Fatal("strategy artifact must still be produced at quick depth")
	}
}

func TestCancelledContextStillYieldsArtifacts(t *testing.T) {
	s := newTestScheduler(t, defaultModels())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Run(ctx, session.Request{
		Symbol:      "000001.SH",
		SessionKind: session.SessionMorning,
	})
	if err != nil {
		t.Fatalf("run should degrade, not fail, under cancellation: %v", err)
	}

	// Every analyst slot must carry some artifact (fallbacks), and strategy
	// must have produced its degraded recommendation.
	for _, kind := range []session.AnalystKind{
		session.KindMacro, session.KindPolicy, session.KindSector, session.KindStrategy,
	} {
		if _, ok := res.Reports[kind]; !ok {
			t.Fatalf("missing %s artifact after cancellation", kind)
		}
	}
}

func TestMissingToolIsConfigurationError(t *testing.T) {
	f, c := newTestFacade(t)
	empty := toolkit.NewRegistry()
	s := NewScheduler(
		probe.New(f, c),
		empty,
		strategy.NewAdvisor(nil),
		func(kind session.AnalystKind) llm.ChatModel { return &llm.MockChatModel{Reply: "{}"} },
		Config{},
	)

	if _, err := s.Run(context.Background(), session.Request{Symbol: "000001.SH"}); err == nil {
		t.Fatal("expected a hard configuration error for the empty tool registry")
	}
}
