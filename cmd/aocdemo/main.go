// aocdemo runs one end-to-end analysis against deterministic mock models,
// exercising the probe → analyst graph → strategy pipeline without any
// provider credentials. Useful as a smoke run and as living documentation
// of the wiring.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"marketaoc/pkg/core/cache"
	"marketaoc/pkg/core/facade"
	"marketaoc/pkg/core/health"
	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/pipeline"
	"marketaoc/pkg/core/probe"
	"marketaoc/pkg/core/session"
	"marketaoc/pkg/core/strategy"
	"marketaoc/pkg/core/toolkit"
)

func logStep(step string, details string) {
	fmt.Printf("\n[STEP] %s\n", step)
	fmt.Println("---------------------------------------------------------")
	fmt.Println(details)
	fmt.Println("---------------------------------------------------------")
}

var mockReplies = map[session.AnalystKind]string{
	session.KindMacro:    `{"kind":"macro","analysis_summary":"growth holding up, liquidity loose after the reserve-ratio cut","economic_cycle":"expansion","liquidity":"loose","sentiment_score":0.5,"confidence":0.8}`,
	session.KindPolicy:   `{"kind":"policy","analysis_summary":"coordinated monetary and fiscal easing, semiconductor subsidies extended","monetary_policy":"easing","fiscal_policy":"expansionary","industry_policy":["semiconductor subsidies"],"long_term_policies":[],"overall_support_strength":"strong","long_term_confidence":0.85,"confidence":0.85}`,
	session.KindSector:   `{"kind":"sector","analysis_summary":"growth sectors lead on the policy tailwind","top_sectors":["半导体","新能源"],"bottom_sectors":["地产"],"rotation_trend":"growth-led","hot_themes":["AI capex"],"sentiment_score":0.5,"confidence":0.75}`,
	session.KindTech:     `{"kind":"technical","analysis_summary":"index above MA20 with positive momentum","trend_signal":"BULLISH","position_suggestion":0.7,"key_levels":{"support":3000,"resistance":3200},"confidence":0.7}`,
	session.KindIntlNews: `{"kind":"intl_news","analysis_summary":"fed pause and softer dollar mildly supportive","impact_strength":"medium","impact_duration":"medium","key_news":[{"category":"central-bank","title":"Fed holds rates"}],"confidence":0.6}`,
}

func main() {
	logStep("0. Initialization", "Wiring AOC with mock analyst models (no credentials needed)...")

	registry := health.NewRegistry(0, 0)
	dataFacade := facade.New(facade.Config{}, registry)
	store := cache.NewPersistentStore(nil, ".cache/aoc/demo")
	artifactCache := cache.New(store, cache.DefaultTTLs())

	scheduler := pipeline.NewScheduler(
		probe.New(dataFacade, artifactCache),
		toolkit.NewDefaultRegistry(dataFacade),
		strategy.NewAdvisor(nil),
		func(kind session.AnalystKind) llm.ChatModel {
			return &llm.MockChatModel{Reply: mockReplies[kind]}
		},
		pipeline.Config{},
	)

	logStep("1. Analysis", "Running morning-session analysis for 000001.SH...")
	res, err := scheduler.Run(context.Background(), session.Request{
		Symbol:        "000001.SH",
		SessionKind:   session.SessionMorning,
		ResearchDepth: session.DepthStandard,
	})
	if err != nil {
		fmt.Printf("❌ analysis failed: %v\n", err)
		os.Exit(1)
	}

	logStep("2. Result", fmt.Sprintf(
		"final_position=%.2f outlook=%s confidence=%.2f\nrationale: %s",
		res.Strategy.FinalPosition, res.Strategy.MarketOutlook,
		res.Strategy.Confidence, res.Strategy.DecisionRationale))

	pretty, _ := json.MarshalIndent(res.Strategy, "", "  ")
	fmt.Println(string(pretty))
}
