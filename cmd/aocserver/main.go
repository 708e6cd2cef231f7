package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"marketaoc/pkg/api/aoc"
	"marketaoc/pkg/core/agent"
	"marketaoc/pkg/core/cache"
	"marketaoc/pkg/core/config"
	"marketaoc/pkg/core/facade"
	"marketaoc/pkg/core/health"
	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/pipeline"
	"marketaoc/pkg/core/probe"
	"marketaoc/pkg/core/prompt"
	"marketaoc/pkg/core/session"
	"marketaoc/pkg/core/snapshot"
	"marketaoc/pkg/core/store"
	"marketaoc/pkg/core/strategy"
	"marketaoc/pkg/core/toolkit"
)

func main() {
	godotenv.Load()

	aocCfg, err := config.LoadAOC("config/aoc.yaml")
	if err != nil {
		fmt.Printf("❌ config/aoc.yaml: %v\n", err)
		os.Exit(1)
	}
	agentCfg, err := config.LoadAgents("config/models.yaml")
	if err != nil {
		fmt.Printf("❌ config/models.yaml: %v\n", err)
		os.Exit(1)
	}
	agentMgr := agent.NewManager(agentCfg)

	// Optional prompt-library overrides for analyst system prompts.
	if err := prompt.LoadFromDirectory("resources"); err != nil {
		fmt.Printf("⚠️ prompt library not loaded, using compiled-in prompts: %v\n", err)
	}

	registry := health.NewRegistry(aocCfg.MaxErrors, aocCfg.Cooldown())

	// Persistent cache tier: Postgres when DATABASE_URL is set, file vault
	// otherwise.
	if err := store.InitDB(context.Background()); err != nil {
		fmt.Printf("⚠️ no database configured, cache falls back to file vault: %v\n", err)
	}
	persistent := cache.NewPersistentStore(store.GetPool(), os.Getenv("AOC_CACHE_DIR"))

	ttls := cache.DefaultTTLs()
	if h := aocCfg.CacheTTLHours; h.Macro > 0 {
		ttls.Macro = hours(h.Macro)
	}
	if h := aocCfg.CacheTTLHours; h.Policy > 0 {
		ttls.Policy = hours(h.Policy)
	}
	if h := aocCfg.CacheTTLHours; h.Sector > 0 {
		ttls.Sector = hours(h.Sector)
	}
	if h := aocCfg.CacheTTLHours; h.Artifact > 0 {
		ttls.Artifact = hours(h.Artifact)
	}
	artifactCache := cache.New(persistent, ttls)

	// Concrete market-data clients are wired by the deployment; a bare
	// checkout starts with no providers and every probe reports
	// unavailable, which the pipeline degrades through rather than failing.
	dataFacade := facade.New(facade.Config{
		Timeout:          aocCfg.Timeout(),
		IntlNewsKeywords: aocCfg.IntlKeywords,
	}, registry)
	fmt.Println("⚠️ no market-data providers configured; running in degraded mode")

	budgets := make(map[session.AnalystKind]int, len(aocCfg.MaxToolCalls))
	for kind, budget := range aocCfg.MaxToolCalls {
		budgets[session.AnalystKind(kind)] = budget
	}

	scheduler := pipeline.NewScheduler(
		probe.New(dataFacade, artifactCache),
		toolkit.NewDefaultRegistry(dataFacade),
		strategy.NewAdvisor(agentMgr.GetChatModel("strategy")),
		func(kind session.AnalystKind) llm.ChatModel { return agentMgr.GetChatModel(string(kind)) },
		pipeline.Config{
			Concurrency: aocCfg.Concurrency,
			Deadline:    aocCfg.Deadline(),
			Budgets:     budgets,
		},
	)

	snapshots := snapshot.NewEngine(dataFacade, aocCfg.AnomalyThresholdPct)

	handler := aoc.NewHandler(scheduler, snapshots, registry)
	http.HandleFunc("/api/aoc/analyze", handler.HandleAnalyze)
	http.HandleFunc("/api/aoc/snapshot", handler.HandleSnapshot)
	http.HandleFunc("/api/aoc/health", handler.HandleHealth)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("AOC server starting on :%s...\n", port)
	fmt.Println("  - POST /api/aoc/analyze")
	fmt.Println("  - GET  /api/aoc/snapshot?kind=morning|closing")
	fmt.Println("  - GET  /api/aoc/health?sources=macro:primary")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		fmt.Printf("❌ server failed to start: %v\n", err)
		os.Exit(1)
	}
}

func hours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}
