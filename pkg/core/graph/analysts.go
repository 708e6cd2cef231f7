package graph

import (
	"fmt"

	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/prompt"
	"marketaoc/pkg/core/session"
)

// degradedMarker tags every fallback artifact's analysis_summary so
// downstream consumers and operators can spot a degraded node at a glance.
const degradedMarker = "[degraded]"

// systemPromptFor prefers a prompt-library override (resources/prompts/
// analyst/<kind>.json, loaded at startup) over the compiled-in default, the
// same registry-first-then-hardcoded order cmd/api follows for its agents.
func systemPromptFor(kind session.AnalystKind, fallback string) string {
	if p, err := prompt.GetAnalystPrompt(string(kind)); err == nil && p != "" {
		return p
	}
	return fallback
}

// Analyst tool names, matching the toolkit registry exactly so an analyst
// spec's Tools list can be handed straight to a ChatModel.
var (
	toolMacro      = llm.ToolSpec{Name: "fetch_macro_data", Description: "Fetch the latest macro indicators (GDP, CPI, PMI, M2, LPR) as of a given date.", Parameters: schema("query_date", "string", "ISO end date; omitted leaves the end date unset")}
	toolPolicy     = llm.ToolSpec{Name: "fetch_policy_news", Description: "Fetch recent monetary/fiscal policy news.", Parameters: schema("lookback_days", "integer", "days to look back, default 7")}
	toolSectorFlow = llm.ToolSpec{Name: "fetch_sector_rotation", Description: "Fetch sector capital-flow rotation data for a trade date.", Parameters: schema("trade_date", "string", "ISO date")}
	toolConstit    = llm.ToolSpec{Name: "fetch_index_constituents", Description: "Fetch the constituent list of an index.", Parameters: schema("code", "string", "index code")}
	toolSectorNews = llm.ToolSpec{Name: "fetch_sector_news", Description: "Fetch recent news for a named sector.", Parameters: schema("sector", "string", "sector name")}
	toolStockInfo  = llm.ToolSpec{Name: "fetch_stock_sector_info", Description: "Resolve which sector a given symbol belongs to.", Parameters: schema("symbol", "string", "stock symbol")}
	toolMultiNews  = llm.ToolSpec{Name: "fetch_multi_source_news", Description: "Fetch the latest cross-source news headlines.", Parameters: schema("limit", "integer", "max headlines, default 20")}
	toolTechnical  = llm.ToolSpec{Name: "fetch_technical_indicators", Description: "Compute technical indicators (MA, MACD, RSI, KDJ) for an index.", Parameters: schema("code", "string", "index code")}
)

func schema(field, typ, desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			field: map[string]any{"type": typ, "description": desc},
		},
	}
}

// NewMacroAnalystSpec implements the macro analyst: reads macroeconomic
// indicators via its tool and emits a MacroAnalysis artifact, with no
// position-like fields.
func NewMacroAnalystSpec(model llm.ChatModel) AnalystSpec {
	return AnalystSpec{
		Kind:         session.KindMacro,
		Model:        model,
		Tools:        []llm.ToolSpec{toolMacro},
		MaxToolCalls: 3,
		SystemPrompt: systemPromptFor(session.KindMacro,
			"You are a macroeconomic analyst. Using the fetch_macro_data tool, assess GDP, " +
			"CPI, PMI, M2 and LPR trends. Respond with a single JSON object: " +
			`{"kind":"macro","analysis_summary":string,` +
			`"economic_cycle":"recovery"|"expansion"|"stagflation"|"recession",` +
			`"liquidity":"loose"|"neutral"|"tight",` +
			`"sentiment_score":number in [-1,1],"confidence":number in [0,1]}. ` +
			"Never mention position sizing; that is decided downstream."),
		BuildUserPrompt: func(state *session.AgentState) (string, error) {
			return fmt.Sprintf("Assess the macro environment for %s as of %s.",
				state.Request.Symbol, state.Request.TradeDate), nil
		},
		Fallback: func(state *session.AgentState) string {
			return `{"kind":"macro","analysis_summary":"` + degradedMarker + ` macro data unavailable, emitting neutral assessment",` +
				`"economic_cycle":"expansion","liquidity":"neutral","sentiment_score":0.0,"confidence":0.3}`
		},
	}
}

// NewPolicyAnalystSpec implements the policy analyst. Its artifact must
// never carry position-like fields: the system prompt states the constraint
// and the Scheduler strips violations mechanically after extraction via
// artifact.StripPositionFields.
func NewPolicyAnalystSpec(model llm.ChatModel) AnalystSpec {
	return AnalystSpec{
		Kind:         session.KindPolicy,
		Model:        model,
		Tools:        []llm.ToolSpec{toolPolicy},
		MaxToolCalls: 3,
		SystemPrompt: systemPromptFor(session.KindPolicy,
			"You are a policy analyst. Using fetch_policy_news, assess the monetary, fiscal " +
			"and industry policy backdrop. Respond with a single JSON object: " +
			`{"kind":"policy","analysis_summary":string,` +
			`"monetary_policy":string,"fiscal_policy":string,"industry_policy":[string],` +
			`"long_term_policies":[{"name":string,"duration":string,` +
			`"support_strength":"strong"|"medium"|"weak","beneficiary_sectors":[string],` +
			`"policy_continuity":number in [0,1]}],` +
			`"overall_support_strength":"strong"|"medium"|"weak",` +
			`"long_term_confidence":number in [0,1],"confidence":number in [0,1]}. ` +
			"Do not include any position, position_size, or recommendation field: sizing is decided " +
			"downstream by the strategy function, never by you."),
		BuildUserPrompt: func(state *session.AgentState) (string, error) {
			return fmt.Sprintf("Summarize policy stance relevant to %s markets, looking back 7 days from %s.",
				state.Request.MarketType, state.Request.TradeDate), nil
		},
		Fallback: func(state *session.AgentState) string {
			return `{"kind":"policy","analysis_summary":"` + degradedMarker + ` policy news unavailable, assuming unchanged stance",` +
				`"monetary_policy":"unchanged","fiscal_policy":"unchanged","industry_policy":[],` +
				`"long_term_policies":[],"overall_support_strength":"medium",` +
				`"long_term_confidence":0.3,"confidence":0.3}`
		},
	}
}

// NewSectorAnalystSpec implements the sector analyst, which is
// session-aware and consumes the Policy artifact as cross-validation
// context rather than re-deriving policy stance itself.
func NewSectorAnalystSpec(model llm.ChatModel) AnalystSpec {
	return AnalystSpec{
		Kind:         session.KindSector,
		Model:        model,
		Tools:        []llm.ToolSpec{toolSectorFlow, toolSectorNews, toolStockInfo},
		MaxToolCalls: 4,
		SystemPrompt: systemPromptFor(session.KindSector,
			"You are a sector-rotation analyst. Using fetch_sector_rotation, fetch_sector_news " +
			"and fetch_stock_sector_info, identify which sectors are gaining or losing capital flow and " +
			"cross-validate hot themes against the policy backdrop you are given. Respond with a single " +
			"JSON object: " +
			`{"kind":"sector","analysis_summary":string,` +
			`"top_sectors":[string],"bottom_sectors":[string],"rotation_trend":string,` +
			`"hot_themes":[string],"sentiment_score":number in [-1,1],"confidence":number in [0,1]}.`),
		BuildUserPrompt: func(state *session.AgentState) (string, error) {
			policy, _ := state.GetReport(session.KindPolicy)
			if policy == "" {
				policy = "(policy artifact unavailable)"
			}
			return fmt.Sprintf(
				"Session: %s. Policy backdrop: %s. Identify sector rotation for %s as of %s.",
				sessionContext(state.Request.SessionKind), policy, state.Request.Symbol, state.Request.TradeDate,
			), nil
		},
		Fallback: func(state *session.AgentState) string {
			return `{"kind":"sector","analysis_summary":"` + degradedMarker + ` sector flow data unavailable",` +
				`"top_sectors":[],"bottom_sectors":[],"rotation_trend":"unclear","hot_themes":[],` +
				`"sentiment_score":0.0,"confidence":0.3}`
		},
	}
}

// sessionContext renders the session kind into the prompt framing the
// sector analyst's output is parameterised by.
func sessionContext(kind session.SessionKind) string {
	switch kind {
	case session.SessionMorning:
		return "morning (pre-open): weigh overnight flows and opening auction positioning"
	case session.SessionClosing:
		return "closing (end-of-day): weigh full-day flows and late-session rotation"
	default:
		return "post-market: weigh the settled day and overnight catalysts"
	}
}

// NewTechnicalAnalystSpec implements the technical analyst: it consumes
// only indicator data (MA/MACD/RSI/KDJ/support-resistance), never news or
// policy context.
func NewTechnicalAnalystSpec(model llm.ChatModel) AnalystSpec {
	return AnalystSpec{
		Kind:         session.KindTech,
		Model:        model,
		Tools:        []llm.ToolSpec{toolTechnical},
		MaxToolCalls: 2,
		SystemPrompt: systemPromptFor(session.KindTech,
			"You are a technical analyst. Using fetch_technical_indicators, assess trend and " +
			"momentum from MA, MACD, RSI and KDJ alone. Respond with a single JSON object: " +
			`{"kind":"technical","analysis_summary":string,` +
			`"trend_signal":"BULLISH"|"BEARISH"|"NEUTRAL",` +
			`"position_suggestion":number in [0,1],` +
			`"key_levels":{"support":number,"resistance":number},"confidence":number in [0,1]}. ` +
			"Do not reference news, policy, or macro conditions."),
		BuildUserPrompt: func(state *session.AgentState) (string, error) {
			code := state.IndexInfo.Code
			if code == "" {
				code = state.Request.Symbol
			}
			return fmt.Sprintf("Assess technical signals for %s.", code), nil
		},
		Fallback: func(state *session.AgentState) string {
			return `{"kind":"technical","analysis_summary":"` + degradedMarker + ` technical indicators unavailable",` +
				`"trend_signal":"NEUTRAL","position_suggestion":0.5,` +
				`"key_levels":{"support":0,"resistance":0},"confidence":0.3}`
		},
	}
}

// NewIntlNewsAnalystSpec implements the international-news analyst. This
// analyst is always-fresh: the Probe never serves it from cache.
func NewIntlNewsAnalystSpec(model llm.ChatModel) AnalystSpec {
	return AnalystSpec{
		Kind:         session.KindIntlNews,
		Model:        model,
		Tools:        []llm.ToolSpec{toolMultiNews},
		MaxToolCalls: 2,
		SystemPrompt: systemPromptFor(session.KindIntlNews,
			"You are an international markets news analyst. Using fetch_multi_source_news, " +
			"filter for overseas-market relevant headlines (US/HK/commodities/central banks) and assess " +
			"their likely spillover. Respond with a single JSON object: " +
			`{"kind":"intl_news","analysis_summary":string,` +
			`"impact_strength":"high"|"medium"|"low",` +
			`"impact_duration":"short"|"medium"|"long",` +
			`"key_news":[{"category":string,"title":string}],"confidence":number in [0,1]}.`),
		BuildUserPrompt: func(state *session.AgentState) (string, error) {
			return fmt.Sprintf("Summarize international news spillover relevant to %s markets on %s.",
				state.Request.MarketType, state.Request.TradeDate), nil
		},
		Fallback: func(state *session.AgentState) string {
			return `{"kind":"intl_news","analysis_summary":"` + degradedMarker + ` international news unavailable",` +
				`"impact_strength":"low","impact_duration":"short","key_news":[],"confidence":0.3}`
		},
	}
}
