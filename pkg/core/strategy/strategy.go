// Package strategy implements the Strategy Decision Function: a pure,
// deterministic numeric engine that composes the four upstream analyst
// artifacts (plus an optional technical artifact) into a final position
// recommendation through a weighted policy/intl/sector blend, a macro
// short-term adjustment, and a session-dependent technical overlay. The
// arithmetic owns the final number; the model only narrates.
package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/session"
)

// Base-position clamps: the policy limits of the strategy.
const (
	baseFloor = 0.15
	baseCeil  = 0.90
)

// Inputs carries the raw artifact JSON of each upstream analyst. An empty
// string means the artifact is absent.
type Inputs struct {
	Macro     string
	Policy    string
	Sector    string
	IntlNews  string
	Technical string
	Session   session.SessionKind
}

// Breakdown is the position_breakdown object: non-negative components
// summing to 1.0 +/- 0.01.
type Breakdown struct {
	CoreHolding        float64 `json:"core_holding"`
	TacticalAllocation float64 `json:"tactical_allocation"`
	CashReserve        float64 `json:"cash_reserve"`
}

// Triggers is the adjustment_triggers object.
type Triggers struct {
	IncreaseTo        float64 `json:"increase_to"`
	IncreaseCondition string  `json:"increase_condition"`
	DecreaseTo        float64 `json:"decrease_to"`
	DecreaseCondition string  `json:"decrease_condition"`
}

// Artifact is the strategy recommendation.
type Artifact struct {
	Kind              string    `json:"kind"`
	FinalPosition     float64   `json:"final_position"`
	PositionBreakdown Breakdown `json:"position_breakdown"`
	Triggers          Triggers  `json:"adjustment_triggers"`
	MarketOutlook     string    `json:"market_outlook"`
	DecisionRationale string    `json:"decision_rationale"`
	AnalysisSummary   string    `json:"analysis_summary"`
	Confidence        float64   `json:"confidence"`
}

// Advisor computes strategy artifacts. The optional rationale model is only
// ever asked for prose; it can neither see nor alter the numeric decision
// path.
type Advisor struct {
	rationale llm.ChatModel
}

// NewAdvisor builds an Advisor. model may be nil, in which case the
// deterministic rationale text is used as-is.
func NewAdvisor(model llm.ChatModel) *Advisor {
	return &Advisor{rationale: model}
}

// Decide runs the full decision pipeline. It never returns an error for
// missing or malformed inputs: partial failure degrades to an explicit
// low-confidence artifact.
func (a *Advisor) Decide(ctx context.Context, in Inputs) Artifact {
	sig := extractSignals(in)

	if degraded, missing := a.shouldDegrade(sig); degraded {
		return degradedArtifact(missing)
	}

	// Step 2: base position from the policy × intl × sector blend. An
	// absent component contributes zero, the same as a zero-confidence one.
	var raw float64
	if sig.policyPresent {
		raw += 0.4 * sig.policyScore * sig.policyConf
	}
	if sig.intlPresent {
		raw += 0.3 * sig.intlScore * sig.intlConf * durationWeight(sig.intlDuration)
	}
	if sig.sectorPresent {
		raw += 0.3 * ((sig.sectorSent + 1) / 2) * sig.sectorConf
	}
	base := clamp(raw, baseFloor, baseCeil)

	// Step 3: short-term macro adjustment.
	var adjMacro float64
	if sig.macroPresent {
		adjMacro = sig.macroSent * 0.1 * sig.macroConf
	}

	// Step 4: session-dependent technical overlay.
	adjTech := techOverlay(in.Session, sig)

	// Step 5.
	final := clamp(base+adjMacro+adjTech, 0.0, 1.0)

	breakdown := buildBreakdown(final, sig.policyScore)
	triggers := buildTriggers(final, sig)
	outlook := outlookFor(final)

	art := Artifact{
		Kind:              string(session.KindStrategy),
		FinalPosition:     round2(final),
		PositionBreakdown: breakdown,
		Triggers:          triggers,
		MarketOutlook:     outlook,
		Confidence:        decisionConfidence(sig),
	}
	art.DecisionRationale = a.narrate(ctx, sig, art)
	art.AnalysisSummary = art.DecisionRationale
	return art
}

// shouldDegrade decides when the inputs are too thin for a real decision.
// The policy artifact anchors the 0.4-weight term of the base blend, so
// its absence always degrades; beyond that, fewer than two of the three
// primary artifacts (macro, policy, sector) present also degrades.
func (a *Advisor) shouldDegrade(sig signals) (bool, []string) {
	var missing []string
	if !sig.macroPresent {
		missing = append(missing, "macro")
	}
	if !sig.policyPresent {
		missing = append(missing, "policy")
	}
	if !sig.sectorPresent {
		missing = append(missing, "sector")
	}
	primaryPresent := 3 - len(missing)
	if primaryPresent < 2 || !sig.policyPresent {
		if !sig.intlPresent {
			missing = append(missing, "intl_news")
		}
		return true, missing
	}
	return false, nil
}

func techOverlay(kind session.SessionKind, sig signals) float64 {
	if !sig.techPresent {
		return 0
	}
	var magnitude float64
	switch kind {
	case session.SessionMorning:
		magnitude = 0.10
	case session.SessionClosing:
		magnitude = 0.05
	default: // post-market, or unstated
		return 0
	}
	switch sig.techSignal {
	case "BULLISH":
		return magnitude
	case "BEARISH":
		return -magnitude
	}
	return 0
}

// buildBreakdown splits the final position into core/tactical/cash and
// re-normalises if rounding breaks the sum invariant.
func buildBreakdown(final, policyScore float64) Breakdown {
	coreFactor := 0.75
	if policyScore >= 0.6 {
		coreFactor = 1.0
	}
	core := math.Min(final, 0.4) * coreFactor
	tactical := math.Max(final-core, 0)
	cash := 1.0 - core - tactical

	core, tactical, cash = round2(core), round2(tactical), round2(cash)
	if sum := core + tactical + cash; math.Abs(sum-1.0) > 0.01 && sum > 0 {
		core, tactical, cash = core/sum, tactical/sum, cash/sum
	}
	return Breakdown{CoreHolding: core, TacticalAllocation: tactical, CashReserve: cash}
}

// buildTriggers derives the adjustment thresholds, including the key_news
// category bump: a policy rumor hardening into official policy raises the
// increase ceiling.
func buildTriggers(final float64, sig signals) Triggers {
	increaseTo := math.Min(final+0.15, 0.9)
	increaseCond := "policy support strengthens or sector inflows accelerate"
	for _, cat := range sig.keyNewsCategories {
		lower := strings.ToLower(cat)
		if strings.Contains(lower, "policy") && (strings.Contains(lower, "official") || strings.Contains(lower, "confirmed")) {
			increaseTo = 0.9
			increaseCond = "policy rumor confirmed as official policy"
			break
		}
	}

	return Triggers{
		IncreaseTo:        round2(increaseTo),
		IncreaseCondition: increaseCond,
		DecreaseTo:        round2(math.Max(final-0.2, 0.1)),
		DecreaseCondition: "macro shock or technical trend reversal",
	}
}

func outlookFor(final float64) string {
	switch {
	case final >= 0.6:
		return "bullish"
	case final <= 0.35:
		return "bearish"
	default:
		return "neutral"
	}
}

// decisionConfidence blends the confidences of whichever signals actually
// participated, so a decision built on shaky inputs reports itself as such.
func decisionConfidence(sig signals) float64 {
	var sum float64
	var n int
	for _, c := range []struct {
		present bool
		conf    float64
	}{
		{sig.macroPresent, sig.macroConf},
		{sig.policyPresent, sig.policyConf},
		{sig.sectorPresent, sig.sectorConf},
		{sig.intlPresent, sig.intlConf},
	} {
		if c.present {
			sum += c.conf
			n++
		}
	}
	if n == 0 {
		return 0.3
	}
	return round2(clamp(sum/float64(n), 0, 1))
}

func degradedArtifact(missing []string) Artifact {
	rationale := fmt.Sprintf(
		"Insufficient analyst coverage to derive a position: missing inputs [%s]. "+
			"Holding a neutral 50%% allocation until primary data recovers.",
		strings.Join(missing, ", "))
	return Artifact{
		Kind:          string(session.KindStrategy),
		FinalPosition: 0.5,
		PositionBreakdown: Breakdown{
			CoreHolding:        0.25,
			TacticalAllocation: 0.25,
			CashReserve:        0.5,
		},
		Triggers: Triggers{
			IncreaseTo:        0.6,
			IncreaseCondition: "primary analyst inputs recover",
			DecreaseTo:        0.3,
			DecreaseCondition: "macro shock while coverage is degraded",
		},
		MarketOutlook:     "neutral",
		DecisionRationale: rationale,
		AnalysisSummary:   rationale,
		Confidence:        0.3,
	}
}

// narrate produces the decision_rationale prose. The numbers in art are
// authoritative: the model receives them as settled fact, and if it fails,
// a deterministic rendering is returned instead. Nothing the model says
// flows back into any numeric field.
func (a *Advisor) narrate(ctx context.Context, sig signals, art Artifact) string {
	deterministic := fmt.Sprintf(
		"Final position %.0f%% (%s). Policy support score %.1f at confidence %.2f anchors the base; "+
			"international impact %.1f (%s duration) and sector sentiment %.2f complete the blend; "+
			"macro sentiment %.2f and the %s technical signal applied as overlays.",
		art.FinalPosition*100, art.MarketOutlook,
		sig.policyScore, sig.policyConf,
		sig.intlScore, sig.intlDuration,
		sig.sectorSent, sig.macroSent, strings.ToLower(nonEmpty(sig.techSignal, "absent")))

	if a.rationale == nil {
		return deterministic
	}

	prompt := fmt.Sprintf(
		"The position decision below is already final; restate it as two sentences of plain prose "+
			"for a portfolio manager. Do not change, round, or second-guess any number.\n%s",
		deterministic)
	msg, err := a.rationale.Invoke(ctx, []session.Message{
		{Role: session.RoleUser, Content: prompt, Timestamp: time.Now()},
	}, nil)
	if err != nil || strings.TrimSpace(msg.Content) == "" {
		return deterministic
	}
	return strings.TrimSpace(msg.Content)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RawJSON serializes the artifact for storage under the strategy report
// slot, the same raw-string form every analyst report uses.
func (a Artifact) RawJSON() string {
	raw, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(raw)
}
