package strategy

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"marketaoc/pkg/core/session"
)

func decide(t *testing.T, in Inputs) Artifact {
	t.Helper()
	return NewAdvisor(nil).Decide(context.Background(), in)
}

func checkBreakdown(t *testing.T, art Artifact) {
	t.Helper()
	b := art.PositionBreakdown
	if b.CoreHolding < 0 || b.TacticalAllocation < 0 || b.CashReserve < 0 {
		t.Fatalf("breakdown has a negative component: %+v", b)
	}
	sum := b.CoreHolding + b.TacticalAllocation + b.CashReserve
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("breakdown sums to %.4f, want 1.0 +/- 0.01", sum)
	}
	if art.FinalPosition < 0 || art.FinalPosition > 1 {
		t.Fatalf("final_position %.4f out of [0,1]", art.FinalPosition)
	}
}

const (
	bullMacro  = `{"economic_cycle":"expansion","liquidity":"loose","sentiment_score":0.7,"confidence":0.8}`
	bullPolicy = `{"overall_support_strength":"strong","long_term_confidence":0.9}`
	bullIntl   = `{"impact_strength":"high","impact_duration":"long","confidence":0.85}`
	bullSector = `{"sentiment_score":0.75,"confidence":0.8}`
	bullTech   = `{"trend_signal":"BULLISH","position_suggestion":0.8}`
)

func TestBullishConfluenceMorning(t *testing.T) {
	art := decide(t, Inputs{
		Macro:     bullMacro,
		Policy:    bullPolicy,
		IntlNews:  bullIntl,
		Sector:    bullSector,
		Technical: bullTech,
		Session:   session.SessionMorning,
	})

	if art.FinalPosition < 0.75 {
		t.Fatalf("expected final_position >= 0.75, got %.4f", art.FinalPosition)
	}
	if art.MarketOutlook != "bullish" {
		t.Fatalf("expected bullish outlook, got %q", art.MarketOutlook)
	}
	checkBreakdown(t, art)
}

func TestBearishConfluenceClosing(t *testing.T) {
	art := decide(t, Inputs{
		Macro:     `{"sentiment_score":-0.5,"confidence":0.7}`,
		Policy:    `{"overall_support_strength":"weak","long_term_confidence":0.4}`,
		IntlNews:  `{"impact_strength":"low","impact_duration":"short","confidence":0.5}`,
		Sector:    `{"sentiment_score":-0.4,"confidence":0.6}`,
		Technical: `{"trend_signal":"BEARISH"}`,
		Session:   session.SessionClosing,
	})

	if art.FinalPosition > 0.35 {
		t.Fatalf("expected final_position <= 0.35, got %.4f", art.FinalPosition)
	}
	if art.MarketOutlook != "bearish" {
		t.Fatalf("expected bearish outlook, got %q", art.MarketOutlook)
	}
	if art.PositionBreakdown.CashReserve < 0.5 {
		t.Fatalf("expected cash_reserve >= 0.5, got %.4f", art.PositionBreakdown.CashReserve)
	}
	checkBreakdown(t, art)
}

func TestMissingDataDegrades(t *testing.T) {
	art := decide(t, Inputs{
		Macro:   bullMacro,
		Sector:  bullSector,
		Session: session.SessionMorning,
	})

	if art.FinalPosition != 0.5 {
		t.Fatalf("expected degraded final_position 0.5, got %.4f", art.FinalPosition)
	}
	if art.Confidence != 0.3 {
		t.Fatalf("expected degraded confidence 0.3, got %.4f", art.Confidence)
	}
	if art.MarketOutlook != "neutral" {
		t.Fatalf("expected neutral outlook, got %q", art.MarketOutlook)
	}
	for _, want := range []string{"policy", "intl_news"} {
		if !contains(art.DecisionRationale, want) {
			t.Fatalf("rationale should name missing input %q: %s", want, art.DecisionRationale)
		}
	}
	checkBreakdown(t, art)
}

// The numeric invariants hold across a grid of inputs, including
// adversarial confidence and sentiment extremes.
func TestInvariantsAcrossInputGrid(t *testing.T) {
	strengths := []string{"strong", "medium", "weak"}
	impacts := []string{"high", "medium", "low"}
	durations := []string{"short", "medium", "long"}
	sents := []float64{-1, -0.4, 0, 0.6, 1}
	sessions := []session.SessionKind{session.SessionMorning, session.SessionClosing, session.SessionPost}

	for _, ps := range strengths {
		for _, is := range impacts {
			for _, dur := range durations {
				for _, sent := range sents {
					for _, kind := range sessions {
						in := Inputs{
							Macro:     artifactJSON(t, map[string]any{"sentiment_score": sent, "confidence": 1.0}),
							Policy:    artifactJSON(t, map[string]any{"overall_support_strength": ps, "confidence": 0.9}),
							IntlNews:  artifactJSON(t, map[string]any{"impact_strength": is, "impact_duration": dur, "confidence": 0.8}),
							Sector:    artifactJSON(t, map[string]any{"sentiment_score": sent, "confidence": 0.7}),
							Technical: `{"trend_signal":"BULLISH"}`,
							Session:   kind,
						}
						checkBreakdown(t, decide(t, in))
					}
				}
			}
		}
	}
}

// Perturbing position-like fields in upstream artifacts must not change
// the strategy output at all.
func TestResponsibilitySeparation(t *testing.T) {
	base := Inputs{
		Macro:     bullMacro,
		Policy:    bullPolicy,
		IntlNews:  bullIntl,
		Sector:    bullSector,
		Technical: bullTech,
		Session:   session.SessionMorning,
	}
	clean := decide(t, base)

	perturbed := base
	perturbed.Policy = `{"overall_support_strength":"strong","long_term_confidence":0.9,"recommended_position":0.05,"position_adjustment":-0.9}`
	perturbed.Macro = `{"economic_cycle":"expansion","liquidity":"loose","sentiment_score":0.7,"confidence":0.8,"position":0.01}`
	perturbed.Sector = `{"sentiment_score":0.75,"confidence":0.8,"base_position_recommendation":0.02}`
	got := decide(t, perturbed)

	if clean.FinalPosition != got.FinalPosition {
		t.Fatalf("position-like upstream fields leaked into the decision: %.4f vs %.4f",
			clean.FinalPosition, got.FinalPosition)
	}
	if clean.PositionBreakdown != got.PositionBreakdown {
		t.Fatalf("breakdown changed under position-field perturbation: %+v vs %+v",
			clean.PositionBreakdown, got.PositionBreakdown)
	}
}

// Morning BULLISH vs NEUTRAL differs by exactly +0.10 when the base sits
// clear of both clamps.
func TestSessionOverlaySymmetry(t *testing.T) {
	mid := Inputs{
		Macro:    `{"sentiment_score":0.0,"confidence":0.5}`,
		Policy:   `{"overall_support_strength":"medium","confidence":0.8}`,
		IntlNews: `{"impact_strength":"medium","impact_duration":"medium","confidence":0.6}`,
		Sector:   `{"sentiment_score":0.2,"confidence":0.7}`,
		Session:  session.SessionMorning,
	}

	neutral := mid
	neutral.Technical = `{"trend_signal":"NEUTRAL"}`
	bullish := mid
	bullish.Technical = `{"trend_signal":"BULLISH"}`

	delta := decide(t, bullish).FinalPosition - decide(t, neutral).FinalPosition
	if math.Abs(delta-0.10) > 0.011 {
		t.Fatalf("morning BULLISH overlay delta = %.4f, want +0.10", delta)
	}

	post := bullish
	post.Session = session.SessionPost
	postNeutral := neutral
	postNeutral.Session = session.SessionPost
	if d := decide(t, post).FinalPosition - decide(t, postNeutral).FinalPosition; d != 0 {
		t.Fatalf("post-market overlay should be zero, got delta %.4f", d)
	}
}

// The strategy artifact survives a canonical JSON round-trip with equal
// content.
func TestArtifactRoundTrip(t *testing.T) {
	art := decide(t, Inputs{
		Macro:    bullMacro,
		Policy:   bullPolicy,
		IntlNews: bullIntl,
		Sector:   bullSector,
		Session:  session.SessionClosing,
	})

	raw := art.RawJSON()
	if raw == "" {
		t.Fatal("artifact failed to serialize")
	}
	var back Artifact
	if err := json.Unmarshal([]byte(raw), &back); err != nil {
		t.Fatalf("artifact does not round-trip: %v", err)
	}
	if back != art {
		t.Fatalf("round-trip changed the artifact:\n  before %+v\n  after  %+v", art, back)
	}
}

func TestKeyNewsPolicyConfirmationRaisesIncreaseCeiling(t *testing.T) {
	in := Inputs{
		Macro:    bullMacro,
		Policy:   bullPolicy,
		Sector:   bullSector,
		IntlNews: `{"impact_strength":"medium","impact_duration":"medium","confidence":0.6,"key_news":[{"category":"policy-official","title":"stimulus package confirmed"}]}`,
		Session:  session.SessionPost,
	}
	art := decide(t, in)
	if art.Triggers.IncreaseTo != 0.9 {
		t.Fatalf("official policy confirmation should set increase_to = 0.9, got %.2f", art.Triggers.IncreaseTo)
	}
}

func artifactJSON(t *testing.T, fields map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal test artifact: %v", err)
	}
	return string(raw)
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
