// Package talib computes the {ma, macd, rsi, kdj, ...} indicator set for
// get_technical_indicators, backed by github.com/markcheno/go-talib. It
// implements facade.TechnicalProvider over a plain daily bar series, so any
// concrete index-daily client can back it.
package talib

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"

	"marketaoc/pkg/core/facade"
)

// BarSource supplies the recent daily bar history an indicator computation
// needs; typically facade.Facade.GetIndexDaily bound to a fixed lookback.
type BarSource func(ctx context.Context, code string) ([]facade.Bar, error)

// Provider is a facade.TechnicalProvider computing indicators locally from
// a bar series rather than delegating to a third-party indicator endpoint.
type Provider struct {
	Bars BarSource
}

var _ facade.TechnicalProvider = (*Provider)(nil)

// minBars is the shortest history MA60/MACD(26) need to produce a
// non-degenerate value.
const minBars = 60

func (p *Provider) GetTechnicalIndicators(ctx context.Context, code string) (facade.TechnicalIndicators, error) {
	bars, err := p.Bars(ctx, code)
	if err != nil {
		return facade.TechnicalIndicators{}, fmt.Errorf("talib: bar source failed: %w", err)
	}
	if len(bars) < minBars {
		return facade.TechnicalIndicators{}, fmt.Errorf("talib: need at least %d bars, got %d", minBars, len(bars))
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	ma5 := talib.Sma(closes, 5)
	ma20 := talib.Sma(closes, 20)
	ma60 := talib.Sma(closes, 60)
	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)
	rsi := talib.Rsi(closes, 14)
	slowK, slowD := talib.Stoch(highs, lows, closes, 9, 3, talib.SMA, 3, talib.SMA)

	k := lastOf(slowK)
	d := lastOf(slowD)
	j := 3*k - 2*d

	support, resistance := recentRange(lows, highs, 20)

	return facade.TechnicalIndicators{
		MA5:        lastOf(ma5),
		MA20:       lastOf(ma20),
		MA60:       lastOf(ma60),
		MACD:       lastOf(macd),
		MACDSig:    lastOf(macdSignal),
		RSI:        lastOf(rsi),
		KDJ_K:      k,
		KDJ_D:      d,
		KDJ_J:      j,
		Support:    support,
		Resistance: resistance,
	}, nil
}

func lastOf(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// recentRange returns the lowest low / highest high over the trailing
// window as a simple support/resistance estimate.
func recentRange(lows, highs []float64, window int) (support, resistance float64) {
	start := len(lows) - window
	if start < 0 {
		start = 0
	}
	support = lows[start]
	resistance = highs[start]
	for i := start; i < len(lows); i++ {
		if lows[i] < support {
			support = lows[i]
		}
		if highs[i] > resistance {
			resistance = highs[i]
		}
	}
	return support, resistance
}
