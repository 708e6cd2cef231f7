// Package facade implements the Data Provider Facade: a uniform async
// interface to market data, spanning a primary and secondary source per
// operation, with ordered failover, per-source timeouts, and health-gated
// skipping. Each operation tries its sources in order, records failures
// against the health registry, and degrades to an empty-but-typed result
// rather than raising. Concrete HTTP/SDK clients live outside this module;
// this package defines the provider interfaces the caller wires real
// clients into, plus the failover/timeout/health-gating logic.
package facade

import "time"

// MacroIndicators is the macro data shape served by GetMacroData.
type MacroIndicators struct {
	GDP  float64 `json:"gdp"`
	CPI  float64 `json:"cpi"`
	PMI  float64 `json:"pmi"`
	M2   float64 `json:"m2"`
	LPR  float64 `json:"lpr"`
	AsOf string  `json:"as_of"`
}

// NewsItem is a single news record, used by policy/international/general
// news operations.
type NewsItem struct {
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"`
	Source    string    `json:"source,omitempty"`
	Published time.Time `json:"published"`
	URL       string    `json:"url,omitempty"`
}

// SectorFlow is one sector's fund-flow/return record.
type SectorFlow struct {
	Sector       string  `json:"sector"`
	NetInflow    float64 `json:"net_inflow"`
	ChangePct    float64 `json:"change_pct"`
	TurnoverRate float64 `json:"turnover_rate"`
}

// SectorFlows is the {top, bottom, all} sector-flow result.
type SectorFlows struct {
	Top    []SectorFlow `json:"top"`
	Bottom []SectorFlow `json:"bottom"`
	All    []SectorFlow `json:"all"`
}

// Bar is one OHLCV bar of an index/stock daily timeseries.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Valuation is the {pe, pb, ...} index-valuation result.
type Valuation struct {
	PE float64 `json:"pe"`
	PB float64 `json:"pb"`
}

// TechnicalIndicators is the {ma, macd, rsi, kdj, ...} indicator set,
// populated by the talib subpackage's go-talib-backed computation.
type TechnicalIndicators struct {
	MA5       float64 `json:"ma5"`
	MA20      float64 `json:"ma20"`
	MA60      float64 `json:"ma60"`
	MACD      float64 `json:"macd"`
	MACDSig   float64 `json:"macd_signal"`
	RSI       float64 `json:"rsi"`
	KDJ_K     float64 `json:"kdj_k"`
	KDJ_D     float64 `json:"kdj_d"`
	KDJ_J     float64 `json:"kdj_j"`
	Support   float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// ErrorClass classifies a provider failure: timeout, empty, protocol, or
// quota.
type ErrorClass string

const (
	ErrTimeout  ErrorClass = "timeout"
	ErrEmpty    ErrorClass = "empty"
	ErrProtocol ErrorClass = "protocol"
	ErrQuota    ErrorClass = "quota"
)

// ProviderError is the classified failure of a single source attempt.
type ProviderError struct {
	Source string
	Class  ErrorClass
	Err    error
}

func (e *ProviderError) Error() string {
	return e.Source + " (" + string(e.Class) + "): " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }
