package facade

import "context"

// MacroProvider serves get_macro_data.
type MacroProvider interface {
	GetMacroData(ctx context.Context, endDate string) (MacroIndicators, error)
}

// PolicyNewsProvider serves get_policy_news.
type PolicyNewsProvider interface {
	GetPolicyNews(ctx context.Context, lookbackDays int) ([]NewsItem, error)
}

// SectorFlowProvider serves get_sector_flows.
type SectorFlowProvider interface {
	GetSectorFlows(ctx context.Context, tradeDate string) (SectorFlows, error)
}

// IndexDailyProvider serves get_index_daily.
type IndexDailyProvider interface {
	GetIndexDaily(ctx context.Context, code, start, end string) ([]Bar, error)
}

// ConstituentsProvider serves get_index_constituents.
type ConstituentsProvider interface {
	GetIndexConstituents(ctx context.Context, code string) ([]string, error)
}

// ValuationProvider serves get_index_valuation.
type ValuationProvider interface {
	GetIndexValuation(ctx context.Context, code string) (Valuation, error)
}

// NewsProvider serves get_latest_news.
type NewsProvider interface {
	GetLatestNews(ctx context.Context, limit int) ([]NewsItem, error)
}

// IntlNewsProvider serves get_international_news's dedicated path, when a
// source offers one directly. Most don't; the common path is the
// keyword-filter fallback over NewsProvider.
type IntlNewsProvider interface {
	GetInternationalNews(ctx context.Context, keywords []string, lookbackDays int) ([]NewsItem, error)
}

// TechnicalProvider serves get_technical_indicators.
type TechnicalProvider interface {
	GetTechnicalIndicators(ctx context.Context, code string) (TechnicalIndicators, error)
}
