package facade

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketaoc/pkg/core/health"
)

// indicatorTimeout covers the longer multi-step technical-indicator calls.
const indicatorTimeout = 12 * time.Second

// errEmpty is a sentinel wrapped into a ProviderError when a source
// "succeeds" transport-wise but returns nothing useful, its own error class
// distinct from timeout/protocol/quota.
var errEmpty = errors.New("empty result")

// defaultIntlKeywords is the default keyword list used to filter the
// general news feed when no dedicated international-news source succeeds.
// Overridable via Config.
var defaultIntlKeywords = []string{
	"美股", "欧股", "纳指", "美联储", "加息", "降息", "原油", "黄金", "全球", "国际",
}

// Config wires the Facade's provider lists and tunables. Nil providers are
// simply skipped (treated as "not configured" rather than "unhealthy"),
// which lets callers run with only a subset of sources during development.
type Config struct {
	Macro            []MacroProvider
	PolicyNews       []PolicyNewsProvider
	SectorFlow       []SectorFlowProvider
	IndexDaily       []IndexDailyProvider
	Constituents     []ConstituentsProvider
	Valuation        []ValuationProvider
	GeneralNews      []NewsProvider
	IntlNews         []IntlNewsProvider
	Technical        []TechnicalProvider
	StockSector      []StockSectorProvider
	SectorNews       []SectorNewsProvider
	IntlNewsKeywords []string
	Timeout          time.Duration
}

// Facade is a uniform async interface over primary/secondary market data
// sources with ordered failover, health gating, and per-call timeouts.
type Facade struct {
	cfg      Config
	registry *health.Registry
}

// New builds a Facade over the given provider configuration and the
// process-wide Source Health Registry it must consult before every
// attempt.
func New(cfg Config, registry *health.Registry) *Facade {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.IntlNewsKeywords) == 0 {
		cfg.IntlNewsKeywords = defaultIntlKeywords
	}
	return &Facade{cfg: cfg, registry: registry}
}

func sourceName(prefix string, i int) string {
	if i == 0 {
		return prefix + ":primary"
	}
	return prefix + ":secondary"
}

// GetMacroData fetches macro indicators with ordered failover.
func (f *Facade) GetMacroData(ctx context.Context, endDate string) (MacroIndicators, error) {
	sources := make([]namedSource[MacroIndicators], 0, len(f.cfg.Macro))
	for i, p := range f.cfg.Macro {
		p := p
		sources = append(sources, namedSource[MacroIndicators]{
			name: sourceName("macro", i),
			call: func(ctx context.Context) (MacroIndicators, error) { return p.GetMacroData(ctx, endDate) },
		})
	}
	return failover(ctx, f.registry, f.cfg.Timeout, "get_macro_data", sources...)
}

// GetPolicyNews fetches recent policy news. Policy news has no second
// provider in the primary path; the only "failover" is across whatever
// providers were actually configured (typically one).
func (f *Facade) GetPolicyNews(ctx context.Context, lookbackDays int) ([]NewsItem, error) {
	sources := make([]namedSource[[]NewsItem], 0, len(f.cfg.PolicyNews))
	for i, p := range f.cfg.PolicyNews {
		p := p
		sources = append(sources, namedSource[[]NewsItem]{
			name: sourceName("policy_news", i),
			call: func(ctx context.Context) ([]NewsItem, error) {
				items, err := p.GetPolicyNews(ctx, lookbackDays)
				if err == nil && len(items) == 0 {
					return nil, &ProviderError{Source: sourceName("policy_news", i), Class: ErrEmpty, Err: errEmpty}
				}
				return items, err
			},
		})
	}
	items, err := failover(ctx, f.registry, f.cfg.Timeout, "get_policy_news", sources...)
	if err != nil {
		return []NewsItem{}, err
	}
	return items, nil
}

// GetSectorFlows implements get_sector_flows.
func (f *Facade) GetSectorFlows(ctx context.Context, tradeDate string) (SectorFlows, error) {
	sources := make([]namedSource[SectorFlows], 0, len(f.cfg.SectorFlow))
	for i, p := range f.cfg.SectorFlow {
		p := p
		sources = append(sources, namedSource[SectorFlows]{
			name: sourceName("sector_flow", i),
			call: func(ctx context.Context) (SectorFlows, error) { return p.GetSectorFlows(ctx, tradeDate) },
		})
	}
	return failover(ctx, f.registry, f.cfg.Timeout, "get_sector_flows", sources...)
}

// GetIndexDaily implements get_index_daily.
func (f *Facade) GetIndexDaily(ctx context.Context, code, start, end string) ([]Bar, error) {
	sources := make([]namedSource[[]Bar], 0, len(f.cfg.IndexDaily))
	for i, p := range f.cfg.IndexDaily {
		p := p
		sources = append(sources, namedSource[[]Bar]{
			name: sourceName("index_daily", i),
			call: func(ctx context.Context) ([]Bar, error) { return p.GetIndexDaily(ctx, code, start, end) },
		})
	}
	bars, err := failover(ctx, f.registry, f.cfg.Timeout, "get_index_daily", sources...)
	if err != nil {
		return []Bar{}, err
	}
	return bars, nil
}

// GetIndexConstituents implements get_index_constituents.
func (f *Facade) GetIndexConstituents(ctx context.Context, code string) ([]string, error) {
	sources := make([]namedSource[[]string], 0, len(f.cfg.Constituents))
	for i, p := range f.cfg.Constituents {
		p := p
		sources = append(sources, namedSource[[]string]{
			name: sourceName("constituents", i),
			call: func(ctx context.Context) ([]string, error) { return p.GetIndexConstituents(ctx, code) },
		})
	}
	list, err := failover(ctx, f.registry, f.cfg.Timeout, "get_index_constituents", sources...)
	if err != nil {
		return []string{}, err
	}
	return list, nil
}

// GetIndexValuation implements get_index_valuation.
func (f *Facade) GetIndexValuation(ctx context.Context, code string) (Valuation, error) {
	sources := make([]namedSource[Valuation], 0, len(f.cfg.Valuation))
	for i, p := range f.cfg.Valuation {
		p := p
		sources = append(sources, namedSource[Valuation]{
			name: sourceName("valuation", i),
			call: func(ctx context.Context) (Valuation, error) { return p.GetIndexValuation(ctx, code) },
		})
	}
	return failover(ctx, f.registry, f.cfg.Timeout, "get_index_valuation", sources...)
}

// GetLatestNews implements get_latest_news.
func (f *Facade) GetLatestNews(ctx context.Context, limit int) ([]NewsItem, error) {
	sources := make([]namedSource[[]NewsItem], 0, len(f.cfg.GeneralNews))
	for i, p := range f.cfg.GeneralNews {
		p := p
		sources = append(sources, namedSource[[]NewsItem]{
			name: sourceName("latest_news", i),
			call: func(ctx context.Context) ([]NewsItem, error) { return p.GetLatestNews(ctx, limit) },
		})
	}
	items, err := failover(ctx, f.registry, f.cfg.Timeout, "get_latest_news", sources...)
	if err != nil {
		return []NewsItem{}, err
	}
	return items, nil
}

// GetInternationalNews fetches international news, with an explicit
// keyword-filter fallback: when no dedicated international-news source is
// configured or all fail, it degrades to filtering GetLatestNews by
// keyword, trading precision for availability.
func (f *Facade) GetInternationalNews(ctx context.Context, keywords []string, lookbackDays int) ([]NewsItem, error) {
	if len(keywords) == 0 {
		keywords = f.cfg.IntlNewsKeywords
	}

	if len(f.cfg.IntlNews) > 0 {
		sources := make([]namedSource[[]NewsItem], 0, len(f.cfg.IntlNews))
		for i, p := range f.cfg.IntlNews {
			p := p
			sources = append(sources, namedSource[[]NewsItem]{
				name: sourceName("intl_news", i),
				call: func(ctx context.Context) ([]NewsItem, error) {
					items, err := p.GetInternationalNews(ctx, keywords, lookbackDays)
					if err == nil && len(items) == 0 {
						return nil, &ProviderError{Source: sourceName("intl_news", i), Class: ErrEmpty, Err: errEmpty}
					}
					return items, err
				},
			})
		}
		if items, err := failover(ctx, f.registry, f.cfg.Timeout, "get_international_news", sources...); err == nil {
			return items, nil
		}
	}

	general, err := f.GetLatestNews(ctx, 50)
	if err != nil {
		return []NewsItem{}, err
	}
	return filterByKeywords(general, keywords), nil
}

func filterByKeywords(items []NewsItem, keywords []string) []NewsItem {
	out := make([]NewsItem, 0)
	for _, item := range items {
		for _, kw := range keywords {
			if strings.Contains(item.Title, kw) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// GetTechnicalIndicators computes the indicator set, using the longer
// indicator timeout.
func (f *Facade) GetTechnicalIndicators(ctx context.Context, code string) (TechnicalIndicators, error) {
	sources := make([]namedSource[TechnicalIndicators], 0, len(f.cfg.Technical))
	for i, p := range f.cfg.Technical {
		p := p
		sources = append(sources, namedSource[TechnicalIndicators]{
			name: sourceName("technical", i),
			call: func(ctx context.Context) (TechnicalIndicators, error) { return p.GetTechnicalIndicators(ctx, code) },
		})
	}
	return failover(ctx, f.registry, indicatorTimeout, "get_technical_indicators", sources...)
}
