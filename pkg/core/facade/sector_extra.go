package facade

import "context"

// SectorInfo resolves which sector a stock belongs to, plus that sector's
// current flow snapshot; backs the fetch_stock_sector_info tool.
type SectorInfo struct {
	Symbol     string     `json:"symbol"`
	SectorName string     `json:"sector_name"`
	Flow       SectorFlow `json:"flow"`
}

// StockSectorProvider serves get_stock_sector_info, needed so the Sector
// analyst can resolve a single stock's membership rather than only seeing
// the market-wide sector rotation table.
type StockSectorProvider interface {
	GetStockSectorInfo(ctx context.Context, symbol string) (SectorInfo, error)
}

// SectorNewsProvider serves get_sector_news, backing fetch_sector_news: news
// scoped to one sector rather than the general feed, used by the Sector
// analyst's cross-validation of hot themes against policy.
type SectorNewsProvider interface {
	GetSectorNews(ctx context.Context, sector string, lookbackDays int) ([]NewsItem, error)
}

// GetStockSectorInfo implements get_stock_sector_info with the same
// ordered-failover contract as every other Facade operation.
func (f *Facade) GetStockSectorInfo(ctx context.Context, symbol string) (SectorInfo, error) {
	sources := make([]namedSource[SectorInfo], 0, len(f.cfg.StockSector))
	for i, p := range f.cfg.StockSector {
		p := p
		sources = append(sources, namedSource[SectorInfo]{
			name: sourceName("stock_sector", i),
			call: func(ctx context.Context) (SectorInfo, error) { return p.GetStockSectorInfo(ctx, symbol) },
		})
	}
	return failover(ctx, f.registry, f.cfg.Timeout, "get_stock_sector_info", sources...)
}

// GetSectorNews implements get_sector_news with ordered failover.
func (f *Facade) GetSectorNews(ctx context.Context, sector string, lookbackDays int) ([]NewsItem, error) {
	sources := make([]namedSource[[]NewsItem], 0, len(f.cfg.SectorNews))
	for i, p := range f.cfg.SectorNews {
		p := p
		sources = append(sources, namedSource[[]NewsItem]{
			name: sourceName("sector_news", i),
			call: func(ctx context.Context) ([]NewsItem, error) { return p.GetSectorNews(ctx, sector, lookbackDays) },
		})
	}
	items, err := failover(ctx, f.registry, f.cfg.Timeout, "get_sector_news", sources...)
	if err != nil {
		return []NewsItem{}, err
	}
	return items, nil
}

// GetMultiSourceNews aggregates GetLatestNews across every configured
// general-news provider (a union, not a failover — "multi-source" means
// combine, not pick-one), backing fetch_multi_source_news. Duplicate
// titles across sources are collapsed.
func (f *Facade) GetMultiSourceNews(ctx context.Context, limit int) ([]NewsItem, error) {
	seen := make(map[string]bool)
	var combined []NewsItem
	for i, p := range f.cfg.GeneralNews {
		if !f.registry.Allow(sourceName("latest_news", i)) {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
		items, err := p.GetLatestNews(callCtx, limit)
		cancel()
		_ = f.registry.Execute(sourceName("latest_news", i), func() error { return err })
		if err != nil {
			continue
		}
		for _, item := range items {
			if seen[item.Title] {
				continue
			}
			seen[item.Title] = true
			combined = append(combined, item)
			if limit > 0 && len(combined) >= limit {
				return combined, nil
			}
		}
	}
	return combined, nil
}
