package toolkit

import (
	"context"
	"encoding/json"

	"marketaoc/pkg/core/facade"
)

// NewDefaultRegistry wires the required tool names to the given Facade.
// Optional argument fields default sensibly when omitted or when argsJSON
// is empty.
func NewDefaultRegistry(f *facade.Facade) *Registry {
	r := NewRegistry()

	r.Register("fetch_macro_data", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			QueryDate string `json:"query_date"`
		}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetMacroData(ctx, args.QueryDate)
		return marshalOrError(v, err)
	})

	r.Register("fetch_policy_news", func(ctx context.Context, argsJSON string) (string, error) {
		args := struct {
			LookbackDays int `json:"lookback_days"`
		}{LookbackDays: 7}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetPolicyNews(ctx, args.LookbackDays)
		return marshalOrError(v, err)
	})

	r.Register("fetch_sector_rotation", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			TradeDate string `json:"trade_date"`
		}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetSectorFlows(ctx, args.TradeDate)
		return marshalOrError(v, err)
	})

	r.Register("fetch_index_constituents", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			Code string `json:"code"`
		}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetIndexConstituents(ctx, args.Code)
		return marshalOrError(v, err)
	})

	r.Register("fetch_sector_news", func(ctx context.Context, argsJSON string) (string, error) {
		args := struct {
			Sector       string `json:"sector"`
			LookbackDays int    `json:"lookback_days"`
		}{LookbackDays: 7}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetSectorNews(ctx, args.Sector, args.LookbackDays)
		return marshalOrError(v, err)
	})

	r.Register("fetch_stock_sector_info", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			Symbol string `json:"symbol"`
		}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetStockSectorInfo(ctx, args.Symbol)
		return marshalOrError(v, err)
	})

	r.Register("fetch_multi_source_news", func(ctx context.Context, argsJSON string) (string, error) {
		args := struct {
			Limit int `json:"limit"`
		}{Limit: 20}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetMultiSourceNews(ctx, args.Limit)
		return marshalOrError(v, err)
	})

	r.Register("fetch_technical_indicators", func(ctx context.Context, argsJSON string) (string, error) {
		var args struct {
			Code string `json:"code"`
		}
		_ = json.Unmarshal([]byte(argsJSON), &args)
		v, err := f.GetTechnicalIndicators(ctx, args.Code)
		return marshalOrError(v, err)
	})

	return r
}
