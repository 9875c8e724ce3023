package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// ResolvePrice resolves the USD and BTC price of one unit of an asset at the
// given instant. Fiat and crypto assets go straight to the price oracle;
// shares of another fund price off that fund's latest period nav, converted
// from its reporting currency. This is the reason dependent funds must close
// after the funds they invest in.
func (s *Service) ResolvePrice(ctx context.Context, asset domain.AssetRef, at time.Time) (*domain.AssetPrice, error) {
	if asset.Kind != domain.AssetKindFundShares {
		return s.Oracle.GetPriceAsOf(ctx, asset, at)
	}

	held, err := s.Funds.GetByID(ctx, *asset.FundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load held fund %s: %w", asset.FundID, err)
	}

	nav, err := s.Navs.GetLatestPeriodNav(ctx, held.ID)
	if err != nil {
		if isNotFound(err) {
			// The held fund has never closed: its share value is unknown.
			return nil, &domain.PriceUnavailableError{AssetKey: asset.Key(), At: at}
		}
		return nil, fmt.Errorf("failed to load nav of held fund %s: %w", held.ID, err)
	}

	rate, err := s.Oracle.GetCurrencyRateAsOf(ctx, held.ReportingCurrency, at)
	if err != nil {
		return nil, err
	}
	usd := nav.ShareNAV.Mul(rate.USDRate)

	btcUSD, err := s.Oracle.GetPriceAsOf(ctx, domain.CryptoAsset(domain.SymbolBTC), at)
	if err != nil {
		return nil, err
	}
	btc := decimal.Zero
	if btcUSD.USDPrice.IsPositive() {
		btc = usd.Div(btcUSD.USDPrice)
	}

	return &domain.AssetPrice{USDPrice: usd, BTCPrice: btc}, nil
}

// BalancesAsOf replays each open holding's movements from its start up to
// the cutoff and returns the balance per holding id. Read-only: nothing is
// written back, which is what the daily nav snapshot needs.
func (s *Service) BalancesAsOf(ctx context.Context, fund *domain.Fund, holdings []*domain.Holding, cutoff time.Time) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(holdings))
	if len(holdings) == 0 {
		return balances, nil
	}

	earliest := holdings[0].StartDateTime
	for _, h := range holdings[1:] {
		if h.StartDateTime.Before(earliest) {
			earliest = h.StartDateTime
		}
	}

	trades, err := s.Trades.ListFundedTradesBetween(ctx, fund.ID, earliest, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list funded trades: %w", err)
	}

	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		transfers, err := s.Transfers.ListByHoldingBetween(ctx, h.ID, h.StartDateTime, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to list transfers for holding %s: %w", h.ID, err)
		}

		balance := h.StartBalance
		for _, t := range transfers {
			balance = balance.Add(t.SignedAmount())
		}
		for _, ft := range trades {
			if ft.Trade.DateTime.Before(h.StartDateTime) {
				continue
			}
			if ft.Order.BaseAsset.Equal(h.Asset) {
				balance = balance.Add(ft.BaseDelta())
			}
			if ft.Order.QuoteAsset.Equal(h.Asset) {
				balance = balance.Add(ft.QuoteDelta())
			}
		}
		balances[h.ID.String()] = balance
	}

	return balances, nil
}

// StickyLayerAssignment is the default layer strategy: a successor holding
// keeps the layer of its predecessor.
type StickyLayerAssignment struct{}

// AssignLayer returns the holding's current layer index.
func (StickyLayerAssignment) AssignLayer(holding *domain.Holding) int {
	return holding.LayerIndex
}
