// Package ledger owns the per-fund, per-asset chain of holdings across
// booking periods: it recomputes end balances from transfers and trades,
// recomputes percentages, and rolls holdings forward when a period closes.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// Service implements the holding ledger operations
type Service struct {
	Funds     domain.FundRepository
	Holdings  domain.HoldingRepository
	Transfers domain.TransferRepository
	Trades    domain.TradeRepository
	Navs      domain.NavRepository
	Calendar  domain.BookingPeriodCalendar
	Oracle    domain.PriceOracle
	Layers    domain.LayerAssignmentStrategy
}

// NewService creates a new ledger Service instance
func NewService(
	funds domain.FundRepository,
	holdings domain.HoldingRepository,
	transfers domain.TransferRepository,
	trades domain.TradeRepository,
	navs domain.NavRepository,
	calendar domain.BookingPeriodCalendar,
	oracle domain.PriceOracle,
	layers domain.LayerAssignmentStrategy,
) *Service {
	return &Service{
		Funds:     funds,
		Holdings:  holdings,
		Transfers: transfers,
		Trades:    trades,
		Navs:      navs,
		Calendar:  calendar,
		Oracle:    oracle,
		Layers:    layers,
	}
}

// GetOrCreateOpenHolding returns the existing open holding of the (fund,
// asset) key in the given period, or creates one: starting at zero if the
// fund has never held the asset, or at the predecessor's end balance
// otherwise. More than one open holding for the key is a ledger invariant
// violation.
func (s *Service) GetOrCreateOpenHolding(ctx context.Context, fund *domain.Fund, asset domain.AssetRef, period domain.Period) (*domain.Holding, error) {
	key := asset.Key()

	open, err := s.Holdings.ListOpenByFundAsset(ctx, fund.ID, key, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list open holdings: %w", err)
	}
	if len(open) > 1 {
		return nil, &domain.CloseError{
			FundID:   fund.ID,
			Period:   period,
			AssetKey: key,
			Err:      fmt.Errorf("%w: %d open holdings for one (fund, asset, period) key", domain.ErrLedgerInvariantViolation, len(open)),
		}
	}
	if len(open) == 1 {
		return open[0], nil
	}

	holding := &domain.Holding{
		ID:            uuid.New(),
		FundID:        fund.ID,
		Asset:         asset,
		BookingPeriod: period,
		StartBalance:  decimal.Zero,
		EndBalance:    decimal.Zero,
		StartDateTime: s.Calendar.PeriodStart(period),
	}

	// Continue the chain from the most recent holding of the asset, if any.
	predecessor, err := s.Holdings.GetLatestByFundAsset(ctx, fund.ID, key)
	switch {
	case err == nil:
		if !predecessor.BookingPeriod.Before(period) {
			return nil, &domain.CloseError{
				FundID:   fund.ID,
				Period:   period,
				AssetKey: key,
				Err:      fmt.Errorf("%w: latest holding is in period %s, cannot reopen in %s", domain.ErrLedgerInvariantViolation, predecessor.BookingPeriod, period),
			}
		}
		holding.StartBalance = predecessor.EndBalance
		holding.LayerIndex = predecessor.LayerIndex
		if predecessor.BookingPeriod == period.Previous() {
			holding.PreviousHoldingID = &predecessor.ID
			holding.StartDateTime = predecessor.EndDateTime
		}
	case isNotFound(err):
		// First holding of this asset: starts at zero.
	default:
		return nil, fmt.Errorf("failed to look up predecessor holding: %w", err)
	}

	if err := holding.Validate(); err != nil {
		return nil, err
	}
	if err := s.Holdings.Create(ctx, holding); err != nil {
		return nil, fmt.Errorf("failed to create holding: %w", err)
	}

	if holding.PreviousHoldingID != nil {
		predecessor.NextHoldingID = &holding.ID
		if err := s.Holdings.Update(ctx, predecessor); err != nil {
			return nil, fmt.Errorf("failed to link predecessor holding: %w", err)
		}
	}

	return holding, nil
}

// RecalcEndBalances replays every transfer and trade-derived movement dated
// within [periodStart, periodEnd) against each holding's start balance and
// prices the result at period end. Pure function of (start balances,
// movements, prices): re-running it on unchanged inputs yields identical
// holdings.
func (s *Service) RecalcEndBalances(ctx context.Context, fund *domain.Fund, period domain.Period) ([]*domain.Holding, error) {
	start := s.Calendar.PeriodStart(period)
	end := s.Calendar.PeriodEnd(period)

	holdings, err := s.Holdings.ListByFundPeriod(ctx, fund.ID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	byKey := make(map[string]*domain.Holding, len(holdings))
	for _, h := range holdings {
		byKey[h.Asset.Key()] = h
	}

	// 1. Aggregate trade movements per asset; trades into an asset the fund
	// does not hold yet open a fresh holding mid-period.
	trades, err := s.Trades.ListFundedTradesBetween(ctx, fund.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list funded trades: %w", err)
	}

	tradeDeltas := make(map[string]decimal.Decimal)
	for _, ft := range trades {
		baseKey := ft.Order.BaseAsset.Key()
		quoteKey := ft.Order.QuoteAsset.Key()
		tradeDeltas[baseKey] = tradeDeltas[baseKey].Add(ft.BaseDelta())
		tradeDeltas[quoteKey] = tradeDeltas[quoteKey].Add(ft.QuoteDelta())

		for _, asset := range []domain.AssetRef{ft.Order.BaseAsset, ft.Order.QuoteAsset} {
			if _, ok := byKey[asset.Key()]; ok {
				continue
			}
			h, err := s.GetOrCreateOpenHolding(ctx, fund, asset, period)
			if err != nil {
				return nil, err
			}
			byKey[asset.Key()] = h
			holdings = append(holdings, h)
		}
	}

	// 2. Replay each holding from its start balance.
	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		transfers, err := s.Transfers.ListByHoldingBetween(ctx, h.ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to list transfers for holding %s: %w", h.ID, err)
		}

		balance := h.StartBalance
		for _, t := range transfers {
			balance = balance.Add(t.SignedAmount())
		}
		balance = balance.Add(tradeDeltas[h.Asset.Key()])

		h.EndBalance = balance
		h.EndDateTime = end

		// 3. Price at period end. A zero position values to zero on every
		// axis without consulting the oracle, so a delisted asset cannot
		// block the close after the fund has exited it.
		if balance.IsZero() {
			h.EndUSDPrice = decimal.Zero
			h.EndBTCPrice = decimal.Zero
		} else {
			price, err := s.ResolvePrice(ctx, h.Asset, end)
			if err != nil {
				return nil, &domain.CloseError{FundID: fund.ID, Period: period, AssetKey: h.Asset.Key(), Err: err}
			}
			h.EndUSDPrice = price.USDPrice
			h.EndBTCPrice = price.BTCPrice
		}

		if err := s.Holdings.Update(ctx, h); err != nil {
			return nil, fmt.Errorf("failed to update holding %s: %w", h.ID, err)
		}
	}

	return holdings, nil
}

// Valuation is the result of RecalcPercentages: the fund total in its
// reporting currency, the FX snapshot it was computed with, and the priced
// holdings.
type Valuation struct {
	TotalValue decimal.Decimal
	Rate       *domain.CurrencyRate
	Holdings   []*domain.Holding
}

// RecalcPercentages recomputes each holding's share of the fund total from
// the end balances and prices written by RecalcEndBalances. Zero-balance
// holdings keep a zero percentage; they stay in the ledger but drop out of
// percentage reporting.
func (s *Service) RecalcPercentages(ctx context.Context, fund *domain.Fund, period domain.Period) (*Valuation, error) {
	end := s.Calendar.PeriodEnd(period)

	holdings, err := s.Holdings.ListByFundPeriod(ctx, fund.ID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	rate, err := s.Oracle.GetCurrencyRateAsOf(ctx, fund.ReportingCurrency, end)
	if err != nil {
		return nil, &domain.CloseError{FundID: fund.ID, Period: period, AssetKey: domain.FiatAsset(fund.ReportingCurrency).Key(), Err: err}
	}

	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.EndValueUSD())
	}
	total = total.Div(rate.USDRate)

	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pct := decimal.Zero
		if total.IsPositive() && !h.EndBalance.IsZero() {
			value := h.EndValueUSD().Div(rate.USDRate)
			pct = value.Div(total).Mul(decimal.NewFromInt(100))
		}
		h.EndPercentage = pct
		if err := s.Holdings.Update(ctx, h); err != nil {
			return nil, fmt.Errorf("failed to update holding %s: %w", h.ID, err)
		}
	}

	return &Valuation{TotalValue: total, Rate: rate, Holdings: holdings}, nil
}

// RollForward closes every holding of the period and creates the successor
// for the next one. Holdings that ended at zero with no open orders pending
// are closed without a successor until a future transfer reopens the asset.
// Re-closing a period (force recalculation) updates the existing successors
// instead of duplicating them.
func (s *Service) RollForward(ctx context.Context, fund *domain.Fund, period domain.Period) ([]*domain.Holding, error) {
	end := s.Calendar.PeriodEnd(period)
	next := period.Next()

	holdings, err := s.Holdings.ListByFundPeriod(ctx, fund.ID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	existing, err := s.Holdings.ListByFundPeriod(ctx, fund.ID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to list successor holdings: %w", err)
	}
	nextByKey := make(map[string]*domain.Holding, len(existing))
	for _, h := range existing {
		nextByKey[h.Asset.Key()] = h
	}

	var successors []*domain.Holding
	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		carry := !h.EndBalance.IsZero()
		if !carry {
			pending, err := s.Trades.HasOpenOrders(ctx, fund.ID, h.Asset.Key())
			if err != nil {
				return nil, fmt.Errorf("failed to check open orders: %w", err)
			}
			carry = pending
		}

		closedAt := end
		h.PeriodClosedDateTime = &closedAt

		if carry {
			successor, ok := nextByKey[h.Asset.Key()]
			if !ok {
				successor = &domain.Holding{
					ID:            uuid.New(),
					FundID:        fund.ID,
					Asset:         h.Asset,
					BookingPeriod: next,
				}
			}
			successor.StartBalance = h.EndBalance
			successor.StartDateTime = end
			successor.LayerIndex = s.Layers.AssignLayer(h)
			successor.PreviousHoldingID = &h.ID
			h.NextHoldingID = &successor.ID

			if ok {
				if err := s.Holdings.Update(ctx, successor); err != nil {
					return nil, fmt.Errorf("failed to update successor holding: %w", err)
				}
			} else {
				if err := s.Holdings.Create(ctx, successor); err != nil {
					return nil, fmt.Errorf("failed to create successor holding: %w", err)
				}
			}
			successors = append(successors, successor)
		}

		if err := s.Holdings.Update(ctx, h); err != nil {
			return nil, fmt.Errorf("failed to close holding %s: %w", h.ID, err)
		}
	}

	return successors, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
