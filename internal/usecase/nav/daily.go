package nav

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/ledger"
)

// DailySampler produces intra-period daily nav snapshots: the same valuation
// as a period close, but against the current open holdings, with no fee
// application and no mutation of fund state. Re-sampling a day overwrites
// that day's snapshot, never duplicates it.
type DailySampler struct {
	Funds    domain.FundRepository
	Holdings domain.HoldingRepository
	Navs     domain.NavRepository
	Ledger   *ledger.Service
	Calendar domain.BookingPeriodCalendar
	Oracle   domain.PriceOracle
}

// NewDailySampler creates a new DailySampler instance
func NewDailySampler(
	funds domain.FundRepository,
	holdings domain.HoldingRepository,
	navs domain.NavRepository,
	ledgerSvc *ledger.Service,
	calendar domain.BookingPeriodCalendar,
	oracle domain.PriceOracle,
) *DailySampler {
	return &DailySampler{
		Funds:    funds,
		Holdings: holdings,
		Navs:     navs,
		Ledger:   ledgerSvc,
		Calendar: calendar,
		Oracle:   oracle,
	}
}

// CreateDailyNAV values the fund's open holdings at the daily cutoff of the
// given date and stores the result as the day's daily nav.
func (s *DailySampler) CreateDailyNAV(ctx context.Context, fundID uuid.UUID, date time.Time) (*domain.Nav, error) {
	fund, err := s.Funds.GetByID(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fund %s: %w", fundID, err)
	}
	cutoff := s.Calendar.DailyNavEnd(date)

	open, err := s.Holdings.ListOpenByFund(ctx, fund.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open holdings: %w", err)
	}

	balances, err := s.Ledger.BalancesAsOf(ctx, fund, open, cutoff)
	if err != nil {
		return nil, err
	}

	rate, err := s.Oracle.GetCurrencyRateAsOf(ctx, fund.ReportingCurrency, cutoff)
	if err != nil {
		return nil, err
	}

	totalUSD := decimal.Zero
	for _, h := range open {
		balance := balances[h.ID.String()]
		if balance.IsZero() {
			continue
		}
		price, err := s.Ledger.ResolvePrice(ctx, h.Asset, cutoff)
		if err != nil {
			return nil, err
		}
		totalUSD = totalUSD.Add(balance.Mul(price.USDPrice))
	}
	totalValue := totalUSD.Div(rate.USDRate)

	shareGross := fund.ShareSeedValue
	if fund.TotalShares.IsPositive() {
		shareGross = totalValue.Div(fund.TotalShares)
	} else if nav, err := s.Navs.GetLatestPeriodNav(ctx, fund.ID); err == nil {
		shareGross = nav.ShareGross
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up latest nav: %w", err)
	}

	dailyNav := &domain.Nav{
		ID:            uuid.New(),
		FundID:        fund.ID,
		Type:          domain.NavTypeDaily,
		BookingPeriod: s.Calendar.CalcBookingPeriod(cutoff),
		Date:          cutoff,
		TotalValue:    totalValue,
		TotalShares:   fund.TotalShares,
		ShareGross:    shareGross,
		// Daily snapshots are informational: no fees apply, net equals gross
		// and the high-water-mark is carried unchanged.
		ShareNAV:       shareGross,
		ShareHWM:       fund.ShareValueHWM,
		CurrencyRateID: rate.ID,
	}
	if err := dailyNav.Validate(); err != nil {
		return nil, err
	}
	if err := s.Navs.UpsertDaily(ctx, dailyNav); err != nil {
		return nil, fmt.Errorf("failed to store daily nav: %w", err)
	}
	return dailyNav, nil
}
