// Package nav orchestrates the period close, its rollback, and the
// intra-period daily nav snapshots for a single fund.
package nav

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/distribution"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/fee"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/ledger"
)

// Calculator closes booking periods. One close runs as a single unit of work
// against persistent storage, serialized per fund: partial application is
// never observable, and a failed or cancelled close leaves the fund in its
// pre-close state.
type Calculator struct {
	Funds     domain.FundRepository
	Holdings  domain.HoldingRepository
	Transfers domain.TransferRepository
	Navs      domain.NavRepository
	Ledger    *ledger.Service
	Fees      fee.Calculator
	Calendar  domain.BookingPeriodCalendar
	Tx        domain.TxManager

	// Now is the wall clock, replaceable in tests.
	Now func() time.Time

	locks *lockRegistry
}

// NewCalculator creates a new Calculator instance
func NewCalculator(
	funds domain.FundRepository,
	holdings domain.HoldingRepository,
	transfers domain.TransferRepository,
	navs domain.NavRepository,
	ledgerSvc *ledger.Service,
	fees fee.Calculator,
	calendar domain.BookingPeriodCalendar,
	tx domain.TxManager,
) *Calculator {
	return &Calculator{
		Funds:     funds,
		Holdings:  holdings,
		Transfers: transfers,
		Navs:      navs,
		Ledger:    ledgerSvc,
		Fees:      fees,
		Calendar:  calendar,
		Tx:        tx,
		Now:       time.Now,
		locks:     newLockRegistry(),
	}
}

// CloseResult is the outcome of one period close.
type CloseResult struct {
	Nav         *domain.Nav
	NextPeriod  domain.Period
	LayerAlerts []distribution.LayerAlert
}

// RollbackResult is the outcome of rolling back the latest close.
type RollbackResult struct {
	RolledBack     domain.Period // the period that is open again
	PreviousPeriod domain.Period
}

// ClosePeriod closes one booking period of one fund:
//
//  1. Reject if the period already has a period nav, unless force.
//  2. Recalculate end balances, then percentages.
//  3. Derive the gross share value from the fund total and share count.
//  4. Compute fees and the new high-water-mark.
//  5. Apply investor in/out-flows to the share count.
//  6. Persist the period nav and the updated fund aggregates.
//  7. Roll the holdings forward into the next period.
//
// Steps 2-7 run inside one storage transaction.
func (c *Calculator) ClosePeriod(ctx context.Context, fundID uuid.UUID, period domain.Period, forceRecalculation bool) (*CloseResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	release, ok := c.locks.tryAcquire(fundID)
	if !ok {
		return nil, &domain.CloseError{FundID: fundID, Period: period, Err: domain.ErrConcurrentCloseRejected}
	}
	defer release()

	var result *CloseResult
	err := c.Tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := c.closePeriod(ctx, fundID, period, forceRecalculation)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Calculator) closePeriod(ctx context.Context, fundID uuid.UUID, period domain.Period, forceRecalculation bool) (*CloseResult, error) {
	// Aggregates are re-read inside the transaction: no cached fund state
	// is authoritative across closes.
	fund, err := c.Funds.GetByID(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fund %s: %w", fundID, err)
	}

	latestRegistered, err := c.Holdings.LatestPeriod(ctx, fund.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNoPeriod) {
			return nil, &domain.CloseError{FundID: fund.ID, Period: period, Err: err}
		}
		return nil, fmt.Errorf("failed to derive latest registered period: %w", err)
	}
	if period.After(latestRegistered) {
		// Closing ahead of the ledger would mint a nav over an empty holding
		// set and block the rollback of the real close.
		return nil, &domain.CloseError{
			FundID: fund.ID,
			Period: period,
			Err:    fmt.Errorf("period %s is not registered, latest is %s", period, latestRegistered),
		}
	}

	existing, err := c.Navs.GetPeriodNav(ctx, fund.ID, period)
	switch {
	case err == nil:
		if !forceRecalculation {
			return nil, &domain.CloseError{FundID: fund.ID, Period: period, Err: domain.ErrPeriodAlreadyClosed}
		}
		if err := c.rewindAggregates(ctx, fund, existing); err != nil {
			return nil, err
		}
		if err := c.Navs.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to delete nav for recalculation: %w", err)
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to look up period nav: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := c.Ledger.RecalcEndBalances(ctx, fund, period); err != nil {
		return nil, err
	}
	valuation, err := c.Ledger.RecalcPercentages(ctx, fund, period)
	if err != nil {
		return nil, err
	}

	shareGross, err := c.shareGross(ctx, fund, period, valuation.TotalValue)
	if err != nil {
		return nil, err
	}

	feeResult, err := c.Fees.Compute(fee.Input{
		ShareGross:               shareGross,
		PreviousHWM:              fund.ShareValueHWM,
		TotalShares:              fund.TotalShares,
		AdminFeePercentage:       fund.AdminFeePercentage,
		AdminFeeFrequency:        fund.AdminFeeFrequency,
		PerformanceFeePercentage: fund.PerformanceFeePercentage,
		BookAdministrationFee:    c.Calendar.BookAdministrationFee(fund.AdminFeeFrequency, period),
	})
	if err != nil {
		return nil, &domain.CloseError{FundID: fund.ID, Period: period, Err: err}
	}

	inOutValue, inOutShares, err := c.investorFlows(ctx, fund, period, valuation)
	if err != nil {
		return nil, err
	}
	totalShares := fund.TotalShares.Add(inOutShares)
	if totalShares.IsNegative() {
		return nil, &domain.CloseError{
			FundID: fund.ID,
			Period: period,
			Err:    fmt.Errorf("share redemptions (%s) exceed total shares (%s)", inOutShares.Neg(), fund.TotalShares),
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	periodNav := &domain.Nav{
		ID:                uuid.New(),
		FundID:            fund.ID,
		Type:              domain.NavTypePeriod,
		BookingPeriod:     period,
		Date:              c.Calendar.PeriodEnd(period),
		TotalValue:        valuation.TotalValue,
		TotalShares:       totalShares,
		ShareGross:        shareGross,
		ShareNAV:          feeResult.ShareNAV,
		ShareHWM:          feeResult.NewHWM,
		AdministrationFee: feeResult.AdministrationFee,
		PerformanceFee:    feeResult.PerformanceFee,
		InOutValue:        inOutValue,
		InOutShares:       inOutShares,
		CurrencyRateID:    valuation.Rate.ID,
	}
	if err := periodNav.Validate(); err != nil {
		return nil, &domain.CloseError{FundID: fund.ID, Period: period, Err: err}
	}
	if err := c.Navs.Create(ctx, periodNav); err != nil {
		return nil, fmt.Errorf("failed to persist nav: %w", err)
	}

	if err := c.Funds.UpdateAggregates(ctx, fund.ID, valuation.TotalValue, totalShares, feeResult.NewHWM); err != nil {
		return nil, fmt.Errorf("failed to update fund aggregates: %w", err)
	}

	if _, err := c.Ledger.RollForward(ctx, fund, period); err != nil {
		return nil, err
	}

	layerDist := distribution.CalcLayerDistribution(valuation.Holdings, nil)
	alerts := distribution.CheckLayerAlerts(fund.Layers, layerDist)

	return &CloseResult{
		Nav:         periodNav,
		NextPeriod:  period.Next(),
		LayerAlerts: alerts,
	}, nil
}

// rewindAggregates puts the fund aggregates back to the state the deleted
// nav was computed from, so a forced recalculation on unchanged inputs
// reproduces the same nav instead of compounding investor flows and the
// high-water-mark. The previous period nav records that state exactly; for a
// first close the share base is recovered from the nav itself by backing out
// the flows it applied.
func (c *Calculator) rewindAggregates(ctx context.Context, fund *domain.Fund, nav *domain.Nav) error {
	totalValue := decimal.Zero
	totalShares := nav.TotalShares.Sub(nav.InOutShares)
	hwm := decimal.Zero

	previous, err := c.Navs.GetPreviousPeriodNav(ctx, fund.ID, nav.BookingPeriod)
	switch {
	case err == nil:
		totalValue, totalShares, hwm = previous.TotalValue, previous.TotalShares, previous.ShareHWM
	case errors.Is(err, domain.ErrNotFound):
	default:
		return fmt.Errorf("failed to look up previous nav: %w", err)
	}

	if err := c.Funds.UpdateAggregates(ctx, fund.ID, totalValue, totalShares, hwm); err != nil {
		return fmt.Errorf("failed to rewind fund aggregates: %w", err)
	}
	fund.TotalValue, fund.TotalShares, fund.ShareValueHWM = totalValue, totalShares, hwm
	return nil
}

// shareGross derives the pre-fee share value. With no shares outstanding the
// fund total cannot be divided, so the value carries over from the previous
// period nav, or seeds at the fund's unit seed value on the first close.
func (c *Calculator) shareGross(ctx context.Context, fund *domain.Fund, period domain.Period, totalValue decimal.Decimal) (decimal.Decimal, error) {
	if fund.TotalShares.IsPositive() {
		return totalValue.Div(fund.TotalShares), nil
	}
	previous, err := c.Navs.GetPreviousPeriodNav(ctx, fund.ID, period)
	if err == nil {
		return previous.ShareGross, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return fund.ShareSeedValue, nil
	}
	return decimal.Zero, fmt.Errorf("failed to look up previous nav: %w", err)
}

// investorFlows sums the share-moving transfers of the period: the net value
// (in the reporting currency, converted at end-of-period prices) and the net
// shares issued or redeemed.
func (c *Calculator) investorFlows(ctx context.Context, fund *domain.Fund, period domain.Period, valuation *ledger.Valuation) (value, shares decimal.Decimal, err error) {
	start := c.Calendar.PeriodStart(period)
	end := c.Calendar.PeriodEnd(period)

	value, shares = decimal.Zero, decimal.Zero
	for _, h := range valuation.Holdings {
		transfers, err := c.Transfers.ListByHoldingBetween(ctx, h.ID, start, end)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to list transfers for holding %s: %w", h.ID, err)
		}
		// A fully redeemed holding closes at a zero end price; its flows
		// still moved real money, so they are valued at the period-end price.
		price := h.EndUSDPrice
		for _, t := range transfers {
			if !t.IsInvestorFlow() {
				continue
			}
			if price.IsZero() {
				resolved, err := c.Ledger.ResolvePrice(ctx, h.Asset, end)
				if err != nil {
					return decimal.Zero, decimal.Zero, &domain.CloseError{
						FundID:   fund.ID,
						Period:   period,
						AssetKey: h.Asset.Key(),
						Err:      err,
					}
				}
				price = resolved.USDPrice
			}
			flowUSD := t.SignedAmount().Mul(price)
			value = value.Add(flowUSD.Div(valuation.Rate.USDRate))
			shares = shares.Add(t.SignedShares())
		}
	}
	return value, shares, nil
}

// RollbackClosePeriod undoes the single most-recently-closed period of a
// fund: it deletes the successor holdings the close created, reopens the
// rolled-back holdings, deletes the period nav, and restores the fund
// aggregates from the previous period nav (or to zero if none exists).
// Anything else is not permitted: an earlier period, a fund that never
// closed, or a close whose successors already carry new transfers.
func (c *Calculator) RollbackClosePeriod(ctx context.Context, fundID uuid.UUID) (*RollbackResult, error) {
	release, ok := c.locks.tryAcquire(fundID)
	if !ok {
		return nil, &domain.CloseError{FundID: fundID, Err: domain.ErrConcurrentCloseRejected}
	}
	defer release()

	var result *RollbackResult
	err := c.Tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := c.rollback(ctx, fundID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Calculator) rollback(ctx context.Context, fundID uuid.UUID) (*RollbackResult, error) {
	fund, err := c.Funds.GetByID(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fund %s: %w", fundID, err)
	}

	latest, err := c.Navs.GetLatestPeriodNav(ctx, fund.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.CloseError{FundID: fund.ID, Err: fmt.Errorf("%w: fund has no closed period", domain.ErrRollbackNotPermitted)}
		}
		return nil, fmt.Errorf("failed to look up latest nav: %w", err)
	}
	period := latest.BookingPeriod
	next := period.Next()

	// The latest registered period must be the close's successor period (or
	// the period itself, when nothing rolled forward): anything later means
	// a later close exists and this one is no longer reversible.
	latestRegistered, err := c.Holdings.LatestPeriod(ctx, fund.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive latest registered period: %w", err)
	}
	if latestRegistered.After(next) {
		return nil, &domain.CloseError{FundID: fund.ID, Period: period, Err: fmt.Errorf("%w: period %s is not the latest closed period", domain.ErrRollbackNotPermitted, period)}
	}

	successors, err := c.Holdings.ListByFundPeriod(ctx, fund.ID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to list successor holdings: %w", err)
	}
	for _, successor := range successors {
		if !successor.IsOpen() {
			return nil, &domain.CloseError{FundID: fund.ID, Period: period, Err: fmt.Errorf("%w: successor period %s is already closed", domain.ErrRollbackNotPermitted, next)}
		}
		count, err := c.Transfers.CountByHolding(ctx, successor.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count successor transfers: %w", err)
		}
		if count > 0 {
			// Deleting the successor would orphan transfers recorded after
			// the close; the rollback only removes state the close created.
			return nil, &domain.CloseError{
				FundID:   fund.ID,
				Period:   period,
				AssetKey: successor.Asset.Key(),
				Err:      fmt.Errorf("%w: successor holding already carries transfers", domain.ErrRollbackNotPermitted),
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, successor := range successors {
		if err := c.Holdings.Delete(ctx, successor.ID); err != nil {
			return nil, fmt.Errorf("failed to delete successor holding %s: %w", successor.ID, err)
		}
	}

	rolledBack, err := c.Holdings.ListByFundPeriod(ctx, fund.ID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	for _, h := range rolledBack {
		h.PeriodClosedDateTime = nil
		h.NextHoldingID = nil
		if err := c.Holdings.Update(ctx, h); err != nil {
			return nil, fmt.Errorf("failed to reopen holding %s: %w", h.ID, err)
		}
	}

	if err := c.Navs.Delete(ctx, latest.ID); err != nil {
		return nil, fmt.Errorf("failed to delete nav: %w", err)
	}

	// Restore the aggregates recorded on the previous period nav, or the
	// pre-first-close state if this was the fund's first close.
	totalValue, totalShares, hwm := decimal.Zero, decimal.Zero, decimal.Zero
	previous, err := c.Navs.GetPreviousPeriodNav(ctx, fund.ID, period)
	switch {
	case err == nil:
		totalValue, totalShares, hwm = previous.TotalValue, previous.TotalShares, previous.ShareHWM
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to look up previous nav: %w", err)
	}
	if err := c.Funds.UpdateAggregates(ctx, fund.ID, totalValue, totalShares, hwm); err != nil {
		return nil, fmt.Errorf("failed to restore fund aggregates: %w", err)
	}

	return &RollbackResult{RolledBack: period, PreviousPeriod: period.Previous()}, nil
}

// CloseAllBookingPeriods closes the fund's periods from its latest
// registered one (derived from its holdings) up to, but excluding, the
// period the wall clock is in. It stops at the first failure, most commonly
// a price gap, and reports the last period it managed to close together with
// the error for the gap period.
func (c *Calculator) CloseAllBookingPeriods(ctx context.Context, fundID uuid.UUID) (domain.Period, error) {
	current := c.Calendar.CalcBookingPeriod(c.Now())

	var lastClosed domain.Period
	latest, err := c.Holdings.LatestPeriod(ctx, fundID)
	if err != nil {
		return "", err
	}

	// A fully wound-down fund rolls no successors forward, so its latest
	// registered period stays the closed one; there is nothing left to close.
	nav, err := c.Navs.GetLatestPeriodNav(ctx, fundID)
	switch {
	case err == nil:
		if !nav.BookingPeriod.Before(latest) {
			return nav.BookingPeriod, nil
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return "", fmt.Errorf("failed to look up latest nav: %w", err)
	}

	for p := latest; p.Before(current); {
		if err := ctx.Err(); err != nil {
			return lastClosed, err
		}
		result, err := c.ClosePeriod(ctx, fundID, p, false)
		if err != nil {
			return lastClosed, err
		}
		lastClosed = p
		p = result.NextPeriod
	}

	if lastClosed == "" {
		// Nothing left to close: the fund is already at the current period.
		if nav, err := c.Navs.GetLatestPeriodNav(ctx, fundID); err == nil {
			lastClosed = nav.BookingPeriod
		}
	}
	return lastClosed, nil
}
