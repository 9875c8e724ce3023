package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaviergoby/bstdethintg-sub002/internal/adapter/calendar"
	"github.com/xaviergoby/bstdethintg-sub002/internal/adapter/repository/memory"
	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

const period = domain.Period("202401")

type fixture struct {
	store   *memory.Store
	service *Service
	cal     *calendar.Calendar
	fund    *domain.Fund
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	cal := calendar.MustNew(17, "UTC")

	fund := &domain.Fund{
		ID:                    uuid.New(),
		Name:                  "Genesis Fund",
		IsActive:              true,
		ReportingCurrency:     "USD",
		PrimaryCryptoCurrency: "BTC",
		AdminFeeFrequency:     4,
		ShareSeedValue:        decimal.NewFromInt(100),
		TotalShares:           decimal.NewFromInt(100),
	}
	require.NoError(t, store.Funds().Create(context.Background(), fund))

	service := NewService(
		store.Funds(), store.Holdings(), store.Transfers(), store.Trades(),
		store.Navs(), cal, store.Oracle(), StickyLayerAssignment{},
	)
	return &fixture{store: store, service: service, cal: cal, fund: fund}
}

// seedHolding creates an open holding with the given start balance.
func (f *fixture) seedHolding(t *testing.T, asset domain.AssetRef, p domain.Period, start decimal.Decimal) *domain.Holding {
	t.Helper()
	h := &domain.Holding{
		ID:            uuid.New(),
		FundID:        f.fund.ID,
		Asset:         asset,
		BookingPeriod: p,
		StartBalance:  start,
		EndBalance:    start,
		StartDateTime: f.cal.PeriodStart(p),
	}
	require.NoError(t, f.store.Holdings().Create(context.Background(), h))
	return h
}

func (f *fixture) seedTransfer(t *testing.T, holdingID uuid.UUID, at time.Time, direction domain.TransferDirection, amount decimal.Decimal) *domain.Transfer {
	t.Helper()
	transfer := &domain.Transfer{
		ID:              uuid.New(),
		HoldingID:       holdingID,
		DateTime:        at,
		TransactionType: domain.TransactionTypeInflow,
		Direction:       direction,
		Amount:          amount,
	}
	if direction == domain.TransferDirectionOut {
		transfer.TransactionType = domain.TransactionTypeOutflow
	}
	require.NoError(t, f.store.Transfers().Create(context.Background(), transfer))
	return transfer
}

func TestGetOrCreateOpenHolding_New(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	h, err := f.service.GetOrCreateOpenHolding(ctx, f.fund, domain.CryptoAsset("BTC"), period)

	require.NoError(t, err)
	assert.True(t, h.StartBalance.IsZero())
	assert.Equal(t, period, h.BookingPeriod)
	assert.Equal(t, f.cal.PeriodStart(period), h.StartDateTime)
	assert.Nil(t, h.PreviousHoldingID)
	assert.True(t, h.IsOpen())
}

func TestGetOrCreateOpenHolding_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))

	h, err := f.service.GetOrCreateOpenHolding(ctx, f.fund, domain.CryptoAsset("BTC"), period)

	require.NoError(t, err)
	assert.Equal(t, existing.ID, h.ID)
}

func TestGetOrCreateOpenHolding_ChainsFromPredecessor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	end := f.cal.PeriodEnd(period)
	predecessor := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	predecessor.EndBalance = decimal.NewFromFloat(1.5)
	predecessor.EndDateTime = end
	predecessor.PeriodClosedDateTime = &end
	require.NoError(t, f.store.Holdings().Update(ctx, predecessor))

	h, err := f.service.GetOrCreateOpenHolding(ctx, f.fund, domain.CryptoAsset("BTC"), period.Next())

	require.NoError(t, err)
	assert.True(t, h.StartBalance.Equal(decimal.NewFromFloat(1.5)))
	require.NotNil(t, h.PreviousHoldingID)
	assert.Equal(t, predecessor.ID, *h.PreviousHoldingID)
	assert.Equal(t, end, h.StartDateTime)

	// The predecessor is back-linked to its successor
	stored, err := f.store.Holdings().GetByID(ctx, predecessor.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextHoldingID)
	assert.Equal(t, h.ID, *stored.NextHoldingID)
	assert.NoError(t, stored.ChainsTo(h))
}

func TestGetOrCreateOpenHolding_DuplicateOpenIsInvariantViolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(2))

	_, err := f.service.GetOrCreateOpenHolding(ctx, f.fund, domain.CryptoAsset("BTC"), period)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLedgerInvariantViolation))

	var closeErr *domain.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, "CRYPTO:BTC", closeErr.AssetKey)
}

func TestGetOrCreateOpenHolding_CannotReopenBehindLatest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHolding(t, domain.CryptoAsset("BTC"), period.Next(), decimal.NewFromInt(1))

	_, err := f.service.GetOrCreateOpenHolding(ctx, f.fund, domain.CryptoAsset("BTC"), period)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLedgerInvariantViolation))
}

func TestRecalcEndBalances_ReplaysTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	// 1.0 BTC at period start, one 0.5 BTC investor inflow mid-period,
	// BTC at 50,000 USD at period end.
	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.seedTransfer(t, h.ID, f.cal.PeriodStart(period).AddDate(0, 0, 14), domain.TransferDirectionIn, decimal.NewFromFloat(0.5))
	f.store.AddListing("CRYPTO:BTC", end, decimal.NewFromInt(50000), decimal.NewFromInt(1))

	holdings, err := f.service.RecalcEndBalances(ctx, f.fund, period)

	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].EndBalance.Equal(decimal.NewFromFloat(1.5)))
	assert.True(t, holdings[0].EndUSDPrice.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, end, holdings[0].EndDateTime)
	assert.True(t, holdings[0].EndValueUSD().Equal(decimal.NewFromInt(75000)))
}

func TestRecalcEndBalances_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.seedTransfer(t, h.ID, f.cal.PeriodStart(period).Add(time.Hour), domain.TransferDirectionOut, decimal.NewFromFloat(0.25))
	f.store.AddListing("CRYPTO:BTC", end, decimal.NewFromInt(50000), decimal.NewFromInt(1))

	first, err := f.service.RecalcEndBalances(ctx, f.fund, period)
	require.NoError(t, err)
	second, err := f.service.RecalcEndBalances(ctx, f.fund, period)
	require.NoError(t, err)

	// Re-running on unchanged inputs yields identical balances, not drift
	assert.True(t, first[0].EndBalance.Equal(second[0].EndBalance))
	assert.True(t, second[0].EndBalance.Equal(decimal.NewFromFloat(0.75)))
}

func TestRecalcEndBalances_TradeOpensNewHolding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	f.seedHolding(t, domain.CryptoAsset("USDT"), period, decimal.NewFromInt(10000))

	// Buy 0.1 BTC at 50,000 USDT, fully funded by this fund, 10 USDT fee.
	order := &domain.Order{
		ID:         uuid.New(),
		Exchange:   "kraken",
		BaseAsset:  domain.CryptoAsset("BTC"),
		QuoteAsset: domain.CryptoAsset("USDT"),
		Side:       domain.OrderSideBuy,
		Status:     domain.OrderStatusFilled,
		DateTime:   f.cal.PeriodStart(period).AddDate(0, 0, 7),
	}
	trade := &domain.Trade{
		ID:       uuid.New(),
		OrderID:  order.ID,
		DateTime: order.DateTime,
		Amount:   decimal.NewFromFloat(0.1),
		Price:    decimal.NewFromInt(50000),
		Fee:      decimal.NewFromInt(10),
	}
	funding := &domain.OrderFunding{
		ID:         uuid.New(),
		OrderID:    order.ID,
		FundID:     f.fund.ID,
		Percentage: decimal.NewFromInt(100),
	}
	f.store.AddOrder(order, []*domain.Trade{trade}, []*domain.OrderFunding{funding})

	f.store.AddListing("CRYPTO:BTC", end, decimal.NewFromInt(52000), decimal.NewFromInt(1))
	f.store.AddListing("CRYPTO:USDT", end, decimal.NewFromInt(1), decimal.NewFromFloat(0.00002))

	holdings, err := f.service.RecalcEndBalances(ctx, f.fund, period)

	require.NoError(t, err)
	require.Len(t, holdings, 2)

	byKey := make(map[string]*domain.Holding)
	for _, h := range holdings {
		byKey[h.Asset.Key()] = h
	}
	// The BTC holding was opened mid-period by the trade
	require.Contains(t, byKey, "CRYPTO:BTC")
	assert.True(t, byKey["CRYPTO:BTC"].EndBalance.Equal(decimal.NewFromFloat(0.1)))
	// USDT paid cost plus fee: 10000 - (5000 + 10) = 4990
	assert.True(t, byKey["CRYPTO:USDT"].EndBalance.Equal(decimal.NewFromInt(4990)))
}

func TestRecalcEndBalances_ZeroBalanceSkipsOracle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The fund exited this asset and it was delisted: no price exists, but
	// the zero position must not block the recompute.
	h := f.seedHolding(t, domain.CryptoAsset("LUNA"), period, decimal.NewFromInt(500))
	f.seedTransfer(t, h.ID, f.cal.PeriodStart(period).Add(time.Hour), domain.TransferDirectionOut, decimal.NewFromInt(500))

	holdings, err := f.service.RecalcEndBalances(ctx, f.fund, period)

	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].EndBalance.IsZero())
	assert.True(t, holdings[0].EndUSDPrice.IsZero())
	assert.True(t, holdings[0].EndBTCPrice.IsZero())
}

func TestRecalcEndBalances_MissingPriceFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))

	_, err := f.service.RecalcEndBalances(ctx, f.fund, period)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPriceUnavailable))
}

func TestRecalcPercentages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	btc := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	btc.EndBalance = decimal.NewFromFloat(1.5)
	btc.EndUSDPrice = decimal.NewFromInt(50000)
	require.NoError(t, f.store.Holdings().Update(ctx, btc))

	usdt := f.seedHolding(t, domain.CryptoAsset("USDT"), period, decimal.NewFromInt(25000))
	usdt.EndBalance = decimal.NewFromInt(25000)
	usdt.EndUSDPrice = decimal.NewFromInt(1)
	require.NoError(t, f.store.Holdings().Update(ctx, usdt))

	f.store.AddCurrencyRate("USD", decimal.NewFromInt(1), end)

	valuation, err := f.service.RecalcPercentages(ctx, f.fund, period)

	require.NoError(t, err)
	assert.True(t, valuation.TotalValue.Equal(decimal.NewFromInt(100000)))

	byKey := make(map[string]*domain.Holding)
	for _, h := range valuation.Holdings {
		byKey[h.Asset.Key()] = h
	}
	assert.True(t, byKey["CRYPTO:BTC"].EndPercentage.Equal(decimal.NewFromInt(75)))
	assert.True(t, byKey["CRYPTO:USDT"].EndPercentage.Equal(decimal.NewFromInt(25)))
}

func TestRollForward_ChainContinuity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	h.EndBalance = decimal.NewFromFloat(1.5)
	h.EndDateTime = end
	require.NoError(t, f.store.Holdings().Update(ctx, h))

	successors, err := f.service.RollForward(ctx, f.fund, period)

	require.NoError(t, err)
	require.Len(t, successors, 1)

	closed, err := f.store.Holdings().GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())
	require.NoError(t, closed.ChainsTo(successors[0]))
	assert.Equal(t, period.Next(), successors[0].BookingPeriod)
	assert.True(t, successors[0].IsOpen())
}

func TestRollForward_ZeroBalanceNotCarried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	h := f.seedHolding(t, domain.CryptoAsset("LUNA"), period, decimal.Zero)
	h.EndDateTime = end
	require.NoError(t, f.store.Holdings().Update(ctx, h))

	successors, err := f.service.RollForward(ctx, f.fund, period)

	require.NoError(t, err)
	assert.Empty(t, successors)

	// The holding itself is still closed
	closed, err := f.store.Holdings().GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())
	assert.Nil(t, closed.NextHoldingID)
}

func TestRollForward_ZeroBalanceWithOpenOrderCarried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.Zero)
	h.EndDateTime = end
	require.NoError(t, f.store.Holdings().Update(ctx, h))

	// An unsettled order on the asset keeps the position alive
	order := &domain.Order{
		ID:         uuid.New(),
		BaseAsset:  domain.CryptoAsset("BTC"),
		QuoteAsset: domain.CryptoAsset("USDT"),
		Side:       domain.OrderSideBuy,
		Status:     domain.OrderStatusOpen,
		DateTime:   end.Add(-time.Hour),
	}
	funding := &domain.OrderFunding{ID: uuid.New(), OrderID: order.ID, FundID: f.fund.ID, Percentage: decimal.NewFromInt(100)}
	f.store.AddOrder(order, nil, []*domain.OrderFunding{funding})

	successors, err := f.service.RollForward(ctx, f.fund, period)

	require.NoError(t, err)
	require.Len(t, successors, 1)
	assert.True(t, successors[0].StartBalance.IsZero())
}

func TestResolvePrice_FundShares(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.cal.PeriodEnd(period)

	// The held fund reports in EUR and last closed at a net share value of
	// 200 EUR. At 1.10 USD per EUR and BTC at 55,000 USD, one share is
	// 220 USD or 0.004 BTC.
	held := &domain.Fund{
		ID:                    uuid.New(),
		Name:                  "Held Fund",
		IsActive:              true,
		ReportingCurrency:     "EUR",
		PrimaryCryptoCurrency: "BTC",
		ShareSeedValue:        decimal.NewFromInt(100),
	}
	require.NoError(t, f.store.Funds().Create(ctx, held))
	require.NoError(t, f.store.Navs().Create(ctx, &domain.Nav{
		ID:            uuid.New(),
		FundID:        held.ID,
		Type:          domain.NavTypePeriod,
		BookingPeriod: period,
		Date:          end,
		ShareNAV:      decimal.NewFromInt(200),
	}))
	f.store.AddCurrencyRate("EUR", decimal.NewFromFloat(1.10), end)
	f.store.AddListing("CRYPTO:BTC", end, decimal.NewFromInt(55000), decimal.NewFromInt(1))

	price, err := f.service.ResolvePrice(ctx, domain.FundSharesAsset(held.ID), end)

	require.NoError(t, err)
	assert.True(t, price.USDPrice.Equal(decimal.NewFromInt(220)))
	assert.True(t, price.BTCPrice.Equal(decimal.NewFromInt(220).Div(decimal.NewFromInt(55000))))
}

func TestResolvePrice_FundShares_NeverClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	held := &domain.Fund{
		ID:                    uuid.New(),
		Name:                  "Unclosed Fund",
		IsActive:              true,
		ReportingCurrency:     "USD",
		PrimaryCryptoCurrency: "BTC",
		ShareSeedValue:        decimal.NewFromInt(100),
	}
	require.NoError(t, f.store.Funds().Create(ctx, held))

	_, err := f.service.ResolvePrice(ctx, domain.FundSharesAsset(held.ID), f.cal.PeriodEnd(period))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPriceUnavailable))
}

func TestBalancesAsOf_ReadOnlyReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := f.cal.PeriodStart(period)
	cutoff := start.AddDate(0, 0, 10)

	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.seedTransfer(t, h.ID, start.AddDate(0, 0, 5), domain.TransferDirectionIn, decimal.NewFromFloat(0.5))
	// A transfer after the cutoff is not part of the snapshot
	f.seedTransfer(t, h.ID, start.AddDate(0, 0, 20), domain.TransferDirectionIn, decimal.NewFromInt(2))

	balances, err := f.service.BalancesAsOf(ctx, f.fund, []*domain.Holding{h}, cutoff)

	require.NoError(t, err)
	assert.True(t, balances[h.ID.String()].Equal(decimal.NewFromFloat(1.5)))

	// Nothing was written back
	stored, err := f.store.Holdings().GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, stored.EndBalance.Equal(decimal.NewFromInt(1)))
}
