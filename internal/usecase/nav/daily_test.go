package nav

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
	"github.com/xaviergoby/bstdethintg-sub002/internal/usecase/fee"
)

func newDailySampler(f *fixture) *DailySampler {
	return NewDailySampler(
		f.store.Funds(), f.store.Holdings(), f.store.Navs(),
		f.calculator.Ledger, f.cal, f.store.Oracle(),
	)
}

func TestCreateDailyNAV(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fee.NewHighWaterMark())
	sampler := newDailySampler(f)

	date := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	cutoff := f.cal.DailyNavEnd(date)

	// 1.0 BTC at period start plus a 0.5 BTC inflow before the cutoff,
	// valued at 50,000 USD: 75,000 total over 100 shares.
	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.seedTransfer(t, h.ID, cutoff.Add(-24*time.Hour), decimal.NewFromFloat(0.5), nil)
	f.store.AddListing("CRYPTO:BTC", cutoff, decimal.NewFromInt(50000), decimal.NewFromInt(1))
	f.store.AddCurrencyRate("USD", decimal.NewFromInt(1), cutoff)

	nav, err := sampler.CreateDailyNAV(ctx, f.fund.ID, date)

	require.NoError(t, err)
	assert.Equal(t, domain.NavTypeDaily, nav.Type)
	assert.Equal(t, cutoff, nav.Date)
	assert.Equal(t, period, nav.BookingPeriod)
	assert.True(t, nav.TotalValue.Equal(decimal.NewFromInt(75000)))
	assert.True(t, nav.ShareGross.Equal(decimal.NewFromInt(750)))
	// Daily snapshots carry no fees: net equals gross
	assert.True(t, nav.ShareNAV.Equal(nav.ShareGross))
	assert.True(t, nav.AdministrationFee.IsZero())
	assert.True(t, nav.PerformanceFee.IsZero())
}

func TestCreateDailyNAV_DoesNotMutateLedgerOrAggregates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fee.NewHighWaterMark())
	sampler := newDailySampler(f)

	date := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	cutoff := f.cal.DailyNavEnd(date)

	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.store.AddListing("CRYPTO:BTC", cutoff, decimal.NewFromInt(50000), decimal.NewFromInt(1))
	f.store.AddCurrencyRate("USD", decimal.NewFromInt(1), cutoff)

	_, err := sampler.CreateDailyNAV(ctx, f.fund.ID, date)
	require.NoError(t, err)

	stored, err := f.store.Holdings().GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOpen())
	assert.True(t, stored.EndUSDPrice.IsZero())

	fund, err := f.store.Funds().GetByID(ctx, f.fund.ID)
	require.NoError(t, err)
	assert.True(t, fund.TotalValue.IsZero())
	assert.True(t, fund.ShareValueHWM.IsZero())
}

func TestCreateDailyNAV_ResampleReplacesSameDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fee.NewHighWaterMark())
	sampler := newDailySampler(f)

	date := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	cutoff := f.cal.DailyNavEnd(date)

	h := f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.store.AddListing("CRYPTO:BTC", cutoff, decimal.NewFromInt(50000), decimal.NewFromInt(1))
	f.store.AddCurrencyRate("USD", decimal.NewFromInt(1), cutoff)

	first, err := sampler.CreateDailyNAV(ctx, f.fund.ID, date)
	require.NoError(t, err)

	// A late transfer backfills before the cutoff; re-sampling the same day
	// replaces the snapshot instead of stacking a second one.
	f.seedTransfer(t, h.ID, cutoff.Add(-time.Hour), decimal.NewFromInt(1), nil)

	second, err := sampler.CreateDailyNAV(ctx, f.fund.ID, date)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.TotalValue.Equal(decimal.NewFromInt(100000)))

	dailies, err := f.store.Navs().ListByFund(ctx, f.fund.ID, domain.NavTypeDaily)
	require.NoError(t, err)
	assert.Len(t, dailies, 1)
}

func TestCreateDailyNAV_MissingPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fee.NewHighWaterMark())
	sampler := newDailySampler(f)

	date := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	f.seedHolding(t, domain.CryptoAsset("BTC"), period, decimal.NewFromInt(1))
	f.store.AddCurrencyRate("USD", decimal.NewFromInt(1), f.cal.DailyNavEnd(date))

	_, err := sampler.CreateDailyNAV(ctx, f.fund.ID, date)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPriceUnavailable))
}
