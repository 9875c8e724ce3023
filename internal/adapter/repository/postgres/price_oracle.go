package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// priceOracle implements domain.PriceOracle over the listings and
// currency_rates tables the market-data importers fill. It resolves the most
// recent row at or before the requested instant and never falls back to a
// stale default: a missing row is a hard ErrPriceUnavailable.
type priceOracle struct {
	db *DB
}

// NewPriceOracle creates a new price oracle backed by stored listings
func NewPriceOracle(db *DB) domain.PriceOracle {
	return &priceOracle{db: db}
}

// GetPriceAsOf resolves the USD and BTC price of one unit of the asset
func (o *priceOracle) GetPriceAsOf(ctx context.Context, asset domain.AssetRef, at time.Time) (*domain.AssetPrice, error) {
	query := `
		SELECT usd_price, btc_price
		FROM listings
		WHERE asset_key = $1 AND listing_datetime <= $2
		ORDER BY listing_datetime DESC
		LIMIT 1
	`

	var usd, btc string
	err := o.db.conn(ctx).QueryRowContext(ctx, query, asset.Key(), at).Scan(&usd, &btc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.PriceUnavailableError{AssetKey: asset.Key(), At: at}
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	var price domain.AssetPrice
	if price.USDPrice, err = decimal.NewFromString(usd); err != nil {
		return nil, fmt.Errorf("failed to parse usd_price: %w", err)
	}
	if price.BTCPrice, err = decimal.NewFromString(btc); err != nil {
		return nil, fmt.Errorf("failed to parse btc_price: %w", err)
	}
	return &price, nil
}

// GetCurrencyRateAsOf resolves the USD rate of a fiat currency
func (o *priceOracle) GetCurrencyRateAsOf(ctx context.Context, currency string, at time.Time) (*domain.CurrencyRate, error) {
	query := `
		SELECT id, currency, usd_rate, date
		FROM currency_rates
		WHERE currency = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1
	`

	var rate domain.CurrencyRate
	var usdRate string
	err := o.db.conn(ctx).QueryRowContext(ctx, query, currency, at).Scan(&rate.ID, &rate.Currency, &usdRate, &rate.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.PriceUnavailableError{AssetKey: domain.FiatAsset(currency).Key(), At: at}
		}
		return nil, fmt.Errorf("failed to get currency rate: %w", err)
	}

	if rate.USDRate, err = decimal.NewFromString(usdRate); err != nil {
		return nil, fmt.Errorf("failed to parse usd_rate: %w", err)
	}
	return &rate, nil
}
