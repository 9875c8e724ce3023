package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// tradeRepository implements domain.TradeRepository
type tradeRepository struct {
	db *DB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *DB) domain.TradeRepository {
	return &tradeRepository{db: db}
}

// ListFundedTradesBetween retrieves every fill dated within [from, to) of
// orders the fund contributed to, joined with the fund's funding
func (r *tradeRepository) ListFundedTradesBetween(ctx context.Context, fundID uuid.UUID, from, to time.Time) ([]*domain.FundedTrade, error) {
	query := `
		SELECT
			o.id, o.exchange,
			o.base_asset_kind, o.base_asset_symbol, o.base_asset_fund_id,
			o.quote_asset_kind, o.quote_asset_symbol, o.quote_asset_fund_id,
			o.side, o.status, o.datetime, o.reference,
			t.id, t.datetime, t.amount, t.price, t.fee,
			f.id, f.percentage, f.base_amount, f.quote_amount
		FROM trades t
		JOIN orders o ON o.id = t.order_id
		JOIN order_fundings f ON f.order_id = o.id
		WHERE f.fund_id = $1 AND t.datetime >= $2 AND t.datetime < $3
		ORDER BY t.datetime, t.id
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, fundID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list funded trades: %w", err)
	}
	defer rows.Close()

	var out []*domain.FundedTrade
	for rows.Next() {
		var (
			order   domain.Order
			trade   domain.Trade
			funding domain.OrderFunding

			baseKind, quoteKind, side, status            string
			baseFundID, quoteFundID                      uuid.NullUUID
			amount, price, tradeFee, pct, baseAmt, quoteAmt string
		)

		err := rows.Scan(
			&order.ID, &order.Exchange,
			&baseKind, &order.BaseAsset.Symbol, &baseFundID,
			&quoteKind, &order.QuoteAsset.Symbol, &quoteFundID,
			&side, &status, &order.DateTime, &order.Reference,
			&trade.ID, &trade.DateTime, &amount, &price, &tradeFee,
			&funding.ID, &pct, &baseAmt, &quoteAmt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funded trade: %w", err)
		}

		order.BaseAsset.Kind = domain.AssetKind(baseKind)
		order.QuoteAsset.Kind = domain.AssetKind(quoteKind)
		if baseFundID.Valid {
			id := baseFundID.UUID
			order.BaseAsset.FundID = &id
		}
		if quoteFundID.Valid {
			id := quoteFundID.UUID
			order.QuoteAsset.FundID = &id
		}
		order.Side = domain.OrderSide(side)
		order.Status = domain.OrderStatus(status)

		trade.OrderID = order.ID
		if trade.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse trade amount: %w", err)
		}
		if trade.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse trade price: %w", err)
		}
		if trade.Fee, err = decimal.NewFromString(tradeFee); err != nil {
			return nil, fmt.Errorf("failed to parse trade fee: %w", err)
		}

		funding.OrderID = order.ID
		funding.FundID = fundID
		if funding.Percentage, err = decimal.NewFromString(pct); err != nil {
			return nil, fmt.Errorf("failed to parse funding percentage: %w", err)
		}
		if funding.BaseAmount, err = decimal.NewFromString(baseAmt); err != nil {
			return nil, fmt.Errorf("failed to parse funding base amount: %w", err)
		}
		if funding.QuoteAmount, err = decimal.NewFromString(quoteAmt); err != nil {
			return nil, fmt.Errorf("failed to parse funding quote amount: %w", err)
		}

		out = append(out, &domain.FundedTrade{Order: &order, Trade: &trade, Funding: &funding})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate funded trades: %w", err)
	}
	return out, nil
}

// HasOpenOrders reports whether the fund has unsettled orders touching the
// asset
func (r *tradeRepository) HasOpenOrders(ctx context.Context, fundID uuid.UUID, assetKey string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_fundings f ON f.order_id = o.id
			WHERE f.fund_id = $1
			  AND o.status = $2
			  AND (
				o.base_asset_kind || ':' || COALESCE(NULLIF(o.base_asset_symbol, ''), o.base_asset_fund_id::text) = $3
				OR o.quote_asset_kind || ':' || COALESCE(NULLIF(o.quote_asset_symbol, ''), o.quote_asset_fund_id::text) = $3
			  )
		)
	`

	var exists bool
	err := r.db.conn(ctx).QueryRowContext(ctx, query, fundID, string(domain.OrderStatusOpen), assetKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open orders: %w", err)
	}
	return exists, nil
}
