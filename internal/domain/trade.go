package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSide represents the direction of an exchange order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an exchange order
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order represents an exchange order on a base/quote pair. Its fills are
// recorded as individual Trade rows; its attribution to funds as
// OrderFunding rows.
type Order struct {
	ID         uuid.UUID
	Exchange   string
	BaseAsset  AssetRef
	QuoteAsset AssetRef
	Side       OrderSide
	Status     OrderStatus
	DateTime   time.Time
	Reference  string // exchange-side order id
}

// Trade represents a single fill of an order.
type Trade struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	DateTime time.Time
	Amount   decimal.Decimal // base units filled
	Price    decimal.Decimal // quote per base unit
	Fee      decimal.Decimal // exchange fee, in quote units
}

// OrderFunding records how much of an order is attributed to one contributing
// fund: the bridge between exchange-level execution and fund-level ledger
// attribution. Percentage drives the replay of fills; the absolute amounts
// snapshot the attribution at order settlement.
type OrderFunding struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	FundID      uuid.UUID
	Percentage  decimal.Decimal // 0-100 share of the order
	BaseAmount  decimal.Decimal // attributed base units
	QuoteAmount decimal.Decimal // attributed quote units, fees included
}

// FundedTrade joins one fill with the order it belongs to and one fund's
// funding of that order. It is the unit the ledger replays when recomputing
// end balances.
type FundedTrade struct {
	Order   *Order
	Trade   *Trade
	Funding *OrderFunding
}

// BaseDelta returns the signed base-asset movement this fill causes for the
// funding fund: positive on a buy, negative on a sell.
func (ft *FundedTrade) BaseDelta() decimal.Decimal {
	amount := ft.Trade.Amount.Mul(ft.Funding.Percentage).Div(decimal.NewFromInt(100))
	if ft.Order.Side == OrderSideSell {
		return amount.Neg()
	}
	return amount
}

// QuoteDelta returns the signed quote-asset movement this fill causes for the
// funding fund. A buy spends quote (cost plus fee), a sell receives quote
// (proceeds minus fee).
func (ft *FundedTrade) QuoteDelta() decimal.Decimal {
	pct := ft.Funding.Percentage.Div(decimal.NewFromInt(100))
	cost := ft.Trade.Amount.Mul(ft.Trade.Price)
	if ft.Order.Side == OrderSideSell {
		return cost.Sub(ft.Trade.Fee).Mul(pct)
	}
	return cost.Add(ft.Trade.Fee).Mul(pct).Neg()
}

// Validate ensures the order adheres to domain rules
func (o *Order) Validate() error {
	if err := o.BaseAsset.Validate(); err != nil {
		return err
	}
	if err := o.QuoteAsset.Validate(); err != nil {
		return err
	}
	if o.BaseAsset.Equal(o.QuoteAsset) {
		return errors.New("order base and quote assets must differ")
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return errors.New("order side must be BUY or SELL")
	}
	switch o.Status {
	case OrderStatusOpen, OrderStatusFilled, OrderStatusCancelled:
	default:
		return errors.New("order status is not recognized")
	}
	return nil
}

// Validate ensures the funding adheres to domain rules
func (f *OrderFunding) Validate() error {
	if f.OrderID == uuid.Nil || f.FundID == uuid.Nil {
		return errors.New("order funding must reference an order and a fund")
	}
	if f.Percentage.IsNegative() || f.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("order funding percentage must be between 0 and 100")
	}
	return nil
}
