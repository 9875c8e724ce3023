package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundRepository defines the interface for fund persistence operations
type FundRepository interface {
	// GetByID retrieves a fund with its layers and category allocations
	GetByID(ctx context.Context, id uuid.UUID) (*Fund, error)

	// ListActive retrieves all funds that take part in period closes
	ListActive(ctx context.Context) ([]*Fund, error)

	// Create creates a new fund
	Create(ctx context.Context, fund *Fund) error

	// UpdateAggregates persists the mutable aggregate state of a fund.
	// Only the close transaction (and its rollback) may call this.
	UpdateAggregates(ctx context.Context, id uuid.UUID, totalValue, totalShares, shareValueHWM decimal.Decimal) error
}

// HoldingRepository defines the interface for holding persistence operations
type HoldingRepository interface {
	// GetByID retrieves a holding by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Holding, error)

	// Create creates a new holding
	Create(ctx context.Context, holding *Holding) error

	// Update persists all mutable fields of a holding
	Update(ctx context.Context, holding *Holding) error

	// Delete removes a holding. Only the rollback of a period close may
	// delete holdings, and only the successors that close created.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByFundPeriod retrieves every holding of a fund in one booking period
	ListByFundPeriod(ctx context.Context, fundID uuid.UUID, period Period) ([]*Holding, error)

	// ListOpenByFund retrieves every open holding of a fund
	ListOpenByFund(ctx context.Context, fundID uuid.UUID) ([]*Holding, error)

	// ListOpenByFundAsset retrieves the open holdings of one (fund, asset)
	// key in one booking period. More than one result is a ledger
	// invariant violation the caller must surface.
	ListOpenByFundAsset(ctx context.Context, fundID uuid.UUID, assetKey string, period Period) ([]*Holding, error)

	// GetLatestByFundAsset retrieves the holding of the most recent booking
	// period for a (fund, asset) key, open or closed.
	// Returns ErrNotFound if the fund has never held the asset.
	GetLatestByFundAsset(ctx context.Context, fundID uuid.UUID, assetKey string) (*Holding, error)

	// LatestPeriod derives the fund's latest registered booking period from
	// its holdings. Returns ErrNoPeriod if the fund has no holdings.
	LatestPeriod(ctx context.Context, fundID uuid.UUID) (Period, error)

	// ListOpenAll retrieves every open holding across all funds, used for
	// fund dependency discovery.
	ListOpenAll(ctx context.Context) ([]*Holding, error)
}

// TransferRepository defines the interface for transfer persistence operations
type TransferRepository interface {
	// Create creates a new transfer
	Create(ctx context.Context, transfer *Transfer) error

	// ListByHolding retrieves every transfer attached to a holding
	ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]*Transfer, error)

	// ListByHoldingBetween retrieves the transfers attached to a holding
	// dated within [from, to)
	ListByHoldingBetween(ctx context.Context, holdingID uuid.UUID, from, to time.Time) ([]*Transfer, error)

	// CountByHolding returns the number of transfers attached to a holding
	CountByHolding(ctx context.Context, holdingID uuid.UUID) (int, error)
}

// TradeRepository defines the interface for order/trade persistence operations
type TradeRepository interface {
	// ListFundedTradesBetween retrieves every fill dated within [from, to)
	// of orders the fund contributed to, joined with the fund's funding.
	ListFundedTradesBetween(ctx context.Context, fundID uuid.UUID, from, to time.Time) ([]*FundedTrade, error)

	// HasOpenOrders reports whether the fund has unsettled orders touching
	// the asset, which keeps a zero-balance holding rolling forward.
	HasOpenOrders(ctx context.Context, fundID uuid.UUID, assetKey string) (bool, error)
}

// NavRepository defines the interface for nav persistence operations
type NavRepository interface {
	// Create creates a new nav record
	Create(ctx context.Context, nav *Nav) error

	// Delete removes a nav record. Only the rollback of a period close may
	// delete period navs.
	Delete(ctx context.Context, id uuid.UUID) error

	// GetPeriodNav retrieves the period nav of one booking period.
	// Returns ErrNotFound if the period has not been closed.
	GetPeriodNav(ctx context.Context, fundID uuid.UUID, period Period) (*Nav, error)

	// GetLatestPeriodNav retrieves the most recent period nav of a fund.
	// Returns ErrNotFound if the fund has never closed a period.
	GetLatestPeriodNav(ctx context.Context, fundID uuid.UUID) (*Nav, error)

	// GetPreviousPeriodNav retrieves the most recent period nav strictly
	// before the given period. Returns ErrNotFound if none exists.
	GetPreviousPeriodNav(ctx context.Context, fundID uuid.UUID, before Period) (*Nav, error)

	// UpsertDaily stores a daily nav, replacing any existing daily nav of
	// the same fund and calendar day.
	UpsertDaily(ctx context.Context, nav *Nav) error

	// ListByFund retrieves all navs of a fund of one type, newest first
	ListByFund(ctx context.Context, fundID uuid.UUID, navType NavType) ([]*Nav, error)
}

// TxManager runs a function as one atomic unit of work against persistent
// storage: either every repository mutation made inside fn is persisted, or
// none is. The period close and its rollback run entirely inside one unit.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
