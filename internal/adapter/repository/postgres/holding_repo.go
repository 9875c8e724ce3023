package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// holdingRepository implements domain.HoldingRepository
type holdingRepository struct {
	db *DB
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *DB) domain.HoldingRepository {
	return &holdingRepository{db: db}
}

const holdingColumns = `
	id, fund_id, asset_kind, asset_symbol, asset_fund_id, booking_period,
	layer_index, start_balance, end_balance, start_datetime, end_datetime,
	end_usd_price, end_btc_price, end_percentage, period_closed_datetime,
	previous_holding_id, next_holding_id
`

// GetByID retrieves a holding by its ID
func (r *holdingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE id = $1`

	holding, err := scanHolding(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("holding %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return holding, nil
}

// Create creates a new holding
func (r *holdingRepository) Create(ctx context.Context, holding *domain.Holding) error {
	query := `
		INSERT INTO holdings (` + holdingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query, holdingArgs(holding)...)
	if err != nil {
		return fmt.Errorf("failed to insert holding: %w", err)
	}
	return nil
}

// Update persists all mutable fields of a holding
func (r *holdingRepository) Update(ctx context.Context, holding *domain.Holding) error {
	query := `
		UPDATE holdings
		SET layer_index = $2, start_balance = $3, end_balance = $4,
		    start_datetime = $5, end_datetime = $6, end_usd_price = $7,
		    end_btc_price = $8, end_percentage = $9, period_closed_datetime = $10,
		    previous_holding_id = $11, next_holding_id = $12
		WHERE id = $1
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		holding.ID,
		holding.LayerIndex,
		holding.StartBalance.String(),
		holding.EndBalance.String(),
		holding.StartDateTime,
		nullTime(holding.EndDateTime),
		holding.EndUSDPrice.String(),
		holding.EndBTCPrice.String(),
		holding.EndPercentage.String(),
		nullTimePtr(holding.PeriodClosedDateTime),
		nullUUID(holding.PreviousHoldingID),
		nullUUID(holding.NextHoldingID),
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check holding update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("holding %s: %w", holding.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a holding
func (r *holdingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM holdings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check holding delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("holding %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByFundPeriod retrieves every holding of a fund in one booking period
func (r *holdingRepository) ListByFundPeriod(ctx context.Context, fundID uuid.UUID, period domain.Period) ([]*domain.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE fund_id = $1 AND booking_period = $2
		ORDER BY asset_kind, asset_symbol, asset_fund_id
	`
	return r.list(ctx, query, fundID, string(period))
}

// ListOpenByFund retrieves every open holding of a fund
func (r *holdingRepository) ListOpenByFund(ctx context.Context, fundID uuid.UUID) ([]*domain.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE fund_id = $1 AND period_closed_datetime IS NULL
		ORDER BY booking_period, asset_kind, asset_symbol, asset_fund_id
	`
	return r.list(ctx, query, fundID)
}

// ListOpenByFundAsset retrieves the open holdings of one (fund, asset,
// period) key
func (r *holdingRepository) ListOpenByFundAsset(ctx context.Context, fundID uuid.UUID, assetKey string, period domain.Period) ([]*domain.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE fund_id = $1
		  AND booking_period = $2
		  AND period_closed_datetime IS NULL
		  AND asset_kind || ':' || COALESCE(NULLIF(asset_symbol, ''), asset_fund_id::text) = $3
		ORDER BY id
	`
	return r.list(ctx, query, fundID, string(period), assetKey)
}

// GetLatestByFundAsset retrieves the holding of the most recent booking
// period for a (fund, asset) key
func (r *holdingRepository) GetLatestByFundAsset(ctx context.Context, fundID uuid.UUID, assetKey string) (*domain.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE fund_id = $1
		  AND asset_kind || ':' || COALESCE(NULLIF(asset_symbol, ''), asset_fund_id::text) = $2
		ORDER BY booking_period DESC
		LIMIT 1
	`

	holding, err := scanHolding(r.db.conn(ctx).QueryRowContext(ctx, query, fundID, assetKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("holding of %s for fund %s: %w", assetKey, fundID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest holding: %w", err)
	}
	return holding, nil
}

// LatestPeriod derives the fund's latest registered booking period
func (r *holdingRepository) LatestPeriod(ctx context.Context, fundID uuid.UUID) (domain.Period, error) {
	query := `SELECT MAX(booking_period) FROM holdings WHERE fund_id = $1`

	var period sql.NullString
	if err := r.db.conn(ctx).QueryRowContext(ctx, query, fundID).Scan(&period); err != nil {
		return "", fmt.Errorf("failed to get latest period: %w", err)
	}
	if !period.Valid {
		return "", fmt.Errorf("fund %s: %w", fundID, domain.ErrNoPeriod)
	}
	return domain.Period(period.String), nil
}

// ListOpenAll retrieves every open holding across all funds
func (r *holdingRepository) ListOpenAll(ctx context.Context) ([]*domain.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE period_closed_datetime IS NULL
		ORDER BY fund_id, booking_period, asset_kind, asset_symbol, asset_fund_id
	`
	return r.list(ctx, query)
}

func (r *holdingRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Holding, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*domain.Holding
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}

func holdingArgs(h *domain.Holding) []interface{} {
	return []interface{}{
		h.ID,
		h.FundID,
		string(h.Asset.Kind),
		h.Asset.Symbol,
		nullUUID(h.Asset.FundID),
		string(h.BookingPeriod),
		h.LayerIndex,
		h.StartBalance.String(),
		h.EndBalance.String(),
		h.StartDateTime,
		nullTime(h.EndDateTime),
		h.EndUSDPrice.String(),
		h.EndBTCPrice.String(),
		h.EndPercentage.String(),
		nullTimePtr(h.PeriodClosedDateTime),
		nullUUID(h.PreviousHoldingID),
		nullUUID(h.NextHoldingID),
	}
}

func scanHolding(row rowScanner) (*domain.Holding, error) {
	var h domain.Holding
	var kind, period string
	var assetFundID, previousID, nextID uuid.NullUUID
	var endDateTime, closedAt sql.NullTime
	var startBalance, endBalance, usdPrice, btcPrice, percentage string

	err := row.Scan(
		&h.ID,
		&h.FundID,
		&kind,
		&h.Asset.Symbol,
		&assetFundID,
		&period,
		&h.LayerIndex,
		&startBalance,
		&endBalance,
		&h.StartDateTime,
		&endDateTime,
		&usdPrice,
		&btcPrice,
		&percentage,
		&closedAt,
		&previousID,
		&nextID,
	)
	if err != nil {
		return nil, err
	}

	h.Asset.Kind = domain.AssetKind(kind)
	h.BookingPeriod = domain.Period(period)
	if assetFundID.Valid {
		id := assetFundID.UUID
		h.Asset.FundID = &id
	}
	if endDateTime.Valid {
		h.EndDateTime = endDateTime.Time
	}
	if closedAt.Valid {
		t := closedAt.Time
		h.PeriodClosedDateTime = &t
	}
	if previousID.Valid {
		id := previousID.UUID
		h.PreviousHoldingID = &id
	}
	if nextID.Valid {
		id := nextID.UUID
		h.NextHoldingID = &id
	}

	if h.StartBalance, err = decimal.NewFromString(startBalance); err != nil {
		return nil, fmt.Errorf("failed to parse start_balance: %w", err)
	}
	if h.EndBalance, err = decimal.NewFromString(endBalance); err != nil {
		return nil, fmt.Errorf("failed to parse end_balance: %w", err)
	}
	if h.EndUSDPrice, err = decimal.NewFromString(usdPrice); err != nil {
		return nil, fmt.Errorf("failed to parse end_usd_price: %w", err)
	}
	if h.EndBTCPrice, err = decimal.NewFromString(btcPrice); err != nil {
		return nil, fmt.Errorf("failed to parse end_btc_price: %w", err)
	}
	if h.EndPercentage, err = decimal.NewFromString(percentage); err != nil {
		return nil, fmt.Errorf("failed to parse end_percentage: %w", err)
	}
	return &h, nil
}
