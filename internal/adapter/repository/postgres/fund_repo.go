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

// fundRepository implements domain.FundRepository
type fundRepository struct {
	db *DB
}

// NewFundRepository creates a new fund repository
func NewFundRepository(db *DB) domain.FundRepository {
	return &fundRepository{db: db}
}

const fundColumns = `
	id, name, is_active, reporting_currency, primary_crypto_currency,
	admin_fee_percentage, admin_fee_frequency, performance_fee_percentage,
	share_seed_value, total_value, total_shares, share_value_hwm
`

// GetByID retrieves a fund with its layers and category allocations
func (r *fundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE id = $1`

	fund, err := scanFund(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fund %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fund: %w", err)
	}

	if err := r.loadLayers(ctx, fund); err != nil {
		return nil, err
	}
	if err := r.loadCategories(ctx, fund); err != nil {
		return nil, err
	}
	return fund, nil
}

// ListActive retrieves all funds that take part in period closes
func (r *fundRepository) ListActive(ctx context.Context) ([]*domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE is_active ORDER BY name`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active funds: %w", err)
	}
	defer rows.Close()

	var funds []*domain.Fund
	for rows.Next() {
		fund, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, fund)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate funds: %w", err)
	}

	for _, fund := range funds {
		if err := r.loadLayers(ctx, fund); err != nil {
			return nil, err
		}
		if err := r.loadCategories(ctx, fund); err != nil {
			return nil, err
		}
	}
	return funds, nil
}

// Create creates a new fund with its layers and category allocations
func (r *fundRepository) Create(ctx context.Context, fund *domain.Fund) error {
	query := `
		INSERT INTO funds (` + fundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		fund.ID,
		fund.Name,
		fund.IsActive,
		fund.ReportingCurrency,
		fund.PrimaryCryptoCurrency,
		fund.AdminFeePercentage.String(),
		fund.AdminFeeFrequency,
		fund.PerformanceFeePercentage.String(),
		fund.ShareSeedValue.String(),
		fund.TotalValue.String(),
		fund.TotalShares.String(),
		fund.ShareValueHWM.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fund: %w", err)
	}

	layerQuery := `
		INSERT INTO fund_layers (fund_id, layer_index, name, aim_percentage, alert_range_low, alert_range_high)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, layer := range fund.Layers {
		_, err := r.db.conn(ctx).ExecContext(ctx, layerQuery,
			fund.ID,
			layer.Index,
			layer.Name,
			layer.AimPercentage.String(),
			layer.AlertRangeLow.String(),
			layer.AlertRangeHigh.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert fund layer: %w", err)
		}
	}

	categoryQuery := `
		INSERT INTO fund_categories (fund_id, category_id, aim_percentage)
		VALUES ($1, $2, $3)
	`
	for _, category := range fund.Categories {
		_, err := r.db.conn(ctx).ExecContext(ctx, categoryQuery,
			fund.ID,
			category.CategoryID,
			category.AimPercentage.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert fund category: %w", err)
		}
	}

	return nil
}

// UpdateAggregates persists the mutable aggregate state of a fund
func (r *fundRepository) UpdateAggregates(ctx context.Context, id uuid.UUID, totalValue, totalShares, shareValueHWM decimal.Decimal) error {
	query := `
		UPDATE funds
		SET total_value = $2, total_shares = $3, share_value_hwm = $4
		WHERE id = $1
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		id,
		totalValue.String(),
		totalShares.String(),
		shareValueHWM.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update fund aggregates: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check fund update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fund %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *fundRepository) loadLayers(ctx context.Context, fund *domain.Fund) error {
	query := `
		SELECT layer_index, name, aim_percentage, alert_range_low, alert_range_high
		FROM fund_layers
		WHERE fund_id = $1
		ORDER BY layer_index
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, fund.ID)
	if err != nil {
		return fmt.Errorf("failed to list fund layers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var layer domain.FundLayer
		var aim, low, high string
		if err := rows.Scan(&layer.Index, &layer.Name, &aim, &low, &high); err != nil {
			return fmt.Errorf("failed to scan fund layer: %w", err)
		}
		if layer.AimPercentage, err = decimal.NewFromString(aim); err != nil {
			return fmt.Errorf("failed to parse aim_percentage: %w", err)
		}
		if layer.AlertRangeLow, err = decimal.NewFromString(low); err != nil {
			return fmt.Errorf("failed to parse alert_range_low: %w", err)
		}
		if layer.AlertRangeHigh, err = decimal.NewFromString(high); err != nil {
			return fmt.Errorf("failed to parse alert_range_high: %w", err)
		}
		fund.Layers = append(fund.Layers, layer)
	}
	return rows.Err()
}

func (r *fundRepository) loadCategories(ctx context.Context, fund *domain.Fund) error {
	query := `
		SELECT category_id, aim_percentage
		FROM fund_categories
		WHERE fund_id = $1
		ORDER BY category_id
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, fund.ID)
	if err != nil {
		return fmt.Errorf("failed to list fund categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category domain.FundCategory
		var aim string
		if err := rows.Scan(&category.CategoryID, &aim); err != nil {
			return fmt.Errorf("failed to scan fund category: %w", err)
		}
		if category.AimPercentage, err = decimal.NewFromString(aim); err != nil {
			return fmt.Errorf("failed to parse aim_percentage: %w", err)
		}
		fund.Categories = append(fund.Categories, category)
	}
	return rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFund(row rowScanner) (*domain.Fund, error) {
	var fund domain.Fund
	var adminPct, perfPct, seed, totalValue, totalShares, hwm string

	err := row.Scan(
		&fund.ID,
		&fund.Name,
		&fund.IsActive,
		&fund.ReportingCurrency,
		&fund.PrimaryCryptoCurrency,
		&adminPct,
		&fund.AdminFeeFrequency,
		&perfPct,
		&seed,
		&totalValue,
		&totalShares,
		&hwm,
	)
	if err != nil {
		return nil, err
	}

	if fund.AdminFeePercentage, err = decimal.NewFromString(adminPct); err != nil {
		return nil, fmt.Errorf("failed to parse admin_fee_percentage: %w", err)
	}
	if fund.PerformanceFeePercentage, err = decimal.NewFromString(perfPct); err != nil {
		return nil, fmt.Errorf("failed to parse performance_fee_percentage: %w", err)
	}
	if fund.ShareSeedValue, err = decimal.NewFromString(seed); err != nil {
		return nil, fmt.Errorf("failed to parse share_seed_value: %w", err)
	}
	if fund.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("failed to parse total_value: %w", err)
	}
	if fund.TotalShares, err = decimal.NewFromString(totalShares); err != nil {
		return nil, fmt.Errorf("failed to parse total_shares: %w", err)
	}
	if fund.ShareValueHWM, err = decimal.NewFromString(hwm); err != nil {
		return nil, fmt.Errorf("failed to parse share_value_hwm: %w", err)
	}
	return &fund, nil
}
