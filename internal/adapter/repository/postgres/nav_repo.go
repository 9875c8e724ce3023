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

// navRepository implements domain.NavRepository
type navRepository struct {
	db *DB
}

// NewNavRepository creates a new nav repository
func NewNavRepository(db *DB) domain.NavRepository {
	return &navRepository{db: db}
}

const navColumns = `
	id, fund_id, type, booking_period, date, total_value, total_shares,
	share_gross, share_nav, share_hwm, administration_fee, performance_fee,
	in_out_value, in_out_shares, currency_rate_id
`

// Create creates a new nav record
func (r *navRepository) Create(ctx context.Context, nav *domain.Nav) error {
	query := `
		INSERT INTO navs (` + navColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query, navArgs(nav)...)
	if err != nil {
		return fmt.Errorf("failed to insert nav: %w", err)
	}
	return nil
}

// Delete removes a nav record
func (r *navRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM navs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete nav: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check nav delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("nav %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetPeriodNav retrieves the period nav of one booking period
func (r *navRepository) GetPeriodNav(ctx context.Context, fundID uuid.UUID, period domain.Period) (*domain.Nav, error) {
	query := `
		SELECT ` + navColumns + `
		FROM navs
		WHERE fund_id = $1 AND type = $2 AND booking_period = $3
	`

	nav, err := scanNav(r.db.conn(ctx).QueryRowContext(ctx, query, fundID, string(domain.NavTypePeriod), string(period)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("period nav %s for fund %s: %w", period, fundID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get period nav: %w", err)
	}
	return nav, nil
}

// GetLatestPeriodNav retrieves the most recent period nav of a fund
func (r *navRepository) GetLatestPeriodNav(ctx context.Context, fundID uuid.UUID) (*domain.Nav, error) {
	query := `
		SELECT ` + navColumns + `
		FROM navs
		WHERE fund_id = $1 AND type = $2
		ORDER BY booking_period DESC
		LIMIT 1
	`

	nav, err := scanNav(r.db.conn(ctx).QueryRowContext(ctx, query, fundID, string(domain.NavTypePeriod)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("latest period nav for fund %s: %w", fundID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest period nav: %w", err)
	}
	return nav, nil
}

// GetPreviousPeriodNav retrieves the most recent period nav strictly before
// the given period
func (r *navRepository) GetPreviousPeriodNav(ctx context.Context, fundID uuid.UUID, before domain.Period) (*domain.Nav, error) {
	query := `
		SELECT ` + navColumns + `
		FROM navs
		WHERE fund_id = $1 AND type = $2 AND booking_period < $3
		ORDER BY booking_period DESC
		LIMIT 1
	`

	nav, err := scanNav(r.db.conn(ctx).QueryRowContext(ctx, query, fundID, string(domain.NavTypePeriod), string(before)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("period nav before %s for fund %s: %w", before, fundID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get previous period nav: %w", err)
	}
	return nav, nil
}

// UpsertDaily stores a daily nav, replacing any existing daily nav of the
// same fund and calendar day
func (r *navRepository) UpsertDaily(ctx context.Context, nav *domain.Nav) error {
	deleteQuery := `
		DELETE FROM navs
		WHERE fund_id = $1 AND type = $2 AND date::date = $3::date
	`
	if _, err := r.db.conn(ctx).ExecContext(ctx, deleteQuery, nav.FundID, string(domain.NavTypeDaily), nav.Date); err != nil {
		return fmt.Errorf("failed to replace daily nav: %w", err)
	}
	return r.Create(ctx, nav)
}

// ListByFund retrieves all navs of a fund of one type, newest first
func (r *navRepository) ListByFund(ctx context.Context, fundID uuid.UUID, navType domain.NavType) ([]*domain.Nav, error) {
	query := `
		SELECT ` + navColumns + `
		FROM navs
		WHERE fund_id = $1 AND type = $2
		ORDER BY date DESC
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, fundID, string(navType))
	if err != nil {
		return nil, fmt.Errorf("failed to list navs: %w", err)
	}
	defer rows.Close()

	var navs []*domain.Nav
	for rows.Next() {
		nav, err := scanNav(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nav: %w", err)
		}
		navs = append(navs, nav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate navs: %w", err)
	}
	return navs, nil
}

func navArgs(n *domain.Nav) []interface{} {
	return []interface{}{
		n.ID,
		n.FundID,
		string(n.Type),
		string(n.BookingPeriod),
		n.Date,
		n.TotalValue.String(),
		n.TotalShares.String(),
		n.ShareGross.String(),
		n.ShareNAV.String(),
		n.ShareHWM.String(),
		n.AdministrationFee.String(),
		n.PerformanceFee.String(),
		n.InOutValue.String(),
		n.InOutShares.String(),
		n.CurrencyRateID,
	}
}

func scanNav(row rowScanner) (*domain.Nav, error) {
	var n domain.Nav
	var navType, period string
	var fields [9]string

	err := row.Scan(
		&n.ID,
		&n.FundID,
		&navType,
		&period,
		&n.Date,
		&fields[0], // total_value
		&fields[1], // total_shares
		&fields[2], // share_gross
		&fields[3], // share_nav
		&fields[4], // share_hwm
		&fields[5], // administration_fee
		&fields[6], // performance_fee
		&fields[7], // in_out_value
		&fields[8], // in_out_shares
		&n.CurrencyRateID,
	)
	if err != nil {
		return nil, err
	}

	n.Type = domain.NavType(navType)
	n.BookingPeriod = domain.Period(period)

	targets := []*decimal.Decimal{
		&n.TotalValue, &n.TotalShares, &n.ShareGross, &n.ShareNAV, &n.ShareHWM,
		&n.AdministrationFee, &n.PerformanceFee, &n.InOutValue, &n.InOutShares,
	}
	for i, target := range targets {
		if *target, err = decimal.NewFromString(fields[i]); err != nil {
			return nil, fmt.Errorf("failed to parse nav decimal column %d: %w", i, err)
		}
	}
	return &n, nil
}
