package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	db *DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

const transferColumns = `
	id, holding_id, datetime, transaction_type, direction, amount, shares,
	transfer_fee, fee_holding_id, opposite_transfer_id, reference
`

// Create creates a new transfer
func (r *transferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var shares interface{}
	if transfer.Shares != nil {
		shares = transfer.Shares.String()
	}

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		transfer.ID,
		transfer.HoldingID,
		transfer.DateTime,
		string(transfer.TransactionType),
		string(transfer.Direction),
		transfer.Amount.String(),
		shares,
		transfer.TransferFee.String(),
		nullUUID(transfer.FeeHoldingID),
		nullUUID(transfer.OppositeTransferID),
		transfer.Reference,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// ListByHolding retrieves every transfer attached to a holding
func (r *transferRepository) ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE holding_id = $1
		ORDER BY datetime, id
	`
	return r.list(ctx, query, holdingID)
}

// ListByHoldingBetween retrieves the transfers attached to a holding dated
// within [from, to)
func (r *transferRepository) ListByHoldingBetween(ctx context.Context, holdingID uuid.UUID, from, to time.Time) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE holding_id = $1 AND datetime >= $2 AND datetime < $3
		ORDER BY datetime, id
	`
	return r.list(ctx, query, holdingID, from, to)
}

// CountByHolding returns the number of transfers attached to a holding
func (r *transferRepository) CountByHolding(ctx context.Context, holdingID uuid.UUID) (int, error) {
	var count int
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfers WHERE holding_id = $1`, holdingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transfers: %w", err)
	}
	return count, nil
}

func (r *transferRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Transfer, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}
	return transfers, nil
}

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var transactionType, direction, amount, transferFee string
	var shares *string
	var feeHoldingID, oppositeID uuid.NullUUID

	err := row.Scan(
		&t.ID,
		&t.HoldingID,
		&t.DateTime,
		&transactionType,
		&direction,
		&amount,
		&shares,
		&transferFee,
		&feeHoldingID,
		&oppositeID,
		&t.Reference,
	)
	if err != nil {
		return nil, err
	}

	t.TransactionType = domain.TransactionType(transactionType)
	t.Direction = domain.TransferDirection(direction)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if shares != nil {
		parsed, err := decimal.NewFromString(*shares)
		if err != nil {
			return nil, fmt.Errorf("failed to parse shares: %w", err)
		}
		t.Shares = &parsed
	}
	if t.TransferFee, err = decimal.NewFromString(transferFee); err != nil {
		return nil, fmt.Errorf("failed to parse transfer_fee: %w", err)
	}
	if feeHoldingID.Valid {
		id := feeHoldingID.UUID
		t.FeeHoldingID = &id
	}
	if oppositeID.Valid {
		id := oppositeID.UUID
		t.OppositeTransferID = &id
	}
	return &t, nil
}
