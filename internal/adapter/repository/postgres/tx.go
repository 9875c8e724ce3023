package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xaviergoby/bstdethintg-sub002/internal/domain"
)

type txContextKey struct{}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx
}

// txManager implements domain.TxManager over a single *sql.Tx carried in the
// context: every repository call inside the unit of work joins the same
// transaction, so a period close commits or rolls back as a whole.
type txManager struct {
	db *DB
}

// NewTxManager creates a new transaction manager
func NewTxManager(db *DB) domain.TxManager {
	return &txManager{db: db}
}

// WithinTx runs fn inside one database transaction. A nested call joins the
// transaction already carried in the context instead of opening another one.
func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
