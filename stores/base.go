package stores

import (
	"context"

	"gorm.io/gorm"
)

type contextKey string

// TxKey carries an open transaction through a context so nested store calls
// join it instead of running on the shared handle.
const TxKey contextKey = "tx"

// BaseStore holds the shared gorm handle and the transaction plumbing the
// statistics stores build on.
type BaseStore struct {
	db *gorm.DB
}

// GetDB returns the transaction bound to ctx when one is present, otherwise
// the base handle scoped to ctx.
func (s *BaseStore) GetDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxKey).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithTransaction runs fn inside a single transaction. Store calls made with
// the context fn receives all see the same consistent view; the transaction
// commits when fn returns nil and rolls back on error.
func (s *BaseStore) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, TxKey, tx)
		return fn(txCtx)
	})
}
