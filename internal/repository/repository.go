// Package repository implements the transactional store on Postgres.
// Mobility operations lock the ticket row (SELECT ... FOR UPDATE) so rule
// checks and mutations happen inside one critical section; the partial
// unique indexes on transfers and listings back the application-level
// checks up at the schema level.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"lark/internal/database"
)

type Repositories struct {
	db *database.DB
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{db: db}
}

// withTx runs fn inside a transaction, rolling back on error.
func (r *Repositories) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
