package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentpay/backoffice/internal/models"
)

// guardedTransition is the single primitive behind every state-machine
// mutation: begin a transaction, let fn lock the aggregate row
// (SELECT ... FOR UPDATE), check its precondition, post ledger entries and
// update the status, then commit everything or nothing.
//
// Skipped outcomes roll back so an illegal-but-foreseeable transition leaves
// no writes behind. Errors roll back and propagate. There is no in-process
// locking; the row lock serializes concurrent calls for the same id across
// service instances, and the ledger's uniqueness fence is the independent
// second net.
func guardedTransition(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (models.Outcome, error)) (models.Outcome, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	out, err := fn(tx)
	if err != nil {
		return models.Outcome{}, err
	}

	if out.Code == models.OutcomeSkipped {
		if err := tx.Rollback(); err != nil {
			return models.Outcome{}, fmt.Errorf("rollback skipped transition: %w", err)
		}
		return out, nil
	}

	if err := tx.Commit(); err != nil {
		return models.Outcome{}, fmt.Errorf("commit transition: %w", err)
	}
	return out, nil
}
