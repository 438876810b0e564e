package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgRaiseException  = "P0001"

	numberConstraint = "work_orders_number_key"
)

// mapError converts pgx/pgconn errors into the store's sentinels while
// keeping the original error reachable through errors.As.
func mapError(err error, op, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == numberConstraint {
				return fmt.Errorf("%s %s: %w: %w", op, id, ErrDuplicateNumber, err)
			}
		case pgCheckViolation, pgRaiseException:
			return fmt.Errorf("%s %s rejected by storage: %w", op, id, err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}
