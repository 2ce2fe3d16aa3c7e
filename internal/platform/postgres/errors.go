package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/latticelearn/lattice-api/internal/store"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the error code for unique constraint violations
	uniqueViolationCode = "23505"

	// foreignKeyViolationCode is the error code for foreign key violations
	foreignKeyViolationCode = "23503"

	// checkViolationCode is the error code for check constraint violations
	checkViolationCode = "23514"

	// serializationFailureCode signals a serializable/repeatable-read
	// conflict between concurrent transactions
	serializationFailureCode = "40001"

	// deadlockDetectedCode signals two transactions locking rows in
	// conflicting order
	deadlockDetectedCode = "40P01"
)

// MapError maps a database error to the appropriate store error while
// preserving the original error for debugging. Every database operation
// should route its errors through here for consistent classification.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case foreignKeyViolationCode:
			return fmt.Errorf(
				"%w: foreign key violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case checkViolationCode:
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case serializationFailureCode, deadlockDetectedCode:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
	}

	return err
}

// IsRetryableConflict checks whether the error is a transient conflict
// (serialization failure or deadlock) that warrants re-running the whole
// orchestrated operation against fresh state.
func IsRetryableConflict(err error) bool {
	if errors.Is(err, store.ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		(pgErr.Code == serializationFailureCode || pgErr.Code == deadlockDetectedCode)
}

// CheckRowsAffected examines the number of rows affected by an
// operation; zero affected rows is reported as store.ErrNotFound, which
// is how UPDATE/DELETE detect a missing target.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if entityName == "" {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
	}

	return nil
}
