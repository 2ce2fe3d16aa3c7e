package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticelearn/lattice-api/internal/store"
)

func pgError(code string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, ConstraintName: "some_constraint"}
}

func TestMapError(t *testing.T) {
	testCases := []struct {
		name     string
		input    error
		expected error
	}{
		{"nil passes through", nil, nil},
		{"no rows maps to not found", sql.ErrNoRows, store.ErrNotFound},
		{"wrapped no rows maps to not found",
			fmt.Errorf("query: %w", sql.ErrNoRows), store.ErrNotFound},
		{"unique violation maps to duplicate", pgError("23505"), store.ErrDuplicate},
		{"foreign key violation maps to invalid entity", pgError("23503"), store.ErrInvalidEntity},
		{"check violation maps to invalid entity", pgError("23514"), store.ErrInvalidEntity},
		{"serialization failure maps to conflict", pgError("40001"), store.ErrConflict},
		{"deadlock maps to conflict", pgError("40P01"), store.ErrConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.input)
			if tc.expected == nil {
				assert.NoError(t, mapped)
				return
			}
			assert.ErrorIs(t, mapped, tc.expected)
		})
	}

	t.Run("unknown errors pass through unchanged", func(t *testing.T) {
		plain := errors.New("connection reset")
		assert.Equal(t, plain, MapError(plain))

		unknownPg := pgError("42P01")
		assert.Equal(t, error(unknownPg), MapError(unknownPg))
	})

	t.Run("original error text is preserved", func(t *testing.T) {
		mapped := MapError(fmt.Errorf("insert session: %w", pgError("23505")))
		assert.ErrorIs(t, mapped, store.ErrDuplicate)
		assert.Contains(t, mapped.Error(), "insert session")
	})
}

func TestIsRetryableConflict(t *testing.T) {
	t.Run("mapped conflicts are retryable", func(t *testing.T) {
		assert.True(t, IsRetryableConflict(MapError(pgError("40001"))))
		assert.True(t, IsRetryableConflict(fmt.Errorf("wrapped: %w", store.ErrConflict)))
	})

	t.Run("raw pg conflict codes are retryable", func(t *testing.T) {
		// Commit errors reach the caller unmapped.
		assert.True(t, IsRetryableConflict(pgError("40001")))
		assert.True(t, IsRetryableConflict(fmt.Errorf("commit: %w", pgError("40P01"))))
	})

	t.Run("other errors are not retryable", func(t *testing.T) {
		assert.False(t, IsRetryableConflict(nil))
		assert.False(t, IsRetryableConflict(errors.New("boom")))
		assert.False(t, IsRetryableConflict(MapError(pgError("23505"))))
		assert.False(t, IsRetryableConflict(store.ErrNotFound))
	})
}

// fakeResult implements sql.Result for CheckRowsAffected tests.
type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestCheckRowsAffected(t *testing.T) {
	t.Run("affected rows pass", func(t *testing.T) {
		assert.NoError(t, CheckRowsAffected(fakeResult{rows: 1}, "session"))
	})

	t.Run("zero rows is not found", func(t *testing.T) {
		err := CheckRowsAffected(fakeResult{rows: 0}, "session")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Contains(t, err.Error(), "session")
	})

	t.Run("zero rows without entity name", func(t *testing.T) {
		assert.ErrorIs(t, CheckRowsAffected(fakeResult{rows: 0}, ""), store.ErrNotFound)
	})

	t.Run("driver error surfaces", func(t *testing.T) {
		err := CheckRowsAffected(fakeResult{err: errors.New("unsupported")}, "session")
		require.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("nil result rejected", func(t *testing.T) {
		assert.Error(t, CheckRowsAffected(nil, "session"))
	})
}
