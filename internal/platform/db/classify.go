package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rolelink/rolelink/internal/shared"
)

// Classify converts low-level pgx errors into the shared taxonomy so raw
// driver errors never cross a repository boundary.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return shared.ErrDuplicate
		case "23503", "23514": // foreign_key_violation, check_violation
			return shared.ErrValidation
		}
	}
	return err
}
