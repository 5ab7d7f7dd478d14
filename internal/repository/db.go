package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidTextInput    = "22P02"
)

// translateError maps driver errors onto the apperr taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return apperr.Wrap(apperr.ErrConflict, pgErr.ConstraintName)
		case foreignKeyViolation:
			return apperr.Wrap(apperr.ErrInvalidInput, "referenced record does not exist")
		case invalidTextInput:
			return apperr.Wrap(apperr.ErrInvalidInput, "malformed value")
		}
		return err
	}
	return apperr.Transport(err)
}
