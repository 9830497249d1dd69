// internal/repository/postgres/errors.go
package postgres

import (
	"errors"

	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// mapNoRows turns pgx.ErrNoRows into a not-found error carrying msg.
func mapNoRows(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.NotFound(msg)
	}
	return err
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func normalizePage(page, pageSize *int) (limit, offset int) {
	if *page < 1 {
		*page = 1
	}
	if *pageSize < 1 {
		*pageSize = 20
	}
	if *pageSize > 100 {
		*pageSize = 100
	}
	return *pageSize, (*page - 1) * *pageSize
}
