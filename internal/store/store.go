// Package store implements the repositories on SQLite.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/bakutrack/internal/domain"
)

// fail wraps a driver error as a store failure, keeping the cause inspectable.
func fail(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStore, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func affectedOne(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fail("get rows affected", err)
	}
	if n == 0 {
		return domain.NotFound(kind, id)
	}
	return nil
}
