package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Statements devuelve el schema partido en sentencias (sin vacías).
func Statements() []string {
	parts := strings.Split(schemaSQL, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Migrate aplica el schema. Es idempotente (IF NOT EXISTS).
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	stmts := Statements()
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return i, fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return len(stmts), nil
}
