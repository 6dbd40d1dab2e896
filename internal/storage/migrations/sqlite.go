package migrations

import (
	"context"
	"fmt"

	"y8u-distributor/internal/storage/sqlite"
)

// RunSQLiteMigrations applies all embedded SQLite files statement by statement.
func RunSQLiteMigrations(ctx context.Context, db *sqlite.DB) error {
	files, err := load(SQLiteFS, "sqlite")
	if err != nil {
		return err
	}
	for _, m := range files {
		stmts, err := m.statements()
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return nil
}
