package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB opens a fresh database in a temp dir and applies the schema
// from disk. The migrations package imports this one, so it cannot be used here.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "distributor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	root := findProjectRoot(t)
	content, err := os.ReadFile(filepath.Join(root, "internal", "storage", "migrations", "sqlite", "001_distributor.sql"))
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(content), ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "--") {
				lines = append(lines, line)
			}
		}
		stmt = strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt == "" {
			continue
		}
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, "apply %q", stmt)
	}
	return db
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}
