// Package migrations applies the embedded goose migrations for the SQL backends.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql postgres/*.sql
var files embed.FS

// Up migrates db to the latest version. dialect is "mysql" or "postgres".
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	switch dialect {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}
	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dialect); err != nil {
		return fmt.Errorf("goose up (%s): %w", dialect, err)
	}
	return nil
}
