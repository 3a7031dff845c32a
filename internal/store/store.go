// Package store wraps the SQLite-backed relational store the pipeline loads
// into and aggregates from. The connection is a scoped resource: opened at
// run start, closed on every exit path, never held between runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"vendorperf/internal/config"
	apperrors "vendorperf/internal/errors"
	"vendorperf/internal/schema"
)

// Store is a handle on the relational store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the store at the configured path.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, apperrors.NewStorageError("create store directory", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite store", err)
	}

	// Readers of the published summary must never block a reload.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, apperrors.NewStorageError("apply store pragma", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("ping sqlite store", err)
	}

	return &Store{db: db, logger: logger.With(slog.String("component", "store"))}, nil
}

// Close releases the store connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only query consumers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// StagingName returns the staging relation name for a table.
func StagingName(table string) string {
	return table + "__staging"
}

// CreateStaging drops any leftover staging relation for the table and
// creates a fresh one. Loads always target staging; the live table is only
// touched by Swap.
func (s *Store) CreateStaging(ctx context.Context, tbl schema.Table) (string, error) {
	staging := StagingName(tbl.Name)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", staging)); err != nil {
		return "", apperrors.NewStorageError("drop stale staging table", err).WithContext("table", tbl.Name)
	}
	if _, err := s.db.ExecContext(ctx, createSQL(tbl, staging)); err != nil {
		return "", apperrors.NewStorageError("create staging table", err).WithContext("table", tbl.Name)
	}
	return staging, nil
}

// InsertChunk writes one bounded chunk of coerced rows into the named
// relation inside a single transaction.
func (s *Store) InsertChunk(ctx context.Context, name string, tbl schema.Table, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin insert transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(tbl, name))
	if err != nil {
		return apperrors.NewStorageError("prepare insert", err).WithContext("table", name)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return apperrors.NewStorageError("insert row", err).WithContext("table", name)
		}
	}

	return tx.Commit()
}

// Swap atomically replaces the live table with its staging relation. On
// failure the live table is left as it was.
func (s *Store) Swap(ctx context.Context, tbl schema.Table) error {
	staging := StagingName(tbl.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin swap transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", tbl.Name)); err != nil {
		return apperrors.NewStorageError("drop previous table", err).WithContext("table", tbl.Name)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", staging, tbl.Name)); err != nil {
		return apperrors.NewStorageError("rename staging table", err).WithContext("table", tbl.Name)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit swap", err).WithContext("table", tbl.Name)
	}

	s.logger.InfoContext(ctx, "table replaced", slog.String("table", tbl.Name))
	return nil
}

// DropStaging removes a staging relation after a failed load.
func (s *Store) DropStaging(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", StagingName(table)))
	return err
}

// RowCount returns the row count of a relation.
func (s *Store) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&count)
	if err != nil {
		return 0, apperrors.NewStorageError("count rows", err).WithContext("table", table)
	}
	return count, nil
}

// TableExists reports whether a relation is present in the store.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageError("inspect store catalog", err)
	}
	return true, nil
}

func createSQL(tbl schema.Table, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %q (\n", name)
	for i, col := range tbl.Columns {
		fmt.Fprintf(&b, "\t%q %s", col.Name, sqlType(col.Type))
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if i < len(tbl.Columns)-1 || len(tbl.PrimaryKey) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(tbl.PrimaryKey) > 0 {
		quoted := make([]string, len(tbl.PrimaryKey))
		for i, k := range tbl.PrimaryKey {
			quoted[i] = fmt.Sprintf("%q", k)
		}
		fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n", strings.Join(quoted, ", "))
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(tbl schema.Table, name string) string {
	names := tbl.ColumnNames()
	quoted := make([]string, len(names))
	marks := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		name, strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func sqlType(t schema.ColumnType) string {
	switch t {
	case schema.TypeInteger:
		return "INTEGER"
	case schema.TypeDecimal:
		return "REAL"
	default:
		// Dates are stored as ISO-8601 text.
		return "TEXT"
	}
}
