// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteBackend persists custom roles in a SQLite table.
type SQLiteBackend struct {
	db    *sql.DB
	owned bool
}

// NewSQLiteBackend creates a SQLite-backed role backend and ensures schema.
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureRoleSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteBackend{db: db}, nil
}

// OpenSQLite opens (or creates) the database at path. Close releases it.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	b, err := NewSQLiteBackend(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// Close closes the database when it was opened by OpenSQLite.
func (s *SQLiteBackend) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Name implements Backend.
func (s *SQLiteBackend) Name() string {
	return "sqlite"
}

// ReadAll implements Backend.
func (s *SQLiteBackend) ReadAll(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description, prompt FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.Name, &r.Description, &r.Prompt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// WriteAll implements Backend. The table is replaced inside one transaction.
func (s *SQLiteBackend) WriteAll(ctx context.Context, roles []Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO roles (name, description, prompt) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range roles {
		if _, err := stmt.ExecContext(ctx, r.Name, r.Description, r.Prompt); err != nil {
			return fmt.Errorf("insert role %q: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

func ensureRoleSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS roles (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}
