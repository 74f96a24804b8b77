// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// DefaultPath is the file custom roles are written to when nothing else is configured.
const DefaultPath = "roles.json"

// Backend persists the custom subset of a Store.
type Backend interface {
	// Name identifies the backend in logs and telemetry.
	Name() string

	// ReadAll returns the persisted roles. Missing data is not an error.
	ReadAll(ctx context.Context) ([]Role, error)

	// WriteAll replaces everything persisted with roles.
	WriteAll(ctx context.Context, roles []Role) error
}

// record is the on-disk shape of a role.
type record struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// FileBackend stores roles as a JSON array in a single file, rewritten in full on every write.
type FileBackend struct {
	path   string
	logger *slog.Logger
}

// NewFileBackend creates a file-backed role backend. An empty path uses DefaultPath.
func NewFileBackend(path string) *FileBackend {
	if path == "" {
		path = DefaultPath
	}
	return &FileBackend{path: path, logger: slog.Default()}
}

// WithLogger sets the logger used to report dropped content.
func (f *FileBackend) WithLogger(logger *slog.Logger) *FileBackend {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// Path returns the file the backend reads and writes.
func (f *FileBackend) Path() string {
	return f.path
}

// Name implements Backend.
func (f *FileBackend) Name() string {
	return "file"
}

// ReadAll implements Backend. A document that is not a JSON array yields no
// roles, and array elements that are not well-formed role objects are dropped.
func (f *FileBackend) ReadAll(ctx context.Context) ([]Role, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		f.logger.WarnContext(ctx, "roles file is not a JSON array, ignoring it", "path", f.path, "error", err)
		return nil, nil
	}

	roles := make([]Role, 0, len(elements))
	for i, raw := range elements {
		var rec record
		if !isObject(raw) || json.Unmarshal(raw, &rec) != nil {
			f.logger.WarnContext(ctx, "dropping malformed role entry", "path", f.path, "index", i)
			continue
		}
		roles = append(roles, Role{Name: rec.Name, Description: rec.Description, Prompt: rec.Prompt})
	}
	return roles, nil
}

// WriteAll implements Backend.
func (f *FileBackend) WriteAll(_ context.Context, roles []Role) error {
	records := make([]record, 0, len(roles))
	for _, r := range roles {
		records = append(records, record{Name: r.Name, Description: r.Description, Prompt: r.Prompt})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal roles: %w", err)
	}
	return os.WriteFile(f.path, append(data, '\n'), 0o644)
}

// isObject reports whether raw holds a JSON object. json.Unmarshal accepts
// null for a struct, which must not count as a role.
func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
