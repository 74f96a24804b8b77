// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestFileBackendMissingFile(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "absent.json"))

	roles, err := b.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no roles, got %+v", roles)
	}
}

func TestFileBackendDefaultPath(t *testing.T) {
	if got := NewFileBackend("").Path(); got != DefaultPath {
		t.Fatalf("expected %s, got %s", DefaultPath, got)
	}
}

func TestFileBackendWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	b := NewFileBackend(path)
	ctx := context.Background()

	want := []Role{
		{Name: "Critic", Description: "", Prompt: "Be harsh"},
		{Name: "Editor", Description: "Copy editing", Prompt: "Improve clarity"},
	}
	if err := b.WriteAll(ctx, want); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "[\n  {") || !strings.HasSuffix(text, "]\n") {
		t.Fatalf("expected indented JSON array, got:\n%s", text)
	}
	if strings.Contains(text, "builtin") {
		t.Fatalf("built-in flag must not be persisted:\n%s", text)
	}

	got, err := b.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestFileBackendWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	if err := NewFileBackend(path).WriteAll(context.Background(), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "[]\n" {
		t.Fatalf("expected empty array, got %q", data)
	}
}

func TestFileBackendDropsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	content := `[{"name":"Editor","description":"d","prompt":"p","extra":true}, 7, [], {"name":["x"]}, null]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var logs bytes.Buffer
	b := NewFileBackend(path).WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	got, err := b.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []Role{{Name: "Editor", Description: "d", Prompt: "p"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if strings.Count(logs.String(), "dropping malformed role entry") != 4 {
		t.Fatalf("expected four warnings, got:\n%s", logs.String())
	}
}

func TestFileBackendNotArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	if err := os.WriteFile(path, []byte(`{"roles": []}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var logs bytes.Buffer
	b := NewFileBackend(path).WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	got, err := b.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no roles, got %+v", got)
	}
	if !strings.Contains(logs.String(), "not a JSON array") {
		t.Fatalf("expected a warning, got:\n%s", logs.String())
	}
}

func TestFileBackendReadDirectory(t *testing.T) {
	if _, err := NewFileBackend(t.TempDir()).ReadAll(context.Background()); err == nil {
		t.Fatal("expected error reading a directory")
	}
}
