// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSQLiteBackendWriteRead(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "roles.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	got, err := b.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty table, got %+v", got)
	}

	if err := b.WriteAll(ctx, []Role{{Name: "Editor", Prompt: "old"}, {Name: "Zed"}}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	want := []Role{
		{Name: "Critic", Description: "Reviews", Prompt: "Be harsh"},
		{Name: "Editor", Description: "Copy editing", Prompt: "Improve clarity"},
	}
	if err := b.WriteAll(ctx, []Role{want[1], want[0]}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	got, err = b.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSQLiteBackendDuplicateRollsBack(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "roles.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	original := []Role{{Name: "Editor", Prompt: "p"}}
	if err := b.WriteAll(ctx, original); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := b.WriteAll(ctx, []Role{{Name: "A"}, {Name: "A"}}); err == nil {
		t.Fatal("expected primary key violation")
	}
	got, err := b.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !reflect.DeepEqual(got, original) {
		t.Fatalf("expected rollback to keep %+v, got %+v", original, got)
	}
}

func TestSQLiteBackendSharedDB(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "shared.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	b, err := NewSQLiteBackend(db)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("borrowed db must stay open: %v", err)
	}

	if _, err := NewSQLiteBackend(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestStoreWithSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.db")
	ctx := context.Background()

	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s := NewStore(WithBackend(b))
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := s.Add(ctx, "Editor", "Copy editing", "Improve clarity"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close backend: %v", err)
	}

	b2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b2.Close()
	s2 := NewStore(WithBackend(b2))
	if err := s2.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got, ok := s2.Get("Editor"); !ok || got.Prompt != "Improve clarity" {
		t.Fatalf("expected Editor from sqlite, got %+v (ok=%v)", got, ok)
	}
}
