// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/kairos-roles/pkg/config"
	"github.com/jllopis/kairos-roles/pkg/llm"
	"github.com/jllopis/kairos-roles/pkg/role"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runCLI runs the CLI against the given store path with logging kept quiet.
func runCLI(t *testing.T, storePath, stdin string, args ...string) cliResult {
	t.Helper()
	full := append([]string{
		"--set", "storage.path=" + storePath,
		"--set", "log.level=error",
	}, args...)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), full, strings.NewReader(stdin), &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCfg  []string
		wantRest []string
		wantJSON bool
		wantHelp bool
		wantErr  bool
	}{
		{name: "command only", args: []string{"list"}, wantRest: []string{"list"}},
		{
			name:     "config and set",
			args:     []string{"--config", "c.yaml", "--set=log.level=debug", "--json", "show", "Lawyer"},
			wantCfg:  []string{"--config", "c.yaml", "--set=log.level=debug"},
			wantRest: []string{"show", "Lawyer"},
			wantJSON: true,
		},
		{name: "double dash", args: []string{"--", "--weird"}, wantRest: []string{"--weird"}},
		{name: "help", args: []string{"-h", "list"}, wantHelp: true},
		{name: "missing set value", args: []string{"--set"}, wantErr: true},
		{name: "unknown flag", args: []string{"--verbose", "list"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, rest, err := parseGlobalFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(flags.ConfigArgs, tt.wantCfg) {
				t.Errorf("config args = %v, want %v", flags.ConfigArgs, tt.wantCfg)
			}
			if !reflect.DeepEqual(rest, tt.wantRest) {
				t.Errorf("rest = %v, want %v", rest, tt.wantRest)
			}
			if flags.JSON != tt.wantJSON || flags.Help != tt.wantHelp {
				t.Errorf("unexpected flags %+v", flags)
			}
		})
	}
}

func TestHelpAndVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	res := runCLI(t, path, "", "help")
	if res.code != 0 || !strings.Contains(res.stdout, "Usage:") {
		t.Fatalf("unexpected help output: %+v", res)
	}
	res = runCLI(t, path, "", "--json", "version")
	if res.code != 0 || !strings.Contains(res.stdout, `"version": "dev"`) {
		t.Fatalf("unexpected version output: %+v", res)
	}
}

func TestListBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	res := runCLI(t, path, "", "list")
	if res.code != 0 {
		t.Fatalf("list failed: %+v", res)
	}
	for _, want := range []string{"NAME", role.NameDefault, role.NameWriter, "built-in"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("expected %q in:\n%s", want, res.stdout)
		}
	}

	res = runCLI(t, path, "", "--json", "list")
	var roles []role.Role
	if err := json.Unmarshal([]byte(res.stdout), &roles); err != nil {
		t.Fatalf("decode list: %v\n%s", err, res.stdout)
	}
	if len(roles) != 5 || roles[0].Name != role.NameDefault {
		t.Fatalf("unexpected roles %+v", roles)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("listing must not create the roles file, stat err=%v", err)
	}
}

func TestAddShowRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	res := runCLI(t, path, "", "add", "Editor", "--description", "Copy editing", "--prompt", "Improve clarity")
	if res.code != 0 || !strings.Contains(res.stdout, `role "Editor" added`) {
		t.Fatalf("add failed: %+v", res)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `"name": "Editor"`) {
		t.Fatalf("expected Editor persisted, got %s (err=%v)", data, err)
	}

	res = runCLI(t, path, "", "show", "Editor")
	if res.code != 0 || !strings.Contains(res.stdout, "Improve clarity") || !strings.Contains(res.stdout, "custom") {
		t.Fatalf("show failed: %+v", res)
	}

	res = runCLI(t, path, "", "add", "Editor")
	if res.code != 1 || !strings.Contains(res.stderr, "Error [ALREADY_EXISTS]") {
		t.Fatalf("expected duplicate error, got %+v", res)
	}

	res = runCLI(t, path, "", "remove", role.NameTeacher)
	if res.code != 1 || !strings.Contains(res.stderr, "Error [PROTECTED]") || !strings.Contains(res.stderr, "Hint:") {
		t.Fatalf("expected protected error, got %+v", res)
	}

	res = runCLI(t, path, "", "remove", "Editor")
	if res.code != 0 {
		t.Fatalf("remove failed: %+v", res)
	}
	res = runCLI(t, path, "", "show", "Editor")
	if res.code != 1 || !strings.Contains(res.stderr, "Error [NOT_FOUND]") {
		t.Fatalf("expected not found, got %+v", res)
	}
}

func TestSaveTrimsAndUpserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	res := runCLI(t, path, "", "save", "  Editor  ", "--description", "  Copy editing ", "--prompt", "\tImprove clarity\n")
	if res.code != 0 || !strings.Contains(res.stdout, "added") {
		t.Fatalf("save failed: %+v", res)
	}
	res = runCLI(t, path, "", "--json", "show", "Editor")
	var r role.Role
	if err := json.Unmarshal([]byte(res.stdout), &r); err != nil {
		t.Fatalf("decode: %v\n%s", err, res.stdout)
	}
	if r.Description != "Copy editing" || r.Prompt != "Improve clarity" {
		t.Fatalf("expected trimmed fields, got %+v", r)
	}

	res = runCLI(t, path, "", "save", "Editor", "--prompt", "Tighten")
	if res.code != 0 || !strings.Contains(res.stdout, "updated") {
		t.Fatalf("save update failed: %+v", res)
	}

	res = runCLI(t, path, "", "save", "   ")
	if res.code != 1 || !strings.Contains(res.stderr, "INVALID_INPUT") {
		t.Fatalf("expected invalid input, got %+v", res)
	}
}

func TestEditKeepsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	runCLI(t, path, "", "add", "Editor", "--description", "Copy editing", "--prompt", "Improve clarity")
	res := runCLI(t, path, "", "edit", "Editor", "--prompt", "Tighten")
	if res.code != 0 {
		t.Fatalf("edit failed: %+v", res)
	}

	res = runCLI(t, path, "", "--json", "show", "Editor")
	var r role.Role
	if err := json.Unmarshal([]byte(res.stdout), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Description != "Copy editing" || r.Prompt != "Tighten" {
		t.Fatalf("unexpected role after edit: %+v", r)
	}

	res = runCLI(t, path, "", "edit", role.NameLawyer, "--prompt", "Only contracts")
	if res.code != 0 || !strings.Contains(res.stderr, "session only") {
		t.Fatalf("expected session-only note, got %+v", res)
	}
}

func TestImportExport(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.json")
	exported := filepath.Join(dir, "roles.yaml")

	runCLI(t, source, "", "add", "Editor", "--description", "Copy editing", "--prompt", "Improve clarity")
	runCLI(t, source, "", "add", "Critic", "--prompt", "Be harsh")

	res := runCLI(t, source, "", "export", "--out", exported)
	if res.code != 0 {
		t.Fatalf("export failed: %+v", res)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if strings.Contains(string(data), role.NameLawyer) {
		t.Fatalf("built-ins exported without --all:\n%s", data)
	}

	target := filepath.Join(dir, "target.json")
	res = runCLI(t, target, "", "--json", "import", exported)
	if res.code != 0 {
		t.Fatalf("import failed: %+v", res)
	}
	var result importResult
	if err := json.Unmarshal([]byte(res.stdout), &result); err != nil {
		t.Fatalf("decode import: %v\n%s", err, res.stdout)
	}
	if result.Imported != 2 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected import result %+v", result)
	}

	stdin := "- name: Editor\n  prompt: Replaced\n- name: Lawyer\n  prompt: Shadow\n- name: Poet\n  prompt: Rhyme\n"
	res = runCLI(t, target, stdin, "--json", "import", "-", "--overwrite")
	if err := json.Unmarshal([]byte(res.stdout), &result); err != nil {
		t.Fatalf("decode import: %v\n%s", err, res.stdout)
	}
	if result.Imported != 1 || result.Updated != 1 || !reflect.DeepEqual(result.Skipped, []string{role.NameLawyer}) {
		t.Fatalf("unexpected overwrite result %+v", result)
	}

	res = runCLI(t, target, "", "export", "--all")
	if !strings.Contains(res.stdout, "name: Lawyer") || !strings.Contains(res.stdout, "Replaced") {
		t.Fatalf("unexpected export --all:\n%s", res.stdout)
	}
}

func TestAskWithMockProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	runCLI(t, path, "", "add", "Pirate", "--prompt", "Talk like a pirate.")
	res := runCLI(t, path, "", "--set", "llm.provider=mock", "ask", "Pirate", "where", "is", "the", "gold?")
	if res.code != 0 {
		t.Fatalf("ask failed: %+v", res)
	}
	want := `[mock as "Talk like a pirate."] where is the gold?`
	if strings.TrimSpace(res.stdout) != want {
		t.Fatalf("expected %q, got %q", want, res.stdout)
	}

	res = runCLI(t, path, "", "--set", "llm.provider=mock", "ask", "Ghost", "hello")
	if res.code != 1 || !strings.Contains(res.stderr, "NOT_FOUND") {
		t.Fatalf("expected not found, got %+v", res)
	}

	res = runCLI(t, path, "", "--set", "llm.provider=unknown", "ask", "Pirate", "hello")
	if res.code != 1 || !strings.Contains(res.stderr, "unknown llm provider") {
		t.Fatalf("expected provider error, got %+v", res)
	}
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.db")

	res := runCLI(t, path, "", "--set", "storage.backend=sqlite", "add", "Editor", "--prompt", "Improve clarity")
	if res.code != 0 {
		t.Fatalf("add failed: %+v", res)
	}
	res = runCLI(t, path, "", "--set", "storage.backend=sqlite", "--json", "show", "Editor")
	if res.code != 0 || !strings.Contains(res.stdout, "Improve clarity") {
		t.Fatalf("show failed: %+v", res)
	}
}

func TestCommandErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown command", args: []string{"frobnicate"}, want: "unknown command"},
		{name: "unknown backend", args: []string{"--set", "storage.backend=redis", "list"}, want: "unknown storage backend"},
		{name: "show without name", args: []string{"show"}, want: "usage: roles show"},
		{name: "add without name", args: []string{"add", "--prompt", "x"}, want: "usage: roles add"},
		{name: "list with args", args: []string{"list", "extra"}, want: "unexpected args"},
		{name: "missing config", args: []string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "list"}, want: "configuration error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, path, "", tt.args...)
			if res.code == 0 {
				t.Fatalf("expected failure, got %+v", res)
			}
			if !strings.Contains(res.stderr, tt.want) {
				t.Fatalf("expected %q in stderr:\n%s", tt.want, res.stderr)
			}
		})
	}
}

func TestWatchConfigUpdatesLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := &app{
		flags:  globalFlags{ConfigArgs: []string{"--config", path}},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  new(slog.LevelVar),
	}
	a.level.Set(slog.LevelError)

	stop := a.watchConfig(context.Background())
	defer stop()

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for a.level.Level() != slog.LevelDebug {
		if time.Now().After(deadline) {
			t.Fatalf("level not updated, still %v", a.level.Level())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestWatchConfigWithoutFile(t *testing.T) {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), level: new(slog.LevelVar)}
	stop := a.watchConfig(context.Background())
	stop()
}

func TestAskRetriesTransientFailures(t *testing.T) {
	cfg, err := config.LoadWithCLI([]string{
		"--set", "storage.path=" + filepath.Join(t.TempDir(), "roles.json"),
		"--set", "log.level=error",
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	a, err := newApp(context.Background(), cfg, globalFlags{}, strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.shutdown(context.Background())

	calls := 0
	a.provider = &llm.MockProvider{ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset")
		}
		if req.Messages[0].Role != llm.RoleSystem {
			t.Errorf("expected role prompt first, got %+v", req.Messages)
		}
		return &llm.ChatResponse{Content: "Consult a practicing attorney."}, nil
	}}

	if err := a.dispatch(context.Background(), []string{"ask", role.NameLawyer, "can", "I", "sue?"}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a retry, got %d calls", calls)
	}
	if strings.TrimSpace(stdout.String()) != "Consult a practicing attorney." {
		t.Fatalf("unexpected answer %q", stdout.String())
	}
}
