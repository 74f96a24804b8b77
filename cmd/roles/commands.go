// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jllopis/kairos-roles/pkg/errors"
	"github.com/jllopis/kairos-roles/pkg/llm"
	kairosmcp "github.com/jllopis/kairos-roles/pkg/mcp"
	"github.com/jllopis/kairos-roles/pkg/resilience"
	"github.com/jllopis/kairos-roles/pkg/role"
)

type mutationResult struct {
	Role   string `json:"role"`
	Action string `json:"action"`
}

type importResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  []string `json:"skipped,omitempty"`
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		if err := ensureNoArgs(rest); err != nil {
			return err
		}
		return a.runList()
	case "show":
		return a.runShow(rest)
	case "add":
		return a.runAdd(ctx, rest)
	case "edit":
		return a.runEdit(ctx, rest)
	case "save":
		return a.runSave(ctx, rest)
	case "remove", "rm":
		return a.runRemove(ctx, rest)
	case "import":
		return a.runImport(ctx, rest)
	case "export":
		return a.runExport(rest)
	case "ask":
		return a.runAsk(ctx, rest)
	case "mcp":
		if err := ensureNoArgs(rest); err != nil {
			return err
		}
		return a.runMCP(ctx)
	default:
		return NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
}

func (a *app) runList() error {
	roles := a.store.Roles()
	if a.flags.JSON {
		return writeJSON(a.stdout, roles)
	}
	writer := newTabWriter(a.stdout)
	writeRow(writer, "NAME", "TYPE", "DESCRIPTION")
	for _, r := range roles {
		writeRow(writer, r.Name, roleType(r), truncate(r.Description, 60))
	}
	return writer.Flush()
}

func (a *app) runShow(args []string) error {
	if len(args) != 1 {
		return NewInvalidArgumentError("name", "usage: roles show <name>")
	}
	r, ok := a.store.Get(args[0])
	if !ok {
		return NewNotFoundError(args[0])
	}
	if a.flags.JSON {
		return writeJSON(a.stdout, r)
	}
	fmt.Fprintf(a.stdout, "Name:        %s\n", r.Name)
	fmt.Fprintf(a.stdout, "Type:        %s\n", roleType(r))
	fmt.Fprintf(a.stdout, "Description: %s\n", r.Description)
	fmt.Fprintf(a.stdout, "Prompt:\n%s\n", r.Prompt)
	return nil
}

// roleFields parses "<name> [--description D] [--prompt P]".
type roleFields struct {
	name        string
	description string
	prompt      string
	set         map[string]bool
}

func parseRoleFields(cmd string, args []string) (roleFields, error) {
	usage := fmt.Sprintf("usage: roles %s <name> [--description D] [--prompt P]", cmd)
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return roleFields{}, NewInvalidArgumentError("name", usage)
	}

	fields := roleFields{name: args[0], set: map[string]bool{}}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&fields.description, "description", "", "short summary")
	fs.StringVar(&fields.prompt, "prompt", "", "behavioral prompt")
	if err := fs.Parse(args[1:]); err != nil {
		return roleFields{}, NewInvalidArgumentError("flags", err.Error())
	}
	if fs.NArg() > 0 {
		return roleFields{}, NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", fs.Args()))
	}
	fs.Visit(func(f *flag.Flag) { fields.set[f.Name] = true })
	return fields, nil
}

func (a *app) runAdd(ctx context.Context, args []string) error {
	f, err := parseRoleFields("add", args)
	if err != nil {
		return err
	}
	if err := a.store.Add(ctx, f.name, f.description, f.prompt); err != nil {
		return err
	}
	return a.printMutation(f.name, "added")
}

// runEdit replaces only the fields given on the command line.
func (a *app) runEdit(ctx context.Context, args []string) error {
	f, err := parseRoleFields("edit", args)
	if err != nil {
		return err
	}
	current, ok := a.store.Get(f.name)
	if !ok {
		return NewNotFoundError(f.name)
	}
	if !f.set["description"] {
		f.description = current.Description
	}
	if !f.set["prompt"] {
		f.prompt = current.Prompt
	}
	if err := a.store.Edit(ctx, f.name, f.description, f.prompt); err != nil {
		return err
	}
	if current.BuiltIn {
		fmt.Fprintf(a.stderr, "note: %s is built-in; the change lasts for this session only\n", f.name)
	}
	return a.printMutation(f.name, "updated")
}

// runSave edits the role when it exists and adds it otherwise. Inputs are
// trimmed before they reach the store.
func (a *app) runSave(ctx context.Context, args []string) error {
	f, err := parseRoleFields("save", args)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(f.name)
	if name == "" {
		return NewInvalidArgumentError("name", "role name must not be empty")
	}
	created, err := a.store.Upsert(ctx, name, strings.TrimSpace(f.description), strings.TrimSpace(f.prompt))
	if err != nil {
		return err
	}
	action := "updated"
	if created {
		action = "added"
	}
	return a.printMutation(name, action)
}

func (a *app) runRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return NewInvalidArgumentError("name", "usage: roles remove <name>")
	}
	if err := a.store.Remove(ctx, args[0]); err != nil {
		return err
	}
	return a.printMutation(args[0], "removed")
}

func (a *app) runImport(ctx context.Context, args []string) error {
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && args[0] != "-") {
		return NewInvalidArgumentError("file", "usage: roles import <file.yaml|-> [--overwrite]")
	}
	source := args[0]
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	overwrite := fs.Bool("overwrite", false, "replace custom roles that already exist")
	if err := fs.Parse(args[1:]); err != nil {
		return NewInvalidArgumentError("flags", err.Error())
	}

	var in io.Reader = a.stdin
	if source != "-" {
		file, err := os.Open(source)
		if err != nil {
			return errors.New(errors.CodeInvalidInput, "cannot open import file", err).WithContext("path", source)
		}
		defer file.Close()
		in = file
	}
	roles, err := role.DecodeYAML(in)
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "cannot parse import file", err).WithContext("path", source)
	}

	var result importResult
	for _, r := range roles {
		name := strings.TrimSpace(r.Name)
		if *overwrite && !a.store.IsBuiltIn(name) {
			created, err := a.store.Upsert(ctx, name, r.Description, r.Prompt)
			if err != nil {
				result.Skipped = append(result.Skipped, r.Name)
				continue
			}
			if created {
				result.Imported++
			} else {
				result.Updated++
			}
			continue
		}
		if err := a.store.Add(ctx, name, r.Description, r.Prompt); err != nil {
			result.Skipped = append(result.Skipped, r.Name)
			continue
		}
		result.Imported++
	}

	if a.flags.JSON {
		return writeJSON(a.stdout, result)
	}
	fmt.Fprintf(a.stdout, "imported %d, updated %d, skipped %d\n", result.Imported, result.Updated, len(result.Skipped))
	return nil
}

func (a *app) runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("out", "", "write to a file instead of stdout")
	all := fs.Bool("all", false, "include built-in roles")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("flags", err.Error())
	}
	if fs.NArg() > 0 {
		return NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", fs.Args()))
	}

	var roles []role.Role
	for _, r := range a.store.Roles() {
		if r.BuiltIn && !*all {
			continue
		}
		roles = append(roles, r)
	}

	if *out == "" {
		return role.EncodeYAML(a.stdout, roles)
	}
	file, err := os.Create(*out)
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "cannot create export file", err).WithContext("path", *out)
	}
	if err := role.EncodeYAML(file, roles); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "exported %d roles to %s\n", len(roles), *out)
	return nil
}

func (a *app) runAsk(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return NewInvalidArgumentError("question", "usage: roles ask <name> <question...>")
	}
	r, ok := a.store.Get(args[0])
	if !ok {
		return NewNotFoundError(args[0])
	}
	question := strings.TrimSpace(strings.Join(args[1:], " "))
	if question == "" {
		return NewInvalidArgumentError("question", "question must not be empty")
	}

	provider, err := a.llmProvider()
	if err != nil {
		return err
	}
	messages := role.Apply(r, []llm.Message{{Role: llm.RoleUser, Content: question}})
	req := llm.ChatRequest{Model: a.cfg.LLM.Model, Messages: messages}
	retry := resilience.DefaultRetryConfig().WithMaxAttempts(a.cfg.LLM.MaxAttempts)
	resp, err := resilience.DoValue(ctx, retry, func() (*llm.ChatResponse, error) {
		return provider.Chat(ctx, req)
	})
	if err != nil {
		return errors.New(errors.CodeLLMError, "chat request failed", err).
			WithContext("provider", a.cfg.LLM.Provider).
			WithContext("model", a.cfg.LLM.Model)
	}

	if a.flags.JSON {
		return writeJSON(a.stdout, map[string]any{
			"role":   r.Name,
			"answer": resp.Content,
			"usage":  resp.Usage,
		})
	}
	fmt.Fprintln(a.stdout, strings.TrimSpace(resp.Content))
	return nil
}

func (a *app) runMCP(ctx context.Context) error {
	srv := kairosmcp.NewServer(a.store, a.cfg.MCP.Name, a.cfg.MCP.Version, a.logger)
	stopWatching := a.watchConfig(ctx)
	defer stopWatching()

	a.logger.InfoContext(ctx, "serving roles over MCP stdio", "name", a.cfg.MCP.Name)
	serveErr := srv.ServeStdio()
	if err := a.store.Close(ctx); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

func (a *app) printMutation(name, action string) error {
	if a.flags.JSON {
		return writeJSON(a.stdout, mutationResult{Role: name, Action: action})
	}
	fmt.Fprintf(a.stdout, "role %q %s\n", name, action)
	return nil
}

func roleType(r role.Role) string {
	if r.BuiltIn {
		return "built-in"
	}
	return "custom"
}

func ensureNoArgs(args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", args))
	}
	return nil
}
