// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command roles manages persona roles from the terminal and serves them over MCP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/jllopis/kairos-roles/pkg/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global, args, err := parseGlobalFlags(args)
	if err != nil {
		printError(stderr, NewInvalidArgumentError("flags", err.Error()), false)
		return 2
	}
	if global.Help || len(args) == 0 {
		printUsage(stdout)
		return 0
	}

	switch args[0] {
	case "help":
		printUsage(stdout)
		return 0
	case "version":
		printVersion(stdout, global.JSON)
		return 0
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		printError(stderr, NewConfigError(err, config.PathFromArgs(global.ConfigArgs)), global.JSON)
		return 1
	}

	a, err := newApp(ctx, cfg, global, stdin, stdout, stderr)
	if err != nil {
		printError(stderr, err, global.JSON)
		return 1
	}
	defer a.shutdown(context.WithoutCancel(ctx))

	if err := a.dispatch(ctx, args); err != nil {
		printError(stderr, err, global.JSON)
		return 1
	}
	return 0
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func writeJSON(w io.Writer, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	_, _ = fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.ReplaceAll(value, "\n", " ")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func printVersion(w io.Writer, asJSON bool) {
	if asJSON {
		_ = writeJSON(w, map[string]string{"version": version})
		return
	}
	fmt.Fprintln(w, version)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Kairos roles CLI

Usage:
  roles [global flags] <command> [args]

Global flags:
  --config <path>      Path to a YAML config file
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  list
  show <name>
  add <name> [--description D] [--prompt P]
  edit <name> [--description D] [--prompt P]
  save <name> [--description D] [--prompt P]
  remove <name>
  import <file.yaml|-> [--overwrite]
  export [--out <path>] [--all]
  ask <name> <question...>
  mcp
  version
  help`)
}
