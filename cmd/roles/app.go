// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jllopis/kairos-roles/pkg/config"
	"github.com/jllopis/kairos-roles/pkg/errors"
	"github.com/jllopis/kairos-roles/pkg/llm"
	"github.com/jllopis/kairos-roles/pkg/role"
	"github.com/jllopis/kairos-roles/pkg/telemetry"
)

const serviceName = "kairos-roles"

// app holds what a single command needs: config, a ready store and the
// process streams.
type app struct {
	cfg    *config.Config
	flags  globalFlags
	store  *role.Store
	logger *slog.Logger
	level  *slog.LevelVar

	// provider is built on first use by ask.
	provider llm.Provider

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, flags globalFlags, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		flags:  flags,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	a.level = new(slog.LevelVar)
	a.level.Set(telemetry.ParseLevel(cfg.Log.Level))
	a.logger = telemetry.ConfigureSlogLeveler(stderr, a.level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig(serviceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "telemetry setup failed", err).
			WithContext("exporter", cfg.Telemetry.Exporter)
	}
	a.closers = append(a.closers, shutdown)

	metrics, err := telemetry.NewRoleMetrics(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "role metrics disabled", "error", err)
	}

	backend, err := a.openBackend(cfg.Storage)
	if err != nil {
		a.shutdown(ctx)
		return nil, err
	}

	a.store = role.NewStore(
		role.WithBackend(backend),
		role.WithLogger(a.logger),
		role.WithMetrics(metrics),
	)
	a.store.Subscribe(eventLogger(a.logger))
	if err := a.store.Initialize(ctx); err != nil {
		a.shutdown(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) openBackend(cfg config.StorageConfig) (role.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		return role.NewFileBackend(cfg.Path).WithLogger(a.logger), nil
	case "sqlite":
		b, err := role.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, errors.New(errors.CodePersistence, "cannot open role database", err).
				WithContext("path", cfg.Path)
		}
		a.closers = append(a.closers, func(context.Context) error { return b.Close() })
		return b, nil
	default:
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("unknown storage backend %q", cfg.Backend), nil).
			WithContext("backend", cfg.Backend)
	}
}

// llmProvider returns the configured chat provider.
func (a *app) llmProvider() (llm.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	switch strings.ToLower(strings.TrimSpace(a.cfg.LLM.Provider)) {
	case "ollama", "":
		a.provider = llm.NewOllama(a.cfg.LLM.BaseURL)
	case "mock":
		a.provider = &llm.MockProvider{}
	default:
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("unknown llm provider %q", a.cfg.LLM.Provider), nil).
			WithContext("provider", a.cfg.LLM.Provider)
	}
	return a.provider, nil
}

// watchConfig follows the --config file while a long-running command serves,
// applying log level changes. It returns a function that stops watching.
func (a *app) watchConfig(ctx context.Context) func() {
	if config.PathFromArgs(a.flags.ConfigArgs) == "" {
		return func() {}
	}
	w, err := config.NewWatcher(a.flags.ConfigArgs, config.WithWatchLogger(a.logger))
	if err != nil {
		a.logger.WarnContext(ctx, "config reload disabled", "error", err)
		return func() {}
	}
	w.OnChange(func(cfg *config.Config) {
		a.level.Set(telemetry.ParseLevel(cfg.Log.Level))
		a.logger.InfoContext(ctx, "log level updated", "level", cfg.Log.Level)
	})
	w.Start(ctx)
	return w.Stop
}

// shutdown releases resources in reverse order of acquisition.
func (a *app) shutdown(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.WarnContext(ctx, "shutdown failed", "error", err)
		}
	}
	a.closers = nil
}

// eventLogger reports store events. Rejected operations are already returned
// to the caller, so only persistence failures are logged above debug.
func eventLogger(logger *slog.Logger) role.Subscriber {
	return role.SubscriberFunc(func(ctx context.Context, ev role.Event) {
		if ev.Type == role.EventError && errors.CodeOf(ev.Err) == errors.CodePersistence {
			logger.WarnContext(ctx, "role change not persisted", "event_id", ev.ID, "error", ev.Message)
			return
		}
		logger.DebugContext(ctx, "role event", "event_id", ev.ID, "type", string(ev.Type), "role", ev.Name)
	})
}
