// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/kairos-roles/pkg/errors"
	"github.com/jllopis/kairos-roles/pkg/telemetry"
)

// Store is the single source of truth for roles and the only writer of the
// backend. It is not safe for concurrent use: callers drive it from one
// goroutine, and every mutating call finishes its write before returning.
type Store struct {
	roles     map[string]Role
	builtins  []Role
	protected nameSet
	backend   Backend

	subs        subscribers
	logger      *slog.Logger
	metrics     *telemetry.RoleMetrics
	tracer      trace.Tracer
	initialized bool
}

// Option configures a Store.
type Option func(*Store)

// WithBackend sets where custom roles are persisted.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables operation metrics.
func WithMetrics(m *telemetry.RoleMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithBuiltins replaces the built-in role set. The protected names are the
// names of these roles.
func WithBuiltins(roles []Role) Option {
	return func(s *Store) {
		s.builtins = append([]Role(nil), roles...)
	}
}

// NewStore creates an empty store. Call Initialize before use.
func NewStore(opts ...Option) *Store {
	s := &Store{
		roles:    make(map[string]Role),
		builtins: Builtins(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("kairos-roles/role"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = NewFileBackend(DefaultPath).WithLogger(s.logger)
	}
	s.protected = newNameSet(s.builtins)
	return s
}

// Subscribe registers sub for every subsequent event and returns a function
// that removes it.
func (s *Store) Subscribe(sub Subscriber) (unsubscribe func()) {
	return s.subs.add(sub)
}

// Initialize adds the built-in roles and then loads the persisted custom
// roles. Problems reading the backend are reported but never fail startup.
// It may only be called once per store.
func (s *Store) Initialize(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "initialize", "")
	defer func() { s.endSpan(ctx, span, "initialize", err) }()

	if s.initialized {
		return errors.New(errors.CodeInvalidState, "role store already initialized", nil)
	}
	s.initialized = true

	for _, r := range s.builtins {
		if ierr := s.insert(r.Name, r.Description, r.Prompt); ierr != nil {
			s.logger.WarnContext(ctx, "skipping built-in role", "role", r.Name, "error", ierr)
			continue
		}
		s.emit(ctx, NewEvent(EventRoleAdded, r.Name, "", nil))
	}

	_ = s.load(ctx)
	s.recordCount(ctx)
	return nil
}

// Add creates a custom role. It fails when name is blank or already taken by
// any role, built-in or custom.
func (s *Store) Add(ctx context.Context, name, description, prompt string) (err error) {
	ctx, span := s.startSpan(ctx, "add", name)
	defer func() { s.endSpan(ctx, span, "add", err) }()

	if err = s.insert(name, description, prompt); err != nil {
		return s.reject(ctx, name, err)
	}
	s.logger.DebugContext(ctx, "role added", "role", name)
	_ = s.save(ctx)
	s.emit(ctx, NewEvent(EventRoleAdded, name, "", nil))
	s.recordCount(ctx)
	return nil
}

// Remove deletes a custom role. Built-in roles are protected.
func (s *Store) Remove(ctx context.Context, name string) (err error) {
	ctx, span := s.startSpan(ctx, "remove", name)
	defer func() { s.endSpan(ctx, span, "remove", err) }()

	if _, ok := s.roles[name]; !ok {
		return s.reject(ctx, name, errors.New(errors.CodeNotFound, "role not found", nil).WithContext("role", name))
	}
	if s.protected.has(name) {
		return s.reject(ctx, name, errors.New(errors.CodeProtected, "cannot remove built-in role", nil).WithContext("role", name))
	}

	delete(s.roles, name)
	s.logger.DebugContext(ctx, "role removed", "role", name)
	_ = s.save(ctx)
	s.emit(ctx, NewEvent(EventRoleRemoved, name, "", nil))
	s.recordCount(ctx)
	return nil
}

// Edit replaces the description and prompt of an existing role. Built-in
// roles can be edited, but only custom roles are ever persisted, so such an
// edit lasts for the lifetime of the store.
func (s *Store) Edit(ctx context.Context, name, description, prompt string) (err error) {
	ctx, span := s.startSpan(ctx, "edit", name)
	defer func() { s.endSpan(ctx, span, "edit", err) }()

	if err = validateName(name); err != nil {
		return s.reject(ctx, name, err)
	}
	current, ok := s.roles[name]
	if !ok {
		return s.reject(ctx, name, errors.New(errors.CodeNotFound, "role not found", nil).WithContext("role", name))
	}

	current.Description = description
	current.Prompt = prompt
	s.roles[name] = current
	if current.BuiltIn {
		s.logger.DebugContext(ctx, "built-in role edited for this session only", "role", name)
	} else {
		s.logger.DebugContext(ctx, "role modified", "role", name)
	}
	_ = s.save(ctx)
	s.emit(ctx, NewEvent(EventRoleModified, name, "", nil))
	return nil
}

// Upsert edits name when it exists and adds it otherwise, reporting whether
// a role was created.
func (s *Store) Upsert(ctx context.Context, name, description, prompt string) (created bool, err error) {
	if _, ok := s.roles[name]; ok {
		return false, s.Edit(ctx, name, description, prompt)
	}
	if err := s.Add(ctx, name, description, prompt); err != nil {
		return false, err
	}
	return true, nil
}

// List returns every role name in lexicographic order.
func (s *Store) List() []string {
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Roles returns every role ordered by name.
func (s *Store) Roles() []Role {
	out := make([]Role, 0, len(s.roles))
	for _, name := range s.List() {
		out = append(out, s.roles[name])
	}
	return out
}

// Get looks up a role by exact name.
func (s *Store) Get(name string) (Role, bool) {
	r, ok := s.roles[name]
	return r, ok
}

// IsBuiltIn reports whether name is one of the protected built-in names.
func (s *Store) IsBuiltIn(name string) bool {
	return s.protected.has(name)
}

// Save writes the custom roles through the backend, replacing what was there.
func (s *Store) Save(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "save", "")
	defer func() { s.endSpan(ctx, span, "save", err) }()
	return s.save(ctx)
}

// Load merges the persisted custom roles into the store. Entries whose name
// is blank or already present are skipped silently. A failure to read the
// backend is reported and returned; the store is left as it was.
func (s *Store) Load(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "load", "")
	defer func() { s.endSpan(ctx, span, "load", err) }()
	return s.load(ctx)
}

// Close flushes the custom roles. The store should not be used afterwards.
func (s *Store) Close(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "close", "")
	defer func() { s.endSpan(ctx, span, "close", err) }()
	return s.save(ctx)
}

// insert is the shared insertion path of Initialize, Add and Load.
func (s *Store) insert(name, description, prompt string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, ok := s.roles[name]; ok {
		return errors.New(errors.CodeAlreadyExists, "role already exists", nil).WithContext("role", name)
	}
	s.roles[name] = Role{
		Name:        name,
		Description: description,
		Prompt:      prompt,
		BuiltIn:     s.protected.has(name),
	}
	return nil
}

func (s *Store) load(ctx context.Context) error {
	records, err := s.backend.ReadAll(ctx)
	if err != nil {
		return s.persistenceFailure(ctx, "load", "cannot load custom roles", err)
	}

	accepted := 0
	for _, r := range records {
		if err := s.insert(r.Name, r.Description, r.Prompt); err != nil {
			s.logger.DebugContext(ctx, "skipping persisted role", "role", r.Name, "reason", errors.CodeOf(err))
			continue
		}
		accepted++
		s.emit(ctx, NewEvent(EventRoleAdded, r.Name, "", nil))
	}

	trace.SpanFromContext(ctx).SetAttributes(telemetry.StorageAttributes(s.backend.Name(), accepted, len(records)-accepted)...)
	s.logger.DebugContext(ctx, "custom roles loaded", "backend", s.backend.Name(), "loaded", accepted, "skipped", len(records)-accepted)
	return nil
}

func (s *Store) save(ctx context.Context) error {
	custom := make([]Role, 0, len(s.roles))
	for _, name := range s.List() {
		if s.protected.has(name) {
			continue
		}
		custom = append(custom, s.roles[name])
	}

	if err := s.backend.WriteAll(ctx, custom); err != nil {
		return s.persistenceFailure(ctx, "save", "cannot save custom roles", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(telemetry.StorageAttributes(s.backend.Name(), len(custom), 0)...)
	return nil
}

// persistenceFailure reports a backend error without touching in-memory state.
func (s *Store) persistenceFailure(ctx context.Context, operation, msg string, cause error) error {
	err := errors.New(errors.CodePersistence, msg, cause).WithContext("backend", s.backend.Name())
	s.logger.ErrorContext(ctx, msg, "backend", s.backend.Name(), "error", cause)
	s.metrics.RecordPersistenceFailure(ctx, s.backend.Name(), operation)
	s.emit(ctx, NewEvent(EventError, "", err.Error(), err))
	return err
}

// reject notifies subscribers of a refused operation and returns err.
func (s *Store) reject(ctx context.Context, name string, err error) error {
	s.emit(ctx, NewEvent(EventError, name, err.Error(), err))
	return err
}

func (s *Store) emit(ctx context.Context, event Event) {
	s.subs.notify(ctx, event)
}

func (s *Store) recordCount(ctx context.Context) {
	builtIn := 0
	for name := range s.roles {
		if s.protected.has(name) {
			builtIn++
		}
	}
	s.metrics.RecordRoleCount(ctx, builtIn, len(s.roles)-builtIn)
}

func (s *Store) startSpan(ctx context.Context, operation, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "roles."+operation,
		trace.WithAttributes(telemetry.RoleAttributes(operation, name, s.protected.has(name))...))
}

func (s *Store) endSpan(ctx context.Context, span trace.Span, operation string, err error) {
	span.SetAttributes(telemetry.ResultAttribute(string(errors.CodeOf(err))))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.RecordOperation(ctx, operation, err)
	span.End()
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.CodeInvalidInput, "role name must not be empty", nil)
	}
	return nil
}
