// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics for the role store.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for role store telemetry.
const (
	// Role attributes
	AttrRoleName    = "roles.role.name"
	AttrRoleBuiltIn = "roles.role.builtin"
	AttrRoleOrigin  = "roles.role.origin"

	// Operation attributes
	AttrOperation       = "roles.operation"
	AttrOperationResult = "roles.operation.result"

	// Storage attributes
	AttrStorageBackend = "roles.storage.backend"
	AttrStorageRecords = "roles.storage.records"
	AttrStorageSkipped = "roles.storage.skipped"

	// Error attributes
	AttrErrorCode        = "error.code"
	AttrErrorRecoverable = "recoverable"
)

// RoleAttributes returns common attributes for spans touching a single role.
func RoleAttributes(operation, name string, builtIn bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOperation, operation),
	}
	if name != "" {
		attrs = append(attrs,
			attribute.String(AttrRoleName, name),
			attribute.Bool(AttrRoleBuiltIn, builtIn),
		)
	}
	return attrs
}

// StorageAttributes returns attributes for backend reads and writes.
func StorageAttributes(backend string, records, skipped int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrStorageBackend, backend),
		attribute.Int(AttrStorageRecords, records),
	}
	if skipped > 0 {
		attrs = append(attrs, attribute.Int(AttrStorageSkipped, skipped))
	}
	return attrs
}

// ResultAttribute maps an operation error to "ok" or its error code.
func ResultAttribute(code string) attribute.KeyValue {
	if code == "" {
		code = "ok"
	}
	return attribute.String(AttrOperationResult, code)
}
