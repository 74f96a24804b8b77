// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/kairos-roles/pkg/errors"
)

// RoleMetrics tracks store operations, their failures and the size of the store.
// A nil *RoleMetrics is valid and records nothing.
type RoleMetrics struct {
	// operationCounter counts operations by name and result code
	operationCounter metric.Int64Counter

	// errorCounter counts failed operations by error code
	errorCounter metric.Int64Counter

	// persistenceFailures counts writes or reads of the backend that failed
	persistenceFailures metric.Int64Counter

	// roleCountGauge tracks the number of roles by origin
	roleCountGauge metric.Int64Gauge
}

// NewRoleMetrics creates role metrics from the global meter provider.
func NewRoleMetrics(ctx context.Context) (*RoleMetrics, error) {
	meter := otel.Meter("kairos-roles/role")

	operationCounter, err := meter.Int64Counter(
		"roles.operations.total",
		metric.WithDescription("Store operations by operation and result"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"roles.errors.total",
		metric.WithDescription("Failed store operations by error code"),
	)
	if err != nil {
		return nil, err
	}

	persistenceFailures, err := meter.Int64Counter(
		"roles.persistence.failures",
		metric.WithDescription("Backend reads and writes that failed"),
	)
	if err != nil {
		return nil, err
	}

	roleCountGauge, err := meter.Int64Gauge(
		"roles.count",
		metric.WithDescription("Number of roles held by the store, by origin (builtin, custom)"),
	)
	if err != nil {
		return nil, err
	}

	return &RoleMetrics{
		operationCounter:    operationCounter,
		errorCounter:        errorCounter,
		persistenceFailures: persistenceFailures,
		roleCountGauge:      roleCountGauge,
	}, nil
}

// RecordOperation counts a completed operation. err may be nil.
func (rm *RoleMetrics) RecordOperation(ctx context.Context, operation string, err error) {
	if rm == nil {
		return
	}

	code := string(errors.CodeOf(err))
	rm.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrOperation, operation),
			ResultAttribute(code),
		),
	)
	if err == nil {
		return
	}

	re := errors.AsRoleError(err)
	rm.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrErrorCode, string(re.Code)),
			attribute.String(AttrOperation, operation),
			attribute.String(AttrErrorRecoverable, re.RecoverableString()),
		),
	)
}

// RecordPersistenceFailure counts a failed backend access.
func (rm *RoleMetrics) RecordPersistenceFailure(ctx context.Context, backend, operation string) {
	if rm == nil {
		return
	}

	rm.persistenceFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrStorageBackend, backend),
			attribute.String(AttrOperation, operation),
		),
	)
}

// RecordRoleCount records how many built-in and custom roles the store holds.
func (rm *RoleMetrics) RecordRoleCount(ctx context.Context, builtIn, custom int) {
	if rm == nil {
		return
	}

	rm.roleCountGauge.Record(ctx, int64(builtIn), metric.WithAttributes(attribute.String(AttrRoleOrigin, "builtin")))
	rm.roleCountGauge.Record(ctx, int64(custom), metric.WithAttributes(attribute.String(AttrRoleOrigin, "custom")))
}
