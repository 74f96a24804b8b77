// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed errors for the role store and its collaborators.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies role errors for callers, logs and metrics.
type ErrorCode string

const (
	// CodeAlreadyExists indicates a name collision on create.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeNotFound indicates an operation on an absent role.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeProtected indicates an attempt to remove a built-in role.
	CodeProtected ErrorCode = "PROTECTED"

	// CodePersistence indicates the persisted roles could not be read or written.
	CodePersistence ErrorCode = "PERSISTENCE_FAILURE"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidState indicates the store was used outside its lifecycle.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching by code.
var (
	ErrAlreadyExists = &RoleError{Code: CodeAlreadyExists}
	ErrNotFound      = &RoleError{Code: CodeNotFound}
	ErrProtected     = &RoleError{Code: CodeProtected}
	ErrPersistence   = &RoleError{Code: CodePersistence}
	ErrInvalidInput  = &RoleError{Code: CodeInvalidInput}
	ErrInvalidState  = &RoleError{Code: CodeInvalidState}
)

// RoleError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type RoleError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *RoleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *RoleError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a RoleError with the same code.
func (e *RoleError) Is(target error) bool {
	t, ok := target.(*RoleError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *RoleError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a RoleError with the given code, message, and cause.
// Every code except CodeInvalidState and CodeInternal starts out recoverable.
func New(code ErrorCode, msg string, cause error) *RoleError {
	return &RoleError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Recoverable: code != CodeInvalidState && code != CodeInternal,
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *RoleError) WithContext(key string, value interface{}) *RoleError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
func (e *RoleError) WithRecoverable(recoverable bool) *RoleError {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *RoleError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsRoleError converts err to a RoleError, wrapping unknown errors as internal.
func AsRoleError(err error) *RoleError {
	if err == nil {
		return nil
	}
	var re *RoleError
	if stderrors.As(err, &re) {
		return re
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code carried by err, or "" when err is nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsRoleError(err).Code
}
