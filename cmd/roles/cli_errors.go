// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/kairos-roles/pkg/errors"
)

// CLIError wraps RoleError with CLI-specific formatting and hints.
type CLIError struct {
	*errors.RoleError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(re *errors.RoleError, hint string) *CLIError {
	return &CLIError{
		RoleError: re,
		Hint:      hint,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.RoleError == nil {
		return "unknown error"
	}

	msg := e.RoleError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the RoleError so errors.Is matches by code.
func (e *CLIError) Unwrap() error {
	return e.RoleError
}

// PrintError prints the error with appropriate formatting.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	message := e.Message
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	if asJSON {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]string{
				"code":    string(e.Code),
				"message": message,
				"hint":    e.Hint,
			},
		})
		fmt.Fprintln(w, string(payload))
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, message)
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewNotFoundError creates a not found error with CLI hints.
func NewNotFoundError(name string) *CLIError {
	re := errors.New(errors.CodeNotFound, fmt.Sprintf("role '%s' not found", name), nil).
		WithContext("role", name)
	return NewCLIError(re, HintFor(errors.CodeNotFound))
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	re := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithContext("reason", reason)
	return NewCLIError(re, "run 'roles help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	re := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)

	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(re, hint)
}

// HintFor returns the follow-up suggested to the user for a store error code.
func HintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeAlreadyExists:
		return "pick another name or use 'roles edit' to change the existing role"
	case errors.CodeNotFound:
		return "run 'roles list' to see the available roles"
	case errors.CodeProtected:
		return "built-in roles cannot be removed; 'roles edit' changes them for this session"
	case errors.CodePersistence:
		return "the change is kept in memory only; check storage.path permissions"
	case errors.CodeInvalidInput:
		return "run 'roles help' for usage information"
	case errors.CodeLLMError:
		return "check llm.base_url and that the model is available"
	default:
		return ""
	}
}

// printError prints any error in the CLI format. RoleErrors get a hint for
// their code; other errors are reported as internal.
func printError(w io.Writer, err error, asJSON bool) {
	cliErr, ok := err.(*CLIError)
	if !ok {
		re := errors.AsRoleError(err)
		cliErr = NewCLIError(re, HintFor(re.Code))
	}
	cliErr.PrintError(w, asJSON)
}
