// Copyright 2026 The Conductor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"errors"
	"fmt"
)

// Stable error codes for the tool execution layer.
const (
	CodeNotFound          = "tool_not_found"
	CodeAlreadyRegistered = "tool_already_registered"
	CodeValidationError   = "tool_validation_error"
	CodeExecutionError    = "tool_execution_error"
	CodeTimeout           = "tool_timeout"
	CodePermissionDenied  = "tool_permission_denied"
	CodeRateLimited       = "rate_limit_exceeded"
	CodeBudgetExceeded    = "cost_budget_exceeded"
	CodeModelNotApproved  = "model_not_approved"
)

// Error is a tool-layer failure with a stable machine-readable code.
type Error struct {
	Code    string
	Tool    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode implements the coded-error contract consumed by the task
// engine's error events.
func (e *Error) ErrorCode() string {
	return e.Code
}

// NewError creates a coded tool error.
func NewError(code, toolName, message string) *Error {
	return &Error{Code: code, Tool: toolName, Message: message}
}

// NewValidationError creates a tool_validation_error.
func NewValidationError(toolName, message string) *Error {
	return NewError(CodeValidationError, toolName, message)
}

// CodeOf extracts the stable code from err, or "internal_error".
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	type codeCarrier interface{ ErrorCode() string }
	var carrier codeCarrier
	if errors.As(err, &carrier) {
		return carrier.ErrorCode()
	}
	return "internal_error"
}
