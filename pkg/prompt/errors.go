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

package prompt

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the composition pipeline.
const (
	CodePromptNotFound        = "prompt_not_found"
	CodePromptValidationError = "prompt_validation_error"
	CodePromptRenderError     = "prompt_render_error"
	CodeMergePointConflict    = "merge_point_conflict"
)

// Error is a prompt pipeline failure with a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the stable code for event reporting.
func (e *Error) ErrorCode() string { return e.Code }

// NewError creates a prompt error with the given code.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err carries the prompt_not_found code.
func IsNotFound(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Code == CodePromptNotFound
}
