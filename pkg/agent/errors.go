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

package agent

import (
	"errors"
	"fmt"
)

const (
	CodeTaskNotFound    = "task_not_found"
	CodeAgentNotFound   = "agent_not_found"
	CodeProcessingError = "agent_processing_error"
	CodeInternal        = "internal_error"
)

// Error is a task engine failure with a stable code.
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

// NewError creates an agent error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// errorCode extracts a stable code from any subsystem error, falling
// back to the catch-all.
func errorCode(err error) string {
	var carrier interface{ ErrorCode() string }
	if errors.As(err, &carrier) {
		return carrier.ErrorCode()
	}
	return CodeInternal
}
