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

package reasoning

import "fmt"

// Error codes raised by the reasoning loop itself. Executor-level codes
// pass through unchanged.
const (
	CodeInvalidLLMResponse    = "invalid_llm_response"
	CodeLLMCallFailed         = "llm_call_failed"
	CodeMaxIterationsExceeded = "max_iterations_exceeded"
)

// Error is a reasoning-loop failure with a stable code.
type Error struct {
	Code    string
	Message string
	Details map[string]any
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

// NewError creates a reasoning error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}
