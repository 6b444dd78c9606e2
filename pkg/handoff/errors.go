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

package handoff

import "fmt"

// CodeHandoffError covers both the active-session conflict and a
// missing session.
const CodeHandoffError = "handoff_error"

// Error is a handoff failure.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", CodeHandoffError, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", CodeHandoffError, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the stable code for event reporting.
func (e *Error) ErrorCode() string { return CodeHandoffError }

// NewError creates a handoff error.
func NewError(message string) *Error {
	return &Error{Message: message}
}
