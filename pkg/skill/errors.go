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

package skill

import "fmt"

const (
	CodeSkillNotFound         = "skill_not_found"
	CodeSubAgentDepthExceeded = "sub_agent_depth_exceeded"
)

// Error is a skill orchestration failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the stable code for event reporting.
func (e *Error) ErrorCode() string { return e.Code }

// NewError creates a skill error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}
