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
	"fmt"
	"regexp"
	"strings"
)

// variableRef matches {{ path.to.var }}. Merge-point markers use the
// {{> name }} form and are resolved before rendering.
var variableRef = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)

// maxRenderDepth bounds recursive substitution so a variable whose
// value references itself cannot loop forever.
const maxRenderDepth = 10

// renderVariables substitutes {{ var.path }} references, recursively:
// a substituted value may itself contain references. Unknown variables
// render to the empty string.
func renderVariables(template string, vars map[string]any) (string, error) {
	text := template
	for depth := 0; depth < maxRenderDepth; depth++ {
		next := variableRef.ReplaceAllStringFunc(text, func(match string) string {
			path := variableRef.FindStringSubmatch(match)[1]
			return lookupVariable(vars, path)
		})
		if next == text {
			break
		}
		text = next
	}
	if variableRef.MatchString(text) {
		return "", NewError(CodePromptRenderError,
			"variable substitution did not converge after %d passes", maxRenderDepth)
	}
	return text, nil
}

// lookupVariable walks a dotted path through nested maps.
func lookupVariable(vars map[string]any, path string) string {
	var current any = vars
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = m[segment]
		if !ok {
			return ""
		}
	}
	switch v := current.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
