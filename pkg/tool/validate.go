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
	"fmt"
	"math"
)

// ValidateArgs checks args against the definition's parameter list and
// returns a normalized copy: required parameters present, unknown keys
// rejected, primitive types coerced, defaults applied.
//
// Arguments arrive as untyped maps decoded from LLM JSON, so numbers are
// float64 and need widening/narrowing to match the declared type.
func ValidateArgs(def Definition, args map[string]any) (map[string]any, error) {
	params := make(map[string]Parameter, len(def.Parameters))
	for _, p := range def.Parameters {
		params[p.Name] = p
	}

	for name := range args {
		if _, known := params[name]; !known {
			return nil, NewValidationError(def.Name, fmt.Sprintf("unknown parameter %q", name))
		}
	}

	normalized := make(map[string]any, len(def.Parameters))
	for _, p := range def.Parameters {
		raw, present := args[p.Name]
		if !present || raw == nil {
			if p.Required {
				return nil, NewValidationError(def.Name, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			if p.Default != nil {
				normalized[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(raw, p.Type)
		if err != nil {
			return nil, NewValidationError(def.Name,
				fmt.Sprintf("parameter %q: %v", p.Name, err))
		}
		normalized[p.Name] = coerced
	}
	return normalized, nil
}

func coerce(value any, paramType string) (any, error) {
	switch paramType {
	case "string", "":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil

	case "integer":
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected integer, got %v", v)
			}
			return int(v), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", value)
		}

	case "number":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}

	case "boolean":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
		return b, nil

	case "object":
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", value)
		}
		return m, nil

	case "array":
		a, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", value)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unsupported parameter type %q", paramType)
	}
}
