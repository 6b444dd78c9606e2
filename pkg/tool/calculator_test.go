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
	"context"
	"testing"
)

func TestCalculatorTool_Execute(t *testing.T) {
	calc := NewCalculatorTool()

	tests := []struct {
		name       string
		expression string
		want       string
		wantErr    bool
	}{
		{name: "simple addition", expression: "5 + 3", want: "8"},
		{name: "precedence", expression: "2 + 3 * 4", want: "14"},
		{name: "parentheses", expression: "(2 + 3) * 4", want: "20"},
		{name: "unary minus", expression: "-4 + 10", want: "6"},
		{name: "division", expression: "7 / 2", want: "3.5"},
		{name: "nested", expression: "((1 + 2) * (3 + 4))", want: "21"},
		{name: "division by zero", expression: "1 / 0", wantErr: true},
		{name: "trailing garbage", expression: "1 + 2 x", wantErr: true},
		{name: "empty expression", expression: "", wantErr: true},
		{name: "unbalanced parens", expression: "(1 + 2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := calc.Execute(context.Background(), map[string]any{"expression": tt.expression})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if tt.wantErr {
				if result.Success {
					t.Fatalf("Execute() success = true, want failure")
				}
				if result.Error == "" {
					t.Error("failed result must carry an error")
				}
				return
			}
			if !result.Success {
				t.Fatalf("Execute() failed: %s", result.Error)
			}
			if got := result.Value["value"]; got != tt.want {
				t.Errorf("Execute() value = %v, want %v", got, tt.want)
			}
		})
	}
}
