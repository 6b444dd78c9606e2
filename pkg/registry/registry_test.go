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

package registry

import (
	"fmt"
	"testing"
)

type testItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	tests := []struct {
		name    string
		key     string
		item    testItem
		wantErr bool
	}{
		{
			name:    "register valid item",
			key:     "item-1",
			item:    testItem{ID: "item-1", Name: "First"},
			wantErr: false,
		},
		{
			name:    "register with empty name",
			key:     "",
			item:    testItem{ID: "item-2"},
			wantErr: true,
		},
		{
			name:    "register duplicate",
			key:     "item-1",
			item:    testItem{ID: "item-1", Name: "Second"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.key, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	reg := NewBaseRegistry[testItem]()
	item := testItem{ID: "item-1", Name: "First"}
	if err := reg.Register("item-1", item); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := reg.Get("item-1")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != item {
		t.Errorf("Get() = %+v, want %+v", got, item)
	}

	if _, ok := reg.Get("missing"); ok {
		t.Error("Get() ok = true for missing item")
	}
}

func TestBaseRegistry_Names(t *testing.T) {
	reg := NewBaseRegistry[testItem]()
	for _, key := range []string{"charlie", "alpha", "bravo"} {
		if err := reg.Register(key, testItem{ID: key}); err != nil {
			t.Fatalf("Register(%s) error = %v", key, err)
		}
	}

	names := reg.Names()
	want := []string{"alpha", "bravo", "charlie"}
	if len(names) != len(want) {
		t.Fatalf("Names() length = %d, want %d", len(names), len(want))
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	reg := NewBaseRegistry[testItem]()
	if err := reg.Register("item-1", testItem{ID: "item-1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := reg.Remove("item-1"); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if _, ok := reg.Get("item-1"); ok {
		t.Error("item still present after Remove()")
	}
	if err := reg.Remove("item-1"); err == nil {
		t.Error("Remove() of missing item returned nil error")
	}
}

func TestBaseRegistry_CountAndClear(t *testing.T) {
	reg := NewBaseRegistry[testItem]()
	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("item-%d", i)
		if err := reg.Register(key, testItem{ID: key}); err != nil {
			t.Fatalf("Register(%s) error = %v", key, err)
		}
	}

	if count := reg.Count(); count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	reg.Clear()
	if count := reg.Count(); count != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", count)
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	reg := NewBaseRegistry[testItem]()
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		for i := 0; i < 100; i++ {
			key := fmt.Sprintf("concurrent-%d", i)
			_ = reg.Register(key, testItem{ID: key})
		}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		for i := 0; i < 100; i++ {
			reg.Get(fmt.Sprintf("concurrent-%d", i))
			reg.Count()
			reg.List()
		}
	}()

	<-done
	<-done

	if count := reg.Count(); count != 100 {
		t.Errorf("Count() after concurrent access = %d, want 100", count)
	}
}
