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

// Package utils holds small shared helpers: token counting and text
// truncation.
package utils

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with tiktoken, caching encodings per model.
// Unknown models fall back to cl100k_base; when even that fails the count
// is estimated at four characters per token.
type TokenCounter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewTokenCounter creates a counter with an empty encoding cache.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns the token count of text under the model's encoding.
func (tc *TokenCounter) Count(text string, model string) int {
	if text == "" {
		return 0
	}

	encoding := tc.encodingFor(model)
	if encoding == nil {
		return EstimateTokens(text)
	}
	return len(encoding.Encode(text, nil, nil))
}

func (tc *TokenCounter) encodingFor(model string) *tiktoken.Tiktoken {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if encoding, ok := tc.encodings[model]; ok {
		return encoding
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}
	tc.encodings[model] = encoding
	return encoding
}

// EstimateTokens approximates a token count without an encoding.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// TruncateText shortens text to at most limit characters, appending the
// truncation marker when it was cut.
func TruncateText(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "...(truncated)"
}
