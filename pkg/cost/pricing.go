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

package cost

import "strings"

// ModelPrice is the per-million-token price of a model.
type ModelPrice struct {
	InputUSD  float64
	OutputUSD float64
}

// defaultPricing maps model name prefixes to prices. Longest prefix wins.
// Prices change often; unknown models cost zero and are tracked by tokens
// only.
var defaultPricing = map[string]ModelPrice{
	"gpt-4o-mini":       {InputUSD: 0.15, OutputUSD: 0.60},
	"gpt-4o":            {InputUSD: 2.50, OutputUSD: 10.00},
	"gpt-4.1":           {InputUSD: 2.00, OutputUSD: 8.00},
	"o3":                {InputUSD: 2.00, OutputUSD: 8.00},
	"claude-3-5-haiku":  {InputUSD: 0.80, OutputUSD: 4.00},
	"claude-sonnet-4":   {InputUSD: 3.00, OutputUSD: 15.00},
	"claude-opus-4":     {InputUSD: 15.00, OutputUSD: 75.00},
	"llama-3.1-8b":      {InputUSD: 0.05, OutputUSD: 0.08},
	"llama-3.3-70b":     {InputUSD: 0.59, OutputUSD: 0.79},
	"mixtral-8x7b":      {InputUSD: 0.24, OutputUSD: 0.24},
	"deepseek-r1-distill": {InputUSD: 0.75, OutputUSD: 0.99},
}

// Pricing resolves model token usage to USD and enforces an optional model
// approval list.
type Pricing struct {
	prices   map[string]ModelPrice
	approved map[string]struct{}
}

// NewPricing creates a pricing table with the built-in defaults.
// approvedModels is an optional whitelist; empty means every model is
// approved.
func NewPricing(approvedModels []string) *Pricing {
	p := &Pricing{prices: defaultPricing}
	if len(approvedModels) > 0 {
		p.approved = make(map[string]struct{}, len(approvedModels))
		for _, model := range approvedModels {
			p.approved[model] = struct{}{}
		}
	}
	return p
}

// Approved reports whether the model may be called.
func (p *Pricing) Approved(model string) bool {
	if p.approved == nil {
		return true
	}
	_, ok := p.approved[model]
	return ok
}

// Cost computes the USD cost of a call. Unknown models cost zero.
func (p *Pricing) Cost(model string, inputTokens, outputTokens int) float64 {
	price, ok := p.lookup(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*price.InputUSD +
		float64(outputTokens)/1e6*price.OutputUSD
}

func (p *Pricing) lookup(model string) (ModelPrice, bool) {
	var (
		best    ModelPrice
		bestLen = -1
	)
	for prefix, price := range p.prices {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = price
			bestLen = len(prefix)
		}
	}
	return best, bestLen >= 0
}
