/*******************************************************************************
*
* Copyright 2024 GPU Scoring Tool Contributors
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

// Package heuristics runs optional, independently-toggleable
// derivation strategies over an EnrichedListing, each contributing zero
// or more tagged HeuristicOutput values (spec.md sec 4.5). Strategies
// register themselves at init() time, the same collision-fatal
// package-level registry shape as internal/core/plugin.go's plugin
// registries.
package heuristics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

// quantizationCapacityPrefix namespaces the quantization_capacity
// strategy's per-model outputs so Run can fold them into
// EnrichedListing.QuantizationCapacity without the Strategy interface
// needing to know about that concrete field.
const quantizationCapacityPrefix = "quantization_capacity."

// Config carries the per-run toggles that decide which strategies are
// enabled. All strategies are disabled by default (spec.md sec 4.5);
// a caller opts in by name.
type Config struct {
	Enabled map[string]bool
	Reg     registry.Registry
}

// IsEnabled reports whether the named strategy was opted into.
func (c Config) IsEnabled(name string) bool { return c.Enabled[name] }

// Strategy is one independently-toggleable heuristic derivation.
type Strategy interface {
	Name() string
	Enabled(cfg Config) bool
	Apply(cfg Config, listing model.EnrichedListing) ([]model.HeuristicOutput, []model.Warning)
}

var (
	registryMu sync.Mutex
	strategies = map[string]Strategy{}
	order      []string
)

// RegisterStrategy adds a Strategy to the package-level registry. It
// must be called from an init() function; a duplicate name is a fatal
// programming error, not a runtime condition a caller can recover
// from, so RegisterStrategy panics.
func RegisterStrategy(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := s.Name()
	if _, exists := strategies[name]; exists {
		panic(fmt.Sprintf("heuristics: strategy %q registered twice", name))
	}
	strategies[name] = s
	order = append(order, name)
}

// RegisteredNames returns every registered strategy name in
// registration order.
func RegisteredNames() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// Engine runs every registered, enabled strategy over a batch of
// EnrichedListings.
type Engine struct {
	cfg Config
}

// New builds an Engine with the given Config.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run is a pipeline.Stage that applies every enabled strategy, in
// name order (sorted, not registration order), to each listing in the
// batch.
func (e *Engine) Run(ctx context.Context, in []model.EnrichedListing) ([]model.EnrichedListing, error) {
	registryMu.Lock()
	names := make([]string, len(order))
	copy(names, order)
	registryMu.Unlock()
	sort.Strings(names) // deterministic regardless of init() package-load order

	out := make([]model.EnrichedListing, len(in))
	for i, listing := range in {
		for _, name := range names {
			registryMu.Lock()
			strat := strategies[name]
			registryMu.Unlock()
			if !strat.Enabled(e.cfg) {
				continue
			}
			outputs, warnings := strat.Apply(e.cfg, listing)
			listing.Heuristics = append(listing.Heuristics, outputs...)
			listing.Warnings = append(listing.Warnings, warnings...)
			foldQuantizationCapacity(&listing, outputs)
		}
		out[i] = listing
	}
	return out, nil
}

// foldQuantizationCapacity copies any quantization_capacity.<model>
// outputs into the listing's dedicated QuantizationCapacity map, which
// is what the query surface and persistence layer read (spec.md sec 3).
func foldQuantizationCapacity(listing *model.EnrichedListing, outputs []model.HeuristicOutput) {
	for _, o := range outputs {
		modelName, ok := strings.CutPrefix(o.Name, quantizationCapacityPrefix)
		if !ok || o.Kind != model.HeuristicInt {
			continue
		}
		if listing.QuantizationCapacity == nil {
			listing.QuantizationCapacity = make(map[string]int)
		}
		listing.QuantizationCapacity[modelName] = o.I
		listing.HasQuantization = true
	}
}
