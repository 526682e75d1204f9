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

package registry

import (
	"regexp"
	"sort"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// Registry is the validated product of Load (spec.md sec 9, "scoped
// global registries"). Its fields are unexported and most accessors
// return copies or freshly built slices. Weights and Quantization do
// not copy: Weights returns the registry's own WeightVector map, and
// the QuantizationConstants that Quantization returns share the
// registry's ModelSizes map, so writes through either reach the
// registry itself.
type Registry struct {
	specs          map[model.CanonicalModel]model.GPUSpec
	aliases        map[string]model.CanonicalModel
	patterns       []model.MatchPattern
	weights        map[string]model.WeightVector
	quantization   model.QuantizationConstants
	fuzzyThreshold float64
}

// Spec returns the GPUSpec for a canonical model and whether it exists.
func (r Registry) Spec(canon model.CanonicalModel) (model.GPUSpec, bool) {
	s, ok := r.specs[canon]
	return s, ok
}

// Canonicals returns every canonical model known to the registry,
// sorted for deterministic iteration (used by the /models endpoint).
func (r Registry) Canonicals() []model.CanonicalModel {
	out := make([]model.CanonicalModel, 0, len(r.specs))
	for c := range r.specs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveAlias performs an exact-match alias lookup. The Normalizer
// normalizes the surface string the same way (normalizeAliasKey)
// before calling this.
func (r Registry) ResolveAlias(surface string) (model.CanonicalModel, bool) {
	c, ok := r.aliases[normalizeAliasKey(surface)]
	return c, ok
}

// AliasEntry is one normalized surface form and the canonical model it
// resolves to, used by the Normalizer's fuzzy-matching scan.
type AliasEntry struct {
	Surface   string
	Canonical model.CanonicalModel
}

// AliasEntries returns every (surface, canonical) pair sorted by
// canonical, then by surface, for the Normalizer's fuzzy best-match scan. Keys
// are already normalized (lowercased, trimmed).
func (r Registry) AliasEntries() []AliasEntry {
	out := make([]AliasEntry, 0, len(r.aliases))
	for surface, canon := range r.aliases {
		out = append(out, AliasEntry{Surface: surface, Canonical: canon})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Canonical != out[j].Canonical {
			return out[i].Canonical < out[j].Canonical
		}
		return out[i].Surface < out[j].Surface
	})
	return out
}

// CompiledPattern pairs a MatchPattern with its compiled regular
// expression, returned together so callers cannot desync the two.
type CompiledPattern struct {
	model.MatchPattern
	Regexp *regexp.Regexp
}

// Patterns returns every match pattern ordered by (Priority descending,
// declaration order ascending) — the order the Normalizer must try
// them in (spec.md sec 4.3).
func (r Registry) Patterns() []CompiledPattern {
	out := make([]CompiledPattern, len(r.patterns))
	for i, p := range r.patterns {
		// compilePattern already validated every pattern at Load time;
		// recompiling here keeps Registry itself free of pointer state
		// that Load would otherwise need to keep in lockstep with patterns.
		rx, _ := compilePattern(p.Pattern)
		out[i] = CompiledPattern{MatchPattern: p, Regexp: rx}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].DeclOrder() < out[j].DeclOrder()
	})
	return out
}

// Weights returns the named weight preset and whether it exists.
func (r Registry) Weights(preset string) (model.WeightVector, bool) {
	w, ok := r.weights[preset]
	return w, ok
}

// PresetNames returns every weight preset name known to the registry,
// sorted for deterministic listing.
func (r Registry) PresetNames() []string {
	out := make([]string, 0, len(r.weights))
	for name := range r.weights {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Quantization returns the quantization_capacity heuristic's constants.
func (r Registry) Quantization() model.QuantizationConstants {
	return r.quantization
}

// FuzzyThreshold returns the minimum similarity ratio the Normalizer
// accepts for a fuzzy match (spec.md sec 4.3).
func (r Registry) FuzzyThreshold() float64 {
	return r.fuzzyThreshold
}
