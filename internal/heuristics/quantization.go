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

package heuristics

import (
	"math"
	"sort"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

func init() {
	RegisterStrategy(quantizationCapacityStrategy{})
}

// quantizationCapacityStrategy estimates how many concurrent copies of
// each configured model size a listing's VRAM can hold, after
// reserving the registry's overhead_gb for runtime/KV-cache overhead.
// This is the one heuristic strategy spec.md sec 4.5 requires.
type quantizationCapacityStrategy struct{}

func (quantizationCapacityStrategy) Name() string { return "quantization_capacity" }

func (quantizationCapacityStrategy) Enabled(cfg Config) bool {
	return cfg.IsEnabled("quantization_capacity")
}

func (quantizationCapacityStrategy) Apply(cfg Config, listing model.EnrichedListing) ([]model.HeuristicOutput, []model.Warning) {
	qc := cfg.Reg.Quantization()

	names := make([]string, 0, len(qc.ModelSizes))
	for name := range qc.ModelSizes {
		names = append(names, name)
	}
	sort.Strings(names)

	// v (vram_gb) absent: every model size gets capacity 0, plus a
	// warning, per spec.md sec 4.5's required-strategy clause.
	if !listing.HasSpec || listing.VRAMGB <= 0 {
		outputs := make([]model.HeuristicOutput, 0, len(names))
		for _, name := range names {
			outputs = append(outputs, model.HeuristicOutput{
				Name: quantizationCapacityPrefix + name,
				Kind: model.HeuristicInt,
				I:    0,
			})
		}
		return outputs, []model.Warning{{
			Severity: model.SeverityWarn,
			Code:     "quantization_vram_absent",
			Detail:   "listing has no matched VRAM capacity; quantization_capacity defaulted to 0 for all model sizes",
		}}
	}

	usableGB := float64(listing.VRAMGB) - qc.OverheadGB

	outputs := make([]model.HeuristicOutput, 0, len(names))
	for _, name := range names {
		size := qc.ModelSizes[name]
		if size <= 0 {
			continue
		}
		capacity := int(math.Floor(usableGB / size))
		if capacity < 0 {
			capacity = 0
		}
		outputs = append(outputs, model.HeuristicOutput{
			Name: quantizationCapacityPrefix + name,
			Kind: model.HeuristicInt,
			I:    capacity,
		})
	}
	return outputs, nil
}
