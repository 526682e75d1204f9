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

import "github.com/lucienbrule/gpu-scoring-tool/internal/model"

func init() {
	RegisterStrategy(vramTierStrategy{})
}

// vramTierStrategy buckets a listing's VRAM into the coarse tiers the
// original tool's front-end filters used, supplementing the spec's
// distilled scope (see SPEC_FULL.md sec 4.5).
type vramTierStrategy struct{}

func (vramTierStrategy) Name() string { return "vram_tier" }

func (vramTierStrategy) Enabled(cfg Config) bool {
	return cfg.IsEnabled("vram_tier")
}

func (vramTierStrategy) Apply(cfg Config, listing model.EnrichedListing) ([]model.HeuristicOutput, []model.Warning) {
	if !listing.HasSpec {
		return nil, nil
	}

	var tier string
	switch {
	case listing.VRAMGB < 16:
		tier = "low"
	case listing.VRAMGB <= 48:
		tier = "mid"
	case listing.VRAMGB <= 80:
		tier = "high"
	default:
		tier = "flagship"
	}

	return []model.HeuristicOutput{{
		Name: "vram_tier",
		Kind: model.HeuristicEnum,
		S:    tier,
	}}, nil
}
