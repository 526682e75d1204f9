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

// Package score computes a composite 0..100 score per listing from a
// weighted combination of per-metric 0..1 normalized values (spec.md
// sec 4.6). Per-metric normalization is min-max over the current
// batch, so the Scorer necessarily operates on a whole batch at once
// rather than row-by-row, unlike the earlier pipeline stages.
//
// Like internal/util/algorithms.go's DistributeFairly, this is plain
// float64 arithmetic: no statistics/decimal library earns its keep for
// six linear metrics and a weighted sum.
package score

import (
	"context"
	"fmt"
	"math"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

// UnknownPresetError reports a request for a weight preset the
// registry does not define.
type UnknownPresetError struct {
	Preset string
}

func (e UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown score preset %q", e.Preset)
}

// BalancedPreset is the default preset name when a caller does not
// specify one (spec.md sec 4.6).
const BalancedPreset = "balanced"

// Scorer computes ScoredListings for a batch of EnrichedListings under
// one named weight preset.
type Scorer struct {
	reg    registry.Registry
	preset string
}

// New builds a Scorer bound to reg and preset. An empty preset
// defaults to BalancedPreset. New does not validate the preset exists;
// Run does, and returns UnknownPresetError for an unknown preset.
func New(reg registry.Registry, preset string) *Scorer {
	if preset == "" {
		preset = BalancedPreset
	}
	return &Scorer{reg: reg, preset: preset}
}

// Run is a pipeline.Stage that scores a whole batch under this
// Scorer's preset.
func (s *Scorer) Run(ctx context.Context, in []model.EnrichedListing) ([]model.ScoredListing, error) {
	weights, ok := s.reg.Weights(s.preset)
	if !ok {
		return nil, UnknownPresetError{Preset: s.preset}
	}

	metrics := computeMetricTable(in)

	out := make([]model.ScoredListing, len(in))
	for i, listing := range in {
		components := make(map[string]float64, len(weights))
		var composite float64
		for metricName, weight := range weights {
			value, partial := metrics[metricName][i], metrics[metricName+partialSuffix][i] != 0
			components[metricName] = value
			composite += weight * value
			if partial {
				listing.AddWarning("score_partial:"+metricName, fmt.Sprintf("metric %q could not be computed for this listing", metricName))
			}
		}
		out[i] = model.ScoredListing{
			EnrichedListing: listing,
			Score:           clamp(100*composite, 0, 100),
			ScoreComponents: components,
		}
	}
	return out, nil
}

// partialSuffix marks the companion "was this metric partial" series
// in the metrics table keyed alongside each metric's own value series.
const partialSuffix = "__partial"

// computeMetricTable computes, for every metric, a per-row value
// series normalized over the whole batch, plus a parallel partial-flag
// series (metric name + partialSuffix) marking rows where the metric
// could not be computed from that row's spec fields.
func computeMetricTable(in []model.EnrichedListing) map[string][]float64 {
	n := len(in)
	table := make(map[string][]float64, 12)
	for _, name := range []string{"price_efficiency", "vram_capacity", "mig_capability", "power_efficiency", "form_factor", "connectivity"} {
		table[name] = make([]float64, n)
		table[name+partialSuffix] = make([]float64, n)
	}

	pricePerVRAM := make([]float64, n)
	vram := make([]float64, n)
	powerRatio := make([]float64, n)
	for i, l := range in {
		if l.HasSpec && l.VRAMGB > 0 {
			pricePerVRAM[i] = l.Price / float64(l.VRAMGB)
			vram[i] = float64(l.VRAMGB)
		} else {
			table["price_efficiency"+partialSuffix][i] = 1
			table["vram_capacity"+partialSuffix][i] = 1
		}
		if l.HasSpec {
			if l.HasCUDACores && l.CUDACores > 0 {
				powerRatio[i] = float64(l.TDPWatts) / float64(l.CUDACores)
			} else if l.VRAMGB > 0 {
				powerRatio[i] = float64(l.TDPWatts) / float64(l.VRAMGB)
			} else {
				table["power_efficiency"+partialSuffix][i] = 1
			}
		} else {
			table["power_efficiency"+partialSuffix][i] = 1
		}
	}

	normPricePerVRAM := minMaxNormalize(pricePerVRAM)
	normVRAM := minMaxNormalize(vram)
	normPowerRatio := minMaxNormalize(powerRatio)

	for i, l := range in {
		if table["price_efficiency"+partialSuffix][i] == 0 {
			table["price_efficiency"][i] = 1 - normPricePerVRAM[i]
			table["vram_capacity"][i] = normVRAM[i]
		}

		if l.HasSpec {
			table["mig_capability"][i] = float64(l.MIGSupport) / 7
		} else {
			table["mig_capability"+partialSuffix][i] = 1
		}

		if table["power_efficiency"+partialSuffix][i] == 0 {
			table["power_efficiency"][i] = 1 - normPowerRatio[i]
		}

		if l.HasSpec && l.SlotWidth > 0 {
			table["form_factor"][i] = clamp(1-float64(l.SlotWidth-1)/2, 0, 1)
		} else {
			table["form_factor"+partialSuffix][i] = 1
		}

		if l.HasSpec {
			nvlinkTerm := 0.0
			if l.NVLink {
				nvlinkTerm = 0.5
			}
			pcieTerm := clamp(float64(l.PCIeGeneration-3)/2, 0, 1)
			table["connectivity"][i] = clamp(nvlinkTerm+0.5*pcieTerm, 0, 1)
		} else {
			table["connectivity"+partialSuffix][i] = 1
		}
	}

	return table
}

// minMaxNormalize maps a series to 0..1 by (x - min) / (max - min). A
// degenerate series (all equal, or empty) normalizes to all-zero
// rather than dividing by zero.
func minMaxNormalize(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	min, max := xs[0], xs[0]
	for _, x := range xs {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	if max == min {
		return out
	}
	for i, x := range xs {
		out[i] = (x - min) / (max - min)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
