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

package score

import (
	"context"
	"testing"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

func testRegistry(t *testing.T) registry.Registry {
	t.Helper()
	reg, err := registry.Load(registry.Files{
		SpecsPath:        "../normalize/testdata/specs.yaml",
		AliasesPath:      "../normalize/testdata/aliases.yaml",
		PatternsPath:     "../normalize/testdata/patterns.yaml",
		WeightsPath:      "../normalize/testdata/weights.yaml",
		QuantizationPath: "../normalize/testdata/quantization.yaml",
		MatchingPath:     "../normalize/testdata/matching.yaml",
	})
	if err != nil {
		t.Fatalf("registry.Load: %s", err)
	}
	return reg
}

func a6000Listing(price float64) model.EnrichedListing {
	return model.EnrichedListing{
		NormalizedListing: model.NormalizedListing{
			RawListing:     model.RawListing{Price: price},
			CanonicalModel: "RTX_A6000",
			MatchType:      model.MatchExact,
			MatchScore:     1.0,
		},
		HasSpec:        true,
		VRAMGB:         48,
		TDPWatts:       300,
		SlotWidth:      2,
		MIGSupport:     0,
		NVLink:         true,
		CUDACores:      10752,
		HasCUDACores:   true,
		PCIeGeneration: 4,
	}
}

func TestScoreWithinBoundsForExactMatch(t *testing.T) {
	s := New(testRegistry(t), BalancedPreset)
	in := []model.EnrichedListing{a6000Listing(3200)}
	out, err := s.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	if out[0].Score < 0 || out[0].Score > 100 {
		t.Errorf("Score = %v, out of [0,100] bounds", out[0].Score)
	}
}

func TestScoreUnknownCanonicalIsZeroWithPartialWarnings(t *testing.T) {
	s := New(testRegistry(t), BalancedPreset)
	in := []model.EnrichedListing{{
		NormalizedListing: model.NormalizedListing{
			RawListing:     model.RawListing{Price: 100},
			CanonicalModel: model.UnknownCanonical,
			MatchType:      model.MatchNone,
		},
		HasSpec: false,
	}}
	out, err := s.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	if out[0].Score != 0 {
		t.Errorf("Score = %v, want 0 for an unmatched listing", out[0].Score)
	}
	found := false
	for _, w := range out[0].Warnings {
		if w.Code == "score_partial:vram_capacity" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected score_partial:vram_capacity warning, got %v", out[0].Warnings)
	}
}

func TestUnknownPresetReturnsError(t *testing.T) {
	s := New(testRegistry(t), "does_not_exist")
	_, err := s.Run(context.Background(), []model.EnrichedListing{a6000Listing(1000)})
	if err == nil {
		t.Fatal("expected UnknownPresetError")
	}
	if _, ok := err.(UnknownPresetError); !ok {
		t.Errorf("expected UnknownPresetError, got %T: %s", err, err)
	}
}

func TestScoreDeterministicAcrossRuns(t *testing.T) {
	s := New(testRegistry(t), BalancedPreset)
	in := []model.EnrichedListing{a6000Listing(3200), a6000Listing(4000)}

	out1, err := s.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	out2, err := s.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	for i := range out1 {
		if out1[i].Score != out2[i].Score {
			t.Errorf("row %d: score not deterministic: %v vs %v", i, out1[i].Score, out2[i].Score)
		}
	}
}

func TestCheaperListingScoresAtLeastAsHigh(t *testing.T) {
	s := New(testRegistry(t), BalancedPreset)
	in := []model.EnrichedListing{a6000Listing(2000), a6000Listing(5000)}
	out, err := s.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	if out[0].Score < out[1].Score {
		t.Errorf("cheaper listing scored lower: %v < %v", out[0].Score, out[1].Score)
	}
}

func TestWeightConservationAcrossAllPresets(t *testing.T) {
	reg := testRegistry(t)
	for _, preset := range reg.PresetNames() {
		w, ok := reg.Weights(preset)
		if !ok {
			t.Fatalf("preset %s reported by PresetNames but Weights lookup failed", preset)
		}
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		if sum < 1.0-1e-6 || sum > 1.0+1e-6 {
			t.Errorf("preset %s: weights sum to %v, want 1.0", preset, sum)
		}
	}
}
