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

package normalize

import (
	"context"
	"testing"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

func testRegistry(t *testing.T) registry.Registry {
	t.Helper()
	reg, err := registry.Load(registry.Files{
		SpecsPath:        "testdata/specs.yaml",
		AliasesPath:      "testdata/aliases.yaml",
		PatternsPath:     "testdata/patterns.yaml",
		WeightsPath:      "testdata/weights.yaml",
		QuantizationPath: "testdata/quantization.yaml",
		MatchingPath:     "testdata/matching.yaml",
	})
	if err != nil {
		t.Fatalf("registry.Load: %s", err)
	}
	return reg
}

func TestNormalizeExactAlias(t *testing.T) {
	n := New(testRegistry(t), nil, false)
	got, err := n.normalizeOne(model.RawListing{Title: "NVIDIA RTX A6000 48GB", Price: 3200})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if got.CanonicalModel != "RTX_A6000" {
		t.Errorf("CanonicalModel = %s, want RTX_A6000", got.CanonicalModel)
	}
	if got.MatchType != model.MatchExact {
		t.Errorf("MatchType = %s, want exact", got.MatchType)
	}
	if got.MatchScore != 1.0 {
		t.Errorf("MatchScore = %v, want 1.0", got.MatchScore)
	}
}

func TestNormalizeRegexMatch(t *testing.T) {
	n := New(testRegistry(t), nil, false)
	got, err := n.normalizeOne(model.RawListing{Title: "RTX PRO 6000 workstation card"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if got.CanonicalModel != "RTX_6000_ADA" {
		t.Errorf("CanonicalModel = %s, want RTX_6000_ADA", got.CanonicalModel)
	}
	if got.MatchType != model.MatchRegex {
		t.Errorf("MatchType = %s, want regex", got.MatchType)
	}
}

func TestNormalizeNearMissTypoIsFuzzyOrNone(t *testing.T) {
	n := New(testRegistry(t), nil, false)
	// "rtx a6ooo" is a near-miss typo of the "rtx a6000" alias
	// (RTX_A6000). Its token-set ratio sits close to the fuzzy threshold,
	// so the test accepts a fuzzy match or none, and requires only that
	// a fuzzy result meets the threshold.
	got, err := n.normalizeOne(model.RawListing{Title: "rtx a6ooo"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if got.MatchType != model.MatchFuzzy && got.MatchType != model.MatchNone {
		t.Fatalf("unexpected MatchType %s", got.MatchType)
	}
	if got.MatchType == model.MatchFuzzy && got.MatchScore < n.reg.FuzzyThreshold() {
		t.Errorf("fuzzy MatchScore %v below threshold %v", got.MatchScore, n.reg.FuzzyThreshold())
	}
}

func TestNormalizeUnknownModel(t *testing.T) {
	n := New(testRegistry(t), nil, false)
	got, err := n.normalizeOne(model.RawListing{Title: "Intel Arc A770"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if got.CanonicalModel != model.UnknownCanonical {
		t.Errorf("CanonicalModel = %s, want UNKNOWN", got.CanonicalModel)
	}
	if got.MatchType != model.MatchNone {
		t.Errorf("MatchType = %s, want none", got.MatchType)
	}
	if got.MatchScore != 0.0 {
		t.Errorf("MatchScore = %v, want 0.0", got.MatchScore)
	}
	if len(got.Warnings) == 0 {
		t.Error("expected a warning for an unresolved title")
	}
}

func TestRunPreservesOrderUnderParallelism(t *testing.T) {
	n := New(testRegistry(t), nil, false)
	tally := &Tally{}
	stage := n.Run(tally)

	in := make([]model.RawListing, 200)
	for i := range in {
		if i%2 == 0 {
			in[i] = model.RawListing{Title: "tesla t4"}
		} else {
			in[i] = model.RawListing{Title: "Intel Arc A770"}
		}
	}

	out, err := stage(context.Background(), in)
	if err != nil {
		t.Fatalf("stage: %s", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d results, want %d", len(out), len(in))
	}
	for i, nl := range out {
		if i%2 == 0 && nl.CanonicalModel != "T4" {
			t.Errorf("index %d: CanonicalModel = %s, want T4", i, nl.CanonicalModel)
		}
		if i%2 == 1 && nl.CanonicalModel != model.UnknownCanonical {
			t.Errorf("index %d: CanonicalModel = %s, want UNKNOWN", i, nl.CanonicalModel)
		}
	}

	snap := tally.Snapshot()
	if snap["exact"] != 100 {
		t.Errorf("tally[exact] = %d, want 100", snap["exact"])
	}
	if snap["none"] != 100 {
		t.Errorf("tally[none] = %d, want 100", snap["none"])
	}
}

func TestMatchCacheReturnsConsistentResult(t *testing.T) {
	n := New(testRegistry(t), nil, false)
	first, err := n.normalizeOne(model.RawListing{Title: "tesla t4"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	second, err := n.normalizeOne(model.RawListing{Title: "tesla t4"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if first.CanonicalModel != second.CanonicalModel || first.MatchScore != second.MatchScore {
		t.Errorf("cached result diverged: first=%+v second=%+v", first, second)
	}
}

type fakeClassifier struct {
	isGPU bool
	score float64
}

func (f fakeClassifier) PredictIsGPU(_, _ string) (bool, float64, error) {
	return f.isGPU, f.score, nil
}

func TestMLSignalAnnotatesWithoutOverridingMatch(t *testing.T) {
	n := New(testRegistry(t), fakeClassifier{isGPU: false, score: 0.1}, true)
	got, err := n.normalizeOne(model.RawListing{Title: "NVIDIA RTX A6000 48GB"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if got.CanonicalModel != "RTX_A6000" || got.MatchType != model.MatchExact {
		t.Fatalf("ML signal overrode deterministic match: %+v", got)
	}
	if got.MLIsGPU == nil || *got.MLIsGPU != false {
		t.Errorf("expected MLIsGPU = false, got %v", got.MLIsGPU)
	}
	if got.MLScore == nil || *got.MLScore != 0.1 {
		t.Errorf("expected MLScore = 0.1, got %v", got.MLScore)
	}
}

func TestMLSignalDisabledByDefault(t *testing.T) {
	n := New(testRegistry(t), fakeClassifier{isGPU: false, score: 0.1}, false)
	got, err := n.normalizeOne(model.RawListing{Title: "NVIDIA RTX A6000 48GB"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if got.MLIsGPU != nil || got.MLScore != nil {
		t.Errorf("expected no ML annotation when useML=false, got %+v", got)
	}
}

func TestPretaggedModelShortCircuits(t *testing.T) {
	n := New(testRegistry(t), nil, false)
	got, err := n.normalizeOne(model.RawListing{Title: "some weird listing title", Model: "T4"})
	if err != nil {
		t.Fatalf("normalizeOne: %s", err)
	}
	if got.CanonicalModel != "T4" || got.MatchType != model.MatchExact {
		t.Errorf("pretagged model did not short-circuit: %+v", got)
	}
}
