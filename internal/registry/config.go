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

// Package registry loads and validates the declarative configuration
// that the rest of the pipeline treats as read-only: canonical GPU
// specifications, the alias map, structured-text match patterns,
// scoring weight presets, and quantization constants. Instantiation
// follows internal/core/config.go in the teacher repo: read YAML,
// validate strictly, then inflate into an immutable Registry value
// that is constructed once and passed explicitly into every stage
// (spec.md sec 9, "scoped global registries").
package registry

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/sapcc/go-bits/logg"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// specsFile is the YAML shape of resources/specs.yaml: a sequence of
// GPUSpec records.
type specsFile struct {
	Specs []gpuSpecYAML `yaml:"specs"`
}

type gpuSpecYAML struct {
	CanonicalName  string  `yaml:"canonical_name"`
	VRAMGB         int     `yaml:"vram_gb"`
	TDPWatts       int     `yaml:"tdp_watts"`
	SlotWidth      int     `yaml:"slot_width"`
	MIGSupport     int     `yaml:"mig_support"`
	NVLink         bool    `yaml:"nvlink"`
	Generation     string  `yaml:"generation"`
	CUDACores      int     `yaml:"cuda_cores"`
	PCIeGeneration int     `yaml:"pcie_generation"`
	FormFactor     string  `yaml:"form_factor"`
	MSRPUSD        float64 `yaml:"msrp_usd"`
	Notes          string  `yaml:"notes"`
}

// aliasesFile is the YAML shape of resources/aliases.yaml: a mapping of
// lowercased surface string to canonical model.
type aliasesFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// patternsFile is the YAML shape of resources/patterns.yaml: an ordered
// sequence of match patterns.
type patternsFile struct {
	Patterns []patternYAML `yaml:"patterns"`
}

type patternYAML struct {
	Name       string  `yaml:"name"`
	Pattern    string  `yaml:"pattern"`
	Canonical  string  `yaml:"canonical"`
	Priority   int     `yaml:"priority"`
	Confidence float64 `yaml:"confidence"`
}

// weightsFile is the YAML shape of resources/weights.yaml: a mapping of
// preset name to a mapping of metric name to weight.
type weightsFile struct {
	Presets map[string]map[string]float64 `yaml:"presets"`
}

// matchingFile is the YAML shape of resources/matching.yaml: tunables
// for the Normalizer that spec.md sec 9 explicitly says must remain
// configuration, not a compile-time constant.
type matchingFile struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// quantizationFile is the YAML shape of resources/quantization.yaml.
type quantizationFile struct {
	OverheadGB float64            `yaml:"overhead_gb"`
	ModelSizes map[string]float64 `yaml:"model_sizes"`
}

// Files bundles the six file paths that make up one registry's
// declarative configuration. All are YAML documents (spec.md sec 6).
// MatchingPath may be empty, in which case DefaultFuzzyThreshold applies.
type Files struct {
	SpecsPath        string
	AliasesPath      string
	PatternsPath     string
	WeightsPath      string
	QuantizationPath string
	MatchingPath     string
}

// DefaultFuzzyThreshold is used when matching.yaml omits fuzzy_threshold.
const DefaultFuzzyThreshold = 0.70

// Load reads, parses, and validates the registry files (matching.yaml
// only when MatchingPath is set) and
// inflates them into an immutable Registry. Any schema violation,
// duplicate canonical name, dangling canonical reference, or pattern
// compile failure is fatal: Load returns a non-nil ConfigError and a
// zero Registry. There is no partial registry (spec.md sec 4.1).
func Load(files Files) (Registry, error) {
	var errs ErrorSet

	var sf specsFile
	if err := readYAMLStrict(files.SpecsPath, &sf); err != nil {
		return Registry{}, NewConfigError("read specs: %s", err.Error())
	}
	var af aliasesFile
	if err := readYAMLStrict(files.AliasesPath, &af); err != nil {
		return Registry{}, NewConfigError("read aliases: %s", err.Error())
	}
	var pf patternsFile
	if err := readYAMLStrict(files.PatternsPath, &pf); err != nil {
		return Registry{}, NewConfigError("read patterns: %s", err.Error())
	}
	var wf weightsFile
	if err := readYAMLStrict(files.WeightsPath, &wf); err != nil {
		return Registry{}, NewConfigError("read weights: %s", err.Error())
	}
	var qf quantizationFile
	if err := readYAMLStrict(files.QuantizationPath, &qf); err != nil {
		return Registry{}, NewConfigError("read quantization: %s", err.Error())
	}
	fuzzyThreshold := DefaultFuzzyThreshold
	if files.MatchingPath != "" {
		var mf matchingFile
		if err := readYAMLStrict(files.MatchingPath, &mf); err != nil {
			return Registry{}, NewConfigError("read matching: %s", err.Error())
		}
		if mf.FuzzyThreshold > 0 {
			fuzzyThreshold = mf.FuzzyThreshold
		}
	}

	specs := make(map[model.CanonicalModel]model.GPUSpec, len(sf.Specs))
	for idx, s := range sf.Specs {
		canon := model.CanonicalModel(s.CanonicalName)
		if canon == "" {
			errs.Addf("specs[%d]: canonical_name is required", idx)
			continue
		}
		if _, exists := specs[canon]; exists {
			errs.Addf("specs[%d]: duplicate canonical_name %q", idx, canon)
			continue
		}
		if s.VRAMGB <= 0 {
			errs.Addf("specs[%d] (%s): vram_gb must be positive", idx, canon)
		}
		if s.TDPWatts <= 0 {
			errs.Addf("specs[%d] (%s): tdp_watts must be positive", idx, canon)
		}
		if s.SlotWidth < 1 || s.SlotWidth > 4 {
			errs.Addf("specs[%d] (%s): slot_width must be in 1..4", idx, canon)
		}
		if s.MIGSupport < 0 || s.MIGSupport > 7 {
			errs.Addf("specs[%d] (%s): mig_support must be in 0..7", idx, canon)
		}
		if s.PCIeGeneration < 3 || s.PCIeGeneration > 5 {
			errs.Addf("specs[%d] (%s): pcie_generation must be in 3..5", idx, canon)
		}
		specs[canon] = model.GPUSpec{
			CanonicalName:  canon,
			VRAMGB:         s.VRAMGB,
			TDPWatts:       s.TDPWatts,
			SlotWidth:      s.SlotWidth,
			MIGSupport:     s.MIGSupport,
			NVLink:         s.NVLink,
			Generation:     model.Generation(s.Generation),
			CUDACores:      s.CUDACores,
			PCIeGeneration: s.PCIeGeneration,
			FormFactor:     model.FormFactor(s.FormFactor),
			MSRPUSD:        s.MSRPUSD,
			Notes:          s.Notes,
		}
	}

	aliases := make(map[string]model.CanonicalModel, len(af.Aliases))
	for surface, canonStr := range af.Aliases {
		canon := model.CanonicalModel(canonStr)
		key := normalizeAliasKey(surface)
		if _, exists := specs[canon]; !exists {
			errs.Addf("aliases[%q]: references unknown canonical %q", surface, canon)
		}
		aliases[key] = canon
	}

	patterns := make([]model.MatchPattern, 0, len(pf.Patterns))
	for idx, p := range pf.Patterns {
		canon := model.CanonicalModel(p.Canonical)
		if _, exists := specs[canon]; !exists {
			errs.Addf("patterns[%d] (%s): references unknown canonical %q", idx, p.Name, canon)
		}
		if _, err := compilePattern(p.Pattern); err != nil {
			errs.Addf("patterns[%d] (%s): cannot compile pattern %q: %s", idx, p.Name, p.Pattern, err.Error())
			continue
		}
		confidence := p.Confidence
		if confidence <= 0 {
			confidence = 1.0
		}
		patterns = append(patterns, model.NewMatchPattern(p.Name, p.Pattern, canon, p.Priority, confidence, idx))
	}

	weights := make(map[string]model.WeightVector, len(wf.Presets))
	for preset, vec := range wf.Presets {
		sum := 0.0
		wv := make(model.WeightVector, len(vec))
		for metric, w := range vec {
			if !isKnownMetric(metric) {
				errs.Addf("weights[%s]: unknown metric %q", preset, metric)
			}
			wv[metric] = w
			sum += w
		}
		if sum < 1.0-1e-6 || sum > 1.0+1e-6 {
			errs.Addf("weights[%s]: weights sum to %.6f, must sum to 1.0 +- 1e-6", preset, sum)
		}
		weights[preset] = wv
	}
	if len(weights) == 0 {
		errs.Addf("weights: at least one preset is required")
	}

	if qf.OverheadGB < 0 {
		errs.Addf("quantization: overhead_gb may not be negative")
	}
	modelSizes := make(map[string]float64, len(qf.ModelSizes))
	for name, size := range qf.ModelSizes {
		if size <= 0 {
			errs.Addf("quantization: model_sizes[%s] must be positive", name)
		}
		modelSizes[name] = size
	}

	if fuzzyThreshold <= 0 || fuzzyThreshold > 1 {
		errs.Addf("matching: fuzzy_threshold must be in (0, 1]")
	}

	if !errs.IsEmpty() {
		return Registry{}, NewConfigError("%s", errs.Error())
	}

	return Registry{
		specs:          specs,
		aliases:        aliases,
		patterns:       patterns,
		weights:        weights,
		quantization:   model.QuantizationConstants{OverheadGB: qf.OverheadGB, ModelSizes: modelSizes},
		fuzzyThreshold: fuzzyThreshold,
	}, nil
}

// MustLoad is Load, but a failure is fatal (via logg.Fatal), mirroring
// internal/core/config.go's NewConfiguration. This is meant for use in
// cmd/ entrypoints.
func MustLoad(files Files) Registry {
	reg, err := Load(files)
	if err != nil {
		logg.Fatal("%s", err.Error())
	}
	return reg
}

func readYAMLStrict(path string, out any) error {
	if path == "" {
		return fmt.Errorf("no file path configured")
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(buf, out)
}

func isKnownMetric(name string) bool {
	switch name {
	case "price_efficiency", "vram_capacity", "mig_capability", "power_efficiency", "form_factor", "connectivity":
		return true
	default:
		return false
	}
}
