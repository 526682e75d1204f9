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

// Package ingest composes the Normalizer, Enricher, Heuristic Engine,
// and Scorer into the single Normalize->Enrich->Heuristics->Score run
// spec.md sec 2 describes, the same composition
// internal/pipeline.Run4 is shaped for. This is the one place both the
// HTTP API and the CLI pipeline command call into.
package ingest

import (
	"context"

	"github.com/lucienbrule/gpu-scoring-tool/internal/enrich"
	"github.com/lucienbrule/gpu-scoring-tool/internal/heuristics"
	"github.com/lucienbrule/gpu-scoring-tool/internal/ml"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
	"github.com/lucienbrule/gpu-scoring-tool/internal/normalize"
	"github.com/lucienbrule/gpu-scoring-tool/internal/pipeline"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
	"github.com/lucienbrule/gpu-scoring-tool/internal/score"
)

// Options carries the per-run toggles named in spec.md sec 6's
// `pipeline` command (`--use-ml`, `--quantize-capacity`, `--preset`).
type Options struct {
	UseML             bool
	EnabledStrategies []string
	Preset            string
	Classifier        ml.Classifier
}

// Result bundles a run's scored output with the match-type tally the
// ingest summary reports.
type Result struct {
	Listings []model.ScoredListing
	Tally    *normalize.Tally
}

// Run executes Normalize->Enrich->Heuristics->Score over raw against
// reg, in that order, returning the scored batch and the normalizer's
// match-type tally.
func Run(ctx context.Context, reg registry.Registry, opts Options, raw []model.RawListing) (Result, error) {
	preset := opts.Preset
	if preset == "" {
		preset = score.BalancedPreset
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = ml.NullClassifier{}
	}

	tally := &normalize.Tally{}
	normalizer := normalize.New(reg, classifier, opts.UseML)
	enricher := enrich.New(reg)

	enabled := make(map[string]bool, len(opts.EnabledStrategies))
	for _, name := range opts.EnabledStrategies {
		enabled[name] = true
	}
	engine := heuristics.New(heuristics.Config{Enabled: enabled, Reg: reg})
	scorer := score.New(reg, preset)

	scored, err := pipeline.Run4(ctx,
		normalizer.Run(tally),
		enricher.Run,
		engine.Run,
		scorer.Run,
		raw,
	)
	if err != nil {
		return Result{}, err
	}
	return Result{Listings: scored, Tally: tally}, nil
}
