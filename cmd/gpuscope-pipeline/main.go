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

// gpuscope-pipeline runs the normalize->enrich->heuristics->score
// pipeline over a CSV file in-process, with no database and no HTTP
// server, per spec.md sec 6's CLI surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sapcc/go-bits/logg"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
	"github.com/lucienbrule/gpu-scoring-tool/internal/ingest"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
	"github.com/lucienbrule/gpu-scoring-tool/internal/score"
	"github.com/lucienbrule/gpu-scoring-tool/internal/source"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gpuscope-pipeline", flag.ContinueOnError)
	input := fs.String("input", "", "input CSV path (raw-ingest schema)")
	output := fs.String("output", "", "output CSV path (scored schema)")
	debug := fs.Bool("debug", false, "enable debug logging")
	useML := fs.Bool("use-ml", false, "enable the ML fallback classifier")
	quantizeCapacity := fs.Bool("quantize-capacity", false, "enable the quantization_capacity heuristic")
	preset := fs.String("preset", score.BalancedPreset, "scoring preset")
	registryDir := fs.String("registry-dir", "/etc/gpuscope/registry", "directory containing the registry YAML files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "gpuscope-pipeline: --input and --output are required")
		return 2
	}
	if *debug {
		logg.ShowDebug = true
	}

	reg, err := registry.Load(registry.Files{
		SpecsPath:        *registryDir + "/specs.yaml",
		AliasesPath:      *registryDir + "/aliases.yaml",
		PatternsPath:     *registryDir + "/patterns.yaml",
		WeightsPath:      *registryDir + "/weights.yaml",
		QuantizationPath: *registryDir + "/quantization.yaml",
		MatchingPath:     *registryDir + "/matching.yaml",
	})
	if err != nil {
		logg.Error("loading registry: %s", err)
		return exitCodeFor(err)
	}

	in, err := os.Open(*input)
	if err != nil {
		logg.Error("opening input: %s", err)
		return 4
	}
	defer in.Close()

	loader, ok := source.Lookup("csv")
	if !ok {
		logg.Error("csv loader not registered")
		return 5
	}

	raw, err := loader.Load(context.Background(), in)
	if err != nil {
		logg.Error("reading input: %s", err)
		return exitCodeFor(err)
	}

	enabled := []string{}
	if *quantizeCapacity {
		enabled = append(enabled, "quantization_capacity")
	}

	result, err := ingest.Run(context.Background(), reg, ingest.Options{
		UseML:             *useML,
		EnabledStrategies: enabled,
		Preset:            *preset,
	}, raw)
	if err != nil {
		logg.Error("running pipeline: %s", err)
		return exitCodeFor(err)
	}

	out, err := os.Create(*output)
	if err != nil {
		logg.Error("creating output: %s", err)
		return 4
	}
	defer out.Close()

	if err := source.WriteScoredCSV(out, result.Listings); err != nil {
		logg.Error("writing output: %s", err)
		return 4
	}

	logg.Info("scored %d listings (exact=%d regex=%d fuzzy=%d none=%d) -> %s",
		len(result.Listings), result.Tally.Exact.Load(), result.Tally.Regex.Load(),
		result.Tally.Fuzzy.Load(), result.Tally.None.Load(), *output)
	return 0
}

// exitCodeFor maps a pipeline error to spec.md sec 6's exit codes: 2
// configuration error, 3 input validation failure, 5 internal error.
func exitCodeFor(err error) int {
	if ae, ok := apperr.As(err); ok {
		return ae.Kind.ExitCode()
	}
	return 5
}
