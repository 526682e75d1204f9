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

// Package enrich joins a NormalizedListing against the GPU
// specification registry, attaching the matched canonical model's
// physical/technical attributes. This is a pure projection: it never
// mutates its input and never consults anything beyond the registry
// and the listing itself (spec.md sec 4.4).
package enrich

import (
	"context"
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

// Enricher attaches registry-sourced GPUSpec attributes to normalized
// listings.
type Enricher struct {
	reg registry.Registry
}

// New builds an Enricher bound to reg.
func New(reg registry.Registry) *Enricher {
	return &Enricher{reg: reg}
}

// Run is a pipeline.Stage that enriches a batch of NormalizedListings.
func (e *Enricher) Run(ctx context.Context, in []model.NormalizedListing) ([]model.EnrichedListing, error) {
	out := make([]model.EnrichedListing, len(in))
	for i, nl := range in {
		out[i] = e.enrichOne(nl)
	}
	return out, nil
}

func (e *Enricher) enrichOne(nl model.NormalizedListing) model.EnrichedListing {
	en := model.EnrichedListing{NormalizedListing: nl}

	spec, ok := e.reg.Spec(nl.CanonicalModel)
	if !ok {
		if nl.CanonicalModel != model.UnknownCanonical {
			en.AddWarning("spec_missing", fmt.Sprintf("canonical model %q resolved by the normalizer has no registry spec", nl.CanonicalModel))
		}
		return en
	}

	// Deep-copy the matched spec so no EnrichedListing can hold a pointer
	// into Registry-owned state; every field below is copied out of the
	// value returned by deepcopy.Copy, never out of spec directly.
	specCopy := deepcopy.Copy(spec).(model.GPUSpec)

	en.HasSpec = true
	en.VRAMGB = specCopy.VRAMGB
	en.TDPWatts = specCopy.TDPWatts
	en.SlotWidth = specCopy.SlotWidth
	en.MIGSupport = specCopy.MIGSupport
	en.NVLink = specCopy.NVLink
	en.Generation = string(specCopy.Generation)
	en.PCIeGeneration = specCopy.PCIeGeneration
	en.FormFactor = string(specCopy.FormFactor)

	if specCopy.HasCUDACoresSet() {
		en.CUDACores = specCopy.CUDACores
		en.HasCUDACores = true
	}
	if specCopy.HasMSRPSet() {
		en.MSRPUSD = specCopy.MSRPUSD
		en.HasMSRP = true
	}

	return en
}
