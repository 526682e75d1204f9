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

package api

import (
	"net/http"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
)

// gpuSpecView is the JSON projection of a registry GPUSpec; model.GPUSpec
// itself carries no JSON tags since it is an internal pipeline type, not
// a wire type (spec.md sec 9 keeps pipeline value types transport-agnostic).
type gpuSpecView struct {
	CanonicalModel string  `json:"canonical_model"`
	VRAMGB         int     `json:"vram_gb"`
	TDPWatts       int     `json:"tdp_watts"`
	SlotWidth      int     `json:"slot_width"`
	MIGSupport     int     `json:"mig_support"`
	NVLink         bool    `json:"nvlink"`
	Generation     string  `json:"generation"`
	CUDACores      int     `json:"cuda_cores,omitempty"`
	PCIeGeneration int     `json:"pcie_generation"`
	FormFactor     string  `json:"form_factor"`
	MSRPUSD        float64 `json:"msrp_usd,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

// GetModels handles GET /api/models (spec.md sec 6).
func (p *Provider) GetModels(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/models")

	canonicals := p.Registry.Canonicals()
	out := make([]gpuSpecView, 0, len(canonicals))
	for _, c := range canonicals {
		spec, ok := p.Registry.Spec(c)
		if !ok {
			continue
		}
		out = append(out, gpuSpecView{
			CanonicalModel: string(spec.CanonicalName),
			VRAMGB:         spec.VRAMGB,
			TDPWatts:       spec.TDPWatts,
			SlotWidth:      spec.SlotWidth,
			MIGSupport:     spec.MIGSupport,
			NVLink:         spec.NVLink,
			Generation:     string(spec.Generation),
			CUDACores:      spec.CUDACores,
			PCIeGeneration: spec.PCIeGeneration,
			FormFactor:     string(spec.FormFactor),
			MSRPUSD:        spec.MSRPUSD,
			Notes:          spec.Notes,
		})
	}
	respondwith.JSON(w, http.StatusOK, out)
}
