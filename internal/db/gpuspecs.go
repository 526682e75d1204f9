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

package db

import (
	"fmt"

	gorp "github.com/go-gorp/gorp/v3"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// GPUSpecRow contains a record from the `gpu_specs` table: an optional
// read-through cache of the registry's GPUSpec set, refreshed at
// process startup (spec.md sec 6, "gpu_specs (optional cache)").
type GPUSpecRow struct {
	CanonicalModel string   `db:"canonical_model"`
	VRAMGB         int      `db:"vram_gb"`
	TDPWatts       int      `db:"tdp_watts"`
	SlotWidth      int      `db:"slot_width"`
	MIGSupport     int      `db:"mig_support"`
	NVLink         bool     `db:"nvlink"`
	Generation     string   `db:"generation"`
	CUDACores      *int     `db:"cuda_cores"`
	PCIeGeneration int      `db:"pcie_generation"`
	FormFactor     string   `db:"form_factor"`
	MSRPUSD        *float64 `db:"msrp_usd"`
}

func specRowFromGPUSpec(canon model.CanonicalModel, s model.GPUSpec) GPUSpecRow {
	row := GPUSpecRow{
		CanonicalModel: string(canon),
		VRAMGB:         s.VRAMGB,
		TDPWatts:       s.TDPWatts,
		SlotWidth:      s.SlotWidth,
		MIGSupport:     s.MIGSupport,
		NVLink:         s.NVLink,
		Generation:     string(s.Generation),
		PCIeGeneration: s.PCIeGeneration,
		FormFactor:     string(s.FormFactor),
	}
	if s.HasCUDACoresSet() {
		cores := s.CUDACores
		row.CUDACores = &cores
	}
	if s.HasMSRPSet() {
		msrp := s.MSRPUSD
		row.MSRPUSD = &msrp
	}
	return row
}

// RegistrySource is the subset of registry.Registry RefreshGPUSpecsCache needs.
type RegistrySource interface {
	Canonicals() []model.CanonicalModel
	Spec(model.CanonicalModel) (model.GPUSpec, bool)
}

// RefreshGPUSpecsCache reconciles the gpu_specs cache table against
// reg's current canonical set, using the teacher's generic SetUpdate
// reconciler: rows for canonicals no longer in the registry are
// deleted, rows for new canonicals are inserted, and rows whose fields
// changed are updated. It runs in its own transaction.
func RefreshGPUSpecsCache(dbMap *gorp.DbMap, reg RegistrySource) error {
	tx, err := dbMap.Begin()
	if err != nil {
		return apperr.Store(err)
	}

	keyFunc := func(r GPUSpecRow) string { return r.CanonicalModel }
	existing, err := BuildIndexOfDBResult[GPUSpecRow, string](tx, keyFunc, "SELECT * FROM gpu_specs")
	if err != nil {
		_ = tx.Rollback()
		return apperr.Store(err)
	}

	wanted := reg.Canonicals()

	update := SetUpdate[GPUSpecRow, string]{
		ExistingIndex: existing,
		KeyForRecord:  keyFunc,
		WantedKeys:    make([]string, len(wanted)),
		Create: func(k string) (GPUSpecRow, error) {
			return GPUSpecRow{CanonicalModel: k}, nil
		},
		Update: func(r *GPUSpecRow) error {
			spec, ok := reg.Spec(model.CanonicalModel(r.CanonicalModel))
			if !ok {
				return fmt.Errorf("registry no longer has a spec for %q", r.CanonicalModel)
			}
			*r = specRowFromGPUSpec(model.CanonicalModel(r.CanonicalModel), spec)
			return nil
		},
	}
	for i, canon := range wanted {
		update.WantedKeys[i] = string(canon)
	}

	if _, err := update.Execute(tx); err != nil {
		_ = tx.Rollback()
		return apperr.Store(err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Store(err)
	}
	return nil
}
