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
	"testing"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// fakeRegistry is a minimal RegistrySource stand-in so this test does
// not need a full YAML-loaded registry.Registry.
type fakeRegistry struct {
	specs map[model.CanonicalModel]model.GPUSpec
}

func (f fakeRegistry) Canonicals() []model.CanonicalModel {
	out := make([]model.CanonicalModel, 0, len(f.specs))
	for c := range f.specs {
		out = append(out, c)
	}
	return out
}

func (f fakeRegistry) Spec(c model.CanonicalModel) (model.GPUSpec, bool) {
	s, ok := f.specs[c]
	return s, ok
}

func TestRefreshGPUSpecsCacheCreatesRows(t *testing.T) {
	dbMap := newTestDB(t)
	reg := fakeRegistry{specs: map[model.CanonicalModel]model.GPUSpec{
		"RTX_A6000": {CanonicalName: "RTX_A6000", VRAMGB: 48, TDPWatts: 300},
	}}

	if err := RefreshGPUSpecsCache(dbMap, reg); err != nil {
		t.Fatalf("RefreshGPUSpecsCache: %s", err)
	}

	var rows []GPUSpecRow
	if _, err := dbMap.Select(&rows, "SELECT * FROM gpu_specs"); err != nil {
		t.Fatalf("select gpu_specs: %s", err)
	}
	if len(rows) != 1 || rows[0].CanonicalModel != "RTX_A6000" || rows[0].VRAMGB != 48 {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestRefreshGPUSpecsCacheUpdatesChangedRows(t *testing.T) {
	dbMap := newTestDB(t)
	reg := fakeRegistry{specs: map[model.CanonicalModel]model.GPUSpec{
		"RTX_A6000": {CanonicalName: "RTX_A6000", VRAMGB: 48, TDPWatts: 300},
	}}
	if err := RefreshGPUSpecsCache(dbMap, reg); err != nil {
		t.Fatalf("first RefreshGPUSpecsCache: %s", err)
	}

	reg.specs["RTX_A6000"] = model.GPUSpec{CanonicalName: "RTX_A6000", VRAMGB: 48, TDPWatts: 320}
	if err := RefreshGPUSpecsCache(dbMap, reg); err != nil {
		t.Fatalf("second RefreshGPUSpecsCache: %s", err)
	}

	var row GPUSpecRow
	if err := dbMap.SelectOne(&row, "SELECT * FROM gpu_specs WHERE canonical_model = $1", "RTX_A6000"); err != nil {
		t.Fatalf("select: %s", err)
	}
	if row.TDPWatts != 320 {
		t.Errorf("TDPWatts = %d, want 320", row.TDPWatts)
	}
}

func TestRefreshGPUSpecsCacheDeletesStaleRows(t *testing.T) {
	dbMap := newTestDB(t)
	reg := fakeRegistry{specs: map[model.CanonicalModel]model.GPUSpec{
		"RTX_A6000": {CanonicalName: "RTX_A6000", VRAMGB: 48},
		"A100_80GB": {CanonicalName: "A100_80GB", VRAMGB: 80},
	}}
	if err := RefreshGPUSpecsCache(dbMap, reg); err != nil {
		t.Fatalf("first RefreshGPUSpecsCache: %s", err)
	}

	delete(reg.specs, "A100_80GB")
	if err := RefreshGPUSpecsCache(dbMap, reg); err != nil {
		t.Fatalf("second RefreshGPUSpecsCache: %s", err)
	}

	var count int64
	if err := dbMap.SelectOne(&count, "SELECT COUNT(*) FROM gpu_specs WHERE canonical_model = $1", "A100_80GB"); err != nil {
		t.Fatalf("count query: %s", err)
	}
	if count != 0 {
		t.Errorf("stale row still present after refresh")
	}
}
