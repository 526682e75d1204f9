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
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-gorp/gorp/v3"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/easypg"

	"github.com/lucienbrule/gpu-scoring-tool/internal/db"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

func testRegistry(t *testing.T) registry.Registry {
	t.Helper()
	reg, err := registry.Load(registry.Files{
		SpecsPath:        "../registry/resources/specs.yaml",
		AliasesPath:      "../registry/resources/aliases.yaml",
		PatternsPath:     "../registry/resources/patterns.yaml",
		WeightsPath:      "../registry/resources/weights.yaml",
		QuantizationPath: "../registry/resources/quantization.yaml",
		MatchingPath:     "../registry/resources/matching.yaml",
	})
	if err != nil {
		t.Fatalf("registry.Load: %s", err)
	}
	return reg
}

func testDB(t *testing.T) *gorp.DbMap {
	t.Helper()
	opts := []easypg.TestSetupOption{
		easypg.ClearTables("listing_deltas", "listing_snapshots", "scored_listings", "imports", "gpu_specs"),
	}
	return db.InitORM(easypg.ConnectForTest(t, db.Configuration(), opts...))
}

func testProvider(t *testing.T) (*Provider, *mux.Router) {
	t.Helper()
	p := NewProvider(testDB(t), testRegistry(t), nil, "")
	r := mux.NewRouter()
	p.AddTo(r)
	return p, r
}

func TestGetHealth(t *testing.T) {
	_, r := testProvider(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestGetModelsListsRegistrySpecs(t *testing.T) {
	_, r := testProvider(t)
	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var specs []gpuSpecView
	if err := json.Unmarshal(rec.Body.Bytes(), &specs); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if len(specs) == 0 {
		t.Fatal("expected at least one GPU spec")
	}
}

func TestGetSchemaVersions(t *testing.T) {
	_, r := testProvider(t)
	req := httptest.NewRequest(http.MethodGet, "/api/schema/versions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body struct {
		Default   string   `json:"default"`
		Supported []string `json:"supported"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if body.Default != db.CurrentSchemaVersion {
		t.Errorf("default = %q, want %q", body.Default, db.CurrentSchemaVersion)
	}
}

func TestGetListingsRejectsMalformedFilter(t *testing.T) {
	_, r := testProvider(t)
	req := httptest.NewRequest(http.MethodGet, "/api/listings?min_price=not-a-number", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPostImportCSVRunsFullPipeline(t *testing.T) {
	_, r := testProvider(t)

	csvBody := "title,price,quantity,seller,source_url,source_type,condition,bulk_notes,geographic_region,listing_age,model\n" +
		"RTX A6000 48GB,4500,1,acme,http://example.com/1,marketplace,used,,us-east,1d,RTX A6000\n"

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("csv", "batch.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %s", err)
	}
	if _, err := part.Write([]byte(csvBody)); err != nil {
		t.Fatalf("write csv body: %s", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/imports/csv", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		ImportID    string `json:"import_id"`
		RecordCount int    `json:"record_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if result.RecordCount != 1 {
		t.Errorf("record_count = %d, want 1", result.RecordCount)
	}
	if result.ImportID == "" {
		t.Error("expected a generated import_id")
	}
}

func TestPostUploadArtifactValidatesWithoutPersisting(t *testing.T) {
	p, r := testProvider(t)

	csvBody := "title,price,quantity,seller,source_url,source_type,condition,bulk_notes,geographic_region,listing_age,model," +
		"canonical_model,match_type,match_score,match_notes,vram_gb,tdp_watts,slot_width,mig_support,nvlink," +
		"generation,cuda_cores,pcie_generation,form_factor,quantization_capacity,warnings,score,import_id,import_index,seen_at\n"
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("artifact", "batch.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %s", err)
	}
	part.Write([]byte(csvBody))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/upload-artifact", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result uploadArtifactResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if !result.Valid {
		t.Errorf("expected valid artifact, got errors: %v", result.Errors)
	}

	var count int64
	if err := p.DB.SelectOne(&count, "SELECT COUNT(*) FROM scored_listings"); err != nil {
		t.Fatalf("count query: %s", err)
	}
	if count != 0 {
		t.Errorf("upload-artifact must not persist rows, found %d", count)
	}
}
