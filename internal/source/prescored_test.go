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

package source

import (
	"context"
	"strings"
	"testing"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

const scoredHeader = "title,price,quantity,seller,source_url,source_type,condition,bulk_notes,geographic_region,listing_age,model," +
	"canonical_model,match_type,match_score,match_notes,vram_gb,tdp_watts,slot_width,mig_support,nvlink,generation,cuda_cores,pcie_generation,form_factor,quantization_capacity,warnings,score,import_id,import_index,seen_at"

func TestCSVScoredLoaderParsesRow(t *testing.T) {
	body := scoredHeader + "\n" +
		"NVIDIA RTX A6000,3200,1,acme,http://x/1,marketplace,Used,notes,USA,Current,RTX_A6000," +
		"RTX_A6000,exact,1.0,alias:match,48,300,2,0,true,Ampere,10752,4,Dual-slot,,,62.5,,,\n"

	l, ok := LookupPreScored("csv-scored")
	if !ok {
		t.Fatal("csv-scored loader not registered")
	}
	rows, err := l.LoadScored(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("LoadScored: %s", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.CanonicalModel != "RTX_A6000" || got.MatchType != model.MatchExact {
		t.Errorf("unexpected match fields: %+v", got)
	}
	if got.VRAMGB != 48 || !got.HasSpec {
		t.Errorf("unexpected enrichment fields: %+v", got)
	}
	if got.Score != 62.5 {
		t.Errorf("Score = %v, want 62.5", got.Score)
	}
}

func TestCSVScoredLoaderRejectsMissingColumns(t *testing.T) {
	l, _ := LookupPreScored("csv-scored")
	_, err := l.LoadScored(context.Background(), strings.NewReader("title,price\nfoo,10\n"))
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindSchemaError {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestJSONScoredLoaderParsesArray(t *testing.T) {
	body := `[{
		"title": "NVIDIA RTX A6000",
		"price": 3200,
		"quantity": 1,
		"seller": "acme",
		"source_url": "http://x/1",
		"source_type": "marketplace",
		"condition": "Used",
		"canonical_model": "RTX_A6000",
		"match_type": "exact",
		"match_score": 1.0,
		"vram_gb": 48,
		"nvlink": true,
		"cuda_cores": 10752,
		"score": 62.5
	}]`

	l, ok := LookupPreScored("json-scored")
	if !ok {
		t.Fatal("json-scored loader not registered")
	}
	rows, err := l.LoadScored(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("LoadScored: %s", err)
	}
	if len(rows) != 1 || rows[0].CanonicalModel != "RTX_A6000" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !rows[0].HasCUDACores || rows[0].CUDACores != 10752 {
		t.Errorf("unexpected cuda core fields: %+v", rows[0])
	}
}

func TestJSONScoredLoaderRejectsEmptyTitle(t *testing.T) {
	l, _ := LookupPreScored("json-scored")
	_, err := l.LoadScored(context.Background(), strings.NewReader(`[{"title": "", "price": 1}]`))
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindValidationError {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRegisteredNamesIncludesBuiltinLoaders(t *testing.T) {
	names := RegisteredNames()
	found := false
	for _, n := range names {
		if n == "csv" {
			found = true
		}
	}
	if !found {
		t.Errorf("RegisteredNames() = %v, want it to include csv", names)
	}

	preScored := RegisteredPreScoredNames()
	if len(preScored) != 2 {
		t.Errorf("RegisteredPreScoredNames() = %v, want 2 entries", preScored)
	}
}
