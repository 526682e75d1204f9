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
	"time"

	"github.com/go-gorp/gorp/v3"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

func seedListings(t *testing.T, dbMap *gorp.DbMap, n int) {
	t.Helper()
	rows := make([]model.ScoredListing, n)
	for i := range rows {
		rows[i] = sampleRow("gpu", "http://x/"+string(rune('a'+i)), float64(100+i), float64(i))
	}
	if _, err := InsertBatch(dbMap, rows, "seed", "", time.Now().UTC()); err != nil {
		t.Fatalf("seed InsertBatch: %s", err)
	}
}

func TestQueryListingsPaginationIsIdempotent(t *testing.T) {
	dbMap := newTestDB(t)
	seedListings(t, dbMap, 10)

	full, err := QueryListings(dbMap, ListingFilter{}, Page{Limit: 10, Offset: 0})
	if err != nil {
		t.Fatalf("QueryListings (full): %s", err)
	}

	first, err := QueryListings(dbMap, ListingFilter{}, Page{Limit: 5, Offset: 0})
	if err != nil {
		t.Fatalf("QueryListings (page 1): %s", err)
	}
	second, err := QueryListings(dbMap, ListingFilter{}, Page{Limit: 5, Offset: 5})
	if err != nil {
		t.Fatalf("QueryListings (page 2): %s", err)
	}

	if len(full) != len(first)+len(second) {
		t.Fatalf("full has %d rows, pages have %d+%d", len(full), len(first), len(second))
	}
	for i := range full {
		var got ScoredListing
		if i < len(first) {
			got = first[i]
		} else {
			got = second[i-len(first)]
		}
		if got.ID != full[i].ID {
			t.Errorf("row %d: paginated ID %d != concatenated-query ID %d", i, got.ID, full[i].ID)
		}
	}
}

func TestQueryListingsOrdersByScoreDescending(t *testing.T) {
	dbMap := newTestDB(t)
	rows := []model.ScoredListing{
		sampleRow("low", "http://x/1", 100, 10),
		sampleRow("high", "http://x/2", 100, 90),
	}
	if _, err := InsertBatch(dbMap, rows, "order-test", "", time.Now().UTC()); err != nil {
		t.Fatalf("InsertBatch: %s", err)
	}

	out, err := QueryListings(dbMap, ListingFilter{}, Page{})
	if err != nil {
		t.Fatalf("QueryListings: %s", err)
	}
	if len(out) < 2 || out[0].Score < out[1].Score {
		t.Errorf("expected descending score order, got %+v", out)
	}
}

func TestReadSchemaVersionMatchesCurrent(t *testing.T) {
	dbMap := newTestDB(t)
	v, err := ReadSchemaVersion(dbMap)
	if err != nil {
		t.Fatalf("ReadSchemaVersion: %s", err)
	}
	if v != CurrentSchemaVersion {
		t.Errorf("version = %q, want %q", v, CurrentSchemaVersion)
	}
}
