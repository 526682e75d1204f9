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
	"time"

	"github.com/go-gorp/gorp/v3"
)

// Import contains a record from the `imports` table: one row per
// insert_batch call (spec.md sec 4.7).
type Import struct {
	ID            string    `db:"id"`
	SourceLabel   string    `db:"source_label"`
	RecordCount   int       `db:"record_count"`
	SchemaVersion string    `db:"schema_version"`
	CreatedAt     time.Time `db:"created_at"`
}

// ScoredListing contains a record from the `scored_listings` table.
// JSON-valued columns (warnings, quantization_capacity, heuristics,
// score_components) are stored as serialized TEXT; gorp has no native
// JSONB mapping for the Postgres driver this repo uses, so
// (de)serialization happens at the call site in batch.go, the same
// place ClusterAZResource.SubcapacitiesJSON does it in the teacher.
type ScoredListing struct {
	ID          int64  `db:"id" json:"id"`
	ImportID    string `db:"import_id" json:"import_id"`
	ImportIndex int    `db:"import_index" json:"import_index"`

	Title            string  `db:"title" json:"title"`
	Price            float64 `db:"price" json:"price"`
	Quantity         int     `db:"quantity" json:"quantity"`
	Seller           string  `db:"seller" json:"seller"`
	SourceURL        string  `db:"source_url" json:"source_url"`
	SourceType       string  `db:"source_type" json:"source_type"`
	Condition        string  `db:"condition" json:"condition"`
	BulkNotes        string  `db:"bulk_notes" json:"bulk_notes,omitempty"`
	GeographicRegion string  `db:"geographic_region" json:"geographic_region,omitempty"`
	ListingAge       string  `db:"listing_age" json:"listing_age,omitempty"`

	CanonicalModel string  `db:"canonical_model" json:"canonical_model"`
	MatchType      string  `db:"match_type" json:"match_type"`
	MatchScore     float64 `db:"match_score" json:"match_score"`
	MatchNotes     string  `db:"match_notes" json:"match_notes,omitempty"`

	MLIsGPU *bool    `db:"ml_is_gpu" json:"ml_is_gpu,omitempty"`
	MLScore *float64 `db:"ml_score" json:"ml_score,omitempty"`

	HasSpec        bool   `db:"has_spec" json:"has_spec"`
	VRAMGB         int    `db:"vram_gb" json:"vram_gb,omitempty"`
	TDPWatts       int    `db:"tdp_watts" json:"tdp_watts,omitempty"`
	SlotWidth      int    `db:"slot_width" json:"slot_width,omitempty"`
	MIGSupport     int    `db:"mig_support" json:"mig_support,omitempty"`
	NVLink         bool   `db:"nvlink" json:"nvlink,omitempty"`
	Generation     string `db:"generation" json:"generation,omitempty"`
	CUDACores      int    `db:"cuda_cores" json:"cuda_cores,omitempty"`
	HasCUDACores   bool   `db:"has_cuda_cores" json:"has_cuda_cores,omitempty"`
	PCIeGeneration int    `db:"pcie_generation" json:"pcie_generation,omitempty"`
	FormFactor     string `db:"form_factor" json:"form_factor,omitempty"`

	QuantizationCapacityJSON string `db:"quantization_capacity" json:"-"`
	HeuristicsJSON           string `db:"heuristics" json:"-"`
	ScoreComponentsJSON      string `db:"score_components" json:"-"`
	WarningsJSON             string `db:"warnings" json:"-"`

	Score  float64   `db:"score" json:"score"`
	SeenAt time.Time `db:"seen_at" json:"seen_at"`
}

// ListingSnapshot contains a record from the `listing_snapshots` table:
// one row per (import, source_url) pair seen, used to compute
// ListingDeltas against the prior snapshot of the same source_url.
type ListingSnapshot struct {
	ID              int64     `db:"id"`
	ImportID        string    `db:"import_id"`
	ScoredListingID int64     `db:"scored_listing_id"`
	SourceURL       string    `db:"source_url"`
	CanonicalModel  string    `db:"canonical_model"`
	Price           float64   `db:"price"`
	Score           float64   `db:"score"`
	SeenAt          time.Time `db:"seen_at"`
}

// ListingDelta contains a record from the `listing_deltas` table.
type ListingDelta struct {
	ID                int64     `db:"id" json:"id"`
	SourceURL         string    `db:"source_url" json:"source_url"`
	CanonicalModel    string    `db:"canonical_model" json:"canonical_model"`
	PriorSnapshotID   int64     `db:"prior_snapshot_id" json:"prior_snapshot_id"`
	CurrentSnapshotID int64     `db:"current_snapshot_id" json:"current_snapshot_id"`
	PriceDelta        float64   `db:"price_delta" json:"price_delta"`
	PriceDeltaPct     float64   `db:"price_delta_pct" json:"price_delta_pct"`
	ScoreDelta        float64   `db:"score_delta" json:"score_delta"`
	Timestamp         time.Time `db:"timestamp" json:"timestamp"`
}

// SchemaInfo is the store's single-row schema-version record (spec.md
// sec 4.7 "Schema versioning").
type SchemaInfo struct {
	ID      int    `db:"id"`
	Version string `db:"version"`
}

// CurrentSchemaVersion is the schema version this build writes and
// prefers to read. SupportedSchemaVersions lists every version this
// build can still read (spec.md's "reads from older compatible
// versions MUST succeed").
const CurrentSchemaVersion = "1"

// SupportedSchemaVersions lists every schema version this build can
// read, CurrentSchemaVersion included.
var SupportedSchemaVersions = []string{"1"}

// initGorp wires the GPU-scoring schema's tables into dbMap, the same
// role internal/db's teacher-original initGorp() played for the
// OpenStack quota schema.
func initGorp(dbMap *gorp.DbMap) {
	dbMap.AddTableWithName(Import{}, "imports").SetKeys(false, "id")
	dbMap.AddTableWithName(ScoredListing{}, "scored_listings").SetKeys(true, "id")
	dbMap.AddTableWithName(ListingSnapshot{}, "listing_snapshots").SetKeys(true, "id")
	dbMap.AddTableWithName(ListingDelta{}, "listing_deltas").SetKeys(true, "id")
	dbMap.AddTableWithName(SchemaInfo{}, "schema_info").SetKeys(false, "id")
	dbMap.AddTableWithName(GPUSpecRow{}, "gpu_specs").SetKeys(false, "canonical_model")
}
