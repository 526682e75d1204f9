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
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/lucienbrule/gpu-scoring-tool/internal/db"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// scoredListingView is the JSON projection of a db.ScoredListing. It
// exists because gorp stores warnings/quantization_capacity/heuristics/
// score_components as serialized TEXT (db.ScoredListing tags them
// json:"-"), the same way gpuSpecView projects a registry GPUSpec; see
// that type's doc comment.
type scoredListingView struct {
	ID          int64  `json:"id"`
	ImportID    string `json:"import_id"`
	ImportIndex int    `json:"import_index"`

	Title            string  `json:"title"`
	Price            float64 `json:"price"`
	Quantity         int     `json:"quantity"`
	Seller           string  `json:"seller"`
	SourceURL        string  `json:"source_url"`
	SourceType       string  `json:"source_type"`
	Condition        string  `json:"condition"`
	BulkNotes        string  `json:"bulk_notes,omitempty"`
	GeographicRegion string  `json:"geographic_region,omitempty"`
	ListingAge       string  `json:"listing_age,omitempty"`

	CanonicalModel string  `json:"canonical_model"`
	MatchType      string  `json:"match_type"`
	MatchScore     float64 `json:"match_score"`
	MatchNotes     string  `json:"match_notes,omitempty"`

	MLIsGPU *bool    `json:"ml_is_gpu,omitempty"`
	MLScore *float64 `json:"ml_score,omitempty"`

	HasSpec        bool   `json:"has_spec"`
	VRAMGB         int    `json:"vram_gb,omitempty"`
	TDPWatts       int    `json:"tdp_watts,omitempty"`
	SlotWidth      int    `json:"slot_width,omitempty"`
	MIGSupport     int    `json:"mig_support,omitempty"`
	NVLink         bool   `json:"nvlink,omitempty"`
	Generation     string `json:"generation,omitempty"`
	CUDACores      int    `json:"cuda_cores,omitempty"`
	HasCUDACores   bool   `json:"has_cuda_cores,omitempty"`
	PCIeGeneration int    `json:"pcie_generation,omitempty"`
	FormFactor     string `json:"form_factor,omitempty"`

	QuantizationCapacity map[string]int          `json:"quantization_capacity,omitempty"`
	Heuristics           []model.HeuristicOutput `json:"heuristics,omitempty"`
	ScoreComponents      map[string]float64      `json:"score_components,omitempty"`
	Warnings             []model.Warning         `json:"warnings,omitempty"`

	Score  float64   `json:"score"`
	SeenAt time.Time `json:"seen_at"`
}

// toScoredListingView unmarshals the four JSON-TEXT columns that
// db.ScoredListing tags json:"-" so GET /api/listings exposes them
// instead of silently dropping them.
func toScoredListingView(r db.ScoredListing) (scoredListingView, error) {
	v := scoredListingView{
		ID:               r.ID,
		ImportID:         r.ImportID,
		ImportIndex:      r.ImportIndex,
		Title:            r.Title,
		Price:            r.Price,
		Quantity:         r.Quantity,
		Seller:           r.Seller,
		SourceURL:        r.SourceURL,
		SourceType:       r.SourceType,
		Condition:        r.Condition,
		BulkNotes:        r.BulkNotes,
		GeographicRegion: r.GeographicRegion,
		ListingAge:       r.ListingAge,
		CanonicalModel:   r.CanonicalModel,
		MatchType:        r.MatchType,
		MatchScore:       r.MatchScore,
		MatchNotes:       r.MatchNotes,
		MLIsGPU:          r.MLIsGPU,
		MLScore:          r.MLScore,
		HasSpec:          r.HasSpec,
		VRAMGB:           r.VRAMGB,
		TDPWatts:         r.TDPWatts,
		SlotWidth:        r.SlotWidth,
		MIGSupport:       r.MIGSupport,
		NVLink:           r.NVLink,
		Generation:       r.Generation,
		CUDACores:        r.CUDACores,
		HasCUDACores:     r.HasCUDACores,
		PCIeGeneration:   r.PCIeGeneration,
		FormFactor:       r.FormFactor,
		Score:            r.Score,
		SeenAt:           r.SeenAt,
	}
	if r.QuantizationCapacityJSON != "" {
		if err := json.Unmarshal([]byte(r.QuantizationCapacityJSON), &v.QuantizationCapacity); err != nil {
			return scoredListingView{}, err
		}
	}
	if r.HeuristicsJSON != "" {
		if err := json.Unmarshal([]byte(r.HeuristicsJSON), &v.Heuristics); err != nil {
			return scoredListingView{}, err
		}
	}
	if r.ScoreComponentsJSON != "" {
		if err := json.Unmarshal([]byte(r.ScoreComponentsJSON), &v.ScoreComponents); err != nil {
			return scoredListingView{}, err
		}
	}
	if r.WarningsJSON != "" {
		if err := json.Unmarshal([]byte(r.WarningsJSON), &v.Warnings); err != nil {
			return scoredListingView{}, err
		}
	}
	return v, nil
}

// GetListings handles GET /api/listings (spec.md sec 4.8/6): a
// filtered, paginated read of scored_listings. Malformed filter values
// are a plain 400, matching the teacher's own RequireJSON's use of
// http.Error for request-shape problems that are not domain errors.
func (p *Provider) GetListings(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/listings")
	q := r.URL.Query()

	filter := db.ListingFilter{
		CanonicalModel:       q.Get("canonical_model"),
		CanonicalModelPrefix: q.Get("canonical_model_prefix") == "true",
		Region:               q.Get("region"),
		ImportID:             q.Get("import_id"),
	}

	var err error
	if filter.MinPrice, err = parseOptionalFloat(q, "min_price"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.MaxPrice, err = parseOptionalFloat(q, "max_price"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.MinScore, err = parseOptionalFloat(q, "min_score"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.After, err = parseOptionalTime(q, "after"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := db.Page{}
	if page.Limit, err = parseOptionalInt(q, "limit"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if page.Offset, err = parseOptionalInt(q, "offset"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := db.QueryListings(p.DB, filter, page)
	if WriteError(w, err) {
		return
	}
	views := make([]scoredListingView, 0, len(rows))
	for _, row := range rows {
		v, err := toScoredListingView(row)
		if WriteError(w, err) {
			return
		}
		views = append(views, v)
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"listings": views})
}

// GetDeltas handles GET /api/forecast/deltas (spec.md sec 4.8/6).
func (p *Provider) GetDeltas(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/forecast/deltas")
	q := r.URL.Query()

	filter := db.DeltaFilter{
		CanonicalModel: q.Get("canonical_model"),
		Region:         q.Get("region"),
	}

	minAbsPct, err := parseOptionalFloat(q, "min_abs_price_delta_pct")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if minAbsPct != nil {
		filter.MinAbsPriceDeltaPct = *minAbsPct
	}
	if filter.After, err = parseOptionalTime(q, "after"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.Limit, err = parseOptionalInt(q, "limit"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := db.QueryDeltas(p.DB, filter)
	if WriteError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"deltas": rows})
}

// GetSchemaVersions handles GET /api/schema/versions (spec.md sec 6).
func (p *Provider) GetSchemaVersions(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/schema/versions")
	v := db.DescribeSchemaVersions()
	respondwith.JSON(w, http.StatusOK, map[string]any{"default": v.Default, "supported": v.Supported})
}

func parseOptionalFloat(q map[string][]string, key string) (*float64, error) {
	raw := firstOrEmpty(q, key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalidQueryParam(key, raw)
	}
	return &v, nil
}

func parseOptionalInt(q map[string][]string, key string) (int, error) {
	raw := firstOrEmpty(q, key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQueryParam(key, raw)
	}
	return v, nil
}

func parseOptionalTime(q map[string][]string, key string) (*time.Time, error) {
	raw := firstOrEmpty(q, key)
	if raw == "" {
		return nil, nil
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, invalidQueryParam(key, raw)
	}
	return &v, nil
}

func firstOrEmpty(q map[string][]string, key string) string {
	vs := q[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func invalidQueryParam(key, raw string) error {
	return &queryParamError{key: key, raw: raw}
}

type queryParamError struct {
	key, raw string
}

func (e *queryParamError) Error() string {
	return "invalid value for query parameter " + e.key + ": " + e.raw
}
