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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// PreScoredLoader reads an already-scored payload (the CSV output
// schema, or its JSON equivalent) and returns ScoredListings ready for
// persistence without re-running Normalizer/Enricher/Heuristics/Scorer
// (spec.md sec 4.8, POST /api/imports/from-pipeline). ImportID and
// ImportIndex on the returned rows are advisory; internal/db assigns
// the authoritative import on persistence.
type PreScoredLoader interface {
	Name() string
	LoadScored(ctx context.Context, r io.Reader) ([]model.ScoredListing, error)
}

var (
	preScoredMu      sync.Mutex
	preScoredLoaders = map[string]PreScoredLoader{}
)

// RegisterPreScored adds a PreScoredLoader under its own Name(). Panics
// on a duplicate name, same collision policy as Register.
func RegisterPreScored(l PreScoredLoader) {
	preScoredMu.Lock()
	defer preScoredMu.Unlock()
	name := l.Name()
	if _, exists := preScoredLoaders[name]; exists {
		panic(fmt.Sprintf("source: pre-scored loader %q already registered", name))
	}
	preScoredLoaders[name] = l
}

// LookupPreScored returns the registered PreScoredLoader for name, if any.
func LookupPreScored(name string) (PreScoredLoader, bool) {
	preScoredMu.Lock()
	defer preScoredMu.Unlock()
	l, ok := preScoredLoaders[name]
	return l, ok
}

// RegisteredPreScoredNames returns every registered pre-scored loader
// name, sorted.
func RegisteredPreScoredNames() []string {
	preScoredMu.Lock()
	defer preScoredMu.Unlock()
	names := make([]string, 0, len(preScoredLoaders))
	for name := range preScoredLoaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterPreScored(csvScoredLoader{})
	RegisterPreScored(jsonScoredLoader{})
}

// scoredCSVColumns is the scored output schema of spec.md sec 6: raw
// columns union the pipeline-derived columns, in the documented order.
// import_id, import_index, and seen_at are advisory — see
// PreScoredLoader's doc — but their columns still must be present.
var scoredCSVColumns = []string{
	"title", "price", "quantity", "seller", "source_url", "source_type",
	"condition", "bulk_notes", "geographic_region", "listing_age", "model",
	"canonical_model", "match_type", "match_score", "match_notes",
	"vram_gb", "tdp_watts", "slot_width", "mig_support", "nvlink",
	"generation", "cuda_cores", "pcie_generation", "form_factor",
	"quantization_capacity", "warnings", "score",
	"import_id", "import_index", "seen_at",
}

type csvScoredLoader struct{}

func (csvScoredLoader) Name() string { return "csv-scored" }

func (csvScoredLoader) LoadScored(ctx context.Context, r io.Reader) ([]model.ScoredListing, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, apperr.Schema("csv input is empty, expected a header row")
	}
	if err != nil {
		return nil, apperr.Schema("could not parse csv header: %s", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, required := range scoredCSVColumns {
		if _, ok := colIndex[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Schema("missing required scored columns: %s", strings.Join(missing, ", "))
	}

	var out []model.ScoredListing
	rowIndex := 0
	for {
		select {
		case <-ctx.Done():
			return nil, apperr.ServiceUnavailable("csv-scored load cancelled: %s", ctx.Err())
		default:
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Validation(rowIndex, "malformed csv row: %s", err)
		}

		sl, err := parseScoredCSVRow(record, colIndex, rowIndex)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
		rowIndex++
	}

	return out, nil
}

func parseScoredCSVRow(record []string, colIndex map[string]int, rowIndex int) (model.ScoredListing, error) {
	field := func(name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	parseFloat := func(name string) (float64, error) {
		s := field(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, apperr.Validation(rowIndex, "column %s: %q is not numeric", name, s)
		}
		return v, nil
	}
	parseInt := func(name string) (int, error) {
		s := field(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, apperr.Validation(rowIndex, "column %s: %q is not an integer", name, s)
		}
		return v, nil
	}
	parseBool := func(name string) bool {
		return strings.EqualFold(field(name), "true")
	}

	price, err := parseUSDecimal(field("price"))
	if err != nil {
		return model.ScoredListing{}, apperr.Validation(rowIndex, "column price: %s", err)
	}
	quantity, err := parseInt("quantity")
	if err != nil {
		return model.ScoredListing{}, err
	}
	vram, err := parseInt("vram_gb")
	if err != nil {
		return model.ScoredListing{}, err
	}
	tdp, err := parseInt("tdp_watts")
	if err != nil {
		return model.ScoredListing{}, err
	}
	slotWidth, err := parseInt("slot_width")
	if err != nil {
		return model.ScoredListing{}, err
	}
	migSupport, err := parseInt("mig_support")
	if err != nil {
		return model.ScoredListing{}, err
	}
	cudaCores, err := parseInt("cuda_cores")
	if err != nil {
		return model.ScoredListing{}, err
	}
	pcieGen, err := parseInt("pcie_generation")
	if err != nil {
		return model.ScoredListing{}, err
	}
	matchScore, err := parseFloat("match_score")
	if err != nil {
		return model.ScoredListing{}, err
	}
	score, err := parseFloat("score")
	if err != nil {
		return model.ScoredListing{}, err
	}
	importIndex, err := parseInt("import_index")
	if err != nil {
		return model.ScoredListing{}, err
	}
	seenAt, err := func() (int64, error) {
		s := field("seen_at")
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, apperr.Validation(rowIndex, "column seen_at: %q is not a unix timestamp", s)
		}
		return v, nil
	}()
	if err != nil {
		return model.ScoredListing{}, err
	}

	var quantizationCapacity map[string]int
	if s := field("quantization_capacity"); s != "" {
		if err := json.Unmarshal([]byte(s), &quantizationCapacity); err != nil {
			return model.ScoredListing{}, apperr.Validation(rowIndex, "column quantization_capacity: %s", err)
		}
	}
	var warnings []model.Warning
	if s := field("warnings"); s != "" {
		if err := json.Unmarshal([]byte(s), &warnings); err != nil {
			return model.ScoredListing{}, apperr.Validation(rowIndex, "column warnings: %s", err)
		}
	}

	raw := model.RawListing{
		Title:            field("title"),
		Price:            price,
		Quantity:         quantity,
		Seller:           field("seller"),
		SourceURL:        field("source_url"),
		SourceType:       field("source_type"),
		Condition:        model.Condition(field("condition")),
		BulkNotes:        field("bulk_notes"),
		GeographicRegion: field("geographic_region"),
		ListingAge:       field("listing_age"),
		Model:            model.CanonicalModel(field("model")),
	}.WithDefaults()

	if raw.Title == "" {
		return model.ScoredListing{}, apperr.Validation(rowIndex, "column title: must not be empty")
	}

	nl := model.NormalizedListing{
		RawListing:     raw,
		CanonicalModel: model.CanonicalModel(field("canonical_model")),
		MatchType:      model.MatchType(field("match_type")),
		MatchScore:     matchScore,
		MatchNotes:     field("match_notes"),
		Warnings:       warnings,
	}

	el := model.EnrichedListing{
		NormalizedListing:    nl,
		HasSpec:              field("canonical_model") != "" && field("canonical_model") != string(model.UnknownCanonical),
		VRAMGB:               vram,
		TDPWatts:             tdp,
		SlotWidth:            slotWidth,
		MIGSupport:           migSupport,
		NVLink:               parseBool("nvlink"),
		Generation:           field("generation"),
		CUDACores:            cudaCores,
		HasCUDACores:         field("cuda_cores") != "",
		PCIeGeneration:       pcieGen,
		FormFactor:           field("form_factor"),
		QuantizationCapacity: quantizationCapacity,
		HasQuantization:      len(quantizationCapacity) > 0,
	}

	return model.ScoredListing{
		EnrichedListing: el,
		Score:           score,
		ImportID:        field("import_id"),
		ImportIndex:     importIndex,
		SeenAt:          seenAt,
	}, nil
}

type jsonScoredLoader struct{}

func (jsonScoredLoader) Name() string { return "json-scored" }

// scoredListingWire is the JSON wire shape accepted from
// /api/imports/from-pipeline; field names follow the scored CSV output
// schema's snake_case column names so the two formats describe the
// same logical record.
type scoredListingWire struct {
	Title            string  `json:"title"`
	Price            float64 `json:"price"`
	Quantity         int     `json:"quantity"`
	Seller           string  `json:"seller"`
	SourceURL        string  `json:"source_url"`
	SourceType       string  `json:"source_type"`
	Condition        string  `json:"condition"`
	BulkNotes        string  `json:"bulk_notes"`
	GeographicRegion string  `json:"geographic_region"`
	ListingAge       string  `json:"listing_age"`
	Model            string  `json:"model"`

	CanonicalModel string  `json:"canonical_model"`
	MatchType      string  `json:"match_type"`
	MatchScore     float64 `json:"match_score"`
	MatchNotes     string  `json:"match_notes"`

	VRAMGB         int    `json:"vram_gb"`
	TDPWatts       int    `json:"tdp_watts"`
	SlotWidth      int    `json:"slot_width"`
	MIGSupport     int    `json:"mig_support"`
	NVLink         bool   `json:"nvlink"`
	Generation     string `json:"generation"`
	CUDACores      int    `json:"cuda_cores"`
	PCIeGeneration int    `json:"pcie_generation"`
	FormFactor     string `json:"form_factor"`

	QuantizationCapacity map[string]int  `json:"quantization_capacity,omitempty"`
	Warnings             []model.Warning `json:"warnings,omitempty"`

	Score       float64 `json:"score"`
	ImportID    string  `json:"import_id,omitempty"`
	ImportIndex int     `json:"import_index,omitempty"`
	SeenAt      int64   `json:"seen_at,omitempty"`
}

func (jsonScoredLoader) LoadScored(ctx context.Context, r io.Reader) ([]model.ScoredListing, error) {
	var wire []scoredListingWire
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return nil, apperr.Schema("could not parse json payload: %s", err)
	}

	out := make([]model.ScoredListing, 0, len(wire))
	for i, w := range wire {
		select {
		case <-ctx.Done():
			return nil, apperr.ServiceUnavailable("json-scored load cancelled: %s", ctx.Err())
		default:
		}
		if w.Title == "" {
			return nil, apperr.Validation(i, "field title: must not be empty")
		}

		raw := model.RawListing{
			Title:            w.Title,
			Price:            w.Price,
			Quantity:         w.Quantity,
			Seller:           w.Seller,
			SourceURL:        w.SourceURL,
			SourceType:       w.SourceType,
			Condition:        model.Condition(w.Condition),
			BulkNotes:        w.BulkNotes,
			GeographicRegion: w.GeographicRegion,
			ListingAge:       w.ListingAge,
			Model:            model.CanonicalModel(w.Model),
		}.WithDefaults()

		nl := model.NormalizedListing{
			RawListing:     raw,
			CanonicalModel: model.CanonicalModel(w.CanonicalModel),
			MatchType:      model.MatchType(w.MatchType),
			MatchScore:     w.MatchScore,
			MatchNotes:     w.MatchNotes,
			Warnings:       w.Warnings,
		}

		el := model.EnrichedListing{
			NormalizedListing:    nl,
			HasSpec:              w.CanonicalModel != "" && w.CanonicalModel != string(model.UnknownCanonical),
			VRAMGB:               w.VRAMGB,
			TDPWatts:             w.TDPWatts,
			SlotWidth:            w.SlotWidth,
			MIGSupport:           w.MIGSupport,
			NVLink:               w.NVLink,
			Generation:           w.Generation,
			CUDACores:            w.CUDACores,
			HasCUDACores:         w.CUDACores != 0,
			PCIeGeneration:       w.PCIeGeneration,
			FormFactor:           w.FormFactor,
			QuantizationCapacity: w.QuantizationCapacity,
			HasQuantization:      len(w.QuantizationCapacity) > 0,
		}

		out = append(out, model.ScoredListing{
			EnrichedListing: el,
			Score:           w.Score,
			ImportID:        w.ImportID,
			ImportIndex:     w.ImportIndex,
			SeenAt:          w.SeenAt,
		})
	}

	return out, nil
}
