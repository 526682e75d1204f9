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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// csvLoaderName is the registered name of the raw-ingest CSV loader.
const csvLoaderName = "csv"

// requiredCSVColumns is the exact column set spec.md sec 6 names for
// the raw ingest schema. Order in the file does not matter; presence
// does.
var requiredCSVColumns = []string{
	"title", "price", "quantity", "seller", "source_url", "source_type",
	"condition", "bulk_notes", "geographic_region", "listing_age", "model",
}

func init() {
	Register(csvLoader{})
}

type csvLoader struct{}

func (csvLoader) Name() string { return csvLoaderName }

// Load parses a raw-ingest CSV per spec.md sec 6: columns exactly
// title, price, quantity, seller, source_url, source_type, condition,
// bulk_notes, geographic_region, listing_age, model. Unknown extra
// columns are ignored (a warning is attached to the result set's first
// row so it survives into the ingest response, per spec.md sec 4.2's
// "warnings attached to the row" policy); missing required columns
// fail with a SchemaError before any row is read.
func (csvLoader) Load(ctx context.Context, r io.Reader) ([]model.RawListing, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	// Unknown trailing columns are tolerated; FieldsPerRecord is
	// validated column-by-column below instead of by the csv package.
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
	for _, required := range requiredCSVColumns {
		if _, ok := colIndex[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Schema("missing required columns: %s", strings.Join(missing, ", "))
	}

	extraWarning := ""
	if len(header) > len(requiredCSVColumns) {
		extraWarning = "csv header has extra columns beyond the documented schema; they were ignored"
	}

	var out []model.RawListing
	rowIndex := 0
	for {
		select {
		case <-ctx.Done():
			return nil, apperr.ServiceUnavailable("csv load cancelled: %s", ctx.Err())
		default:
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Validation(rowIndex, "malformed csv row: %s", err)
		}

		raw, err := parseCSVRow(record, colIndex, rowIndex)
		if err != nil {
			return nil, err
		}
		if rowIndex == 0 && extraWarning != "" {
			raw.AddWarning("extra_csv_columns", extraWarning)
		}
		out = append(out, raw)
		rowIndex++
	}

	return out, nil
}

func parseCSVRow(record []string, colIndex map[string]int, rowIndex int) (model.RawListing, error) {
	field := func(name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	price, err := parseUSDecimal(field("price"))
	if err != nil {
		return model.RawListing{}, apperr.Validation(rowIndex, "column price: %s", err)
	}

	quantity := 1
	if qs := field("quantity"); qs != "" {
		q, err := strconv.Atoi(qs)
		if err != nil {
			return model.RawListing{}, apperr.Validation(rowIndex, "column quantity: %q is not an integer", qs)
		}
		quantity = q
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
	}

	if raw.Title == "" {
		return model.RawListing{}, apperr.Validation(rowIndex, "column title: must not be empty")
	}

	return raw.WithDefaults(), nil
}

// parseUSDecimal parses a price in US decimal format, tolerating a
// "$" prefix and "," thousands separators (spec.md sec 6). The
// returned error is a plain error; the caller is responsible for
// wrapping it in the row-scoped apperr.Validation it belongs to.
func parseUSDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("price must not be empty")
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid decimal price", s)
	}
	return v, nil
}
