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
	"slices"
	"strings"
	"time"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
)

// ListingFilter holds query_listings' filter parameters (spec.md sec 4.7).
type ListingFilter struct {
	CanonicalModel       string // exact or case-insensitive prefix
	CanonicalModelPrefix bool
	MinPrice             *float64
	MaxPrice             *float64
	MinScore             *float64
	Region               string
	After                *time.Time
	ImportID             string
}

// Page holds pagination parameters. Limit defaults to 100 and is
// capped at 1000; Offset must be >= 0 (spec.md sec 4.7).
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies query_listings' documented pagination defaults and bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// QueryListings implements query_listings: filtered, paginated reads
// ordered by score DESC, seen_at DESC, (import_id, import_index) ASC
// (spec.md sec 4.7).
func QueryListings(dbi Interface, filter ListingFilter, page Page) ([]ScoredListing, error) {
	page = page.Normalize()

	fields := map[string]any{}
	var extraConds []string
	var extraArgs []any

	if filter.CanonicalModel != "" {
		pattern := filter.CanonicalModel
		if filter.CanonicalModelPrefix {
			pattern += "%"
		}
		extraConds = append(extraConds, fmt.Sprintf("canonical_model ILIKE $%d", len(extraArgs)+1))
		extraArgs = append(extraArgs, pattern)
	}
	if filter.Region != "" {
		fields["geographic_region"] = filter.Region
	}
	if filter.ImportID != "" {
		fields["import_id"] = filter.ImportID
	}
	if filter.MinPrice != nil {
		extraConds = append(extraConds, fmt.Sprintf("price >= $%d", len(extraArgs)+1))
		extraArgs = append(extraArgs, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		extraConds = append(extraConds, fmt.Sprintf("price <= $%d", len(extraArgs)+1))
		extraArgs = append(extraArgs, *filter.MaxPrice)
	}
	if filter.MinScore != nil {
		extraConds = append(extraConds, fmt.Sprintf("score >= $%d", len(extraArgs)+1))
		extraArgs = append(extraArgs, *filter.MinScore)
	}
	if filter.After != nil {
		extraConds = append(extraConds, fmt.Sprintf("seen_at > $%d", len(extraArgs)+1))
		extraArgs = append(extraArgs, *filter.After)
	}

	whereClause, whereArgs := BuildSimpleWhereClause(fields, len(extraArgs))
	conds := append(append([]string{}, extraConds...), whereClause)
	args := append(append([]any{}, extraArgs...), whereArgs...)

	limitPlaceholder := len(args) + 1
	offsetPlaceholder := len(args) + 2
	args = append(args, page.Limit, page.Offset)

	query := fmt.Sprintf(`
		SELECT * FROM scored_listings
		WHERE %s
		ORDER BY score DESC, seen_at DESC, import_id ASC, import_index ASC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conds, " AND "), limitPlaceholder, offsetPlaceholder)

	var out []ScoredListing
	if _, err := dbi.Select(&out, query, args...); err != nil {
		return nil, apperr.Store(err)
	}
	return out, nil
}

// DeltaFilter holds query_deltas' filter parameters (spec.md sec 4.7).
type DeltaFilter struct {
	CanonicalModel      string
	MinAbsPriceDeltaPct float64
	After               *time.Time
	Region              string
	Limit               int
}

// QueryDeltas implements query_deltas: filtered reads ordered by
// timestamp DESC. Region is joined against the delta's current
// snapshot's scored listing, since listing_deltas itself carries no
// region column.
func QueryDeltas(dbi Interface, filter DeltaFilter) ([]ListingDelta, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var conds []string
	var args []any

	if filter.CanonicalModel != "" {
		conds = append(conds, fmt.Sprintf("d.canonical_model ILIKE $%d", len(args)+1))
		args = append(args, filter.CanonicalModel)
	}
	if filter.MinAbsPriceDeltaPct > 0 {
		conds = append(conds, fmt.Sprintf("ABS(d.price_delta_pct) >= $%d", len(args)+1))
		args = append(args, filter.MinAbsPriceDeltaPct)
	}
	if filter.After != nil {
		conds = append(conds, fmt.Sprintf("d.timestamp > $%d", len(args)+1))
		args = append(args, *filter.After)
	}
	if filter.Region != "" {
		conds = append(conds, fmt.Sprintf("s.geographic_region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if len(conds) == 0 {
		conds = append(conds, "TRUE")
	}

	limitPlaceholder := len(args) + 1
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT d.* FROM listing_deltas d
		JOIN listing_snapshots cur ON cur.id = d.current_snapshot_id
		JOIN scored_listings s ON s.id = cur.scored_listing_id
		WHERE %s
		ORDER BY d.timestamp DESC
		LIMIT $%d
	`, strings.Join(conds, " AND "), limitPlaceholder)

	var out []ListingDelta
	if _, err := dbi.Select(&out, query, args...); err != nil {
		return nil, apperr.Store(err)
	}
	return out, nil
}

// SchemaVersions reports the store's current version and every
// version this build can still read (spec.md sec 4.7/4.8).
type SchemaVersions struct {
	Default   string
	Supported []string
}

// ReadSchemaVersion returns the schema_info singleton row's version,
// failing UnsupportedSchemaVersion if it names a version this build
// cannot read.
func ReadSchemaVersion(dbi Interface) (string, error) {
	var rows []SchemaInfo
	_, err := dbi.Select(&rows, "SELECT * FROM schema_info WHERE id = 1")
	if err != nil {
		return "", apperr.Store(err)
	}
	if len(rows) == 0 {
		return "", apperr.Internal(fmt.Errorf("schema_info has no row"))
	}
	version := rows[0].Version
	if !slices.Contains(SupportedSchemaVersions, version) {
		return "", apperr.UnsupportedSchemaVersion(version)
	}
	return version, nil
}

// DescribeSchemaVersions returns the /api/schema/versions payload.
func DescribeSchemaVersions() SchemaVersions {
	return SchemaVersions{
		Default:   CurrentSchemaVersion,
		Supported: append([]string{}, SupportedSchemaVersions...),
	}
}
