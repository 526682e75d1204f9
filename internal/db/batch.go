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
	"encoding/json"
	"fmt"
	"time"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/gofrs/uuid"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// ImportResult is returned by InsertBatch (spec.md sec 4.7/4.8).
type ImportResult struct {
	ImportID    string
	RecordCount int
	FirstModel  string
	LastModel   string
	Timestamp   time.Time
	Warnings    []model.Warning
}

// InsertBatch writes a scored batch atomically: it allocates (or
// validates the caller-supplied) import_id, inserts one ScoredListing
// row per input in batch order, snapshots each row's (source_url,
// price, score), and computes a ListingDelta against the most recent
// prior snapshot of the same source_url, if any (spec.md sec 4.7
// steps 1-3). Any row validation failure aborts the whole transaction;
// no partial writes survive (spec.md "Batch atomicity" property).
func InsertBatch(dbMap *gorp.DbMap, rows []model.ScoredListing, sourceLabel string, importID string, now time.Time) (ImportResult, error) {
	if importID == "" {
		generated, err := uuid.NewV4()
		if err != nil {
			return ImportResult{}, apperr.Internal(fmt.Errorf("could not generate import id: %w", err))
		}
		importID = generated.String()
	}

	tx, err := dbMap.Begin()
	if err != nil {
		return ImportResult{}, apperr.Store(err)
	}

	var existing int64
	if err := tx.SelectOne(&existing, "SELECT COUNT(*) FROM imports WHERE id = $1", importID); err != nil {
		_ = tx.Rollback()
		return ImportResult{}, apperr.Store(err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return ImportResult{}, apperr.DuplicateImport(importID)
	}

	imp := Import{
		ID:            importID,
		SourceLabel:   sourceLabel,
		RecordCount:   len(rows),
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     now,
	}
	if err := tx.Insert(&imp); err != nil {
		_ = tx.Rollback()
		return ImportResult{}, apperr.Store(err)
	}

	var allWarnings []model.Warning
	var firstModel, lastModel string

	for i, row := range rows {
		dbRow, err := scoredListingToRow(row, importID, i, now)
		if err != nil {
			_ = tx.Rollback()
			return ImportResult{}, apperr.Validation(i, "could not serialize row: %s", err)
		}
		if err := tx.Insert(&dbRow); err != nil {
			_ = tx.Rollback()
			return ImportResult{}, apperr.Validation(i, "could not persist row: %s", err)
		}

		if i == 0 {
			firstModel = dbRow.CanonicalModel
		}
		lastModel = dbRow.CanonicalModel
		allWarnings = append(allWarnings, row.Warnings...)

		if err := snapshotAndDelta(tx, dbRow, now); err != nil {
			_ = tx.Rollback()
			return ImportResult{}, apperr.Validation(i, "could not compute snapshot/delta: %s", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportResult{}, apperr.Store(err)
	}

	return ImportResult{
		ImportID:    importID,
		RecordCount: len(rows),
		FirstModel:  firstModel,
		LastModel:   lastModel,
		Timestamp:   now,
		Warnings:    allWarnings,
	}, nil
}

func scoredListingToRow(row model.ScoredListing, importID string, importIndex int, now time.Time) (ScoredListing, error) {
	quantJSON, err := json.Marshal(nonNilMap(row.QuantizationCapacity))
	if err != nil {
		return ScoredListing{}, err
	}
	heuristicsJSON, err := json.Marshal(row.Heuristics)
	if err != nil {
		return ScoredListing{}, err
	}
	componentsJSON, err := json.Marshal(nonNilFloatMap(row.ScoreComponents))
	if err != nil {
		return ScoredListing{}, err
	}
	warningsJSON, err := json.Marshal(row.Warnings)
	if err != nil {
		return ScoredListing{}, err
	}

	return ScoredListing{
		ImportID:    importID,
		ImportIndex: importIndex,

		Title:            row.Title,
		Price:            row.Price,
		Quantity:         row.Quantity,
		Seller:           row.Seller,
		SourceURL:        row.SourceURL,
		SourceType:       row.SourceType,
		Condition:        string(row.Condition),
		BulkNotes:        row.BulkNotes,
		GeographicRegion: row.GeographicRegion,
		ListingAge:       row.ListingAge,

		CanonicalModel: string(row.CanonicalModel),
		MatchType:      string(row.MatchType),
		MatchScore:     row.MatchScore,
		MatchNotes:     row.MatchNotes,

		MLIsGPU: row.MLIsGPU,
		MLScore: row.MLScore,

		HasSpec:        row.HasSpec,
		VRAMGB:         row.VRAMGB,
		TDPWatts:       row.TDPWatts,
		SlotWidth:      row.SlotWidth,
		MIGSupport:     row.MIGSupport,
		NVLink:         row.NVLink,
		Generation:     row.Generation,
		CUDACores:      row.CUDACores,
		HasCUDACores:   row.HasCUDACores,
		PCIeGeneration: row.PCIeGeneration,
		FormFactor:     row.FormFactor,

		QuantizationCapacityJSON: string(quantJSON),
		HeuristicsJSON:           string(heuristicsJSON),
		ScoreComponentsJSON:      string(componentsJSON),
		WarningsJSON:             string(warningsJSON),

		Score:  row.Score,
		SeenAt: now,
	}, nil
}

func nonNilMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func nonNilFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

// snapshotAndDelta inserts the new ListingSnapshot for dbRow and, if a
// prior snapshot exists for the same source_url, computes and inserts
// the ListingDelta between them (spec.md sec 4.7 step 3, testable
// property "Delta existence").
func snapshotAndDelta(tx *gorp.Transaction, dbRow ScoredListing, now time.Time) error {
	var prior []ListingSnapshot
	if dbRow.SourceURL != "" {
		_, err := tx.Select(&prior,
			"SELECT * FROM listing_snapshots WHERE source_url = $1 ORDER BY seen_at DESC LIMIT 1",
			dbRow.SourceURL)
		if err != nil {
			return err
		}
	}

	snap := ListingSnapshot{
		ImportID:        dbRow.ImportID,
		ScoredListingID: dbRow.ID,
		SourceURL:       dbRow.SourceURL,
		CanonicalModel:  dbRow.CanonicalModel,
		Price:           dbRow.Price,
		Score:           dbRow.Score,
		SeenAt:          now,
	}
	if err := tx.Insert(&snap); err != nil {
		return err
	}

	if len(prior) == 0 {
		return nil
	}
	p := prior[0]

	priceDeltaPct := 0.0
	if p.Price != 0 {
		priceDeltaPct = (dbRow.Price - p.Price) / p.Price * 100.0
	}

	delta := ListingDelta{
		SourceURL:         dbRow.SourceURL,
		CanonicalModel:    dbRow.CanonicalModel,
		PriorSnapshotID:   p.ID,
		CurrentSnapshotID: snap.ID,
		PriceDelta:        dbRow.Price - p.Price,
		PriceDeltaPct:     priceDeltaPct,
		ScoreDelta:        dbRow.Score - p.Score,
		Timestamp:         now,
	}
	return tx.Insert(&delta)
}
