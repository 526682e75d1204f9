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
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// WriteScoredCSV writes rows in exactly the scoredCSVColumns schema
// csvScoredLoader reads, so `gpuscope-pipeline --output` produces a
// file that LoadScored (and POST /api/imports/from-pipeline) accepts
// without modification.
func WriteScoredCSV(w io.Writer, rows []model.ScoredListing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scoredCSVColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(scoredCSVRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func scoredCSVRecord(r model.ScoredListing) []string {
	quantizationCapacity := ""
	if len(r.QuantizationCapacity) > 0 {
		b, _ := json.Marshal(r.QuantizationCapacity)
		quantizationCapacity = string(b)
	}
	warnings := ""
	if len(r.Warnings) > 0 {
		b, _ := json.Marshal(r.Warnings)
		warnings = string(b)
	}

	return []string{
		r.Title,
		strconv.FormatFloat(r.Price, 'f', -1, 64),
		strconv.Itoa(r.Quantity),
		r.Seller,
		r.SourceURL,
		r.SourceType,
		string(r.Condition),
		r.BulkNotes,
		r.GeographicRegion,
		r.ListingAge,
		string(r.Model),
		string(r.CanonicalModel),
		string(r.MatchType),
		strconv.FormatFloat(r.MatchScore, 'f', -1, 64),
		r.MatchNotes,
		strconv.Itoa(r.VRAMGB),
		strconv.Itoa(r.TDPWatts),
		strconv.Itoa(r.SlotWidth),
		strconv.Itoa(r.MIGSupport),
		strconv.FormatBool(r.NVLink),
		r.Generation,
		strconv.Itoa(r.CUDACores),
		strconv.Itoa(r.PCIeGeneration),
		r.FormFactor,
		quantizationCapacity,
		warnings,
		strconv.FormatFloat(r.Score, 'f', -1, 64),
		r.ImportID,
		strconv.Itoa(r.ImportIndex),
		strconv.FormatInt(r.SeenAt, 10),
	}
}
