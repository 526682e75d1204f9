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
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
	"github.com/lucienbrule/gpu-scoring-tool/internal/db"
	"github.com/lucienbrule/gpu-scoring-tool/internal/ingest"
	"github.com/lucienbrule/gpu-scoring-tool/internal/source"
)

// PostImportCSV handles POST /api/imports/csv (spec.md sec 6): a
// multipart CSV upload that runs the full
// Normalize->Enrich->Heuristics->Score->Persistence pipeline and
// returns an ImportResult, or a row-scoped 422 on validation failure.
func (p *Provider) PostImportCSV(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/imports/csv")

	file, importID, preset, err := readUploadRequest(r, "csv")
	if err != nil {
		WriteError(w, err)
		return
	}
	defer file.Close()

	loader, ok := source.Lookup("csv")
	if !ok {
		WriteError(w, apperr.Internal(fmt.Errorf("csv loader not registered")))
		return
	}

	raw, err := loader.Load(r.Context(), file)
	if WriteError(w, err) {
		return
	}

	result, err := ingest.Run(r.Context(), p.Registry, ingest.Options{Preset: preset, Classifier: p.Classifier}, raw)
	if WriteError(w, err) {
		return
	}

	imp, err := db.InsertBatch(p.DB, result.Listings, "csv-upload", importID, p.now())
	if WriteError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, importResultView(imp))
}

// PostImportFromPipeline handles POST /api/imports/from-pipeline
// (spec.md sec 6): an already-scored CSV or JSON artifact is validated
// against its schema and persisted without re-scoring.
func (p *Provider) PostImportFromPipeline(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/imports/from-pipeline")

	file, importID, _, err := readUploadRequest(r, "artifact")
	if err != nil {
		WriteError(w, err)
		return
	}
	defer file.Close()

	loaderName, format := scoredLoaderNameFor(r)
	loader, ok := source.LookupPreScored(loaderName)
	if !ok {
		WriteError(w, apperr.Schema("unsupported pre-scored artifact format %q", format))
		return
	}

	scored, err := loader.LoadScored(r.Context(), file)
	if WriteError(w, err) {
		return
	}

	imp, err := db.InsertBatch(p.DB, scored, "from-pipeline", importID, p.now())
	if WriteError(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, importResultView(imp))
}

// uploadArtifactResult is the POST /api/ingest/upload-artifact response
// shape (spec.md sec 6).
type uploadArtifactResult struct {
	Valid         bool     `json:"valid"`
	Type          string   `json:"type"`
	SchemaVersion string   `json:"schema_version,omitempty"`
	Rows          int      `json:"rows"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	SavedPath     string   `json:"saved_path,omitempty"`
}

// PostUploadArtifact handles POST /api/ingest/upload-artifact (spec.md
// sec 6): validates an uploaded artifact without persisting scored
// rows, optionally staging the raw bytes, and reports a structured
// validation summary rather than failing the whole request.
func (p *Provider) PostUploadArtifact(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/api/ingest/upload-artifact")

	mf, header, err := r.FormFile("artifact")
	if err != nil {
		http.Error(w, "missing multipart field \"artifact\": "+err.Error(), http.StatusBadRequest)
		return
	}
	defer mf.Close()

	body, err := io.ReadAll(mf)
	if err != nil {
		WriteError(w, apperr.Internal(err))
		return
	}

	loaderName, format := scoredLoaderNameFor(r)
	result := uploadArtifactResult{Type: format}

	loader, ok := source.LookupPreScored(loaderName)
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("unsupported artifact format %q", format))
		respondwith.JSON(w, http.StatusOK, result)
		return
	}

	scored, loadErr := loader.LoadScored(r.Context(), strings.NewReader(string(body)))
	if loadErr != nil {
		result.Errors = append(result.Errors, loadErr.Error())
		respondwith.JSON(w, http.StatusOK, result)
		return
	}

	result.Valid = true
	result.Rows = len(scored)
	result.SchemaVersion = db.CurrentSchemaVersion
	for _, row := range scored {
		for _, warn := range row.Warnings {
			result.Warnings = append(result.Warnings, warn.Detail)
		}
	}

	if p.StagingDir != "" {
		savedPath, err := stageArtifact(p.StagingDir, header.Filename, body)
		if err != nil {
			result.Warnings = append(result.Warnings, "could not stage artifact: "+err.Error())
		} else {
			result.SavedPath = savedPath
		}
	}

	respondwith.JSON(w, http.StatusOK, result)
}

func stageArtifact(dir, filename string, body []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	safeName := filepath.Base(filename)
	if safeName == "" || safeName == "." {
		safeName = "artifact"
	}
	path := filepath.Join(dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), safeName))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// readUploadRequest extracts the named multipart field, the optional
// "import_id" and "preset" form values.
func readUploadRequest(r *http.Request, field string) (multipart.File, string, string, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, "", "", apperr.Schema("missing multipart field %q: %s", field, err)
	}
	return file, r.FormValue("import_id"), r.FormValue("preset"), nil
}

// scoredLoaderNameFor picks the pre-scored loader by the request's
// "format" form/query value, defaulting to CSV.
func scoredLoaderNameFor(r *http.Request) (loaderName, format string) {
	format = r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	switch strings.ToLower(format) {
	case "json":
		return "json-scored", "json"
	default:
		return "csv-scored", "csv"
	}
}

func importResultView(r db.ImportResult) map[string]any {
	warnings := make([]string, 0, len(r.Warnings))
	for _, warn := range r.Warnings {
		warnings = append(warnings, warn.Detail)
	}
	return map[string]any{
		"import_id":    r.ImportID,
		"record_count": r.RecordCount,
		"first_model":  r.FirstModel,
		"last_model":   r.LastModel,
		"timestamp":    r.Timestamp,
		"warnings":     warnings,
	}
}
