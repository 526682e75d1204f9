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

// Package api implements the HTTP query surface of spec.md sec 4.8 and
// sec 6: health, the model catalog, filtered listing/delta queries, and
// the three ingest endpoints. Handlers are thin net/http adapters
// around transport-agnostic core functions, the same separation
// internal/reports keeps from the teacher's own internal/api.
package api

import (
	"net/http"
	"time"

	"github.com/go-gorp/gorp/v3"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/lucienbrule/gpu-scoring-tool/internal/ml"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

// VersionData is used by the version advertisement handler on "GET /",
// the same shape the teacher's core.go uses for its own version list.
type VersionData struct {
	Status string            `json:"status"`
	ID     string            `json:"id"`
	Links  []VersionLinkData `json:"links"`
}

// VersionLinkData is one link entry within VersionData.
type VersionLinkData struct {
	URL      string `json:"href"`
	Relation string `json:"rel"`
	Type     string `json:"type,omitempty"`
}

// Provider holds everything the v1 API's handlers need: the database,
// the loaded resource registry, and the optional ML classifier. It
// plays the role the teacher's v1Provider plays, minus the
// Keystone/OpenStack cluster and token-validator fields this domain has
// no use for.
type Provider struct {
	DB          *gorp.DbMap
	Registry    registry.Registry
	Classifier  ml.Classifier
	VersionData VersionData

	// StagingDir is where POST /api/ingest/upload-artifact optionally
	// writes the raw artifact it validated (spec.md sec 6); empty
	// disables persisting the artifact.
	StagingDir string

	// timeNow is a seam for tests; defaults to time.Now.
	timeNow func() time.Time
}

// NewProvider builds a Provider bound to db and reg.
func NewProvider(db *gorp.DbMap, reg registry.Registry, classifier ml.Classifier, stagingDir string) *Provider {
	if classifier == nil {
		classifier = ml.NullClassifier{}
	}
	return &Provider{
		DB:         db,
		Registry:   reg,
		Classifier: classifier,
		StagingDir: stagingDir,
		timeNow:    time.Now,
		VersionData: VersionData{
			Status: "CURRENT",
			ID:     "v1",
			Links: []VersionLinkData{
				{Relation: "self", URL: "/api/"},
			},
		},
	}
}

// OverrideTimeNow lets tests fix the clock. Mirrors the teacher's own
// timeNow test seam on v1Provider.
func (p *Provider) OverrideTimeNow(f func() time.Time) *Provider {
	p.timeNow = f
	return p
}

func (p *Provider) now() time.Time {
	if p.timeNow == nil {
		return time.Now()
	}
	return p.timeNow()
}

// AddTo registers every route on r, following the teacher's
// v1Provider.AddTo shape.
func (p *Provider) AddTo(r *mux.Router) {
	r.Methods("HEAD", "GET").Path("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpapi.IdentifyEndpoint(r, "/")
		httpapi.SkipRequestLog(r)
		respondwith.JSON(w, http.StatusMultipleChoices, map[string]any{"versions": []VersionData{p.VersionData}})
	})

	r.Methods("GET").Path("/api/health").HandlerFunc(p.GetHealth)
	r.Methods("GET").Path("/api/models").HandlerFunc(p.GetModels)
	r.Methods("GET").Path("/api/listings").HandlerFunc(p.GetListings)
	r.Methods("GET").Path("/api/forecast/deltas").HandlerFunc(p.GetDeltas)
	r.Methods("GET").Path("/api/schema/versions").HandlerFunc(p.GetSchemaVersions)

	r.Methods("POST").Path("/api/imports/csv").HandlerFunc(p.PostImportCSV)
	r.Methods("POST").Path("/api/imports/from-pipeline").HandlerFunc(p.PostImportFromPipeline)
	r.Methods("POST").Path("/api/ingest/upload-artifact").HandlerFunc(p.PostUploadArtifact)
}
