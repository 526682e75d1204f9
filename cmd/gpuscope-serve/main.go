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

// gpuscope-serve is the HTTP service entrypoint: it wires internal/db,
// internal/registry, and internal/api.Provider together behind a mux
// router, the same shape cmd/limes/main.go's taskServe used for the
// OpenStack quota API.
package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"

	"github.com/lucienbrule/gpu-scoring-tool/internal/api"
	"github.com/lucienbrule/gpu-scoring-tool/internal/db"
	"github.com/lucienbrule/gpu-scoring-tool/internal/pprofapi"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

func main() {
	logg.ShowDebug = osext.GetenvBool("GPUSCOPE_DEBUG")

	registryDir := osext.GetenvOrDefault("GPUSCOPE_REGISTRY_DIR", "/etc/gpuscope/registry")
	reg, err := registry.Load(registry.Files{
		SpecsPath:        registryDir + "/specs.yaml",
		AliasesPath:      registryDir + "/aliases.yaml",
		PatternsPath:     registryDir + "/patterns.yaml",
		WeightsPath:      registryDir + "/weights.yaml",
		QuantizationPath: registryDir + "/quantization.yaml",
		MatchingPath:     registryDir + "/matching.yaml",
	})
	if err != nil {
		logg.Fatal(err.Error())
	}

	dbConn, err := db.Init()
	if err != nil {
		logg.Fatal(err.Error())
	}
	dbMap := db.InitORM(dbConn)

	if err := db.RefreshGPUSpecsCache(dbMap, reg); err != nil {
		logg.Error("refreshing gpu_specs cache: %s", err)
	}

	provider := api.NewProvider(dbMap, reg, nil, osext.GetenvOrDefault("GPUSCOPE_STAGING_DIR", ""))

	router := mux.NewRouter()
	provider.AddTo(router)
	router.Handle("/metrics", promhttp.Handler())
	if osext.GetenvBool("GPUSCOPE_DEBUG") {
		pprofapi.API{IsAuthorized: pprofapi.IsRequestFromLocalhost}.AddTo(router)
	}

	var handler http.Handler = router
	handler = logg.Middleware{}.Wrap(handler)

	if allowedOrigins := osext.GetenvOrDefault("GPUSCOPE_CORS_ALLOWED_ORIGINS", ""); allowedOrigins != "" {
		handler = cors.New(cors.Options{
			AllowedOrigins: strings.Split(allowedOrigins, ","),
			AllowedMethods: []string{"HEAD", "GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler(handler)
	}

	listenAddress := osext.GetenvOrDefault("GPUSCOPE_API_LISTEN_ADDRESS", ":8080")
	logg.Info("listening on " + listenAddress)
	if err := http.ListenAndServe(listenAddress, handler); err != nil {
		logg.Fatal(err.Error())
	}
}
