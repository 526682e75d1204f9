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

// sqlMigrations is keyed "NNN_description.{up,down}.sql", the same
// convention the teacher's easypg-driven migration map uses; easypg
// applies them in numeric-prefix order and tracks the applied set in
// its own bookkeeping table.
var sqlMigrations = map[string]string{
	"001_initial.down.sql": `
		DROP TABLE listing_deltas;
		DROP TABLE listing_snapshots;
		DROP TABLE scored_listings;
		DROP TABLE imports;
		DROP TABLE gpu_specs;
		DROP TABLE schema_info;
	`,
	"001_initial.up.sql": `
		CREATE TABLE schema_info (
			id       INTEGER  NOT NULL PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			version  TEXT     NOT NULL
		);
		INSERT INTO schema_info (id, version) VALUES (1, '1');

		CREATE TABLE imports (
			id              TEXT       NOT NULL PRIMARY KEY,
			source_label    TEXT       NOT NULL DEFAULT '',
			record_count    INTEGER    NOT NULL DEFAULT 0,
			schema_version  TEXT       NOT NULL,
			created_at      TIMESTAMP  NOT NULL
		);

		-- optional cache of the registry's GPUSpec records, refreshed from
		-- the embedded registry at startup; not authoritative, queryable
		-- for diagnostics without needing the running process.
		CREATE TABLE gpu_specs (
			canonical_model  TEXT     NOT NULL PRIMARY KEY,
			vram_gb          INTEGER  NOT NULL,
			tdp_watts        INTEGER  NOT NULL,
			slot_width       INTEGER  NOT NULL,
			mig_support      INTEGER  NOT NULL,
			nvlink           BOOLEAN  NOT NULL,
			generation       TEXT     NOT NULL,
			cuda_cores       INTEGER,
			pcie_generation  INTEGER  NOT NULL,
			form_factor      TEXT     NOT NULL,
			msrp_usd         REAL
		);

		CREATE TABLE scored_listings (
			id                       BIGSERIAL  NOT NULL PRIMARY KEY,
			import_id                TEXT       NOT NULL REFERENCES imports ON DELETE CASCADE,
			import_index             INTEGER    NOT NULL,

			title                    TEXT       NOT NULL,
			price                    REAL       NOT NULL,
			quantity                 INTEGER    NOT NULL DEFAULT 1,
			seller                   TEXT       NOT NULL DEFAULT '',
			source_url               TEXT       NOT NULL DEFAULT '',
			source_type              TEXT       NOT NULL DEFAULT '',
			condition                TEXT       NOT NULL DEFAULT '',
			bulk_notes               TEXT       NOT NULL DEFAULT '',
			geographic_region        TEXT       NOT NULL DEFAULT '',
			listing_age              TEXT       NOT NULL DEFAULT '',

			canonical_model          TEXT       NOT NULL,
			match_type               TEXT       NOT NULL,
			match_score              REAL       NOT NULL DEFAULT 0,
			match_notes              TEXT       NOT NULL DEFAULT '',

			ml_is_gpu                BOOLEAN,
			ml_score                 REAL,

			has_spec                 BOOLEAN    NOT NULL DEFAULT FALSE,
			vram_gb                  INTEGER    NOT NULL DEFAULT 0,
			tdp_watts                INTEGER    NOT NULL DEFAULT 0,
			slot_width               INTEGER    NOT NULL DEFAULT 0,
			mig_support              INTEGER    NOT NULL DEFAULT 0,
			nvlink                   BOOLEAN    NOT NULL DEFAULT FALSE,
			generation               TEXT       NOT NULL DEFAULT '',
			cuda_cores               INTEGER    NOT NULL DEFAULT 0,
			has_cuda_cores           BOOLEAN    NOT NULL DEFAULT FALSE,
			pcie_generation          INTEGER    NOT NULL DEFAULT 0,
			form_factor              TEXT       NOT NULL DEFAULT '',

			quantization_capacity    TEXT       NOT NULL DEFAULT '{}',
			heuristics               TEXT       NOT NULL DEFAULT '[]',
			score_components         TEXT       NOT NULL DEFAULT '{}',
			warnings                 TEXT       NOT NULL DEFAULT '[]',

			score                    REAL       NOT NULL DEFAULT 0,
			seen_at                  TIMESTAMP  NOT NULL,

			UNIQUE (import_id, import_index)
		);
		CREATE INDEX scored_listings_canonical_model_idx ON scored_listings (canonical_model);
		CREATE INDEX scored_listings_import_order_idx ON scored_listings (import_id, import_index);
		CREATE INDEX scored_listings_score_idx ON scored_listings (score DESC);

		CREATE TABLE listing_snapshots (
			id                  BIGSERIAL  NOT NULL PRIMARY KEY,
			import_id           TEXT       NOT NULL REFERENCES imports ON DELETE CASCADE,
			scored_listing_id   BIGINT     NOT NULL REFERENCES scored_listings ON DELETE CASCADE,
			source_url          TEXT       NOT NULL,
			canonical_model     TEXT       NOT NULL,
			price               REAL       NOT NULL,
			score               REAL       NOT NULL,
			seen_at             TIMESTAMP  NOT NULL
		);
		CREATE INDEX listing_snapshots_source_url_seen_at_idx ON listing_snapshots (source_url, seen_at DESC);

		CREATE TABLE listing_deltas (
			id                   BIGSERIAL  NOT NULL PRIMARY KEY,
			source_url            TEXT       NOT NULL,
			canonical_model       TEXT       NOT NULL,
			prior_snapshot_id     BIGINT     NOT NULL REFERENCES listing_snapshots ON DELETE CASCADE,
			current_snapshot_id   BIGINT     NOT NULL REFERENCES listing_snapshots ON DELETE CASCADE,
			price_delta           REAL       NOT NULL,
			price_delta_pct       REAL       NOT NULL,
			score_delta           REAL       NOT NULL,
			timestamp             TIMESTAMP  NOT NULL
		);
		CREATE INDEX listing_deltas_timestamp_idx ON listing_deltas (timestamp DESC);
	`,
}
