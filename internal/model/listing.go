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

// Package model contains the data types that flow through the
// normalization -> enrichment -> heuristics -> scoring pipeline. These
// types are plain values; no stage mutates a record in place, it
// produces a new one (see internal/pipeline).
package model

// Condition is the physical condition of a listed unit.
type Condition string

const (
	ConditionNew         Condition = "New"
	ConditionUsed        Condition = "Used"
	ConditionRefurbished Condition = "Refurbished"
	ConditionUnknown     Condition = "Unknown"
)

// CanonicalModel is a stable upper-snake-case identifier drawn from the
// registry, e.g. "RTX_A6000". UnknownCanonical is reserved for listings
// that the Normalizer could not resolve.
type CanonicalModel string

// UnknownCanonical is the canonical model assigned when normalization fails.
const UnknownCanonical CanonicalModel = "UNKNOWN"

// RawListing is a vendor-agnostic ingest record, as produced by a
// source.Loader. See spec.md sec 3.
type RawListing struct {
	Title             string
	Price             float64
	Quantity          int
	Seller            string
	SourceURL         string
	SourceType        string
	Condition         Condition
	BulkNotes         string
	GeographicRegion  string
	ListingAge        string
	Model             CanonicalModel // optional pre-tagged canonical hint
}

// WithDefaults fills in the documented defaults for optional fields that
// were left empty by the loader.
func (r RawListing) WithDefaults() RawListing {
	if r.GeographicRegion == "" {
		r.GeographicRegion = "USA"
	}
	if r.ListingAge == "" {
		r.ListingAge = "Current"
	}
	if r.Condition == "" {
		r.Condition = ConditionUnknown
	}
	return r
}

// MatchType classifies how a listing's canonical model was resolved.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchRegex MatchType = "regex"
	MatchFuzzy MatchType = "fuzzy"
	MatchNone  MatchType = "none"
)

// Severity classifies a Warning's importance. Warnings never abort a
// pipeline stage; they ride along with the record into the output.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
)

// Warning is a structured, machine-readable annotation attached to a
// record as it passes through the pipeline. Per the "dynamic field
// dictionaries" design note, this replaces free-form warning strings
// with a tagged record; Detail carries the human-readable text.
type Warning struct {
	Severity Severity
	Code     string
	Detail   string
}

func warn(code, detail string) Warning {
	return Warning{Severity: SeverityWarn, Code: code, Detail: detail}
}

// NormalizedListing is a RawListing with canonical-model resolution
// attached.
type NormalizedListing struct {
	RawListing
	CanonicalModel CanonicalModel
	MatchType      MatchType
	MatchScore     float64
	MatchNotes     string

	MLIsGPU   *bool
	MLScore   *float64

	Warnings []Warning
}

// EnrichedListing is a NormalizedListing joined against the GPU
// specification registry, plus any heuristic-engine contributions.
type EnrichedListing struct {
	NormalizedListing

	HasSpec        bool
	VRAMGB         int
	TDPWatts       int
	SlotWidth      int
	MIGSupport     int
	NVLink         bool
	Generation     string
	CUDACores      int
	HasCUDACores   bool
	PCIeGeneration int
	FormFactor     string
	MSRPUSD        float64
	HasMSRP        bool

	QuantizationCapacity map[string]int
	HasQuantization      bool

	Heuristics []HeuristicOutput
}

// HeuristicKind tags the dynamic type of a HeuristicOutput value.
type HeuristicKind int

const (
	HeuristicBool HeuristicKind = iota
	HeuristicInt
	HeuristicFloat
	HeuristicEnum
)

// HeuristicOutput is a single named contribution from a heuristic
// strategy. Exactly one of B/I/F/S is meaningful, selected by Kind.
type HeuristicOutput struct {
	Name string
	Kind HeuristicKind
	B    bool
	I    int
	F    float64
	S    string
}

// ScoredListing is an EnrichedListing with a composite score attached.
type ScoredListing struct {
	EnrichedListing

	Score           float64
	ScoreComponents map[string]float64

	ImportID    string
	ImportIndex int
	SeenAt      int64 // unix seconds, set at persistence time
}

// AddWarning appends a structured warning with SeverityWarn. Promoted
// by EnrichedListing and ScoredListing, so every stage shares the one
// Warnings slice attached at normalization time.
func (n *NormalizedListing) AddWarning(code, detail string) {
	n.Warnings = append(n.Warnings, warn(code, detail))
}
