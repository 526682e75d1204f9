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

// Package ml defines the machine-learning signal seam the Normalizer
// may optionally consult after deterministic matching (spec.md sec
// 4.3). A real classifier is explicitly out of scope; this package
// exists so the interface and its wiring are fully specified and
// testable against a fake.
package ml

// Classifier predicts whether a free-text title/notes pair describes
// a GPU listing. Its result never overrides a deterministic
// exact/regex/fuzzy match — it only annotates (spec.md sec 4.3).
type Classifier interface {
	PredictIsGPU(title, notes string) (isGPU bool, score float64, err error)
}

// NullClassifier is the zero-config default Classifier: every title is
// reported as a GPU listing with full confidence.
type NullClassifier struct{}

// PredictIsGPU always returns (true, 1.0, nil).
func (NullClassifier) PredictIsGPU(_, _ string) (bool, float64, error) {
	return true, 1.0, nil
}
