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
	"net/http"

	"github.com/sapcc/go-bits/respondwith"

	"github.com/lucienbrule/gpu-scoring-tool/internal/apperr"
)

// WriteError writes err's message at its apperr.Kind's HTTP status, or
// 500 for an untyped error, and reports whether it wrote anything —
// the same boolean-return idiom as the teacher's respondwith.ErrorText
// ("write an error response and report whether one was written").
func WriteError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := apperr.As(err); ok {
		body := map[string]any{"error": ae.Message}
		if ae.Detail != "" {
			body["detail"] = ae.Detail
		}
		if ae.RowIndex >= 0 {
			body["row_index"] = ae.RowIndex
		}
		respondwith.JSON(w, ae.Kind.HTTPStatus(), body)
		return true
	}
	return respondwith.ErrorText(w, err)
}
