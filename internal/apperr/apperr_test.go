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

package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindSchemaError:              422,
		KindValidationError:          422,
		KindUnknownPreset:            400,
		KindUnsupportedSchemaVersion: 400,
		KindDuplicateImport:          409,
		KindStoreError:               503,
		KindServiceUnavailable:       503,
		KindConfigError:              500,
		KindInternalError:            500,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}

func TestValidationCarriesRowIndex(t *testing.T) {
	err := Validation(73, "price %q is not a number", "not-a-number")
	if err.Kind != KindValidationError {
		t.Errorf("Kind = %s, want ValidationError", err.Kind)
	}
	if err.RowIndex != 73 {
		t.Errorf("RowIndex = %d, want 73", err.RowIndex)
	}
}

func TestConfigHasNoRowIndex(t *testing.T) {
	err := Config("duplicate canonical %q", "RTX_A6000")
	if err.RowIndex != -1 {
		t.Errorf("RowIndex = %d, want -1 for a non-row-scoped error", err.RowIndex)
	}
}

func TestAsUnwrapsWrappedError(t *testing.T) {
	base := DuplicateImport("abc-123")
	wrapped := fmt.Errorf("ingest failed: %w", base)

	got, ok := As(wrapped)
	if !ok {
		t.Fatal("As() did not find the wrapped *Error")
	}
	if got.Kind != KindDuplicateImport {
		t.Errorf("Kind = %s, want DuplicateImport", got.Kind)
	}
}

func TestAsFailsOnPlainError(t *testing.T) {
	if _, ok := As(errors.New("plain")); ok {
		t.Error("As() should not match a plain error")
	}
}

func TestStoreAndInternalPreserveCause(t *testing.T) {
	cause := errors.New("connection reset")

	storeErr := Store(cause)
	if !errors.Is(storeErr, cause) {
		t.Error("Store() did not preserve cause for errors.Is")
	}

	internalErr := Internal(cause)
	if !errors.Is(internalErr, cause) {
		t.Error("Internal() did not preserve cause for errors.Is")
	}
}
