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

package registry

import (
	"fmt"
	"strings"
)

// ConfigError reports one or more problems found while loading the
// registry. It is always returned in place of a partially valid
// Registry (spec.md sec 4.1: "no partial registry").
type ConfigError struct {
	msg string
}

func (e ConfigError) Error() string { return e.msg }

// NewConfigError builds a ConfigError from a format string, matching
// the teacher's own fmt.Errorf-style error construction.
func NewConfigError(format string, args ...any) ConfigError {
	return ConfigError{msg: fmt.Sprintf(format, args...)}
}

// ErrorSet accumulates independent validation failures so that Load
// can report every problem in one pass instead of stopping at the
// first one, mirroring internal/core/errors.go's ErrorSet.
type ErrorSet struct {
	errs []string
}

// Addf appends one formatted error message.
func (s *ErrorSet) Addf(format string, args ...any) {
	s.errs = append(s.errs, fmt.Sprintf(format, args...))
}

// IsEmpty reports whether no errors were recorded.
func (s ErrorSet) IsEmpty() bool { return len(s.errs) == 0 }

// Error renders all accumulated messages, one per line.
func (s ErrorSet) Error() string {
	return strings.Join(s.errs, "\n")
}
