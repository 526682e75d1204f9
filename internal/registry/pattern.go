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
	"regexp"
	"strings"
)

// compilePattern compiles a MatchPattern source string case-insensitively.
// See DESIGN.md "regexpext substitution" for why this is stdlib regexp
// rather than go-bits/regexpext.
func compilePattern(src string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(src, "(?i)") {
		src = "(?i)" + src
	}
	return regexp.Compile(src)
}

// normalizeAliasKey canonicalizes an alias surface string for map
// lookup: trimmed and lowercased. The Normalizer applies the same
// transform to incoming titles before an exact-match lookup.
func normalizeAliasKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
