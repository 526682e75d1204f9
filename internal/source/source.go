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

// Package source implements the Loader contract of spec.md sec 4.2: a
// vendor format is read and turned into a finite, in-memory sequence of
// RawListing. Loaders register themselves by name at init time, the
// same collision-fatal pattern internal/heuristics uses in place of the
// ungroundable go-bits/pluggable registry (see DESIGN.md).
package source

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
)

// Loader reads a vendor format from r and produces RawListings in
// document order. Implementations must emit each row with all required
// fields populated or fail with an *apperr.Error of kind SchemaError
// (malformed columns) or ValidationError (a single row's value, e.g. an
// unparseable price).
type Loader interface {
	Name() string
	Load(ctx context.Context, r io.Reader) ([]model.RawListing, error)
}

var (
	registryMu sync.Mutex
	loaders    = map[string]Loader{}
)

// Register adds a Loader under its own Name(). It panics on a duplicate
// name, mirroring internal/heuristics.RegisterStrategy: a name
// collision between two source loaders is a programming error, not a
// runtime condition to recover from.
func Register(l Loader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := l.Name()
	if _, exists := loaders[name]; exists {
		panic(fmt.Sprintf("source: loader %q already registered", name))
	}
	loaders[name] = l
}

// Lookup returns the registered Loader for name, if any.
func Lookup(name string) (Loader, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	l, ok := loaders[name]
	return l, ok
}

// RegisteredNames returns every registered loader name, sorted.
func RegisteredNames() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(loaders))
	for name := range loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
