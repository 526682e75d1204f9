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

// Package pipeline composes the normalize -> enrich -> heuristics ->
// score stages into one ingest run. Per spec.md sec 9 ("Design Notes"),
// a Stage never mutates a shared record in place: each stage takes a
// whole batch and returns a new, independently-owned batch.
package pipeline

import "context"

// Stage transforms a whole batch of In values into a batch of Out
// values. Implementations must not retain or mutate the input slice
// after returning; Run passes batches through by value semantics only
// (the slice header, never a shared backing array mutation contract).
type Stage[In, Out any] func(ctx context.Context, in []In) ([]Out, error)

// Run threads a batch through two stages in sequence, stopping at the
// first error. This is the two-stage specialization of the pure
// orchestrator described in spec.md sec 9; longer pipelines compose it
// repeatedly (see Run3/Run4 below), since Go generics cannot express a
// variadic heterogeneous stage list.
func Run[A, B, C any](ctx context.Context, s1 Stage[A, B], s2 Stage[B, C], in []A) ([]C, error) {
	mid, err := s1(ctx, in)
	if err != nil {
		return nil, err
	}
	return s2(ctx, mid)
}

// Run3 threads a batch through three stages in sequence.
func Run3[A, B, C, D any](ctx context.Context, s1 Stage[A, B], s2 Stage[B, C], s3 Stage[C, D], in []A) ([]D, error) {
	mid, err := s1(ctx, in)
	if err != nil {
		return nil, err
	}
	return Run(ctx, s2, s3, mid)
}

// Run4 threads a batch through four stages in sequence. This is the
// exact shape of the ingest pipeline: normalize -> enrich ->
// heuristics -> score.
func Run4[A, B, C, D, E any](ctx context.Context, s1 Stage[A, B], s2 Stage[B, C], s3 Stage[C, D], s4 Stage[D, E], in []A) ([]E, error) {
	mid, err := s1(ctx, in)
	if err != nil {
		return nil, err
	}
	return Run3(ctx, s2, s3, s4, mid)
}
