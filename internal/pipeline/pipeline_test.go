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

package pipeline

import (
	"context"
	"errors"
	"testing"
)

func double(_ context.Context, in []int) ([]int, error) {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = v * 2
	}
	return out, nil
}

func toStrings(_ context.Context, in []int) ([]string, error) {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = itoa(v)
	}
	return out, nil
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf []byte
	for v > 0 {
		buf = append([]byte{byte('0' + v%10)}, buf...)
		v /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func failingStage(_ context.Context, in []int) ([]int, error) {
	return nil, errors.New("boom")
}

func TestRunComposesTwoStages(t *testing.T) {
	out, err := Run(context.Background(), double, toStrings, []int{1, 2, 3})
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	want := []string{"2", "4", "6"}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %s, want %s", i, out[i], want[i])
		}
	}
}

func TestRunStopsAtFirstError(t *testing.T) {
	_, err := Run(context.Background(), failingStage, toStrings, []int{1, 2, 3})
	if err == nil {
		t.Fatal("expected error from failing first stage")
	}
}

func TestRun4FourStagePipeline(t *testing.T) {
	out, err := Run4(context.Background(), double, double, double, toStrings, []int{1})
	if err != nil {
		t.Fatalf("Run4: %s", err)
	}
	if len(out) != 1 || out[0] != "8" {
		t.Errorf("got %v, want [8]", out)
	}
}

func TestRunDoesNotMutateInputSlice(t *testing.T) {
	in := []int{1, 2, 3}
	inCopy := append([]int(nil), in...)
	if _, err := Run(context.Background(), double, toStrings, in); err != nil {
		t.Fatalf("Run: %s", err)
	}
	for i := range in {
		if in[i] != inCopy[i] {
			t.Errorf("input slice mutated at index %d: got %d, want %d", i, in[i], inCopy[i])
		}
	}
}
