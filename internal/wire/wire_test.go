// Copyright 2026 The Ironclad Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ironclad/sandbox/internal/event"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	want := &Result{
		Code:       event.ResultTL,
		ExitCode:   0,
		Signo:      0,
		CPUMillis:  1500,
		WallMillis: 2000,
		VSizePeak:  1 << 24,
	}

	b, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal() = %v", err)
	}

	got := &Result{}
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}

	if *got != *want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestUnmarshalEmptyBufferYieldsZeroValue(t *testing.T) {
	got := &Result{}
	if err := got.Unmarshal(nil); err != nil {
		t.Fatalf("Unmarshal(nil) = %v", err)
	}
	if *got != (Result{}) {
		t.Errorf("got %+v, want zero value", got)
	}
}

func TestMarshalJSONIncludesAllFields(t *testing.T) {
	r := &Result{
		Code:       event.ResultOK,
		CPUMillis:  10,
		WallMillis: 20,
		VSizePeak:  30,
	}
	b, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("json.Unmarshal(MarshalJSON output) = %v", err)
	}

	for _, key := range []string{"code", "exit_code", "signo", "cpu_ms", "wall_ms", "vsize_peak"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("MarshalJSON output missing field %q: %s", key, b)
		}
	}
	if decoded["code"] != event.ResultOK.String() {
		t.Errorf("code = %v, want %q", decoded["code"], event.ResultOK.String())
	}
}

func TestStringIncludesCode(t *testing.T) {
	r := &Result{Code: event.ResultML}
	if got := r.String(); !strings.Contains(got, "code="+event.ResultML.String()) {
		t.Errorf("String() = %q, want it to include code=%s", got, event.ResultML.String())
	}
}
