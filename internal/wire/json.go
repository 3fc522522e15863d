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
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// MarshalJSON renders r for the CLI's --log-format=json path. It goes
// through google.golang.org/protobuf's structpb/protojson rather than
// encoding/json directly, so the JSON log output shares encoding
// conventions (field ordering, number formatting) with the rest of a
// caller's protobuf-based telemetry pipeline.
func (r *Result) MarshalJSON() ([]byte, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"code":       r.Code.String(),
		"exit_code":  float64(r.ExitCode),
		"signo":      float64(r.Signo),
		"cpu_ms":     float64(r.CPUMillis),
		"wall_ms":    float64(r.WallMillis),
		"vsize_peak": float64(r.VSizePeak),
	})
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}
