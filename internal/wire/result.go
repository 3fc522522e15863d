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

// Package wire encodes a sandbox's terminal result for out-of-process
// reporting, e.g. piping it to a grading daemon over a unix socket. The
// in-process type stays event.Result/event.Action; this package only
// exists at the process boundary.
package wire

import (
	"encoding/binary"
	"fmt"

	gogoproto "github.com/gogo/protobuf/proto"

	"github.com/ironclad/sandbox/internal/event"
)

// Result is a hand-written gogo/protobuf message (field numbers below are
// part of the wire contract, not implementation detail) describing one
// sandbox's terminal outcome.
//
// Field layout:
//
//	1  code       varint  (event.Result)
//	2  exit_code  varint  (int32)
//	3  signo      varint  (int32)
//	4  cpu_ms     varint  (uint64)
//	5  wall_ms    varint  (uint64)
//	6  vsize_peak varint  (uint64)
type Result struct {
	Code       event.Result
	ExitCode   int32
	Signo      int32
	CPUMillis  uint64
	WallMillis uint64
	VSizePeak  uint64

	XXX_unrecognized []byte
}

// Reset implements gogo's proto.Message.
func (r *Result) Reset() { *r = Result{} }

// String implements gogo's proto.Message.
func (r *Result) String() string {
	return fmt.Sprintf("Result{code=%s exit=%d signo=%d cpu_ms=%d wall_ms=%d vsize_peak=%d}",
		r.Code, r.ExitCode, r.Signo, r.CPUMillis, r.WallMillis, r.VSizePeak)
}

// ProtoMessage implements gogo's proto.Message.
func (*Result) ProtoMessage() {}

var _ gogoproto.Message = (*Result)(nil)

// Marshal encodes r as a sequence of (field_number<<3 | varint_wiretype,
// value) pairs, the shape generated gogo code would produce for a message
// this small with every field a plain varint.
func (r *Result) Marshal() ([]byte, error) {
	var out []byte
	putField := func(num int, v uint64) {
		out = binary.AppendUvarint(out, uint64(num<<3))
		out = binary.AppendUvarint(out, v)
	}
	putField(1, uint64(r.Code))
	putField(2, uint64(uint32(r.ExitCode)))
	putField(3, uint64(uint32(r.Signo)))
	putField(4, r.CPUMillis)
	putField(5, r.WallMillis)
	putField(6, r.VSizePeak)
	return out, nil
}

// Unmarshal decodes bytes produced by Marshal.
func (r *Result) Unmarshal(data []byte) error {
	buf := data
	for len(buf) > 0 {
		tag, n := binary.Uvarint(buf)
		if n <= 0 {
			return fmt.Errorf("wire: malformed tag")
		}
		buf = buf[n:]
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return fmt.Errorf("wire: malformed value")
		}
		buf = buf[n:]

		switch tag >> 3 {
		case 1:
			r.Code = event.Result(v)
		case 2:
			r.ExitCode = int32(v)
		case 3:
			r.Signo = int32(v)
		case 4:
			r.CPUMillis = v
		case 5:
			r.WallMillis = v
		case 6:
			r.VSizePeak = v
		default:
			r.XXX_unrecognized = append(r.XXX_unrecognized, data...)
			return nil
		}
	}
	return nil
}
