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

package platform

import (
	"testing"
	"time"
)

func TestParseStatTypical(t *testing.T) {
	// A representative /proc/<pid>/stat line (fields abbreviated to what
	// the parser consumes; trailing fields are padded with zeros).
	line := "1234 (my prog) S 1 1234 1234 0 -1 4194304 10 0 5 0 200 100 0 0 20 0 1 0 123456 4096000 256 " +
		"18446744073709551615 4194304 4198400 140737488347136 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0 0 0 0 0 0 0 0"

	var snap Snapshot
	if err := parseStat(line, &snap); err != nil {
		t.Fatalf("parseStat: %v", err)
	}

	if snap.Pid != 1234 {
		t.Errorf("Pid = %d, want 1234", snap.Pid)
	}
	if snap.State != 'S' {
		t.Errorf("State = %q, want 'S'", snap.State)
	}
	if snap.Ppid != 1 {
		t.Errorf("Ppid = %d, want 1", snap.Ppid)
	}
	if snap.MinFlt != 10 {
		t.Errorf("MinFlt = %d, want 10", snap.MinFlt)
	}
	if snap.MajFlt != 5 {
		t.Errorf("MajFlt = %d, want 5", snap.MajFlt)
	}
	if want := 200 * time.Second / clockTicksPerSec; snap.UTime != want {
		t.Errorf("UTime = %v, want %v", snap.UTime, want)
	}
	if want := 100 * time.Second / clockTicksPerSec; snap.STime != want {
		t.Errorf("STime = %v, want %v", snap.STime, want)
	}
	if snap.VSize != 4096000 {
		t.Errorf("VSize = %d, want 4096000", snap.VSize)
	}
	if snap.RSS != 256*4096 {
		t.Errorf("RSS = %d, want %d", snap.RSS, 256*4096)
	}
}

func TestParseStatTolerateSpacesInComm(t *testing.T) {
	line := "99 (a b ) c ) R 1 99 99 0 -1 0 0 0 0 0 0 0 0 0 0 0 0 1 0 0 0 0 0 0 0 0 0"
	var snap Snapshot
	if err := parseStat(line, &snap); err != nil {
		t.Fatalf("parseStat with spaced comm: %v", err)
	}
	if snap.Pid != 99 {
		t.Errorf("Pid = %d, want 99", snap.Pid)
	}
	if snap.State != 'R' {
		t.Errorf("State = %q, want 'R'", snap.State)
	}
}

func TestParseStatMalformed(t *testing.T) {
	if err := parseStat("not a stat line", &Snapshot{}); err == nil {
		t.Fatal("expected an error for a malformed stat line")
	}
}

func TestClassifyOpcode(t *testing.T) {
	tests := []struct {
		name string
		op   uint64
		cs   uint64
		i386 bool
		want ABIMode
	}{
		{"native syscall", opSyscall, csNative64, false, ABINative},
		{"compat syscall via cs", opSyscall, csCompat32, false, ABICompat},
		{"syscall with unknown cs", opSyscall, 0x2B, false, ABIUnknown},
		{"sysenter is always compat", opSysenter, csNative64, false, ABICompat},
		{"int 0x80 is always compat", opInt80, csNative64, false, ABICompat},
		{"i386 legacy cs is always compat", opSyscall, 0x73, true, ABICompat},
		{"unrecognized opcode", 0x9090, csNative64, false, ABIUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyOpcode(tt.op, tt.cs, tt.i386); got != tt.want {
				t.Errorf("classifyOpcode(%#x, %#x, %v) = %v, want %v", tt.op, tt.cs, tt.i386, got, tt.want)
			}
		})
	}
}

func TestFollowVsyscall(t *testing.T) {
	// jmp rel8: byte 0xEB followed directly by the real syscall opcode in
	// the same synthetic word, which followVsyscall rescans.
	op := uint64(0xEB) | uint64(opSyscall)<<8
	next, ok := followVsyscall(op)
	if !ok {
		t.Fatal("followVsyscall did not recognize jmp rel8")
	}
	if classifyOpcode(next, csNative64, false) != ABINative {
		t.Errorf("followVsyscall did not land on the syscall opcode")
	}

	if _, ok := followVsyscall(0x9090); ok {
		t.Error("followVsyscall should reject a non-jmp leading opcode")
	}
}
