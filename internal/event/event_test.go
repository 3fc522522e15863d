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

package event

import "testing"

func TestStringersDoNotFallBackToUnknownForKnownValues(t *testing.T) {
	if got := ABINative.String(); got != "native" {
		t.Errorf("ABINative.String() = %q", got)
	}
	if got := TypeQuota.String(); got != "QUOTA" {
		t.Errorf("TypeQuota.String() = %q", got)
	}
	if got := QuotaMemory.String(); got != "memory" {
		t.Errorf("QuotaMemory.String() = %q", got)
	}
	if got := StatusBlk.String(); got != "BLK" {
		t.Errorf("StatusBlk.String() = %q", got)
	}
	if got := ResultRF.String(); got != "RF" {
		t.Errorf("ResultRF.String() = %q", got)
	}
}

func TestResultStringFallsBackToReservedIndexForUnnamedCodes(t *testing.T) {
	if got := ResultR0.String(); got != "R0" {
		t.Errorf("ResultR0.String() = %q, want %q", got, "R0")
	}
	if got := ResultR5.String(); got != "R5" {
		t.Errorf("ResultR5.String() = %q, want %q", got, "R5")
	}
}

func TestContIsAlwaysActionCont(t *testing.T) {
	if Cont.Type != ActionCont {
		t.Errorf("Cont.Type = %v, want ActionCont", Cont.Type)
	}
}

func TestFiniAndKillCarryResult(t *testing.T) {
	f := Fini(ResultOK)
	if f.Type != ActionFini || f.Result != ResultOK {
		t.Errorf("Fini(ResultOK) = %+v", f)
	}
	k := Kill(ResultRT)
	if k.Type != ActionKill || k.Result != ResultRT {
		t.Errorf("Kill(ResultRT) = %+v", k)
	}
}

func TestActionStringOmitsResultForCont(t *testing.T) {
	if got := Cont.String(); got != "CONT" {
		t.Errorf("Cont.String() = %q, want %q", got, "CONT")
	}
	if got := Kill(ResultML).String(); got != "KILL(ML)" {
		t.Errorf("Kill(ResultML).String() = %q, want %q", got, "KILL(ML)")
	}
}

func TestEventStringFormatsByType(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"exit", Event{Type: TypeExit, ExitCode: 1}, "EXIT(code=1)"},
		{"signal", Event{Type: TypeSignal, Signo: 11, Code: 2}, "SIGNAL(signo=11, code=2)"},
		{"quota", Event{Type: TypeQuota, Quota: QuotaDisk}, "QUOTA(disk)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSyscallInfoString(t *testing.T) {
	sc := SyscallInfo{Number: 59, ABI: ABINative}
	if got := sc.String(); got != "59/native" {
		t.Errorf("SyscallInfo.String() = %q, want %q", got, "59/native")
	}
}
