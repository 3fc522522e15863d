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

package policy

import (
	"testing"

	"github.com/ironclad/sandbox/internal/event"
)

func TestBlacklistPolicy(t *testing.T) {
	p := Default()

	tests := []struct {
		name string
		ev   event.Event
		want event.Action
	}{
		{
			name: "fork is restricted",
			ev:   event.Event{Type: event.TypeSyscall, SC: event.SyscallInfo{Number: 57, ABI: event.ABINative}},
			want: event.Kill(event.ResultRF),
		},
		{
			name: "32-bit waitpid is restricted",
			ev:   event.Event{Type: event.TypeSyscall, SC: event.SyscallInfo{Number: 7, ABI: event.ABICompat}},
			want: event.Kill(event.ResultRF),
		},
		{
			name: "unknown ABI is restricted",
			ev:   event.Event{Type: event.TypeSyscall, SC: event.SyscallInfo{Number: 1, ABI: event.ABIUnknown}},
			want: event.Kill(event.ResultRF),
		},
		{
			name: "ordinary syscall continues",
			ev:   event.Event{Type: event.TypeSyscall, SC: event.SyscallInfo{Number: 0, ABI: event.ABINative}},
			want: event.Cont,
		},
		{
			name: "sysret always continues",
			ev:   event.Event{Type: event.TypeSysret},
			want: event.Cont,
		},
		{
			name: "clean exit is OK",
			ev:   event.Event{Type: event.TypeExit, ExitCode: 0},
			want: event.Fini(event.ResultOK),
		},
		{
			name: "non-zero exit is abnormal",
			ev:   event.Event{Type: event.TypeExit, ExitCode: 1},
			want: event.Fini(event.ResultAT),
		},
		{
			name: "self-inflicted SIGSTOP continues",
			ev:   event.Event{Type: event.TypeSignal, Signo: sigSTOP},
			want: event.Cont,
		},
		{
			name: "self-inflicted SIGCONT continues",
			ev:   event.Event{Type: event.TypeSignal, Signo: sigCONT},
			want: event.Cont,
		},
		{
			name: "other signal is a runtime error",
			ev:   event.Event{Type: event.TypeSignal, Signo: 7},
			want: event.Kill(event.ResultRT),
		},
		{
			name: "wallclock quota is a time limit",
			ev:   event.Event{Type: event.TypeQuota, Quota: event.QuotaWallClock},
			want: event.Kill(event.ResultTL),
		},
		{
			name: "cpu quota is a time limit",
			ev:   event.Event{Type: event.TypeQuota, Quota: event.QuotaCPU},
			want: event.Kill(event.ResultTL),
		},
		{
			name: "memory quota is a memory limit",
			ev:   event.Event{Type: event.TypeQuota, Quota: event.QuotaMemory},
			want: event.Kill(event.ResultML),
		},
		{
			name: "disk quota is an output limit",
			ev:   event.Event{Type: event.TypeQuota, Quota: event.QuotaDisk},
			want: event.Kill(event.ResultOL),
		},
		{
			name: "error events are internal errors",
			ev:   event.Event{Type: event.TypeError},
			want: event.Kill(event.ResultIE),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Decide(tt.ev); got != tt.want {
				t.Errorf("Decide(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

func TestFuncPolicy(t *testing.T) {
	calls := 0
	p := Func(func(ev event.Event) event.Action {
		calls++
		return event.Cont
	})
	p.Decide(event.Event{Type: event.TypeExit})
	if calls != 1 {
		t.Fatalf("Func policy was not invoked, calls=%d", calls)
	}
}

type statefulPolicy struct {
	seen []int64
}

func (s *statefulPolicy) Decide(ev event.Event) event.Action {
	s.seen = append(s.seen, ev.SC.Number)
	return event.Cont
}

func (s *statefulPolicy) Clone() Policy {
	cp := &statefulPolicy{seen: append([]int64(nil), s.seen...)}
	return cp
}

func TestCloneIsolatesState(t *testing.T) {
	orig := &statefulPolicy{}
	orig.Decide(event.Event{SC: event.SyscallInfo{Number: 1}})

	clone := Clone(orig).(*statefulPolicy)
	clone.Decide(event.Event{SC: event.SyscallInfo{Number: 2}})

	if len(orig.seen) != 1 {
		t.Fatalf("original policy mutated by clone's Decide: %v", orig.seen)
	}
	if len(clone.seen) != 2 {
		t.Fatalf("clone did not retain prior state: %v", clone.seen)
	}
}
