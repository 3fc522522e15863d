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

package task

import (
	"os"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/ironclad/sandbox/internal/event"
)

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestQuotasGetReturnsInfinityWhenUnset(t *testing.T) {
	var q Quotas
	if got := q.Get(event.QuotaCPU); got != Infinity {
		t.Errorf("Get(QuotaCPU) = %d, want Infinity", got)
	}
}

func TestQuotasGetReturnsConfiguredValue(t *testing.T) {
	q := Quotas{event.QuotaMemory: 1 << 20}
	if got := q.Get(event.QuotaMemory); got != 1<<20 {
		t.Errorf("Get(QuotaMemory) = %d, want %d", got, 1<<20)
	}
}

func TestQuotasGetOutOfRangeKindReturnsInfinity(t *testing.T) {
	var q Quotas
	if got := q.Get(event.QuotaKind(99)); got != Infinity {
		t.Errorf("Get(99) = %d, want Infinity", got)
	}
}

func TestValidateRejectsEmptyArgv(t *testing.T) {
	null := devNull(t)
	tsk := Task{Stdin: null, Stdout: null, Stderr: null}
	if err := tsk.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for empty argv")
	}
}

func TestValidateRejectsMissingStdio(t *testing.T) {
	tsk := Task{Argv: []string{"/bin/true"}}
	if err := tsk.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing stdio")
	}
}

func TestValidateAcceptsWellFormedTask(t *testing.T) {
	null := devNull(t)
	tsk := Task{Argv: []string{"/bin/true"}, Stdin: null, Stdout: null, Stderr: null}
	if err := tsk.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestToOCIProcessMapsDiskAndMemoryQuotas(t *testing.T) {
	tsk := Task{
		Argv: []string{"/bin/echo", "hi"},
		UID:  1000,
		GID:  1000,
	}
	tsk.Quota[event.QuotaDisk] = 4096
	tsk.Quota[event.QuotaMemory] = 1 << 20

	proc, res := tsk.ToOCIProcess()

	if len(proc.Args) != 2 || proc.Args[0] != "/bin/echo" {
		t.Errorf("proc.Args = %v", proc.Args)
	}
	if proc.User.UID != 1000 || proc.User.GID != 1000 {
		t.Errorf("proc.User = %+v", proc.User)
	}
	if len(proc.Rlimits) != 1 || proc.Rlimits[0].Type != "RLIMIT_FSIZE" || proc.Rlimits[0].Hard != 4096 {
		t.Errorf("proc.Rlimits = %+v", proc.Rlimits)
	}
	if res.Memory == nil || res.Memory.Limit == nil || *res.Memory.Limit != 1<<20 {
		t.Errorf("res.Memory = %+v", res.Memory)
	}
}

func TestToOCIProcessOmitsUnsetQuotas(t *testing.T) {
	tsk := Task{Argv: []string{"/bin/true"}}
	proc, res := tsk.ToOCIProcess()
	if len(proc.Rlimits) != 0 {
		t.Errorf("proc.Rlimits = %+v, want none", proc.Rlimits)
	}
	if res.Memory != nil {
		t.Errorf("res.Memory = %+v, want nil", res.Memory)
	}
}

func TestFromOCIProcessRoundTripsArgvIdentityAndQuotas(t *testing.T) {
	limit := int64(1 << 20)
	proc := &specs.Process{
		Args: []string{"/bin/echo", "hi"},
		User: specs.User{UID: 1000, GID: 1000},
	}
	proc.Rlimits = []specs.POSIXRlimit{{Type: "RLIMIT_FSIZE", Hard: 4096, Soft: 4096}}
	res := &specs.LinuxResources{Memory: &specs.LinuxMemory{Limit: &limit}}

	got := FromOCIProcess(proc, res)

	if len(got.Argv) != 2 || got.Argv[0] != "/bin/echo" {
		t.Errorf("Argv = %v", got.Argv)
	}
	if got.UID != 1000 || got.GID != 1000 {
		t.Errorf("UID/GID = %d/%d", got.UID, got.GID)
	}
	if got.Quota.Get(event.QuotaDisk) != 4096 {
		t.Errorf("QuotaDisk = %d, want 4096", got.Quota.Get(event.QuotaDisk))
	}
	if got.Quota.Get(event.QuotaMemory) != 1<<20 {
		t.Errorf("QuotaMemory = %d, want %d", got.Quota.Get(event.QuotaMemory), 1<<20)
	}
}

func TestFromOCIProcessHandlesNilResources(t *testing.T) {
	proc := &specs.Process{Args: []string{"/bin/true"}}
	got := FromOCIProcess(proc, nil)
	if got.Quota.Get(event.QuotaMemory) != Infinity {
		t.Errorf("QuotaMemory = %d, want Infinity", got.Quota.Get(event.QuotaMemory))
	}
}
