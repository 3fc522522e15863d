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

// Package task holds the immutable description of the program a Sandbox
// will execute: its command line, identity, redirected file descriptors,
// and quotas. It also bridges to and from an OCI runtime-spec process
// fragment, so a Task can be built from (a subset of) a config.json.
package task

import (
	"fmt"
	"os"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/ironclad/sandbox/internal/event"
)

// Infinity is the sentinel quota value meaning "unbounded".
const Infinity uint64 = ^uint64(0)

// Quotas is the 4-entry quota array keyed by event.QuotaKind, matching the
// spec's {WALLCLOCK, CPU, MEMORY, DISK} layout. Units: WALLCLOCK and CPU in
// milliseconds, MEMORY and DISK in bytes.
type Quotas [4]uint64

// Get returns the configured quota for k, or Infinity if unset.
func (q Quotas) Get(k event.QuotaKind) uint64 {
	if int(k) >= len(q) {
		return Infinity
	}
	if q[k] == 0 {
		return Infinity
	}
	return q[k]
}

// Task is the immutable-after-Check command description a Sandbox
// executes.
type Task struct {
	// Argv is the flattened command line; Argv[0] is the executable path.
	Argv []string

	// Chroot is either "" (meaning "/", i.e. no chroot) or a directory
	// that must prefix Argv[0] and is only honored when UID == 0.
	Chroot string

	UID, GID uint32

	Stdin, Stdout, Stderr *os.File

	// Interactive requests a pty pair instead of plain redirected fds,
	// for tracees that refuse to run non-interactively.
	Interactive bool

	Quota Quotas
}

// Validate performs the structural checks that don't require touching the
// filesystem or identity database (those live in the sandbox façade's
// Check, which also consults the host's passwd/group tables).
func (t Task) Validate() error {
	if len(t.Argv) == 0 || t.Argv[0] == "" {
		return fmt.Errorf("task: empty argv")
	}
	if t.Stdin == nil || t.Stdout == nil || t.Stderr == nil {
		return fmt.Errorf("task: stdin/stdout/stderr must all be set")
	}
	return nil
}

// ToOCIProcess converts t into an OCI runtime-spec process fragment plus
// the matching Linux resource limits, for embedding in or comparing
// against a config.json produced by an OCI-aware caller.
func (t Task) ToOCIProcess() (*specs.Process, *specs.LinuxResources) {
	proc := &specs.Process{
		Args: append([]string(nil), t.Argv...),
		User: specs.User{UID: t.UID, GID: t.GID},
		Cwd:  "/",
	}

	// OCI has no wallclock/cpu-ms concept; only the rlimit-mappable quotas
	// (disk, memory) round-trip through specs.Process/specs.LinuxResources.
	res := &specs.LinuxResources{}
	if fsize := t.Quota.Get(event.QuotaDisk); fsize != Infinity {
		proc.Rlimits = append(proc.Rlimits, specs.POSIXRlimit{
			Type: "RLIMIT_FSIZE",
			Hard: fsize,
			Soft: fsize,
		})
	}
	if mem := t.Quota.Get(event.QuotaMemory); mem != Infinity {
		limit := int64(mem)
		res.Memory = &specs.LinuxMemory{Limit: &limit}
	}
	return proc, res
}

// FromOCIProcess populates argv, identity, and the disk/memory quotas of a
// Task from an OCI process fragment and its resource limits. Wallclock and
// CPU quotas have no OCI equivalent and are left untouched; callers set
// them separately.
func FromOCIProcess(proc *specs.Process, res *specs.LinuxResources) Task {
	var t Task
	t.Argv = append([]string(nil), proc.Args...)
	t.UID = proc.User.UID
	t.GID = proc.User.GID

	for _, rl := range proc.Rlimits {
		if rl.Type == "RLIMIT_FSIZE" {
			t.Quota[event.QuotaDisk] = rl.Hard
		}
	}
	if res != nil && res.Memory != nil && res.Memory.Limit != nil {
		t.Quota[event.QuotaMemory] = uint64(*res.Memory.Limit)
	}
	return t
}
