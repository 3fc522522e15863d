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

// Package quota gives the profiler's polled MEMORY and CPU checks a
// kernel-enforced backstop: the tracee is placed in a cgroup with a hard
// memory ceiling and its accounted CPU usage is read from the same cgroup,
// supplementing (not replacing) the procfs-derived samples the profiler
// already takes. This is new functionality relative to the library this
// spec was distilled from, which predates cgroups; it is additive and
// never changes the QUOTA event semantics the profiler already implements.
package quota

import (
	"fmt"

	cgroup1 "github.com/containerd/cgroups"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Enforcer places a tracee's process group into a dedicated cgroup and
// exposes its accounted resource usage as a second sample source.
type Enforcer struct {
	cg   cgroup1.Cgroup
	path string
}

// New creates a cgroup named for the sandbox and applies a memory ceiling.
// memBytes of 0 means no cgroup-level memory ceiling is applied (the
// profiler's polled vsize check remains the only MEMORY enforcement).
func New(name string, memBytes int64) (*Enforcer, error) {
	path := cgroup1.StaticPath("/ironclad/" + name)
	var res specs.LinuxResources
	if memBytes > 0 {
		res.Memory = &specs.LinuxMemory{Limit: &memBytes}
	}
	cg, err := cgroup1.New(path, &res)
	if err != nil {
		return nil, fmt.Errorf("quota: create cgroup: %w", err)
	}
	return &Enforcer{cg: cg, path: "/ironclad/" + name}, nil
}

// Add places pid's process (and, transitively, its threads) under the
// cgroup. Must be called after the tracee has been forked but can be
// called before or after execve.
func (e *Enforcer) Add(pid int) error {
	if err := e.cg.Add(cgroup1.Process{Pid: pid}); err != nil {
		return fmt.Errorf("quota: add pid %d to cgroup: %w", pid, err)
	}
	return nil
}

// Usage reports the cgroup-accounted memory and CPU usage, as a second
// source the profiler can compare against its procfs-derived samples.
type Usage struct {
	MemoryUsage uint64
	CPUUsageNs  uint64
}

// Sample reads the current cgroup-accounted usage.
func (e *Enforcer) Sample() (Usage, error) {
	stats, err := e.cg.Stat(cgroup1.IgnoreNotExist)
	if err != nil {
		return Usage{}, fmt.Errorf("quota: stat cgroup: %w", err)
	}
	var u Usage
	if stats.Memory != nil && stats.Memory.Usage != nil {
		u.MemoryUsage = stats.Memory.Usage.Usage
	}
	if stats.CPU != nil && stats.CPU.Usage != nil {
		u.CPUUsageNs = stats.CPU.Usage.Total
	}
	return u, nil
}

// Close deletes the cgroup. It is idempotent.
func (e *Enforcer) Close() error {
	if e.cg == nil {
		return nil
	}
	return e.cg.Delete()
}
