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

// Package sandbox executes an untrusted program as a traced child process
// on Linux/x86, enforcing a configurable syscall/signal policy and
// wall-clock/CPU/memory/disk quotas, and reports how it terminated.
//
// This package is a thin re-export of internal/sandbox, internal/task, and
// internal/event's public surface, so an embedding program can depend on
// github.com/ironclad/sandbox directly instead of reaching into internal
// packages:
//
//	t := sandbox.Task{Argv: []string{"/bin/echo", "hi"}, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
//	s := sandbox.New(t, nil)
//	defer s.Close()
//	if err := s.Check(ctx); err != nil { ... }
//	result, err := s.Execute(ctx)
//
// The trace loop, procfs probing, ptrace proxying, and profiler internals
// are deliberately not exported; only the lifecycle a caller needs to
// supervise one tracee is.
package sandbox

import (
	"github.com/ironclad/sandbox/internal/event"
	"github.com/ironclad/sandbox/internal/policy"
	"github.com/ironclad/sandbox/internal/quota"
	"github.com/ironclad/sandbox/internal/sandbox"
	"github.com/ironclad/sandbox/internal/task"
)

type (
	// Sandbox supervises one tracee for its entire lifetime.
	Sandbox = sandbox.Sandbox
	// Option configures a Sandbox at construction time.
	Option = sandbox.Option
	// Task describes the program a Sandbox will execute.
	Task = task.Task
	// Quotas is the wallclock/CPU/memory/disk quota array keyed by
	// event.QuotaKind.
	Quotas = task.Quotas
	// Policy decides what action to take in response to an observed
	// event.
	Policy = policy.Policy
	// Status is a sandbox's lifecycle status (PRE, RDY, EXE, BLK, FIN).
	Status = event.Status
	// Result is a sandbox's terminal outcome code.
	Result = event.Result
	// Enforcer is the optional cgroup-backed quota backstop.
	Enforcer = quota.Enforcer
)

// New constructs a Sandbox for t, installing pol (or the default blacklist
// policy if pol is nil).
func New(t Task, pol Policy, opts ...Option) *Sandbox {
	return sandbox.New(t, pol, opts...)
}

// WithCgroup attaches a cgroup-backed quota backstop alongside the procfs
// poll. Pass nil (the default) to run with procfs polling alone.
func WithCgroup(cg *Enforcer) Option {
	return sandbox.WithCgroup(cg)
}

// DefaultPolicy returns the library's default policy: a blacklist over
// fork/vfork/clone/ptrace/wait* and any syscall with an unrecognized ABI.
func DefaultPolicy() Policy {
	return policy.Default()
}

// Infinity is the sentinel quota value meaning "unbounded".
const Infinity = task.Infinity

// Result codes, re-exported for callers that switch on a Sandbox's
// terminal Result without importing internal/event directly.
const (
	ResultPD = event.ResultPD // pending, no result yet
	ResultOK = event.ResultOK
	ResultRF = event.ResultRF // restricted function (blacklisted syscall)
	ResultRT = event.ResultRT // runtime signal (uncaught signal)
	ResultTL = event.ResultTL // time limit exceeded
	ResultML = event.ResultML // memory limit exceeded
	ResultOL = event.ResultOL // output limit exceeded
	ResultAT = event.ResultAT // abnormal termination
	ResultIE = event.ResultIE // internal error
	ResultBP = event.ResultBP // bad policy (no decision reached)
)
