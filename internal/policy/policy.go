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

// Package policy implements the pure event-to-action decision function a
// watcher consults on every observed event, plus the default syscall/signal
// blacklist every sandbox starts with.
package policy

import (
	"github.com/mohae/deepcopy"

	"github.com/ironclad/sandbox/internal/event"
)

// Signal numbers, hardcoded rather than imported from the syscall package
// so this file has no platform-specific build constraints of its own; the
// values are POSIX-portable on every Linux architecture this library
// targets.
const (
	sigSTOP = 19
	sigCONT = 18
)

// Policy decides what action to take in response to an observed event. A
// Policy must be pure and non-blocking: no I/O and no locking of its own.
// The watcher invokes Decide from its own goroutine without holding the
// sandbox's reader/writer lock.
type Policy interface {
	Decide(ev event.Event) event.Action
}

// Cloner is implemented by policies that carry mutable opaque state and
// need a deep copy when a Sandbox is reused across a check/execute cycle
// (see the Sandbox lifecycle in SPEC_FULL.md §3). Policies with no mutable
// state need not implement it; Clone falls back to a best-effort deepcopy.
type Cloner interface {
	Clone() Policy
}

// Clone returns c.Clone() if p implements Cloner; otherwise a deepcopy of
// p, or p itself if that copy is not a Policy. User policies that embed
// slices, maps, or pointers as state
// should implement Cloner explicitly rather than rely on deepcopy
// reflecting over unexported fields.
func Clone(p Policy) Policy {
	if c, ok := p.(Cloner); ok {
		return c.Clone()
	}
	// Best-effort structural clone for policies that don't implement
	// Cloner but do carry exported mutable state.
	if cloned, ok := deepcopy.Copy(p).(Policy); ok {
		return cloned
	}
	return p
}

// blacklisted syscall numbers, x86_64 native and 32-bit compat, that the
// default policy always kills with ResultRF. Numbers match
// libsandbox/src/platform.h's SC_*/SC32_* tables (native fork/vfork/clone/
// ptrace/wait4/waitid per the x86_64 syscall table; x86_64 has no native
// waitpid syscall, it is a libc wrapper around wait4, so the native table
// omits it while the compat table below keeps it since 32-bit processes
// can still issue int 0x80 waitpid directly).
var blacklistNative = map[int64]bool{
	57:  true, // fork
	58:  true, // vfork
	56:  true, // clone
	101: true, // ptrace
	61:  true, // wait4
	247: true, // waitid
}

// 32-bit compat syscall numbers, hardcoded the way the original C table
// hardcodes them (they never change across kernel versions).
var blacklistCompat = map[int64]bool{
	2:   true, // fork
	190: true, // vfork
	120: true, // clone
	26:  true, // ptrace
	7:   true, // waitpid
	114: true, // wait4
	284: true, // waitid
}

// BlacklistPolicy is the default policy: it kills on fork/vfork/clone/
// ptrace/wait*, on any syscall with an unrecognized ABI mode, on any signal
// other than the sandbox's own SIGSTOP/SIGCONT kick, and maps quota events
// and process exit to the matching result code.
type BlacklistPolicy struct{}

// Default returns the library's default policy.
func Default() Policy { return BlacklistPolicy{} }

// Decide implements Policy.
func (BlacklistPolicy) Decide(ev event.Event) event.Action {
	switch ev.Type {
	case event.TypeSyscall:
		if ev.SC.ABI == event.ABIUnknown {
			return event.Kill(event.ResultRF)
		}
		tbl := blacklistNative
		if ev.SC.ABI == event.ABICompat {
			tbl = blacklistCompat
		}
		if tbl[ev.SC.Number] {
			return event.Kill(event.ResultRF)
		}
		return event.Cont
	case event.TypeSysret:
		return event.Cont
	case event.TypeExit:
		if ev.ExitCode == 0 {
			return event.Fini(event.ResultOK)
		}
		return event.Fini(event.ResultAT)
	case event.TypeSignal:
		if isStopContKick(ev.Signo) {
			return event.Cont
		}
		return event.Kill(event.ResultRT)
	case event.TypeQuota:
		switch ev.Quota {
		case event.QuotaWallClock, event.QuotaCPU:
			return event.Kill(event.ResultTL)
		case event.QuotaMemory:
			return event.Kill(event.ResultML)
		case event.QuotaDisk:
			return event.Kill(event.ResultOL)
		default:
			return event.Kill(event.ResultIE)
		}
	case event.TypeError:
		return event.Kill(event.ResultIE)
	default:
		return event.Kill(event.ResultIE)
	}
}

// DefaultBlacklistNative returns a copy of the native (64-bit) blacklist
// table, for callers that need to serialize or diff the default policy
// (e.g. `sandboxctl policy dump-default`) without reaching into this
// package's unexported state.
func DefaultBlacklistNative() map[int64]bool {
	return copyBlacklist(blacklistNative)
}

// DefaultBlacklistCompat returns a copy of the 32-bit compat blacklist
// table, for the same reason as DefaultBlacklistNative.
func DefaultBlacklistCompat() map[int64]bool {
	return copyBlacklist(blacklistCompat)
}

func copyBlacklist(src map[int64]bool) map[int64]bool {
	dst := make(map[int64]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func isStopContKick(signo int) bool {
	return signo == sigSTOP || signo == sigCONT
}

// Func adapts a plain function into a Policy, the Go equivalent of the
// original's function-pointer-plus-opaque-data policy_t.
type Func func(event.Event) event.Action

// Decide implements Policy.
func (f Func) Decide(ev event.Event) event.Action { return f(ev) }
