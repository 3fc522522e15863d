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

// Package platform reads process statistics out of procfs, issues raw
// ptrace operations, classifies the syscall ABI a tracee last used, and
// copies tracee memory word by word. It is the lowest layer of the
// supervisor: everything else observes a tracee only through a Prober.
package platform

import (
	"errors"
	"fmt"
	"time"
)

// Option selects which parts of a Snapshot Probe should populate, mirroring
// the original's probe_option_t bitmask.
type Option uint8

const (
	OptStat Option = 1 << iota
	OptRegs
	OptOp
	OptSigInfo
)

// SigInfo is the subset of siginfo_t the watcher and profiler need.
type SigInfo struct {
	Signo int32
	Errno int32
	Code  int32
}

// Regs is the architecture register file, shaped to match
// golang.org/x/sys/unix.PtraceRegs on amd64 so LinuxProber can populate it
// directly from PtraceGetRegs without a translation step.
type Regs struct {
	R15, R14, R13, R12, Rbp, Rbx, R11, R10 uint64
	R9, R8, Rax, Rcx, Rdx, Rsi, Rdi        uint64
	OrigRax, Rip, Cs, Eflags, Rsp, Ss      uint64
	FsBase, GsBase, Ds, Es, Fs, Gs         uint64
}

// Snapshot is the ephemeral, point-in-time view of a tracee that Watcher
// and Profiler build their decisions from.
type Snapshot struct {
	Pid, Ppid  int
	State      byte
	Flags      uint32
	UTime      time.Duration
	STime      time.Duration
	MinFlt     uint64
	MajFlt     uint64
	VSize      uint64
	RSS        uint64
	StartCode  uint64
	EndCode    uint64
	StartStack uint64

	Regs    Regs
	SigInfo SigInfo

	// Op is the last-read pending instruction word, used by ABI
	// classification and by kill sanitation.
	Op uint64

	// SingleStep records whether the tracer is single-stepping this
	// tracee rather than using PTRACE_SYSCALL, which changes how OP and
	// SIGTRAP are interpreted (see ABI and the watcher's trap
	// classification).
	SingleStep bool
}

// Prober is the seam between the trace loop and the kernel: everything the
// watcher and profiler need to know about a tracee goes through it, so
// tests can supply a fake that replays a fixed sequence of snapshots
// without a live kernel tracee.
type Prober interface {
	// Probe reads the requested parts of pid's state into a Snapshot.
	Probe(pid int, opts Option) (Snapshot, error)
	// Dump copies len bytes of tracee memory starting at addr.
	Dump(pid int, addr uintptr, length int) ([]byte, error)
	// ABI classifies the syscall ABI mode of the last trap recorded in
	// snap, following an optional vsyscall trampoline.
	ABI(snap Snapshot) ABIMode
	// Cont resumes the tracee, stopping again at the next syscall
	// boundary (PTRACE_SYSCALL) or after one instruction
	// (PTRACE_SINGLESTEP), depending on singleStep.
	Cont(pid int, signal int, singleStep bool) error
	// Kill sends sig to pid, performing kill sanitation first when
	// sanitize is true (see SanitizeKill).
	Kill(pid int, sig int, snap Snapshot, sanitize bool) error
	// Detach releases pid from tracing so it can run unsupervised or be
	// reaped normally.
	Detach(pid int) error
}

// ABIMode mirrors event.ABIMode; platform defines its own copy so this
// package has no dependency on the event package, keeping the probe/ABI
// layer usable independent of the event pipeline.
type ABIMode uint8

const (
	ABINative ABIMode = iota
	ABICompat
	ABIUnknown
)

// Opcode values ABI inspects, matching libsandbox/src/platform.h's
// OP_SYSCALL/OP_SYSENTER/OP_INT80 and the vsyscall-follow jmp forms. Each
// value is the instruction's two bytes as they read in the low 16 bits of a
// little-endian word.
const (
	opSyscall  = 0x050F // `syscall`, two-byte opcode 0F 05
	opSysenter = 0x340F // `sysenter`, two-byte opcode 0F 34
	opInt80    = 0x80CD // `int 0x80`, two-byte opcode CD 80

	csNative64 = 0x33
	csCompat32 = 0x23
)

var (
	// ErrNoProcfs is returned when /proc is not mounted or does not carry
	// the expected PROC_SUPER_MAGIC.
	ErrNoProcfs = errors.New("platform: procfs unavailable")
	// ErrParse is returned when /proc/<pid>/stat cannot be parsed into
	// the expected field layout.
	ErrParse = errors.New("platform: failed to parse /proc/<pid>/stat")
)

func (m ABIMode) String() string {
	switch m {
	case ABINative:
		return "native"
	case ABICompat:
		return "compat"
	default:
		return "unknown"
	}
}

// classifyOpcode is the pure decision table behind ABI: given the last
// instruction's opcode and the CS selector active when it trapped,
// determine the ABI mode. Factored out of LinuxProber.ABI so it can be
// unit tested without a kernel.
func classifyOpcode(op uint64, cs uint64, is386 bool) ABIMode {
	if is386 {
		// Any legacy CS value on i386 means 32-bit, full stop.
		return ABICompat
	}
	switch uint64(op & 0xFFFF) {
	case opSyscall:
		if cs == csNative64 {
			return ABINative
		}
		if cs == csCompat32 {
			return ABICompat
		}
		return ABIUnknown
	case opSysenter, opInt80:
		return ABICompat
	default:
		return ABIUnknown
	}
}

// followVsyscall recognizes a short relative jmp (opcodes 0xEB rel8 or 0xE9
// rel32) at the front of op and returns op with that one opcode byte
// shifted out, so the bytes after it in the same word are rescanned as the
// next candidate opcode. The displacement is not applied and the jump
// target is not read. ok is false for any other leading opcode,
// in which case the caller should treat the ABI as ABIUnknown per
// SPEC_FULL.md's Open Question resolution.
func followVsyscall(op uint64) (next uint64, ok bool) {
	b0 := byte(op)
	switch b0 {
	case 0xEB: // jmp rel8
		return op >> 8, true
	case 0xE9: // jmp rel32
		return op >> 8, true
	default:
		return 0, false
	}
}

// maskWord returns a status string purely for diagnostic/log use when a
// Dump partially succeeds; kept tiny and dependency-free.
func maskWord(addr uintptr) string {
	return fmt.Sprintf("word@0x%x", addr)
}
