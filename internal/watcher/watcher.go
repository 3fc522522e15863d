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

// Package watcher implements the main trace loop: wait for the tracee to
// stop, classify why, post events, drain the event queue against the
// policy, perform the resulting action, and reschedule. This is the
// highest-traffic component in the supervisor and the one every other
// component (platform, traceproxy, equeue, policy) exists to serve.
package watcher

import (
	"github.com/ironclad/sandbox/internal/equeue"
	"github.com/ironclad/sandbox/internal/event"
	"github.com/ironclad/sandbox/internal/platform"
	"github.com/ironclad/sandbox/internal/policy"
)

const (
	sigSTOP  = 19
	sigCONT  = 18
	sigTRAP  = 5
	sigXFSZ  = 25
	sigKILL  = 9

	siUser = 0 // SI_USER
)

// scEntry is one level of the syscall-nesting stack: a syscall number/ABI
// pair pushed on entry and popped on the matching return.
type scEntry struct {
	info event.SyscallInfo
}

// Loop is the watcher's trace loop for one tracee.
type Loop struct {
	pid    int
	prober platform.Prober
	queue  *equeue.Queue
	pol    policy.Policy

	singleStep bool

	// inSyscall mirrors the original's tflags.is_in_syscall: true between a
	// single-step syscall-entry trap and its matching return trap. It
	// selects which register THE_SYSCALL reads (Rax at entry, before
	// orig_rax is populated, versus OrigRax everywhere else) and whether a
	// non-syscall-opcode trap is a sysret.
	inSyscall bool

	scStack []scEntry

	notWaitExecve bool // latches true on first non-execve syscall entry

	lastSignal event.Event

	Status event.Status
	Result event.Result
}

// Option configures a Loop.
type Option func(*Loop)

// WithSingleStep selects PTRACE_SINGLESTEP rescheduling over the default
// PTRACE_SYSCALL, for software-TSC CPU accounting on kernels/architectures
// where syscall-stop tracing under-counts instructions.
func WithSingleStep(v bool) Option {
	return func(l *Loop) { l.singleStep = v }
}

// New constructs a Loop for pid.
func New(pid int, prober platform.Prober, queue *equeue.Queue, pol policy.Policy, opts ...Option) *Loop {
	l := &Loop{
		pid:    pid,
		prober: prober,
		queue:  queue,
		pol:    pol,
		Status: event.StatusExe,
		Result: event.ResultPD,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// WaitOutcome is the classification of one waitid/wait4 stop. It is
// exported so a caller outside this package (the façade that actually owns
// the kernel wait4 call) can construct it without this package needing to
// know anything about unix.WaitStatus.
type WaitOutcome struct {
	Exited   bool
	ExitCode int
	Signaled bool
	Stopped  bool
	Signo    int
}

// Run drives the loop until a terminal action is committed or the tracee
// is reaped, then returns the final Result.
func (l *Loop) Run(wait func() (WaitOutcome, error)) event.Result {
	for {
		wr, err := wait()
		if err != nil {
			l.postError("watcher.wait", err)
			l.drainAndAct()
			break
		}

		l.Status = event.StatusBlk

		if wr.Exited {
			l.queue.Push(event.Event{Type: event.TypeExit, ExitCode: wr.ExitCode})
			if l.drainAndAct() {
				break
			}
			// The tracee is gone; there is nothing left to reschedule.
			break
		}

		snap, err := l.prober.Probe(l.pid, platform.OptSigInfo|platform.OptRegs|platform.OptOp)
		if err != nil {
			l.postError("watcher.siginfo", err)
			if l.drainAndAct() {
				break
			}
			continue
		}
		snap.SingleStep = l.singleStep

		l.classify(wr, snap)

		if l.drainAndAct() {
			break
		}

		if err := l.prober.Cont(l.pid, 0, l.singleStep); err != nil {
			l.postError("watcher.cont", err)
			if l.drainAndAct() {
				break
			}
		}
		l.Status = event.StatusExe
	}

	l.Status = event.StatusFin
	if l.Result == event.ResultPD {
		l.Result = event.ResultBP
	}
	return l.Result
}

func (l *Loop) postError(origin string, err error) {
	l.queue.Push(event.Event{Type: event.TypeError, Origin: origin, Errno: err})
}

// classify implements step 4 of the spec's watcher contract: determine why
// the tracee stopped and post the matching event.
func (l *Loop) classify(wr WaitOutcome, snap platform.Snapshot) {
	if !wr.Stopped {
		// Killed/dumped by an uncaught signal: report it directly.
		l.queue.Push(event.Event{Type: event.TypeSignal, Signo: wr.Signo, Code: int(snap.SigInfo.Code)})
		l.lastSignal = event.Event{Type: event.TypeSignal, Signo: wr.Signo}
		return
	}

	switch wr.Signo {
	case sigXFSZ:
		// Always treated as a disk quota notice regardless of si_code:
		// kernels <= 3.2 mislabel it as SI_USER, and the spec's resolved
		// Open Question keeps the conservative unconditional mapping.
		l.queue.Push(event.Event{Type: event.TypeQuota, Quota: event.QuotaDisk})
		l.lastSignal = event.Event{Type: event.TypeSignal, Signo: wr.Signo}
		return

	case sigTRAP:
		var isSyscall, isSysret bool
		if l.singleStep {
			// In single-step mode, syscall-ness is decided by opcode
			// inspection rather than si_code: an entry opcode is always a
			// syscall trap, and a non-entry opcode is a sysret only if a
			// syscall is currently open (mirrors IS_SYSCALL/IS_SYSRET).
			opcodeIsEntry := isLikelySyscallOpcode(snap.Op)
			isSyscall = opcodeIsEntry
			isSysret = !opcodeIsEntry && l.inSyscall
		} else {
			isSyscall = int32(snap.SigInfo.Code) != siUser
			isSysret = isSyscall
		}
		if isSyscall || isSysret {
			l.handleSyscallTrap(snap)
			return
		}
		if int32(snap.SigInfo.Code) != siUser || l.notWaitExecve {
			l.queue.Push(event.Event{Type: event.TypeSignal, Signo: wr.Signo, Code: int(snap.SigInfo.Code)})
		}
		// Otherwise this is the synthetic post-execve SIGTRAP and is
		// silently suppressed per the spec.
		return

	default:
		l.queue.Push(event.Event{Type: event.TypeSignal, Signo: wr.Signo, Code: int(snap.SigInfo.Code)})
		l.lastSignal = event.Event{Type: event.TypeSignal, Signo: wr.Signo}
	}
}

func isLikelySyscallOpcode(op uint64) bool {
	switch op & 0xFFFF {
	case 0x050F, 0x340F, 0x80CD:
		return true
	default:
		return false
	}
}

// handleSyscallTrap maintains the syscall-nesting stack: a trap whose
// (number, abi) matches the top of the stack is treated as the matching
// return; any other trap is a new entry.
func (l *Loop) handleSyscallTrap(snap platform.Snapshot) {
	abi := l.prober.ABI(snap)
	// THE_SYSCALL: at a single-step entry trap orig_rax has not been
	// populated by the kernel yet, so the syscall number has to come from
	// Rax instead; every other trap (syscall-stop mode, or a single-step
	// return trap) reads OrigRax.
	num := snap.Regs.OrigRax
	if l.singleStep && !l.inSyscall {
		num = snap.Regs.Rax
	}
	// Unknown ABI is itself reported as a SYSCALL event so the policy can
	// see and kill it (the default policy kills on ABIUnknown).
	sc := event.SyscallInfo{Number: int64(num), ABI: event.ABIMode(abi)}

	if len(l.scStack) > 0 && l.scStack[len(l.scStack)-1].info == sc {
		top := l.scStack[len(l.scStack)-1]
		l.scStack = l.scStack[:len(l.scStack)-1]
		l.inSyscall = false
		l.queue.Push(event.Event{Type: event.TypeSysret, SC: top.info, RetVal: snap.Regs.Rax})
		return
	}

	l.scStack = append(l.scStack, scEntry{info: sc})
	l.inSyscall = true
	if !l.notWaitExecve && sc.Number != 59 /* SYS_execve, amd64 */ {
		l.notWaitExecve = true
	}

	var args [6]uint64
	args[0], args[1], args[2] = snap.Regs.Rdi, snap.Regs.Rsi, snap.Regs.Rdx
	args[3], args[4], args[5] = snap.Regs.R10, snap.Regs.R8, snap.Regs.R9
	l.queue.Push(event.Event{Type: event.TypeSyscall, SC: sc, Args: args})
}

// drainAndAct consults the policy for every queued event and performs the
// resulting action. It returns true if a terminal action (FINI or KILL)
// was committed, in which case Run should stop looping.
func (l *Loop) drainAndAct() bool {
	terminal := false
	for {
		ev, ok := l.queue.Pop()
		if !ok {
			break
		}
		action := l.pol.Decide(ev)
		switch action.Type {
		case event.ActionCont:
			// Drop the event; nothing further to do.
		case event.ActionFini, event.ActionKill:
			l.Result = action.Result
			l.queue.CloseForResult()
			snap, _ := l.prober.Probe(l.pid, platform.OptRegs|platform.OptOp)
			_ = l.prober.Kill(l.pid, sigKILL, snap, true)
			terminal = true
		}
		if terminal {
			break
		}
	}
	return terminal
}
