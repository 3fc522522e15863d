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

// Package event defines the tagged-union types that flow between the
// watcher, the profiler, and the policy engine: events observed on a
// tracee, the actions a policy returns in response, and the small set of
// enums (status, result, quota kind) that describe a sandbox's lifecycle.
package event

import "fmt"

// ABIMode distinguishes the calling convention a traced syscall used.
type ABIMode uint8

const (
	// ABINative is the 64-bit syscall convention (cs == 0x33 after a
	// `syscall` instruction on x86_64).
	ABINative ABIMode = iota
	// ABICompat is the 32-bit compatibility convention (`int 0x80`,
	// `sysenter`, or `syscall` with cs == 0x23).
	ABICompat
	// ABIUnknown is returned when the opcode preceding the trap could not
	// be classified, including vsyscall-follow failures past a jmp the
	// decoder does not recognize.
	ABIUnknown
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

// SyscallInfo packs a syscall number together with the ABI mode it was
// issued under, matching the spec's "scinfo" word.
type SyscallInfo struct {
	Number int64
	ABI    ABIMode
}

func (s SyscallInfo) String() string {
	return fmt.Sprintf("%d/%s", s.Number, s.ABI)
}

// QuotaKind identifies which quota a QUOTA event is reporting against.
type QuotaKind uint8

const (
	QuotaWallClock QuotaKind = iota
	QuotaCPU
	QuotaMemory
	QuotaDisk
)

func (k QuotaKind) String() string {
	switch k {
	case QuotaWallClock:
		return "wallclock"
	case QuotaCPU:
		return "cpu"
	case QuotaMemory:
		return "memory"
	case QuotaDisk:
		return "disk"
	default:
		return "quota(?)"
	}
}

// Type discriminates the Event union.
type Type uint8

const (
	TypeError Type = iota
	TypeExit
	TypeSignal
	TypeSyscall
	TypeSysret
	TypeQuota
)

func (t Type) String() string {
	switch t {
	case TypeError:
		return "ERROR"
	case TypeExit:
		return "EXIT"
	case TypeSignal:
		return "SIGNAL"
	case TypeSyscall:
		return "SYSCALL"
	case TypeSysret:
		return "SYSRET"
	case TypeQuota:
		return "QUOTA"
	default:
		return "EVENT(?)"
	}
}

// Event is the tagged union of everything the watcher and profiler can post
// to a sandbox's event queue. Only the fields relevant to Type are
// meaningful; the zero value of the others is ignored by consumers.
type Event struct {
	Type Type

	// ERROR
	Errno  error
	Origin string

	// EXIT
	ExitCode int

	// SIGNAL
	Signo int
	Code  int

	// SYSCALL / SYSRET
	SC     SyscallInfo
	Args   [6]uint64
	RetVal uint64

	// QUOTA
	Quota QuotaKind
}

func (e Event) String() string {
	switch e.Type {
	case TypeError:
		return fmt.Sprintf("ERROR(origin=%s, err=%v)", e.Origin, e.Errno)
	case TypeExit:
		return fmt.Sprintf("EXIT(code=%d)", e.ExitCode)
	case TypeSignal:
		return fmt.Sprintf("SIGNAL(signo=%d, code=%d)", e.Signo, e.Code)
	case TypeSyscall:
		return fmt.Sprintf("SYSCALL(%s, args=%v)", e.SC, e.Args)
	case TypeSysret:
		return fmt.Sprintf("SYSRET(%s, ret=%d)", e.SC, e.RetVal)
	case TypeQuota:
		return fmt.Sprintf("QUOTA(%s)", e.Quota)
	default:
		return e.Type.String()
	}
}

// ActionType discriminates the Action union.
type ActionType uint8

const (
	ActionCont ActionType = iota
	ActionFini
	ActionKill
)

func (a ActionType) String() string {
	switch a {
	case ActionCont:
		return "CONT"
	case ActionFini:
		return "FINI"
	case ActionKill:
		return "KILL"
	default:
		return "ACTION(?)"
	}
}

// Action is the tagged union a Policy returns for a given Event.
type Action struct {
	Type   ActionType
	Result Result
}

func (a Action) String() string {
	if a.Type == ActionCont {
		return "CONT"
	}
	return fmt.Sprintf("%s(%s)", a.Type, a.Result)
}

// Cont is the shared CONT action value.
var Cont = Action{Type: ActionCont}

// Fini builds a FINI(result) action.
func Fini(r Result) Action { return Action{Type: ActionFini, Result: r} }

// Kill builds a KILL(result) action.
func Kill(r Result) Action { return Action{Type: ActionKill, Result: r} }

// Status is a sandbox's position in the PRE→RDY→EXE⇄BLK→FIN lifecycle DAG.
type Status uint8

const (
	StatusPre Status = iota
	StatusRdy
	StatusExe
	StatusBlk
	StatusFin
)

func (s Status) String() string {
	switch s {
	case StatusPre:
		return "PRE"
	case StatusRdy:
		return "RDY"
	case StatusExe:
		return "EXE"
	case StatusBlk:
		return "BLK"
	case StatusFin:
		return "FIN"
	default:
		return "STATUS(?)"
	}
}

// Result is the terminal outcome code reported by Sandbox.Execute, encoded
// 0..15 as in the library surface this was distilled from.
type Result uint8

const (
	ResultPD Result = iota // pending, no result yet
	ResultOK
	ResultRF // restricted function (disallowed syscall)
	ResultML // memory limit
	ResultOL // output limit (disk quota)
	ResultTL // time limit (wallclock or cpu)
	ResultRT // runtime signal
	ResultAT // abnormal termination
	ResultIE // internal error
	ResultBP // bad policy (no decision reached)
	ResultR0
	ResultR1
	ResultR2
	ResultR3
	ResultR4
	ResultR5
)

func (r Result) String() string {
	switch r {
	case ResultPD:
		return "PD"
	case ResultOK:
		return "OK"
	case ResultRF:
		return "RF"
	case ResultML:
		return "ML"
	case ResultOL:
		return "OL"
	case ResultTL:
		return "TL"
	case ResultRT:
		return "RT"
	case ResultAT:
		return "AT"
	case ResultIE:
		return "IE"
	case ResultBP:
		return "BP"
	default:
		return fmt.Sprintf("R%d", int(r)-int(ResultR0))
	}
}
