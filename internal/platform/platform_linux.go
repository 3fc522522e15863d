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

//go:build linux && (amd64 || 386)

package platform

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// is386 is true when this binary was built for the 32-bit x86 ABI, in which
// case classifyOpcode's legacy-CS branch applies unconditionally.
var is386 = runtime.GOARCH == "386"

// procSuperMagic is PROC_SUPER_MAGIC, checked with Statfs before trusting a
// /proc/<pid> entry, matching libsandbox/src/platform.c's check_procfs.
const procSuperMagic = 0x9fa0

// LinuxProber is the real Prober backed by /proc and ptrace(2).
type LinuxProber struct{}

// NewLinuxProber returns the production Prober for Linux/x86.
func NewLinuxProber() *LinuxProber { return &LinuxProber{} }

var _ Prober = (*LinuxProber)(nil)

func checkProcfs() error {
	var st unix.Statfs_t
	if err := unix.Statfs("/proc", &st); err != nil {
		return fmt.Errorf("%w: %v", ErrNoProcfs, err)
	}
	if int64(st.Type) != procSuperMagic {
		return fmt.Errorf("%w: unexpected fs magic %#x", ErrNoProcfs, st.Type)
	}
	return nil
}

// remapESRCH turns "the /proc/<pid> directory vanished" into ESRCH, the
// convention the rest of the pipeline expects for "tracee is gone" rather
// than a generic ENOENT.
func remapESRCH(pid int, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("pid %d: %w", pid, unix.ESRCH)
	}
	return err
}

// Probe implements Prober.
func (p *LinuxProber) Probe(pid int, opts Option) (Snapshot, error) {
	var snap Snapshot
	snap.Pid = pid

	if opts&OptStat != 0 {
		if err := checkProcfs(); err != nil {
			return snap, err
		}
		path := fmt.Sprintf("/proc/%d/stat", pid)
		content, err := os.ReadFile(path)
		if err != nil {
			return snap, remapESRCH(pid, err)
		}
		if err := parseStat(string(content), &snap); err != nil {
			return snap, err
		}
	}

	if opts&OptRegs != 0 || opts&OptOp != 0 {
		var regs unix.PtraceRegs
		if err := unix.PtraceGetRegs(pid, &regs); err != nil {
			return snap, remapESRCH(pid, err)
		}
		snap.Regs = regsFromUnix(regs)
		if opts&OptOp != 0 {
			// The kernel reports RIP *after* the 2-byte syscall
			// instruction in syscall-stop mode; rewind it before reading
			// the opcode that trapped.
			addr := uintptr(snap.Regs.Rip)
			if !snap.SingleStep {
				addr -= 2
			}
			word, err := p.peekWord(pid, addr)
			if err != nil {
				return snap, err
			}
			snap.Op = word
		}
	}

	if opts&OptSigInfo != 0 {
		si, err := ptraceGetSiginfo(pid)
		if err != nil {
			return snap, remapESRCH(pid, err)
		}
		snap.SigInfo = si
	}

	return snap, nil
}

func regsFromUnix(r unix.PtraceRegs) Regs {
	return Regs{
		R15: r.R15, R14: r.R14, R13: r.R13, R12: r.R12,
		Rbp: r.Rbp, Rbx: r.Rbx, R11: r.R11, R10: r.R10,
		R9: r.R9, R8: r.R8, Rax: r.Rax, Rcx: r.Rcx,
		Rdx: r.Rdx, Rsi: r.Rsi, Rdi: r.Rdi,
		OrigRax: r.Orig_rax, Rip: r.Rip, Cs: r.Cs, Eflags: r.Eflags,
		Rsp: r.Rsp, Ss: r.Ss, FsBase: r.Fs_base, GsBase: r.Gs_base,
		Ds: r.Ds, Es: r.Es, Fs: r.Fs, Gs: r.Gs,
	}
}

func ptraceGetSiginfo(pid int) (SigInfo, error) {
	var raw struct {
		Signo, Errno, Code int32
		_                  [128 - 12]byte
	}
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETSIGINFO,
		uintptr(pid), 0, uintptr(unsafe.Pointer(&raw)), 0, 0)
	if errno != 0 {
		return SigInfo{}, errno
	}
	return SigInfo{Signo: raw.Signo, Errno: raw.Errno, Code: raw.Code}, nil
}

func (p *LinuxProber) peekWord(pid int, addr uintptr) (uint64, error) {
	var buf [8]byte
	n, err := unix.PtracePeekData(pid, addr, buf[:])
	if err != nil {
		return 0, remapESRCH(pid, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("peekWord: read %d bytes, want %d: %w", n, len(buf), unix.EFAULT)
	}
	return *(*uint64)(unsafe.Pointer(&buf[0])), nil
}

// Dump implements Prober. It copies memory in machine-word units, masking
// unaligned reads at the start and tail of the requested range, and
// reports EFAULT if any byte was already returned before a failing word
// read.
func (p *LinuxProber) Dump(pid int, addr uintptr, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	const wordSize = 8
	out := make([]byte, 0, length)

	start := addr &^ (wordSize - 1)
	skip := int(addr - start)
	cursor := start

	for len(out) < length+skip {
		var buf [wordSize]byte
		n, err := unix.PtracePeekData(pid, cursor, buf[:])
		if err != nil || n != wordSize {
			if len(out) > skip {
				// Partial success: report EFAULT per the spec's
				// partial-dump convention rather than the raw error.
				return out[skip:], fmt.Errorf("dump: partial read at %#x: %w", cursor, unix.EFAULT)
			}
			if err != nil {
				return nil, remapESRCH(pid, err)
			}
			return nil, fmt.Errorf("dump: short read at %#x: %w", cursor, unix.EFAULT)
		}
		out = append(out, buf[:]...)
		cursor += wordSize
	}

	end := skip + length
	if end > len(out) {
		end = len(out)
	}
	return out[skip:end], nil
}

// ABI implements Prober using the opcode/cs classification table, with an
// optional one-word vsyscall-follow rescan for a short relative jmp.
func (p *LinuxProber) ABI(snap Snapshot) ABIMode {
	mode := classifyOpcode(snap.Op, snap.Regs.Cs, is386)
	if mode != ABIUnknown {
		return mode
	}
	if next, ok := followVsyscall(snap.Op); ok {
		return classifyOpcode(next, snap.Regs.Cs, is386)
	}
	return ABIUnknown
}

// Cont implements Prober.
func (p *LinuxProber) Cont(pid int, signal int, singleStep bool) error {
	var err error
	if singleStep {
		err = unix.PtraceSingleStep(pid)
	} else {
		err = unix.PtraceSyscall(pid, signal)
	}
	return remapESRCH(pid, err)
}

// Detach implements Prober.
func (p *LinuxProber) Detach(pid int) error {
	return remapESRCH(pid, unix.PtraceDetach(pid))
}

// Kill implements Prober, including the "kill sanitation" procedure: before
// SIGKILL is delivered to a still-tracing child, the pending instruction
// word is rewritten to NOPs and, if a syscall is in flight, the syscall
// number is rewritten to SYS_pause (34 on x86_64, with the CS the tracee
// was already running under) so the doomed process cannot make forward
// progress between signal arming and kernel-level termination.
func (p *LinuxProber) Kill(pid int, sig int, snap Snapshot, sanitize bool) error {
	if sanitize {
		if err := p.sanitizeOpcode(pid, snap); err != nil {
			// Best-effort: log-worthy, but still deliver the kill.
			_ = err
		}
	}
	return unix.Kill(pid, unix.Signal(sig))
}

const (
	opNop      = 0x90
	sysPause   = 34 // SYS_pause on x86_64
	sysPause32 = 29 // SYS_pause, i386 table
)

func (p *LinuxProber) sanitizeOpcode(pid int, snap Snapshot) error {
	addr := uintptr(snap.Regs.Rip)
	if !snap.SingleStep {
		addr -= 2
	}
	nopWord := [8]byte{opNop, opNop, opNop, opNop, opNop, opNop, opNop, opNop}
	if _, err := unix.PtracePokeData(pid, addr, nopWord[:]); err != nil {
		return err
	}

	mode := classifyOpcode(snap.Op, snap.Regs.Cs, is386)
	if mode == ABIUnknown {
		return nil
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	if mode == ABICompat {
		regs.Rax = sysPause32
	} else {
		regs.Orig_rax = sysPause
	}
	return unix.PtraceSetRegs(pid, &regs)
}
