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

// Package sandbox ties the platform probe, ptrace proxy, event queue,
// policy, watcher, and profiler together into one supervised execution:
// construct with New, validate with Check, run to completion with Execute,
// and always release resources with Close.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	multierror "github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/ironclad/sandbox/internal/equeue"
	"github.com/ironclad/sandbox/internal/event"
	"github.com/ironclad/sandbox/internal/manager"
	"github.com/ironclad/sandbox/internal/platform"
	"github.com/ironclad/sandbox/internal/policy"
	"github.com/ironclad/sandbox/internal/profiler"
	"github.com/ironclad/sandbox/internal/quota"
	"github.com/ironclad/sandbox/internal/rwcond"
	"github.com/ironclad/sandbox/internal/slog"
	"github.com/ironclad/sandbox/internal/task"
	"github.com/ironclad/sandbox/internal/traceproxy"
	"github.com/ironclad/sandbox/internal/watcher"
)

// Sandbox supervises one tracee for its entire lifetime: construction,
// validation, execution under ptrace, and teardown. A Sandbox runs one
// Execute: its event queue and BLK gate are not reset afterwards, and Close
// does not reset them either, so a second check/execute cycle on the same
// Sandbox is not supported.
type Sandbox struct {
	lock *rwcond.Lock // guards status/result/stat, per §3/§5

	task   task.Task
	policy policy.Policy

	status event.Status
	result event.Result

	pid     int
	cmd     *exec.Cmd
	proxy   *traceproxy.Proxy
	queue   *equeue.Queue
	sampler *profiler.Sampler
	cg      *quota.Enforcer

	registrant *manager.Registrant
	blocked    chan struct{}
	blockOnce  sync.Once

	log *slog.Logger
}

// Option configures a Sandbox at construction time.
type Option func(*Sandbox)

// WithCgroup attaches a cgroup-backed quota backstop alongside the procfs
// poll (SPEC_FULL.md §1.2). Pass nil (the default) to run with procfs
// polling alone.
func WithCgroup(cg *quota.Enforcer) Option {
	return func(s *Sandbox) { s.cg = cg }
}

// New constructs a Sandbox for t, installing pol (or the default blacklist
// policy if pol is nil) and setting status PRE.
func New(t task.Task, pol policy.Policy, opts ...Option) *Sandbox {
	if pol == nil {
		pol = policy.Default()
	}
	s := &Sandbox{
		lock:    rwcond.New(),
		task:    t,
		policy:  pol,
		status:  event.StatusPre,
		result:  event.ResultPD,
		queue:   equeue.New(),
		blocked: make(chan struct{}),
		log:     slog.New("sandbox"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Status returns the sandbox's current lifecycle status.
func (s *Sandbox) Status() event.Status {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.status
}

// Result returns the sandbox's terminal result, or ResultPD if Execute has
// not yet completed.
func (s *Sandbox) Result() event.Result {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.result
}

// Stat reports the peak CPU/memory samples the profiler observed, for a
// caller that wants to render a full wire.Result rather than just the
// terminal code. It returns the zero value before Execute has started
// sampling.
func (s *Sandbox) Stat() (cpuPeak time.Duration, vsizePeak uint64) {
	s.lock.RLock()
	sampler := s.sampler
	s.lock.RUnlock()
	if sampler == nil {
		return 0, 0
	}
	return sampler.CPUClockPeak(), sampler.VSizePeak()
}

func (s *Sandbox) setStatus(st event.Status) {
	s.lock.Lock()
	s.status = st
	s.lock.Unlock()
}

func (s *Sandbox) setResult(r event.Result) {
	s.lock.Lock()
	s.result = r
	s.lock.Unlock()
}

// Check validates the task description: identity, executable permissions,
// redirected fds, and jail path, transitioning status to RDY on success.
// Transient identity-lookup failures (e.g. a network-backed NSS module) are
// retried with a constant backoff before Check gives up.
func (s *Sandbox) Check(ctx context.Context) error {
	if err := s.task.Validate(); err != nil {
		return err
	}

	if s.task.UID != 0 {
		if s.task.Chroot != "" && s.task.Chroot != "/" {
			return fmt.Errorf("sandbox: only uid 0 may request a chroot jail")
		}
	}

	// Mirrors the constant-backoff-under-a-context-timeout idiom used
	// elsewhere to wait out transient lookups (e.g. a network-backed NSS
	// module): retry until lookupCtx expires, then give up. An unknown uid
	// is reported as-is rather than specially short-circuited, since the
	// 5-second ceiling already bounds how long a permanently-failing
	// lookup can stall Check.
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(100*time.Millisecond), lookupCtx)
	op := func() error {
		_, err := user.LookupId(strconv.FormatUint(uint64(s.task.UID), 10))
		return err
	}
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("sandbox: identity lookup for uid %d: %w", s.task.UID, err)
	}

	exe := s.task.Argv[0]
	info, err := os.Stat(exe)
	if err != nil {
		return fmt.Errorf("sandbox: executable %s: %w", exe, err)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return fmt.Errorf("sandbox: %s is not executable", exe)
	}
	if err := unix.Access(exe, unix.X_OK); err != nil {
		return fmt.Errorf("sandbox: %s not executable by configured identity: %w", exe, err)
	}

	s.setStatus(event.StatusRdy)
	return nil
}

// Execute forks the tracee, traces it to completion, and returns the
// terminal Result. It blocks until the tracee exits or a policy decision
// kills it. Execute must be called from a goroutine that can be pinned to
// an OS thread for the tracee's lifetime; internally it does so itself.
func (s *Sandbox) Execute(ctx context.Context) (event.Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	tracerDone := make(chan struct{})
	g.Go(func() error {
		defer close(tracerDone)
		return s.runTracer(gctx)
	})

	g.Go(func() error {
		select {
		case <-s.blocked:
		case <-tracerDone:
			return nil
		}
		// Stop the profiler once the watcher loop is done, so Run returns
		// and Execute can join it.
		go func() {
			<-tracerDone
			s.sampler.Stop()
		}()
		s.sampler.Run(s.blocked)
		return nil
	})

	err := g.Wait()
	return s.Result(), err
}

// runTracer is the single goroutine that forks, attaches, and drives the
// watcher loop. It pins itself to an OS thread for its entire lifetime,
// since Linux ptrace requires every request for a tracee to come from the
// thread that attached to it.
func (s *Sandbox) runTracer(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.cmd = exec.Command(s.task.Argv[0], s.task.Argv[1:]...)
	s.cmd.Stdin, s.cmd.Stdout, s.cmd.Stderr = s.task.Stdin, s.task.Stdout, s.task.Stderr
	s.cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:     true,
		Ptrace:     true,
		Chroot:     chrootOrEmpty(s.task.Chroot),
		Credential: &syscall.Credential{Uid: s.task.UID, Gid: s.task.GID},
	}

	if err := s.cmd.Start(); err != nil {
		s.setStatus(event.StatusFin)
		s.setResult(event.ResultIE)
		return fmt.Errorf("sandbox: start: %w", err)
	}
	s.pid = s.cmd.Process.Pid
	s.log.WithField("pid", s.pid).Infof("tracee started: %v", s.task.Argv)

	var ws unix.WaitStatus
	if _, err := unix.Wait4(s.pid, &ws, 0, nil); err != nil {
		s.setStatus(event.StatusFin)
		s.setResult(event.ResultIE)
		return fmt.Errorf("sandbox: initial wait: %w", err)
	}

	// The Go runtime has no hook to run arbitrary code between fork and
	// exec in the child (unlike the original's C fork-then-setrlimit
	// sequence), so RLIMIT_CORE/RLIMIT_FSIZE are applied here, from the
	// parent, via prlimit(2) against the freshly-exec'd but still-stopped
	// tracee — functionally equivalent, since the tracee cannot have
	// opened or written a file before this first trap.
	_ = unix.Prlimit(s.pid, unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0}, nil)
	if fsize := s.task.Quota.Get(event.QuotaDisk); fsize != task.Infinity {
		_ = unix.Prlimit(s.pid, unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: fsize, Max: fsize}, nil)
	}

	if s.cg != nil {
		_ = s.cg.Add(s.pid)
	}

	linuxProber := platform.NewLinuxProber()
	s.proxy = traceproxy.New()
	prober := &proxiedProber{inner: linuxProber, proxy: s.proxy, direct: true}

	s.sampler = profiler.New(s.pid, s.task.Quota, prober, s.queue, s.cg)
	s.registrant = &manager.Registrant{Sampler: s.sampler, PID: s.pid}
	mgr := manager.Get()
	mgr.Register(s.registrant)
	defer mgr.Unregister(s.registrant)

	loop := watcher.New(s.pid, prober, s.queue, s.policy)

	s.setStatus(event.StatusBlk)
	s.blockOnce.Do(func() { close(s.blocked) })

	if err := prober.Cont(s.pid, 0, false); err != nil {
		s.setStatus(event.StatusFin)
		s.setResult(event.ResultIE)
		return fmt.Errorf("sandbox: initial cont: %w", err)
	}

	result := loop.Run(s.wait4)
	s.log.WithField("pid", s.pid).Infof("trace finished with result %v", result)

	s.setResult(result)
	s.setStatus(event.StatusFin)
	s.proxy.Close()
	_ = s.reapZombies()

	if result == event.ResultIE {
		return fmt.Errorf("sandbox: internal error during trace")
	}
	return nil
}

func (s *Sandbox) wait4() (watcher.WaitOutcome, error) {
	var ws unix.WaitStatus
	_, err := unix.Wait4(s.pid, &ws, 0, nil)
	if err != nil {
		return watcher.WaitOutcome{}, err
	}
	switch {
	case ws.Exited():
		return watcher.WaitOutcome{Exited: true, ExitCode: ws.ExitStatus()}, nil
	case ws.Signaled():
		return watcher.WaitOutcome{Stopped: false, Signo: int(ws.Signal())}, nil
	case ws.Stopped():
		return watcher.WaitOutcome{Stopped: true, Signo: int(ws.StopSignal())}, nil
	default:
		return watcher.WaitOutcome{}, fmt.Errorf("sandbox: unrecognized wait status %v", ws)
	}
}

func (s *Sandbox) reapZombies() error {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return nil
		}
	}
}

// Close releases the sandbox's resources: the event queue, any cgroup
// backstop, and the profiler. It is idempotent and aggregates every
// teardown error encountered rather than stopping at the first.
func (s *Sandbox) Close() error {
	var result *multierror.Error

	// Most Close calls land on an already-FIN sandbox (the normal path: the
	// tracer goroutine transitions to FIN before Execute returns), so take
	// the read side first and only pay for the writer upgrade when a
	// transition is actually needed. Relock(true) gives up this reader slot
	// while it waits for other readers to drain, so another writer may run
	// first; the recheck after it covers that case.
	s.lock.RLock()
	if s.status != event.StatusFin {
		s.lock.Relock(true)
		if s.status != event.StatusFin {
			// fini(): idempotent; a sandbox that was never Execute'd keeps
			// its PD result (ResultBP is the watcher loop's own "policy
			// never decided" fallback, a different, unreachable-from-here
			// case).
			s.status = event.StatusFin
		}
		s.lock.Relock(false)
	}
	s.lock.RUnlock()

	s.queue.Clear()

	if s.sampler != nil {
		s.sampler.Stop()
	}
	if s.cg != nil {
		if err := s.cg.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.proxy != nil {
		s.proxy.Close()
	}

	return result.ErrorOrNil()
}

func chrootOrEmpty(path string) string {
	if path == "/" {
		return ""
	}
	return path
}
