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

// Package profiler implements the per-sandbox signal-driven resource
// sampler: it reacts to STAT and PROF ticks from the manager, reads
// procfs (and, when available, a quota.Enforcer's cgroup accounting) for
// memory/page-fault counters and CPU clock, and posts QUOTA events when a
// configured limit is exceeded.
package profiler

import (
	"sync"
	"time"

	"github.com/ironclad/sandbox/internal/equeue"
	"github.com/ironclad/sandbox/internal/event"
	"github.com/ironclad/sandbox/internal/platform"
	"github.com/ironclad/sandbox/internal/quota"
	"github.com/ironclad/sandbox/internal/task"
)

// Tick identifies which signal the manager sent.
type Tick uint8

const (
	TickSTAT Tick = iota
	TickPROF
	TickEXIT
)

// Kicker stops and resumes the tracee to force the watcher out of a
// blocking wait once a quota has been posted, matching the original's
// SIGSTOP-then-SIGCONT "kick". It is a narrow slice of Prober so tests can
// fake it independent of a full platform.Prober.
type Kicker interface {
	Kill(pid int, sig int, snap platform.Snapshot, sanitize bool) error
}

// Sampler is the per-instance profiler.
type Sampler struct {
	pid    int
	quotas task.Quotas
	prober platform.Prober
	kicker Kicker
	queue  *equeue.Queue
	cg     *quota.Enforcer // optional cgroup-backed second sample source

	mu              sync.Mutex
	started         time.Time
	statMasked      bool
	profMasked      bool
	cpuClockPeak    time.Duration
	vsizePeak       uint64
	startedObserved bool

	ticks chan Tick
	done  chan struct{}
}

// New constructs a Sampler for pid. cg may be nil if no cgroup-backed
// backstop is configured.
func New(pid int, quotas task.Quotas, prober platform.Prober, queue *equeue.Queue, cg *quota.Enforcer) *Sampler {
	return &Sampler{
		pid:    pid,
		quotas: quotas,
		prober: prober,
		kicker: prober,
		queue:  queue,
		cg:     cg,
		ticks:  make(chan Tick, 8),
		done:   make(chan struct{}),
	}
}

// Notify delivers a tick, standing in for sigwaitinfo({EXIT, STAT, PROF})
// in the original: the manager sends directly on this channel instead of
// routing through pthread_kill/pthread_sigqueue.
func (s *Sampler) Notify(t Tick) {
	select {
	case s.ticks <- t:
	case <-s.done:
	}
}

// Stop terminates Run. Calling it again has no further effect.
func (s *Sampler) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Run blocks, waiting for BLK (the caller closes blocked once the tracee
// has reached execve; ticks that arrive earlier stay queued) before sampling
// begins, matching the "profiling starts only after the first BLK"
// contract: memory readings must reflect the tracee's own address space,
// not the forked copy prior to execve.
func (s *Sampler) Run(blocked <-chan struct{}) {
	select {
	case <-blocked:
	case <-s.done:
		return
	}

	for {
		select {
		case t := <-s.ticks:
			switch t {
			case TickSTAT:
				s.sampleStat()
				s.sampleCPU()
			case TickPROF:
				s.sampleCPU()
			case TickEXIT:
				// EXIT ticks carrying a forwarded signal are handled by
				// the manager directly; the profiler only needs to wake
				// up and re-check done.
			}
		case <-s.done:
			return
		}
	}
}

func (s *Sampler) sampleStat() {
	s.mu.Lock()
	if s.statMasked {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	snap, err := s.prober.Probe(s.pid, platform.OptStat)
	if err != nil {
		s.queue.Push(event.Event{Type: event.TypeError, Origin: "profiler.stat", Errno: err})
		return
	}

	s.mu.Lock()
	if snap.VSize > s.vsizePeak {
		s.vsizePeak = snap.VSize
	}
	vsizePeak := s.vsizePeak
	if !s.startedObserved {
		s.started = time.Now()
		s.startedObserved = true
	}
	elapsed := time.Since(s.started)
	s.mu.Unlock()

	if cg := s.cg; cg != nil {
		if u, err := cg.Sample(); err == nil && u.MemoryUsage > vsizePeak {
			s.mu.Lock()
			if u.MemoryUsage > s.vsizePeak {
				s.vsizePeak = u.MemoryUsage
				vsizePeak = u.MemoryUsage
			}
			s.mu.Unlock()
		}
	}

	// A policy is free to CONT past a QUOTA event (the caller-supplied
	// closure form); once either limit has fired once, mask further STAT
	// sampling so an ignored breach cannot keep pushing QUOTA events into
	// the bounded queue every tick.
	if q := s.quotas.Get(event.QuotaMemory); q != ^uint64(0) && vsizePeak > q {
		s.mu.Lock()
		s.statMasked = true
		s.mu.Unlock()
		s.postQuotaAndKick(event.QuotaMemory, snap)
		return
	}
	if q := s.quotas.Get(event.QuotaWallClock); q != ^uint64(0) && uint64(elapsed.Milliseconds()) > q {
		s.mu.Lock()
		s.statMasked = true
		s.mu.Unlock()
		s.postQuotaAndKick(event.QuotaWallClock, snap)
	}
}

func (s *Sampler) sampleCPU() {
	s.mu.Lock()
	if s.profMasked {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	snap, err := s.prober.Probe(s.pid, platform.OptStat)
	if err != nil {
		s.queue.Push(event.Event{Type: event.TypeError, Origin: "profiler.cpu", Errno: err})
		return
	}

	cpuClock := snap.UTime + snap.STime

	s.mu.Lock()
	if cpuClock > s.cpuClockPeak {
		s.cpuClockPeak = cpuClock
	}
	peak := s.cpuClockPeak
	s.mu.Unlock()

	if q := s.quotas.Get(event.QuotaCPU); q != ^uint64(0) && uint64(peak.Milliseconds()) > q {
		s.mu.Lock()
		s.profMasked = true
		s.mu.Unlock()
		s.postQuotaAndKick(event.QuotaCPU, snap)
	}
}

// postQuotaAndKick posts a QUOTA event then forces the watcher out of its
// blocking wait with a SIGSTOP/SIGCONT pair, matching the original's
// "kick" so the event queue drains promptly instead of waiting for the
// next natural ptrace stop.
func (s *Sampler) postQuotaAndKick(kind event.QuotaKind, snap platform.Snapshot) {
	s.queue.Push(event.Event{Type: event.TypeQuota, Quota: kind})
	const sigSTOP, sigCONT = 19, 18
	_ = s.kicker.Kill(s.pid, sigSTOP, snap, false)
	_ = s.kicker.Kill(s.pid, sigCONT, snap, false)
}

// CPUClockPeak and VSizePeak report the monotone-max samples observed so
// far, for the façade's final Stat record.
func (s *Sampler) CPUClockPeak() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cpuClockPeak
}

func (s *Sampler) VSizePeak() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vsizePeak
}
