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

// Package manager implements the single process-wide ticker that drives
// every registered sandbox's profiler: a discrete PID controller paces a
// broadcast of STAT (20 Hz) and PROF (100 Hz) ticks, and the manager
// captures SIGTERM/SIGQUIT/SIGINT for forwarding to every registered
// tracee; Stop sends SIGKILL to every registered tracee at shutdown.
//
// The original is started by a __attribute__((constructor)) at library
// load; Go has no load-time-constructor equivalent that can safely launch
// goroutines ahead of main, so the manager is started lazily by the first
// call to Get (guarded by sync.Once).
package manager

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/ironclad/sandbox/internal/profiler"
	"github.com/ironclad/sandbox/internal/slog"
)

const (
	profFreq = 100 // Hz
	statFreq = 20  // Hz, every 5th PROF tick
	cycle    = time.Second / profFreq

	mvMin = cycle / 2
	mvMax = cycle

	// PID controller gains, matching libsandbox/src/sandbox.c's
	// sandbox_manager exactly.
	kp = 0.75
	ki = 0.25
	kd = 0.0
)

// Registrant is anything the manager ticks: a profiler plus the kill
// target used when forwarding an external signal or broadcasting shutdown.
type Registrant struct {
	Sampler *profiler.Sampler
	PID     int
}

// Manager is the process-wide singleton ticker.
type Manager struct {
	mu        sync.Mutex
	sandboxes map[*Registrant]struct{}

	tickCount uint64

	limiter *rate.Limiter

	sigCh chan os.Signal
	stop  chan struct{}
	wg    sync.WaitGroup

	log *slog.Logger
}

var (
	singleton     *Manager
	singletonOnce sync.Once
)

// Get returns the process-wide Manager, starting it on first use.
func Get() *Manager {
	singletonOnce.Do(func() {
		singleton = newManager()
		singleton.start()
	})
	return singleton
}

func newManager() *Manager {
	return &Manager{
		sandboxes: make(map[*Registrant]struct{}),
		limiter:   rate.NewLimiter(rate.Limit(profFreq*2), 4),
		sigCh:     make(chan os.Signal, 8),
		stop:      make(chan struct{}),
		log:       slog.New("manager"),
	}
}

// Register adds r to the broadcast set.
func (m *Manager) Register(r *Registrant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sandboxes[r] = struct{}{}
}

// Unregister removes r from the broadcast set.
func (m *Manager) Unregister(r *Registrant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sandboxes, r)
}

func (m *Manager) start() {
	signal.Notify(m.sigCh, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	m.wg.Add(1)
	go m.run()
}

// Stop halts the ticker and signal forwarding. Primarily for tests; a
// production process normally lets the manager live for the process
// lifetime and relies on process exit to clean it up.
func (m *Manager) Stop() {
	close(m.stop)
	m.wg.Wait()
	signal.Stop(m.sigCh)
}

func (m *Manager) run() {
	defer m.wg.Done()

	sleep := cycle
	var lastTick time.Time

	for {
		timer := time.NewTimer(sleep)
		select {
		case <-m.stop:
			timer.Stop()
			m.broadcastKill()
			return

		case sig := <-m.sigCh:
			timer.Stop()
			m.forward(sig)
			continue

		case now := <-timer.C:
			sleep = m.controlLoop(now, lastTick)
			lastTick = now
			m.broadcastTick()
		}
	}
}

// controlLoop is the discrete PID controller: set point is one cycle,
// clamped to twice the monotonic clock resolution (approximated here as
// time.Nanosecond's practical floor, since Go exposes no direct clock_getres
// equivalent); output clamped to [cycle/2, cycle].
func (m *Manager) controlLoop(now, last time.Time) time.Duration {
	if last.IsZero() {
		return cycle
	}
	interval := now.Sub(last)
	errTerm := cycle - interval

	mv := cycle + time.Duration(kp*float64(errTerm)+ki*float64(errTerm))
	if mv < mvMin {
		mv = mvMin
	}
	if mv > mvMax {
		mv = mvMax
	}
	return mv
}

func (m *Manager) broadcastTick() {
	if !m.limiter.Allow() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tickCount++
	for r := range m.sandboxes {
		r.Sampler.Notify(profiler.TickPROF)
		if m.tickCount%(profFreq/statFreq) == 0 {
			r.Sampler.Notify(profiler.TickSTAT)
		}
	}
}

// forward relays an external SIGTERM/SIGQUIT/SIGINT to every registered
// tracee by sending the same signal to its PID with kill(2); it does not
// route through the sandbox's profiler.
func (m *Manager) forward(sig os.Signal) {
	m.log.Infof("forwarding %v to %d registered sandboxes", sig, len(m.sandboxes))
	m.mu.Lock()
	defer m.mu.Unlock()
	for r := range m.sandboxes {
		if sc, ok := sig.(syscall.Signal); ok {
			_ = syscall.Kill(r.PID, sc)
		}
	}
}

// broadcastKill runs on Stop: every registered sandbox's tracee is sent
// SIGKILL and its profiler is stopped.
func (m *Manager) broadcastKill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for r := range m.sandboxes {
		_ = syscall.Kill(r.PID, syscall.SIGKILL)
		r.Sampler.Stop()
	}
}
