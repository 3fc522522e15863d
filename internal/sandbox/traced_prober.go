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

package sandbox

import (
	"github.com/ironclad/sandbox/internal/platform"
	"github.com/ironclad/sandbox/internal/traceproxy"
)

// proxiedProber routes every Prober call through a traceproxy.Proxy, so the
// invariant "exactly one thread performs ptrace; everyone else marshals
// through a proxy" holds even though platform.LinuxProber itself has no
// notion of a proxy. The watcher loop, which always runs on the goroutine
// that attached to the tracee, gets a proxiedProber with direct=true
// (DoDirect, inline); any
// future caller issuing a Dump or Probe from outside that goroutine — e.g. a
// debug command inspecting a still-running tracee — would get a proxied
// Prober constructed with direct=false instead.
type proxiedProber struct {
	inner  platform.Prober
	proxy  *traceproxy.Proxy
	direct bool
}

var _ platform.Prober = (*proxiedProber)(nil)

func (p *proxiedProber) run(fn func() error) error {
	if p.direct {
		return p.proxy.DoDirect(fn)
	}
	return p.proxy.Do(fn)
}

func (p *proxiedProber) Probe(pid int, opts platform.Option) (platform.Snapshot, error) {
	var snap platform.Snapshot
	err := p.run(func() error {
		var innerErr error
		snap, innerErr = p.inner.Probe(pid, opts)
		return innerErr
	})
	return snap, err
}

func (p *proxiedProber) Dump(pid int, addr uintptr, length int) ([]byte, error) {
	var data []byte
	err := p.run(func() error {
		var innerErr error
		data, innerErr = p.inner.Dump(pid, addr, length)
		return innerErr
	})
	return data, err
}

func (p *proxiedProber) ABI(snap platform.Snapshot) platform.ABIMode {
	return p.inner.ABI(snap) // pure, no ptrace call; no need to marshal
}

func (p *proxiedProber) Cont(pid int, signal int, singleStep bool) error {
	return p.run(func() error { return p.inner.Cont(pid, signal, singleStep) })
}

func (p *proxiedProber) Kill(pid int, sig int, snap platform.Snapshot, sanitize bool) error {
	if !sanitize {
		// Plain kill(2), not ptrace(2): no tracer-thread affinity needed,
		// matching the profiler's SIGSTOP/SIGCONT "kick" which must be
		// callable from any goroutine.
		return p.inner.Kill(pid, sig, snap, sanitize)
	}
	return p.run(func() error { return p.inner.Kill(pid, sig, snap, sanitize) })
}

func (p *proxiedProber) Detach(pid int) error {
	return p.run(func() error { return p.inner.Detach(pid) })
}
