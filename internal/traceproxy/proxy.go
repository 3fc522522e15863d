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

// Package traceproxy serializes every ptrace call for one sandbox onto the
// single goroutine that issued PTRACE_TRACEME's parent-side attach. It is
// the Go rendering of libsandbox's mailbox protocol (one mutex, one
// condition variable, strict NOP/ACK/NOP turn-taking): here the mailbox is
// a pair of unbuffered channels, and the turn-taking falls out of channel
// send/receive rendezvous instead of being hand-coded. Grounded directly on
// the golang-debug ptraceRun pattern (runtime.LockOSThread + an unbuffered
// request channel read in a for-range loop).
package traceproxy

import "runtime"

// request is a unit of work the owning goroutine must run.
type request struct {
	fn func() error
}

// Proxy owns one goroutine pinned to the OS thread that attached to the
// tracee. Non-owning goroutines submit work via Do, which always crosses
// the mailbox. The owning goroutine itself — typically code that runs
// before Run's loop starts, or code invoked synchronously from within a
// request already running on Run's goroutine — calls DoDirect instead,
// which runs fn inline. This split stands in for the original's
// pthread_equal same-thread shortcut: Go has no cheap goroutine-identity
// check, so the distinction is made by the caller's position in the call
// graph (known statically) rather than by a runtime comparison.
type Proxy struct {
	reqs chan request
	errs chan error
	done chan struct{}
}

// New returns a Proxy that has not yet started its owning goroutine. Call
// Run from the goroutine that will issue PTRACE_TRACEME's parent-side
// attach.
func New() *Proxy {
	return &Proxy{
		reqs: make(chan request),
		errs: make(chan error),
		done: make(chan struct{}),
	}
}

// Run pins the calling goroutine to its OS thread and services requests
// until Close is called. It must be invoked exactly once, from the
// goroutine that will perform all ptrace calls for the tracee it owns.
func (p *Proxy) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case req := <-p.reqs:
			p.errs <- req.fn()
		case <-p.done:
			return
		}
	}
}

// Do submits fn to run on the owning goroutine and blocks for its result.
// Callers that are not themselves the owning goroutine must use this.
func (p *Proxy) Do(fn func() error) error {
	p.reqs <- request{fn: fn}
	return <-p.errs
}

// DoDirect runs fn inline, for use only by the owning goroutine itself
// (e.g. the code that calls Run, before or between servicing requests).
// Calling this from any other goroutine would violate the single-tracer
// invariant ptrace enforces at the kernel level.
func (p *Proxy) DoDirect(fn func() error) error {
	return fn()
}

// Close terminates the owning goroutine's Run loop. Matches the spec's END
// opcode, which always runs through the mailbox rather than the shortcut.
// Calling Close again has no further effect.
func (p *Proxy) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
