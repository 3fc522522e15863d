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

// Package rwcond implements the reader/writer lock every sandbox instance
// uses to mediate access to its status, result, stat record, and event
// queue. It mirrors a hand-rolled C rwlock built from one mutex and two
// condition variables rather than sync.RWMutex, because it additionally
// exposes Relock: a downgrade that admits no other writer in between, and
// an upgrade that waits for the other readers to drain.
package rwcond

import "sync"

// Lock is a reader/writer lock with broadcast-on-release semantics.
// Readers increment a count; a writer sets an exclusive flag. On release,
// the reader condition is always broadcast; the writer condition is
// broadcast only when no readers remain.
type Lock struct {
	mu      sync.Mutex
	readerC *sync.Cond
	writerC *sync.Cond

	rdCount int
	wrLock  bool
}

// New returns a ready-to-use Lock.
func New() *Lock {
	l := &Lock{}
	l.readerC = sync.NewCond(&l.mu)
	l.writerC = sync.NewCond(&l.mu)
	return l
}

// RLock acquires a shared (reader) hold. Multiple readers may hold the lock
// concurrently as long as no writer holds it.
func (l *Lock) RLock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.wrLock {
		l.readerC.Wait()
	}
	l.rdCount++
}

// RUnlock releases a shared hold.
func (l *Lock) RUnlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rdCount--
	if l.rdCount < 0 {
		panic("rwcond: RUnlock without matching RLock")
	}
	l.readerC.Broadcast()
	if l.rdCount == 0 {
		l.writerC.Broadcast()
	}
}

// Lock acquires an exclusive (writer) hold.
func (l *Lock) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.wrLock || l.rdCount > 0 {
		l.writerC.Wait()
	}
	l.wrLock = true
}

// Unlock releases an exclusive hold.
func (l *Lock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.wrLock {
		panic("rwcond: Unlock without matching Lock")
	}
	l.wrLock = false
	l.readerC.Broadcast()
	l.writerC.Broadcast()
}

// Relock transitions the calling goroutine's hold from shared to exclusive
// (upgrade=true) or from exclusive to shared (upgrade=false). A downgrade
// happens under one hold of the metadata mutex, so no writer is admitted
// in between. An upgrade drops the caller's reader slot and waits on the
// writer condition, which releases the mutex while other readers remain;
// another waiting writer may be admitted before the upgrade completes. The
// caller must already hold the lock in the mode it is transitioning from.
func (l *Lock) Relock(upgrade bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if upgrade {
		// Caller holds one reader slot; drop it and wait for the rest to
		// drain, then take the writer flag. Wait releases the mutex while
		// it blocks.
		l.rdCount--
		for l.wrLock || l.rdCount > 0 {
			l.writerC.Wait()
		}
		l.wrLock = true
		return
	}
	// Downgrade: drop the writer flag, take a reader slot, wake other
	// readers (a waiting writer must still wait behind this reader).
	l.wrLock = false
	l.rdCount++
	l.readerC.Broadcast()
}
