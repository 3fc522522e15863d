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

package rwcond

import (
	"sync"
	"testing"
	"time"
)

func TestMultipleReadersHoldConcurrently(t *testing.T) {
	l := New()
	l.RLock()
	defer l.RUnlock()

	done := make(chan struct{})
	go func() {
		l.RLock()
		l.RUnlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second RLock blocked behind an outstanding reader")
	}
}

func TestWriterExcludesReaders(t *testing.T) {
	l := New()
	l.Lock()

	acquired := make(chan struct{})
	go func() {
		l.RLock()
		close(acquired)
		l.RUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("RLock acquired while a writer held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	l.Unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("RLock never acquired after writer released")
	}
}

func TestUnlockWithoutLockPanics(t *testing.T) {
	l := New()
	defer func() {
		if recover() == nil {
			t.Fatal("Unlock() without a held Lock did not panic")
		}
	}()
	l.Unlock()
}

func TestRUnlockWithoutRLockPanics(t *testing.T) {
	l := New()
	defer func() {
		if recover() == nil {
			t.Fatal("RUnlock() without a held RLock did not panic")
		}
	}()
	l.RUnlock()
}

func TestRelockUpgradeExcludesOtherReaders(t *testing.T) {
	l := New()
	l.RLock()
	l.Relock(true) // now holds the writer flag

	acquired := make(chan struct{})
	go func() {
		l.RLock()
		close(acquired)
		l.RUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("RLock acquired while the upgraded writer hold was live")
	case <-time.After(50 * time.Millisecond):
	}

	l.Unlock()
	<-acquired
}

func TestRelockDowngradeAllowsOtherReaders(t *testing.T) {
	l := New()
	l.Lock()
	l.Relock(false) // now holds a reader slot

	done := make(chan struct{})
	go func() {
		l.RLock()
		l.RUnlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RLock blocked behind a downgraded hold")
	}
	l.RUnlock()
}

func TestConcurrentReadersAndWritersDoNotDeadlock(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.RLock()
				l.RUnlock()
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Lock()
				l.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent readers/writers deadlocked")
	}
}
