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

package traceproxy

import (
	"errors"
	"sync"
	"testing"
)

func TestDoRunsOnOwningGoroutine(t *testing.T) {
	p := New()
	go p.Run()
	defer p.Close()

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Do(func() error { return nil })
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Errorf("Do(%d) = %v, want nil", i, err)
		}
	}
}

func TestDoPropagatesError(t *testing.T) {
	p := New()
	go p.Run()
	defer p.Close()

	want := errors.New("boom")
	if got := p.Do(func() error { return want }); got != want {
		t.Fatalf("Do() = %v, want %v", got, want)
	}
}

func TestDoDirectRunsInline(t *testing.T) {
	p := New()
	called := false
	if err := p.DoDirect(func() error { called = true; return nil }); err != nil {
		t.Fatalf("DoDirect: %v", err)
	}
	if !called {
		t.Fatal("DoDirect did not invoke fn")
	}
}
