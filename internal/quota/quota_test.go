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

package quota

import (
	"os"
	"testing"
)

// newForTest creates an Enforcer, skipping the test when the host has no
// writable cgroup hierarchy (unprivileged containers, CI sandboxes without
// /sys/fs/cgroup access) rather than failing outright.
func newForTest(t *testing.T, name string, memBytes int64) *Enforcer {
	t.Helper()
	e, err := New(name, memBytes)
	if err != nil {
		t.Skipf("cgroup hierarchy unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNewAndCloseIsIdempotent(t *testing.T) {
	e := newForTest(t, "test-new-close", 1<<20)
	if err := e.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil (idempotent)", err)
	}
}

func TestAddPlacesCurrentProcess(t *testing.T) {
	e := newForTest(t, "test-add", 1<<20)
	if err := e.Add(os.Getpid()); err != nil {
		t.Fatalf("Add(self) = %v", err)
	}
	if _, err := e.Sample(); err != nil {
		t.Errorf("Sample() after Add = %v", err)
	}
}

func TestNewWithZeroMemBytesAppliesNoCeiling(t *testing.T) {
	e := newForTest(t, "test-no-ceiling", 0)
	if _, err := e.Sample(); err != nil {
		t.Errorf("Sample() = %v", err)
	}
}
