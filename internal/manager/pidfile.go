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

package manager

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// PIDFile guards the optional on-disk PID file a host process may write at
// startup, preventing two supervisor processes on the same host from
// racing to claim SIGUSR1/SIGUSR2/SIGPROF (this library's reserved
// signals) against the same process group.
type PIDFile struct {
	lock *flock.Flock
	path string
}

// AcquirePIDFile locks path exclusively and writes the current pid into it.
// It returns an error if another process already holds the lock.
func AcquirePIDFile(path string) (*PIDFile, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("manager: lock pid file %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("manager: pid file %s already locked by another supervisor", path)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("manager: write pid file %s: %w", path, err)
	}
	return &PIDFile{lock: lock, path: path}, nil
}

// Release unlocks and removes the pid file.
func (p *PIDFile) Release() error {
	if err := p.lock.Unlock(); err != nil {
		return err
	}
	return os.Remove(p.path)
}
