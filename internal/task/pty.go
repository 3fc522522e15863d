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

package task

import (
	"fmt"
	"os"

	"github.com/kr/pty"
)

// AllocatePty satisfies Task.Interactive: it allocates a pseudo-terminal
// pair and wires the slave end to Stdin/Stdout/Stderr, returning the
// master end for the caller to drive. Tracees that refuse to run
// non-interactively (shells invoked without -c, some REPLs) need this
// instead of plain redirected files.
func (t *Task) AllocatePty() (master *os.File, err error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("task: allocate pty: %w", err)
	}
	t.Stdin = slave
	t.Stdout = slave
	t.Stderr = slave
	t.Interactive = true
	return master, nil
}
