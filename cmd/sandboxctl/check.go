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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ironclad/sandbox/internal/config"
	"github.com/ironclad/sandbox/internal/policy"
	"github.com/ironclad/sandbox/internal/sandbox"
	"github.com/ironclad/sandbox/internal/task"
)

// checkCommand implements `sandboxctl check -- <argv...>`: validate a task
// description without running it, the read-only half of runCommand.
type checkCommand struct {
	uid uint
	gid uint
}

func (*checkCommand) Name() string     { return "check" }
func (*checkCommand) Synopsis() string { return "validate a task description without executing it" }
func (*checkCommand) Usage() string    { return "check [flags] -- <program> [args...]\n" }

func (c *checkCommand) SetFlags(fs *flag.FlagSet) {
	fs.UintVar(&c.uid, "uid", 0, "uid to validate against")
	fs.UintVar(&c.gid, "gid", 0, "gid to validate against")
}

func (c *checkCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() == 0 {
		return fatalf("check: missing program; usage: %s", c.Usage())
	}

	cfg := args[0].(*config.Config)

	t := task.Task{
		Argv:   fs.Args(),
		UID:    uint32(c.uid),
		GID:    uint32(c.gid),
		Chroot: cfg.JailPath,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Quota:  cfg.Quotas(),
	}

	s := sandbox.New(t, policy.Default())
	if err := s.Check(ctx); err != nil {
		return fatalf("check: %v", err)
	}
	fmt.Println("ok: task description is valid")
	return subcommands.ExitSuccess
}
