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
	"github.com/ironclad/sandbox/internal/quota"
	"github.com/ironclad/sandbox/internal/sandbox"
	"github.com/ironclad/sandbox/internal/task"
	"github.com/ironclad/sandbox/internal/wire"
)

// runCommand implements `sandboxctl run -- <argv...>`: check, execute, and
// print the terminal result, mirroring runsc's own check-then-run shape
// for the `do` subcommand.
type runCommand struct {
	uid  uint
	gid  uint
	name string
}

func (*runCommand) Name() string     { return "run" }
func (*runCommand) Synopsis() string { return "run a program under the sandbox and print its result" }
func (*runCommand) Usage() string {
	return "run [flags] -- <program> [args...]\n"
}

func (c *runCommand) SetFlags(fs *flag.FlagSet) {
	fs.UintVar(&c.uid, "uid", 0, "uid to run the tracee as")
	fs.UintVar(&c.gid, "gid", 0, "gid to run the tracee as")
	fs.StringVar(&c.name, "cgroup-name", "sandboxctl", "name for the optional cgroup quota backstop")
}

func (c *runCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() == 0 {
		return fatalf("run: missing program; usage: %s", c.Usage())
	}

	cfg := args[0].(*config.Config)
	log := newLogger("sandboxctl", cfg)

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

	var opts []sandbox.Option
	if cfg.CgroupMemoryBytes > 0 {
		cg, err := quota.New(c.name, cfg.CgroupMemoryBytes)
		if err != nil {
			log.Warningf("cgroup backstop unavailable, continuing without it: %v", err)
		} else {
			defer cg.Close()
			opts = append(opts, sandbox.WithCgroup(cg))
		}
	}

	s := sandbox.New(t, policy.Default(), opts...)
	defer s.Close()

	if err := s.Check(ctx); err != nil {
		return fatalf("run: check failed: %v", err)
	}

	result, err := s.Execute(ctx)
	if cfg.LogFormat == "json" {
		cpuPeak, vsizePeak := s.Stat()
		w := &wire.Result{
			Code:      result,
			CPUMillis: uint64(cpuPeak.Milliseconds()),
			VSizePeak: vsizePeak,
		}
		b, jerr := w.MarshalJSON()
		if jerr != nil {
			return fatalf("run: encoding result: %v", jerr)
		}
		fmt.Println(string(b))
	} else {
		fmt.Printf("result: %s\n", result)
	}
	if err != nil {
		log.Errorf("execute: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
