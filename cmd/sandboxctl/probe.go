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
	"strconv"

	"github.com/google/subcommands"

	"github.com/ironclad/sandbox/internal/platform"
)

// probeCommand implements `sandboxctl probe <pid>`: a one-shot procfs read
// of a process already running, for poking at the platform layer without
// attaching a tracer. It does not ptrace-attach, so OptRegs/OptOp/
// OptSigInfo are unavailable; only the stat-derived fields populate.
type probeCommand struct{}

func (*probeCommand) Name() string     { return "probe" }
func (*probeCommand) Synopsis() string { return "read a process's procfs stat snapshot" }
func (*probeCommand) Usage() string    { return "probe <pid>\n" }

func (*probeCommand) SetFlags(*flag.FlagSet) {}

func (*probeCommand) Execute(_ context.Context, fs *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		return fatalf("probe: expected exactly one pid argument")
	}
	pid, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fatalf("probe: invalid pid %q: %v", fs.Arg(0), err)
	}

	p := platform.NewLinuxProber()
	snap, err := p.Probe(pid, platform.OptStat)
	if err != nil {
		return fatalf("probe: %v", err)
	}
	fmt.Printf("pid=%d ppid=%d state=%c vsize=%d rss=%d utime=%s stime=%s\n",
		snap.Pid, snap.Ppid, snap.State, snap.VSize, snap.RSS, snap.UTime, snap.STime)
	return subcommands.ExitSuccess
}
