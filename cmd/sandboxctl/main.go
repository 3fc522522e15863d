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

// Command sandboxctl runs and inspects sandboxed programs from the shell,
// the way runsc's cli package drives runsc's OCI surface: flags bind to a
// config.Config, subcommands are grouped, and the process exit status
// reports whether the subcommand itself succeeded or failed; the tracee's
// result is printed, not passed through as the exit status.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ironclad/sandbox/internal/config"
	"github.com/ironclad/sandbox/internal/manager"
	"github.com/ironclad/sandbox/internal/slog"
)

const (
	runGroup    = "run"
	policyGroup = "policy"
	debugGroup  = "debug"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&runCommand{}, runGroup)
	subcommands.Register(&checkCommand{}, runGroup)

	subcommands.Register(&policyDumpDefaultCommand{}, policyGroup)
	subcommands.Register(&policyValidateCommand{}, policyGroup)
	subcommands.Register(&policyDiffCommand{}, policyGroup)

	subcommands.Register(&probeCommand{}, debugGroup)
	subcommands.Register(&versionCommand{}, debugGroup)

	// config.RegisterFlags binds to the same flag.CommandLine that
	// subcommands.DefaultCommander parses against, matching
	// runsc/cli.Main's config.RegisterFlags(flag.CommandLine) call.
	config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(128)
	}
	if cfg.PIDFile != "" {
		pf, err := manager.AcquirePIDFile(cfg.PIDFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(128)
		}
		defer pf.Release()
	}

	os.Exit(int(subcommands.Execute(context.Background(), cfg)))
}

func fatalf(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

func newLogger(name string, cfg *config.Config) *slog.Logger {
	slog.SetJSON(cfg.LogFormat == "json")
	if cfg.Debug {
		_ = slog.SetLevel("debug")
	}
	return slog.New(name)
}
