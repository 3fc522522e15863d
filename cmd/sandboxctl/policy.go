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
	"encoding/json"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/ironclad/sandbox/internal/config"
)

// policyDumpDefaultCommand implements `sandboxctl policy dump-default`.
type policyDumpDefaultCommand struct {
	out string
}

func (*policyDumpDefaultCommand) Name() string     { return "policy dump-default" }
func (*policyDumpDefaultCommand) Synopsis() string { return "print the compiled-in blacklist policy as JSON" }
func (*policyDumpDefaultCommand) Usage() string    { return "policy dump-default [-out <file>]\n" }

func (c *policyDumpDefaultCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.out, "out", "-", "output path, or - for stdout")
}

func (c *policyDumpDefaultCommand) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	if err := config.WritePolicyConfig(c.out, config.DefaultPolicyConfig()); err != nil {
		return fatalf("policy dump-default: %v", err)
	}
	return subcommands.ExitSuccess
}

// policyValidateCommand implements `sandboxctl policy validate <file>`: it
// parses a policy config file and reports whether it is well-formed.
type policyValidateCommand struct{}

func (*policyValidateCommand) Name() string     { return "policy validate" }
func (*policyValidateCommand) Synopsis() string { return "validate a policy config file" }
func (*policyValidateCommand) Usage() string    { return "policy validate <file>\n" }

func (*policyValidateCommand) SetFlags(*flag.FlagSet) {}

func (*policyValidateCommand) Execute(_ context.Context, fs *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		return fatalf("policy validate: expected exactly one file argument")
	}
	pc, err := config.LoadPolicyConfig(fs.Arg(0))
	if err != nil {
		return fatalf("policy validate: %v", err)
	}
	fmt.Printf("ok: %d native, %d compat blacklisted syscalls\n", len(pc.Native), len(pc.Compat))
	return subcommands.ExitSuccess
}

// policyDiffCommand implements `sandboxctl policy diff <base> <overlay>`:
// computes the JSON-Patch document transforming base into overlay.
type policyDiffCommand struct{}

func (*policyDiffCommand) Name() string     { return "policy diff" }
func (*policyDiffCommand) Synopsis() string { return "compute the JSON-Patch between two policy configs" }
func (*policyDiffCommand) Usage() string    { return "policy diff <base.json> <overlay.json>\n" }

func (*policyDiffCommand) SetFlags(*flag.FlagSet) {}

func (*policyDiffCommand) Execute(_ context.Context, fs *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 2 {
		return fatalf("policy diff: expected <base.json> <overlay.json>")
	}
	ops, err := config.DiffPolicyConfigs(fs.Arg(0), fs.Arg(1))
	if err != nil {
		return fatalf("policy diff: %v", err)
	}
	data, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return fatalf("policy diff: %v", err)
	}
	fmt.Println(string(data))
	return subcommands.ExitSuccess
}
