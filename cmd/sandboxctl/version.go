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
	"runtime"

	"github.com/google/subcommands"
)

// version is set at build time via -ldflags, matching runsc's own
// version.Version() convention; it defaults to "dev" for a plain build.
var version = "dev"

type versionCommand struct{}

func (*versionCommand) Name() string          { return "version" }
func (*versionCommand) Synopsis() string      { return "print sandboxctl's version" }
func (*versionCommand) Usage() string         { return "version\n" }
func (*versionCommand) SetFlags(*flag.FlagSet) {}

func (*versionCommand) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Printf("sandboxctl version %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
	return subcommands.ExitSuccess
}
