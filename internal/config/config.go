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

// Package config loads sandboxctl's layered configuration: compiled-in
// defaults, overridden by a TOML file, overridden in turn by command-line
// flags — exactly the precedence runsc/config resolves a Config from
// runsc.toml and its own flag set.
package config

import (
	"flag"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/ironclad/sandbox/internal/task"
)

// Config is the resolved set of knobs sandboxctl needs outside of the
// task description itself (which is built from argv/OCI spec, not from
// this file).
type Config struct {
	// PolicyName names the policy to run ("blacklist" is the only one
	// shipped). It is loaded from TOML and flags, but sandboxctl's run and
	// check commands do not consult it: they always install
	// policy.Default().
	PolicyName string `toml:"policy"`

	// JailPath, when non-empty, is passed through as Task.Chroot.
	JailPath string `toml:"jail_path"`

	// LogFormat is "text" (default) or "json", matching runsc's
	// --log-format flag and internal/slog's SetJSON toggle.
	LogFormat string `toml:"log_format"`

	Debug bool `toml:"debug"`

	// PIDFile, when non-empty, is where the manager records its PID via
	// gofrs/flock (see internal/manager/pidfile.go).
	PIDFile string `toml:"pid_file"`

	// Quota fields mirror task.Quotas, expressed in the units a human
	// writes into a TOML file rather than the packed [4]uint64 the
	// runtime uses.
	WallClockMS uint64 `toml:"wallclock_ms"`
	CPUMS       uint64 `toml:"cpu_ms"`
	MemoryBytes uint64 `toml:"memory_bytes"`
	DiskBytes   uint64 `toml:"disk_bytes"`

	// CgroupMemoryBytes, when non-zero, enables internal/quota's
	// cgroup-backed backstop at that ceiling.
	CgroupMemoryBytes int64 `toml:"cgroup_memory_bytes"`
}

// Default returns the compiled-in defaults: blacklist policy, no jail, text
// logging, and every quota unbounded.
func Default() Config {
	return Config{
		PolicyName: "blacklist",
		LogFormat:  "text",
	}
}

// Quotas converts the TOML-friendly quota fields into a task.Quotas array.
func (c Config) Quotas() task.Quotas {
	var q task.Quotas
	q[eventQuotaWallClock] = c.WallClockMS
	q[eventQuotaCPU] = c.CPUMS
	q[eventQuotaMemory] = c.MemoryBytes
	q[eventQuotaDisk] = c.DiskBytes
	return q
}

// Indices matching internal/event.QuotaKind's iota order, duplicated here
// rather than imported so this package's public surface doesn't force
// every caller of Config to also import internal/event just to build a
// Quotas value.
const (
	eventQuotaWallClock = 0
	eventQuotaCPU       = 1
	eventQuotaMemory    = 2
	eventQuotaDisk      = 3
)

// RegisterFlags registers every Config field as a flag on fs, following
// runsc/config.RegisterFlags's one-flag-per-field style. A "config" flag
// naming a TOML file to load first is also registered; NewFromFlags
// consults it before applying these flags' values.
func RegisterFlags(fs *flag.FlagSet) {
	fs.String("config", "", "path to a sandbox.toml file; flags override its values.")
	fs.String("policy", "", "name of the policy to run (\"blacklist\" is the only compiled-in policy).")
	fs.String("jail-path", "", "chroot directory for the tracee; only honored when running as uid 0.")
	fs.String("log-format", "", "log format: text (default) or json.")
	fs.Bool("debug", false, "enable debug logging.")
	fs.String("pid-file", "", "path to a manager PID file (flock-guarded).")
	fs.Uint64("wallclock-ms", 0, "wallclock quota in milliseconds; 0 means unbounded.")
	fs.Uint64("cpu-ms", 0, "CPU time quota in milliseconds; 0 means unbounded.")
	fs.Uint64("memory-bytes", 0, "virtual memory quota in bytes; 0 means unbounded.")
	fs.Uint64("disk-bytes", 0, "output file size quota in bytes; 0 means unbounded.")
	fs.Int64("cgroup-memory-bytes", 0, "if set, enforce this memory ceiling via a cgroup in addition to the polled quota check.")
}

// NewFromFlags resolves a Config from compiled-in defaults, then a TOML
// file (if -config names one), then fs's parsed flags, in that order of
// increasing precedence — the same precedence runsc/config.NewFromFlags
// applies to runsc.toml and the runsc flag set.
func NewFromFlags(fs *flag.FlagSet) (*Config, error) {
	cfg := Default()

	if f := fs.Lookup("config"); f != nil {
		if path := f.Value.String(); path != "" {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	applyFlag(fs, "policy", &cfg.PolicyName)
	applyFlag(fs, "jail-path", &cfg.JailPath)
	applyFlag(fs, "log-format", &cfg.LogFormat)
	applyBoolFlag(fs, "debug", &cfg.Debug)
	applyFlag(fs, "pid-file", &cfg.PIDFile)
	applyUint64Flag(fs, "wallclock-ms", &cfg.WallClockMS)
	applyUint64Flag(fs, "cpu-ms", &cfg.CPUMS)
	applyUint64Flag(fs, "memory-bytes", &cfg.MemoryBytes)
	applyUint64Flag(fs, "disk-bytes", &cfg.DiskBytes)
	applyInt64Flag(fs, "cgroup-memory-bytes", &cfg.CgroupMemoryBytes)

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("config: invalid log format %q, must be 'text' or 'json'", cfg.LogFormat)
	}
	return &cfg, nil
}

// applyFlag overwrites *dst with fs's value for name only if the flag was
// actually set on the command line, so a TOML-loaded value isn't clobbered
// by a flag's zero default.
func applyFlag(fs *flag.FlagSet, name string, dst *string) {
	var set bool
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if set {
		*dst = fs.Lookup(name).Value.String()
	}
}

func applyBoolFlag(fs *flag.FlagSet, name string, dst *bool) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			*dst = f.Value.String() == "true"
		}
	})
}

func applyUint64Flag(fs *flag.FlagSet, name string, dst *uint64) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name != name {
			return
		}
		if g, ok := f.Value.(flag.Getter); ok {
			if v, ok := g.Get().(uint64); ok {
				*dst = v
			}
		}
	})
}

func applyInt64Flag(fs *flag.FlagSet, name string, dst *int64) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name != name {
			return
		}
		if g, ok := f.Value.(flag.Getter); ok {
			if v, ok := g.Get().(int64); ok {
				*dst = v
			}
		}
	})
}
