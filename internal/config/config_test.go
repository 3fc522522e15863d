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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromFlagsAppliesDefaultsThenTOMLThenFlags(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "sandbox.toml")
	if err := os.WriteFile(tomlPath, []byte(`
policy = "blacklist"
log_format = "json"
memory_bytes = 1048576
`), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"-config", tomlPath, "-memory-bytes", "2097152"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewFromFlags(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("got log format %q, want json (from TOML)", cfg.LogFormat)
	}
	// The explicit flag must win over the TOML value.
	if cfg.MemoryBytes != 2097152 {
		t.Fatalf("got memory bytes %d, want 2097152 (flag overrides TOML)", cfg.MemoryBytes)
	}
}

func TestNewFromFlagsRejectsBadLogFormat(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"-log-format", "xml"}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFlags(fs); err == nil {
		t.Fatal("expected an error for an invalid log format")
	}
}

func TestQuotasRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.WallClockMS = 1000
	cfg.CPUMS = 500
	cfg.MemoryBytes = 4096
	cfg.DiskBytes = 8192

	q := cfg.Quotas()
	if q[eventQuotaWallClock] != 1000 || q[eventQuotaCPU] != 500 ||
		q[eventQuotaMemory] != 4096 || q[eventQuotaDisk] != 8192 {
		t.Fatalf("unexpected quotas: %+v", q)
	}
}

func TestDefaultPolicyConfigIsNonEmptyAndSorted(t *testing.T) {
	pc := DefaultPolicyConfig()
	if len(pc.Native) == 0 || len(pc.Compat) == 0 {
		t.Fatal("expected non-empty native and compat blacklist tables")
	}
	for i := 1; i < len(pc.Native); i++ {
		if pc.Native[i] < pc.Native[i-1] {
			t.Fatal("expected native blacklist to be sorted")
		}
	}
}

func TestWriteAndLoadPolicyConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	want := DefaultPolicyConfig()
	if err := WritePolicyConfig(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPolicyConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Native) != len(want.Native) || len(got.Compat) != len(want.Compat) {
		t.Fatalf("round-tripped config mismatch: got %+v, want %+v", got, want)
	}
}

func TestDiffPolicyConfigsFindsAddedEntry(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.json")
	overlay := filepath.Join(dir, "overlay.json")

	basePC := PolicyConfig{Native: []int64{57, 58}, Compat: []int64{2}}
	overlayPC := PolicyConfig{Native: []int64{57, 58, 101}, Compat: []int64{2}}
	if err := WritePolicyConfig(base, basePC); err != nil {
		t.Fatal(err)
	}
	if err := WritePolicyConfig(overlay, overlayPC); err != nil {
		t.Fatal(err)
	}

	ops, err := DiffPolicyConfigs(base, overlay)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) == 0 {
		t.Fatal("expected at least one patch operation for the added syscall number")
	}
}
