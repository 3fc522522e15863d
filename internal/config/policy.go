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
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mattbaird/jsonpatch"

	"github.com/ironclad/sandbox/internal/policy"
)

// PolicyConfig is the JSON-serializable snapshot of a blacklist policy's
// syscall tables, used by `sandboxctl policy dump-default` and `policy
// diff` to let an operator inspect or derive a policy config without
// writing Go.
type PolicyConfig struct {
	Native []int64 `json:"native_blacklist"`
	Compat []int64 `json:"compat_blacklist"`
}

// DefaultPolicyConfig snapshots the compiled-in BlacklistPolicy's tables.
func DefaultPolicyConfig() PolicyConfig {
	native := policy.DefaultBlacklistNative()
	compat := policy.DefaultBlacklistCompat()
	return PolicyConfig{
		Native: sortedKeys(native),
		Compat: sortedKeys(compat),
	}
}

func sortedKeys(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// WritePolicyConfig renders pc as indented JSON to the file at path, or to
// stdout when path is "" or "-".
func WritePolicyConfig(path string, pc PolicyConfig) error {
	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal policy config: %w", err)
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadPolicyConfig reads a PolicyConfig from path.
func LoadPolicyConfig(path string) (PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var pc PolicyConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return PolicyConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return pc, nil
}

// DiffPolicyConfigs computes the JSON-Patch document that transforms basePath's
// policy config into overlayPath's, backing `sandboxctl policy diff`. This
// is the one operation mattbaird/jsonpatch actually exposes — it computes
// patches, it does not apply them — so "diff" rather than "apply" is the
// command this dependency grounds.
func DiffPolicyConfigs(basePath, overlayPath string) ([]jsonpatch.JsonPatchOperation, error) {
	base, err := os.ReadFile(basePath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", basePath, err)
	}
	overlay, err := os.ReadFile(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", overlayPath, err)
	}
	ops, err := jsonpatch.CreatePatch(base, overlay)
	if err != nil {
		return nil, fmt.Errorf("config: diff %s -> %s: %w", basePath, overlayPath, err)
	}
	return ops, nil
}
