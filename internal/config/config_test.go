// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/sentriflow/pkg/configtree"
)

func TestFind_LocatesConfigInStartDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentriflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("includeDefaults: true\n"), 0o600))

	found, err := Find(dir)
	require.NoError(t, err)
	require.Equal(t, path, found)
}

func TestFind_WalksUpToParentDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".sentriflowrc.yaml"), []byte("disable: []\n"), 0o600))

	child := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(child, 0o750))

	found, err := Find(child)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, ".sentriflowrc.yaml"), found)
}

func TestFind_ReturnsEmptyWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	found, err := Find(dir)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestLoad_ParsesFullShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentriflow.yaml")
	content := `
disable: ["SEC-099"]
includeDefaults: false
jsonRules: ["extra-rules.json"]
rulePacks:
  - path: "vendor-pack.grpx"
    priority: 250
directory:
  excludePatterns: ["^vendor/"]
  recursive: true
  maxDepth: 5
rules:
  - id: CUSTOM-001
    metadata:
      level: warning
    check:
      kind: contains
      text: "no-op"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"SEC-099"}, f.Disable)
	require.False(t, f.IncludesDefaults())
	require.Equal(t, []string{"extra-rules.json"}, f.JSONRules)
	require.Len(t, f.RulePacks, 1)
	require.Equal(t, 250, f.RulePacks[0].Priority)
	require.Equal(t, []string{"^vendor/"}, f.Directory.ExcludePatterns)
	require.Len(t, f.Rules, 1)
}

func TestFile_IncludesDefaultsDefaultsTrue(t *testing.T) {
	var f File
	require.True(t, f.IncludesDefaults())
}

func TestCompileRules_CompilesDeclarativeCheck(t *testing.T) {
	entries := []RuleWire{{
		ID:       "CUSTOM-001",
		Metadata: MetadataWire{Level: "warning"},
		Check:    CheckWire{Kind: "contains", Text: "telnet"},
	}}
	compiled, err := CompileRules(entries)
	require.NoError(t, err)
	require.Len(t, compiled, 1)

	node := &configtree.Node{ID: "n1", Text: "enable telnet"}
	result := compiled[0].Check(node, nil)
	require.True(t, result.Passed)
}

func TestCompileRules_RejectsUnknownKind(t *testing.T) {
	entries := []RuleWire{{ID: "X", Check: CheckWire{Kind: "eval"}}}
	_, err := CompileRules(entries)
	require.Error(t, err)
}

func TestMergeDirectoryOptions_ArraysAreUnioned(t *testing.T) {
	fromConfig := DirectoryOptions{ExcludePatterns: []string{"^a/"}, Exclude: []string{"x"}}
	fromCLI := DirectoryOptions{ExcludePatterns: []string{"^b/"}, Exclude: []string{"x", "y"}}

	merged := MergeDirectoryOptions(fromConfig, fromCLI)
	require.ElementsMatch(t, []string{"^a/", "^b/"}, merged.ExcludePatterns)
	require.ElementsMatch(t, []string{"x", "y"}, merged.Exclude)
}

func TestMergeDirectoryOptions_ScalarsCLIWinsIfDefined(t *testing.T) {
	recursive := true
	depth := 3
	fromConfig := DirectoryOptions{Recursive: &recursive, MaxDepth: &depth, Extensions: []string{".cfg"}}

	cliRecursive := false
	fromCLI := DirectoryOptions{Recursive: &cliRecursive}

	merged := MergeDirectoryOptions(fromConfig, fromCLI)
	require.Equal(t, &cliRecursive, merged.Recursive)
	require.Equal(t, &depth, merged.MaxDepth)
	require.Equal(t, []string{".cfg"}, merged.Extensions)
}

func TestMergeDirectoryOptions_InvalidRegexSilentlyDropped(t *testing.T) {
	fromConfig := DirectoryOptions{ExcludePatterns: []string{"(unclosed"}}
	merged := MergeDirectoryOptions(fromConfig, DirectoryOptions{})
	require.Empty(t, merged.ExcludePatterns)
}

func TestMergeDirectoryOptions_MaxDepthClampedToSpecRange(t *testing.T) {
	tooDeep := 5000
	negative := -3
	inRange := 7

	merged := MergeDirectoryOptions(DirectoryOptions{MaxDepth: &tooDeep}, DirectoryOptions{})
	require.Equal(t, 1000, *merged.MaxDepth)

	merged = MergeDirectoryOptions(DirectoryOptions{MaxDepth: &negative}, DirectoryOptions{})
	require.Equal(t, 0, *merged.MaxDepth)

	merged = MergeDirectoryOptions(DirectoryOptions{MaxDepth: &inRange}, DirectoryOptions{})
	require.Equal(t, 7, *merged.MaxDepth)

	merged = MergeDirectoryOptions(DirectoryOptions{}, DirectoryOptions{})
	require.Nil(t, merged.MaxDepth)
}
