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

package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/sentriflow/internal/rules"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const goodPackA = `{"rules": [{"id": "PACK-A-001", "metadata": {"level": "warning"}, "check": {"kind": "contains", "text": "x"}}]}`
const goodPackC = `{"rules": [{"id": "PACK-C-001", "metadata": {"level": "warning"}, "check": {"kind": "contains", "text": "y"}}]}`
const corruptPack = `{ not valid json`

func TestResolve_LenientModeSkipsCorruptPackAndContinues(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", goodPackA)
	b := writeFile(t, dir, "b.json", corruptPack)
	c := writeFile(t, dir, "c.json", goodPackC)

	res, err := Resolve(Options{
		ConfigDir: dir,
		Now:       time.Now(),
		CLIPacks:  []string{a, b, c},
	})
	require.NoError(t, err)
	require.Len(t, res.SkippedSources, 1)
	require.Equal(t, b, res.SkippedSources[0])

	ids := ruleIDs(res.Rules)
	require.Contains(t, ids, "PACK-A-001")
	require.Contains(t, ids, "PACK-C-001")
}

func TestResolve_StrictModeAbortsOnFirstFailureAndNeverReachesLater(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", goodPackA)
	b := writeFile(t, dir, "b.json", corruptPack)
	c := writeFile(t, dir, "c.json", goodPackC)

	processed := 0
	_, err := Resolve(Options{
		ConfigDir:         dir,
		Now:               time.Now(),
		Strict:            true,
		CLIPacks:          []string{a, b, c},
		OnSourceProcessed: func() { processed++ },
	})
	require.Error(t, err)
	require.Equal(t, 2, processed, "c must never be attempted after b fails")
}

func TestResolve_NoConfigFileFallsBackToDefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	res, err := Resolve(Options{ConfigDir: dir, Now: time.Now()})
	require.NoError(t, err)
	require.Empty(t, res.ConfigPath)
	require.NotEmpty(t, res.Rules)
}

func TestResolve_ConfigIncludeDefaultsFalseSuppressesBuiltins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sentriflow.yaml", "includeDefaults: false\n")

	res, err := Resolve(Options{ConfigDir: dir, Now: time.Now()})
	require.NoError(t, err)
	require.Empty(t, res.Rules)
}

func TestResolve_VendorFilterAPpliesAcrossSources(t *testing.T) {
	dir := t.TempDir()
	pack := writeFile(t, dir, "juniper.json", `{"rules": [{"id": "JNPR-001", "vendor": "juniper", "metadata": {"level": "warning"}, "check": {"kind": "contains", "text": "x"}}]}`)

	res, err := Resolve(Options{ConfigDir: dir, Now: time.Now(), VendorID: "cisco", CLIPacks: []string{pack}})
	require.NoError(t, err)
	require.NotContains(t, ruleIDs(res.Rules), "JNPR-001")
}

func TestResolve_DisableIDsFromCLIAreHonored(t *testing.T) {
	dir := t.TempDir()
	res, err := Resolve(Options{ConfigDir: dir, Now: time.Now(), DisableIDs: []string{"SEC-TELNET-001"}})
	require.NoError(t, err)
	require.NotContains(t, ruleIDs(res.Rules), "SEC-TELNET-001")
}

func TestResolve_OnPackErrorCallbackInvokedInLenientMode(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.json", corruptPack)

	var gotKind, gotPath string
	_, err := Resolve(Options{
		ConfigDir: dir,
		Now:       time.Now(),
		CLIPacks:  []string{b},
		OnPackError: func(sourceKind, sourcePath string, _ error) {
			gotKind, gotPath = sourceKind, sourcePath
		},
	})
	require.NoError(t, err)
	require.Equal(t, "cli-pack", gotKind)
	require.Equal(t, b, gotPath)
}

func ruleIDs(rs []rules.Rule) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
