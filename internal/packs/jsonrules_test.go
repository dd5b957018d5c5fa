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

package packs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/sentriflow/pkg/configtree"
)

const sampleJSONRules = `{
	"version": "1.0.0",
	"rules": [
		{
			"id": "NET-010",
			"vendor": "cisco-ios",
			"metadata": {"level": "error", "remediation": "disable telnet", "tags": ["telnet"]},
			"check": {"kind": "not_contains", "text": "transport input telnet"}
		},
		{
			"id": "NET-011",
			"vendor": ["cisco-ios", "common"],
			"metadata": {"level": "warning"},
			"check": {"kind": "and", "conditions": [
				{"kind": "contains", "text": "ssh"},
				{"kind": "not", "conditions": [{"kind": "contains", "text": "version 1"}]}
			]}
		}
	]
}`

func TestLoadJSONRules_ParsesDeclarativeChecks(t *testing.T) {
	pack, err := LoadJSONRules([]byte(sampleJSONRules), "cli-json-rules", 100)
	require.NoError(t, err)
	require.Len(t, pack.Rules, 2)
	require.Equal(t, []string{"cisco-ios"}, pack.Rules[0].Vendor)
	require.Equal(t, []string{"cisco-ios", "common"}, pack.Rules[1].Vendor)
}

func TestLoadJSONRules_CompiledCheckEvaluatesCorrectly(t *testing.T) {
	pack, err := LoadJSONRules([]byte(sampleJSONRules), "cli-json-rules", 100)
	require.NoError(t, err)

	node := &configtree.Node{ID: "n1", Text: "transport input ssh"}
	result := pack.Rules[0].Check(node, nil)
	require.True(t, result.Passed)

	telnetNode := &configtree.Node{ID: "n2", Text: "transport input telnet"}
	result = pack.Rules[0].Check(telnetNode, nil)
	require.False(t, result.Passed)
}

func TestLoadJSONRules_RejectsMalformedJSON(t *testing.T) {
	_, err := LoadJSONRules([]byte(`{"rules": [`), "broken", 100)
	require.Error(t, err)
}

func TestLoadJSONRules_RejectsDuplicateRuleIDs(t *testing.T) {
	data := `{"rules": [
		{"id": "NET-001", "metadata": {"level": "error"}, "check": {"kind": "contains", "text": "x"}},
		{"id": "NET-001", "metadata": {"level": "error"}, "check": {"kind": "contains", "text": "y"}}
	]}`
	_, err := LoadJSONRules([]byte(data), "dup", 100)
	require.Error(t, err)
}

func TestLoadJSONRules_RejectsUnknownCheckKind(t *testing.T) {
	data := `{"rules": [
		{"id": "NET-001", "metadata": {"level": "error"}, "check": {"kind": "eval", "text": "x"}}
	]}`
	_, err := LoadJSONRules([]byte(data), "bad-kind", 100)
	require.Error(t, err)
}
