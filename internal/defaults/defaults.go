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

// Package defaults carries SentriFlow's built-in rule set: a small,
// cross-vendor baseline the resolver seeds at priority 0 (spec §4.6 step
// 4) before any pack is merged in. The rules are shipped as an embedded
// JSON rule file, compiled once at package init the same way a caller's
// own --rules file would be, the way the teacher embeds its
// docker-compose.yml (cmd/cie/start.go) rather than constructing that
// kind of static payload by hand in Go source.
package defaults

import (
	_ "embed"
	"fmt"

	"github.com/kraklabs/sentriflow/internal/packs"
	"github.com/kraklabs/sentriflow/internal/rules"
)

//go:embed rules.json
var rawRules []byte

// packName identifies the default layer in logs and in RulePack.Name;
// it is never disclosed as a file path.
const packName = "sentriflow-defaults"

// Priority is the default rule layer's fixed merge priority (spec §4.6
// step 2: "Default rules: priority 0").
const Priority = 0

var compiled []rules.Rule

func init() {
	pack, err := packs.LoadJSONRules(rawRules, packName, Priority)
	if err != nil {
		panic(fmt.Sprintf("defaults: embedded rule set failed to compile: %s", err))
	}
	compiled = pack.Rules
}

// Rules returns the built-in default rule set. The slice is shared and
// must not be mutated by callers; it is safe for concurrent read access
// since it never changes after package init (spec §11: "the default rule
// set is process-wide and read-only after initialization").
func Rules() []rules.Rule {
	return compiled
}
