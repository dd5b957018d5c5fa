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
	"encoding/json"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/rules"
)

// jsonRuleFile is the top-level shape of a plain JSON rule file (spec §6.3):
// {rules: [...], $schema?, version?}.
type jsonRuleFile struct {
	Schema  string          `json:"$schema,omitempty"`
	Version string          `json:"version,omitempty"`
	Rules   []ruleEntryWire `json:"rules"`
}

// LoadJSONRules parses an unencrypted JSON rule file into a RulePack.
// Unlike GRPX/GRX2, there is no license binding or decryption step; every
// rule entry's check is expected to be a native DeclarativeCheck object.
func LoadJSONRules(data []byte, name string, priority int) (rules.RulePack, error) {
	var parsed jsonRuleFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return rules.RulePack{}, sferrors.NewValidationError("json rule file is not valid", err)
	}

	compiled, err := compileRuleEntries(parsed.Rules)
	if err != nil {
		return rules.RulePack{}, err
	}

	pack := rules.RulePack{
		Name:     name,
		Version:  parsed.Version,
		Priority: priority,
		Rules:    compiled,
	}
	if err := pack.Validate(); err != nil {
		return rules.RulePack{}, sferrors.NewValidationError("json rule file failed structural validation", err)
	}
	return pack, nil
}
