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
	"fmt"

	"github.com/kraklabs/sentriflow/internal/rules"
)

func (w CheckWire) toCheckSpec() (rules.CheckSpec, error) {
	kind := rules.Kind(w.Kind)
	switch kind {
	case rules.KindMatch, rules.KindNotMatch:
		return rules.CheckSpec{Kind: kind, Pattern: w.Pattern, Flags: w.Flags}, nil
	case rules.KindContains, rules.KindNotContains:
		return rules.CheckSpec{Kind: kind, Text: w.Text}, nil
	case rules.KindChildExists, rules.KindChildNotExists:
		return rules.CheckSpec{Kind: kind, Selector: w.Selector}, nil
	case rules.KindChildMatches:
		return rules.CheckSpec{Kind: kind, Selector: w.Selector, Pattern: w.Pattern, Flags: w.Flags}, nil
	case rules.KindChildContains:
		return rules.CheckSpec{Kind: kind, Selector: w.Selector, Text: w.Text}, nil
	case rules.KindAnd, rules.KindOr, rules.KindNot:
		conds := make([]rules.CheckSpec, 0, len(w.Conditions))
		for _, c := range w.Conditions {
			spec, err := c.toCheckSpec()
			if err != nil {
				return rules.CheckSpec{}, err
			}
			conds = append(conds, spec)
		}
		return rules.CheckSpec{Kind: kind, Conditions: conds}, nil
	case rules.KindCustom:
		return rules.CheckSpec{Kind: kind, Custom: w.Code}, nil
	default:
		return rules.CheckSpec{}, fmt.Errorf("config: unknown check kind %q", w.Kind)
	}
}

// CompileRules converts the config file's legacy literal rules[] into
// rules.Rule values, compiling each entry's DeclarativeCheck the same way
// internal/packs does for JSON rule files (spec §4.6 step 2: "Legacy config
// rules[]: priority 50").
func CompileRules(entries []RuleWire) ([]rules.Rule, error) {
	out := make([]rules.Rule, 0, len(entries))
	for _, e := range entries {
		spec, err := e.Check.toCheckSpec()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", e.ID, err)
		}
		out = append(out, rules.Rule{
			ID:       e.ID,
			Selector: e.Selector,
			Vendor:   e.Vendor,
			Metadata: rules.Metadata{
				Level:       rules.Level(e.Metadata.Level),
				Remediation: e.Metadata.Remediation,
				Tags:        e.Metadata.Tags,
			},
			Check: rules.ToCheck(spec),
		})
	}
	return out, nil
}
