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
	"fmt"

	"github.com/kraklabs/sentriflow/internal/rules"
)

// checkSpecWire is the JSON wire shape of spec §6.3's DeclarativeCheck sum
// type: {kind, pattern?, flags?, text?, selector?, conditions?, code?}.
// It is the native check representation for GRX2 and JSON rule files;
// GRPX's free-text checkSource compiles to the same rules.CheckSpec via
// internal/exprlang instead of this JSON path.
type checkSpecWire struct {
	Kind       string          `json:"kind"`
	Pattern    string          `json:"pattern,omitempty"`
	Flags      string          `json:"flags,omitempty"`
	Text       string          `json:"text,omitempty"`
	Selector   string          `json:"selector,omitempty"`
	Conditions []checkSpecWire `json:"conditions,omitempty"`
	Code       string          `json:"code,omitempty"`
}

func (w checkSpecWire) toCheckSpec() (rules.CheckSpec, error) {
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
	case rules.KindAnd, rules.KindOr:
		conds, err := w.conditionSpecs()
		if err != nil {
			return rules.CheckSpec{}, err
		}
		if len(conds) == 0 {
			return rules.CheckSpec{}, fmt.Errorf("%s requires at least one condition", w.Kind)
		}
		return rules.CheckSpec{Kind: kind, Conditions: conds}, nil
	case rules.KindNot:
		conds, err := w.conditionSpecs()
		if err != nil {
			return rules.CheckSpec{}, err
		}
		if len(conds) != 1 {
			return rules.CheckSpec{}, fmt.Errorf("not requires exactly one condition, got %d", len(conds))
		}
		return rules.CheckSpec{Kind: kind, Conditions: conds}, nil
	case rules.KindCustom:
		return rules.CheckSpec{Kind: kind, Custom: w.Code}, nil
	default:
		return rules.CheckSpec{}, fmt.Errorf("unknown check kind %q", w.Kind)
	}
}

func (w checkSpecWire) conditionSpecs() ([]rules.CheckSpec, error) {
	out := make([]rules.CheckSpec, 0, len(w.Conditions))
	for _, c := range w.Conditions {
		spec, err := c.toCheckSpec()
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}
