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

// Package resolver merges default rules and zero or more RulePacks into one
// keyed-by-id rule set (spec §4.6), applying disable directives and an
// optional vendor filter.
package resolver

import "github.com/kraklabs/sentriflow/internal/rules"

// Options parameterizes one resolve.
type Options struct {
	// VendorID, when non-empty, restricts the output to rules that apply
	// to this vendor (rules.Rule.AppliesToVendor).
	VendorID string
}

// disableSet is the union of every pack's disables directive plus any
// legacy disable ids supplied directly by the caller (config/CLI).
type disableSet struct {
	all     bool
	ruleIDs map[string]bool
	vendors map[string]bool
}

func collectDisables(packs []rules.RulePack, extraDisabledIDs []string) disableSet {
	ds := disableSet{ruleIDs: map[string]bool{}, vendors: map[string]bool{}}
	for _, id := range extraDisabledIDs {
		ds.ruleIDs[id] = true
	}
	for _, p := range packs {
		if p.Disables == nil {
			continue
		}
		if p.Disables.All {
			ds.all = true
		}
		for _, id := range p.Disables.Rules {
			ds.ruleIDs[id] = true
		}
		for _, v := range p.Disables.Vendors {
			ds.vendors[v] = true
		}
	}
	return ds
}

// disablesDefault reports whether a default-layer rule r must be skipped
// at seeding time. Per spec §4.6 step 4 / §8, disables apply only to the
// default rule layer; pack-provided rules are never affected by disables.
func (ds disableSet) disablesDefault(r rules.Rule, vendorFilter string) bool {
	if ds.all {
		return true
	}
	if ds.ruleIDs[r.ID] {
		return true
	}
	if vendorFilter != "" && ds.vendors[vendorFilter] {
		return true
	}
	return false
}

// owner is one entry in the resolved map: the winning rule plus the
// priority of the pack that contributed it, used to arbitrate overwrites.
type owner struct {
	rule     rules.Rule
	priority int
}

// Resolve merges defaultRules (priority 0, per spec) with packs (each
// already carrying its own merge priority — loaders and the orchestrator
// are responsible for stamping these per the schedule in spec §4.6 step 2)
// into one rule set keyed by rule id.
//
// packs must be supplied in source-insertion order; Resolve performs a
// stable sort by ascending priority, so equal-priority packs keep that
// order and the later one in the slice wins ties (spec §5: "ties resolve
// by source-insertion order, later wins at equal priority").
func Resolve(defaultRules []rules.Rule, packs []rules.RulePack, opts Options, extraDisabledIDs []string) []rules.Rule {
	ds := collectDisables(packs, extraDisabledIDs)

	resolved := make(map[string]owner, len(defaultRules))
	for _, r := range defaultRules {
		if ds.disablesDefault(r, opts.VendorID) {
			continue
		}
		if opts.VendorID != "" && !r.AppliesToVendor(opts.VendorID) {
			continue
		}
		resolved[r.ID] = owner{rule: r, priority: 0}
	}

	ordered := stableSortByPriority(packs)
	for _, p := range ordered {
		for _, r := range p.Rules {
			if opts.VendorID != "" && !r.AppliesToVendor(opts.VendorID) {
				continue
			}
			prev, exists := resolved[r.ID]
			if !exists || p.Priority >= prev.priority {
				resolved[r.ID] = owner{rule: r, priority: p.Priority}
			}
		}
	}

	out := make([]rules.Rule, 0, len(resolved))
	for _, o := range resolved {
		out = append(out, o.rule)
	}
	return out
}

// stableSortByPriority returns packs ordered by ascending Priority,
// preserving relative order among equal priorities (insertion-sort is
// sufficient and keeps the tie-break explicit without pulling in sort.Slice
// semantics that would need a documented Less).
func stableSortByPriority(packs []rules.RulePack) []rules.RulePack {
	out := make([]rules.RulePack, len(packs))
	copy(out, packs)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Priority > out[j].Priority {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}
