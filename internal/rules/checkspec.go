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

package rules

// CheckSpec is the declarative tagged-union AST that both JSON rule files
// (spec §6.3) and compiled pack bodies (§4.4a) reduce to. Per the design
// notes in spec §9, SentriFlow never reintroduces a general-purpose eval:
// every rule body, however it arrived (JSON variant, or a legacy pack's
// checkSource parsed by internal/exprlang), becomes one of these variants
// before it is ever interpreted.
type CheckSpec struct {
	Kind Kind

	// Leaf variants: match/not_match, contains/not_contains.
	Pattern string
	Flags   string
	Text    string

	// Selector-scoped variants: child_exists/child_not_exists,
	// child_matches, child_contains.
	Selector string

	// Combinators: and/or hold Conditions; not holds exactly Conditions[0].
	Conditions []CheckSpec

	// Custom holds an exprlang program string (§6.3's `custom({code})`),
	// interpreted under the same restricted grammar as legacy pack bodies,
	// never a general-purpose eval. Any exception or timeout while
	// evaluating Custom yields false ("fail closed").
	Custom string

	// HelperName names an entry in the Context's HelperTable (spec §4.9):
	// either a bare short name ("isShutdown") or a vendor-qualified one
	// ("cisco.isShutdown"). Only reachable from a legacy pack's compiled
	// checkSource, never from a JSON rule file's `custom` variant, which
	// per §6.3 gets a frozen node view only.
	HelperName string
}

// Kind enumerates CheckSpec's variants.
type Kind string

const (
	KindMatch          Kind = "match"
	KindNotMatch       Kind = "not_match"
	KindContains       Kind = "contains"
	KindNotContains    Kind = "not_contains"
	KindChildExists    Kind = "child_exists"
	KindChildNotExists Kind = "child_not_exists"
	KindChildMatches   Kind = "child_matches"
	KindChildContains  Kind = "child_contains"
	KindAnd            Kind = "and"
	KindOr             Kind = "or"
	KindNot            Kind = "not"
	KindCustom         Kind = "custom"
	KindHelper         Kind = "helper"
)
