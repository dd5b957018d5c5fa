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

// Package rules defines SentriFlow's core data model: Rule, RuleResult,
// RulePack, and the declarative check language rule bodies are expressed
// in (see checkspec.go and interpreter.go).
package rules

import (
	"regexp"

	"github.com/kraklabs/sentriflow/pkg/configtree"
)

// Level is a rule's severity.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// VendorCommon is the special vendor value meaning "applies to every vendor".
const VendorCommon = "common"

// Security carries optional vulnerability metadata for a rule.
type Security struct {
	CWE        []string
	CVSSScore  float64
	CVSSVector string
}

// Metadata is the descriptive, non-executable half of a Rule.
type Metadata struct {
	Level       Level
	Remediation string
	Security    *Security
	Tags        []string
}

// idPattern is the identity format every Rule.ID must match:
// ^[A-Z][A-Z0-9_]*(-[A-Z0-9_]+)*$
var idPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*(-[A-Z0-9_]+)*$`)

// ValidID reports whether id is a well-formed rule identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Check is the executable behavior of a Rule: given a config-tree node and
// an execution Context, it produces a RuleResult.
type Check func(node *configtree.Node, ctx *Context) RuleResult

// Context is passed to every Check invocation. HelperTable is the frozen
// helper/vendor-namespace record described in spec §4.9; it is built once
// by the helpers package and never mutated after construction.
type Context struct {
	HelperTable map[string]any
}

// Rule is one check a RulePack contributes.
type Rule struct {
	ID       string
	Selector string // matches node IDs in the config tree; empty matches any node
	Vendor   []string
	Metadata Metadata
	Check    Check
}

// AppliesToVendor reports whether the rule applies when scanning for
// vendorID: true if the rule declares no vendor (applies everywhere), the
// vendor list contains VendorCommon, or it contains vendorID exactly.
func (r Rule) AppliesToVendor(vendorID string) bool {
	if vendorID == "" || len(r.Vendor) == 0 {
		return true
	}
	for _, v := range r.Vendor {
		if v == VendorCommon || v == vendorID {
			return true
		}
	}
	return false
}

// RuleResult is the immutable outcome of one (rule, node) evaluation.
type RuleResult struct {
	Passed  bool
	RuleID  string
	NodeID  string
	Level   Level
	Message string
	Loc     *Location
}

// Location optionally pinpoints a RuleResult within the source config text.
type Location struct {
	Line   int
	Column int
}

// Disables describes what a RulePack turns off. All defaults disables all
// default rules; Rules disables specific rule ids; Vendors disables every
// default rule when the resolve runs with a vendor filter naming one of
// the listed vendors (without a vendor filter, Vendors has no effect).
// Per spec §8, disables apply only to the default rule layer, never to
// other packs' rules.
type Disables struct {
	All     bool
	Rules   []string
	Vendors []string
}

// PackMetadata carries descriptive, non-semantic information about a pack.
type PackMetadata struct {
	Description string
	License     string
	Category    string
}

// RulePack is a versioned bundle of rules with metadata and optional
// disable directives.
type RulePack struct {
	Name      string
	Version   string
	Publisher string
	Priority  int
	Rules     []Rule
	Disables  *Disables
	Metadata  *PackMetadata
}

// Validate checks RulePack's structural invariants: Name is non-empty and
// every Rule has a well-formed, pack-unique ID.
func (p RulePack) Validate() error {
	if p.Name == "" {
		return errPackNameEmpty
	}
	seen := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		if !ValidID(r.ID) {
			return newInvalidRuleIDError(r.ID)
		}
		if seen[r.ID] {
			return newDuplicateRuleIDError(r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
