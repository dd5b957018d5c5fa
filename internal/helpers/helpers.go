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

// Package helpers builds the frozen helper table bound into every rule
// check's Context (spec §4.9): common tree-walking utilities plus one
// namespace per supported vendor. Short, un-namespaced helper names are
// resolved first-wins across vendors in registration order, so the final
// shape never depends on map iteration order.
package helpers

import (
	"strings"

	"github.com/kraklabs/sentriflow/pkg/configtree"
)

// VendorModule is one vendor's contribution to the helper table: its full
// namespace (keyed as "<name>.<helper>") plus whatever short names it
// wants to offer for bare lookup.
type VendorModule struct {
	Name    string
	Helpers map[string]any
}

// modules is the explicit, ordered vendor list spec.md §4.9 requires.
// Order is significant: it is the tie-break for short-name collisions.
var modules = []VendorModule{
	{Name: "cisco", Helpers: ciscoHelpers()},
	{Name: "juniper", Helpers: juniperHelpers()},
	{Name: "arista", Helpers: aristaHelpers()},
	{Name: "aruba", Helpers: commonVendorHelpers("aruba")},
	{Name: "cumulus", Helpers: commonVendorHelpers("cumulus")},
	{Name: "extreme", Helpers: commonVendorHelpers("extreme")},
	{Name: "fortinet", Helpers: fortinetHelpers()},
	{Name: "huawei", Helpers: commonVendorHelpers("huawei")},
	{Name: "mikrotik", Helpers: commonVendorHelpers("mikrotik")},
	{Name: "nokia", Helpers: commonVendorHelpers("nokia")},
	{Name: "paloalto", Helpers: fortinetHelpers()},
	{Name: "vyos", Helpers: commonVendorHelpers("vyos")},
}

// Registry is the frozen helper table built once at init() time. It is
// never mutated after construction; the executor hands the same value to
// every rule invocation across every scan.
var Registry = build()

func build() map[string]any {
	table := make(map[string]any, 64)

	for name, fn := range commonHelpers() {
		table[name] = fn
	}

	claimedShort := make(map[string]bool, 32)
	for _, m := range modules {
		ns := make(map[string]any, len(m.Helpers))
		for short, fn := range m.Helpers {
			ns[short] = fn
			if !claimedShort[short] {
				table[short] = fn
				claimedShort[short] = true
			}
		}
		table[m.Name] = ns
	}

	return table
}

// commonHelpers are vendor-agnostic tree-walking utilities available under
// every rule's Context regardless of vendor.
func commonHelpers() map[string]any {
	return map[string]any{
		"findChild": func(n *configtree.Node, id string) *configtree.Node {
			return configtree.Find(n, func(c *configtree.Node) bool { return c != n && c.ID == id })
		},
		"childrenOfKind": func(n *configtree.Node, kind string) []*configtree.Node {
			return configtree.ChildrenOfKind(n, kind)
		},
		"textContains": func(n *configtree.Node, substr string) bool {
			return strings.Contains(n.Text, substr)
		},
	}
}

func commonVendorHelpers(vendor string) map[string]any {
	return map[string]any{
		"isShutdown": func(n *configtree.Node) bool {
			return strings.Contains(n.Text, "shutdown") && !strings.Contains(n.Text, "no shutdown")
		},
	}
}

func ciscoHelpers() map[string]any {
	h := commonVendorHelpers("cisco")
	h["hasServicePassword"] = func(n *configtree.Node) bool {
		return strings.Contains(n.Text, "service password-encryption")
	}
	h["isEnablePasswordPlaintext"] = func(n *configtree.Node) bool {
		return strings.Contains(n.Text, "enable password ") && !strings.Contains(n.Text, "enable secret")
	}
	return h
}

func juniperHelpers() map[string]any {
	h := commonVendorHelpers("juniper")
	h["isRootLoginAllowed"] = func(n *configtree.Node) bool {
		return strings.Contains(n.Text, "root-login allow")
	}
	return h
}

func aristaHelpers() map[string]any {
	h := commonVendorHelpers("arista")
	h["hasEapolAuth"] = func(n *configtree.Node) bool {
		return strings.Contains(n.Text, "dot1x")
	}
	return h
}

func fortinetHelpers() map[string]any {
	h := commonVendorHelpers("fortinet")
	h["isPolicyAny"] = func(n *configtree.Node) bool {
		return strings.Contains(n.Text, "srcaddr all") || strings.Contains(n.Text, "dstaddr all")
	}
	return h
}
