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

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/sentriflow/pkg/configtree"
)

// CustomTimeout bounds evaluation of a `custom` CheckSpec variant, per
// spec §6.3.
const CustomTimeout = 100 * time.Millisecond

var regexCache sync.Map // pattern+flags -> *regexp.Regexp

func compileRegex(pattern, flags string) (*regexp.Regexp, error) {
	key := flags + "\x00" + pattern
	if v, ok := regexCache.Load(key); ok {
		return v.(*regexp.Regexp), nil
	}
	expr := pattern
	if strings.Contains(flags, "i") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexCache.Store(key, re)
	return re, nil
}

// Interpret evaluates spec against node with no helper table bound (the
// JSON-rule and combinator paths that never reference a helper). It is
// equivalent to InterpretContext(spec, node, nil).
func Interpret(spec CheckSpec, node *configtree.Node) (bool, error) {
	return InterpretContext(spec, node, nil)
}

// InterpretContext evaluates spec against node, returning the boolean
// check result and any structural error (a bad regex in the spec, an
// unknown helper name, for instance). A Custom variant's panics and
// timeouts are handled internally and never surface as an error: per spec
// they "fail closed" (evaluate to false). ctx carries the Helper
// Injection Layer's frozen table (spec §4.9); it may be nil, in which
// case a Helper variant fails closed rather than erroring.
func InterpretContext(spec CheckSpec, node *configtree.Node, ctx *Context) (bool, error) {
	switch spec.Kind {
	case KindMatch, KindNotMatch:
		re, err := compileRegex(spec.Pattern, spec.Flags)
		if err != nil {
			return false, err
		}
		matched := re.MatchString(node.Text)
		if spec.Kind == KindNotMatch {
			return !matched, nil
		}
		return matched, nil

	case KindContains, KindNotContains:
		has := strings.Contains(node.Text, spec.Text)
		if spec.Kind == KindNotContains {
			return !has, nil
		}
		return has, nil

	case KindChildExists, KindChildNotExists:
		found := configtree.Find(node, func(n *configtree.Node) bool {
			return n != node && n.ID == spec.Selector
		})
		exists := found != nil
		if spec.Kind == KindChildNotExists {
			return !exists, nil
		}
		return exists, nil

	case KindChildMatches:
		re, err := compileRegex(spec.Pattern, spec.Flags)
		if err != nil {
			return false, err
		}
		for _, c := range configtree.ChildrenOfKind(node, spec.Selector) {
			if re.MatchString(c.Text) {
				return true, nil
			}
		}
		// Selector may also identify a node by ID rather than kind.
		if found := configtree.Find(node, func(n *configtree.Node) bool {
			return n != node && n.ID == spec.Selector
		}); found != nil {
			return re.MatchString(found.Text), nil
		}
		return false, nil

	case KindChildContains:
		for _, c := range configtree.ChildrenOfKind(node, spec.Selector) {
			if strings.Contains(c.Text, spec.Text) {
				return true, nil
			}
		}
		if found := configtree.Find(node, func(n *configtree.Node) bool {
			return n != node && n.ID == spec.Selector
		}); found != nil {
			return strings.Contains(found.Text, spec.Text), nil
		}
		return false, nil

	case KindAnd:
		for _, c := range spec.Conditions {
			ok, err := InterpretContext(c, node, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case KindOr:
		for _, c := range spec.Conditions {
			ok, err := InterpretContext(c, node, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindNot:
		if len(spec.Conditions) != 1 {
			return false, errNotRequiresOneCondition
		}
		ok, err := InterpretContext(spec.Conditions[0], node, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case KindCustom:
		return evalCustomFailClosed(spec.Custom, node), nil

	case KindHelper:
		return interpretHelper(spec.HelperName, node, ctx)

	default:
		return false, newUnknownCheckKindError(string(spec.Kind))
	}
}

// interpretHelper resolves spec.HelperName against ctx's frozen helper
// table (spec §4.9) — bare short names and "vendor.name" qualified ones —
// and invokes it against node. A nil ctx (no Helper Injection Layer
// bound) fails closed rather than erroring, matching the other sandboxed
// variants' behavior; an unresolvable name is a structural error, since
// it signals a pack authored against a helper that doesn't exist.
func interpretHelper(name string, node *configtree.Node, ctx *Context) (bool, error) {
	if ctx == nil || ctx.HelperTable == nil {
		return false, nil
	}
	fn, ok := lookupHelper(ctx.HelperTable, name)
	if !ok {
		return false, newUnknownHelperError(name)
	}
	pred, ok := fn.(func(*configtree.Node) bool)
	if !ok {
		return false, newUnknownHelperError(name)
	}
	return pred(node), nil
}

func lookupHelper(table map[string]any, name string) (any, bool) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		ns, ok := table[name[:i]].(map[string]any)
		if !ok {
			return nil, false
		}
		fn, ok := ns[name[i+1:]]
		return fn, ok
	}
	fn, ok := table[name]
	return fn, ok
}

// evalCustomFailClosed interprets spec.Custom as an exprlang program (via
// the CustomEvaluator hook, set by internal/exprlang to avoid an import
// cycle) under CustomTimeout. Any panic, error, or timeout yields false.
func evalCustomFailClosed(code string, node *configtree.Node) bool {
	if CustomEvaluator == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), CustomTimeout)
	defer cancel()

	resultCh := make(chan bool, 1)
	go func() {
		defer func() {
			if recover() != nil {
				resultCh <- false
			}
		}()
		ok, err := CustomEvaluator(code, node)
		if err != nil {
			resultCh <- false
			return
		}
		resultCh <- ok
	}()

	select {
	case ok := <-resultCh:
		return ok
	case <-ctx.Done():
		return false
	}
}

// CustomEvaluator is injected by internal/exprlang at program startup so
// that rules (imported by packs and resolver) doesn't need to import the
// expression-grammar package directly; avoids a dependency cycle since
// exprlang itself builds CheckSpec values.
var CustomEvaluator func(code string, node *configtree.Node) (bool, error)

// ToCheck adapts a CheckSpec into a Check function for use by the Rule
// Executor. The Context handed in at
// invocation time — including its Helper Injection Layer table (spec
// §4.9) — is threaded into every Helper variant the spec tree contains;
// RuleID and Level are left for the Executor to stamp (spec §4.7).
func ToCheck(spec CheckSpec) Check {
	return func(node *configtree.Node, ctx *Context) RuleResult {
		passed, err := InterpretContext(spec, node, ctx)
		if err != nil {
			passed = false
		}
		return RuleResult{Passed: passed, NodeID: node.ID}
	}
}
