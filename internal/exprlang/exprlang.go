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

// Package exprlang parses the restricted expression grammar used by legacy
// GRPX pack rule bodies (checkSource text, see spec §4.4) into
// rules.CheckSpec values. It is deliberately not a general-purpose
// expression language: the grammar is a thin function-call syntax over the
// same vocabulary CheckSpec already expresses declaratively (match,
// contains, child_exists, and/or/not, ...), plus one extra form JSON
// rules don't get: helper("name"), a lookup into the Helper Injection
// Layer's table (spec §4.9) bound at evaluation time. A legacy rule body
// can do nothing else a JSON rule file's DeclarativeCheck couldn't
// already do.
//
// exprlang wires itself into internal/rules at init() time by assigning
// rules.CustomEvaluator, so that the code of a `custom` CheckSpec (from a
// JSON rule file or a config rule) is interpreted through this grammar
// without rules needing to import exprlang directly. A legacy pack's
// checkSource does not go through CustomEvaluator: it is parsed by Parse
// when the pack is compiled.
package exprlang

import (
	"github.com/kraklabs/sentriflow/internal/rules"
	"github.com/kraklabs/sentriflow/pkg/configtree"
)

func init() {
	rules.CustomEvaluator = Eval
}

// Eval parses code as an exprlang program and evaluates it against node.
// It satisfies the signature rules.CustomEvaluator expects.
func Eval(code string, node *configtree.Node) (bool, error) {
	spec, err := Parse(code)
	if err != nil {
		return false, err
	}
	return rules.Interpret(spec, node)
}

// Parse compiles an exprlang program into a rules.CheckSpec. Programs are a
// single function-call expression, e.g.:
//
//	and(contains("ssh"), not(match("telnet", "i")))
//	child_matches("acl-entry", "permit ip any any")
func Parse(src string) (rules.CheckSpec, error) {
	toks, err := lex(src)
	if err != nil {
		return rules.CheckSpec{}, err
	}
	p := &parser{toks: toks}
	spec, err := p.parseExpr()
	if err != nil {
		return rules.CheckSpec{}, err
	}
	if p.pos != len(p.toks) {
		return rules.CheckSpec{}, newUnexpectedTrailingError(p.toks[p.pos:])
	}
	return spec, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) expect(kind tokenKind, text string) error {
	t, ok := p.next()
	if !ok || t.kind != kind || (text != "" && t.text != text) {
		return newUnexpectedTokenError(text, t, ok)
	}
	return nil
}

// parseExpr parses one `ident(args...)` call into a CheckSpec.
func (p *parser) parseExpr() (rules.CheckSpec, error) {
	nameTok, ok := p.next()
	if !ok || nameTok.kind != tokenIdent {
		return rules.CheckSpec{}, newUnexpectedTokenError("identifier", nameTok, ok)
	}
	if err := p.expect(tokenPunct, "("); err != nil {
		return rules.CheckSpec{}, err
	}

	var args []argument
	if t, ok := p.peek(); !ok || t.kind != tokenPunct || t.text != ")" {
		for {
			arg, err := p.parseArg()
			if err != nil {
				return rules.CheckSpec{}, err
			}
			args = append(args, arg)
			t, ok := p.peek()
			if !ok {
				return rules.CheckSpec{}, newUnexpectedTokenError(", or )", token{}, false)
			}
			if t.kind == tokenPunct && t.text == "," {
				p.pos++
				continue
			}
			break
		}
	}
	if err := p.expect(tokenPunct, ")"); err != nil {
		return rules.CheckSpec{}, err
	}

	return build(nameTok.text, args)
}

// argument is either a string literal or a nested expression.
type argument struct {
	isString bool
	str      string
	expr     rules.CheckSpec
}

func (p *parser) parseArg() (argument, error) {
	t, ok := p.peek()
	if !ok {
		return argument{}, newUnexpectedTokenError("argument", token{}, false)
	}
	if t.kind == tokenString {
		p.pos++
		return argument{isString: true, str: t.text}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return argument{}, err
	}
	return argument{expr: expr}, nil
}

// build maps a parsed function name + arguments onto the CheckSpec vocabulary.
func build(name string, args []argument) (rules.CheckSpec, error) {
	str := func(i int) (string, error) {
		if i >= len(args) || !args[i].isString {
			return "", newArgTypeError(name, i, "string")
		}
		return args[i].str, nil
	}
	optStr := func(i int) string {
		if i < len(args) && args[i].isString {
			return args[i].str
		}
		return ""
	}
	subExprs := func() ([]rules.CheckSpec, error) {
		out := make([]rules.CheckSpec, 0, len(args))
		for i, a := range args {
			if a.isString {
				return nil, newArgTypeError(name, i, "expression")
			}
			out = append(out, a.expr)
		}
		return out, nil
	}

	switch name {
	case "match", "not_match":
		pattern, err := str(0)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		kind := rules.KindMatch
		if name == "not_match" {
			kind = rules.KindNotMatch
		}
		return rules.CheckSpec{Kind: kind, Pattern: pattern, Flags: optStr(1)}, nil

	case "contains", "not_contains":
		text, err := str(0)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		kind := rules.KindContains
		if name == "not_contains" {
			kind = rules.KindNotContains
		}
		return rules.CheckSpec{Kind: kind, Text: text}, nil

	case "child_exists", "child_not_exists":
		selector, err := str(0)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		kind := rules.KindChildExists
		if name == "child_not_exists" {
			kind = rules.KindChildNotExists
		}
		return rules.CheckSpec{Kind: kind, Selector: selector}, nil

	case "child_matches":
		selector, err := str(0)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		pattern, err := str(1)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		return rules.CheckSpec{Kind: rules.KindChildMatches, Selector: selector, Pattern: pattern, Flags: optStr(2)}, nil

	case "child_contains":
		selector, err := str(0)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		text, err := str(1)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		return rules.CheckSpec{Kind: rules.KindChildContains, Selector: selector, Text: text}, nil

	case "and", "or":
		conds, err := subExprs()
		if err != nil {
			return rules.CheckSpec{}, err
		}
		if len(conds) == 0 {
			return rules.CheckSpec{}, newArgCountError(name, 1, 0)
		}
		kind := rules.KindAnd
		if name == "or" {
			kind = rules.KindOr
		}
		return rules.CheckSpec{Kind: kind, Conditions: conds}, nil

	case "not":
		conds, err := subExprs()
		if err != nil {
			return rules.CheckSpec{}, err
		}
		if len(conds) != 1 {
			return rules.CheckSpec{}, newArgCountError(name, 1, len(conds))
		}
		return rules.CheckSpec{Kind: rules.KindNot, Conditions: conds}, nil

	case "helper":
		// helper("cisco.isShutdown") or helper("isShutdown") — looked up
		// against the Helper Injection Layer's table at evaluation time
		// (spec §4.9), never resolved at parse time.
		helperName, err := str(0)
		if err != nil {
			return rules.CheckSpec{}, err
		}
		return rules.CheckSpec{Kind: rules.KindHelper, HelperName: helperName}, nil

	default:
		return rules.CheckSpec{}, newUnknownFunctionError(name)
	}
}
