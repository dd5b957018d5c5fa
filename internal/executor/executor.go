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

// Package executor runs a Rule's check against a config-tree node, tracking
// per-rule elapsed time and auto-disabling rules that chronically exceed
// their timeout threshold (spec §4.7). An Executor is instance-scoped:
// concurrent scans must use independent instances, since its state (timeout
// counters, disabled set) is mutated without a single-owner guarantee
// across instances. Every check invocation is handed a Context carrying
// the Helper Injection Layer's frozen table (spec §4.9), filled in from
// internal/helpers.Registry when the caller doesn't supply one.
package executor

import (
	"fmt"
	"sync"
	"time"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/helpers"
	"github.com/kraklabs/sentriflow/internal/rules"
	"github.com/kraklabs/sentriflow/pkg/configtree"
)

// DefaultTimeoutThreshold is the per-(rule,node) elapsed-time threshold
// above which an invocation counts as a timeout.
const DefaultTimeoutThreshold = 100 * time.Millisecond

// DefaultMaxTimeouts is the number of timeouts after which a rule is
// auto-disabled.
const DefaultMaxTimeouts = 3

// Config parameterizes an Executor.
type Config struct {
	TimeoutThreshold time.Duration
	MaxTimeouts      int
	OnRuleDisabled   func(ruleID string)
	OnError          func(ruleID string, err error)
}

func (c Config) withDefaults() Config {
	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = DefaultTimeoutThreshold
	}
	if c.MaxTimeouts <= 0 {
		c.MaxTimeouts = DefaultMaxTimeouts
	}
	return c
}

type ruleStats struct {
	invocations int
	elapsed     time.Duration
	timeouts    int
}

// Executor holds per-rule execution state for one scan. Zero value is not
// usable; construct with New.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	stats    map[string]*ruleStats
	disabled map[string]bool
}

// New constructs an Executor with cfg (zero-valued fields take spec
// defaults: 100ms threshold, 3 max timeouts).
func New(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.withDefaults(),
		stats:    make(map[string]*ruleStats),
		disabled: make(map[string]bool),
	}
}

// Execute runs rule's check against node. The second return value is false
// when the rule is currently disabled (no RuleResult is produced), matching
// spec's `execute(...) → RuleResult | none`.
func (e *Executor) Execute(rule rules.Rule, node *configtree.Node, ctx *rules.Context) (rules.RuleResult, bool) {
	e.mu.Lock()
	if e.disabled[rule.ID] {
		e.mu.Unlock()
		return rules.RuleResult{}, false
	}
	st, ok := e.stats[rule.ID]
	if !ok {
		st = &ruleStats{}
		e.stats[rule.ID] = st
	}
	e.mu.Unlock()

	ctx = bindHelperTable(ctx)

	start := time.Now()
	result, err := e.invokeSafely(rule, node, ctx)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	st.invocations++
	st.elapsed += elapsed

	if elapsed > e.cfg.TimeoutThreshold {
		st.timeouts++
		if st.timeouts >= e.cfg.MaxTimeouts && !e.disabled[rule.ID] {
			e.disabled[rule.ID] = true
			if e.cfg.OnRuleDisabled != nil {
				e.cfg.OnRuleDisabled(rule.ID)
			}
		}
	}

	if err != nil {
		if e.cfg.OnError != nil {
			e.cfg.OnError(rule.ID, err)
		}
		return syntheticFailingResult(rule, node), true
	}

	result.RuleID = rule.ID
	if result.Level == "" {
		result.Level = rule.Metadata.Level
	}
	return result, true
}

// bindHelperTable returns a Context whose HelperTable is the Helper
// Injection Layer's frozen registry (spec §4.9), filling it in when the
// caller didn't already supply one, so every pack-provided check sees the
// same vendor-scoped helpers regardless of caller.
func bindHelperTable(ctx *rules.Context) *rules.Context {
	if ctx == nil {
		return &rules.Context{HelperTable: helpers.Registry}
	}
	if ctx.HelperTable == nil {
		bound := *ctx
		bound.HelperTable = helpers.Registry
		return &bound
	}
	return ctx
}

// invokeSafely calls rule.Check, converting a panic into an error so a
// misbehaving rule can never take down the scan (spec §4.7: "if
// rule.check throws").
func (e *Executor) invokeSafely(rule rules.Rule, node *configtree.Node, ctx *rules.Context) (result rules.RuleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sferrors.NewRuleExecutionError(rule.ID, fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return rule.Check(node, ctx), nil
}

func syntheticFailingResult(rule rules.Rule, node *configtree.Node) rules.RuleResult {
	return rules.RuleResult{
		Passed:  false,
		RuleID:  rule.ID,
		NodeID:  node.ID,
		Level:   rule.Metadata.Level,
		Message: "rule execution failed",
	}
}

// DisabledRules returns the ids of rules this Executor has auto-disabled
// so far, in no particular order.
func (e *Executor) DisabledRules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.disabled))
	for id := range e.disabled {
		out = append(out, id)
	}
	return out
}

// IsDisabled reports whether ruleID is currently auto-disabled.
func (e *Executor) IsDisabled(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disabled[ruleID]
}

// Stats reports the invocation count and cumulative elapsed time tracked
// for ruleID, for diagnostics.
func (e *Executor) Stats(ruleID string) (invocations int, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.stats[ruleID]
	if !ok {
		return 0, 0
	}
	return st.invocations, st.elapsed
}
