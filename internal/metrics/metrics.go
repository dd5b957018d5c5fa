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

// Package metrics exposes Prometheus counters and histograms for pack
// loads, resolve runs, and rule executions. Safe for concurrent use by
// construction (spec SPEC_FULL §5): only the executor's own per-instance
// state needs single-owner discipline, never these counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PackLoadsTotal counts pack load attempts by format and outcome.
	PackLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentriflow",
		Subsystem: "packs",
		Name:      "loads_total",
		Help:      "Total pack load attempts by format and outcome.",
	}, []string{"format", "outcome"})

	// ResolveRunsTotal counts resolve outcomes: "ok" once per completed
	// resolve, "pack_error" once per pack-load failure.
	ResolveRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentriflow",
		Subsystem: "resolver",
		Name:      "runs_total",
		Help:      "Total resolve invocations by outcome.",
	}, []string{"outcome"})

	// ResolvedRuleCount observes the size of the resolved rule set per run.
	ResolvedRuleCount = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentriflow",
		Subsystem: "resolver",
		Name:      "resolved_rule_count",
		Help:      "Number of rules in the resolved rule set per resolve invocation.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// RuleExecutionsTotal counts rule executions by outcome (passed,
	// failed, timed_out, disabled).
	RuleExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentriflow",
		Subsystem: "executor",
		Name:      "rule_executions_total",
		Help:      "Total (rule, node) executions by outcome.",
	}, []string{"outcome"})

	// RuleExecutionSeconds observes per-(rule,node) elapsed execution time.
	RuleExecutionSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentriflow",
		Subsystem: "executor",
		Name:      "rule_execution_seconds",
		Help:      "Elapsed wall-clock time per (rule, node) execution.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		PackLoadsTotal,
		ResolveRunsTotal,
		ResolvedRuleCount,
		RuleExecutionsTotal,
		RuleExecutionSeconds,
	)
}
