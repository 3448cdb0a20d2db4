// Copyright 2025 vexdb, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Executor metrics.
var (
	// NLJoinOutputRows counts rows emitted by nested-loop join probe
	// operators, labeled by join type.
	NLJoinOutputRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "executor",
			Name:      "nljoin_output_rows_total",
			Help:      "Counter of rows output by nested-loop join probe operators.",
		}, []string{"join_type"})

	// NLJoinRightEmitRows counts unmatched build rows emitted during the
	// right-join phase.
	NLJoinRightEmitRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "executor",
			Name:      "nljoin_right_emit_rows_total",
			Help:      "Counter of unmatched build rows emitted for right/full outer joins.",
		})

	// NLJoinBuildRows counts rows materialized into build contexts.
	NLJoinBuildRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "executor",
			Name:      "nljoin_build_rows_total",
			Help:      "Counter of build side rows materialized for nested-loop joins.",
		})
)

// RegisterMetrics registers all metrics with the default registry. Called
// once from the server main.
func RegisterMetrics() {
	prometheus.MustRegister(NLJoinOutputRows)
	prometheus.MustRegister(NLJoinRightEmitRows)
	prometheus.MustRegister(NLJoinBuildRows)
}
