// Copyright (c) 2024 Tigera, Inc. All rights reserved.
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

// Package metrics holds the prometheus collectors the core uses to report
// dispatch and mutation activity, grounded on felix/routetable's
// felix_route_table_list_all_routes_seconds summary.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fibmirror_events_dispatched_total",
		Help: "Number of kernel deltas dispatched to the cache/subscribers, by category and action.",
	}, []string{"category", "action"})

	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fibmirror_events_dropped_total",
		Help: "Number of kernel deltas dropped by the dispatcher's filtering/validation rules, by category and reason.",
	}, []string{"category", "reason"})

	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fibmirror_mutations_total",
		Help: "Number of mutator operations, by operation and outcome (success, tolerated, error).",
	}, []string{"operation", "outcome"})

	RefillDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "fibmirror_refill_duration_seconds",
		Help: "Time taken to bulk-refill one category of cached state from the kernel.",
	}, []string{"category"})

	CacheSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fibmirror_cache_size",
		Help: "Number of entries currently cached, by category.",
	}, []string{"category"})

	LoopOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fibmirror_loop_operations_total",
		Help: "Core-loop operations tallied per digest window by internal/logutils, by operation name (e.g. kernel-event:route:add, task).",
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(EventsDispatched, EventsDropped, MutationsTotal, RefillDuration, CacheSize, LoopOperationsTotal)
}

// ObserveRefill is a small helper mirroring the teacher's
// `listAllRoutesTime.Observe(time.Since(start).Seconds())` idiom.
func ObserveRefill(category string, start time.Time) {
	RefillDuration.WithLabelValues(category).Observe(time.Since(start).Seconds())
}
