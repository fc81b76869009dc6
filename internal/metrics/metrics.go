/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes the engine's occupancy and throughput counters
// to Prometheus, following the same client_golang registration pattern the
// example pack's gateway components use for their request counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TasksAdmitted counts tasks the resource manager successfully
	// allocated a slot and blocks to.
	TasksAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "enginectl",
		Name:      "tasks_admitted_total",
		Help:      "Total tasks admitted into a batch slot.",
	})

	// TasksRejectedCapacity counts tasks left pending because no slot or
	// no KV blocks were available this round.
	TasksRejectedCapacity = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "enginectl",
		Name:      "tasks_rejected_capacity_total",
		Help:      "Total tasks deferred for lack of free slots or KV blocks.",
	})

	// TasksRejectedOversize counts tasks rejected terminally at admission:
	// a prompt longer than max_seq_len, or a req_id that already occupies
	// a slot.
	TasksRejectedOversize = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "enginectl",
		Name:      "tasks_rejected_oversize_total",
		Help:      "Total tasks rejected at admission for exceeding max_seq_len or duplicating an admitted req_id.",
	})

	// FreeBlocks tracks the resource manager's current free KV block count.
	FreeBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "enginectl",
		Name:      "free_blocks",
		Help:      "Free KV cache blocks remaining.",
	})

	// ActiveSlots tracks the number of occupied batch slots.
	ActiveSlots = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "enginectl",
		Name:      "active_slots",
		Help:      "Batch slots currently occupied.",
	})

	// QueueDepth tracks the number of tasks waiting in the task queue that
	// have not yet been admitted.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "enginectl",
		Name:      "queue_depth",
		Help:      "Tasks enqueued but not yet admitted to a batch slot.",
	})

	// TokensGenerated counts decoded tokens streamed to clients.
	TokensGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "enginectl",
		Name:      "tokens_generated_total",
		Help:      "Total output tokens streamed to clients.",
	})
)

// Register adds every collector in this package to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		TasksAdmitted,
		TasksRejectedCapacity,
		TasksRejectedOversize,
		FreeBlocks,
		ActiveSlots,
		QueueDepth,
		TokensGenerated,
	)
}
