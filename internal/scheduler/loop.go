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

// Package scheduler drives the admission loop: pull whatever the task
// queue has accumulated, try to admit as much of it as the resource
// manager's slots and blocks allow, and hand the admitted batch plus the
// current occupancy snapshot to the executor.
package scheduler

import (
	"context"
	"time"

	"github.com/llmserve/enginectl/internal/executor"
	"github.com/llmserve/enginectl/internal/logging"
	"github.com/llmserve/enginectl/internal/metrics"
	"github.com/llmserve/enginectl/internal/resource"
	"github.com/llmserve/enginectl/internal/task"
	"github.com/llmserve/enginectl/internal/taskqueue"
)

var log = logging.NewLogger("scheduler")

// Loop owns one rank's admission cycle. Its *resource.Manager is
// single-goroutine-owned; a Loop must never be driven from more than one
// goroutine concurrently.
type Loop struct {
	rank   int
	queue  taskqueue.Broker
	rm     *resource.Manager
	engine executor.Engine

	pollPeriod time.Duration

	// pending holds tasks a previous round's Get returned but Allocate
	// could not fit; they stay at the front of the line for the next round
	// rather than being silently dropped.
	pending []*task.Task
}

// New returns a Loop for rank, polling queue and admitting into rm.
func New(rank int, queue taskqueue.Broker, rm *resource.Manager, engine executor.Engine) *Loop {
	return &Loop{
		rank:       rank,
		queue:      queue,
		rm:         rm,
		engine:     engine,
		pollPeriod: 10 * time.Millisecond,
	}
}

// Run blocks, repeatedly admitting and submitting batches, until ctx is
// cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.Tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollPeriod):
		}
	}
}

// Tick runs one admission cycle: drain whatever the broker has for this
// rank, try to admit it (plus anything left over from a previous tick) and
// submit the admitted batch to the executor.
func (l *Loop) Tick(ctx context.Context) error {
	items, _, err := l.queue.Get(ctx, l.rank)
	if err != nil {
		return err
	}

	candidates := append(l.pending, items...)
	l.pending = nil
	metrics.QueueDepth.Set(float64(len(candidates)))
	if len(candidates) == 0 {
		return nil
	}

	for _, t := range candidates {
		t.ScheduleStartTime = time.Now()
	}

	admitted, terminal := l.rm.Allocate(candidates)
	l.pending = notAdmitted(candidates, admitted, terminal)

	metrics.TasksAdmitted.Add(float64(len(admitted)))
	metrics.TasksRejectedOversize.Add(float64(len(terminal)))
	metrics.TasksRejectedCapacity.Add(float64(len(l.pending)))
	metrics.FreeBlocks.Set(float64(l.rm.AvailableBlockNum()))
	metrics.ActiveSlots.Set(float64(l.rm.RealBatchSize()))

	if len(admitted) == 0 {
		return nil
	}

	snapshot := l.rm.Snapshot()
	if err := l.engine.Submit(ctx, admitted, snapshot); err != nil {
		log.Errorf("submit failed for %d tasks: %v", len(admitted), err)
		for _, t := range admitted {
			l.rm.Recycle(t.SlotIndex)
		}
		return err
	}
	return nil
}

// notAdmitted returns the candidates that are still eligible for a retry
// next tick: everything that neither made it into admitted nor was
// rejected terminally. Oversize and duplicate-req_id rejections are
// dropped here rather than requeued, since retrying can never change
// their outcome.
func notAdmitted(candidates, admitted, terminal []*task.Task) []*task.Task {
	settled := make(map[string]struct{}, len(admitted)+len(terminal))
	for _, t := range admitted {
		settled[t.ReqID] = struct{}{}
	}
	for _, t := range terminal {
		settled[t.ReqID] = struct{}{}
	}
	if len(settled) == 0 {
		return candidates
	}
	var left []*task.Task
	for _, t := range candidates {
		if _, ok := settled[t.ReqID]; !ok {
			left = append(left, t)
		}
	}
	return left
}
