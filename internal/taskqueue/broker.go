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

// Package taskqueue implements a broadcast barrier: a single logical
// producer fans a batch of tasks out to mp_num model-parallel workers that
// must each observe the same batch before the next put proceeds. It is a
// barrier, not a work-stealing queue.
package taskqueue

import (
	"context"

	"github.com/llmserve/enginectl/internal/task"
)

// Broker is the cross-process (or in-process, when every worker is a
// goroutine in the same engine) fan-in primitive workers pull from.
type Broker interface {
	// Put appends item to the current batch. It blocks until every worker
	// has consumed the previous batch before starting a new one.
	Put(ctx context.Context, item *task.Task) error

	// Get returns the tasks rank has not yet consumed from the current
	// batch (nil if rank has already consumed it, or the batch is empty).
	// drained reports whether every rank has now consumed this batch, in
	// which case the broker has reset for the next one.
	Get(ctx context.Context, rank int) (items []*task.Task, drained bool, err error)

	// Empty reports whether the current batch is empty.
	Empty(ctx context.Context) (bool, error)
}
