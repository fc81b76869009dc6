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

package executor

import (
	"context"
	"sync"

	"github.com/llmserve/enginectl/internal/task"
)

// Fake is an in-memory Engine used by tests and the cmd/engineserver
// --warmup/demo path. Each call to Fake.Enqueue adds one scripted step
// row that the next Step call returns, letting tests drive the scheduler
// and token processor without a real tensor backend.
type Fake struct {
	mu    sync.Mutex
	steps [][]int64
	ready bool
}

// NewFake returns a Fake that reports itself healthy immediately.
func NewFake() *Fake {
	return &Fake{ready: true}
}

func (f *Fake) Submit(ctx context.Context, admitted []*task.Task, snapshot []*task.Task) error {
	return nil
}

// Enqueue schedules row to be returned by the next Step call.
func (f *Fake) Enqueue(row []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, row)
}

func (f *Fake) Step(ctx context.Context, rank int, blocking bool) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.steps) == 0 {
		return nil, nil
	}
	row := f.steps[0]
	f.steps = f.steps[1:]
	return row, nil
}

func (f *Fake) Heartbeat(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready, nil
}

// SetReady toggles the heartbeat the health prober observes, for testing
// the executor-fault path.
func (f *Fake) SetReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
}
