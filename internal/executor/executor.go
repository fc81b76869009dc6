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

// Package executor defines the narrow boundary between the control plane
// and the out-of-scope native tensor engine: a producer of per-step token
// tensors and a consumer of scheduled task descriptors. Nothing in this
// package does tensor math; it only shapes the interface the scheduler and
// token processor call through.
package executor

import (
	"context"
	"fmt"

	"github.com/llmserve/enginectl/internal/task"
)

// Engine is the interface the scheduler loop and token processor call into
// the executor through. A real implementation wraps a native inference
// process; Fake (in this package) is a scripted stand-in for tests and the
// bundled demo binary.
type Engine interface {
	// Submit hands the tasks admitted this round, plus a snapshot of every
	// currently occupied slot, to the executor to start the next
	// prefill+decode step.
	Submit(ctx context.Context, admitted []*task.Task, snapshot []*task.Task) error

	// Step blocks (when blocking is true) until the executor has produced
	// the next step's raw output tensor for rank, or returns immediately
	// with a nil row if none is ready yet.
	Step(ctx context.Context, rank int, blocking bool) ([]int64, error)

	// Heartbeat reports whether the executor has signalled liveness within
	// the configured health-check interval.
	Heartbeat(ctx context.Context) (ready bool, err error)
}

// StepOutput is the parsed form of the fixed-shape integer tensor a step
// call returns: position 0 a control word, position 1 the active batch
// count, positions 2..B+1 one token id per slot.
type StepOutput struct {
	Skip      bool // control word was -2: no output this step
	BatchSize int
	TokenIDs  []int64 // length == BatchSize; -1 means the slot produced nothing
}

const controlSkip = -2

// ParseStepTensor decodes the raw tensor row the executor produces once
// per decode step into a StepOutput.
func ParseStepTensor(row []int64) (*StepOutput, error) {
	if len(row) < 2 {
		return nil, fmt.Errorf("step tensor too short: len=%d", len(row))
	}
	if row[0] == controlSkip {
		return &StepOutput{Skip: true}, nil
	}
	batch := int(row[1])
	if batch < 0 || len(row) < 2+batch {
		return nil, fmt.Errorf("step tensor batch size %d inconsistent with row length %d", batch, len(row))
	}
	return &StepOutput{
		BatchSize: batch,
		TokenIDs:  row[2 : 2+batch],
	}, nil
}
