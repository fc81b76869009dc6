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

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmserve/enginectl/internal/config"
	"github.com/llmserve/enginectl/internal/executor"
	"github.com/llmserve/enginectl/internal/resource"
	"github.com/llmserve/enginectl/internal/task"
	"github.com/llmserve/enginectl/internal/taskqueue"
)

func testConfig() *config.Config {
	cfg := &config.Config{BlockSize: 4, MaxBatchSize: 1, MaxSeqLen: 64, MaxDecLen: 8}
	cfg.DecTokenNum = 4
	cfg.MaxQueryBlockNum = 100
	cfg.MaxBlockNum = 4
	return cfg
}

func TestTick_AdmitsAndSubmits(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	rm := resource.New(cfg)
	queue := taskqueue.NewInProcessBroker(1, 0)
	eng := executor.NewFake()

	require.NoError(t, queue.Put(ctx, task.New("r1", []int{1, 2})))

	loop := New(0, queue, rm, eng)
	require.NoError(t, loop.Tick(ctx))

	assert.False(t, rm.StopFlag(0))
	assert.Equal(t, "r1", rm.Task(0).ReqID)
}

func TestTick_RetriesUnadmittedCandidatesNextTick(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	rm := resource.New(cfg)
	queue := taskqueue.NewInProcessBroker(1, 0)
	eng := executor.NewFake()

	require.NoError(t, queue.Put(ctx, task.New("r1", []int{1})))
	require.NoError(t, queue.Put(ctx, task.New("r2", []int{1})))

	loop := New(0, queue, rm, eng)
	require.NoError(t, loop.Tick(ctx))
	assert.Len(t, loop.pending, 1)
	assert.Equal(t, "r2", loop.pending[0].ReqID)

	rm.Recycle(0)
	require.NoError(t, loop.Tick(ctx))
	assert.Empty(t, loop.pending)
	assert.Equal(t, "r2", rm.Task(0).ReqID)
}

func TestTick_DropsOversizeCandidateInsteadOfRetrying(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	rm := resource.New(cfg)
	queue := taskqueue.NewInProcessBroker(1, 0)
	eng := executor.NewFake()

	require.NoError(t, queue.Put(ctx, task.New("big", make([]int, 1000))))

	loop := New(0, queue, rm, eng)
	require.NoError(t, loop.Tick(ctx))
	assert.Empty(t, loop.pending)

	require.NoError(t, loop.Tick(ctx))
	assert.Empty(t, loop.pending)
}

func TestTick_NoOpOnEmptyQueue(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	rm := resource.New(cfg)
	queue := taskqueue.NewInProcessBroker(1, 0)
	eng := executor.NewFake()

	loop := New(0, queue, rm, eng)
	assert.NoError(t, loop.Tick(ctx))
}
