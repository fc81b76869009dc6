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

package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmserve/enginectl/internal/config"
	"github.com/llmserve/enginectl/internal/task"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		BlockSize:    4,
		MaxBatchSize: 2,
		MaxSeqLen:    64,
		MaxDecLen:    8,
	}
	cfg.DecTokenNum = 4
	cfg.MaxQueryBlockNum = 100
	cfg.MaxBlockNum = 4
	return cfg
}

func TestAllocate_AdmitsToCapacity(t *testing.T) {
	m := New(testConfig())

	t1 := task.New("r1", make([]int, 4)) // needs ceil((4+4)/4)=2 blocks
	t2 := task.New("r2", make([]int, 4))

	admitted, terminal := m.Allocate([]*task.Task{t1, t2})

	require.Len(t, admitted, 2)
	assert.Empty(t, terminal)
	assert.Equal(t, 0, t1.SlotIndex)
	assert.Equal(t, 1, t2.SlotIndex)
	assert.Equal(t, 0, m.AvailableBlockNum())
	assert.Equal(t, 0, m.AvailableBatch())
}

func TestAllocate_RejectsOversizeWithoutConsumingSlot(t *testing.T) {
	m := New(testConfig())

	oversized := task.New("big", make([]int, 1000))
	fits := task.New("small", make([]int, 4))

	admitted, terminal := m.Allocate([]*task.Task{oversized, fits})

	require.Len(t, admitted, 1)
	assert.Equal(t, "small", admitted[0].ReqID)
	assert.Equal(t, 0, admitted[0].SlotIndex)
	require.Len(t, terminal, 1)
	assert.Equal(t, "big", terminal[0].ReqID)
	assert.Equal(t, -1, oversized.SlotIndex)
}

func TestAllocate_RejectsDuplicateReqIDWithoutConsumingSlot(t *testing.T) {
	m := New(testConfig())

	first := task.New("dup", make([]int, 4))
	m.Allocate([]*task.Task{first})

	again := task.New("dup", make([]int, 4))
	admitted, terminal := m.Allocate([]*task.Task{again})

	assert.Empty(t, admitted)
	require.Len(t, terminal, 1)
	assert.Equal(t, "dup", terminal[0].ReqID)
	assert.Equal(t, -1, again.SlotIndex)
	assert.Equal(t, 1, m.AvailableBatch())
}

func TestAllocate_StopsWhenBlocksExhausted(t *testing.T) {
	m := New(testConfig())

	t1 := task.New("r1", make([]int, 4))
	t2 := task.New("r2", make([]int, 4))
	t3 := task.New("r3", make([]int, 4)) // no free slots or blocks left

	admitted, terminal := m.Allocate([]*task.Task{t1, t2, t3})

	require.Len(t, admitted, 2)
	assert.Empty(t, terminal)
	assert.Equal(t, -1, t3.SlotIndex)
}

func TestRecycle_ReturnsBlocksAndFreesSlot(t *testing.T) {
	m := New(testConfig())
	tk := task.New("r1", make([]int, 4))
	m.Allocate([]*task.Task{tk})
	require.Equal(t, 2, m.AvailableBlockNum())

	m.Recycle(tk.SlotIndex)

	assert.Equal(t, 4, m.AvailableBlockNum())
	assert.True(t, m.StopFlag(0))
	assert.Nil(t, m.Task(0))
}

func TestAllocate_PreservesCandidateOrder(t *testing.T) {
	m := New(testConfig())
	tasks := []*task.Task{
		task.New("a", make([]int, 4)),
		task.New("b", make([]int, 4)),
	}
	admitted, terminal := m.Allocate(tasks)
	require.Len(t, admitted, 2)
	assert.Empty(t, terminal)
	assert.Equal(t, "a", admitted[0].ReqID)
	assert.Equal(t, "b", admitted[1].ReqID)
}

func TestAdmissionCheck(t *testing.T) {
	m := New(testConfig())
	assert.True(t, m.AdmissionCheck(4))

	full := testConfig()
	full.MaxBlockNum = 1
	m2 := New(full)
	assert.False(t, m2.AdmissionCheck(100))
}
