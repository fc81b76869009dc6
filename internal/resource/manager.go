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

// Package resource owns the batch slots and the paged-KV block free-list.
// A Manager is deliberately not internally synchronized: it is owned by
// exactly one goroutine, the scheduler loop, and every call here assumes
// single-threaded ownership.
package resource

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/cespare/xxhash"

	"github.com/llmserve/enginectl/internal/config"
	"github.com/llmserve/enginectl/internal/logging"
	"github.com/llmserve/enginectl/internal/task"
)

var log = logging.NewLogger("resource")

// Manager tracks which batch slots are occupied and which KV blocks are
// free, one slot and its block table per admitted task.
type Manager struct {
	cfg *config.Config

	stopFlags []bool
	tasksList []*task.Task
	freeList  []int // stack; top of stack is the last element

	realBsz int
}

// New allocates a Manager sized per cfg, with every slot free and the
// free-list populated [max_block_num-1 ... 0] so blocks first pop off in
// ascending index order (LIFO, cache-warm reuse of recently freed blocks).
func New(cfg *config.Config) *Manager {
	m := &Manager{
		cfg:       cfg,
		stopFlags: make([]bool, cfg.MaxBatchSize),
		tasksList: make([]*task.Task, cfg.MaxBatchSize),
		freeList:  make([]int, cfg.MaxBlockNum),
	}
	for i := range m.stopFlags {
		m.stopFlags[i] = true
	}
	for i := 0; i < cfg.MaxBlockNum; i++ {
		m.freeList[i] = cfg.MaxBlockNum - 1 - i
	}
	log.Infof("%s", m.Info())
	return m
}

// AvailableBatch returns the number of free slots.
func (m *Manager) AvailableBatch() int {
	n := 0
	for _, f := range m.stopFlags {
		if f {
			n++
		}
	}
	return n
}

// AvailableBlockNum returns the number of free KV blocks.
func (m *Manager) AvailableBlockNum() int {
	return len(m.freeList)
}

// RealBatchSize returns 1 + the highest occupied slot index, or 0 if no
// slot is occupied.
func (m *Manager) RealBatchSize() int {
	return m.realBsz
}

// AdmissionCheck reports whether at least one task of inputTokenLen tokens
// could be admitted right now, without reserving anything.
func (m *Manager) AdmissionCheck(inputTokenLen int) bool {
	if m.AvailableBatch() < 1 {
		return false
	}
	need := ceilDiv(inputTokenLen+m.cfg.DecTokenNum, m.cfg.BlockSize)
	return need <= len(m.freeList)
}

// Allocate walks candidates and slots in order, admitting whatever fits
// under the current free slot and free block budget. It is best-effort,
// order-preserving and non-blocking: tasks that don't fit for lack of
// capacity are left for the caller to re-offer on a later pass, while
// tasks rejected for a reason retrying can never fix (oversize input,
// a duplicate req_id already occupying a slot) are reported back as
// terminal so the caller drops them instead of resubmitting them forever.
// Returns the tasks admitted this call and the tasks rejected terminally.
func (m *Manager) Allocate(candidates []*task.Task) (admitted, terminal []*task.Task) {
	slot := 0

	for _, t := range candidates {
		if len(t.InputIDs) > m.cfg.MaxSeqLen {
			log.Errorf("req_id: %s input_ids len %d > max_seq_len %d, rejected", t.ReqID, len(t.InputIDs), m.cfg.MaxSeqLen)
			terminal = append(terminal, t)
			continue
		}
		if m.dup(t.ReqID) {
			log.Errorf("req_id: %s already admitted, rejected duplicate submission", t.ReqID)
			terminal = append(terminal, t)
			continue
		}

		for slot < m.cfg.MaxBatchSize && !m.stopFlags[slot] {
			slot++
		}
		if slot >= m.cfg.MaxBatchSize {
			break
		}

		need := ceilDiv(len(t.InputIDs)+m.cfg.DecTokenNum, m.cfg.BlockSize)
		if need > m.cfg.MaxQueryBlockNum {
			need = m.cfg.MaxQueryBlockNum
		}
		if need > len(m.freeList) {
			log.Errorf("req_id: %s needs %d blocks, only %d free, rejected", t.ReqID, need, len(m.freeList))
			continue
		}

		blocks := make([]int, need)
		for i := 0; i < need; i++ {
			top := len(m.freeList) - 1
			blocks[i] = m.freeList[top]
			m.freeList = m.freeList[:top]
		}

		t.SlotIndex = slot
		t.BlockTables = blocks
		if !t.InferSeedSet {
			t.InferSeed = rand.Int63()
		}
		t.InferenceStartTime = time.Now()
		t.TokensAllNum = 0

		m.stopFlags[slot] = false
		m.tasksList[slot] = t
		admitted = append(admitted, t)

		log.Infof("allocate req_id: %s, slot: %d, input_ids_length: %d, blocks: %d, input_hash: %x",
			t.ReqID, slot, len(t.InputIDs), need, inputHash(t.InputIDs))
		slot++
	}

	m.recomputeRealBsz()
	log.Infof("in num:%d new task num:%d real_bsz is:%d", len(candidates), len(admitted), m.realBsz)
	return admitted, terminal
}

// Recycle frees slotIndex and returns its blocks to the free-list. Block
// recycling is a multiset-extend: duplicates in the input would violate
// invariant (2) and indicate a caller bug, not a condition this method
// defends against.
func (m *Manager) Recycle(slotIndex int) {
	t := m.tasksList[slotIndex]
	if t == nil {
		return
	}
	before := len(m.freeList)
	m.freeList = append(m.freeList, t.BlockTables...)
	m.stopFlags[slotIndex] = true
	m.tasksList[slotIndex] = nil
	m.recomputeRealBsz()
	log.Infof("recycle %d blocks from req_id: %s", len(m.freeList)-before, t.ReqID)
}

// Task returns the task currently occupying slotIndex, or nil if free.
func (m *Manager) Task(slotIndex int) *task.Task {
	return m.tasksList[slotIndex]
}

// StopFlag reports whether slotIndex is free.
func (m *Manager) StopFlag(slotIndex int) bool {
	return m.stopFlags[slotIndex]
}

// Snapshot returns the current tasks_list, for handing to the executor
// alongside the tasks admitted this round.
func (m *Manager) Snapshot() []*task.Task {
	out := make([]*task.Task, len(m.tasksList))
	copy(out, m.tasksList)
	return out
}

func (m *Manager) dup(reqID string) bool {
	for _, t := range m.tasksList {
		if t != nil && t.ReqID == reqID {
			return true
		}
	}
	return false
}

func (m *Manager) recomputeRealBsz() {
	m.realBsz = 0
	for i := len(m.stopFlags) - 1; i >= 0; i-- {
		if !m.stopFlags[i] {
			m.realBsz = i + 1
			break
		}
	}
}

// Info summarizes the manager's current occupancy, for startup and
// admission log lines.
func (m *Manager) Info() string {
	return fmt.Sprintf(
		"resource manager: total_block_num=%d total_batch_num=%d available_block_num=%d available_batch=%d",
		m.cfg.MaxBlockNum, len(m.stopFlags), m.AvailableBlockNum(), m.AvailableBatch(),
	)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// inputHash fingerprints a task's prompt for log correlation across the
// scheduler and token processor without printing the full token list.
func inputHash(ids []int) uint64 {
	buf := make([]byte, 8*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(id))
	}
	return xxhash.Sum64(buf)
}
