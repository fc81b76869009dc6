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

package taskqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/llmserve/enginectl/internal/task"
)

// InProcessBroker implements Broker without a shared-memory server process:
// legitimate when mp_num=1 or every worker is a goroutine inside this
// engine process, rather than a separate OS process.
type InProcessBroker struct {
	mu         sync.Mutex
	list       *deque.Deque[*task.Task]
	value      uint64
	fullMask   uint64
	maxGetNum  int
	spinPeriod time.Duration
}

// NewInProcessBroker builds a broker for mpNum workers. maxGetNum bounds
// how many items a single Get drains per call; 0 means unbounded.
func NewInProcessBroker(mpNum, maxGetNum int) *InProcessBroker {
	return &InProcessBroker{
		list:       deque.New[*task.Task](),
		fullMask:   (uint64(1) << uint(mpNum)) - 1,
		maxGetNum:  maxGetNum,
		spinPeriod: time.Millisecond,
	}
}

func (b *InProcessBroker) Put(ctx context.Context, item *task.Task) error {
	for {
		b.mu.Lock()
		if b.value > 0 && b.value < b.fullMask {
			b.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.spinPeriod):
			}
			continue
		}
		if b.maxGetNum <= 0 && b.value == b.fullMask {
			b.list.Clear()
		}
		b.value = 0
		b.list.PushBack(item)
		b.mu.Unlock()
		return nil
	}
}

func (b *InProcessBroker) Get(ctx context.Context, rank int) ([]*task.Task, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bit := uint64(1) << uint(rank)
	if b.value&bit != 0 || b.list.Len() == 0 {
		return nil, false, nil
	}

	n := b.list.Len()
	if b.maxGetNum > 0 && b.maxGetNum < n {
		n = b.maxGetNum
	}
	items := make([]*task.Task, n)
	for i := 0; i < n; i++ {
		items[i] = b.list.At(i)
	}

	newValue := b.value | bit
	drained := false
	if newValue >= b.fullMask {
		if b.maxGetNum > 0 {
			for i := 0; i < n; i++ {
				b.list.PopFront()
			}
		} else {
			b.list.Clear()
		}
		newValue = 0
		drained = true
	}
	b.value = newValue
	return items, drained, nil
}

func (b *InProcessBroker) Empty(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.list.Len() == 0, nil
}
