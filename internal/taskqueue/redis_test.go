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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmserve/enginectl/internal/task"
)

func setupRedisBroker(t *testing.T, mpNum, maxGetNum int) (*RedisBroker, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBroker(client, "test:queue", mpNum, maxGetNum)
	return b, func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisBroker_BroadcastsToEveryRank(t *testing.T) {
	ctx := context.Background()
	b, cleanup := setupRedisBroker(t, 3, 0)
	defer cleanup()

	require.NoError(t, b.Put(ctx, task.New("r1", []int{1, 2, 3})))

	for rank := 0; rank < 3; rank++ {
		items, drained, err := b.Get(ctx, rank)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "r1", items[0].ReqID)
		assert.Equal(t, []int{1, 2, 3}, items[0].InputIDs)
		assert.Equal(t, rank == 2, drained)
	}
}

func TestRedisBroker_EmptyReportsListState(t *testing.T) {
	ctx := context.Background()
	b, cleanup := setupRedisBroker(t, 1, 0)
	defer cleanup()

	empty, err := b.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, b.Put(ctx, task.New("r1", nil)))
	empty, err = b.Empty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestRedisBroker_RankCannotConsumeTwice(t *testing.T) {
	ctx := context.Background()
	b, cleanup := setupRedisBroker(t, 2, 0)
	defer cleanup()

	require.NoError(t, b.Put(ctx, task.New("r1", nil)))
	_, _, err := b.Get(ctx, 0)
	require.NoError(t, err)

	items, drained, err := b.Get(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, drained)
}
