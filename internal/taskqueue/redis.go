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
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/llmserve/enginectl/internal/task"
)

// RedisBroker hosts the broadcast-barrier state in Redis instead of
// process-local memory, for deployments where the scheduler loop and its
// model-parallel workers run as separate OS processes. Put and Get each
// run as a single Lua script so the read-modify-write critical section is
// atomic without a separate distributed lock; Empty is a single LLEN.
type RedisBroker struct {
	client     *redis.Client
	listKey    string
	valueKey   string
	fullMask   int64
	maxGetNum  int
	spinPeriod time.Duration
}

// NewRedisBroker returns a broker whose shared state lives under keyPrefix
// in client. mpNum is the number of worker ranks that must each consume a
// batch before the next put proceeds.
func NewRedisBroker(client *redis.Client, keyPrefix string, mpNum, maxGetNum int) *RedisBroker {
	return &RedisBroker{
		client:     client,
		listKey:    keyPrefix + ":list",
		valueKey:   keyPrefix + ":value",
		fullMask:   (int64(1) << uint(mpNum)) - 1,
		maxGetNum:  maxGetNum,
		spinPeriod: time.Millisecond,
	}
}

var putScript = redis.NewScript(`
local listKey = KEYS[1]
local valueKey = KEYS[2]
local fullMask = tonumber(ARGV[1])
local maxGetNum = tonumber(ARGV[2])
local item = ARGV[3]

local value = tonumber(redis.call('GET', valueKey) or '0')
if value > 0 and value < fullMask then
	return 0
end
if maxGetNum <= 0 and value == fullMask then
	redis.call('DEL', listKey)
end
redis.call('SET', valueKey, '0')
redis.call('RPUSH', listKey, item)
return 1
`)

var getScript = redis.NewScript(`
local listKey = KEYS[1]
local valueKey = KEYS[2]
local bit = tonumber(ARGV[1])
local fullMask = tonumber(ARGV[2])
local maxGetNum = tonumber(ARGV[3])

local value = tonumber(redis.call('GET', valueKey) or '0')
if (value % (bit * 2)) >= bit then
	return {}
end

local len = redis.call('LLEN', listKey)
if len == 0 then
	return {}
end

local n = len
if maxGetNum > 0 and maxGetNum < n then
	n = maxGetNum
end

local items = redis.call('LRANGE', listKey, 0, n - 1)

local newValue = value + bit
local drained = 0
if newValue >= fullMask then
	if maxGetNum > 0 then
		redis.call('LTRIM', listKey, n, -1)
	else
		redis.call('DEL', listKey)
	end
	newValue = 0
	drained = 1
end
redis.call('SET', valueKey, newValue)
return {items, drained}
`)

func (b *RedisBroker) Put(ctx context.Context, item *task.Task) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	for {
		res, err := putScript.Run(ctx, b.client, []string{b.listKey, b.valueKey}, b.fullMask, b.maxGetNum, payload).Result()
		if err != nil {
			return err
		}
		if n, ok := res.(int64); ok && n == 1 {
			klog.V(4).Infof("taskqueue: put item to %s succeeded", b.listKey)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.spinPeriod):
		}
	}
}

func (b *RedisBroker) Get(ctx context.Context, rank int) ([]*task.Task, bool, error) {
	bit := int64(1) << uint(rank)
	res, err := getScript.Run(ctx, b.client, []string{b.listKey, b.valueKey}, bit, b.fullMask, b.maxGetNum).Result()
	if err != nil {
		return nil, false, err
	}
	rows, ok := res.([]interface{})
	if !ok || len(rows) == 0 {
		return nil, false, nil
	}
	rawItems, _ := rows[0].([]interface{})
	drainedFlag, _ := rows[1].(int64)

	items := make([]*task.Task, 0, len(rawItems))
	for _, raw := range rawItems {
		s, _ := raw.(string)
		var t task.Task
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			klog.Errorf("taskqueue: failed to decode item from %s: %v", b.listKey, err)
			continue
		}
		items = append(items, &t)
	}
	return items, drainedFlag == 1, nil
}

func (b *RedisBroker) Empty(ctx context.Context) (bool, error) {
	n, err := b.client.LLen(ctx, b.listKey).Result()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
