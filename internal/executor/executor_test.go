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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepTensor_Skip(t *testing.T) {
	out, err := ParseStepTensor([]int64{-2, 0})
	require.NoError(t, err)
	assert.True(t, out.Skip)
}

func TestParseStepTensor_DecodesBatch(t *testing.T) {
	out, err := ParseStepTensor([]int64{0, 2, 10, 11})
	require.NoError(t, err)
	assert.False(t, out.Skip)
	assert.Equal(t, 2, out.BatchSize)
	assert.Equal(t, []int64{10, 11}, out.TokenIDs)
}

func TestParseStepTensor_RejectsInconsistentLength(t *testing.T) {
	_, err := ParseStepTensor([]int64{0, 5, 1})
	assert.Error(t, err)
}

func TestParseStepTensor_RejectsShortRow(t *testing.T) {
	_, err := ParseStepTensor([]int64{0})
	assert.Error(t, err)
}

func TestFake_EnqueueAndStep(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	row, err := f.Step(ctx, 0, false)
	require.NoError(t, err)
	assert.Nil(t, row)

	f.Enqueue([]int64{0, 1, 42})
	row, err = f.Step(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 42}, row)
}

func TestFake_HeartbeatToggles(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	ready, err := f.Heartbeat(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	f.SetReady(false)
	ready, err = f.Heartbeat(ctx)
	require.NoError(t, err)
	assert.False(t, ready)
}
