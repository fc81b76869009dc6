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

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginectlerrors "github.com/llmserve/enginectl/internal/errors"
	"github.com/llmserve/enginectl/internal/executor"
)

func TestChecker_NotReadyBeforeFirstHeartbeat(t *testing.T) {
	eng := executor.NewFake()
	c := New(eng, time.Minute)

	err := c.Ready()
	require.Error(t, err)
	var execErr *enginectlerrors.ErrExecutor
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, enginectlerrors.CodeServerNotReady, execErr.Code)
}

func TestChecker_ReadyAfterSuccessfulPoll(t *testing.T) {
	eng := executor.NewFake()
	c := New(eng, time.Minute)
	c.poll(context.Background())

	assert.NoError(t, c.Ready())
	assert.NoError(t, c.Live())
}

func TestChecker_EngineDownReportedAsNotReady(t *testing.T) {
	eng := executor.NewFake()
	c := New(eng, time.Minute)
	c.poll(context.Background())
	require.NoError(t, c.Ready())

	eng.SetReady(false)
	c.poll(context.Background())

	err := c.Ready()
	require.Error(t, err)
	var execErr *enginectlerrors.ErrExecutor
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, enginectlerrors.CodeEngineDown, execErr.Code)
}

func TestChecker_LiveReportsHangAfterThreshold(t *testing.T) {
	eng := executor.NewFake()
	c := New(eng, time.Millisecond)
	c.hangAfter = time.Millisecond
	c.poll(context.Background())
	require.NoError(t, c.Live())

	time.Sleep(5 * time.Millisecond)
	err := c.Live()
	require.Error(t, err)
	var execErr *enginectlerrors.ErrExecutor
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, enginectlerrors.CodeEngineHang, execErr.Code)
}
