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

package stream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmserve/enginectl/pkg/api"
)

func TestRegistry_RegisterGetUnregister(t *testing.T) {
	r := NewRegistry()
	sink := NewChannelSink(1)
	r.Register("r1", sink)

	got, ok := r.Get("r1")
	require.True(t, ok)
	assert.Equal(t, sink, got)

	r.Unregister("r1")
	_, ok = r.Get("r1")
	assert.False(t, ok)
}

func TestChannelSink_PublishAndClose(t *testing.T) {
	sink := NewChannelSink(2)
	require.NoError(t, sink.Publish(api.Event{ReqID: "r1", SendIdx: 0}))
	sink.Close()
	sink.Close() // must not panic on double close

	ev, ok := <-sink.Events()
	require.True(t, ok)
	assert.Equal(t, "r1", ev.ReqID)

	_, ok = <-sink.Events()
	assert.False(t, ok)
}

func TestFileSink_AppendsOneJSONLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "r1")
	require.NoError(t, err)

	require.NoError(t, sink.Publish(api.Event{ReqID: "r1", SendIdx: 0, Token: "hi"}))
	require.NoError(t, sink.Publish(api.Event{ReqID: "r1", SendIdx: 1, IsEnd: 1}))
	sink.Close()

	b, err := os.ReadFile(filepath.Join(dir, "r1"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"token":"hi"`)
	assert.Contains(t, string(b), `"is_end":1`)
}
