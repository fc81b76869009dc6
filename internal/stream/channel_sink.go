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
	"sync"

	"github.com/llmserve/enginectl/pkg/api"
)

// ChannelSink delivers events over a buffered Go channel, for an HTTP
// handler running in the same process as the token processor.
type ChannelSink struct {
	events chan api.Event
	once   sync.Once
}

// NewChannelSink returns a ChannelSink buffering up to capacity events
// before Publish blocks.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{events: make(chan api.Event, capacity)}
}

func (s *ChannelSink) Publish(ev api.Event) error {
	s.events <- ev
	return nil
}

func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.events) })
}

// Events returns the receive side of the channel, for a handler to range
// over until it closes.
func (s *ChannelSink) Events() <-chan api.Event {
	return s.events
}
