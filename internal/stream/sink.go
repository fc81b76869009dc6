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

// Package stream delivers per-request result events to whatever is
// waiting on the other end of the client boundary. The transport is a
// deployment policy choice: this package offers both an in-memory channel
// sink (for an HTTP handler in the same process) and an append-only file
// sink, behind one Sink interface.
package stream

import (
	"sync"

	"github.com/llmserve/enginectl/pkg/api"
)

// Sink receives the events for one request, in strict send_idx order.
type Sink interface {
	Publish(ev api.Event) error
	Close()
}

// Registry maps req_id to the Sink currently waiting for its events. The
// token processor looks requests up here; it never constructs a Sink
// itself.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// Register associates reqID with sink, replacing any previous registration.
func (r *Registry) Register(reqID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[reqID] = sink
}

// Unregister drops and closes reqID's sink, if any.
func (r *Registry) Unregister(reqID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sinks[reqID]; ok {
		s.Close()
		delete(r.sinks, reqID)
	}
}

// Get returns reqID's sink, if registered.
func (r *Registry) Get(reqID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[reqID]
	return s, ok
}
