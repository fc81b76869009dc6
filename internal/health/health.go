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

// Package health implements the ready/live probes: polling the executor's
// heartbeat on CHECK_HEALTH_INTERVAL and classifying a stalled or absent
// engine into the three executor fault codes the submission surface reports.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	enginectlerrors "github.com/llmserve/enginectl/internal/errors"
	"github.com/llmserve/enginectl/internal/executor"
	"github.com/llmserve/enginectl/internal/logging"
)

var log = logging.NewLogger("health")

// Checker polls an executor.Engine's heartbeat on an interval and tracks
// whether the engine is alive, ready and responsive.
type Checker struct {
	engine   executor.Engine
	interval time.Duration
	hangAfter time.Duration

	mu           sync.RWMutex
	lastOK       time.Time
	lastReady    bool
	serverReady  bool
}

// New returns a Checker polling engine every interval. Its hang threshold,
// how long a missed heartbeat is tolerated before the engine is considered
// hung rather than merely slow, is 3*interval, or 30s when interval is not
// positive.
func New(engine executor.Engine, interval time.Duration) *Checker {
	hangAfter := 3 * interval
	if hangAfter <= 0 {
		hangAfter = 30 * time.Second
	}
	return &Checker{
		engine:    engine,
		interval:  interval,
		hangAfter: hangAfter,
		lastOK:    time.Now(),
	}
}

// Run polls the engine's heartbeat until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Checker) poll(ctx context.Context) {
	ready, err := c.engine.Heartbeat(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		log.Errorf("heartbeat error: %v", err)
		return
	}
	c.lastReady = ready
	if ready {
		c.serverReady = true
		c.lastOK = time.Now()
	}
}

// Ready reports whether the process should receive traffic, per the ready
// probe semantics: not ready until the first successful heartbeat, and
// immediately not ready again if the engine reports itself unready.
func (c *Checker) Ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.serverReady {
		return &enginectlerrors.ErrExecutor{Code: enginectlerrors.CodeServerNotReady, Message: "engine has not completed startup"}
	}
	if !c.lastReady {
		return &enginectlerrors.ErrExecutor{Code: enginectlerrors.CodeEngineDown, Message: "engine heartbeat reports not ready"}
	}
	return nil
}

// Live reports whether the process should be restarted: an engine that
// was once ready but has missed heartbeats for longer than hangAfter is
// considered hung rather than transiently busy.
func (c *Checker) Live() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.serverReady {
		return nil
	}
	if time.Since(c.lastOK) > c.hangAfter {
		return &enginectlerrors.ErrExecutor{Code: enginectlerrors.CodeEngineHang, Message: "engine heartbeat stale beyond hang threshold"}
	}
	return nil
}

// NewUpstreamClient returns a retrying HTTP client for executors exposed
// as a sidecar HTTP endpoint rather than linked in-process; retries
// transient connection failures during the engine's own startup window.
func NewUpstreamClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	return client
}
