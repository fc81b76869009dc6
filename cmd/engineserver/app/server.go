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

package app

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/llmserve/enginectl/internal/config"
	"github.com/llmserve/enginectl/internal/data"
	"github.com/llmserve/enginectl/internal/executor"
	"github.com/llmserve/enginectl/internal/health"
	"github.com/llmserve/enginectl/internal/logging"
	"github.com/llmserve/enginectl/internal/resource"
	"github.com/llmserve/enginectl/internal/scheduler"
	"github.com/llmserve/enginectl/internal/stream"
	"github.com/llmserve/enginectl/internal/taskqueue"
	"github.com/llmserve/enginectl/internal/tokenproc"
)

var log = logging.NewLogger("app")

// Options configures a Server. It is the cobra-flag-to-struct boundary;
// nothing past NewServer reads a flag directly.
type Options struct {
	Port      string
	Warmup    bool
	RedisAddr string
}

// Server bundles one process's worth of control-plane state: one
// resource.Manager, one queue, and mp_num scheduler/token-processor rank
// pairs sharing the engine and queue.
type Server struct {
	opts Options
	cfg  *config.Config

	rm      *resource.Manager
	queue   taskqueue.Broker
	engine  executor.Engine
	dp      *data.Processor
	reg     *stream.Registry
	checker *health.Checker
}

// NewServer loads configuration and constructs every component; it does
// not start any goroutine.
func NewServer(opts Options) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	rm := resource.New(cfg)
	dp, err := data.NewProcessor(nil)
	if err != nil {
		return nil, err
	}

	var queue taskqueue.Broker
	if opts.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		queue = taskqueue.NewRedisBroker(client, "enginectl:taskqueue", cfg.MPNum, cfg.EngineMaxNeedNum)
		log.Infof("task queue backed by redis at %s", opts.RedisAddr)
	} else {
		queue = taskqueue.NewInProcessBroker(cfg.MPNum, cfg.EngineMaxNeedNum)
		log.Infof("task queue running in-process for mp_num=%d", cfg.MPNum)
	}

	engine := executor.NewFake()
	checker := health.New(engine, cfg.CheckHealthInterval)

	return &Server{
		opts:    opts,
		cfg:     cfg,
		rm:      rm,
		queue:   queue,
		engine:  engine,
		dp:      dp,
		reg:     stream.NewRegistry(),
		checker: checker,
	}, nil
}

// Run starts every rank's scheduler and token-processor loop, the health
// checker, and the HTTP router, blocking until ctx is cancelled. In warm-up
// mode it instead runs one discard-everything pass per rank and returns.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.Warmup {
		return s.runWarmup(ctx)
	}

	var wg sync.WaitGroup
	for rank := 0; rank < s.cfg.MPNum; rank++ {
		rank := rank
		loop := scheduler.New(rank, s.queue, s.rm, s.engine)
		proc := tokenproc.New(s.cfg, s.rm, s.engine, s.dp, s.reg)

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("scheduler rank %d exited: %v", rank, err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := proc.Run(ctx, rank); err != nil && ctx.Err() == nil {
				log.Errorf("token processor rank %d exited: %v", rank, err)
			}
		}()
	}

	go s.checker.Run(ctx)

	s.startRouter(ctx)
	wg.Wait()
	return nil
}

func (s *Server) runWarmup(ctx context.Context) error {
	log.Infof("running warm-up pass against the executor")
	proc := tokenproc.NewWarmup(s.cfg, s.rm, s.engine, s.dp)
	for rank := 0; rank < s.cfg.MPNum; rank++ {
		if err := proc.DrainAvailable(ctx, rank); err != nil {
			return err
		}
	}
	log.Infof("warm-up pass complete")
	return nil
}
