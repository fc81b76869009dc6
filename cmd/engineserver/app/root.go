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

// Package app wires the engine control plane's components together behind
// a cobra command, the way cli/minfer/cmd wires the project's other
// command-line surfaces.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/llmserve/enginectl/internal/logging"
)

var (
	flagPort      string
	flagWarmup    bool
	flagRedisAddr string
	flagLogLevel  string
)

// NewCommand builds the engineserver root command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engineserver",
		Short: "LLM inference serving control plane",
		Long: `engineserver runs the batch scheduler, paged-KV resource manager and
token-stream post-processor in front of an inference executor.

It allows you to:
- Submit generation requests over HTTP and stream back decoded tokens
- Run one or more model-parallel ranks behind a shared task queue
- Observe batch occupancy and throughput through Prometheus metrics`,
		RunE: runServer,
	}

	cmd.Flags().StringVar(&flagPort, "port", "8080", "HTTP port for the submission surface")
	cmd.Flags().BoolVar(&flagWarmup, "warmup", false, "run a warm-up pass against the executor, discarding all output, then exit")
	cmd.Flags().StringVar(&flagRedisAddr, "redis-addr", "", "address of a Redis server backing the task queue; empty uses an in-process queue")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(flagLogLevel)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		cancel()
	}()

	srv, err := NewServer(Options{
		Port:      flagPort,
		Warmup:    flagWarmup,
		RedisAddr: flagRedisAddr,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
