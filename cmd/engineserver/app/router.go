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
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	enginectlerrors "github.com/llmserve/enginectl/internal/errors"
	"github.com/llmserve/enginectl/internal/metrics"
	"github.com/llmserve/enginectl/internal/stream"
	"github.com/llmserve/enginectl/internal/task"
	"github.com/llmserve/enginectl/internal/validate"
	"github.com/llmserve/enginectl/pkg/api"
)

const gracefulShutdownTimeout = 15 * time.Second

// startRouter runs the gin-backed submission surface until ctx is
// cancelled, then drains in-flight connections before returning.
func (s *Server) startRouter(ctx context.Context) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/health/ready", "/health/live"), gin.Recovery())

	engine.GET("/health/ready", s.handleReady)
	engine.GET("/health/live", s.handleLive)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	engine.POST("/v1/generate", s.handleGenerate)

	httpServer := &http.Server{
		Addr:    ":" + s.opts.Port,
		Handler: engine.Handler(),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("listen failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}
}

func (s *Server) handleReady(c *gin.Context) {
	if err := s.checker.Ready(); err != nil {
		writeHealthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ready"})
}

func (s *Server) handleLive(c *gin.Context) {
	if err := s.checker.Live(); err != nil {
		writeHealthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "live"})
}

func writeHealthError(c *gin.Context, err error) {
	code := 0
	var execErr *enginectlerrors.ErrExecutor
	if errors.As(err, &execErr) {
		code = execErr.Code
	}
	c.JSON(http.StatusServiceUnavailable, api.HealthError{ErrorCode: code, ErrorMsg: err.Error()})
}

// handleGenerate validates the request, resolves its input ids and eos
// set, enqueues it on the task queue, and streams (or accumulates) the
// resulting events.
func (s *Server) handleGenerate(c *gin.Context) {
	var req validate.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error_msg": err.Error(), "error_code": 1})
		return
	}

	n, errs := validate.Validate(&req)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error_msg": errs, "error_code": 1})
		return
	}
	if n.ReqID == "" {
		n.ReqID = uuid.NewString()
	}

	preprocessStart := time.Now()
	text := n.Text
	if text == "" && n.InputIDs == nil && len(n.Messages) > 0 {
		text = renderMessages(n.Messages)
	}
	inputIDs, eos := s.dp.PrepareInput(text, n.InputIDs, s.cfg.SeqLenLimit, s.cfg.MaxSeqLen, n.EOSTokenIDs)

	t := task.New(n.ReqID, inputIDs)
	t.PreprocessStartTime = preprocessStart
	t.MinDecLen = n.MinDecLen
	t.MaxDecLen = n.MaxDecLen
	t.TopP = n.TopP
	t.Temperature = n.Temperature
	t.FrequencyScore = n.FrequencyScore
	t.PresenceScore = n.PresenceScore
	t.PenaltyScore = n.PenaltyScore
	t.InferSeed = n.InferSeed
	t.InferSeedSet = n.InferSeedSet
	t.EOSTokenIDs = eos
	t.ReturnAllTokens = n.ReturnAllTokens
	t.Benchmark = n.Benchmark
	t.PreprocessEndTime = time.Now()

	sink := stream.NewChannelSink(8)
	s.reg.Register(t.ReqID, sink)

	if err := s.queue.Put(c.Request.Context(), t); err != nil {
		s.reg.Unregister(t.ReqID)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error_msg": err.Error(), "error_code": 2})
		return
	}

	if n.Stream {
		s.streamEvents(c, sink)
		return
	}
	s.accumulateEvents(c, sink)
}

// renderMessages flattens a multi-turn chat request into a single prompt,
// the way a chat template renders a message list to text before
// tokenization. Each turn becomes one "role: content" line, in order.
func renderMessages(messages []validate.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		if m.Content != nil {
			b.WriteString(*m.Content)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Server) streamEvents(c *gin.Context, sink *stream.ChannelSink) {
	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)

	for ev := range sink.Events() {
		b, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		b = append(b, '\n')
		if _, err := c.Writer.Write(b); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if ev.IsEnd == 1 {
			return
		}
	}
}

func (s *Server) accumulateEvents(c *gin.Context, sink *stream.ChannelSink) {
	for ev := range sink.Events() {
		if ev.IsEnd == 1 {
			c.JSON(http.StatusOK, ev)
			return
		}
	}
}
