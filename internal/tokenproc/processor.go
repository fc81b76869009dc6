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

// Package tokenproc reads the executor's step-synchronous token tensor,
// splitting it per slot, detokenizing, emitting result events, and
// recycling slots whose task just hit EOS.
package tokenproc

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/llmserve/enginectl/internal/config"
	"github.com/llmserve/enginectl/internal/data"
	"github.com/llmserve/enginectl/internal/executor"
	"github.com/llmserve/enginectl/internal/logging"
	"github.com/llmserve/enginectl/internal/metrics"
	"github.com/llmserve/enginectl/internal/resource"
	"github.com/llmserve/enginectl/internal/stream"
	"github.com/llmserve/enginectl/internal/task"
	"github.com/llmserve/enginectl/pkg/api"
)

var log = logging.NewLogger("tokenproc")

// retiredStats is what a finished task leaves behind for late diagnostics;
// bounded by cfg.MaxCachedTaskNum via an LRU so memory doesn't grow with
// lifetime request count.
type retiredStats struct {
	InputTokens  int
	OutputTokens int
	Finished     time.Time
}

// Processor owns the per-slot decode state (all_tokens, tokens_counter,
// detokenizer cursors live inside each task) for one worker rank. It is
// owned by a single goroutine; nothing here is internally synchronized
// beyond what the stream.Registry already provides.
type Processor struct {
	cfg  *config.Config
	rm   *resource.Manager
	eng  executor.Engine
	data *data.Processor
	reg  *stream.Registry

	allTokens     [][]int64
	tokensCounter map[string]int
	retired       *lru.Cache[string, retiredStats]

	discard bool // warm-up mode: process steps but publish nothing

	numberOfTasks        int
	numberOfInputTokens  int
	numberOfOutputTokens int
}

// New builds a Processor for cfg's batch size, backed by rm, eng, dp and
// publishing events through reg.
func New(cfg *config.Config, rm *resource.Manager, eng executor.Engine, dp *data.Processor, reg *stream.Registry) *Processor {
	cache, _ := lru.New[string, retiredStats](cfg.MaxCachedTaskNum)
	return &Processor{
		cfg:           cfg,
		rm:            rm,
		eng:           eng,
		data:          dp,
		reg:           reg,
		allTokens:     make([][]int64, cfg.MaxBatchSize),
		tokensCounter: make(map[string]int),
		retired:       cache,
	}
}

// NewWarmup returns a Processor that runs the identical per-step loop but
// discards every result instead of publishing it, for priming the
// executor before real traffic arrives.
func NewWarmup(cfg *config.Config, rm *resource.Manager, eng executor.Engine, dp *data.Processor) *Processor {
	p := New(cfg, rm, eng, dp, stream.NewRegistry())
	p.discard = true
	return p
}

// Run blocks on the executor's output for rank, processing one step at a
// time, until ctx is cancelled.
func (p *Processor) Run(ctx context.Context, rank int) error {
	ticker := time.NewTicker(p.cfg.RecordTimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			log.Infof("stats: tasks=%d input_tokens=%d output_tokens=%d", p.numberOfTasks, p.numberOfInputTokens, p.numberOfOutputTokens)
		default:
		}

		row, err := p.eng.Step(ctx, rank, true)
		if err != nil {
			return err
		}
		if row == nil {
			continue
		}
		out, err := executor.ParseStepTensor(row)
		if err != nil {
			log.Errorf("step tensor parse error: %v", err)
			continue
		}
		if out.Skip {
			continue
		}
		if err := p.ProcessStep(out); err != nil {
			log.Errorf("process step error: %v", err)
		}
	}
}

// DrainAvailable steps the executor in non-blocking mode until it has no
// more output ready, for a warm-up pass that must return once the engine
// has nothing left to report rather than block forever on Run's ticker.
func (p *Processor) DrainAvailable(ctx context.Context, rank int) error {
	for {
		row, err := p.eng.Step(ctx, rank, false)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		out, err := executor.ParseStepTensor(row)
		if err != nil {
			log.Errorf("step tensor parse error: %v", err)
			continue
		}
		if out.Skip {
			continue
		}
		if err := p.ProcessStep(out); err != nil {
			log.Errorf("process step error: %v", err)
		}
	}
}

// ProcessStep runs the per-slot loop against a single decoded step output.
func (p *Processor) ProcessStep(out *executor.StepOutput) error {
	for i := 0; i < out.BatchSize; i++ {
		if p.rm.StopFlag(i) {
			continue
		}
		tokenID := out.TokenIDs[i]
		if tokenID < 0 {
			continue
		}

		t := p.rm.Task(i)
		if t == nil {
			continue
		}

		p.tokensCounter[t.ReqID]++
		isEOS := containsInt64(t.EOSTokenIDs, tokenID)

		ev := p.buildEvent(t, i, tokenID, isEOS)

		if !isEOS {
			p.allTokens[i] = append(p.allTokens[i], tokenID)
			t.TokensAllNum++
			p.numberOfOutputTokens++
			metrics.TokensGenerated.Inc()
		}

		if err := p.publish(t.ReqID, ev); err != nil {
			log.Errorf("req_id %s: %v", t.ReqID, err)
		}

		if isEOS {
			p.retire(t, i)
		}
	}
	return nil
}

func (p *Processor) buildEvent(t *task.Task, slot int, tokenID int64, isEOS bool) api.Event {
	t.InferenceTimeCost = time.Since(t.InferenceStartTime)

	ev := api.Event{
		ReqID:                    t.ReqID,
		SendIdx:                  p.tokensCounter[t.ReqID] - 1,
		InferenceTimeCostSeconds: t.InferenceTimeCost.Seconds(),
		InferSeed:                t.InferSeed,
		ReturnAllTokens:          t.ReturnAllTokens,
	}

	if t.Benchmark {
		ev.PreprocessStartTime = t.PreprocessStartTime.Format(time.RFC3339Nano)
		ev.PreprocessEndTime = t.PreprocessEndTime.Format(time.RFC3339Nano)
		ev.ScheduleStartTime = t.ScheduleStartTime.Format(time.RFC3339Nano)
	}

	if !isEOS {
		ev.IsEnd = 0
		ev.TokenIDs = []int{int(tokenID)}
		ev.Token = p.data.DecodeIncremental(&t.Cursor, []int{int(tokenID)})
		return ev
	}

	ev.IsEnd = 1
	ev.TokenIDs = []int{}
	ev.TokensAllNum = len(p.allTokens[slot]) + 1
	ev.TokensAllIDs = int64sToInts(p.allTokens[slot])
	ev.Result = data.ClearRequestStatus(&t.Cursor)
	return ev
}

func (p *Processor) publish(reqID string, ev api.Event) error {
	if p.discard {
		return nil
	}
	sink, ok := p.reg.Get(reqID)
	if !ok {
		return nil
	}
	return sink.Publish(ev)
}

func (p *Processor) retire(t *task.Task, slot int) {
	log.Infof("req_id: %s finished, %s", t.ReqID, p.rm.Info())
	logging.Monitor().WithField("req_id", t.ReqID).
		WithField("input_token_num", len(t.InputIDs)).
		WithField("output_token_num", len(p.allTokens[slot])).
		WithField("inference_time_cost", t.InferenceTimeCost.Seconds()).
		Info("task finished")

	p.retired.Add(t.ReqID, retiredStats{
		InputTokens:  len(t.InputIDs),
		OutputTokens: len(p.allTokens[slot]),
		Finished:     time.Now(),
	})

	p.numberOfTasks++
	p.numberOfInputTokens += len(t.InputIDs)

	p.rm.Recycle(slot)
	delete(p.tokensCounter, t.ReqID)
	p.allTokens[slot] = nil

	if !p.discard {
		p.reg.Unregister(t.ReqID)
	}
}

func containsInt64(haystack []int, needle int64) bool {
	for _, v := range haystack {
		if int64(v) == needle {
			return true
		}
	}
	return false
}

func int64sToInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
