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

// Package config derives the engine's fixed capacity constants from
// environment variables, once at startup. Nothing here is re-read after
// Load returns; later changes to the environment are ignored.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the batch, block and sequence limits that size every fixed
// array the resource manager owns for the lifetime of the process.
type Config struct {
	BlockSize      int
	MaxBatchSize   int
	MaxSeqLen      int
	MaxDecLen      int
	BlockBS        float64
	BlockRatio     float64
	EncDecBlockNum int

	MPNum               int
	InferQueuePort      int
	EngineMaxNeedNum    int
	CheckHealthInterval time.Duration
	ModelDir            string
	SeqLenLimit         int
	DecLenLimit         int
	MaxCachedTaskNum    int
	RecordTimeInterval  time.Duration

	// Derived, computed once in postprocess().
	DecTokenNum      int
	MaxQueryBlockNum int
	TotalBlockNum    int
	MaxBlockNum      int
}

// Load reads every configuration knob from the environment, applies the
// derived-constant formulas and validates the result. It fails fast:
// callers should treat a non-nil error as a startup abort.
func Load() (*Config, error) {
	cfg := &Config{
		BlockSize:           getEnvInt("BLOCK_SIZE", 64),
		MaxBatchSize:        getEnvInt("MAX_BATCH_SIZE", 50),
		MaxSeqLen:            getEnvInt("MAX_SEQ_LEN", 8192),
		MaxDecLen:           getEnvInt("MAX_DEC_LEN", 1024),
		BlockBS:             getEnvFloat("BLOCK_BS", 50),
		BlockRatio:          getEnvFloat("BLOCK_RATIO", 0.75),
		EncDecBlockNum:      getEnvInt("ENC_DEC_BLOCK_NUM", 2),
		MPNum:               getEnvInt("MP_NUM", 1),
		InferQueuePort:      getEnvInt("INFER_QUEUE_PORT", 56666),
		EngineMaxNeedNum:    getEnvInt("ENGINE_MAX_NEED_NUM", 0),
		CheckHealthInterval: time.Duration(getEnvInt("CHECK_HEALTH_INTERVAL", 10)) * time.Second,
		ModelDir:            getEnvString("MODEL_DIR", "/opt/output/models"),
		SeqLenLimit:         getEnvInt("MAX_SEQ_LEN", 8192),
		DecLenLimit:         getEnvInt("MAX_DEC_LEN", 1024),
		MaxCachedTaskNum:    getEnvInt("MAX_CACHED_TASK_NUM", 128),
		RecordTimeInterval:  time.Duration(getEnvInt("RECORD_TIME_INTERVAL", 600)) * time.Second,
	}

	if cfg.RecordTimeInterval >= time.Hour {
		return nil, fmt.Errorf("RECORD_TIME_INTERVAL (%s) must be below 3600s", cfg.RecordTimeInterval)
	}

	cfg.postprocess()

	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// postprocess computes the derived constants from the loaded env vars.
// max_query_block_num is intentionally computed exactly once, as the
// sum-of-limits form, the budget a task's prompt plus its full decode
// window could ever need.
func (c *Config) postprocess() {
	if c.BlockRatio >= 1.0 {
		c.EncDecBlockNum = ceilDiv(c.MaxDecLen, c.BlockSize)
	}
	c.MaxQueryBlockNum = ceilDiv(c.MaxDecLen+c.MaxSeqLen, c.BlockSize)
	c.DecTokenNum = c.EncDecBlockNum * c.BlockSize
	c.TotalBlockNum = int(c.BlockBS * float64(c.MaxQueryBlockNum))
	c.MaxBlockNum = int(float64(c.TotalBlockNum) * c.BlockRatio)
}

func (c *Config) check() error {
	if c.MaxBatchSize > 256 {
		return fmt.Errorf("MAX_BATCH_SIZE (%d) must not exceed 256", c.MaxBatchSize)
	}
	if c.SeqLenLimit > c.MaxSeqLen {
		return fmt.Errorf("seq_len_limit (%d) exceeds max_seq_len (%d)", c.SeqLenLimit, c.MaxSeqLen)
	}
	if c.DecLenLimit > c.MaxSeqLen {
		return fmt.Errorf("dec_len_limit (%d) exceeds max_seq_len (%d)", c.DecLenLimit, c.MaxSeqLen)
	}
	return nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
