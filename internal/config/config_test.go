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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	vars := []string{
		"BLOCK_SIZE", "MAX_BATCH_SIZE", "MAX_SEQ_LEN", "MAX_DEC_LEN", "BLOCK_BS",
		"BLOCK_RATIO", "ENC_DEC_BLOCK_NUM", "MP_NUM", "INFER_QUEUE_PORT",
		"ENGINE_MAX_NEED_NUM", "CHECK_HEALTH_INTERVAL", "MODEL_DIR",
		"MAX_CACHED_TASK_NUM", "RECORD_TIME_INTERVAL",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.BlockSize)
	assert.Equal(t, 50, cfg.MaxBatchSize)
	assert.Equal(t, 8192, cfg.MaxSeqLen)
	assert.Equal(t, 1024, cfg.MaxDecLen)
	assert.Equal(t, 2, cfg.EncDecBlockNum)
	assert.Equal(t, 128, cfg.DecTokenNum)
	assert.Equal(t, ceilDiv(1024+8192, 64), cfg.MaxQueryBlockNum)
}

func TestPostprocess_BlockRatioOverridesEncDecBlockNum(t *testing.T) {
	cfg := &Config{
		BlockSize:      64,
		MaxDecLen:      1024,
		MaxSeqLen:      8192,
		BlockBS:        50,
		BlockRatio:     1.0,
		EncDecBlockNum: 2,
	}
	cfg.postprocess()
	assert.Equal(t, ceilDiv(1024, 64), cfg.EncDecBlockNum)
}

func TestPostprocess_MaxQueryBlockNumComputedOnce(t *testing.T) {
	// max_query_block_num must equal the sum-of-limits form, not a dead
	// first assignment.
	cfg := &Config{
		BlockSize:      64,
		MaxDecLen:      1024,
		MaxSeqLen:      8192,
		BlockBS:        50,
		BlockRatio:     0.75,
		EncDecBlockNum: 2,
	}
	cfg.postprocess()
	want := ceilDiv(1024+8192, 64)
	assert.Equal(t, want, cfg.MaxQueryBlockNum)
}

func TestCheck_RejectsOversizeBatch(t *testing.T) {
	cfg := &Config{MaxBatchSize: 257, SeqLenLimit: 1, DecLenLimit: 1, MaxSeqLen: 8192}
	err := cfg.check()
	assert.Error(t, err)
}

func TestCheck_RejectsSeqLenLimitAboveMaxSeqLen(t *testing.T) {
	cfg := &Config{MaxBatchSize: 50, SeqLenLimit: 9000, DecLenLimit: 1, MaxSeqLen: 8192}
	err := cfg.check()
	assert.Error(t, err)
}

func TestLoad_RejectsRecordTimeIntervalTooLarge(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECORD_TIME_INTERVAL", "3601")
	_, err := Load()
	assert.Error(t, err)
}
