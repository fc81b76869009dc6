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

// Package data turns request text into token ids on the way in, and
// incrementally turns generated token ids back into text on the way out.
package data

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/llmserve/enginectl/internal/task"
)

const encodingName = "cl100k_base"

// Processor is the concrete text<->ids bridge. The core spec treats
// tokenizer/detokenizer libraries as an external collaborator it calls
// through a text->ids and an incremental ids->text interface; Processor is
// that concrete implementation, backed by tiktoken-go the way the example
// pack's gateway filters do for request-size accounting.
type Processor struct {
	enc          *tiktoken.Tiktoken
	canonicalEOS []int
}

// NewProcessor loads the tokenizer from the bundled offline BPE ranks
// (avoids a network fetch at startup) and records the canonical EOS ids
// every task's eos_token_ids gets extended with.
func NewProcessor(canonicalEOS []int) (*Processor, error) {
	tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Processor{enc: enc, canonicalEOS: canonicalEOS}, nil
}

// TextToIDs tokenizes text, truncating to maxLen tokens when positive.
func (p *Processor) TextToIDs(text string, maxLen int) []int {
	ids := p.enc.Encode(text, nil, nil)
	if maxLen > 0 && len(ids) > maxLen {
		ids = ids[:maxLen]
	}
	return ids
}

// PrepareInput resolves a task's input_ids: tokenizes text when the
// request carried it, otherwise clamps a client-supplied input_ids to
// maxSeqLen-1. It also extends eos_token_ids with the tokenizer's
// canonical EOS set.
func (p *Processor) PrepareInput(text string, inputIDs []int, srcLength, maxSeqLen int, eos []int) ([]int, []int) {
	var ids []int
	if inputIDs != nil {
		ids = inputIDs
		if len(ids) > maxSeqLen-1 {
			ids = ids[:maxSeqLen-1]
		}
	} else {
		ids = p.TextToIDs(text, srcLength)
	}

	merged := append([]int{}, eos...)
	merged = append(merged, p.canonicalEOS...)
	return ids, dedup(merged)
}

// DecodeIncremental advances cursor by newIDs, returning only the text
// newly revealed since the previous call. It implements the standard
// prefix/read-offset incremental detokenization algorithm used across the
// serving ecosystem: decode a short trailing window of history plus the
// new ids, and only emit the suffix the window disagrees on, so
// multi-token unicode sequences don't get split mid-codepoint.
func (p *Processor) DecodeIncremental(cursor *task.DecodeCursor, newIDs []int) string {
	allIDs := append(append([]int{}, cursor.HistoryIDs...), newIDs...)

	prefixText := p.decode(allIDs[cursor.PrefixOffset:cursor.ReadOffset])
	newText := p.decode(allIDs[cursor.PrefixOffset:])

	var out string
	if len(newText) > len(prefixText) && !strings.HasSuffix(newText, "�") {
		out = newText[len(prefixText):]
		cursor.PrefixOffset = cursor.ReadOffset
		cursor.ReadOffset = len(allIDs)
	}
	cursor.HistoryIDs = allIDs
	cursor.HistoryStrings = append(cursor.HistoryStrings, out)
	return out
}

func (p *Processor) decode(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	return p.enc.Decode(ids)
}

// ClearRequestStatus returns the concatenation of every incremental string
// streamed for a task and discards its cursor.
func ClearRequestStatus(cursor *task.DecodeCursor) string {
	out := strings.Join(cursor.HistoryStrings, "")
	*cursor = task.DecodeCursor{}
	return out
}

func dedup(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
