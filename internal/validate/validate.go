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

// Package validate normalizes and bounds-checks inbound generation
// requests. Every field is checked independently so a single submission
// can report every mistake in it at once.
package validate

import "fmt"

// Message is one turn of a chat-style request.
type Message struct {
	Role    string  `json:"role"`
	Content *string `json:"content,omitempty"`
}

// Request is the tagged, enumerated-field record the submission path
// decodes client JSON into. Pointer fields distinguish "absent" from
// "present with zero value"; EOSTokenIDs is intentionally untyped because
// clients may send either a bare int or a single-element list.
type Request struct {
	Text     *string   `json:"text,omitempty"`
	InputIDs []int     `json:"input_ids,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	System   *string   `json:"system,omitempty"`

	ReqID string `json:"req_id"`

	MinDecLen *int `json:"min_dec_len,omitempty"`
	MaxDecLen *int `json:"max_dec_len,omitempty"`
	SeqLen    *int `json:"seq_len,omitempty"`
	MaxTokens *int `json:"max_tokens,omitempty"`

	TopP    *float64 `json:"topp,omitempty"`
	TopPAlt *float64 `json:"top_p,omitempty"`

	Temperature    *float64 `json:"temperature,omitempty"`
	FrequencyScore *float64 `json:"frequency_score,omitempty"`
	PresenceScore  *float64 `json:"presence_score,omitempty"`
	PenaltyScore   *float64 `json:"penalty_score,omitempty"`

	EOSTokenIDs interface{} `json:"eos_token_ids,omitempty"`

	InferSeed *int64 `json:"infer_seed,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`

	Stream          *bool   `json:"stream,omitempty"`
	ResponseType    *string `json:"response_type,omitempty"`
	Benchmark       *bool   `json:"benchmark,omitempty"`
	ReturnAllTokens *bool   `json:"return_all_tokens,omitempty"`
}

// Normalized is a Request after every validation rule has been applied
// and every default filled in. It is the input the submission path hands
// to the data processor to build a task.Task.
type Normalized struct {
	ReqID    string
	Text     string
	InputIDs []int
	Messages []Message

	MinDecLen      int
	MaxDecLen      int // 0 means "use the engine default"
	TopP           float64
	TopPSet        bool
	Temperature    float64
	TemperatureSet bool
	FrequencyScore float64
	PresenceScore  float64
	PenaltyScore   float64
	EOSTokenIDs    []int
	InferSeed      int64
	InferSeedSet   bool
	Stream         bool
	ResponseType   string

	Benchmark       bool
	ReturnAllTokens bool
}

// Validate checks every field of req independently, returning the
// normalized record and the full list of human-readable errors found. A
// non-empty error list means the caller must reject the request without
// enqueuing it.
func Validate(req *Request) (*Normalized, []string) {
	var errs []string
	n := &Normalized{ReqID: req.ReqID}

	// One of text / input_ids / messages must be present.
	present := 0
	if req.Text != nil {
		present++
	}
	if req.InputIDs != nil {
		present++
	}
	if req.Messages != nil {
		present++
	}
	switch {
	case present == 0:
		errs = append(errs, "one of `text`, `input_ids` or `messages` must be present")
	default:
		if req.Text != nil {
			if *req.Text == "" {
				errs = append(errs, "`text` cannot be empty")
			} else {
				n.Text = *req.Text
			}
		}
		if req.InputIDs != nil {
			n.InputIDs = req.InputIDs
		}
		if req.Messages != nil {
			if len(req.Messages)%2 == 0 {
				errs = append(errs, fmt.Sprintf("the number of messages (%d) must be odd", len(req.Messages)))
			}
			for i, m := range req.Messages {
				want := "user"
				if i%2 == 1 {
					want = "assistant"
				}
				if m.Role != want {
					errs = append(errs, fmt.Sprintf("messages must alternate user/assistant ending on user, message %d has role %q", i, m.Role))
					break
				}
			}
			for _, m := range req.Messages {
				if m.Content == nil {
					errs = append(errs, "every message must include `content`")
					break
				}
			}
			n.Messages = req.Messages
		}
	}

	if req.ReqID == "" {
		errs = append(errs, "`req_id` is required")
	}

	if req.MinDecLen != nil {
		if *req.MinDecLen < 1 {
			errs = append(errs, "`min_dec_len` must be an integer >= 1")
		} else {
			n.MinDecLen = *req.MinDecLen
		}
	}

	for name, v := range map[string]*int{"max_dec_len": req.MaxDecLen, "seq_len": req.SeqLen, "max_tokens": req.MaxTokens} {
		if v != nil && *v < 1 {
			errs = append(errs, fmt.Sprintf("`%s` must be an integer >= 1", name))
		}
	}
	switch {
	case req.MaxDecLen != nil && *req.MaxDecLen >= 1:
		n.MaxDecLen = *req.MaxDecLen
	case req.SeqLen != nil && *req.SeqLen >= 1:
		n.MaxDecLen = *req.SeqLen
	case req.MaxTokens != nil && *req.MaxTokens >= 1:
		n.MaxDecLen = *req.MaxTokens
	}

	if req.TopP != nil && req.TopPAlt != nil {
		errs = append(errs, "only one of `topp`, `top_p` should be set")
	} else {
		topp := req.TopP
		if topp == nil {
			topp = req.TopPAlt
		}
		if topp != nil {
			if *topp < 0 || *topp > 1 {
				errs = append(errs, "`topp`/`top_p` must be in [0,1]")
			} else {
				n.TopP = *topp
				n.TopPSet = true
			}
		}
	}

	if req.Temperature != nil {
		if *req.Temperature < 0 {
			errs = append(errs, "`temperature` must be >= 0")
		} else {
			n.Temperature = *req.Temperature
			n.TemperatureSet = true
		}
	}

	if req.FrequencyScore != nil {
		n.FrequencyScore = *req.FrequencyScore
	}
	if req.PresenceScore != nil {
		n.PresenceScore = *req.PresenceScore
	}
	if req.PenaltyScore != nil {
		n.PenaltyScore = *req.PenaltyScore
	}

	if req.EOSTokenIDs != nil {
		ids, err := normalizeEOSTokenIDs(req.EOSTokenIDs)
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			n.EOSTokenIDs = ids
		}
	}

	if req.InferSeed != nil && req.Seed != nil {
		errs = append(errs, "only one of `infer_seed`, `seed` should be set")
	} else if req.InferSeed != nil {
		n.InferSeed = *req.InferSeed
		n.InferSeedSet = true
	} else if req.Seed != nil {
		n.InferSeed = *req.Seed
		n.InferSeedSet = true
	}

	if req.Stream != nil {
		n.Stream = *req.Stream
	}

	if req.ResponseType != nil {
		rt := toLower(*req.ResponseType)
		if rt != "fastdeploy" && rt != "openai" {
			errs = append(errs, "`response_type` must be either `fastdeploy` or `openai`")
		} else {
			n.ResponseType = rt
		}
	}

	if req.Benchmark != nil {
		n.Benchmark = *req.Benchmark
	}
	if req.ReturnAllTokens != nil {
		n.ReturnAllTokens = *req.ReturnAllTokens
	}

	applyDefaults(n)
	return n, errs
}

func applyDefaults(n *Normalized) {
	if n.MinDecLen == 0 {
		n.MinDecLen = 1
	}
	if !n.TopPSet {
		n.TopP = 0.7
	}
	if !n.TemperatureSet {
		n.Temperature = 0.95
	}
	if n.PenaltyScore == 0 {
		n.PenaltyScore = 1.0
	}
	if n.ResponseType == "" {
		n.ResponseType = "fastdeploy"
	}
}

// normalizeEOSTokenIDs accepts a bare number or a one-element array and
// always returns a list of length exactly one.
func normalizeEOSTokenIDs(raw interface{}) ([]int, error) {
	switch v := raw.(type) {
	case float64:
		return []int{int(v)}, nil
	case int:
		return []int{v}, nil
	case []interface{}:
		if len(v) != 1 {
			return nil, fmt.Errorf("`eos_token_ids` must have length exactly 1 if set")
		}
		switch e := v[0].(type) {
		case float64:
			return []int{int(e)}, nil
		case int:
			return []int{e}, nil
		default:
			return nil, fmt.Errorf("`eos_token_ids` elements must be integers")
		}
	default:
		return nil, fmt.Errorf("`eos_token_ids` must be an int or a single-element list")
	}
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
