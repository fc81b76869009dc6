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

// Package errors defines the taxonomy of control-plane errors described in
// the error handling design: validation, capacity, oversize, executor and
// transport faults each carry a distinct shape so callers can branch on
// errors.As without parsing strings.
package errors

import "fmt"

// ErrValidation reports malformed or out-of-range request fields. The
// submitter's fault; the task is never enqueued.
type ErrValidation struct {
	Fields []string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

// ErrOversize reports a prompt longer than max_seq_len. The submitter's
// fault; the task is rejected at admission and never occupies a slot.
type ErrOversize struct {
	ReqID    string
	Len      int
	MaxSeq   int
	Message  string
}

func (e *ErrOversize) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("req_id %s: input_ids len %d exceeds max_seq_len %d", e.ReqID, e.Len, e.MaxSeq)
}

// ErrCapacity reports a transient admission-capacity rejection. Never
// surfaced to the client as an error; the scheduler silently retries the
// task on its next pass.
type ErrCapacity struct {
	ReqID string
}

func (e *ErrCapacity) Error() string {
	return fmt.Sprintf("req_id %s: insufficient slots or KV blocks", e.ReqID)
}

// ErrExecutor reports a process-level fault in the out-of-scope tensor
// engine, detected only via health probes. Fatal: the scheduler relies on
// its supervisor to restart the process.
type ErrExecutor struct {
	Code    int // 1 server not ready, 2 engine down, 3 engine hang
	Message string
}

func (e *ErrExecutor) Error() string {
	return fmt.Sprintf("executor fault (code %d): %s", e.Code, e.Message)
}

const (
	CodeServerNotReady = 1
	CodeEngineDown     = 2
	CodeEngineHang     = 3
)

// ErrTransport reports a failure delivering a result event to the client's
// stream. The server-side task continues to completion regardless.
type ErrTransport struct {
	ReqID string
	Cause error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("req_id %s: transport error: %v", e.ReqID, e.Cause)
}

func (e *ErrTransport) Unwrap() error { return e.Cause }
