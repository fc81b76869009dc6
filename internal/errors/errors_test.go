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

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrTransport_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ErrTransport{ReqID: "r1", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "r1")
}

func TestErrOversize_PrefersExplicitMessage(t *testing.T) {
	err := &ErrOversize{ReqID: "r1", Len: 10, MaxSeq: 5, Message: "custom"}
	assert.Equal(t, "custom", err.Error())

	err2 := &ErrOversize{ReqID: "r1", Len: 10, MaxSeq: 5}
	assert.Contains(t, err2.Error(), "r1")
	assert.Contains(t, err2.Error(), "10")
}
