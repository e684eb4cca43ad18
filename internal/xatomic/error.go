// Copyright 2025 samber.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://github.com/samber/ro/blob/main/licenses/LICENSE.apache.md
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xatomic

import (
	"errors"
	"sync/atomic"
)

// terminated is stored in an ErrorSlot once it has been read out, so that a
// straggling AddError racing the read can detect it lost and drop its error
// rather than silently overwrite a slot nobody will ever look at again.
var terminated = errors.New("xatomic: error slot already terminated")

// ErrorSlot is a lazily-initialized composite error accumulated via CAS, the
// same role the teacher library gives errors.Join over collected finalizer
// errors (see subscription.go's Unsubscribe), but built to be appended to
// concurrently from multiple goroutines instead of collected sequentially
// under a lock.
//
// Zero value is ready to use.
type ErrorSlot struct {
	p atomic.Pointer[error]
}

// AddError folds err into the slot, joining it with whatever is already
// there. It is safe to call concurrently from multiple goroutines; under
// contention the loser retries against the winner's already-joined value.
// AddError is a no-op once the slot has been Terminated.
func (s *ErrorSlot) AddError(err error) {
	if err == nil {
		return
	}

	for {
		cur := s.p.Load()

		if cur != nil && errors.Is(*cur, terminated) {
			return
		}

		var next error
		if cur == nil {
			next = err
		} else {
			next = errors.Join(*cur, err)
		}

		if s.p.CompareAndSwap(cur, &next) {
			return
		}
	}
}

// Get returns the error accumulated so far without consuming it.
func (s *ErrorSlot) Get() error {
	cur := s.p.Load()
	if cur == nil {
		return nil
	}

	if errors.Is(*cur, terminated) {
		return nil
	}

	return *cur
}

// Terminate atomically reads out and clears the slot, replacing it with a
// sentinel that causes any late AddError to be silently dropped. Used when a
// coordinator moves to its terminal state and must hand the accumulated
// error to exactly one OnError call.
func (s *ErrorSlot) Terminate() error {
	sentinel := terminated

	old := s.p.Swap(&sentinel)
	if old == nil {
		return nil
	}

	if errors.Is(*old, terminated) {
		return nil
	}

	return *old
}
