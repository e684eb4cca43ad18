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

import "sync/atomic"

// MaxValue is the absorbing "unbounded" demand state (the Go analogue of
// java.lang.Long.MAX_VALUE in the Reactive Streams reference implementation).
const MaxValue int64 = 1<<63 - 1

// Long is a 64-bit saturating counter used to track outstanding demand,
// work-in-progress tickets, and emitted counts across a coordinator. All
// mutating operations are lock-free (CAS loop or fetch-add).
type Long struct {
	v atomic.Int64
}

// NewLong returns a Long initialized to v.
func NewLong(v int64) *Long {
	l := &Long{}
	l.v.Store(v)

	return l
}

// Load returns the current value.
func (l *Long) Load() int64 {
	return l.v.Load()
}

// Store sets the value unconditionally.
func (l *Long) Store(v int64) {
	l.v.Store(v)
}

// GetAndIncrement is the wip-ticket primitive (§5): callers that observe 0
// own the drain; any other observed value means another drain is already
// running and has been informed of new work.
func (l *Long) GetAndIncrement() int64 {
	return l.v.Add(1) - 1
}

// AddAndGet adds delta and returns the new value, used to release a wip
// ticket by subtracting the number of missed signals reconciled so far.
func (l *Long) AddAndGet(delta int64) int64 {
	return l.v.Add(delta)
}

// GetAndSet atomically swaps in v and returns the previous value — used to
// snapshot-and-clear a "missed" slot (missedRequested, missedProduced, …).
func (l *Long) GetAndSet(v int64) int64 {
	return l.v.Swap(v)
}

// CompareAndSwap performs a standard CAS.
func (l *Long) CompareAndSwap(old, new int64) bool {
	return l.v.CompareAndSwap(old, new)
}

// AddCap adds n to the current demand, saturating at MaxValue, and returns
// the new value. Once the counter reaches MaxValue it is permanently
// unbounded (AddCap(MAX, anything) == MAX).
func (l *Long) AddCap(n int64) int64 {
	for {
		cur := l.v.Load()

		next := AddCap(cur, n)
		if l.v.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// SubCap subtracts n from the current demand, clamping at 0, and returns the
// new value together with whether n exceeded the outstanding demand (a
// protocol violation per §3/§7 — "more produced than requested").
func (l *Long) SubCap(n int64) (result int64, overProduced bool) {
	for {
		cur := l.v.Load()

		next, over := SubCap(cur, n)
		if l.v.CompareAndSwap(cur, next) {
			return next, over
		}
	}
}

// AddCap adds a and b, saturating at MaxValue. Unbounded (MaxValue) is
// absorbing: AddCap(MaxValue, b) == MaxValue for any b >= 0.
func AddCap(a, b int64) int64 {
	if a == MaxValue {
		return MaxValue
	}

	u := a + b
	if u < 0 {
		return MaxValue
	}

	return u
}

// SubCap subtracts b from a, clamping at 0. If a is already MaxValue
// (unbounded), it stays MaxValue regardless of b: an operator that has ever
// requested unbounded demand never needs to track consumption again.
// overProduced reports whether b exceeded a (a protocol violation that
// callers should log-and-drop rather than treat as fatal).
func SubCap(a, b int64) (result int64, overProduced bool) {
	if a == MaxValue {
		return MaxValue, false
	}

	if a >= b {
		return a - b, false
	}

	return 0, true
}
