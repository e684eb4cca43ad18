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

// Package queue provides the bounded ring buffer backing every coordinator's
// prefetch queue (Zip's per-inner queue, ObserveOn's owned queue, TakeLast's
// trailing window).
package queue

import "github.com/samber/rs/internal/xsync"

// SpscQueue is a fixed-capacity ring buffer intended for a single producer
// and a single consumer (the upstream emitting thread and the coordinator's
// drain loop). Capacity is rounded up to the next power of two so index
// wrapping is a mask instead of a modulo, matching the teacher's preference
// for pre-sized slices (subscriptionImpl.Unsubscribe's
// make([]func(), 0, 4)) over unbounded-growth ones.
//
// Offer/Poll are guarded by a pluggable xsync.Mutex rather than left
// lock-free: the queue only ever holds a handful of in-flight items between
// drain iterations, so the mutex is never held across a blocking call, and
// using the teacher's Mutex abstraction lets a benchmark swap in
// MutexWithoutLock for genuinely single-threaded call sites (see
// mutex_vs_rwmutex_benchmark_test.go in the teacher package for the
// reasoning behind keeping that swap point).
type SpscQueue[T any] struct {
	mu   xsync.Mutex
	buf  []T
	mask uint64
	head uint64
	tail uint64
	size uint64
}

// NewSpscQueue returns a queue whose capacity is the next power of two
// greater than or equal to capacity (minimum 2).
func NewSpscQueue[T any](capacity int) *SpscQueue[T] {
	if capacity < 2 {
		capacity = 2
	}

	c := nextPowerOfTwo(uint64(capacity))

	return &SpscQueue[T]{
		mu:   xsync.NewMutexWithLock(),
		buf:  make([]T, c),
		mask: c - 1,
	}
}

func nextPowerOfTwo(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++

	return v
}

// Offer appends v to the queue. It returns false if the queue is at
// capacity; the caller (per §7.3) must treat that as a fatal queue-overflow
// condition and cancel upstream.
func (q *SpscQueue[T]) Offer(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == uint64(len(q.buf)) {
		return false
	}

	q.buf[q.tail&q.mask] = v
	q.tail++
	q.size++

	return true
}

// Poll removes and returns the oldest item. ok is false iff the queue is
// currently empty.
func (q *SpscQueue[T]) Poll() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return v, false
	}

	v = q.buf[q.head&q.mask]

	var zero T

	q.buf[q.head&q.mask] = zero
	q.head++
	q.size--

	return v, true
}

// IsEmpty reports whether the queue currently holds no items.
func (q *SpscQueue[T]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size == 0
}

// Clear discards every buffered item without returning them.
func (q *SpscQueue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T

	for q.size > 0 {
		q.buf[q.head&q.mask] = zero
		q.head++
		q.size--
	}
}

// Len returns the number of items currently buffered.
func (q *SpscQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int(q.size)
}
