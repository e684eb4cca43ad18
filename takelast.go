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

package rs

import (
	"sync/atomic"

	"github.com/samber/rs/internal/queue"
	"github.com/samber/rs/internal/xatomic"
)

// TakeLast requests Unbounded from upstream and keeps only the most recent
// n values, overwriting the oldest on overflow (SPEC_FULL §1 4.10). Once
// upstream completes, the ring is drained to downstream through the same
// wip-guarded drain loop shape as ObserveOn, honoring
// downstream Request instead of pushing everything at once. A Cancel that
// arrives before upstream completes discards the ring without ever
// emitting.
//
// internal/queue.SpscQueue rounds its capacity up to the next power of two,
// so the ring backing this coordinator can hold more than n items; count is
// tracked separately against n so exactly the last n values survive
// regardless of that rounding.
func TakeLast[T any](n int, upstream Publisher[T]) Publisher[T] {
	return PublisherFunc[T](func(downstream Subscriber[T]) {
		c := &takeLastCoordinator[T]{
			downstream: downstream,
			ring:       queue.NewSpscQueue[T](n),
			n:          n,
		}

		downstream.OnSubscribe(c)

		upstream.Subscribe(c)
	})
}

// takeLastCoordinator is both the Subscriber attached upstream and the
// Subscription handed downstream.
type takeLastCoordinator[T any] struct {
	downstream Subscriber[T]
	ring       *queue.SpscQueue[T]
	n          int
	count      int // thread-confined: OnNext is the sole writer per the serial-signal rule
	upstream   Subscription

	wip       atomic.Int32
	requested atomic.Int64
	done      atomic.Bool
	cancelled atomic.Bool
	errorSlot xatomic.ErrorSlot
}

var _ Subscription = (*takeLastCoordinator[int])(nil)

func (c *takeLastCoordinator[T]) OnSubscribe(s Subscription) {
	c.upstream = s
	s.Request(Unbounded)
}

func (c *takeLastCoordinator[T]) OnNext(v T) {
	if c.n <= 0 {
		return
	}

	if c.count == c.n {
		c.ring.Poll()
	} else {
		c.count++
	}

	c.ring.Offer(v)
}

func (c *takeLastCoordinator[T]) OnError(err error) {
	c.errorSlot.AddError(err)
	c.done.Store(true)
	c.drain()
}

func (c *takeLastCoordinator[T]) OnComplete() {
	c.done.Store(true)
	c.drain()
}

// Request implements Subscription.
func (c *takeLastCoordinator[T]) Request(n int64) {
	if !validateRequest(n) {
		c.downstream.OnError(newProtocolError(ErrRequestNonPositive))

		return
	}

	addPendingRequest(&c.requested, n)
	c.drain()
}

// Cancel implements Subscription. Idempotent; discards the ring without
// emitting whatever it held.
func (c *takeLastCoordinator[T]) Cancel() {
	if c.cancelled.CompareAndSwap(false, true) {
		if c.upstream != nil {
			c.upstream.Cancel()
		}

		c.drain()
	}
}

func (c *takeLastCoordinator[T]) drain() {
	if c.wip.Add(1) != 1 {
		return
	}

	missed := int32(1)

	for {
		if c.cancelled.Load() {
			c.ring.Clear()

			return
		}

		// The ring only ever starts draining once upstream is done, so
		// there is no "wait for more data" branch the way ObserveOn has —
		// everything TakeLast will ever hold is already buffered.
		if c.done.Load() {
			if err := c.errorSlot.Terminate(); err != nil {
				c.ring.Clear()
				c.downstream.OnError(err)

				return
			}

			r := c.requested.Load()
			e := int64(0)

			for e < r {
				v, ok := c.ring.Poll()
				if !ok {
					break
				}

				c.downstream.OnNext(v)
				e++
			}

			if e > 0 {
				subtractProduced(&c.requested, e)
			}

			if c.ring.IsEmpty() {
				c.downstream.OnComplete()

				return
			}
		}

		missed = c.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}
