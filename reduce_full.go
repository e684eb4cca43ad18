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

import "sync/atomic"

// slotPair is the two-writer rendezvous used to fold a freshly completed
// rail's value together with either another rail's value or a previous
// pair's carry (§4.8). acquireIndex hands out slot 0/1 to at most two
// writers; releaseIndex counts how many of them have actually stored their
// value, so the second writer in is the one that reduces.
type slotPair[T any] struct {
	first, second T
	acquireIndex  atomic.Int32
	releaseIndex  atomic.Int32
}

// tryAcquireSlot claims slot 0 or 1 of the pair, returning -1 if both are
// already taken.
func (p *slotPair[T]) tryAcquireSlot() int32 {
	for {
		cur := p.acquireIndex.Load()
		if cur >= 2 {
			return -1
		}

		if p.acquireIndex.CompareAndSwap(cur, cur+1) {
			return cur
		}
	}
}

// release records that this writer's slot has been stored, returning
// whether it was the second (and thus the one responsible for reducing).
func (p *slotPair[T]) release() bool {
	return p.releaseIndex.Add(1) == 2
}

// ReduceFull combines n independent rails with an associative reducer into
// a single value (§4.8). Each rail reduces its own values locally as they
// arrive (via the initial value being the rail's first item and reducer
// folding every subsequent one); when a rail completes with a value, the
// coordinator opportunistically pairs it against another completed rail's
// value (or a previous pairing's carry) through a slotPair, so the overall
// reduction happens roughly in parallel instead of as one long serial
// fold. If every rail completes empty, ReduceFull completes with no value.
// The first error cancels every rail and is surfaced at most once.
func ReduceFull[T any](rails []Publisher[T], reducer func(a, b T) (T, error)) Publisher[T] {
	return PublisherFunc[T](func(downstream Subscriber[T]) {
		c := &reduceFullCoordinator[T]{
			downstream: downstream,
			reducer:    reducer,
			subs:       make([]Subscription, len(rails)),
		}
		c.remaining.Store(int64(len(rails)))

		ds := NewDeferredScalar[T](downstream)
		c.ds = ds

		downstream.OnSubscribe(ds)

		if len(rails) == 0 {
			c.finishEmpty()

			return
		}

		for i, rail := range rails {
			rail.Subscribe(&reduceFullRail[T]{coord: c, index: i})
		}
	})
}

// reduceFullCoordinator owns the carry slot: each rail that finishes with a
// value tries to pair against the current carry slot, creating a fresh one
// if the current slot is already full (§4.8).
type reduceFullCoordinator[T any] struct {
	downstream Subscriber[T]
	reducer    func(a, b T) (T, error)
	ds         *DeferredScalar[T]

	subs []Subscription

	remaining  atomic.Int64 // rails not yet completed
	terminated atomic.Bool

	carry atomic.Pointer[slotPair[T]]
}

// reduceFullRail subscribes to one rail, folding every value it sees into a
// local running reduction (has/value), then hands the final local result
// (if any) to the coordinator once the rail completes.
type reduceFullRail[T any] struct {
	coord *reduceFullCoordinator[T]
	index int

	upstream Subscription
	has      bool
	value    T
}

func (r *reduceFullRail[T]) OnSubscribe(s Subscription) {
	r.upstream = s
	r.coord.subs[r.index] = s
	s.Request(Unbounded)
}

func (r *reduceFullRail[T]) OnNext(v T) {
	if !r.has {
		r.has = true
		r.value = v

		return
	}

	next, err := r.reduce(r.value, v)
	if err != nil {
		r.coord.fail(newCallbackError(err))

		return
	}

	r.value = next
}

func (r *reduceFullRail[T]) reduce(a, b T) (res T, err error) {
	err = runProtected(func() error {
		v, rerr := r.coord.reducer(a, b)
		if rerr != nil {
			return rerr
		}

		res = v

		return nil
	})

	return res, err
}

func (r *reduceFullRail[T]) OnError(err error) {
	r.coord.fail(err)
}

func (r *reduceFullRail[T]) OnComplete() {
	r.coord.railDone(r.value, r.has)
}

// addValue claims a slot in the current carry pair and stores v into it,
// returning the completed pair (and true) iff this call was the second
// writer into it — the caller is then responsible for reducing and
// resubmitting the result. A false return means v was parked waiting for a
// partner and the caller must not touch it again.
func (c *reduceFullCoordinator[T]) addValue(v T) (*slotPair[T], bool) {
	for {
		slot := c.carry.Load()
		if slot == nil {
			fresh := &slotPair[T]{}
			if !c.carry.CompareAndSwap(nil, fresh) {
				continue
			}

			slot = fresh
		}

		idx := slot.tryAcquireSlot()
		if idx < 0 {
			// Slot filled (and possibly already consumed) between our load
			// and our acquire attempt; help clear the stale pointer so no
			// other writer spins on it forever, then retry.
			c.carry.CompareAndSwap(slot, nil)

			continue
		}

		if idx == 0 {
			slot.first = v
		} else {
			slot.second = v
		}

		if !slot.release() {
			return nil, false
		}

		// We were the second writer into this pair: detach it so a future
		// addValue starts fresh, and hand it back for reducing.
		c.carry.CompareAndSwap(slot, nil)

		return slot, true
	}
}

// pairWith folds v into the coordinator's current carry slot, looping (not
// literal recursion) whenever a completed pairing's reduced result must
// itself be paired again. It must run to completion — parking or
// finishing — before the caller decrements remaining, so that the rail
// which observes remaining reach 0 is guaranteed to see every other rail's
// contribution already folded into carry (§4.8).
func (c *reduceFullCoordinator[T]) pairWith(v T) {
	for {
		slot, paired := c.addValue(v)
		if !paired {
			return
		}

		reduced, err := runProtectedReduce(c.reducer, slot.first, slot.second)
		if err != nil {
			c.fail(newCallbackError(err))

			return
		}

		v = reduced
	}
}

func runProtectedReduce[T any](reducer func(a, b T) (T, error), a, b T) (res T, err error) {
	err = runProtected(func() error {
		v, rerr := reducer(a, b)
		if rerr != nil {
			return rerr
		}

		res = v

		return nil
	})

	return res, err
}

// railDone is called when a rail completes, with hasValue reporting whether
// it produced at least one local value. It always finishes pairing its own
// contribution (if any) into carry before decrementing remaining, so the
// rail that observes the count reach 0 can safely read out whatever single
// value, if any, is left parked there as the final answer (§4.8).
func (c *reduceFullCoordinator[T]) railDone(v T, hasValue bool) {
	if hasValue {
		c.pairWith(v)
	}

	if c.remaining.Add(-1) != 0 {
		return
	}

	if slot := c.carry.Swap(nil); slot != nil {
		c.finishWithValue(slot.first)
	} else {
		c.finishEmpty()
	}
}

func (c *reduceFullCoordinator[T]) finishWithValue(v T) {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.ds.Complete(v)
}

func (c *reduceFullCoordinator[T]) finishEmpty() {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.downstream.OnComplete()
}

func (c *reduceFullCoordinator[T]) fail(err error) {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.cancelAll()
	c.downstream.OnError(err)
}

func (c *reduceFullCoordinator[T]) cancelAll() {
	for _, s := range c.subs {
		if s != nil {
			s.Cancel()
		}
	}

	c.ds.Cancel()
}
