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

	"github.com/samber/rs/internal/xatomic"
	"github.com/samber/rs/internal/xsync"
)

// join event tags (§4.7): the four kinds of message multiplexed onto the
// single queue that correlates left and right windows.
const (
	joinLeftValue = iota
	joinRightValue
	joinLeftClose
	joinRightClose
)

type joinEvent[L, R any] struct {
	tag   int
	index int
	left  L
	right R
}

// Join correlates values from two sources by window overlap: a left value L
// is "live" from the moment it arrives until its leftEnd(L) window
// publisher fires, and symmetrically for right; resultSelector runs once
// for every (left, right) pair alive at the same time (§4.7).
func Join[L, R, O any](
	left Publisher[L],
	right Publisher[R],
	leftEnd func(L) Publisher[any],
	rightEnd func(R) Publisher[any],
	resultSelector func(l L, r R) (O, error),
) Publisher[O] {
	return PublisherFunc[O](func(downstream Subscriber[O]) {
		c := &joinCoordinator[L, R, O]{
			downstream: downstream,
			leftEnd:    leftEnd,
			rightEnd:   rightEnd,
			selector:   resultSelector,
			lefts:      make(map[int]L),
			rights:     make(map[int]R),
			leftSubs:   make(map[int]Subscription),
			rightSubs:  make(map[int]Subscription),
			mu:         xsync.NewMutexWithLock(),
		}
		c.active.Store(2)

		downstream.OnSubscribe(c)

		left.Subscribe(&joinLeftSubscriber[L, R, O]{parent: c})
		right.Subscribe(&joinRightSubscriber[L, R, O]{parent: c})
	})
}

// joinCoordinator is the single drain loop serializing every left/right
// value and window-close signal (§4.7, §5 "lefts/rights maps touched only
// inside the drain loop").
type joinCoordinator[L, R, O any] struct {
	downstream Subscriber[O]
	leftEnd    func(L) Publisher[any]
	rightEnd   func(R) Publisher[any]
	selector   func(L, R) (O, error)

	mu    xsync.Mutex // guards the paired-insert critical section (§9)
	queue []joinEvent[L, R]

	wip       atomic.Int32
	requested atomic.Int64
	active    atomic.Int32 // starts at 2 (left + right primary sources)
	cancelled atomic.Bool
	terminated atomic.Bool
	errorSlot xatomic.ErrorSlot

	leftUpstream  Subscription
	rightUpstream Subscription

	nextLeftIndex  int
	nextRightIndex int
	lefts          map[int]L
	rights         map[int]R
	leftSubs       map[int]Subscription
	rightSubs      map[int]Subscription
}

var _ Subscription = (*joinCoordinator[int, int, int])(nil)

// Request implements Subscription.
func (c *joinCoordinator[L, R, O]) Request(n int64) {
	if !validateRequest(n) {
		c.downstream.OnError(newProtocolError(ErrRequestNonPositive))

		return
	}

	addPendingRequest(&c.requested, n)
	c.drain()
}

// Cancel implements Subscription. Idempotent; silent (no terminal signal).
func (c *joinCoordinator[L, R, O]) Cancel() {
	if c.cancelled.CompareAndSwap(false, true) {
		c.drain()
	}
}

func (c *joinCoordinator[L, R, O]) pushEvent(ev joinEvent[L, R]) {
	c.mu.Lock()
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	c.drain()
}

func (c *joinCoordinator[L, R, O]) popEvent() (joinEvent[L, R], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return joinEvent[L, R]{}, false
	}

	ev := c.queue[0]
	c.queue = c.queue[1:]

	return ev, true
}

func (c *joinCoordinator[L, R, O]) queueEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.queue) == 0
}

// setWindowSub/takeWindowSub guard leftSubs/rightSubs with the same mutex as
// the event queue: a window publisher's OnSubscribe is not guaranteed to run
// on the drain loop's confined thread, so this map needs real synchronization
// rather than relying on wip-serialization alone.
func (c *joinCoordinator[L, R, O]) setWindowSub(left bool, index int, sub Subscription) {
	c.mu.Lock()
	if left {
		c.leftSubs[index] = sub
	} else {
		c.rightSubs[index] = sub
	}
	c.mu.Unlock()
}

func (c *joinCoordinator[L, R, O]) takeWindowSub(left bool, index int) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	if left {
		s := c.leftSubs[index]
		delete(c.leftSubs, index)

		return s
	}

	s := c.rightSubs[index]
	delete(c.rightSubs, index)

	return s
}

// signalError is the entry point for errors observed off the drain thread
// (a primary source's OnError, a window publisher's OnError); it only
// touches the CAS-safe errorSlot and lets drain() perform the actual
// teardown on its own confined thread.
func (c *joinCoordinator[L, R, O]) signalError(err error) {
	c.errorSlot.AddError(err)
	c.drain()
}

func (c *joinCoordinator[L, R, O]) primaryDone() {
	c.active.Add(-1)
	c.drain()
}

func (c *joinCoordinator[L, R, O]) drain() {
	if c.wip.Add(1) != 1 {
		return
	}

	missed := int32(1)

	for {
		if c.cancelled.Load() {
			c.finishCancelled()

			return
		}

		if err := c.errorSlot.Get(); err != nil {
			c.fail(c.errorSlot.Terminate())

			return
		}

		for {
			ev, ok := c.popEvent()
			if !ok {
				break
			}

			if !c.processEvent(ev) {
				return
			}
		}

		if c.active.Load() <= 0 && c.queueEmpty() {
			c.finish()

			return
		}

		missed = c.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// processEvent applies one queued event. It returns false if the
// coordinator reached a terminal state while handling it, in which case the
// caller must stop draining immediately.
func (c *joinCoordinator[L, R, O]) processEvent(ev joinEvent[L, R]) bool {
	switch ev.tag {
	case joinLeftValue:
		idx := c.nextLeftIndex
		c.nextLeftIndex++
		c.lefts[idx] = ev.left

		c.leftEnd(ev.left).Subscribe(&joinWindowSubscriber[L, R, O]{parent: c, tag: joinLeftClose, index: idx})

		for _, rv := range c.rights {
			if !c.emit(ev.left, rv) {
				return false
			}
		}
	case joinRightValue:
		idx := c.nextRightIndex
		c.nextRightIndex++
		c.rights[idx] = ev.right

		c.rightEnd(ev.right).Subscribe(&joinWindowSubscriber[L, R, O]{parent: c, tag: joinRightClose, index: idx})

		for _, lv := range c.lefts {
			if !c.emit(lv, ev.right) {
				return false
			}
		}
	case joinLeftClose:
		if s := c.takeWindowSub(true, ev.index); s != nil {
			s.Cancel()
		}

		delete(c.lefts, ev.index)
	case joinRightClose:
		if s := c.takeWindowSub(false, ev.index); s != nil {
			s.Cancel()
		}

		delete(c.rights, ev.index)
	}

	return true
}

// emit applies selector to one live pair, consuming one unit of downstream
// demand. It returns false (having already called fail) if demand is
// exhausted or the selector itself fails — §4.7, §9's "stricter than
// typical Rx" decision to terminate rather than stall.
func (c *joinCoordinator[L, R, O]) emit(l L, r R) bool {
	for {
		cur := c.requested.Load()
		if cur <= 0 {
			c.fail(newProtocolError(ErrJoinInsufficientRequest))

			return false
		}

		next, _ := subCap(cur, 1)
		if c.requested.CompareAndSwap(cur, next) {
			break
		}
	}

	res, err := runProtectedSelector(c.selector, l, r)
	if err != nil {
		c.fail(newCallbackError(err))

		return false
	}

	c.downstream.OnNext(res)

	return true
}

func runProtectedSelector[L, R, O any](selector func(L, R) (O, error), l L, r R) (res O, err error) {
	err = runProtected(func() error {
		v, serr := selector(l, r)
		if serr != nil {
			return serr
		}

		res = v

		return nil
	})

	return res, err
}

// fail and finish/finishCancelled must only ever run on the drain loop's
// confined thread: they mutate lefts/rights/leftSubs/rightSubs directly.
func (c *joinCoordinator[L, R, O]) fail(err error) {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.teardown()
	c.downstream.OnError(err)
}

func (c *joinCoordinator[L, R, O]) finish() {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.teardown()
	c.downstream.OnComplete()
}

func (c *joinCoordinator[L, R, O]) finishCancelled() {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.teardown()
}

func (c *joinCoordinator[L, R, O]) teardown() {
	if c.leftUpstream != nil {
		c.leftUpstream.Cancel()
	}

	if c.rightUpstream != nil {
		c.rightUpstream.Cancel()
	}

	c.mu.Lock()
	leftSubs, rightSubs := c.leftSubs, c.rightSubs
	c.leftSubs = map[int]Subscription{}
	c.rightSubs = map[int]Subscription{}
	c.queue = nil
	c.mu.Unlock()

	for _, s := range leftSubs {
		if s != nil {
			s.Cancel()
		}
	}

	for _, s := range rightSubs {
		if s != nil {
			s.Cancel()
		}
	}

	c.lefts = map[int]L{}
	c.rights = map[int]R{}
}

// joinLeftSubscriber subscribes to the primary left source, requesting
// everything (backpressure on this side is governed by downstream demand
// instead — §4.7).
type joinLeftSubscriber[L, R, O any] struct {
	parent *joinCoordinator[L, R, O]
}

func (s *joinLeftSubscriber[L, R, O]) OnSubscribe(sub Subscription) {
	s.parent.leftUpstream = sub
	sub.Request(Unbounded)
}

func (s *joinLeftSubscriber[L, R, O]) OnNext(v L) {
	s.parent.pushEvent(joinEvent[L, R]{tag: joinLeftValue, left: v})
}

func (s *joinLeftSubscriber[L, R, O]) OnError(err error) { s.parent.signalError(err) }
func (s *joinLeftSubscriber[L, R, O]) OnComplete()       { s.parent.primaryDone() }

type joinRightSubscriber[L, R, O any] struct {
	parent *joinCoordinator[L, R, O]
}

func (s *joinRightSubscriber[L, R, O]) OnSubscribe(sub Subscription) {
	s.parent.rightUpstream = sub
	sub.Request(Unbounded)
}

func (s *joinRightSubscriber[L, R, O]) OnNext(v R) {
	s.parent.pushEvent(joinEvent[L, R]{tag: joinRightValue, right: v})
}

func (s *joinRightSubscriber[L, R, O]) OnError(err error) { s.parent.signalError(err) }
func (s *joinRightSubscriber[L, R, O]) OnComplete()       { s.parent.primaryDone() }

// joinWindowSubscriber watches one value's window-end publisher and posts a
// close event the first time it fires, idempotent against the window
// publisher emitting more than once.
type joinWindowSubscriber[L, R, O any] struct {
	parent *joinCoordinator[L, R, O]
	tag    int
	index  int
	fired  atomic.Bool
}

// OnSubscribe may run on a goroutine other than the drain loop's (window
// publishers are not required to subscribe synchronously), so the map write
// is guarded by the same mutex as the event queue rather than relying on
// drain-loop confinement.
func (w *joinWindowSubscriber[L, R, O]) OnSubscribe(sub Subscription) {
	w.parent.setWindowSub(w.tag == joinLeftClose, w.index, sub)

	sub.Request(1)
}

func (w *joinWindowSubscriber[L, R, O]) OnNext(any)    { w.close() }
func (w *joinWindowSubscriber[L, R, O]) OnComplete()   { w.close() }
func (w *joinWindowSubscriber[L, R, O]) OnError(err error) { w.parent.signalError(err) }

func (w *joinWindowSubscriber[L, R, O]) close() {
	if !w.fired.CompareAndSwap(false, true) {
		return
	}

	w.parent.pushEvent(joinEvent[L, R]{tag: w.tag, index: w.index})
}
