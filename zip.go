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

// defaultZipPrefetch is the per-source request window used when no
// WithZipPrefetch option is given.
const defaultZipPrefetch = 128

// defaultZipQueueCapacity backs a source requesting Unbounded, which still
// needs a finite local buffer (mirrors ObserveOn's ownedQueueCapacity).
const defaultZipQueueCapacity = 256

type zipConfig struct {
	prefetch int64
}

// ZipOption configures a Zip call.
type ZipOption func(*zipConfig)

// WithZipPrefetch sets the per-source request window.
func WithZipPrefetch(n int64) ZipOption {
	return func(c *zipConfig) { c.prefetch = n }
}

// Zip combines one value from every source with zipper, emitting exactly
// one result per complete tuple (§4.6). It picks the cheapest of three
// subscribe-time strategies:
//
//   - every source is a Supplier: zipper runs synchronously and the single
//     result is delivered through a DeferredScalar, with no queues at all.
//   - some sources are Suppliers and some are streams: the Suppliers are
//     captured into a slot array up front and only the remaining streams are
//     subscribed, each through a self-cancelling single-value subscriber.
//   - the general case: a coordinator with one queued inner subscriber per
//     source runs the full lockstep drain loop.
func Zip[T, R any](sources []Publisher[T], zipper func(values []T) (R, error), opts ...ZipOption) Publisher[R] {
	cfg := zipConfig{prefetch: defaultZipPrefetch}
	for _, opt := range opts {
		opt(&cfg)
	}

	return PublisherFunc[R](func(downstream Subscriber[R]) {
		if suppliers, ok := allSuppliers(sources); ok {
			subscribeZipScalar(downstream, suppliers, zipper)

			return
		}

		scalarValues, scalarIdx, streamIdx := partitionScalars(sources)
		if len(scalarIdx) > 0 {
			subscribeZipMixed(downstream, sources, scalarValues, streamIdx, zipper)

			return
		}

		subscribeZipGeneral(downstream, sources, zipper, cfg.prefetch)
	})
}

// applyZipper runs zipper under the same panic-to-error boundary used for
// every other user callback in this package.
func applyZipper[T, R any](zipper func([]T) (R, error), values []T) (res R, err error) {
	err = runProtected(func() error {
		v, zerr := zipper(values)
		if zerr != nil {
			return zerr
		}

		res = v

		return nil
	})

	return res, err
}

// allSuppliers reports whether every source is statically a Supplier.
func allSuppliers[T any](sources []Publisher[T]) ([]Supplier[T], bool) {
	out := make([]Supplier[T], len(sources))

	for i, s := range sources {
		sup, ok := asSupplier(s)
		if !ok {
			return nil, false
		}

		out[i] = sup
	}

	return out, true
}

// partitionScalars splits sources into Suppliers (captured eagerly into
// scalarValues, indexed by position) and the remaining stream indices.
func partitionScalars[T any](sources []Publisher[T]) (scalarValues []T, scalarIdx, streamIdx []int) {
	scalarValues = make([]T, len(sources))

	for i, s := range sources {
		if sup, ok := asSupplier(s); ok {
			scalarValues[i] = sup()
			scalarIdx = append(scalarIdx, i)
		} else {
			streamIdx = append(streamIdx, i)
		}
	}

	return scalarValues, scalarIdx, streamIdx
}

// subscribeZipScalar is the all-scalar fast path: §4.6 scenario 2.
func subscribeZipScalar[T, R any](downstream Subscriber[R], suppliers []Supplier[T], zipper func([]T) (R, error)) {
	ds := NewDeferredScalar[R](downstream)
	downstream.OnSubscribe(ds)

	values := make([]T, len(suppliers))
	for i, sup := range suppliers {
		values[i] = sup()
	}

	v, err := applyZipper(zipper, values)
	if err != nil {
		downstream.OnError(newCallbackError(err))

		return
	}

	ds.Complete(v)
}

// zipSingleCoordinator backs the mixed scalar/stream fast path.
type zipSingleCoordinator[T, R any] struct {
	downstream Subscriber[R]
	ds         *DeferredScalar[R]
	zipper     func([]T) (R, error)
	values     []T
	subs       []Subscription
	remaining  atomic.Int64
	terminated atomic.Bool
}

func (c *zipSingleCoordinator[T, R]) arrive() {
	if c.remaining.Add(-1) != 0 {
		return
	}

	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	v, err := applyZipper(c.zipper, c.values)
	if err != nil {
		c.downstream.OnError(newCallbackError(err))

		return
	}

	c.ds.Complete(v)
}

func (c *zipSingleCoordinator[T, R]) completeEmpty() {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.cancelAll()
	c.downstream.OnComplete()
}

func (c *zipSingleCoordinator[T, R]) fail(err error) {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	c.cancelAll()
	c.downstream.OnError(err)
}

func (c *zipSingleCoordinator[T, R]) cancelAll() {
	for _, s := range c.subs {
		if s != nil {
			s.Cancel()
		}
	}
}

// zipSingleSubscriber takes MAX from its stream and delivers exactly one
// value, then self-cancels (§4.6's ZipSingleSubscriber).
type zipSingleSubscriber[T, R any] struct {
	coord *zipSingleCoordinator[T, R]
	index int
	got   atomic.Bool
}

func (z *zipSingleSubscriber[T, R]) OnSubscribe(s Subscription) {
	z.coord.subs[z.index] = s
	s.Request(Unbounded)
}

func (z *zipSingleSubscriber[T, R]) OnNext(v T) {
	if !z.got.CompareAndSwap(false, true) {
		return
	}

	z.coord.values[z.index] = v

	if s := z.coord.subs[z.index]; s != nil {
		s.Cancel()
	}

	z.coord.arrive()
}

func (z *zipSingleSubscriber[T, R]) OnError(err error) {
	z.coord.fail(err)
}

func (z *zipSingleSubscriber[T, R]) OnComplete() {
	if !z.got.Load() {
		z.coord.completeEmpty()
	}
}

func subscribeZipMixed[T, R any](
	downstream Subscriber[R],
	sources []Publisher[T],
	scalarValues []T,
	streamIdx []int,
	zipper func([]T) (R, error),
) {
	c := &zipSingleCoordinator[T, R]{
		downstream: downstream,
		zipper:     zipper,
		values:     scalarValues,
		subs:       make([]Subscription, len(sources)),
	}
	c.ds = NewDeferredScalar[R](downstream)
	c.remaining.Store(int64(len(streamIdx)))

	downstream.OnSubscribe(c.ds)

	for _, idx := range streamIdx {
		sources[idx].Subscribe(&zipSingleSubscriber[T, R]{coord: c, index: idx})
	}
}

// zipInnerSubscriber is one source's lane in the general ZipCoordinator: a
// queue of buffered values plus a done flag, replenishing its own upstream
// demand in limit-sized chunks once the coordinator tells it how many items
// were consumed from it this pass.
type zipInnerSubscriber[T, R any] struct {
	parent   *zipCoordinator[T, R]
	index    int
	queue    *queue.SpscQueue[T]
	upstream Subscription
	done     atomic.Bool
	emitted  int64 // thread-confined to the coordinator's drain loop
}

func (z *zipInnerSubscriber[T, R]) OnSubscribe(s Subscription) {
	z.upstream = s

	if z.parent.prefetch == Unbounded {
		s.Request(Unbounded)
	} else {
		s.Request(z.parent.prefetch)
	}
}

func (z *zipInnerSubscriber[T, R]) OnNext(v T) {
	if !z.queue.Offer(v) {
		z.parent.innerError(newQueueError(ErrQueueFull))

		return
	}

	z.parent.drain()
}

func (z *zipInnerSubscriber[T, R]) OnError(err error) {
	z.parent.innerError(err)
}

func (z *zipInnerSubscriber[T, R]) OnComplete() {
	z.done.Store(true)
	z.parent.drain()
}

// produced records that the coordinator consumed n values from this inner
// during the just-finished pass, requesting more from upstream once the
// running total reaches this inner's replenishment limit.
func (z *zipInnerSubscriber[T, R]) produced(n int64) {
	if z.parent.prefetch == Unbounded {
		return
	}

	z.emitted += n
	if z.emitted >= z.parent.limit {
		if z.upstream != nil {
			z.upstream.Request(z.emitted)
		}

		z.emitted = 0
	}
}

// zipCoordinator is the general N-ary lockstep combiner (§4.6 "General
// path"). It is installed downstream as the Subscription; every source is
// subscribed through its own zipInnerSubscriber.
type zipCoordinator[T, R any] struct {
	downstream Subscriber[R]
	zipper     func([]T) (R, error)
	prefetch   int64
	limit      int64

	inners []*zipInnerSubscriber[T, R]

	wip       atomic.Int32
	requested atomic.Int64
	cancelled atomic.Bool
	errorSlot xatomic.ErrorSlot
}

var _ Subscription = (*zipCoordinator[int, int])(nil)

func zipQueueCapacity(prefetch int64) int {
	if prefetch <= 0 || prefetch == Unbounded {
		return defaultZipQueueCapacity
	}

	return int(prefetch)
}

func newZipCoordinator[T, R any](downstream Subscriber[R], zipper func([]T) (R, error), prefetch int64, n int) *zipCoordinator[T, R] {
	limit := prefetch
	if prefetch != Unbounded {
		limit = prefetch - prefetch/4
		if limit <= 0 {
			limit = 1
		}
	}

	c := &zipCoordinator[T, R]{
		downstream: downstream,
		zipper:     zipper,
		prefetch:   prefetch,
		limit:      limit,
		inners:     make([]*zipInnerSubscriber[T, R], n),
	}

	capacity := zipQueueCapacity(prefetch)
	for i := range c.inners {
		c.inners[i] = &zipInnerSubscriber[T, R]{parent: c, index: i, queue: queue.NewSpscQueue[T](capacity)}
	}

	return c
}

func subscribeZipGeneral[T, R any](downstream Subscriber[R], sources []Publisher[T], zipper func([]T) (R, error), prefetch int64) {
	c := newZipCoordinator[T, R](downstream, zipper, prefetch, len(sources))
	downstream.OnSubscribe(c)

	for i, src := range sources {
		src.Subscribe(c.inners[i])
	}
}

// Request implements Subscription.
func (c *zipCoordinator[T, R]) Request(n int64) {
	if !validateRequest(n) {
		c.downstream.OnError(newProtocolError(ErrRequestNonPositive))

		return
	}

	addPendingRequest(&c.requested, n)
	c.drain()
}

// Cancel implements Subscription. Idempotent.
func (c *zipCoordinator[T, R]) Cancel() {
	if c.cancelled.CompareAndSwap(false, true) {
		c.cancelAllInners()
	}
}

func (c *zipCoordinator[T, R]) cancelAllInners() {
	for _, inner := range c.inners {
		if inner.upstream != nil {
			inner.upstream.Cancel()
		}

		inner.queue.Clear()
	}
}

func (c *zipCoordinator[T, R]) innerError(err error) {
	c.errorSlot.AddError(err)
	c.drain()
}

// anyDoneAndEmpty reports whether some inner has both completed and
// drained its queue, which per §4.6 ends the whole Zip.
func (c *zipCoordinator[T, R]) anyDoneAndEmpty() bool {
	for _, inner := range c.inners {
		if inner.done.Load() && inner.queue.IsEmpty() {
			return true
		}
	}

	return false
}

func (c *zipCoordinator[T, R]) drain() {
	if c.wip.Add(1) != 1 {
		return
	}

	missed := int32(1)

	for {
		if c.cancelled.Load() {
			c.cancelAllInners()

			return
		}

		r := c.requested.Load()
		e := int64(0)

		for e != r {
			if c.cancelled.Load() {
				c.cancelAllInners()

				return
			}

			if err := c.errorSlot.Get(); err != nil {
				c.cancelled.Store(true)
				c.cancelAllInners()
				c.downstream.OnError(c.errorSlot.Terminate())

				return
			}

			// Pass 1: readiness check without consuming anything, so a
			// not-ready inner never causes an earlier inner's value to be
			// polled (and lost) for nothing.
			notReady := false

			for _, inner := range c.inners {
				if inner.queue.IsEmpty() {
					if inner.done.Load() {
						c.cancelled.Store(true)
						c.cancelAllInners()
						c.downstream.OnComplete()

						return
					}

					notReady = true

					break
				}
			}

			if notReady {
				break
			}

			// Pass 2: every inner has >=1 buffered item (this is the only
			// consumer, so that can't change between the passes).
			values := make([]T, len(c.inners))

			for i, inner := range c.inners {
				v, _ := inner.queue.Poll()
				values[i] = v
			}

			res, err := applyZipper(c.zipper, values)
			if err != nil {
				c.cancelled.Store(true)
				c.cancelAllInners()
				c.downstream.OnError(newCallbackError(err))

				return
			}

			c.downstream.OnNext(res)
			e++
			r = c.requested.Load()
		}

		if c.anyDoneAndEmpty() {
			c.cancelled.Store(true)
			c.cancelAllInners()
			c.downstream.OnComplete()

			return
		}

		if e > 0 {
			for _, inner := range c.inners {
				inner.produced(e)
			}

			subtractProduced(&c.requested, e)
		}

		missed = c.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}
