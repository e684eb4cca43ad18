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

// defaultPrefetch is used when WithPrefetch is never passed to
// NewObserveOn.
const defaultPrefetch = 128

// ownedQueueCapacity sizes the owned queue (allocated when no fusion was
// negotiated with upstream) when prefetch is Unbounded or not positive, so a
// Request(Unbounded) upstream still gets a finite local buffer rather than
// an unbounded ring. Any other prefetch sizes the queue itself.
const ownedQueueCapacity = 256

type observeOnConfig struct {
	prefetch   int64
	delayError bool
}

// ObserveOnOption configures a NewObserveOn call, grounded on the teacher's
// NewXxxWithConcurrencyMode-style functional-options constructor families.
type ObserveOnOption func(*observeOnConfig)

// WithPrefetch sets the upstream request window (must be > 0, or Unbounded).
func WithPrefetch(n int64) ObserveOnOption {
	return func(c *observeOnConfig) { c.prefetch = n }
}

// WithDelayError makes ObserveOn hold any upstream error until its queue
// has fully drained, emitting it in place of OnComplete (§7).
func WithDelayError(delay bool) ObserveOnOption {
	return func(c *observeOnConfig) { c.delayError = delay }
}

// ObserveOn moves emission from upstream's calling goroutine to a Worker
// obtained from a Scheduler (§4.5). It is itself both the Subscriber
// upstream signals and the Subscription (optionally QueueSubscription)
// downstream holds.
type ObserveOn[T any] struct {
	downstream Subscriber[T]
	worker     Worker
	upstream   Subscription

	prefetch   int64
	limit      int64
	delayError bool

	fusionMode      FusionMode // negotiated with upstream
	fusedDownstream bool       // negotiated with downstream
	upstreamQueue   QueueSubscription[T]
	queue           *queue.SpscQueue[T]

	wip       atomic.Int64
	requested atomic.Int64
	errorSlot xatomic.ErrorSlot
	done      atomic.Bool
	cancelled atomic.Bool
	emitted   int64 // thread-confined to the drain task
}

var (
	_ Subscriber[int]        = (*ObserveOn[int])(nil)
	_ QueueSubscription[int] = (*ObserveOn[int])(nil)
)

// NewObserveOn returns an ObserveOn ready to be subscribed upstream; it
// will deliver to downstream on worker.
func NewObserveOn[T any](downstream Subscriber[T], worker Worker, opts ...ObserveOnOption) *ObserveOn[T] {
	cfg := observeOnConfig{prefetch: defaultPrefetch}
	for _, opt := range opts {
		opt(&cfg)
	}

	limit := cfg.prefetch
	if cfg.prefetch != Unbounded {
		limit = cfg.prefetch - cfg.prefetch/4
		if limit <= 0 {
			limit = 1
		}
	}

	return &ObserveOn[T]{
		downstream: downstream,
		worker:     worker,
		prefetch:   cfg.prefetch,
		limit:      limit,
		delayError: cfg.delayError,
	}
}

// OnSubscribe negotiates fusion with upstream, forwards OnSubscribe(o)
// downstream, and requests the initial prefetch window.
func (o *ObserveOn[T]) OnSubscribe(s Subscription) {
	o.upstream = s

	if qs, ok := s.(QueueSubscription[T]); ok {
		switch qs.RequestFusion(FusionAny) {
		case FusionSync:
			o.fusionMode = FusionSync
			o.upstreamQueue = qs
			o.done.Store(true)
		case FusionAsync:
			o.fusionMode = FusionAsync
			o.upstreamQueue = qs
		case FusionNone, FusionAny:
		}
	}

	if o.fusionMode == FusionNone {
		capacity := int(o.prefetch)
		if o.prefetch <= 0 || o.prefetch == Unbounded {
			capacity = ownedQueueCapacity
		}

		o.queue = queue.NewSpscQueue[T](capacity)
	}

	o.downstream.OnSubscribe(o)

	if o.fusionMode != FusionSync {
		if o.prefetch == Unbounded {
			s.Request(Unbounded)
		} else {
			s.Request(o.prefetch)
		}
	}
}

// OnNext implements Subscriber[T]: buffers v (or, in ASYNC fusion, just
// signals that a value is ready) and triggers the drain.
func (o *ObserveOn[T]) OnNext(v T) {
	if o.fusionMode == FusionAsync {
		o.trySchedule()

		return
	}

	if !o.queue.Offer(v) {
		o.upstream.Cancel()
		o.errorSlot.AddError(newQueueError(ErrQueueFull))
		o.done.Store(true)
	}

	o.trySchedule()
}

// OnError implements Subscriber[T].
func (o *ObserveOn[T]) OnError(err error) {
	o.errorSlot.AddError(err)
	o.done.Store(true)
	o.trySchedule()
}

// OnComplete implements Subscriber[T].
func (o *ObserveOn[T]) OnComplete() {
	o.done.Store(true)
	o.trySchedule()
}

// Request implements Subscription (the downstream-facing half).
func (o *ObserveOn[T]) Request(n int64) {
	if !validateRequest(n) {
		o.downstream.OnError(newProtocolError(ErrRequestNonPositive))

		return
	}

	addPendingRequest(&o.requested, n)
	o.trySchedule()
}

// Cancel implements Subscription. Idempotent.
func (o *ObserveOn[T]) Cancel() {
	if o.cancelled.CompareAndSwap(false, true) {
		if o.upstream != nil {
			o.upstream.Cancel()
		}

		o.trySchedule()
	}
}

// RequestFusion negotiates ASYNC fusion with downstream; ObserveOn never
// grants SYNC (a cross-goroutine boundary cannot promise synchronous
// availability).
func (o *ObserveOn[T]) RequestFusion(mode FusionMode) FusionMode {
	if mode == FusionAsync || mode == FusionAny {
		o.fusedDownstream = true

		return FusionAsync
	}

	return FusionNone
}

// Poll implements QueueSubscription[T] for a fused downstream: it pulls
// directly from whichever queue is currently backing this boundary.
func (o *ObserveOn[T]) Poll() (T, bool) {
	return o.pollQueue()
}

// IsEmpty implements QueueSubscription[T].
func (o *ObserveOn[T]) IsEmpty() bool {
	return o.isQueueEmpty()
}

// Clear implements QueueSubscription[T].
func (o *ObserveOn[T]) Clear() {
	o.clearQueue()
}

func (o *ObserveOn[T]) pollQueue() (T, bool) {
	if o.upstreamQueue != nil {
		return o.upstreamQueue.Poll()
	}

	return o.queue.Poll()
}

func (o *ObserveOn[T]) isQueueEmpty() bool {
	if o.upstreamQueue != nil {
		return o.upstreamQueue.IsEmpty()
	}

	return o.queue.IsEmpty()
}

func (o *ObserveOn[T]) clearQueue() {
	if o.upstreamQueue != nil {
		o.upstreamQueue.Clear()

		return
	}

	if o.queue != nil {
		o.queue.Clear()
	}
}

// trySchedule implements the wip-ticket hand-off (§5): the caller that
// observes the counter go 0->1 owns submitting the drain task; every other
// concurrent caller just bumps the counter, trusting the running drain to
// notice and re-loop. If the worker rejects the submission (its scheduler
// has shut down, §7.4), that rejection is surfaced downstream instead of
// being silently dropped.
func (o *ObserveOn[T]) trySchedule() {
	if o.wip.Add(1) != 1 {
		return
	}

	if d := o.worker.Schedule(o.drain); d == Rejected {
		o.downstream.OnError(newSchedulerError(ErrSchedulerShutdown))
	}
}

func (o *ObserveOn[T]) drain() {
	missed := int64(1)

	for {
		switch {
		case o.fusedDownstream:
			o.runFused()
		case o.fusionMode == FusionSync:
			o.runSync()
		default:
			o.runAsync()
		}

		missed = o.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// checkTerminated implements the cancel/done/delayError decision table
// shared by every drain variant (§4.5, §7): cancellation always wins; with
// delayError, a buffered error only surfaces once the queue is empty;
// without it, an error surfaces immediately regardless of remaining items.
func (o *ObserveOn[T]) checkTerminated(done, empty bool) bool {
	if o.cancelled.Load() {
		if o.upstream != nil {
			o.upstream.Cancel()
		}

		o.clearQueue()
		o.workerDone()

		return true
	}

	if !done {
		return false
	}

	if o.delayError {
		if !empty {
			return false
		}

		o.cancelled.Store(true)

		if err := o.errorSlot.Terminate(); err != nil {
			o.downstream.OnError(err)
		} else {
			o.downstream.OnComplete()
		}

		o.workerDone()

		return true
	}

	if err := o.errorSlot.Get(); err != nil {
		o.cancelled.Store(true)
		o.clearQueue()
		o.downstream.OnError(o.errorSlot.Terminate())
		o.workerDone()

		return true
	}

	if empty {
		o.cancelled.Store(true)
		o.downstream.OnComplete()
		o.workerDone()

		return true
	}

	return false
}

func (o *ObserveOn[T]) workerDone() {
	o.worker.Shutdown()
}

// runAsync is the unfused (or ASYNC-fused-upstream) drain: poll, emit,
// replenish upstream demand every limit items (§4.5). o.requested is
// outstanding demand: Request adds to it and each pass subtracts what it
// actually produced — exactly as zip.go's coordinator drain does — rather
// than comparing it against o.emitted, the replenishment counter that
// resets at every limit boundary.
func (o *ObserveOn[T]) runAsync() {
	replenish := o.emitted
	e := int64(0)
	r := o.requested.Load()

	for e != r {
		done := o.done.Load()
		v, ok := o.pollQueue()
		empty := !ok

		if o.checkTerminated(done, empty) {
			o.emitted = replenish

			if e > 0 {
				subtractProduced(&o.requested, e)
			}

			return
		}

		if empty {
			break
		}

		o.downstream.OnNext(v)
		e++
		replenish++

		if replenish == o.limit {
			o.upstream.Request(o.limit)
			replenish = 0
		}

		r = o.requested.Load()
	}

	o.emitted = replenish

	if e > 0 {
		subtractProduced(&o.requested, e)
	}

	if e == r && o.checkTerminated(o.done.Load(), o.isQueueEmpty()) {
		o.emitted = 0
	}
}

// runSync is the SYNC-fused-upstream drain: Poll returning ok=false is
// itself the completion signal, and no further upstream Request is issued.
func (o *ObserveOn[T]) runSync() {
	emitted := o.emitted
	r := o.requested.Load()

	for emitted != r {
		if o.cancelled.Load() {
			o.clearQueue()
			o.workerDone()
			o.emitted = 0

			return
		}

		v, ok := o.pollQueue()
		if !ok {
			o.cancelled.Store(true)
			o.downstream.OnComplete()
			o.workerDone()
			o.emitted = 0

			return
		}

		o.downstream.OnNext(v)
		emitted++
		r = o.requested.Load()
	}

	o.emitted = emitted
}

// runFused services a downstream that itself negotiated fusion: it never
// emits values directly, only a ready-ping OnNext(zero value) (the ASYNC
// "OnNext(null)" idiom from §4.4) or the eventual terminal signal; the
// downstream pulls real values through Poll.
func (o *ObserveOn[T]) runFused() {
	if o.checkTerminated(o.done.Load(), o.isQueueEmpty()) {
		return
	}

	var zero T

	o.downstream.OnNext(zero)
}
