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

// deferred-scalar states, after the (has_request, has_value) pairs in §4.1:
// dsEmpty (no request, no value), dsHasValue (no request, value),
// dsRequested (request, no value), dsTerminated (request and value:
// terminal/consumed).
const (
	dsEmpty = iota
	dsHasValue
	dsRequested
	dsTerminated
)

// DeferredScalar emits at most one value asynchronously: the value may
// arrive (via Complete) before or after downstream issues its Request, and
// whichever arrives second triggers the OnNext/OnComplete pair. All state
// transitions are CAS-only (§4.1) so Complete and Request/Cancel can race
// freely.
//
// DeferredScalar also implements QueueSubscription[T] for ASYNC fusion: once
// fused, downstream polls the value out directly instead of waiting for
// OnNext.
type DeferredScalar[T any] struct {
	downstream Subscriber[T]
	state      atomic.Int32
	value      T
	fused      bool
}

var (
	_ Subscription           = (*DeferredScalar[int])(nil)
	_ QueueSubscription[int] = (*DeferredScalar[int])(nil)
)

// NewDeferredScalar returns a DeferredScalar that will signal downstream.
func NewDeferredScalar[T any](downstream Subscriber[T]) *DeferredScalar[T] {
	return &DeferredScalar[T]{downstream: downstream}
}

// Request implements Subscription.
func (d *DeferredScalar[T]) Request(n int64) {
	if !validateRequest(n) {
		d.downstream.OnError(newProtocolError(ErrRequestNonPositive))

		return
	}

	if d.fused {
		// Fusion negotiated: downstream drives via Poll, Request is a no-op
		// (follows the "fusion mode fixed for the subscription's lifetime"
		// rule of §4.4 — switching back to push delivery mid-stream would
		// violate it).
		return
	}

	if d.state.CompareAndSwap(dsEmpty, dsRequested) {
		return
	}

	if d.state.CompareAndSwap(dsHasValue, dsTerminated) {
		d.emit()
	}
}

// Complete stashes v (if no request has arrived yet) or emits it
// immediately (if downstream already requested). Called by the producer at
// most once; a second call is a no-op because the state is no longer
// dsEmpty/dsRequested.
//
// The value is written before either publishing CAS so that a concurrent
// Request/Poll which observes the resulting state (dsHasValue or
// dsTerminated) is guaranteed to see this write too — the CAS itself is
// what a reader synchronizes on, so it must come after the value is set,
// never before.
func (d *DeferredScalar[T]) Complete(v T) {
	if s := d.state.Load(); s != dsEmpty && s != dsRequested {
		return
	}

	d.value = v

	if d.state.CompareAndSwap(dsEmpty, dsHasValue) {
		return
	}

	if d.state.CompareAndSwap(dsRequested, dsTerminated) {
		d.emit()
	}
}

func (d *DeferredScalar[T]) emit() {
	d.downstream.OnNext(d.value)
	d.downstream.OnComplete()
}

// Cancel force-terminates the scalar; no signal is ever emitted afterward,
// even if Complete races in concurrently.
func (d *DeferredScalar[T]) Cancel() {
	d.state.Store(dsTerminated)
}

// RequestFusion grants FusionAsync for FusionAsync/FusionAny requests (the
// value may not be available synchronously), and rejects FusionSync.
func (d *DeferredScalar[T]) RequestFusion(mode FusionMode) FusionMode {
	if mode == FusionAsync || mode == FusionAny {
		d.fused = true

		return FusionAsync
	}

	return FusionNone
}

// Poll implements QueueSubscription[T]. It yields the stored value exactly
// once; every call before or after that returns ok=false.
func (d *DeferredScalar[T]) Poll() (T, bool) {
	if d.state.CompareAndSwap(dsHasValue, dsTerminated) {
		return d.value, true
	}

	var zero T

	return zero, false
}

// IsEmpty reports whether Poll would currently return ok=false.
func (d *DeferredScalar[T]) IsEmpty() bool {
	return d.state.Load() != dsHasValue
}

// Clear discards the stored value (if any) without emitting it.
func (d *DeferredScalar[T]) Clear() {
	d.state.Store(dsTerminated)

	var zero T
	d.value = zero
}
