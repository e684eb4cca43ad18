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
	"context"
	"sync/atomic"

	"github.com/samber/rs/internal/xatomic"
)

// MultiSubscription is a switching arbiter: unlike DeferredSubscription it
// accepts repeated Set calls, for operators that re-subscribe upstream
// (switch, retry, repeat). All mutation is reconciled by a single
// wip-guarded drain loop (§4.3) instead of a lock.
//
// Zero value is ready to use. ShouldCancelCurrent, if set, is consulted
// before swapping in a new subscription and may veto cancelling the
// previous one; nil means "always cancel the previous subscription".
type MultiSubscription struct {
	wip       atomic.Int32
	cancelled atomic.Bool

	actual    xatomic.Pointer[Subscription]
	requested int64 // thread-confined: only ever touched inside drain()

	missedSubscription xatomic.Pointer[Subscription]
	missedRequested    atomic.Int64
	missedProduced     atomic.Int64

	ShouldCancelCurrent func(current, next Subscription) bool
}

var _ Subscription = (*MultiSubscription)(nil)

// NewMultiSubscription returns a ready-to-use MultiSubscription.
func NewMultiSubscription() *MultiSubscription {
	return &MultiSubscription{}
}

// Request accumulates n into the missed-requested slot (saturating) and
// triggers the drain loop.
func (m *MultiSubscription) Request(n int64) {
	if !validateRequest(n) {
		return
	}

	addPendingRequest(&m.missedRequested, n)
	m.drain()
}

// Produced must be called downstream-side after each element this
// subscription's current upstream emits, so a subsequent Set correctly
// re-requests only the remainder (§4.3).
func (m *MultiSubscription) Produced(n int64) {
	if n <= 0 {
		return
	}

	addPendingRequest(&m.missedProduced, n)
	m.drain()
}

// Set installs s as the new upstream subscription, superseding whatever was
// there (or was about to be installed). If cancellation raced in first, s
// is cancelled immediately instead of being installed.
func (m *MultiSubscription) Set(s Subscription) {
	if m.cancelled.Load() {
		s.Cancel()

		return
	}

	if prev := m.missedSubscription.Swap(&s); prev != nil {
		// s superseded an earlier Set that the drain loop never got to
		// install; the drain loop will never install it now, so cancel it
		// here.
		(*prev).Cancel()
	}

	m.drain()
}

// Cancel is idempotent: it tears down both the active and any pending
// missed subscription and blocks all future installs.
func (m *MultiSubscription) Cancel() {
	m.cancelled.Store(true)
	m.drain()
}

func (m *MultiSubscription) drain() {
	if m.wip.Add(1) != 1 {
		return
	}

	missed := int32(1)

	for {
		if m.cancelled.Load() {
			if a := m.actual.Swap(nil); a != nil {
				(*a).Cancel()
			}

			if ms := m.missedSubscription.Swap(nil); ms != nil {
				(*ms).Cancel()
			}

			m.missedRequested.Store(0)
			m.missedProduced.Store(0)
		} else {
			mr := m.missedRequested.Swap(0)
			mp := m.missedProduced.Swap(0)
			ms := m.missedSubscription.Swap(nil)

			next := addCap(m.requested, mr)

			next, overProduced := subCap(next, mp)
			if overProduced {
				OnUnhandledError(context.TODO(), newProtocolError(ErrOverProduced))
			}

			m.requested = next

			if ms != nil {
				if cur := m.actual.Load(); cur != nil {
					cancelPrev := m.ShouldCancelCurrent == nil || m.ShouldCancelCurrent(*cur, *ms)
					if cancelPrev {
						(*cur).Cancel()
					}
				}

				m.actual.Store(ms)

				if m.requested > 0 {
					(*ms).Request(m.requested)
				}
			} else if mr > 0 {
				if cur := m.actual.Load(); cur != nil {
					(*cur).Request(mr)
				}
			}
		}

		missed = m.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}
