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
)

// cancelledSubscription is a process-lifetime singleton sentinel (§9,
// "Global state"): once installed in a DeferredSubscription or
// MultiSubscription's slot, it marks that slot as permanently cancelled.
type cancelledSubscription struct{}

func (cancelledSubscription) Request(int64) {}
func (cancelledSubscription) Cancel()        {}

var subscriptionCancelled Subscription = cancelledSubscription{}

// DeferredSubscription accepts a single upstream Subscription that may
// arrive after downstream has already issued Request calls. Pending
// requests are accumulated (saturating) and replayed exactly once when Set
// installs the real subscription.
type DeferredSubscription struct {
	sub       xatomic.Pointer[Subscription]
	requested atomic.Int64
}

var _ Subscription = (*DeferredSubscription)(nil)

// Request accumulates n if no subscription has been set yet, else forwards
// it immediately upstream.
func (d *DeferredSubscription) Request(n int64) {
	if !validateRequest(n) {
		return
	}

	if a := d.sub.Load(); a != nil {
		(*a).Request(n)

		return
	}

	addPendingRequest(&d.requested, n)

	// The subscription may have been installed concurrently between the
	// load above and here; replay if so, exactly as Set itself would.
	if a := d.sub.Load(); a != nil {
		if r := d.requested.Swap(0); r > 0 {
			(*a).Request(r)
		}
	}
}

// Set installs s as the upstream subscription. It returns false if a
// subscription (or the cancelled sentinel) was already present, in which
// case s is cancelled immediately and the caller must not use it further.
func (d *DeferredSubscription) Set(s Subscription) bool {
	if !d.sub.CompareAndSwap(nil, &s) {
		s.Cancel()

		return false
	}

	if r := d.requested.Swap(0); r > 0 {
		s.Request(r)
	}

	return true
}

// Cancel is idempotent: it cancels whatever subscription is currently
// installed (if any) and permanently blocks any future Set.
func (d *DeferredSubscription) Cancel() {
	old := d.sub.Swap(&subscriptionCancelled)
	if old != nil && *old != subscriptionCancelled {
		(*old).Cancel()
	}
}

// addPendingRequest adds n to *requested, saturating at Unbounded.
func addPendingRequest(requested *atomic.Int64, n int64) {
	for {
		cur := requested.Load()
		next := addCap(cur, n)

		if requested.CompareAndSwap(cur, next) {
			return
		}
	}
}
