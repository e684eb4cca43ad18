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

// Unbounded is the absorbing "request everything" demand value.
const Unbounded = xatomic.MaxValue

// addCap adds a and b, saturating at Unbounded.
func addCap(a, b int64) int64 {
	return xatomic.AddCap(a, b)
}

// subCap subtracts b from a, clamping at 0. overProduced reports a protocol
// violation (more produced than requested); per §7.1 it is recoverable —
// log-and-drop, proceed as if demand were unbounded locally.
func subCap(a, b int64) (result int64, overProduced bool) {
	return xatomic.SubCap(a, b)
}

// validateRequest reports whether n is a legal Request argument (n >= 1).
// Subscriptions that hold a downstream Subscriber (DeferredScalar,
// ObserveOn, Zip, Join, TakeLast) surface ErrRequestNonPositive through its
// OnError; DeferredSubscription and MultiSubscription hold no Subscriber and
// drop the call without any signal.
func validateRequest(n int64) bool {
	return n >= 1
}

// subtractProduced subtracts n from *counter (saturating at 0) via a CAS
// loop, reporting an over-produced protocol violation to OnUnhandledError
// instead of letting the counter go negative. Used by coordinators (Zip)
// whose requested counter is shared with a concurrently-arriving Request
// call, unlike MultiSubscription's thread-confined variant.
func subtractProduced(counter *atomic.Int64, n int64) {
	for {
		cur := counter.Load()

		next, overProduced := subCap(cur, n)
		if overProduced {
			OnUnhandledError(context.TODO(), newProtocolError(ErrOverProduced))
		}

		if counter.CompareAndSwap(cur, next) {
			return
		}
	}
}
