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

// Subscriber receives the four Reactive Streams signals. OnSubscribe is
// called exactly once, before any other signal; OnNext may be called zero
// or more times; OnError and OnComplete are mutually exclusive and each
// called at most once. No signal is observed after a terminal one.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(v T)
	OnError(err error)
	OnComplete()
}

// Subscription is the upstream-facing half of a subscription: the only two
// operations a downstream may perform on it.
type Subscription interface {
	// Request adds n to outstanding demand. n must be >= 1; a non-positive
	// n is a protocol violation (ErrRequestNonPositive), reported via the
	// downstream's OnError by operators that hold one. The arbiters
	// DeferredSubscription and MultiSubscription drop it without a signal.
	Request(n int64)

	// Cancel is idempotent and non-blocking. It never panics and calling it
	// more than once has no additional effect.
	Cancel()
}

// FusionMode identifies which side of the queue-fusion negotiation (§4.4) is
// in effect for a given subscription.
type FusionMode int

const (
	// FusionNone means no fusion: the subscriber drives by Request/OnNext.
	FusionNone FusionMode = iota
	// FusionSync means upstream is finite and already available; downstream
	// drains entirely through Poll, and Poll returning false means the
	// sequence is complete.
	FusionSync
	// FusionAsync means upstream signals "item ready" via OnNext(zero
	// value) but delivers the real payload through Poll; completion is a
	// separate done flag observed by the drain loop.
	FusionAsync
	// FusionAny lets the callee pick FusionSync or FusionAsync.
	FusionAny
)

func (m FusionMode) String() string {
	switch m {
	case FusionNone:
		return "NONE"
	case FusionSync:
		return "SYNC"
	case FusionAsync:
		return "ASYNC"
	case FusionAny:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// QueueSubscription is a Subscription that additionally exposes itself as a
// pull-queue, letting an operator that negotiated fusion skip per-item
// Request/OnNext ping-pong. The mode returned by RequestFusion is fixed for
// the lifetime of the subscription once negotiated (§4.4).
type QueueSubscription[T any] interface {
	Subscription

	// Poll removes and returns the next value. ok is false to mean either
	// "empty for now" (ASYNC) or "sequence complete" (SYNC) — callers must
	// consult the fusion mode (or a done flag, in ASYNC) to tell those
	// apart.
	Poll() (v T, ok bool)

	// IsEmpty reports whether Poll would currently return ok=false.
	IsEmpty() bool

	// Clear discards any buffered values without emitting them.
	Clear()

	// RequestFusion negotiates a fusion mode. Called once, from
	// OnSubscribe, with one of FusionSync/FusionAsync/FusionAny; returns
	// the mode actually granted, or FusionNone to reject fusion entirely.
	RequestFusion(mode FusionMode) FusionMode
}
