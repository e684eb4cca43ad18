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

// Publisher is the source side of the protocol: calling Subscribe attaches
// s and, per §3's ordering rule, must result in exactly one OnSubscribe
// call before any OnNext/OnError/OnComplete. This is the teacher's
// Observable narrowed to the Reactive Streams signal shape already defined
// by Subscriber/Subscription, rather than the teacher's own
// Subscribe-returns-a-Subscription method shape.
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc[T any] func(s Subscriber[T])

func (f PublisherFunc[T]) Subscribe(s Subscriber[T]) { f(s) }

// Supplier is a Publisher known at compile time to produce exactly one
// value with no backpressure concerns of its own (§4.6's "compile-time
// Supplier" fast path for Zip). It never blocks and never errors.
type Supplier[T any] func() T

// Subscribe implements Publisher: it synchronously delivers the supplied
// value and completes.
func (f Supplier[T]) Subscribe(s Subscriber[T]) {
	s.OnSubscribe(noopSubscription{})
	s.OnNext(f())
	s.OnComplete()
}

// FromValue returns a Supplier that always yields v, for building Zip's
// all-scalar fast path in tests and call sites.
func FromValue[T any](v T) Supplier[T] {
	return func() T { return v }
}

// asSupplier reports whether p is statically a Supplier, letting Zip detect
// its all-scalar fast path without subscribing.
func asSupplier[T any](p Publisher[T]) (Supplier[T], bool) {
	s, ok := p.(Supplier[T])

	return s, ok
}

// noopSubscription is handed to a Supplier's one-shot subscriber; Supplier
// ignores backpressure entirely so both methods are no-ops.
type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()        {}

var _ Subscription = noopSubscription{}
