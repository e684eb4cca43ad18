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

// Package rstest provides a recording Subscriber used across coordinator
// tests to assert signal order, terminal-once, and demand bounds without
// every test hand-rolling its own bookkeeping. It plays the role the
// teacher's removed "testing" package played — itself described there as
// inspired by Flux's StepVerifier — adapted to a pull-style recorder rather
// than a fluent step builder.
package rstest

import (
	"sync"

	"github.com/samber/rs"
)

// Event is a single observed signal, recorded in arrival order.
type Event struct {
	Kind  string // "OnSubscribe", "OnNext", "OnError", "OnComplete"
	Value any
	Err   error
}

// Recorder implements rs.Subscriber[T] and records every signal it
// observes. rstest imports the root package (not the other way around) so
// there is no cycle: production code never imports rstest, only _test.go
// files do.
//
// Safe for the producer to call concurrently; Events/Terminated take a
// snapshot.
type Recorder[T any] struct {
	mu     sync.Mutex
	events []Event
	sub    rs.Subscription
	done   bool

	// AutoRequest, when non-zero, is requested automatically from
	// OnSubscribe — the common case of "just let everything through".
	AutoRequest int64
}

// NewRecorder returns a ready-to-subscribe Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// OnSubscribe records the subscription and, if AutoRequest is set, requests
// it immediately.
func (r *Recorder[T]) OnSubscribe(s rs.Subscription) {
	r.mu.Lock()
	r.sub = s
	r.events = append(r.events, Event{Kind: "OnSubscribe"})
	auto := r.AutoRequest
	r.mu.Unlock()

	if auto > 0 {
		s.Request(auto)
	}
}

// OnNext records the value.
func (r *Recorder[T]) OnNext(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{Kind: "OnNext", Value: v})
}

// OnError records the error and marks the recorder terminated.
func (r *Recorder[T]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{Kind: "OnError", Err: err})
	r.done = true
}

// OnComplete marks the recorder terminated.
func (r *Recorder[T]) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{Kind: "OnComplete"})
	r.done = true
}

// Request forwards to the recorded subscription; it is a no-op before
// OnSubscribe has been observed.
func (r *Recorder[T]) Request(n int64) {
	r.mu.Lock()
	sub := r.sub
	r.mu.Unlock()

	if sub != nil {
		sub.Request(n)
	}
}

// Cancel forwards to the recorded subscription.
func (r *Recorder[T]) Cancel() {
	r.mu.Lock()
	sub := r.sub
	r.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// Events returns a snapshot of every signal observed so far, in order.
func (r *Recorder[T]) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// Values returns every OnNext value observed so far, in order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, len(r.events))

	for _, e := range r.events {
		if e.Kind == "OnNext" {
			out = append(out, e.Value.(T))
		}
	}

	return out
}

// Terminated reports whether OnError or OnComplete has been observed.
func (r *Recorder[T]) Terminated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.done
}

// SubscribeCount returns how many OnSubscribe signals were observed —
// tests assert this is exactly 1.
func (r *Recorder[T]) SubscribeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, e := range r.events {
		if e.Kind == "OnSubscribe" {
			n++
		}
	}

	return n
}

// LastError returns the error carried by the most recent OnError event, or
// nil if none was observed.
func (r *Recorder[T]) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == "OnError" {
			return r.events[i].Err
		}
	}

	return nil
}

var _ rs.Subscriber[int] = (*Recorder[int])(nil)
