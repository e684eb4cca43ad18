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

import "testing"

func TestMultiSubscription_SetReplaysRequested(t *testing.T) {
	t.Parallel()

	m := NewMultiSubscription()
	m.Request(10)

	fake := &fakeSubscription{}
	m.Set(fake)

	if got := fake.totalRequested(); got != 10 {
		t.Fatalf("replayed request = %d, want 10", got)
	}
}

func TestMultiSubscription_SwitchCancelsPrevious(t *testing.T) {
	t.Parallel()

	m := NewMultiSubscription()

	first := &fakeSubscription{}
	m.Set(first)
	m.Request(5)

	second := &fakeSubscription{}
	m.Set(second)

	if !first.isCancelled() {
		t.Fatal("switching subscription should cancel the previous one")
	}

	if got := second.totalRequested(); got != 5 {
		t.Fatalf("new subscription replayed request = %d, want 5", got)
	}
}

func TestMultiSubscription_ShouldCancelCurrentVeto(t *testing.T) {
	t.Parallel()

	m := NewMultiSubscription()
	m.ShouldCancelCurrent = func(current, next Subscription) bool { return false }

	first := &fakeSubscription{}
	m.Set(first)

	second := &fakeSubscription{}
	m.Set(second)

	if first.isCancelled() {
		t.Fatal("veto should prevent cancelling the previous subscription")
	}
}

func TestMultiSubscription_ProducedReducesRemainder(t *testing.T) {
	t.Parallel()

	m := NewMultiSubscription()

	first := &fakeSubscription{}
	m.Set(first)
	m.Request(10)
	m.Produced(4)

	second := &fakeSubscription{}
	m.Set(second)

	if got := second.totalRequested(); got != 6 {
		t.Fatalf("remainder requested = %d, want 6", got)
	}
}

func TestMultiSubscription_Cancel(t *testing.T) {
	t.Parallel()

	m := NewMultiSubscription()

	fake := &fakeSubscription{}
	m.Set(fake)
	m.Cancel()

	if !fake.isCancelled() {
		t.Fatal("Cancel should cancel the active subscription")
	}

	other := &fakeSubscription{}
	m.Set(other)

	if !other.isCancelled() {
		t.Fatal("Set after Cancel should cancel the new subscription instead of installing it")
	}
}

func TestMultiSubscription_CancelIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMultiSubscription()

	fake := &fakeSubscription{}
	m.Set(fake)
	m.Cancel()
	m.Cancel()

	if got := len(fake.requested); got != 0 {
		t.Fatalf("no request should have been issued, got %d", got)
	}
}
