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
	"sync"
	"testing"
)

// fakeSubscription records Request/Cancel calls for arbiter tests.
type fakeSubscription struct {
	mu        sync.Mutex
	requested []int64
	cancelled bool
}

func (f *fakeSubscription) Request(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requested = append(f.requested, n)
}

func (f *fakeSubscription) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancelled = true
}

func (f *fakeSubscription) totalRequested() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	var total int64
	for _, n := range f.requested {
		total = addCap(total, n)
	}

	return total
}

func (f *fakeSubscription) isCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cancelled
}

func TestDeferredSubscription_RequestBeforeSet(t *testing.T) {
	t.Parallel()

	var d DeferredSubscription

	d.Request(3)
	d.Request(4)

	fake := &fakeSubscription{}
	d.Set(fake)

	if got := fake.totalRequested(); got != 7 {
		t.Fatalf("replayed request = %d, want 7", got)
	}
}

func TestDeferredSubscription_SetThenRequest(t *testing.T) {
	t.Parallel()

	var d DeferredSubscription

	fake := &fakeSubscription{}
	d.Set(fake)
	d.Request(5)

	if got := fake.totalRequested(); got != 5 {
		t.Fatalf("forwarded request = %d, want 5", got)
	}
}

func TestDeferredSubscription_SecondSetIsCancelled(t *testing.T) {
	t.Parallel()

	var d DeferredSubscription

	first := &fakeSubscription{}
	d.Set(first)

	second := &fakeSubscription{}
	if d.Set(second) {
		t.Fatal("second Set should report failure")
	}

	if !second.isCancelled() {
		t.Fatal("second subscription should be cancelled immediately")
	}

	if first.isCancelled() {
		t.Fatal("first subscription should remain active")
	}
}

func TestDeferredSubscription_CancelBeforeSet(t *testing.T) {
	t.Parallel()

	var d DeferredSubscription

	d.Cancel()

	fake := &fakeSubscription{}
	d.Set(fake)

	if !fake.isCancelled() {
		t.Fatal("Set after Cancel should cancel the new subscription")
	}
}

func TestDeferredSubscription_CancelAfterSet(t *testing.T) {
	t.Parallel()

	var d DeferredSubscription

	fake := &fakeSubscription{}
	d.Set(fake)
	d.Cancel()

	if !fake.isCancelled() {
		t.Fatal("Cancel should cancel the installed subscription")
	}
}

func TestDeferredSubscription_NonPositiveRequestIgnored(t *testing.T) {
	t.Parallel()

	var d DeferredSubscription

	fake := &fakeSubscription{}
	d.Set(fake)
	d.Request(0)
	d.Request(-1)

	if len(fake.requested) != 0 {
		t.Fatalf("non-positive requests should be dropped, got %v", fake.requested)
	}
}
