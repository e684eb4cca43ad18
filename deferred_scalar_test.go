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
	"testing"

	"github.com/samber/rs/internal/rstest"
)

func TestDeferredScalar_RequestThenComplete(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	ds := NewDeferredScalar[int](rec)

	ds.Request(1)
	ds.Complete(42)

	if got := rec.Values(); len(got) != 1 || got[0] != 42 {
		t.Fatalf("Values() = %v, want [42]", got)
	}

	if !rec.Terminated() {
		t.Fatal("expected terminal signal")
	}
}

func TestDeferredScalar_CompleteThenRequest(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	ds := NewDeferredScalar[int](rec)

	ds.Complete(7)
	ds.Request(1)

	if got := rec.Values(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("Values() = %v, want [7]", got)
	}
}

func TestDeferredScalar_CancelBeforeComplete(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	ds := NewDeferredScalar[int](rec)

	ds.Request(1)
	ds.Cancel()
	ds.Complete(99)

	if len(rec.Values()) != 0 {
		t.Fatal("Complete after Cancel must not emit")
	}

	if rec.Terminated() {
		t.Fatal("Cancel must not emit a terminal signal")
	}
}

func TestDeferredScalar_RequestNonPositive(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	ds := NewDeferredScalar[int](rec)

	ds.Request(0)

	if rec.LastError() == nil {
		t.Fatal("Request(0) should report a protocol error")
	}
}

func TestDeferredScalar_Fusion(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	ds := NewDeferredScalar[int](rec)

	if got := ds.RequestFusion(FusionAsync); got != FusionAsync {
		t.Fatalf("RequestFusion(ASYNC) = %v, want ASYNC", got)
	}

	if !ds.IsEmpty() {
		t.Fatal("should be empty before Complete")
	}

	ds.Complete(5)

	if ds.IsEmpty() {
		t.Fatal("should not be empty after Complete")
	}

	v, ok := ds.Poll()
	if !ok || v != 5 {
		t.Fatalf("Poll() = (%d, %v), want (5, true)", v, ok)
	}

	if _, ok := ds.Poll(); ok {
		t.Fatal("second Poll() should return ok=false")
	}
}

func TestDeferredScalar_SyncFusionRejected(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	ds := NewDeferredScalar[int](rec)

	if got := ds.RequestFusion(FusionSync); got != FusionNone {
		t.Fatalf("RequestFusion(SYNC) = %v, want NONE", got)
	}
}
