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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samber/rs/internal/rstest"
)

// manualPublisher is a Publisher driven entirely by explicit test calls
// (emit/complete/fail), letting Join tests model window overlap without any
// real clock or scheduler — every signal in join.go's drain loop runs
// synchronously on the calling goroutine, so these calls are deterministic.
type manualPublisher[T any] struct {
	sub Subscriber[T]
}

func (m *manualPublisher[T]) Subscribe(s Subscriber[T]) {
	m.sub = s
	s.OnSubscribe(noopSubscription{})
}

func (m *manualPublisher[T]) emit(v T)       { m.sub.OnNext(v) }
func (m *manualPublisher[T]) complete()      { m.sub.OnComplete() }
func (m *manualPublisher[T]) fail(err error) { m.sub.OnError(err) }

func joinSelector(l, r int) (string, error) {
	return fmt.Sprintf("%d-%d", l, r), nil
}

// TestJoin_Overlap reproduces §8 scenario 4: left emits L1 then L2, right
// emits R1 then R2, each window closing before the "far" pair can overlap,
// so (L1, R2) is excluded while the other three pairs are emitted.
func TestJoin_Overlap(t *testing.T) {
	t.Parallel()

	left := &manualPublisher[int]{}
	right := &manualPublisher[int]{}

	var leftWindows, rightWindows []*manualPublisher[any]

	leftEnd := func(int) Publisher[any] {
		w := &manualPublisher[any]{}
		leftWindows = append(leftWindows, w)

		return w
	}

	rightEnd := func(int) Publisher[any] {
		w := &manualPublisher[any]{}
		rightWindows = append(rightWindows, w)

		return w
	}

	rec := rstest.NewRecorder[string]()
	rec.AutoRequest = Unbounded

	Join[int, int, string](left, right, leftEnd, rightEnd, joinSelector).Subscribe(rec)

	left.emit(1)             // L1 opens
	right.emit(10)           // R1 opens, overlaps L1 -> (1,10)
	leftWindows[0].complete() // L1's window closes
	left.emit(2)              // L2 opens, overlaps live R1 -> (2,10)
	right.emit(20)            // R2 opens, overlaps live L2 -> (2,20)
	rightWindows[0].complete()
	leftWindows[1].complete()
	rightWindows[1].complete()
	left.complete()
	right.complete()

	got := map[string]bool{}
	for _, v := range rec.Values() {
		got[v] = true
	}

	want := map[string]bool{"1-10": true, "2-10": true, "2-20": true}

	require.Len(t, got, len(want), "Values() = %v, want %v", rec.Values(), want)

	for k := range want {
		require.True(t, got[k], "missing expected pair %q in %v", k, rec.Values())
	}

	require.False(t, got["1-20"], "(L1, R2) should be excluded: L1's window closed before R2 arrived")
	require.True(t, rec.Terminated(), "expected OnComplete once both primaries and all windows finish")
}

func TestJoin_ErrorCancelsEverything(t *testing.T) {
	t.Parallel()

	left := &manualPublisher[int]{}
	right := &manualPublisher[int]{}

	leftEnd := func(int) Publisher[any] { return &manualPublisher[any]{} }
	rightEnd := func(int) Publisher[any] { return &manualPublisher[any]{} }

	rec := rstest.NewRecorder[string]()
	rec.AutoRequest = Unbounded

	Join[int, int, string](left, right, leftEnd, rightEnd, joinSelector).Subscribe(rec)

	left.emit(1)
	left.fail(errSentinel)

	require.True(t, rec.Terminated())
	require.Error(t, rec.LastError(), "expected the left source's error to terminate the join")
}

func TestJoin_InsufficientRequestTerminates(t *testing.T) {
	t.Parallel()

	left := &manualPublisher[int]{}
	right := &manualPublisher[int]{}

	leftEnd := func(int) Publisher[any] { return &manualPublisher[any]{} }
	rightEnd := func(int) Publisher[any] { return &manualPublisher[any]{} }

	rec := rstest.NewRecorder[string]()
	rec.AutoRequest = 1 // only one unit of downstream demand

	Join[int, int, string](left, right, leftEnd, rightEnd, joinSelector).Subscribe(rec)

	left.emit(1)
	right.emit(10) // consumes the single unit of demand: (1, 10)
	right.emit(20) // no demand left for (1, 20): must error, not stall

	require.True(t, rec.Terminated())
	require.Error(t, rec.LastError(), "expected ErrJoinInsufficientRequest to terminate the join")
}

func TestJoin_NoOverlapProducesNothing(t *testing.T) {
	t.Parallel()

	left := &manualPublisher[int]{}
	right := &manualPublisher[int]{}

	var leftWindows []*manualPublisher[any]

	leftEnd := func(int) Publisher[any] {
		w := &manualPublisher[any]{}
		leftWindows = append(leftWindows, w)

		return w
	}
	rightEnd := func(int) Publisher[any] { return &manualPublisher[any]{} }

	rec := rstest.NewRecorder[string]()
	rec.AutoRequest = Unbounded

	Join[int, int, string](left, right, leftEnd, rightEnd, joinSelector).Subscribe(rec)

	left.emit(1)
	leftWindows[0].complete()
	right.emit(10)

	left.complete()
	right.complete()

	require.Empty(t, rec.Values())
	require.True(t, rec.Terminated())
	require.NoError(t, rec.LastError(), "expected a clean OnComplete when left and right never overlap")
}
