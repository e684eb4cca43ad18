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

	"github.com/stretchr/testify/require"

	"github.com/samber/rs/internal/queue"
	"github.com/samber/rs/internal/rstest"
)

func TestTakeLast_KeepsOnlyTrailingWindow(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = Unbounded

	TakeLast[int](2, sliceSource[int]{values: []int{1, 2, 3, 4, 5}}).Subscribe(rec)

	require.Equal(t, []int{4, 5}, rec.Values())
	require.True(t, rec.Terminated(), "expected OnComplete once the ring drains")
}

func TestTakeLast_NonPowerOfTwoWindowIsExact(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = Unbounded

	TakeLast[int](3, sliceSource[int]{values: []int{1, 2, 3, 4, 5}}).Subscribe(rec)

	require.Equal(t, []int{3, 4, 5}, rec.Values(), "ring capacity rounds up to a power of two, the logical window must not")
	require.True(t, rec.Terminated())
}

func TestTakeLast_FewerItemsThanWindow(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = Unbounded

	TakeLast[int](5, sliceSource[int]{values: []int{1, 2}}).Subscribe(rec)

	require.Equal(t, []int{1, 2}, rec.Values())
	require.True(t, rec.Terminated())
}

func TestTakeLast_HonorsDownstreamRequest(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()

	TakeLast[int](3, sliceSource[int]{values: []int{1, 2, 3}}).Subscribe(rec)

	require.Empty(t, rec.Values(), "want none before any Request")

	rec.Request(2)

	require.Equal(t, []int{1, 2}, rec.Values())
	require.False(t, rec.Terminated(), "should not terminate before the ring fully drains")

	rec.Request(1)

	require.Equal(t, []int{1, 2, 3}, rec.Values())
	require.True(t, rec.Terminated(), "expected OnComplete once the ring is fully drained")
}

func TestTakeLast_CancelBeforeCompleteDiscardsRing(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = Unbounded

	up := &fakeSubscription{}
	c := &takeLastCoordinator[int]{downstream: rec, ring: queue.NewSpscQueue[int](2), n: 2}
	rec.OnSubscribe(c)
	c.OnSubscribe(up)

	c.OnNext(1)
	c.OnNext(2)
	c.Cancel()
	c.OnComplete()

	require.Empty(t, rec.Values())
	require.False(t, rec.Terminated(), "cancellation before completion must discard the ring silently")
	require.True(t, up.isCancelled(), "Cancel should cancel upstream")
}

func TestTakeLast_ErrorPropagatesAndDiscardsRing(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = Unbounded

	TakeLast[int](2, erroringSource{err: errSentinel}).Subscribe(rec)

	require.True(t, rec.Terminated())
	require.Error(t, rec.LastError(), "expected the upstream error to terminate TakeLast")
	require.Empty(t, rec.Values(), "an upstream error should discard whatever the ring held")
}
