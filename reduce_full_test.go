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

	"github.com/samber/rs/internal/rstest"
)

func sumReducer(a, b int) (int, error) {
	return a + b, nil
}

func TestReduceFull_PairwiseSum(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = 1

	rails := []Publisher[int]{
		sliceSource[int]{values: []int{1, 2}},
		sliceSource[int]{values: []int{3, 4}},
		sliceSource[int]{values: []int{5}},
	}

	ReduceFull[int](rails, sumReducer).Subscribe(rec)

	require.Equal(t, []int{15}, rec.Values())
	require.True(t, rec.Terminated(), "expected terminal signal")
}

func TestReduceFull_AllEmptyRailsCompleteEmpty(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = 1

	rails := []Publisher[int]{
		sliceSource[int]{values: nil},
		sliceSource[int]{values: nil},
	}

	ReduceFull[int](rails, sumReducer).Subscribe(rec)

	require.Empty(t, rec.Values())
	require.True(t, rec.Terminated())
	require.NoError(t, rec.LastError(), "every rail empty should OnComplete without an error")
}

func TestReduceFull_SingleRail(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = 1

	rails := []Publisher[int]{
		sliceSource[int]{values: []int{1, 2, 3, 4}},
	}

	ReduceFull[int](rails, sumReducer).Subscribe(rec)

	require.Equal(t, []int{10}, rec.Values())
}

func TestReduceFull_OneEmptyRailAmongOthers(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = 1

	rails := []Publisher[int]{
		sliceSource[int]{values: []int{1, 2}},
		sliceSource[int]{values: nil},
		sliceSource[int]{values: []int{10}},
	}

	ReduceFull[int](rails, sumReducer).Subscribe(rec)

	require.Equal(t, []int{13}, rec.Values())
}

func TestReduceFull_ErrorCancelsAllRails(t *testing.T) {
	t.Parallel()

	rec := rstest.NewRecorder[int]()
	rec.AutoRequest = 1

	good := &recordingSliceSource{inner: sliceSource[int]{values: []int{1, 2, 3}}}
	rails := []Publisher[int]{
		good,
		erroringSource{err: errSentinel},
	}

	ReduceFull[int](rails, sumReducer).Subscribe(rec)

	require.True(t, rec.Terminated())
	require.Error(t, rec.LastError(), "expected an error to terminate the reduction")
	require.True(t, good.lastSub.isCancelled(), "the error should cancel the other rail's subscription")
}
