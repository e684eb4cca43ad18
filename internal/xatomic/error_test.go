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

package xatomic

import (
	"errors"
	"sync"
	"testing"
)

func TestErrorSlot_ZeroValue(t *testing.T) {
	t.Parallel()

	var s ErrorSlot

	if s.Get() != nil {
		t.Error("zero value ErrorSlot should have no error")
	}
}

func TestErrorSlot_AddError(t *testing.T) {
	t.Parallel()

	var s ErrorSlot

	s.AddError(nil)

	if s.Get() != nil {
		t.Error("AddError(nil) should not set an error")
	}

	err1 := errors.New("first")
	s.AddError(err1)

	if !errors.Is(s.Get(), err1) {
		t.Errorf("Get() = %v, should wrap %v", s.Get(), err1)
	}

	err2 := errors.New("second")
	s.AddError(err2)

	got := s.Get()
	if !errors.Is(got, err1) || !errors.Is(got, err2) {
		t.Errorf("Get() = %v, should join both errors", got)
	}
}

func TestErrorSlot_Terminate(t *testing.T) {
	t.Parallel()

	var s ErrorSlot

	err := errors.New("boom")
	s.AddError(err)

	got := s.Terminate()
	if !errors.Is(got, err) {
		t.Errorf("Terminate() = %v, want wrapping %v", got, err)
	}

	if s.Terminate() != nil {
		t.Error("second Terminate() should return nil")
	}

	s.AddError(errors.New("too late"))

	if s.Get() != nil {
		t.Error("AddError after Terminate should be dropped")
	}
}

func TestErrorSlot_TerminateEmpty(t *testing.T) {
	t.Parallel()

	var s ErrorSlot

	if got := s.Terminate(); got != nil {
		t.Errorf("Terminate() on empty slot = %v, want nil", got)
	}
}

func TestErrorSlot_ConcurrentAddError(t *testing.T) {
	t.Parallel()

	var s ErrorSlot

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			s.AddError(errors.New("err"))
		}(i)
	}

	wg.Wait()

	if s.Get() == nil {
		t.Error("Get() after concurrent AddError should be non-nil")
	}
}
