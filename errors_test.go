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
	"errors"
	"testing"
)

func TestRecoverValueToError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{
			name:     "string error",
			input:    "test error",
			expected: "unexpected error: test error",
		},
		{
			name:     "error type",
			input:    errors.New("test error"),
			expected: "test error",
		},
		{
			name:     "int value",
			input:    42,
			expected: "unexpected error: 42",
		},
		{
			name:     "nil value",
			input:    nil,
			expected: "unexpected error: <nil>",
		},
	}

	for _, tt := range tests {
		ttt := tt
		t.Run(ttt.name, func(t *testing.T) {
			t.Parallel()

			result := recoverValueToError(ttt.input)
			if result.Error() != ttt.expected {
				t.Errorf("recoverValueToError(%v) = %v, want %v", ttt.input, result.Error(), ttt.expected)
			}
		})
	}
}

func TestRecoverUnhandledError(t *testing.T) {
	t.Parallel()

	t.Run("callback panics", func(t *testing.T) {
		t.Parallel()
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("recoverUnhandledError should not panic, got %v", r)
			}
		}()

		recoverUnhandledError(func() {
			panic("test panic")
		})
	})

	t.Run("callback doesn't panic", func(t *testing.T) {
		t.Parallel()
		called := false

		recoverUnhandledError(func() {
			called = true
		})

		if !called {
			t.Error("callback should have been called")
		}
	})
}

func TestRunProtected(t *testing.T) {
	t.Parallel()

	t.Run("panics are converted to errors", func(t *testing.T) {
		t.Parallel()

		err := runProtected(func() error {
			panic("boom")
		})

		if err == nil || err.Error() != "unexpected error: boom" {
			t.Errorf("runProtected panic = %v", err)
		}
	})

	t.Run("returned errors pass through", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("sentinel")
		err := runProtected(func() error {
			return sentinel
		})

		if !errors.Is(err, sentinel) {
			t.Errorf("runProtected error = %v, want %v", err, sentinel)
		}
	})
}

func TestErrorTypes(t *testing.T) {
	t.Parallel()

	t.Run("protocol error", func(t *testing.T) {
		t.Parallel()
		err := newProtocolError(ErrRequestNonPositive)

		if err.Error() != "rs.Protocol: "+ErrRequestNonPositive.Error() {
			t.Errorf("protocol error message = %v", err.Error())
		}

		if !errors.Is(err, ErrRequestNonPositive) {
			t.Errorf("protocol error should unwrap to sentinel")
		}
	})

	t.Run("callback error", func(t *testing.T) {
		t.Parallel()
		originalErr := errors.New("mapper exploded")
		err := newCallbackError(originalErr)

		if err.Error() != "rs.Callback: mapper exploded" {
			t.Errorf("callback error message = %v", err.Error())
		}

		if !errors.Is(err, originalErr) {
			t.Errorf("callback error should unwrap to original")
		}
	})

	t.Run("queue error", func(t *testing.T) {
		t.Parallel()
		err := newQueueError(ErrQueueFull)

		if err.Error() != "rs.Queue: "+ErrQueueFull.Error() {
			t.Errorf("queue error message = %v", err.Error())
		}
	})

	t.Run("scheduler error", func(t *testing.T) {
		t.Parallel()
		err := newSchedulerError(ErrSchedulerShutdown)

		if err.Error() != "rs.Scheduler: "+ErrSchedulerShutdown.Error() {
			t.Errorf("scheduler error message = %v", err.Error())
		}
	})
}
