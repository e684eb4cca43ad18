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
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// recoverValueToError converts an arbitrary recover() value into an error.
func recoverValueToError(e any) error {
	if err, ok := e.(error); ok {
		return err
	}

	return fmt.Errorf("unexpected error: %v", e)
}

// recoverUnhandledError runs cb, converting a panic into a call to
// OnUnhandledError instead of letting it escape. Used by pooledWorker to run
// scheduled tasks; user callbacks (zipper, reducer, resultSelector) go
// through runProtected instead.
func recoverUnhandledError(cb func()) {
	lo.TryCatchWithErrorValue(
		func() error {
			cb()
			return nil
		},
		func(e any) {
			OnUnhandledError(context.TODO(), recoverValueToError(e))
		},
	)
}

// runProtected invokes fn and reports a panic as an error instead of
// propagating it, for boundaries where the caller needs the error value
// (mappers, reducers, selectors that must cancel upstream on failure).
func runProtected(fn func() error) (err error) {
	lo.TryCatchWithErrorValue(
		func() error {
			err = fn()
			return nil
		},
		func(e any) {
			err = recoverValueToError(e)
		},
	)

	return err
}

var (
	//nolint:revive
	ErrRequestNonPositive      = errors.New("rs.Subscription: Request(n) called with n <= 0")
	ErrQueueFull               = errors.New("rs.Queue: queue is full")
	ErrOverProduced            = errors.New("rs.Demand: more items produced than requested")
	ErrJoinInsufficientRequest = errors.New("rs.Join: insufficient downstream request")
	ErrSchedulerShutdown       = errors.New("rs.Scheduler: scheduler has been shut down")
)

// newProtocolError wraps a Reactive Streams protocol violation (§7.1):
// Request(n<=0), over-production, or any other contract breach that is
// recoverable by dropping the bad call and carrying on.
func newProtocolError(err error) error {
	return &protocolError{err: err}
}

type protocolError struct {
	err error
}

func (e *protocolError) Error() string {
	return "rs.Protocol: " + e.err.Error()
}

func (e *protocolError) Unwrap() error {
	return e.err
}

// newCallbackError wraps a panic or error returned by a user-supplied
// callback (zipper, reducer, resultSelector, window factory) — §7.2.
func newCallbackError(err error) error {
	return &callbackError{err: err}
}

type callbackError struct {
	err error
}

func (e *callbackError) Error() string {
	return "rs.Callback: " + e.err.Error()
}

func (e *callbackError) Unwrap() error {
	return e.err
}

// newQueueError wraps a queue-overflow condition (§7.3).
func newQueueError(err error) error {
	return &queueError{err: err}
}

type queueError struct {
	err error
}

func (e *queueError) Error() string {
	return "rs.Queue: " + e.err.Error()
}

func (e *queueError) Unwrap() error {
	return e.err
}

// newSchedulerError wraps a scheduler-rejection condition (§7.4).
func newSchedulerError(err error) error {
	return &schedulerError{err: err}
}

type schedulerError struct {
	err error
}

func (e *schedulerError) Error() string {
	return "rs.Scheduler: " + e.err.Error()
}

func (e *schedulerError) Unwrap() error {
	return e.err
}
