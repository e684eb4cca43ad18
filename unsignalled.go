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
	"fmt"
	"log"
)

// Kind identifies which of the three signals a Notification carries.
type Kind uint8

const (
	KindNext Kind = iota
	KindError
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindNext:
		return "Next"
	case KindError:
		return "Error"
	case KindComplete:
		return "Complete"
	}

	panic("you shall not pass")
}

// Notification captures a single signal that could not be delivered: either
// it raced a terminal signal and lost, or it arrived after the subscription
// was already terminated. It exists only for the unsignalled-exception sink
// (§7, "unsignalled exceptions"); the hot emission path never allocates one.
type Notification[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

func (n Notification[T]) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("Next(%+v)", n.Value)
	case KindError:
		if n.Err == nil {
			return "Error(nil)"
		}

		return fmt.Sprintf("Error(%s)", n.Err.Error())
	case KindComplete:
		return "Complete()"
	}

	panic("you shall not pass")
}

func newNotificationNext[T any](value T) Notification[T] {
	return Notification[T]{Kind: KindNext, Value: value}
}

func newNotificationError[T any](err error) Notification[T] {
	return Notification[T]{Kind: KindError, Err: err}
}

func newNotificationComplete[T any]() Notification[T] {
	return Notification[T]{Kind: KindComplete}
}

var (
	// OnUnhandledError is called when an error reaches a coordinator after
	// its downstream subscriber has already been terminated (or when a
	// scheduler rejection can no longer be reported through OnError). By
	// default it is ignored, matching the teacher library's "ignore unless
	// configured" stance.
	//
	// Example:
	//
	//	rs.OnUnhandledError = func(ctx context.Context, err error) {
	//		slog.Error("unhandled error", "err", err)
	//	}
	//
	// OnUnhandledError is called synchronously from the goroutine that
	// produced the error; a slow callback slows down the whole pipeline.
	OnUnhandledError = IgnoreOnUnhandledError

	// OnDroppedNotification is called when a signal is produced after its
	// destination is already closed (terminal-once guard tripped, or a
	// cancellation raced the signal). Ignored by default.
	OnDroppedNotification = IgnoreOnDroppedNotification
)

// IgnoreOnUnhandledError is the default OnUnhandledError: it does nothing.
func IgnoreOnUnhandledError(ctx context.Context, err error) {}

// IgnoreOnDroppedNotification is the default OnDroppedNotification: it does nothing.
func IgnoreOnDroppedNotification(ctx context.Context, notification fmt.Stringer) {}

// DefaultOnUnhandledError logs the error with the standard library logger.
func DefaultOnUnhandledError(ctx context.Context, err error) {
	if err != nil {
		// bearer:disable go_lang_logger_leak
		log.Printf("rs: unhandled error: %s\n", err.Error())
	}
}

var _ fmt.Stringer = (*Notification[int])(nil)

// DefaultOnDroppedNotification logs the dropped notification with the
// standard library logger.
//
// Since a generic callback cannot be assigned to OnDroppedNotification, it
// takes a fmt.Stringer instead of a Notification[T].
func DefaultOnDroppedNotification(ctx context.Context, notification fmt.Stringer) {
	// bearer:disable go_lang_logger_leak
	log.Printf("rs: dropped notification: %s\n", notification.String())
}
