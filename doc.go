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

// Package rs implements the concurrency core of a reactive-streams operator
// library: a demand-driven, non-blocking publish/subscribe protocol (four
// signals — OnSubscribe, OnNext, OnError, OnComplete — gated by cooperative
// backpressure) plus a handful of multi-source coordinators built on top of
// it (ObserveOn, Zip, Join, ReduceFull, TakeLast).
//
// Every operator exposes itself downstream as a Subscription, subscribes
// upstream as a Subscriber, and may additionally implement QueueSubscription
// to let its downstream bypass per-item request accounting (queue fusion).
// Coordinators fan out to several inner subscribers and serialize their
// signals through a single wip-guarded drain loop, so no drain waits on a
// lock for its turn. The only locks taken are short critical sections: the
// SpscQueue ring, Join's paired insert and the scheduler's bookkeeping.
package rs
