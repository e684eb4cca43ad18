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
	"sync/atomic"
	"time"

	"github.com/samber/hot"
	"github.com/samber/rs/internal/xsync"
)

// defaultWorkerTTL is how long an idle worker is kept alive before the
// sweep goroutine tears it down (§4.9's "configurable TTL, default 60s").
const defaultWorkerTTL = 60 * time.Second

// maxIdleWorkers bounds the idle-worker cache. §4.9 specifies "unbounded
// capacity of idle workers"; hot.HotCache requires a finite capacity, so
// this is a deliberately generous practical ceiling rather than a literal
// unbounded structure.
const maxIdleWorkers = 4096

// Scheduler yields Workers and owns their TTL-cached idle pool.
type Scheduler interface {
	Worker() Worker
	Shutdown()
}

// Worker accepts tasks and returns a Disposable handle for each.
type Worker interface {
	Schedule(task func()) Disposable
	Shutdown()
}

// Disposable is a handle to a scheduled task or a live worker lease.
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

// rejectedDisposable is the process-lifetime singleton returned once a
// Scheduler or Worker has been shut down (§4.9, §7.4).
type rejectedDisposable struct{}

func (rejectedDisposable) Dispose()         {}
func (rejectedDisposable) IsDisposed() bool { return true }

// Rejected is the sentinel Disposable returned by Worker.Schedule after
// shutdown; every submission against it fails observably instead of
// panicking or blocking.
var Rejected Disposable = rejectedDisposable{}

// taskDisposable tracks one scheduled task's PENDING -> RUNNING ->
// (FINISHED | CANCELLED) lifecycle (§4.9) via CAS on a shared state cell,
// so cancellation racing with the task actually starting is resolved
// deterministically.
type taskDisposable struct {
	state atomic.Int32 // 0 pending, 1 running, 2 finished, 3 cancelled
}

const (
	taskPending = iota
	taskRunning
	taskFinished
	taskCancelled
)

func (t *taskDisposable) Dispose() {
	t.state.CompareAndSwap(taskPending, taskCancelled)
}

func (t *taskDisposable) IsDisposed() bool {
	s := t.state.Load()

	return s == taskCancelled || s == taskFinished
}

func (t *taskDisposable) tryRun() bool {
	return t.state.CompareAndSwap(taskPending, taskRunning)
}

func (t *taskDisposable) finish() {
	t.state.CompareAndSwap(taskRunning, taskFinished)
}

// pooledWorker runs tasks on a single dedicated goroutine, draining a task
// channel in order. Its in-flight tasks are tracked so Shutdown can cancel
// everything still pending.
type pooledWorker struct {
	id     uint64
	tasks  chan func()
	mu     xsync.Mutex
	live   map[*taskDisposable]struct{}
	done   chan struct{}
	closed atomic.Bool
}

func newPooledWorker(id uint64) *pooledWorker {
	w := &pooledWorker{
		id:    id,
		tasks: make(chan func(), 64),
		mu:    xsync.NewMutexWithLock(),
		live:  make(map[*taskDisposable]struct{}),
		done:  make(chan struct{}),
	}

	go w.loop()

	return w
}

func (w *pooledWorker) loop() {
	for {
		select {
		case fn, ok := <-w.tasks:
			if !ok {
				return
			}

			fn()
		case <-w.done:
			return
		}
	}
}

// Schedule implements Worker.
func (w *pooledWorker) Schedule(task func()) Disposable {
	if w.closed.Load() {
		return Rejected
	}

	d := &taskDisposable{}

	w.mu.Lock()
	w.live[d] = struct{}{}
	w.mu.Unlock()

	wrapped := func() {
		defer func() {
			w.mu.Lock()
			delete(w.live, d)
			w.mu.Unlock()
		}()

		if !d.tryRun() {
			return
		}

		recoverUnhandledError(task)
		d.finish()
	}

	select {
	case w.tasks <- wrapped:
		return d
	case <-w.done:
		return Rejected
	}
}

// Shutdown cancels every pending task and stops the worker's goroutine.
func (w *pooledWorker) Shutdown() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}

	w.mu.Lock()
	for d := range w.live {
		d.Dispose()
	}
	w.mu.Unlock()

	close(w.done)
}

// GoroutineScheduler is the default, concrete Scheduler: every Worker is a
// single goroutine draining a task channel; idle workers are parked in a
// samber/hot TTL cache, picked back up by a later Worker() call when one is
// available, and physically torn down by a background sweep once they
// expire unclaimed (§4.9).
type GoroutineScheduler struct {
	nextID    atomic.Uint64
	idle      *hot.HotCache[uint64, *pooledWorker]
	ttl       time.Duration
	trackedM  xsync.Mutex // every access below mutates tracked/idleSince; no read-only path exists to justify an RWMutex
	tracked   map[uint64]*pooledWorker
	idleSince map[uint64]time.Time // thread-confined by trackedM
	shutdown  atomic.Bool
	sweepDone chan struct{}
}

var _ Scheduler = (*GoroutineScheduler)(nil)

// NewGoroutineScheduler returns a Scheduler whose idle workers expire after
// ttl (0 means defaultWorkerTTL).
func NewGoroutineScheduler(ttl time.Duration) *GoroutineScheduler {
	if ttl <= 0 {
		ttl = defaultWorkerTTL
	}

	s := &GoroutineScheduler{
		idle:      hot.NewHotCache[uint64, *pooledWorker](hot.LRU, maxIdleWorkers).WithTTL(ttl).Build(),
		ttl:       ttl,
		trackedM:  xsync.NewMutexWithLock(),
		tracked:   make(map[uint64]*pooledWorker),
		idleSince: make(map[uint64]time.Time),
		sweepDone: make(chan struct{}),
	}

	go s.sweep(ttl / 4)

	return s
}

func (s *GoroutineScheduler) sweep(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.sweepDone:
			return
		}
	}
}

// evictExpired compares each idle worker's own recorded idleSince timestamp
// against ttl directly, rather than treating the hot.HotCache's Get as the
// liveness oracle: samber/hot is an LRU+TTL cache, and an LRU cache's Get
// commonly refreshes an entry's recency (and, depending on the
// implementation, its TTL) on every read — if it did here, the sweep's own
// poll would keep resurrecting the entry it is trying to check, and idle
// workers would never actually expire. Tracking the idle-since moment
// ourselves sidesteps that ambiguity entirely; the scheduler owns both the
// TTL policy and the teardown.
func (s *GoroutineScheduler) evictExpired() {
	now := time.Now()

	s.trackedM.Lock()

	ids := make([]uint64, 0, len(s.idleSince))

	for id, since := range s.idleSince {
		if now.Sub(since) >= s.ttl {
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		delete(s.idleSince, id)
	}

	s.trackedM.Unlock()

	for _, id := range ids {
		s.idle.Delete(id)

		s.trackedM.Lock()
		w, tracked := s.tracked[id]
		delete(s.tracked, id)
		s.trackedM.Unlock()

		if tracked {
			w.Shutdown()
		}
	}
}

// Worker first tries to pick a live entry out of the idle pool before
// minting a fresh pooledWorker, so a Shutdown/Worker cycle actually reuses
// the underlying goroutine instead of always paying for a new one (§4.9's
// "TTL-cached pool of idle workers"). It starts out in use, not idle — it
// only becomes eligible for the TTL sweep again once the caller's handle
// Shutdown is invoked (markIdle).
func (s *GoroutineScheduler) Worker() Worker {
	if s.shutdown.Load() {
		return rejectedWorker{}
	}

	if id, w, ok := s.takeIdle(); ok {
		return &returningWorker{id: id, inner: w, scheduler: s}
	}

	id := s.nextID.Add(1)
	w := newPooledWorker(id)

	s.trackedM.Lock()
	s.tracked[id] = w
	s.trackedM.Unlock()

	return &returningWorker{id: id, inner: w, scheduler: s}
}

// takeIdle pops one worker out of the idle pool, retrying against other
// candidate ids if the TTL sweep already tore one down between the
// candidate being picked and the hot.HotCache lookup. Each candidate id is
// removed from idleSince before the cache is consulted, so a concurrent
// Worker() call never double-claims the same entry.
func (s *GoroutineScheduler) takeIdle() (uint64, *pooledWorker, bool) {
	for {
		id, ok := s.nextIdleCandidate()
		if !ok {
			return 0, nil, false
		}

		if w, found, err := s.idle.Get(id); found && err == nil {
			s.idle.Delete(id)

			return id, w, true
		}
		// id expired out of the cache (or was evicted by the sweep) between
		// being picked and looked up; idleSince has already been cleared for
		// it above, so just try the next candidate.
	}
}

func (s *GoroutineScheduler) nextIdleCandidate() (uint64, bool) {
	s.trackedM.Lock()
	defer s.trackedM.Unlock()

	for id := range s.idleSince {
		delete(s.idleSince, id)

		return id, true
	}

	return 0, false
}

// markIdle parks w in the idle cache and stamps the moment it went idle;
// evictExpired reads that stamp back out directly instead of trusting the
// cache's own Get to report whether the entry is still live.
func (s *GoroutineScheduler) markIdle(id uint64, w *pooledWorker) {
	s.idle.Set(id, w)

	s.trackedM.Lock()
	s.idleSince[id] = time.Now()
	s.trackedM.Unlock()
}

// returningWorker wraps a pooledWorker so that calling Shutdown on the
// handle the caller received parks the worker back into the idle cache
// instead of necessarily destroying it — mirroring §4.9's "Worker.Shutdown
// releases the resource back to the TTL-cached pool" rather than always
// killing the underlying goroutine outright.
type returningWorker struct {
	id        uint64
	inner     *pooledWorker
	scheduler *GoroutineScheduler
}

func (r *returningWorker) Schedule(task func()) Disposable {
	return r.inner.Schedule(task)
}

func (r *returningWorker) Shutdown() {
	r.scheduler.markIdle(r.id, r.inner)
}

type rejectedWorker struct{}

func (rejectedWorker) Schedule(task func()) Disposable { return Rejected }
func (rejectedWorker) Shutdown()                       {}

// Shutdown transitions the scheduler to its terminal state: the sweep
// goroutine stops, every tracked worker (idle or live) is shut down, and
// every later Worker() call returns a rejected worker whose Schedule always
// returns Rejected.
func (s *GoroutineScheduler) Shutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}

	close(s.sweepDone)

	s.trackedM.Lock()
	workers := make([]*pooledWorker, 0, len(s.tracked))
	for _, w := range s.tracked {
		workers = append(workers, w)
	}

	s.tracked = make(map[uint64]*pooledWorker)
	s.trackedM.Unlock()

	var wg sync.WaitGroup

	for _, w := range workers {
		wg.Add(1)

		go func(w *pooledWorker) {
			defer wg.Done()
			w.Shutdown()
		}(w)
	}

	wg.Wait()
}
