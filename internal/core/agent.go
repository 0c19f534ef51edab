// Copyright (c) 2024 Tigera, Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package core owns the single event-loop thread that mirrors kernel state
// into the cache and serializes every mutation onto that thread (spec.md
// §5). External callers never touch the cache or transport directly; they
// enqueue a closure through Agent's public methods and get back a Future.
package core

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/dispatch"
	"github.com/commonnet/openr/internal/logutils"
	"github.com/commonnet/openr/internal/metrics"
	"github.com/commonnet/openr/internal/mutator"
	"github.com/commonnet/openr/internal/reconcile"
	"github.com/commonnet/openr/internal/transport"
)

// task is a unit of work enqueued onto the core thread. Every public Agent
// method builds one of these and hands it to submit.
type task struct {
	run func()
}

// Agent is the core event loop: it owns the cache, the dispatcher, the
// mutator/reconciler built on top of them, and the transport. There is
// exactly one loop goroutine per Agent, started by Run.
//
// Internal collaborators (the dispatcher reacting to a kernel event, the
// reconciler driving the mutator during a sync) call the cache and mutator
// directly rather than re-entering Agent's public methods, so the
// run-immediately-or-enqueue rule of spec.md §5 is satisfied by
// construction: nothing queued onto tasks ever blocks waiting on another
// task.
type Agent struct {
	cache *cache.Cache
	disp  *dispatch.Dispatcher
	mut   *mutator.Mutator
	rec   *reconcile.Reconciler
	tp    transport.Transport

	tasks     chan task
	stop      chan struct{}
	stopped   chan struct{}
	summarize *logutils.Summarizer
	logCxt    *log.Entry
}

func New(tp transport.Transport) *Agent {
	c := cache.New()
	d := dispatch.New(c)
	m := mutator.New(c, tp)
	r := reconcile.New(c, m)
	return &Agent{
		cache:     c,
		disp:      d,
		mut:       m,
		rec:       r,
		tp:        tp,
		tasks:     make(chan task, 256),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
		summarize: logutils.NewSummarizer("core loop iterations"),
		logCxt:    log.WithField("component", "core"),
	}
}

// SetEventHandler registers the single subscriber callback invoked by the
// dispatcher for events the caller has subscribed to.
func (a *Agent) SetEventHandler(h dispatch.Handler) { a.disp.SetHandler(h) }

func (a *Agent) SubscribeEvent(kind dispatch.EventFlags)   { a.disp.Subscribe(kind) }
func (a *Agent) UnsubscribeEvent(kind dispatch.EventFlags) { a.disp.Unsubscribe(kind) }
func (a *Agent) SubscribeAllEvents()                        { a.disp.SubscribeAll() }
func (a *Agent) UnsubscribeAllEvents()                      { a.disp.UnsubscribeAll() }

// Run starts the event loop. It blocks until Stop is called; when the
// transport's subscription channel closes, it resubscribes and keeps going.
func (a *Agent) Run() {
	defer close(a.stopped)
	a.logCxt.Info("Core event loop starting.")

	if err := a.initialRefill(); err != nil {
		a.logCxt.WithError(err).Error("Initial cache refill failed.")
	}

	for {
		sub, err := a.tp.Subscribe()
		if err != nil {
			a.logCxt.WithError(err).Error("Failed to subscribe to transport, retrying in 1s.")
			select {
			case <-time.After(time.Second):
				continue
			case <-a.stop:
				return
			}
		}

	readLoop:
		for {
			start := time.Now()
			select {
			case delta, ok := <-sub:
				if !ok {
					a.logCxt.Warn("Transport subscription closed, resubscribing.")
					break readLoop
				}
				a.disp.Dispatch(delta)
				a.summarize.RecordOperation(fmt.Sprintf("kernel-event:%s:%s", delta.Category, delta.Action))
			case t := <-a.tasks:
				t.run()
				a.summarize.RecordOperation("task")
			case <-a.stop:
				return
			}
			a.summarize.EndOfIteration(time.Since(start))
		}
	}
}

// Stop halts the event loop after the current iteration finishes.
func (a *Agent) Stop() {
	close(a.stop)
	<-a.stopped
}

func (a *Agent) initialRefill() error {
	return a.refillCategory(transport.CategoryRoute)
}

// refillCategory bulk-pulls one category from the transport and applies
// every returned delta to the cache without notifying the subscriber
// (spec.md §4.7). It's used both for the route refill Run does at startup
// and for the on-demand link/neighbor refills GetAllLinks and
// GetAllReachableNeighbors force before reading the cache, since those two
// categories are never kept warm by a background sync the way routes are.
func (a *Agent) refillCategory(cat transport.Category) error {
	start := time.Now()
	deltas, err := a.tp.RefillCache(cat)
	if err != nil {
		return fmt.Errorf("refilling %s cache: %w", cat, err)
	}
	for _, d := range deltas {
		a.disp.DispatchSuppressed(d)
	}
	metrics.ObserveRefill(string(cat), start)
	a.recordCacheSize(cat)
	return nil
}

// recordCacheSize updates fibmirror_cache_size for the partitions a refill
// of cat can affect. Route refills touch all four route partitions at
// once, since a single RTM_GETROUTE dump gets fanned out by the dispatcher
// into unicast/multicast/link-scope/MPLS (see dispatch.categorizeRoute).
func (a *Agent) recordCacheSize(cat transport.Category) {
	switch cat {
	case transport.CategoryRoute:
		metrics.CacheSize.WithLabelValues("unicast").Set(float64(a.cache.UnicastCount()))
		metrics.CacheSize.WithLabelValues("multicast").Set(float64(a.cache.MulticastCount()))
		metrics.CacheSize.WithLabelValues("link_scope").Set(float64(a.cache.LinkScopeCount()))
		metrics.CacheSize.WithLabelValues("mpls").Set(float64(a.cache.MPLSCount()))
	case transport.CategoryLink:
		metrics.CacheSize.WithLabelValues("link").Set(float64(a.cache.LinkCount()))
	case transport.CategoryAddr:
		metrics.CacheSize.WithLabelValues("address").Set(float64(a.cache.AddressCount()))
	case transport.CategoryNeighbor:
		metrics.CacheSize.WithLabelValues("neighbor").Set(float64(a.cache.NeighborCount()))
	}
}

// submit enqueues fn onto the core thread and returns a Future resolved
// with fn's result.
func submit[T any](a *Agent, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	a.tasks <- task{run: func() {
		val, err := fn()
		if err != nil {
			f.reject(err)
		} else {
			f.resolve(val)
		}
	}}
	return f
}
