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

// Package dispatch consumes parsed kernel deltas, updates the cache, and
// fans out to a single registered subscriber gated by a per-event-type
// flag mask (spec.md §4.3).
package dispatch

import (
	log "github.com/sirupsen/logrus"

	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/metrics"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
)

// EventFlags is a bitmask of the event types a subscriber cares about.
type EventFlags uint8

const (
	EventRoute EventFlags = 1 << iota
	EventLink
	EventAddr
	EventNeighbor

	EventAll = EventRoute | EventLink | EventAddr | EventNeighbor
)

// VariantKind tags which typed field of Variant is populated.
type VariantKind int

const (
	KindRoute VariantKind = iota
	KindLink
	KindAddress
	KindNeighbor
)

// Variant is the subscriber payload: a tagged union over the four record
// types, per spec.md §9 ("use a sum type, not inheritance or dynamic
// dispatch").
type Variant struct {
	Kind     VariantKind
	Route    *objmodel.Route
	Link     *objmodel.Link
	Address  *objmodel.Address
	Neighbor *objmodel.Neighbor
}

// Handler is the single registered subscriber callback. ifaceName is the
// resolved interface name, or "" if it couldn't be resolved (spec.md §4.3).
type Handler func(ifaceName string, action transport.Action, v Variant)

// Dispatcher mutates a cache.Cache in response to parsed kernel deltas and,
// once the cache reflects the delta, fans out to the registered handler.
// Not safe for concurrent use: it runs exclusively on the core event loop.
type Dispatcher struct {
	cache   *cache.Cache
	handler Handler
	flags   EventFlags
	logCxt  *log.Entry
}

func New(c *cache.Cache) *Dispatcher {
	return &Dispatcher{
		cache:  c,
		logCxt: log.WithField("component", "dispatcher"),
	}
}

func (d *Dispatcher) SetHandler(h Handler) { d.handler = h }

func (d *Dispatcher) Subscribe(flags EventFlags)   { d.flags |= flags }
func (d *Dispatcher) Unsubscribe(flags EventFlags) { d.flags &^= flags }
func (d *Dispatcher) SubscribeAll()                { d.flags = EventAll }
func (d *Dispatcher) UnsubscribeAll()               { d.flags = 0 }

// Dispatch applies delta to the cache and notifies the subscriber if it's
// interested and the delta wasn't dropped by validation.
func (d *Dispatcher) Dispatch(delta transport.Delta) {
	d.dispatch(delta, false)
}

// DispatchSuppressed applies delta to the cache as Dispatch does, but never
// calls the subscriber. Used for the initial bulk refill and subsequent
// on-demand refills (spec.md §4.7): the cache is primed without the
// subscriber seeing a flood of synthetic GETs for state it never lost.
func (d *Dispatcher) DispatchSuppressed(delta transport.Delta) {
	d.dispatch(delta, true)
}

func (d *Dispatcher) dispatch(delta transport.Delta, suppress bool) {
	switch delta.Category {
	case transport.CategoryRoute:
		d.dispatchRoute(delta, suppress)
	case transport.CategoryLink:
		d.dispatchLink(delta, suppress)
	case transport.CategoryAddr:
		d.dispatchAddr(delta, suppress)
	case transport.CategoryNeighbor:
		d.dispatchNeighbor(delta, suppress)
	default:
		d.logCxt.WithField("category", delta.Category).Warn("Unknown delta category, dropping.")
	}
}

func (d *Dispatcher) notify(ifaceName string, action transport.Action, v Variant, gate EventFlags) {
	if d.handler == nil || d.flags&gate == 0 {
		return
	}
	d.handler(ifaceName, action, v)
}

func (d *Dispatcher) emit(category transport.Category, action transport.Action) {
	metrics.EventsDispatched.WithLabelValues(string(category), string(action)).Inc()
}

func (d *Dispatcher) drop(category transport.Category, reason string) {
	metrics.EventsDropped.WithLabelValues(string(category), reason).Inc()
}
