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

package dispatch

import (
	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
)

type routeCategory int

const (
	catUnicast routeCategory = iota
	catMulticast
	catLinkScope
	catMPLS
)

// categorizeRoute works out which of the four cache partitions a route
// belongs to and validates the per-category next-hop constraints from
// spec.md §3/§4.3. ok is false if the route should be dropped.
func categorizeRoute(r objmodel.Route) (cat routeCategory, ok bool, dropReason string) {
	if r.IsMPLS() {
		return catMPLS, true, ""
	}
	if r.Type == objmodel.RouteTypeMulticast {
		if len(r.NextHops) != 1 || r.NextHops[0].IfaceIndex == 0 {
			return 0, false, "multicast route without exactly one interface next hop"
		}
		return catMulticast, true, ""
	}
	if r.Scope == objmodel.ScopeLink {
		if len(r.NextHops) != 1 || r.NextHops[0].IfaceIndex == 0 {
			return 0, false, "link-scope route without exactly one interface next hop"
		}
		return catLinkScope, true, ""
	}
	return catUnicast, true, ""
}

func (d *Dispatcher) dispatchRoute(delta transport.Delta, suppress bool) {
	if delta.Route == nil {
		d.logCxt.Warn("Route delta with nil payload, dropping.")
		return
	}
	r := *delta.Route

	if r.Table != objmodel.RTTableMain {
		d.drop(transport.CategoryRoute, "not-main-table")
		d.logCxt.WithField("table", r.Table).Debug("Ignoring route outside the main table.")
		return
	}
	if r.Flags&objmodel.FlagCloned != 0 {
		d.drop(transport.CategoryRoute, "cloned")
		d.logCxt.Debug("Ignoring CLONED route.")
		return
	}

	cat, ok, reason := categorizeRoute(r)
	if !ok {
		d.drop(transport.CategoryRoute, reason)
		d.logCxt.WithField("route", r).Warn(reason)
		return
	}

	ifaceName := d.routeIfaceName(r)

	switch delta.Action {
	case transport.ActionAdd, transport.ActionChange, transport.ActionGet:
		r = r.WithValid(true)
		d.storeRoute(cat, r)
	case transport.ActionDelete:
		r = r.WithValid(false)
		d.deleteRoute(cat, r)
	default:
		d.logCxt.WithField("action", delta.Action).Warn("Unknown route action, dropping.")
		return
	}

	d.emit(transport.CategoryRoute, delta.Action)
	if !suppress {
		d.notify(ifaceName, delta.Action, Variant{Kind: KindRoute, Route: &r}, EventRoute)
	}
}

func (d *Dispatcher) routeIfaceName(r objmodel.Route) string {
	if len(r.NextHops) == 0 {
		return ""
	}
	return d.cache.IfaceName(r.NextHops[0].IfaceIndex)
}

func (d *Dispatcher) storeRoute(cat routeCategory, r objmodel.Route) {
	switch cat {
	case catUnicast:
		d.cache.SetUnicast(cache.UnicastKey{Protocol: r.Protocol, Dst: r.Dst}, r)
	case catMulticast:
		key := cache.IfaceScopedKey{Protocol: r.Protocol, Dst: r.Dst, IfaceName: d.cache.IfaceName(r.NextHops[0].IfaceIndex)}
		d.cache.SetMulticast(key, r)
	case catLinkScope:
		key := cache.IfaceScopedKey{Protocol: r.Protocol, Dst: r.Dst, IfaceName: d.cache.IfaceName(r.NextHops[0].IfaceIndex)}
		d.cache.SetLinkScope(key, r)
	case catMPLS:
		d.cache.SetMPLS(cache.MPLSKey{Protocol: r.Protocol, Label: *r.Label}, r)
	}
}

func (d *Dispatcher) deleteRoute(cat routeCategory, r objmodel.Route) {
	switch cat {
	case catUnicast:
		d.cache.DeleteUnicast(cache.UnicastKey{Protocol: r.Protocol, Dst: r.Dst})
	case catMulticast:
		key := cache.IfaceScopedKey{Protocol: r.Protocol, Dst: r.Dst, IfaceName: d.cache.IfaceName(r.NextHops[0].IfaceIndex)}
		d.cache.DeleteMulticast(key)
	case catLinkScope:
		key := cache.IfaceScopedKey{Protocol: r.Protocol, Dst: r.Dst, IfaceName: d.cache.IfaceName(r.NextHops[0].IfaceIndex)}
		d.cache.DeleteLinkScope(key)
	case catMPLS:
		d.cache.DeleteMPLS(cache.MPLSKey{Protocol: r.Protocol, Label: *r.Label})
	}
}
