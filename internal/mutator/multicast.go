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

package mutator

import (
	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/pkg/ip"
)

func multicastKey(c *cache.Cache, r objmodel.Route) cache.IfaceScopedKey {
	return cache.IfaceScopedKey{
		Protocol:  r.Protocol,
		Dst:       r.Dst,
		IfaceName: c.IfaceName(r.NextHops[0].IfaceIndex),
	}
}

func validateMulticast(r objmodel.Route) error {
	if r.Dst == nil || !ip.IsMulticast(r.Dst) {
		return ErrNotMulticast
	}
	if len(r.NextHops) != 1 || r.NextHops[0].IfaceIndex == 0 {
		return ErrNoEgressInterface
	}
	return nil
}

// AddMulticastRoute implements spec.md §4.4's "Multicast add".
func (m *Mutator) AddMulticastRoute(r objmodel.Route) error {
	if err := validateMulticast(r); err != nil {
		recordOutcome("add_multicast_route", err, false)
		return err
	}
	key := multicastKey(m.cache, r)
	if _, ok := m.cache.GetMulticast(key); ok {
		m.logCxt.WithField("key", key).Warn("Multicast route already cached, ignoring add.")
		recordOutcome("add_multicast_route", nil, true)
		return nil
	}
	if err := m.tp.AddRoute(r, 0); err != nil {
		recordOutcome("add_multicast_route", err, false)
		return transportErr("add-multicast-route", err)
	}
	m.cache.SetMulticast(key, r)
	recordOutcome("add_multicast_route", nil, false)
	return nil
}

// DeleteMulticastRoute implements spec.md §4.4's "Multicast delete",
// symmetric to AddMulticastRoute.
func (m *Mutator) DeleteMulticastRoute(r objmodel.Route) error {
	if err := validateMulticast(r); err != nil {
		recordOutcome("delete_multicast_route", err, false)
		return err
	}
	key := multicastKey(m.cache, r)
	if _, ok := m.cache.GetMulticast(key); !ok {
		m.logCxt.WithField("key", key).Warn("Multicast route not cached, ignoring delete.")
		recordOutcome("delete_multicast_route", nil, false)
		return nil
	}
	if err := m.tp.DeleteRoute(r); err != nil {
		recordOutcome("delete_multicast_route", err, false)
		return transportErr("delete-multicast-route", err)
	}
	m.cache.DeleteMulticast(key)
	recordOutcome("delete_multicast_route", nil, false)
	return nil
}

// AddLinkScopeRouteRaw issues a REPLACE add directly through the transport
// with no cache dedup, per spec.md §4.5's link-scope sync rule.
func (m *Mutator) AddLinkScopeRouteRaw(r objmodel.Route) error {
	if err := m.tp.AddRoute(r, transport.FlagReplace); err != nil {
		recordOutcome("add_link_scope_route", err, false)
		return transportErr("add-link-scope-route", err)
	}
	recordOutcome("add_link_scope_route", nil, false)
	return nil
}

// DeleteLinkScopeRouteRaw issues a delete directly through the transport
// with no cache dedup, per spec.md §4.5.
func (m *Mutator) DeleteLinkScopeRouteRaw(r objmodel.Route) error {
	err := m.tp.DeleteRoute(r)
	if err != nil {
		if errorsIsNotFound(err) {
			recordOutcome("delete_link_scope_route", nil, true)
			return nil
		}
		recordOutcome("delete_link_scope_route", err, false)
		return transportErr("delete-link-scope-route", err)
	}
	recordOutcome("delete_link_scope_route", nil, false)
	return nil
}
