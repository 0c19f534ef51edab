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

// Package cache holds the in-process mirror of kernel FIB/link/address/
// neighbor state. Every map here is owned exclusively by the core event
// loop (spec.md §5); callers from other goroutines only ever reach these
// maps through the task queue, so no locking is needed inside the package.
package cache

import (
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/pkg/ip"
)

// UnicastKey identifies a unicast or blackhole route: (protocol, destination).
type UnicastKey struct {
	Protocol int
	Dst      ip.CIDR
}

// IfaceScopedKey identifies a multicast or link-scope route: (protocol,
// (prefix, egress interface name)). Both categories share this key shape
// per spec.md §3.
type IfaceScopedKey struct {
	Protocol  int
	Dst       ip.CIDR
	IfaceName string
}

// MPLSKey identifies a label route: (protocol, label).
type MPLSKey struct {
	Protocol int
	Label    uint32
}

// Cache is the core's mirror of kernel state. The zero value is not usable;
// use New.
type Cache struct {
	unicast   map[UnicastKey]objmodel.Route
	multicast map[IfaceScopedKey]objmodel.Route
	linkScope map[IfaceScopedKey]objmodel.Route
	mpls      map[MPLSKey]objmodel.Route

	linksByName  map[string]objmodel.Link
	linksByIndex map[int]string

	// addrsByIface[ifIndex][prefix] = Address. Link.Prefixes (the observed
	// set) is kept as a derived view over this map.
	addrsByIface map[int]map[ip.CIDR]objmodel.Address

	neighbors map[objmodel.NeighborKey]objmodel.Neighbor
}

func New() *Cache {
	return &Cache{
		unicast:      map[UnicastKey]objmodel.Route{},
		multicast:    map[IfaceScopedKey]objmodel.Route{},
		linkScope:    map[IfaceScopedKey]objmodel.Route{},
		mpls:         map[MPLSKey]objmodel.Route{},
		linksByName:  map[string]objmodel.Link{},
		linksByIndex: map[int]string{},
		addrsByIface: map[int]map[ip.CIDR]objmodel.Address{},
		neighbors:    map[objmodel.NeighborKey]objmodel.Neighbor{},
	}
}

// --- Unicast / blackhole ---

func (c *Cache) GetUnicast(key UnicastKey) (objmodel.Route, bool) {
	r, ok := c.unicast[key]
	return r, ok
}

func (c *Cache) SetUnicast(key UnicastKey, r objmodel.Route) {
	c.unicast[key] = r
}

func (c *Cache) DeleteUnicast(key UnicastKey) {
	delete(c.unicast, key)
}

// UnicastForProtocol returns a shallow copy of the unicast slice for one
// protocol ID, keyed by destination.
func (c *Cache) UnicastForProtocol(protocol int) map[ip.CIDR]objmodel.Route {
	out := map[ip.CIDR]objmodel.Route{}
	for k, r := range c.unicast {
		if k.Protocol == protocol {
			out[k.Dst] = r
		}
	}
	return out
}

func (c *Cache) UnicastCount() int { return len(c.unicast) }

// --- Multicast ---

func (c *Cache) GetMulticast(key IfaceScopedKey) (objmodel.Route, bool) {
	r, ok := c.multicast[key]
	return r, ok
}

func (c *Cache) SetMulticast(key IfaceScopedKey, r objmodel.Route) {
	c.multicast[key] = r
}

func (c *Cache) DeleteMulticast(key IfaceScopedKey) {
	delete(c.multicast, key)
}

func (c *Cache) MulticastForProtocol(protocol int) map[IfaceScopedKey]objmodel.Route {
	out := map[IfaceScopedKey]objmodel.Route{}
	for k, r := range c.multicast {
		if k.Protocol == protocol {
			out[k] = r
		}
	}
	return out
}

func (c *Cache) MulticastCount() int { return len(c.multicast) }

// --- Link-scope ---

func (c *Cache) GetLinkScope(key IfaceScopedKey) (objmodel.Route, bool) {
	r, ok := c.linkScope[key]
	return r, ok
}

func (c *Cache) SetLinkScope(key IfaceScopedKey, r objmodel.Route) {
	c.linkScope[key] = r
}

func (c *Cache) DeleteLinkScope(key IfaceScopedKey) {
	delete(c.linkScope, key)
}

func (c *Cache) LinkScopeForProtocol(protocol int) map[IfaceScopedKey]objmodel.Route {
	out := map[IfaceScopedKey]objmodel.Route{}
	for k, r := range c.linkScope {
		if k.Protocol == protocol {
			out[k] = r
		}
	}
	return out
}

// ReplaceLinkScopeForProtocol swaps the entire link-scope slice for one
// protocol wholesale, per the sync_link_routes contract in spec.md §4.5.
func (c *Cache) ReplaceLinkScopeForProtocol(protocol int, routes map[IfaceScopedKey]objmodel.Route) {
	for k := range c.linkScope {
		if k.Protocol == protocol {
			delete(c.linkScope, k)
		}
	}
	for k, r := range routes {
		c.linkScope[k] = r
	}
}

func (c *Cache) LinkScopeCount() int { return len(c.linkScope) }

// --- MPLS ---

func (c *Cache) GetMPLS(key MPLSKey) (objmodel.Route, bool) {
	r, ok := c.mpls[key]
	return r, ok
}

func (c *Cache) SetMPLS(key MPLSKey, r objmodel.Route) {
	c.mpls[key] = r
}

func (c *Cache) DeleteMPLS(key MPLSKey) {
	delete(c.mpls, key)
}

func (c *Cache) MPLSForProtocol(protocol int) map[uint32]objmodel.Route {
	out := map[uint32]objmodel.Route{}
	for k, r := range c.mpls {
		if k.Protocol == protocol {
			out[k.Label] = r
		}
	}
	return out
}

func (c *Cache) MPLSCount() int { return len(c.mpls) }

// --- Links ---

func (c *Cache) SetLink(l objmodel.Link) {
	if old, ok := c.linksByName[l.Name]; ok && old.Index != l.Index {
		delete(c.linksByIndex, old.Index)
	}
	c.linksByName[l.Name] = l
	c.linksByIndex[l.Index] = l.Name
}

func (c *Cache) DeleteLink(name string) {
	if l, ok := c.linksByName[name]; ok {
		delete(c.linksByIndex, l.Index)
		delete(c.addrsByIface, l.Index)
	}
	delete(c.linksByName, name)
}

func (c *Cache) GetLinkByName(name string) (objmodel.Link, bool) {
	l, ok := c.linksByName[name]
	return l, ok
}

func (c *Cache) GetLinkByIndex(idx int) (objmodel.Link, bool) {
	name, ok := c.linksByIndex[idx]
	if !ok {
		return objmodel.Link{}, false
	}
	return c.GetLinkByName(name)
}

func (c *Cache) IfaceName(idx int) string {
	return c.linksByIndex[idx]
}

func (c *Cache) IfaceIndex(name string) (int, bool) {
	l, ok := c.linksByName[name]
	if !ok {
		return 0, false
	}
	return l.Index, true
}

func (c *Cache) LoopbackIfaceIndex() (int, bool) {
	for _, l := range c.linksByName {
		if l.Loopback {
			return l.Index, true
		}
	}
	return 0, false
}

// AllLinks returns a shallow copy of the link-by-name map.
func (c *Cache) AllLinks() map[string]objmodel.Link {
	out := make(map[string]objmodel.Link, len(c.linksByName))
	for k, v := range c.linksByName {
		out[k] = v
	}
	return out
}

func (c *Cache) LinkCount() int { return len(c.linksByName) }

// --- Addresses ---

// AddAddressToLink records addr and adds its prefix to the owning link's
// observed set (spec.md §4.3 "Address events update the owning link's
// prefix set").
func (c *Cache) AddAddressToLink(addr objmodel.Address) {
	m := c.addrsByIface[addr.IfaceIndex]
	if m == nil {
		m = map[ip.CIDR]objmodel.Address{}
		c.addrsByIface[addr.IfaceIndex] = m
	}
	m[addr.Prefix] = addr

	if name, ok := c.linksByIndex[addr.IfaceIndex]; ok {
		l := c.linksByName[name]
		if l.Prefixes == nil {
			l.Prefixes = newPrefixSet()
		}
		l.Prefixes.Add(addr.Prefix)
		c.linksByName[name] = l
	}
}

func (c *Cache) RemoveAddressFromLink(addr objmodel.Address) {
	if m, ok := c.addrsByIface[addr.IfaceIndex]; ok {
		delete(m, addr.Prefix)
	}
	if name, ok := c.linksByIndex[addr.IfaceIndex]; ok {
		l := c.linksByName[name]
		if l.Prefixes != nil {
			l.Prefixes.Discard(addr.Prefix)
		}
		c.linksByName[name] = l
	}
}

// AddressCount totals the addresses cached across every interface.
func (c *Cache) AddressCount() int {
	n := 0
	for _, m := range c.addrsByIface {
		n += len(m)
	}
	return n
}

// AddressesForIface returns the cached addresses on ifIndex, keeping only
// those matching family when filterFamily is set and only those matching
// scope when filterScope is set; with both flags false it returns them all.
func (c *Cache) AddressesForIface(ifIndex int, family objmodel.Family, scope objmodel.Scope, filterFamily, filterScope bool) []objmodel.Address {
	var out []objmodel.Address
	for _, a := range c.addrsByIface[ifIndex] {
		if filterFamily && a.Family != family {
			continue
		}
		if filterScope && a.Scope != scope {
			continue
		}
		out = append(out, a)
	}
	return out
}

// --- Neighbors ---

func (c *Cache) GetNeighbor(key objmodel.NeighborKey) (objmodel.Neighbor, bool) {
	n, ok := c.neighbors[key]
	return n, ok
}

func (c *Cache) SetNeighbor(n objmodel.Neighbor) {
	c.neighbors[n.Key()] = n
}

func (c *Cache) DeleteNeighbor(key objmodel.NeighborKey) {
	delete(c.neighbors, key)
}

// PurgeNeighborsForIface removes every neighbor on ifaceName, returning the
// keys removed (used when a link goes down, spec.md §4.3).
func (c *Cache) PurgeNeighborsForIface(ifaceName string) []objmodel.NeighborKey {
	var removed []objmodel.NeighborKey
	for k := range c.neighbors {
		if k.IfaceName == ifaceName {
			removed = append(removed, k)
			delete(c.neighbors, k)
		}
	}
	return removed
}

// AllReachableNeighbors returns a shallow copy of the neighbor map. All
// entries are reachable by construction: unreachable neighbors are never
// inserted (spec.md §3).
func (c *Cache) AllReachableNeighbors() map[objmodel.NeighborKey]objmodel.Neighbor {
	out := make(map[objmodel.NeighborKey]objmodel.Neighbor, len(c.neighbors))
	for k, v := range c.neighbors {
		out[k] = v
	}
	return out
}

func (c *Cache) NeighborCount() int { return len(c.neighbors) }
