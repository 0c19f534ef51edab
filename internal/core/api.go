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

package core

import (
	"fmt"

	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/pkg/ip"
)

// AddRoute enqueues a unicast add/update (spec.md §6.2).
func (a *Agent) AddRoute(r objmodel.Route) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.mut.AddRoute(r) })
}

// DeleteRoute enqueues a unicast delete.
func (a *Agent) DeleteRoute(r objmodel.Route) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.mut.DeleteRoute(r) })
}

// AddMplsRoute enqueues an MPLS label-route add/update.
func (a *Agent) AddMplsRoute(r objmodel.Route) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.mut.AddMPLSRoute(r) })
}

// DeleteMplsRoute enqueues an MPLS label-route delete.
func (a *Agent) DeleteMplsRoute(r objmodel.Route) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.mut.DeleteMPLSRoute(r) })
}

// SyncUnicastRoutes enqueues a reconciliation of protocol's unicast slice
// against desired.
func (a *Agent) SyncUnicastRoutes(protocol int, desired map[ip.CIDR]objmodel.Route) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.rec.SyncUnicastRoutes(protocol, desired) })
}

// SyncMplsRoutes enqueues a reconciliation of protocol's MPLS slice against
// desired.
func (a *Agent) SyncMplsRoutes(protocol int, desired map[uint32]objmodel.Route) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.rec.SyncMPLSRoutes(protocol, desired) })
}

// SyncLinkRoutes enqueues a reconciliation of protocol's link-scope slice
// against desired.
func (a *Agent) SyncLinkRoutes(protocol int, desired map[cache.IfaceScopedKey]objmodel.Route) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.rec.SyncLinkRoutes(protocol, desired) })
}

// GetCachedUnicastRoutes returns the mirrored unicast slice for protocol.
func (a *Agent) GetCachedUnicastRoutes(protocol int) *Future[map[ip.CIDR]objmodel.Route] {
	return submit(a, func() (map[ip.CIDR]objmodel.Route, error) {
		return a.cache.UnicastForProtocol(protocol), nil
	})
}

// GetCachedMulticastRoutes returns the mirrored multicast slice for protocol.
func (a *Agent) GetCachedMulticastRoutes(protocol int) *Future[map[cache.IfaceScopedKey]objmodel.Route] {
	return submit(a, func() (map[cache.IfaceScopedKey]objmodel.Route, error) {
		return a.cache.MulticastForProtocol(protocol), nil
	})
}

// GetCachedLinkRoutes returns the mirrored link-scope slice for protocol.
func (a *Agent) GetCachedLinkRoutes(protocol int) *Future[map[cache.IfaceScopedKey]objmodel.Route] {
	return submit(a, func() (map[cache.IfaceScopedKey]objmodel.Route, error) {
		return a.cache.LinkScopeForProtocol(protocol), nil
	})
}

// GetCachedMplsRoutes returns the mirrored MPLS slice for protocol, keyed by
// label.
func (a *Agent) GetCachedMplsRoutes(protocol int) *Future[map[uint32]objmodel.Route] {
	return submit(a, func() (map[uint32]objmodel.Route, error) {
		return a.cache.MPLSForProtocol(protocol), nil
	})
}

// GetRouteCount returns the total number of cached unicast routes.
func (a *Agent) GetRouteCount() *Future[int] {
	return submit(a, func() (int, error) { return a.cache.UnicastCount(), nil })
}

// GetMplsRouteCount returns the total number of cached MPLS routes.
func (a *Agent) GetMplsRouteCount() *Future[int] {
	return submit(a, func() (int, error) { return a.cache.MPLSCount(), nil })
}

// AddIfAddress enqueues an address add.
func (a *Agent) AddIfAddress(addr objmodel.Address) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.mut.AddAddress(addr) })
}

// DelIfAddress enqueues an address delete.
func (a *Agent) DelIfAddress(addr objmodel.Address) *Future[struct{}] {
	return submit(a, func() (struct{}, error) { return struct{}{}, a.mut.DeleteAddress(addr) })
}

// SyncIfAddress enqueues an address-set reconciliation for ifIndex.
func (a *Agent) SyncIfAddress(ifIndex int, desired []objmodel.Address, family objmodel.Family, scope objmodel.Scope) *Future[struct{}] {
	return submit(a, func() (struct{}, error) {
		return struct{}{}, a.rec.SyncIfAddress(ifIndex, desired, family, scope)
	})
}

// GetIfAddrs returns the cached addresses on ifIndex matching family/scope.
func (a *Agent) GetIfAddrs(ifIndex int, family objmodel.Family, scope objmodel.Scope) *Future[[]objmodel.Address] {
	return submit(a, func() ([]objmodel.Address, error) {
		return a.cache.AddressesForIface(ifIndex, family, scope, true, true), nil
	})
}

// GetIfIndex resolves an interface name to its index.
func (a *Agent) GetIfIndex(name string) *Future[int] {
	return submit(a, func() (int, error) {
		idx, ok := a.cache.IfaceIndex(name)
		if !ok {
			return 0, fmt.Errorf("no cached interface named %q", name)
		}
		return idx, nil
	})
}

// GetIfName resolves an interface index to its name.
func (a *Agent) GetIfName(index int) *Future[string] {
	return submit(a, func() (string, error) {
		name := a.cache.IfaceName(index)
		if name == "" {
			return "", fmt.Errorf("no cached interface with index %d", index)
		}
		return name, nil
	})
}

// GetLoopbackIfIndex returns the loopback interface's index, or an error if
// none has been observed yet.
func (a *Agent) GetLoopbackIfIndex() *Future[int] {
	return submit(a, func() (int, error) {
		idx, ok := a.cache.LoopbackIfaceIndex()
		if !ok {
			return 0, fmt.Errorf("no loopback interface cached")
		}
		return idx, nil
	})
}

// GetAllLinks forces a fresh link refill from the transport, then returns
// every cached link, by name. Links aren't kept warm by a background sync
// the way routes are (spec.md §4.7), so a stale read would otherwise be
// possible between the initial refill and whenever a link event happens to
// arrive.
func (a *Agent) GetAllLinks() *Future[map[string]objmodel.Link] {
	return submit(a, func() (map[string]objmodel.Link, error) {
		if err := a.refillCategory(transport.CategoryLink); err != nil {
			return nil, err
		}
		return a.cache.AllLinks(), nil
	})
}

// GetAllReachableNeighbors forces a fresh neighbor refill from the
// transport, then returns every cached (reachable, by construction)
// neighbor. See GetAllLinks for why the refill is forced here rather than
// relied on from startup.
func (a *Agent) GetAllReachableNeighbors() *Future[map[objmodel.NeighborKey]objmodel.Neighbor] {
	return submit(a, func() (map[objmodel.NeighborKey]objmodel.Neighbor, error) {
		if err := a.refillCategory(transport.CategoryNeighbor); err != nil {
			return nil, err
		}
		return a.cache.AllReachableNeighbors(), nil
	})
}
