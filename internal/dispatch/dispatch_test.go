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
	"testing"

	. "github.com/onsi/gomega"

	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/pkg/ip"
)

func newTestDispatcher() (*Dispatcher, *cache.Cache) {
	c := cache.New()
	d := New(c)
	return d, c
}

func mustRoute(t *testing.T, b *objmodel.RouteBuilder) objmodel.Route {
	r, err := b.Build()
	if err != nil {
		t.Fatalf("building route: %v", err)
	}
	return r
}

func TestDispatch_LinkDownPurgesNeighborsSilently(t *testing.T) {
	g := NewWithT(t)
	d, c := newTestDispatcher()

	c.SetLink(objmodel.Link{Name: "eth0", Index: 3, Up: true})
	c.SetLink(objmodel.Link{Name: "eth1", Index: 4, Up: true})
	c.SetNeighbor(objmodel.Neighbor{IfaceName: "eth0", IP: ip.FromString("10.0.0.2"), State: objmodel.NeighStateReachable})
	c.SetNeighbor(objmodel.Neighbor{IfaceName: "eth1", IP: ip.FromString("10.0.1.2"), State: objmodel.NeighStateReachable})

	var seenNeighborEvents int
	var seenLinkEvents int
	d.SetHandler(func(ifaceName string, action transport.Action, v Variant) {
		switch v.Kind {
		case KindNeighbor:
			seenNeighborEvents++
		case KindLink:
			seenLinkEvents++
		}
	})
	d.SubscribeAll()

	downLink := objmodel.Link{Name: "eth0", Index: 3, Up: false}
	d.Dispatch(transport.Delta{Category: transport.CategoryLink, Action: transport.ActionChange, Link: &downLink})

	neighbors := c.AllReachableNeighbors()
	g.Expect(neighbors).To(HaveLen(1))
	for k := range neighbors {
		g.Expect(k.IfaceName).To(Equal("eth1"))
	}
	g.Expect(seenLinkEvents).To(Equal(1))
	g.Expect(seenNeighborEvents).To(Equal(0))
}

func TestDispatch_SuppressedRouteAppliesToCacheWithoutNotifying(t *testing.T) {
	g := NewWithT(t)
	d, c := newTestDispatcher()
	c.SetLink(objmodel.Link{Name: "eth0", Index: 3, Up: true})

	var notified bool
	d.SetHandler(func(string, transport.Action, Variant) { notified = true })
	d.SubscribeAll()

	nh, err := objmodel.NewNextHop(3, ip.FromString("10.0.0.1"), 0)
	g.Expect(err).NotTo(HaveOccurred())
	r := mustRoute(t, objmodel.NewRouteBuilder().
		WithDestination(ip.MustParseCIDROrIP("10.0.0.0/24")).
		AddNextHop(nh))

	d.DispatchSuppressed(transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionGet, Route: &r})

	g.Expect(c.UnicastCount()).To(Equal(1))
	g.Expect(notified).To(BeFalse())
}

func TestDispatch_MulticastRouteWithoutIfaceIsDropped(t *testing.T) {
	g := NewWithT(t)
	d, c := newTestDispatcher()

	var notified bool
	d.SetHandler(func(string, transport.Action, Variant) { notified = true })
	d.SubscribeAll()

	r := mustRoute(t, objmodel.NewRouteBuilder().
		WithDestination(ip.MustParseCIDROrIP("224.0.0.5/32")).
		WithType(objmodel.RouteTypeMulticast))

	d.Dispatch(transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionAdd, Route: &r})

	g.Expect(notified).To(BeFalse())
	g.Expect(c.UnicastCount()).To(Equal(0))
}

func TestDispatch_RouteNotInMainTableIsFiltered(t *testing.T) {
	g := NewWithT(t)
	d, c := newTestDispatcher()

	r := mustRoute(t, objmodel.NewRouteBuilder().
		WithDestination(ip.MustParseCIDROrIP("10.0.0.0/24")).
		WithTable(255))

	d.Dispatch(transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionAdd, Route: &r})
	g.Expect(c.UnicastCount()).To(Equal(0))
}

func TestDispatch_UnicastAddThenDeleteRoundTrips(t *testing.T) {
	g := NewWithT(t)
	d, c := newTestDispatcher()
	c.SetLink(objmodel.Link{Name: "eth0", Index: 3, Up: true})

	nh, err := objmodel.NewNextHop(3, ip.FromString("10.0.0.1"), 0)
	g.Expect(err).NotTo(HaveOccurred())
	r := mustRoute(t, objmodel.NewRouteBuilder().
		WithDestination(ip.MustParseCIDROrIP("10.0.0.0/24")).
		AddNextHop(nh))

	d.Dispatch(transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionAdd, Route: &r})
	g.Expect(c.UnicastCount()).To(Equal(1))

	d.Dispatch(transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionDelete, Route: &r})
	g.Expect(c.UnicastCount()).To(Equal(0))
}

func TestDispatch_AddressEventUpdatesLinkPrefixSet(t *testing.T) {
	g := NewWithT(t)
	d, c := newTestDispatcher()
	c.SetLink(objmodel.Link{Name: "eth0", Index: 4, Up: true})

	addr := objmodel.Address{IfaceIndex: 4, Prefix: ip.MustParseCIDROrIP("10.0.0.1/24"), Family: objmodel.FamilyV4}
	d.Dispatch(transport.Delta{Category: transport.CategoryAddr, Action: transport.ActionAdd, Address: &addr})

	l, ok := c.GetLinkByName("eth0")
	g.Expect(ok).To(BeTrue())
	g.Expect(l.Prefixes.Contains(addr.Prefix)).To(BeTrue())

	d.Dispatch(transport.Delta{Category: transport.CategoryAddr, Action: transport.ActionDelete, Address: &addr})
	l, _ = c.GetLinkByName("eth0")
	g.Expect(l.Prefixes.Contains(addr.Prefix)).To(BeFalse())
}
