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
	"testing"

	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/internal/transport/mocktransport"
	"github.com/commonnet/openr/pkg/ip"
)

func mustRoute(t *testing.T, dst string, nh int) objmodel.Route {
	t.Helper()
	b := objmodel.NewRouteBuilder().WithDestination(ip.MustParseCIDROrIP(dst))
	if nh != 0 {
		b = b.AddNextHop(objmodel.NextHop{IfaceIndex: nh})
	}
	r, err := b.Build()
	if err != nil {
		t.Fatalf("building route: %v", err)
	}
	return r
}

func newTestMutator() (*Mutator, *mocktransport.Mock, *cache.Cache) {
	c := cache.New()
	tp := mocktransport.New()
	return New(c, tp), tp, c
}

func TestAddRoute_NewUnicastInsertsAndReplaces(t *testing.T) {
	g := NewWithT(t)
	m, tp, c := newTestMutator()
	r := mustRoute(t, "10.0.0.0/24", 1)

	g.Expect(m.AddRoute(r)).To(Succeed())
	g.Expect(tp.Calls).To(HaveLen(1))
	g.Expect(tp.Calls[0].Op).To(Equal("AddRoute"))

	key := cache.UnicastKey{Protocol: r.Protocol, Dst: r.Dst}
	cached, ok := c.GetUnicast(key)
	g.Expect(ok).To(BeTrue())
	g.Expect(cached.Equal(r)).To(BeTrue())
}

func TestAddRoute_UnchangedRouteSkipsKernelCall(t *testing.T) {
	g := NewWithT(t)
	m, tp, _ := newTestMutator()
	r := mustRoute(t, "10.0.0.0/24", 1)

	g.Expect(m.AddRoute(r)).To(Succeed())
	g.Expect(m.AddRoute(r)).To(Succeed())

	g.Expect(tp.Calls).To(HaveLen(1), "second identical add should not reach the transport")
}

func TestAddRoute_IPv6ChangeDeletesBeforeReplace(t *testing.T) {
	g := NewWithT(t)
	m, tp, _ := newTestMutator()
	r1 := mustRoute(t, "2001:db8::/64", 1)
	r2 := mustRoute(t, "2001:db8::/64", 2)

	g.Expect(m.AddRoute(r1)).To(Succeed())
	g.Expect(m.AddRoute(r2)).To(Succeed())

	g.Expect(tp.Calls).To(HaveLen(3))
	g.Expect(tp.Calls[1].Op).To(Equal("DeleteRoute"))
	g.Expect(tp.Calls[2].Op).To(Equal("AddRoute"))
}

func TestAddRoute_IPv6DeleteBeforeReplaceToleratesNotFound(t *testing.T) {
	g := NewWithT(t)
	m, tp, _ := newTestMutator()
	r1 := mustRoute(t, "2001:db8::/64", 1)
	r2 := mustRoute(t, "2001:db8::/64", 2)

	g.Expect(m.AddRoute(r1)).To(Succeed())
	tp.FailNextDeleteRoute = unix.ESRCH
	g.Expect(m.AddRoute(r2)).To(Succeed())
}

func TestAddRoute_RejectsMulticastDestination(t *testing.T) {
	g := NewWithT(t)
	m, _, _ := newTestMutator()
	r := mustRoute(t, "224.0.0.1/32", 1)

	err := m.AddRoute(r)
	g.Expect(err).To(MatchError(ErrMulticastViaUnicastPath))
}

func TestDeleteRoute_UncachedIsNoop(t *testing.T) {
	g := NewWithT(t)
	m, tp, _ := newTestMutator()
	r := mustRoute(t, "10.0.0.0/24", 1)

	g.Expect(m.DeleteRoute(r)).To(Succeed())
	g.Expect(tp.Calls).To(BeEmpty())
}

func TestDeleteRoute_ToleratesAlreadyGone(t *testing.T) {
	g := NewWithT(t)
	m, tp, c := newTestMutator()
	r := mustRoute(t, "10.0.0.0/24", 1)
	g.Expect(m.AddRoute(r)).To(Succeed())

	tp.FailNextDeleteRoute = unix.ESRCH
	g.Expect(m.DeleteRoute(r)).To(Succeed())

	key := cache.UnicastKey{Protocol: r.Protocol, Dst: r.Dst}
	_, ok := c.GetUnicast(key)
	g.Expect(ok).To(BeFalse())
}

func TestAddMulticastRoute_RequiresSingleEgressNextHop(t *testing.T) {
	g := NewWithT(t)
	m, _, _ := newTestMutator()
	r, err := objmodel.NewRouteBuilder().
		WithDestination(ip.MustParseCIDROrIP("224.0.0.1/32")).
		WithType(objmodel.RouteTypeMulticast).
		Build()
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(m.AddMulticastRoute(r)).To(MatchError(ErrNoEgressInterface))
}

func TestAddMulticastRoute_AddsAndDedupes(t *testing.T) {
	g := NewWithT(t)
	m, tp, _ := newTestMutator()
	tp.Caps = transport.Capabilities{}
	r := mustRoute(t, "224.0.0.1/32", 1)

	g.Expect(m.AddMulticastRoute(r)).To(Succeed())
	g.Expect(m.AddMulticastRoute(r)).To(Succeed())
	g.Expect(tp.Calls).To(HaveLen(1))
}

func TestMPLSRoute_AddDeleteRequiresCapability(t *testing.T) {
	g := NewWithT(t)
	m, tp, c := newTestMutator()
	// No capability: mutation is a silent no-op.
	r, err := objmodel.NewRouteBuilder().WithLabel(100).AddNextHop(objmodel.NextHop{IfaceIndex: 1}).Build()
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(m.AddMPLSRoute(r)).To(Succeed())
	g.Expect(tp.Calls).To(BeEmpty())
	_, ok := c.GetMPLS(cache.MPLSKey{Protocol: r.Protocol, Label: 100})
	g.Expect(ok).To(BeFalse())

	tp.Caps = transport.Capabilities{MPLS: true}
	g.Expect(m.AddMPLSRoute(r)).To(Succeed())
	g.Expect(tp.Calls).To(HaveLen(1))
	g.Expect(tp.Calls[0].Op).To(Equal("AddLabelRoute"))

	g.Expect(m.DeleteMPLSRoute(r)).To(Succeed())
	g.Expect(tp.Calls).To(HaveLen(2))
	g.Expect(tp.Calls[1].Op).To(Equal("DeleteLabelRoute"))
}

func TestAddAddress_TolerateExist(t *testing.T) {
	g := NewWithT(t)
	m, tp, c := newTestMutator()
	a, err := objmodel.NewAddressBuilder().
		WithIfaceIndex(1).
		WithPrefix(ip.MustParseCIDROrIP("10.0.0.1/32")).
		Build()
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(m.AddAddress(a)).To(Succeed())
	tp.FailNextAddAddr = unix.EEXIST
	g.Expect(m.AddAddress(a)).To(Succeed())

	addrs := c.AddressesForIface(1, 0, 0, false, false)
	g.Expect(addrs).To(HaveLen(1))
}
