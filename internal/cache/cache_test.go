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

package cache

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/pkg/ip"
)

func mustRoute(t *testing.T, dst string, nh int) objmodel.Route {
	t.Helper()
	r, err := objmodel.NewRouteBuilder().
		WithDestination(ip.MustParseCIDROrIP(dst)).
		AddNextHop(objmodel.NextHop{IfaceIndex: nh}).
		Build()
	if err != nil {
		t.Fatalf("building route: %v", err)
	}
	return r
}

func TestUnicast_SetGetDeleteAndForProtocol(t *testing.T) {
	g := NewWithT(t)
	c := New()
	k := UnicastKey{Protocol: 99, Dst: ip.MustParseCIDROrIP("10.0.0.0/24")}
	c.SetUnicast(k, mustRoute(t, "10.0.0.0/24", 1))

	r, ok := c.GetUnicast(k)
	g.Expect(ok).To(BeTrue())
	g.Expect(r.Dst.String()).To(Equal("10.0.0.0/24"))

	g.Expect(c.UnicastForProtocol(99)).To(HaveLen(1))
	g.Expect(c.UnicastForProtocol(1)).To(BeEmpty())
	g.Expect(c.UnicastCount()).To(Equal(1))

	c.DeleteUnicast(k)
	_, ok = c.GetUnicast(k)
	g.Expect(ok).To(BeFalse())
}

func TestReplaceLinkScopeForProtocol_OnlyTouchesThatProtocol(t *testing.T) {
	g := NewWithT(t)
	c := New()
	kept := IfaceScopedKey{Protocol: 5, Dst: ip.MustParseCIDROrIP("172.16.0.0/24"), IfaceName: "eth1"}
	c.SetLinkScope(kept, mustRoute(t, "172.16.0.0/24", 2))

	old := IfaceScopedKey{Protocol: 99, Dst: ip.MustParseCIDROrIP("10.0.0.0/24"), IfaceName: "eth0"}
	c.SetLinkScope(old, mustRoute(t, "10.0.0.0/24", 1))

	next := IfaceScopedKey{Protocol: 99, Dst: ip.MustParseCIDROrIP("10.1.0.0/24"), IfaceName: "eth0"}
	c.ReplaceLinkScopeForProtocol(99, map[IfaceScopedKey]objmodel.Route{next: mustRoute(t, "10.1.0.0/24", 1)})

	_, ok := c.GetLinkScope(old)
	g.Expect(ok).To(BeFalse())
	_, ok = c.GetLinkScope(next)
	g.Expect(ok).To(BeTrue())
	_, ok = c.GetLinkScope(kept)
	g.Expect(ok).To(BeTrue(), "protocol 5 must be untouched by a protocol-99 replace")
}

func TestLinks_SetGetByNameAndIndex(t *testing.T) {
	g := NewWithT(t)
	c := New()
	l, err := objmodel.NewLinkBuilder().WithName("eth0").WithIndex(3).WithUp(true).Build()
	g.Expect(err).NotTo(HaveOccurred())
	c.SetLink(l)

	got, ok := c.GetLinkByIndex(3)
	g.Expect(ok).To(BeTrue())
	g.Expect(got.Name).To(Equal("eth0"))

	idx, ok := c.IfaceIndex("eth0")
	g.Expect(ok).To(BeTrue())
	g.Expect(idx).To(Equal(3))

	c.DeleteLink("eth0")
	_, ok = c.GetLinkByName("eth0")
	g.Expect(ok).To(BeFalse())
}

func TestLinks_SetLinkMovingIndexDropsStaleIndexEntry(t *testing.T) {
	g := NewWithT(t)
	c := New()
	l1, _ := objmodel.NewLinkBuilder().WithName("eth0").WithIndex(3).Build()
	c.SetLink(l1)

	l2, _ := objmodel.NewLinkBuilder().WithName("eth0").WithIndex(4).Build()
	c.SetLink(l2)

	_, ok := c.GetLinkByIndex(3)
	g.Expect(ok).To(BeFalse())
	got, ok := c.GetLinkByIndex(4)
	g.Expect(ok).To(BeTrue())
	g.Expect(got.Name).To(Equal("eth0"))
}

func TestLoopbackIfaceIndex_FindsTheLoopbackLink(t *testing.T) {
	g := NewWithT(t)
	c := New()
	eth0, _ := objmodel.NewLinkBuilder().WithName("eth0").WithIndex(1).Build()
	lo, _ := objmodel.NewLinkBuilder().WithName("lo").WithIndex(2).WithLoopback(true).Build()
	c.SetLink(eth0)
	c.SetLink(lo)

	idx, ok := c.LoopbackIfaceIndex()
	g.Expect(ok).To(BeTrue())
	g.Expect(idx).To(Equal(2))
}

func TestAddAddressToLink_UpdatesLinkPrefixSet(t *testing.T) {
	g := NewWithT(t)
	c := New()
	l, _ := objmodel.NewLinkBuilder().WithName("eth0").WithIndex(3).Build()
	c.SetLink(l)

	addr, err := objmodel.NewAddressBuilder().
		WithIfaceIndex(3).
		WithPrefix(ip.MustParseCIDROrIP("10.0.0.1/32")).
		Build()
	g.Expect(err).NotTo(HaveOccurred())

	c.AddAddressToLink(addr)
	got, _ := c.GetLinkByIndex(3)
	g.Expect(got.Prefixes.Len()).To(Equal(1))

	c.RemoveAddressFromLink(addr)
	got, _ = c.GetLinkByIndex(3)
	g.Expect(got.Prefixes.Len()).To(Equal(0))
}

func TestAddressesForIface_FiltersByFamilyAndScope(t *testing.T) {
	g := NewWithT(t)
	c := New()
	v4, _ := objmodel.NewAddressBuilder().WithIfaceIndex(1).WithPrefix(ip.MustParseCIDROrIP("10.0.0.1/32")).WithScope(objmodel.ScopeUniverse).Build()
	v6, _ := objmodel.NewAddressBuilder().WithIfaceIndex(1).WithPrefix(ip.MustParseCIDROrIP("fd00::1/128")).WithScope(objmodel.ScopeUniverse).Build()
	c.AddAddressToLink(v4)
	c.AddAddressToLink(v6)

	only4 := c.AddressesForIface(1, objmodel.FamilyV4, objmodel.ScopeUniverse, true, false)
	g.Expect(only4).To(HaveLen(1))
	g.Expect(only4[0].Family).To(Equal(objmodel.FamilyV4))

	all := c.AddressesForIface(1, 0, 0, false, false)
	g.Expect(all).To(HaveLen(2))
}

func TestNeighbors_PurgeForIfaceRemovesOnlyMatchingEntries(t *testing.T) {
	g := NewWithT(t)
	c := New()
	n1, _ := objmodel.NewNeighborBuilder().WithIfaceName("eth0").WithIP(ip.FromString("10.0.0.1")).Build()
	n2, _ := objmodel.NewNeighborBuilder().WithIfaceName("eth1").WithIP(ip.FromString("10.0.0.2")).Build()
	c.SetNeighbor(n1)
	c.SetNeighbor(n2)

	removed := c.PurgeNeighborsForIface("eth0")
	g.Expect(removed).To(HaveLen(1))
	g.Expect(c.AllReachableNeighbors()).To(HaveLen(1))
	_, ok := c.GetNeighbor(n2.Key())
	g.Expect(ok).To(BeTrue())
}

func TestMPLS_SetGetDeleteAndForProtocol(t *testing.T) {
	g := NewWithT(t)
	c := New()
	r, err := objmodel.NewRouteBuilder().WithLabel(16003).WithProtocol(99).AddNextHop(objmodel.NextHop{IfaceIndex: 4}).Build()
	g.Expect(err).NotTo(HaveOccurred())
	key := MPLSKey{Protocol: 99, Label: 16003}
	c.SetMPLS(key, r)

	g.Expect(c.MPLSCount()).To(Equal(1))
	g.Expect(c.MPLSForProtocol(99)).To(HaveKey(uint32(16003)))

	c.DeleteMPLS(key)
	g.Expect(c.MPLSCount()).To(Equal(0))
}
