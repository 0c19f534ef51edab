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
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/internal/transport/mocktransport"
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

func TestAgent_AddRouteThenGetCached(t *testing.T) {
	g := NewWithT(t)
	tp := mocktransport.New()
	a := New(tp)
	go a.Run()
	defer a.Stop()

	r := mustRoute(t, "10.0.0.0/24", 3)
	_, err := a.AddRoute(r).Wait()
	g.Expect(err).NotTo(HaveOccurred())

	cached, err := a.GetCachedUnicastRoutes(r.Protocol).Wait()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cached).To(HaveKey(r.Dst))
}

func TestAgent_UnsolicitedKernelEventUpdatesCache(t *testing.T) {
	g := NewWithT(t)
	tp := mocktransport.New()
	a := New(tp)
	go a.Run()
	defer a.Stop()

	r := mustRoute(t, "192.168.1.0/24", 5)
	r = r.WithValid(true)

	// Give the loop a moment to subscribe before pushing.
	g.Eventually(func() (int, error) {
		tp.Push(transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionAdd, Route: &r})
		n, err := a.GetRouteCount().Wait()
		return n, err
	}, time.Second).Should(Equal(1))
}

func TestAgent_GetAllLinksForcesFreshRefill(t *testing.T) {
	g := NewWithT(t)
	tp := mocktransport.New()
	a := New(tp)
	go a.Run()
	defer a.Stop()

	// Wait for the startup route refill before mutating what the transport
	// reports, so it doesn't race the assertion below.
	_, err := a.GetRouteCount().Wait()
	g.Expect(err).NotTo(HaveOccurred())

	tp.Links = []objmodel.Link{{Name: "eth0", Index: 7, Up: true}}

	links, err := a.GetAllLinks().Wait()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(links).To(HaveKey("eth0"))
}

func TestAgent_GetAllReachableNeighborsForcesFreshRefill(t *testing.T) {
	g := NewWithT(t)
	tp := mocktransport.New()
	a := New(tp)
	go a.Run()
	defer a.Stop()

	_, err := a.GetRouteCount().Wait()
	g.Expect(err).NotTo(HaveOccurred())

	tp.Neighbors = []objmodel.Neighbor{
		{IfaceName: "eth0", IP: ip.FromString("10.0.0.2"), State: objmodel.NeighStateReachable},
	}

	neighbors, err := a.GetAllReachableNeighbors().Wait()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(neighbors).To(HaveKey(objmodel.NeighborKey{IfaceName: "eth0", IP: "10.0.0.2"}))
}

func TestAgent_RunImmediatelyOrEnqueueDoesNotDeadlockSync(t *testing.T) {
	g := NewWithT(t)
	tp := mocktransport.New()
	a := New(tp)
	go a.Run()
	defer a.Stop()

	r := mustRoute(t, "10.0.0.0/24", 3)
	_, err := a.AddRoute(r).Wait()
	g.Expect(err).NotTo(HaveOccurred())

	_, err = a.SyncUnicastRoutes(r.Protocol, map[ip.CIDR]objmodel.Route{}).Wait()
	g.Expect(err).NotTo(HaveOccurred())

	n, err := a.GetRouteCount().Wait()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(0))
}
