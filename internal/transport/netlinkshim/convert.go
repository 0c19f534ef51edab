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

package netlinkshim

import (
	"net"

	"github.com/vishvananda/netlink"

	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/pkg/ip"
)

func toNetlinkRoute(r objmodel.Route) *netlink.Route {
	nr := &netlink.Route{
		Table:    r.Table,
		Protocol: netlink.RouteProtocol(r.Protocol),
		Scope:    netlink.Scope(r.Scope),
		Flags:    int(r.Flags),
		Tos:      r.TOS,
		Priority: r.Priority,
	}
	switch r.Type {
	case objmodel.RouteTypeMulticast:
		nr.Type = syscallRTNMulticast
	case objmodel.RouteTypeBlackhole:
		nr.Type = syscallRTNBlackhole
	default:
		nr.Type = syscallRTNUnicast
	}
	if r.Dst != nil {
		ipNet := r.Dst.ToIPNet()
		nr.Dst = &ipNet
	}
	if len(r.NextHops) == 1 {
		nh := r.NextHops[0]
		nr.LinkIndex = nh.IfaceIndex
		if nh.Gateway != nil {
			nr.Gw = nh.Gateway.AsNetIP()
		}
	} else if len(r.NextHops) > 1 {
		for _, nh := range r.NextHops {
			mp := &netlink.NexthopInfo{LinkIndex: nh.IfaceIndex, Hops: nh.Weight}
			if nh.Gateway != nil {
				mp.Gw = nh.Gateway.AsNetIP()
			}
			nr.MultiPath = append(nr.MultiPath, mp)
		}
	}
	return nr
}

// Kernel route-type constants, named locally so this file doesn't need to
// import syscall just for three integers already mirrored by netlink.
const (
	syscallRTNUnicast   = 1
	syscallRTNBlackhole = 6
	syscallRTNMulticast = 5
)

func fromNetlinkRoute(nr netlink.Route) objmodel.Route {
	b := objmodel.NewRouteBuilder().
		WithTable(nr.Table).
		WithProtocol(int(nr.Protocol)).
		WithScope(objmodel.Scope(nr.Scope)).
		WithFlags(uint32(nr.Flags)).
		WithTOS(nr.Tos).
		WithPriority(nr.Priority)

	switch nr.Type {
	case syscallRTNMulticast:
		b = b.WithType(objmodel.RouteTypeMulticast)
	case syscallRTNBlackhole:
		b = b.WithType(objmodel.RouteTypeBlackhole)
	default:
		b = b.WithType(objmodel.RouteTypeUnicast)
	}

	if nr.Dst != nil {
		b = b.WithDestination(ip.CIDRFromIPNet(nr.Dst))
	}

	if len(nr.MultiPath) > 0 {
		for _, mp := range nr.MultiPath {
			nh := objmodel.NextHop{IfaceIndex: mp.LinkIndex, Weight: mp.Hops}
			if mp.Gw != nil {
				nh.Gateway = ip.FromNetIP(mp.Gw)
			}
			b = b.AddNextHop(nh)
		}
	} else if nr.LinkIndex != 0 || nr.Gw != nil {
		nh := objmodel.NextHop{IfaceIndex: nr.LinkIndex}
		if nr.Gw != nil {
			nh.Gateway = ip.FromNetIP(nr.Gw)
		}
		b = b.AddNextHop(nh)
	}

	r, err := b.Build()
	if err != nil {
		// A route with neither a destination nor a usable next hop isn't
		// representable; the zero Route returned here has Table 0, so the
		// dispatcher's main-table filter drops it.
		return objmodel.Route{}
	}
	return r
}

func toNetlinkAddr(a objmodel.Address) *netlink.Addr {
	ipNet := a.Prefix.ToIPNet()
	return &netlink.Addr{IPNet: &ipNet, Scope: int(a.Scope)}
}

func fromNetlinkAddr(ifIndex int, na netlink.Addr) objmodel.Address {
	family := objmodel.FamilyV4
	if na.IP.To4() == nil {
		family = objmodel.FamilyV6
	}
	a, _ := objmodel.NewAddressBuilder().
		WithIfaceIndex(ifIndex).
		WithPrefix(ip.CIDRFromIPNet(na.IPNet)).
		WithScope(objmodel.Scope(na.Scope)).
		WithFamily(family).
		Build()
	return a
}

func fromNetlinkLink(l netlink.Link) objmodel.Link {
	attrs := l.Attrs()
	b := objmodel.NewLinkBuilder().
		WithName(attrs.Name).
		WithIndex(attrs.Index).
		WithUp(attrs.Flags&net.FlagUp != 0).
		WithLoopback(attrs.Flags&net.FlagLoopback != 0)
	link, _ := b.Build()
	return link
}

func fromNetlinkNeigh(ifaceName string, n netlink.Neigh) objmodel.Neighbor {
	b := objmodel.NewNeighborBuilder().
		WithIfaceName(ifaceName).
		WithState(stateFromNetlink(n.State))
	if n.IP != nil {
		b = b.WithIP(ip.FromNetIP(n.IP))
	}
	if len(n.HardwareAddr) > 0 {
		b = b.WithLLAddr(n.HardwareAddr)
	}
	nb, _ := b.Build()
	return nb
}

func stateFromNetlink(state int) objmodel.NeighState {
	switch state {
	case netlink.NUD_INCOMPLETE:
		return objmodel.NeighStateIncomplete
	case netlink.NUD_REACHABLE:
		return objmodel.NeighStateReachable
	case netlink.NUD_STALE:
		return objmodel.NeighStateStale
	case netlink.NUD_DELAY:
		return objmodel.NeighStateDelay
	case netlink.NUD_PROBE:
		return objmodel.NeighStateProbe
	case netlink.NUD_FAILED:
		return objmodel.NeighStateFailed
	case netlink.NUD_NOARP:
		return objmodel.NeighStateNoArp
	case netlink.NUD_PERMANENT:
		return objmodel.NeighStatePermanent
	default:
		return objmodel.NeighStateNone
	}
}
