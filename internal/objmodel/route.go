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

package objmodel

import (
	"fmt"

	"github.com/commonnet/openr/pkg/ip"
)

// RouteType mirrors the handful of kernel route types the core cares about.
type RouteType int

const (
	RouteTypeUnicast RouteType = iota
	RouteTypeMulticast
	RouteTypeBlackhole
)

func (t RouteType) String() string {
	switch t {
	case RouteTypeMulticast:
		return "multicast"
	case RouteTypeBlackhole:
		return "blackhole"
	default:
		return "unicast"
	}
}

// Scope mirrors netlink's route/address scope values. The constants carry
// the kernel's own unix.RT_SCOPE_* numbers, so the netlink transport
// converts to and from them with a plain cast.
type Scope int

const (
	ScopeUniverse Scope = 0
	ScopeSite     Scope = 200
	ScopeLink     Scope = 253
	ScopeHost     Scope = 254
	ScopeNoWhere  Scope = 255
)

// RTTableMain is the only table the cache tracks, per the "main table only"
// invariant.
const RTTableMain = 254

// DefaultProtocol is the originator tag this agent stamps on routes it adds,
// letting other control planes share the FIB without stepping on each other.
const DefaultProtocol = 99

// CLONED mirrors unix.RTM_F_CLONED; routes bearing it never enter the cache.
const FlagCloned uint32 = 0x200

// NextHop is one leg of a (possibly multipath) route. At least one of
// IfaceIndex or Gateway must be set; RouteBuilder.Build and NewNextHop
// enforce this.
type NextHop struct {
	IfaceIndex int
	Gateway    ip.Addr
	Weight     int
}

func (n NextHop) Equal(o NextHop) bool {
	if n.IfaceIndex != o.IfaceIndex || n.Weight != o.Weight {
		return false
	}
	return addrEqual(n.Gateway, o.Gateway)
}

func (n NextHop) String() string {
	gw := "-"
	if n.Gateway != nil {
		gw = n.Gateway.String()
	}
	return fmt.Sprintf("NextHop{if=%d gw=%s weight=%d}", n.IfaceIndex, gw, n.Weight)
}

func addrEqual(a, b ip.Addr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Route is the core's in-memory representation of one FIB entry, unicast,
// multicast, link-scope or MPLS label. Route is immutable once built; use
// RouteBuilder to construct one and WithValid to flip the validity bit on a
// copy (the only field allowed to vary after construction).
type Route struct {
	// Dst is the destination prefix. Unset (nil) for MPLS label routes.
	Dst ip.CIDR
	// Label is set (non-nil) only for MPLS label routes, in which case Dst
	// is nil.
	Label *uint32

	Type     RouteType
	Table    int
	Protocol int
	Scope    Scope
	Flags    uint32
	TOS      int
	Priority int

	NextHops []NextHop

	// Valid is false only on the pre-delete snapshot handed to subscribers
	// for a DELETE event; it is not part of Equal.
	Valid bool
}

// IsMPLS reports whether this is a label route rather than a prefix route.
func (r Route) IsMPLS() bool { return r.Label != nil }

// Equal performs structural comparison over every field except Valid,
// including next-hop order (see DESIGN.md: next-hop ordering is preserved as
// significant for safety, per the open question in spec.md).
func (r Route) Equal(o Route) bool {
	if r.Type != o.Type || r.Table != o.Table || r.Protocol != o.Protocol ||
		r.Scope != o.Scope || r.Flags != o.Flags || r.TOS != o.TOS || r.Priority != o.Priority {
		return false
	}
	if !labelEqual(r.Label, o.Label) {
		return false
	}
	if !cidrEqual(r.Dst, o.Dst) {
		return false
	}
	if len(r.NextHops) != len(o.NextHops) {
		return false
	}
	for i := range r.NextHops {
		if !r.NextHops[i].Equal(o.NextHops[i]) {
			return false
		}
	}
	return true
}

func labelEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cidrEqual(a, b ip.CIDR) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// WithValid returns a copy of r with the validity bit set as requested.
func (r Route) WithValid(valid bool) Route {
	r.Valid = valid
	return r
}

func (r Route) String() string {
	dest := "<mpls>"
	if r.Dst != nil {
		dest = r.Dst.String()
	} else if r.Label != nil {
		dest = fmt.Sprintf("label:%d", *r.Label)
	}
	return fmt.Sprintf("Route{dst=%s type=%s proto=%d scope=%d nhops=%d valid=%t}",
		dest, r.Type, r.Protocol, r.Scope, len(r.NextHops), r.Valid)
}
