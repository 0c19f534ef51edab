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
	"errors"

	"github.com/commonnet/openr/pkg/ip"
)

var (
	ErrNoDestination  = errors.New("route has neither a destination prefix nor an MPLS label")
	ErrBothDestAndMPLS = errors.New("route cannot have both a destination prefix and an MPLS label")
	ErrNoNextHop       = errors.New("next hop has neither an interface index nor a gateway")
	ErrNoEgressIface   = errors.New("next hop for multicast/link-scope route has no egress interface")
)

// RouteBuilder constructs a Route, applying the defaults from spec.md §4.1:
// type=unicast, table=main, protocol=99, scope=universe.
type RouteBuilder struct {
	r Route
}

func NewRouteBuilder() *RouteBuilder {
	return &RouteBuilder{r: Route{
		Type:     RouteTypeUnicast,
		Table:    RTTableMain,
		Protocol: DefaultProtocol,
		Scope:    ScopeUniverse,
		Valid:    true,
	}}
}

func (b *RouteBuilder) WithDestination(dst ip.CIDR) *RouteBuilder {
	b.r.Dst = dst
	return b
}

func (b *RouteBuilder) WithLabel(label uint32) *RouteBuilder {
	b.r.Label = &label
	return b
}

func (b *RouteBuilder) WithType(t RouteType) *RouteBuilder {
	b.r.Type = t
	return b
}

func (b *RouteBuilder) WithTable(table int) *RouteBuilder {
	b.r.Table = table
	return b
}

func (b *RouteBuilder) WithProtocol(proto int) *RouteBuilder {
	b.r.Protocol = proto
	return b
}

func (b *RouteBuilder) WithScope(s Scope) *RouteBuilder {
	b.r.Scope = s
	return b
}

func (b *RouteBuilder) WithFlags(flags uint32) *RouteBuilder {
	b.r.Flags = flags
	return b
}

func (b *RouteBuilder) WithTOS(tos int) *RouteBuilder {
	b.r.TOS = tos
	return b
}

func (b *RouteBuilder) WithPriority(p int) *RouteBuilder {
	b.r.Priority = p
	return b
}

func (b *RouteBuilder) AddNextHop(nh NextHop) *RouteBuilder {
	b.r.NextHops = append(b.r.NextHops, nh)
	return b
}

func (b *RouteBuilder) WithNextHops(nhs []NextHop) *RouteBuilder {
	b.r.NextHops = nhs
	return b
}

func (b *RouteBuilder) WithValid(valid bool) *RouteBuilder {
	b.r.Valid = valid
	return b
}

// Build validates and returns the Route. Validation here is structural only
// (destination present, next hops well-formed); the multicast/link-scope
// single-next-hop-with-interface rule is enforced by the event dispatcher
// and mutator, which have the category context needed to apply it (see
// SPEC_FULL.md §4.3/§4.4).
func (b *RouteBuilder) Build() (Route, error) {
	if b.r.Dst == nil && b.r.Label == nil {
		return Route{}, ErrNoDestination
	}
	if b.r.Dst != nil && b.r.Label != nil {
		return Route{}, ErrBothDestAndMPLS
	}
	for _, nh := range b.r.NextHops {
		if nh.IfaceIndex == 0 && nh.Gateway == nil {
			return Route{}, ErrNoNextHop
		}
	}
	return b.r, nil
}

// NewNextHopBuilder-style helper: NextHop has no hidden state worth a
// builder of its own, but we validate it the same way RouteBuilder does so
// callers assembling NextHops by hand get the same error.
func NewNextHop(ifaceIndex int, gateway ip.Addr, weight int) (NextHop, error) {
	if ifaceIndex == 0 && gateway == nil {
		return NextHop{}, ErrNoNextHop
	}
	return NextHop{IfaceIndex: ifaceIndex, Gateway: gateway, Weight: weight}, nil
}
