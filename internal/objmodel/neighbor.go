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
	"fmt"
	"net"

	"github.com/commonnet/openr/pkg/ip"
)

var ErrNoNeighborDest = errors.New("neighbor has no destination IP")

// NeighState mirrors the kernel's NUD_* neighbor states closely enough for
// the cache's "reachable or not" decision.
type NeighState int

const (
	NeighStateNone NeighState = iota
	NeighStateIncomplete
	NeighStateReachable
	NeighStateStale
	NeighStateDelay
	NeighStateProbe
	NeighStateFailed
	NeighStateNoArp
	NeighStatePermanent
)

// Reachable reports whether the cache should retain an entry in this state.
// Per spec.md §3, only REACHABLE (and the kernel's "NOARP"/"PERMANENT"
// administratively-installed states, which never go stale) neighbors stay
// cached.
func (s NeighState) Reachable() bool {
	switch s {
	case NeighStateReachable, NeighStateNoArp, NeighStatePermanent:
		return true
	default:
		return false
	}
}

// Neighbor is an IP-to-link-layer-address mapping, keyed in the cache by
// (interface name, destination IP).
type Neighbor struct {
	IfaceName string
	IP        ip.Addr
	LLAddr    net.HardwareAddr
	State     NeighState
}

func (n Neighbor) Key() NeighborKey {
	return NeighborKey{IfaceName: n.IfaceName, IP: n.IP.String()}
}

type NeighborKey struct {
	IfaceName string
	IP        string
}

func (n Neighbor) String() string {
	return fmt.Sprintf("Neighbor{if=%s ip=%s lladdr=%s state=%d}", n.IfaceName, n.IP, n.LLAddr, n.State)
}

type NeighborBuilder struct {
	n Neighbor
}

func NewNeighborBuilder() *NeighborBuilder {
	return &NeighborBuilder{}
}

func (b *NeighborBuilder) WithIfaceName(name string) *NeighborBuilder {
	b.n.IfaceName = name
	return b
}

func (b *NeighborBuilder) WithIP(addr ip.Addr) *NeighborBuilder {
	b.n.IP = addr
	return b
}

func (b *NeighborBuilder) WithLLAddr(mac net.HardwareAddr) *NeighborBuilder {
	b.n.LLAddr = mac
	return b
}

func (b *NeighborBuilder) WithState(s NeighState) *NeighborBuilder {
	b.n.State = s
	return b
}

func (b *NeighborBuilder) Build() (Neighbor, error) {
	if b.n.IP == nil {
		return Neighbor{}, ErrNoNeighborDest
	}
	return b.n, nil
}
