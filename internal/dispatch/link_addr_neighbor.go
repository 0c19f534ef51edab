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
	"github.com/commonnet/openr/internal/transport"
)

func (d *Dispatcher) dispatchLink(delta transport.Delta, suppress bool) {
	if delta.Link == nil {
		d.logCxt.Warn("Link delta with nil payload, dropping.")
		return
	}
	l := *delta.Link

	if delta.Action == transport.ActionDelete {
		d.cache.DeleteLink(l.Name)
	} else {
		d.cache.SetLink(l)
	}

	// An interface going down (or disappearing) removes all of its
	// neighbor entries, and does so silently: no neighbor DELETE events
	// are synthesized to subscribers (spec.md §4.3, scenario 4).
	if !l.Up {
		d.cache.PurgeNeighborsForIface(l.Name)
	}

	d.emit(transport.CategoryLink, delta.Action)
	if !suppress {
		d.notify(l.Name, delta.Action, Variant{Kind: KindLink, Link: &l}, EventLink)
	}
}

func (d *Dispatcher) dispatchAddr(delta transport.Delta, suppress bool) {
	if delta.Address == nil {
		d.logCxt.Warn("Address delta with nil payload, dropping.")
		return
	}
	a := *delta.Address

	switch delta.Action {
	case transport.ActionDelete:
		d.cache.RemoveAddressFromLink(a)
	default:
		d.cache.AddAddressToLink(a)
	}

	ifaceName := d.cache.IfaceName(a.IfaceIndex)
	d.emit(transport.CategoryAddr, delta.Action)
	if !suppress {
		d.notify(ifaceName, delta.Action, Variant{Kind: KindAddress, Address: &a}, EventAddr)
	}
}

func (d *Dispatcher) dispatchNeighbor(delta transport.Delta, suppress bool) {
	if delta.Neighbor == nil {
		d.logCxt.Warn("Neighbor delta with nil payload, dropping.")
		return
	}
	n := *delta.Neighbor

	// Only reachable neighbors are retained; an unreachable one (or an
	// explicit DELETE) removes any prior entry for the same key.
	if delta.Action == transport.ActionDelete || !n.State.Reachable() {
		d.cache.DeleteNeighbor(n.Key())
	} else {
		d.cache.SetNeighbor(n)
	}

	d.emit(transport.CategoryNeighbor, delta.Action)
	if !suppress {
		d.notify(n.IfaceName, delta.Action, Variant{Kind: KindNeighbor, Neighbor: &n}, EventNeighbor)
	}
}
