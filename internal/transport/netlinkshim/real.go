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
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/commonnet/openr/internal/ifacemonitor"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
)

// recvBufferBytes enlarges the subscription sockets' receive buffers per
// spec.md §4.7, to tolerate bursts without the kernel dropping
// notifications.
const recvBufferBytes = 2 * 1024 * 1024

// Real is a transport.Transport backed by a live netlink socket. MPLS label
// routes are not supported here: AddLabelRoute/DeleteLabelRoute always
// return an error, and Capabilities().MPLS is false, so the mutator treats
// MPLS mutation as a no-op unless msgshim.MPLS is composed in instead (see
// internal/transport/msgshim).
type Real struct {
	handles *handleManager

	mu  sync.Mutex
	sub chan transport.Delta

	monitor *ifacemonitor.Monitor
}

func NewReal() *Real {
	return &Real{handles: newHandleManager()}
}

func (r *Real) Capabilities() transport.Capabilities { return transport.Capabilities{MPLS: false} }

func (r *Real) Subscribe() (<-chan transport.Delta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return r.sub, nil
	}

	out := make(chan transport.Delta, 256)
	r.sub = out

	routeUpdates := make(chan netlink.RouteUpdate, 64)
	neighUpdates := make(chan netlink.NeighUpdate, 64)
	done := make(chan struct{})

	if err := netlink.RouteSubscribeWithOptions(routeUpdates, done, netlink.RouteSubscribeOptions{
		ListExisting: false, ReceiveBufferSize: recvBufferBytes,
	}); err != nil {
		return nil, fmt.Errorf("subscribing to route updates: %w", err)
	}
	if err := netlink.NeighSubscribeWithOptions(neighUpdates, done, netlink.NeighSubscribeOptions{
		ListExisting: false, ReceiveBufferSize: recvBufferBytes,
	}); err != nil {
		return nil, fmt.Errorf("subscribing to neighbor updates: %w", err)
	}

	r.monitor = ifacemonitor.New(ifacemonitor.Config{}, func(err error) {
		log.WithError(err).Error("Interface monitor hit a fatal error.")
	})
	linkDeltas := make(chan transport.Delta, 64)
	r.monitor.SetDeltaSink(linkDeltas)
	go r.monitor.MonitorInterfaces()

	go r.pump(routeUpdates, neighUpdates, linkDeltas, out)

	return out, nil
}

func (r *Real) pump(routeUpdates <-chan netlink.RouteUpdate, neighUpdates <-chan netlink.NeighUpdate, linkDeltas <-chan transport.Delta, out chan<- transport.Delta) {
	for {
		select {
		case u, ok := <-routeUpdates:
			if !ok {
				close(out)
				return
			}
			route := fromNetlinkRoute(u.Route)
			action := actionFromRouteUpdateType(u.Type)
			out <- transport.Delta{Category: transport.CategoryRoute, Action: action, Route: &route}
		case u, ok := <-neighUpdates:
			if !ok {
				close(out)
				return
			}
			n := fromNetlinkNeigh(r.resolveIfaceName(u.Neigh.LinkIndex), u.Neigh)
			action := transport.ActionChange
			if u.Type == unix.RTM_DELNEIGH {
				action = transport.ActionDelete
			}
			out <- transport.Delta{Category: transport.CategoryNeighbor, Action: action, Neighbor: &n}
		case d, ok := <-linkDeltas:
			if !ok {
				continue
			}
			out <- d
		}
	}
}

// resolveIfaceName looks up the interface name for a neighbor's LinkIndex.
// Neighbors carry only the index on the wire; the cache indexes them by
// name (spec.md §4.3) so PurgeNeighborsForIface can match them. A lookup
// failure (race with an interface going away) degrades to "" rather than
// dropping the neighbor.
func (r *Real) resolveIfaceName(index int) string {
	h, err := r.handles.Handle()
	if err != nil {
		return ""
	}
	link, err := h.LinkByIndex(index)
	if err != nil {
		return ""
	}
	return link.Attrs().Name
}

func actionFromRouteUpdateType(t uint16) transport.Action {
	if t == unix.RTM_DELROUTE {
		return transport.ActionDelete
	}
	return transport.ActionAdd
}

func (r *Real) AddRoute(route objmodel.Route, flags transport.Flags) error {
	h, err := r.handles.Handle()
	if err != nil {
		return err
	}
	nr := toNetlinkRoute(route)
	if flags&transport.FlagReplace != 0 {
		err = h.RouteReplace(nr)
	} else {
		err = h.RouteAdd(nr)
	}
	if err != nil {
		r.handles.MarkForReopen(err)
	}
	return err
}

func (r *Real) DeleteRoute(route objmodel.Route) error {
	h, err := r.handles.Handle()
	if err != nil {
		return err
	}
	err = h.RouteDel(toNetlinkRoute(route))
	if err != nil {
		r.handles.MarkForReopen(err)
	}
	return err
}

var errNoMPLSCapability = errors.New("netlinkshim.Real does not support MPLS label routes; use msgshim.MPLS")

func (r *Real) AddLabelRoute(objmodel.Route) error    { return errNoMPLSCapability }
func (r *Real) DeleteLabelRoute(objmodel.Route) error { return errNoMPLSCapability }

func (r *Real) AddAddress(addr objmodel.Address) error {
	h, err := r.handles.Handle()
	if err != nil {
		return err
	}
	link, err := h.LinkByIndex(addr.IfaceIndex)
	if err != nil {
		return err
	}
	err = h.AddrAdd(link, toNetlinkAddr(addr))
	if err != nil {
		r.handles.MarkForReopen(err)
	}
	return err
}

func (r *Real) DeleteAddress(addr objmodel.Address) error {
	h, err := r.handles.Handle()
	if err != nil {
		return err
	}
	link, err := h.LinkByIndex(addr.IfaceIndex)
	if err != nil {
		return err
	}
	err = h.AddrDel(link, toNetlinkAddr(addr))
	if err != nil {
		r.handles.MarkForReopen(err)
	}
	return err
}

func (r *Real) RefillCache(cat transport.Category) ([]transport.Delta, error) {
	h, err := r.handles.Handle()
	if err != nil {
		return nil, err
	}

	var out []transport.Delta
	switch cat {
	case transport.CategoryRoute:
		routes, err := h.RouteListFiltered(0, &netlink.Route{Table: objmodel.RTTableMain}, netlink.RT_FILTER_TABLE)
		if err != nil {
			return nil, fmt.Errorf("listing routes: %w", err)
		}
		for _, nr := range routes {
			route := fromNetlinkRoute(nr)
			out = append(out, transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionGet, Route: &route})
		}
	case transport.CategoryLink:
		links, err := h.LinkList()
		if err != nil {
			return nil, fmt.Errorf("listing links: %w", err)
		}
		for _, l := range links {
			link := fromNetlinkLink(l)
			out = append(out, transport.Delta{Category: transport.CategoryLink, Action: transport.ActionGet, Link: &link})
		}
	case transport.CategoryAddr:
		links, err := h.LinkList()
		if err != nil {
			return nil, fmt.Errorf("listing links for address refill: %w", err)
		}
		for _, l := range links {
			addrs, err := h.AddrList(l, netlink.FAMILY_ALL)
			if err != nil {
				continue
			}
			for _, na := range addrs {
				a := fromNetlinkAddr(l.Attrs().Index, na)
				out = append(out, transport.Delta{Category: transport.CategoryAddr, Action: transport.ActionGet, Address: &a})
			}
		}
	case transport.CategoryNeighbor:
		neighs, err := h.NeighList(0, 0)
		if err != nil {
			return nil, fmt.Errorf("listing neighbors: %w", err)
		}
		for _, nn := range neighs {
			name := ""
			if link, err := h.LinkByIndex(nn.LinkIndex); err == nil {
				name = link.Attrs().Name
			}
			n := fromNetlinkNeigh(name, nn)
			out = append(out, transport.Delta{Category: transport.CategoryNeighbor, Action: transport.ActionGet, Neighbor: &n})
		}
	default:
		return nil, fmt.Errorf("unknown category %q", cat)
	}
	return out, nil
}

func (r *Real) Foreach(cat transport.Category, predicate func(transport.Delta) bool, visit func(transport.Delta)) error {
	deltas, err := r.RefillCache(cat)
	if err != nil {
		return err
	}
	for _, d := range deltas {
		if predicate == nil || predicate(d) {
			visit(d)
		}
	}
	return nil
}

func (r *Real) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.monitor != nil {
		r.monitor.Stop()
	}
	if r.sub != nil {
		r.sub = nil
	}
}
