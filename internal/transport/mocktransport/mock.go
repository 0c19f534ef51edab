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

// Package mocktransport is an in-memory stand-in for the kernel, used in
// unit tests of the mutator and reconciler. It is grounded on the shape of
// felix/netlinkshim/mocknetlink: a fake dataplane with injectable failures
// and a call log for assertions.
package mocktransport

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
)

type Call struct {
	Op    string
	Route objmodel.Route
	Addr  objmodel.Address
}

// Mock is a fake transport.Transport. Build one with New: the zero value's
// internal maps are nil.
type Mock struct {
	mu sync.Mutex

	Caps transport.Capabilities

	// FailNextAddRoute/FailNextDeleteRoute, if set, is returned (and then
	// cleared) by the next matching call.
	FailNextAddRoute    error
	FailNextDeleteRoute error
	FailNextAddLabel    error
	FailNextDeleteLabel error
	FailNextAddAddr     error
	FailNextDeleteAddr  error

	// Links and Neighbors back the link/neighbor branches of RefillCache.
	// Tests populate them directly; unlike routes/addrs there are no
	// Add/Delete mutator paths for these categories to keep them warm
	// through, since links and neighbors are observed, not mutated.
	Links     []objmodel.Link
	Neighbors []objmodel.Neighbor

	routes map[string]objmodel.Route // keyed by routeKey(r)
	labels map[uint32]objmodel.Route
	addrs  map[string]objmodel.Address
	Calls  []Call
	sub    chan transport.Delta
}

func New() *Mock {
	return &Mock{
		routes: map[string]objmodel.Route{},
		labels: map[uint32]objmodel.Route{},
		addrs:  map[string]objmodel.Address{},
	}
}

func routeKey(r objmodel.Route) string {
	if r.Dst != nil {
		return r.Dst.String()
	}
	return "<mpls>"
}

func (m *Mock) Capabilities() transport.Capabilities { return m.Caps }

func (m *Mock) Subscribe() (<-chan transport.Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub == nil {
		m.sub = make(chan transport.Delta, 16)
	}
	return m.sub, nil
}

// Push delivers an unsolicited delta to the subscription channel, as the
// kernel would.
func (m *Mock) Push(d transport.Delta) {
	m.mu.Lock()
	ch := m.sub
	m.mu.Unlock()
	if ch != nil {
		ch <- d
	}
}

func (m *Mock) AddRoute(r objmodel.Route, flags transport.Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: "AddRoute", Route: r})
	if m.FailNextAddRoute != nil {
		err := m.FailNextAddRoute
		m.FailNextAddRoute = nil
		return err
	}
	m.routes[routeKey(r)] = r
	return nil
}

func (m *Mock) DeleteRoute(r objmodel.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: "DeleteRoute", Route: r})
	if m.FailNextDeleteRoute != nil {
		err := m.FailNextDeleteRoute
		m.FailNextDeleteRoute = nil
		return err
	}
	key := routeKey(r)
	if _, ok := m.routes[key]; !ok {
		return unix.ESRCH
	}
	delete(m.routes, key)
	return nil
}

func (m *Mock) AddLabelRoute(r objmodel.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: "AddLabelRoute", Route: r})
	if m.FailNextAddLabel != nil {
		err := m.FailNextAddLabel
		m.FailNextAddLabel = nil
		return err
	}
	m.labels[*r.Label] = r
	return nil
}

func (m *Mock) DeleteLabelRoute(r objmodel.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: "DeleteLabelRoute", Route: r})
	if m.FailNextDeleteLabel != nil {
		err := m.FailNextDeleteLabel
		m.FailNextDeleteLabel = nil
		return err
	}
	if _, ok := m.labels[*r.Label]; !ok {
		return unix.ESRCH
	}
	delete(m.labels, *r.Label)
	return nil
}

func (m *Mock) AddAddress(a objmodel.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: "AddAddress", Addr: a})
	if m.FailNextAddAddr != nil {
		err := m.FailNextAddAddr
		m.FailNextAddAddr = nil
		return err
	}
	key := a.Prefix.String()
	if _, ok := m.addrs[key]; ok {
		return unix.EEXIST
	}
	m.addrs[key] = a
	return nil
}

func (m *Mock) DeleteAddress(a objmodel.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: "DeleteAddress", Addr: a})
	if m.FailNextDeleteAddr != nil {
		err := m.FailNextDeleteAddr
		m.FailNextDeleteAddr = nil
		return err
	}
	key := a.Prefix.String()
	if _, ok := m.addrs[key]; !ok {
		return unix.EADDRNOTAVAIL
	}
	delete(m.addrs, key)
	return nil
}

func (m *Mock) RefillCache(cat transport.Category) ([]transport.Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []transport.Delta
	switch cat {
	case transport.CategoryRoute:
		for _, r := range m.routes {
			r := r
			out = append(out, transport.Delta{Category: transport.CategoryRoute, Action: transport.ActionGet, Route: &r})
		}
	case transport.CategoryLink:
		for _, l := range m.Links {
			l := l
			out = append(out, transport.Delta{Category: transport.CategoryLink, Action: transport.ActionGet, Link: &l})
		}
	case transport.CategoryAddr:
		for _, a := range m.addrs {
			a := a
			out = append(out, transport.Delta{Category: transport.CategoryAddr, Action: transport.ActionGet, Address: &a})
		}
	case transport.CategoryNeighbor:
		for _, n := range m.Neighbors {
			n := n
			out = append(out, transport.Delta{Category: transport.CategoryNeighbor, Action: transport.ActionGet, Neighbor: &n})
		}
	}
	return out, nil
}

func (m *Mock) Foreach(cat transport.Category, predicate func(transport.Delta) bool, visit func(transport.Delta)) error {
	deltas, err := m.RefillCache(cat)
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

func (m *Mock) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		close(m.sub)
		m.sub = nil
	}
}

var _ transport.Transport = (*Mock)(nil)
