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

// Package transport defines the core's abstract view of the netlink
// collaborator (spec.md §6.1): a push interface delivering parsed kernel
// deltas, and a request interface for issuing mutations. The core never
// parses netlink wire frames itself; that's the concrete implementations'
// job (internal/transport/netlinkshim, internal/transport/msgshim).
package transport

import (
	"golang.org/x/sys/unix"

	"github.com/commonnet/openr/internal/objmodel"
)

type Category string

const (
	CategoryRoute    Category = "route"
	CategoryLink     Category = "link"
	CategoryAddr     Category = "addr"
	CategoryNeighbor Category = "neighbor"
)

type Action string

const (
	ActionAdd    Action = "ADD"
	ActionChange Action = "CHANGE"
	ActionDelete Action = "DELETE"
	ActionGet    Action = "GET"
)

// Delta is one parsed kernel notification (or a refill/GET entry). Exactly
// one of the typed fields is set, matching the object's Category.
type Delta struct {
	Category Category
	Action   Action

	Route    *objmodel.Route
	Link     *objmodel.Link
	Address  *objmodel.Address
	Neighbor *objmodel.Neighbor
}

// Tolerated error sentinels (spec.md §6.1, §7): the core inspects these by
// identity via errors.Is; every other error from the transport is opaque.
var (
	// ErrObjNotFound is returned by a delete when the kernel has already
	// withdrawn the object (e.g. its egress interface vanished).
	ErrObjNotFound = unix.ESRCH
	// ErrExist is returned by an address add when the address is already
	// present.
	ErrExist = unix.EEXIST
	// ErrNoAddr is returned by an address delete when the address is
	// already gone.
	ErrNoAddr = unix.EADDRNOTAVAIL
)

// Flags mirror netlink's NLM_F_* request flags,
// kept as a thin int alias so the core doesn't need to import netlink.
type Flags int

const (
	FlagReplace Flags = 1 << iota
	FlagExcl
	FlagCreate
	FlagAppend
)

// Capabilities reports which optional transport features are available.
// MPLS mutation is feature-flagged on the presence of the message-mode
// transport (spec.md §4.4, §9 "dual-transport capability flag").
type Capabilities struct {
	MPLS bool
}

// Transport is the abstract duplex netlink collaborator. Concrete
// implementations: netlinkshim.Real (vishvananda/netlink, for everything but
// MPLS) and msgshim.MPLS (raw mdlayher/netlink messages, for MPLS label
// routes). Tests use mocktransport.Mock.
type Transport interface {
	// Subscribe returns the push channel of unsolicited kernel deltas. It
	// may be called once; the channel is closed if the underlying socket
	// is lost (callers are expected to resubscribe).
	Subscribe() (<-chan Delta, error)

	AddRoute(r objmodel.Route, flags Flags) error
	DeleteRoute(r objmodel.Route) error
	AddLabelRoute(r objmodel.Route) error
	DeleteLabelRoute(r objmodel.Route) error

	AddAddress(a objmodel.Address) error
	DeleteAddress(a objmodel.Address) error

	// RefillCache performs a bulk pull of one category, used to seed or
	// re-seed the cache (spec.md §4.7).
	RefillCache(cat Category) ([]Delta, error)

	// Foreach visits every object of one category matching predicate.
	Foreach(cat Category, predicate func(Delta) bool, visit func(Delta)) error

	Capabilities() Capabilities

	Close()
}
