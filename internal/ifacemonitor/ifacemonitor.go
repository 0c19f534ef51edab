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

// Package ifacemonitor is the reconnecting link/address subscriber behind
// netlinkshim.Real (spec.md §4.8): it owns its own netlink sockets, runs a
// resync-then-stream reconnection loop, and emits transport.Delta values
// for link and address changes onto a sink channel supplied by its caller.
package ifacemonitor

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/pkg/ip"
)

// Config tunes the monitor's behaviour; the zero value is usable.
type Config struct {
	// ResyncInterval triggers a periodic full relist even while the
	// subscription sockets are healthy, guarding against missed events. <=0
	// disables it.
	ResyncInterval time.Duration
}

// Monitor runs the reconnect loop and writes translated deltas to its sink.
type Monitor struct {
	config           Config
	fatalErrCallback func(error)

	sink chan transport.Delta
	stop chan struct{}
	done chan struct{}
}

func New(config Config, fatalErrCallback func(error)) *Monitor {
	return &Monitor{
		config:           config,
		fatalErrCallback: fatalErrCallback,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// SetDeltaSink must be called before MonitorInterfaces; it's where link and
// address deltas are written.
func (m *Monitor) SetDeltaSink(sink chan transport.Delta) { m.sink = sink }

// MonitorInterfaces runs the reconnect-and-resync loop until Stop is called.
// Grounded on ifacemonitor.MonitorInterfaces's reconnection shape: resync,
// then stream until the subscription breaks, then reconnect.
func (m *Monitor) MonitorInterfaces() {
	defer close(m.done)
	log.Info("Interface/address monitor starting.")

	var resyncC <-chan time.Time
	if m.config.ResyncInterval > 0 {
		ticker := time.NewTicker(m.config.ResyncInterval)
		defer ticker.Stop()
		resyncC = ticker.C
	}

	for {
		linkUpdates := make(chan netlink.LinkUpdate, 16)
		addrUpdates := make(chan netlink.AddrUpdate, 16)
		cancel := make(chan struct{})

		if err := netlink.LinkSubscribe(linkUpdates, cancel); err != nil {
			m.fatalErrCallback(fmt.Errorf("subscribing to link updates: %w", err))
			select {
			case <-time.After(time.Second):
			case <-m.stop:
				return
			}
			continue
		}
		if err := netlink.AddrSubscribe(addrUpdates, cancel); err != nil {
			close(cancel)
			m.fatalErrCallback(fmt.Errorf("subscribing to address updates: %w", err))
			select {
			case <-time.After(time.Second):
			case <-m.stop:
				return
			}
			continue
		}

		if err := m.resync(); err != nil {
			log.WithError(err).Warn("Initial interface resync failed.")
		}

	readLoop:
		for {
			select {
			case u, ok := <-linkUpdates:
				if !ok {
					break readLoop
				}
				m.emitLinkUpdate(u)
			case u, ok := <-addrUpdates:
				if !ok {
					break readLoop
				}
				m.emitAddrUpdate(u)
			case <-resyncC:
				if err := m.resync(); err != nil {
					log.WithError(err).Warn("Periodic interface resync failed.")
				}
			case <-m.stop:
				close(cancel)
				return
			}
		}
		close(cancel)
		log.Warn("Interface monitor subscription broken, reconnecting.")
	}
}

func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}

func linkFromNetlink(l netlink.Link) (objmodel.Link, error) {
	attrs := l.Attrs()
	return objmodel.NewLinkBuilder().
		WithName(attrs.Name).
		WithIndex(attrs.Index).
		WithUp(attrs.Flags&net.FlagUp != 0).
		WithLoopback(attrs.Flags&net.FlagLoopback != 0).
		Build()
}

func (m *Monitor) emitLinkUpdate(u netlink.LinkUpdate) {
	link, err := linkFromNetlink(u.Link)
	if err != nil {
		return
	}
	action := transport.ActionAdd
	if u.Header.Type == unix.RTM_DELLINK {
		action = transport.ActionDelete
	}
	m.sink <- transport.Delta{Category: transport.CategoryLink, Action: action, Link: &link}
}

func addrFromNetlink(ifIndex int, ipNet net.IPNet) (*objmodel.Address, error) {
	family := objmodel.FamilyV4
	if ipNet.IP.To4() == nil {
		family = objmodel.FamilyV6
	}
	a, err := objmodel.NewAddressBuilder().
		WithIfaceIndex(ifIndex).
		WithPrefix(ip.CIDRFromIPNet(&ipNet)).
		WithFamily(family).
		WithScope(objmodel.ScopeUniverse).
		Build()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *Monitor) emitAddrUpdate(u netlink.AddrUpdate) {
	addr, err := addrFromNetlink(u.LinkIndex, u.LinkAddress)
	if err != nil {
		return
	}
	action := transport.ActionDelete
	if u.NewAddr {
		action = transport.ActionAdd
	}
	m.sink <- transport.Delta{Category: transport.CategoryAddr, Action: action, Address: addr}
}

func (m *Monitor) resync() error {
	links, err := netlink.LinkList()
	if err != nil {
		return fmt.Errorf("listing links: %w", err)
	}
	for _, l := range links {
		link, err := linkFromNetlink(l)
		if err != nil {
			continue
		}
		m.sink <- transport.Delta{Category: transport.CategoryLink, Action: transport.ActionGet, Link: &link}

		addrs, err := netlink.AddrList(l, netlink.FAMILY_ALL)
		if err != nil {
			log.WithError(err).WithField("iface", l.Attrs().Name).Warn("Failed to list addresses during resync.")
			continue
		}
		for _, a := range addrs {
			addr, err := addrFromNetlink(l.Attrs().Index, *a.IPNet)
			if err != nil {
				continue
			}
			m.sink <- transport.Delta{Category: transport.CategoryAddr, Action: transport.ActionGet, Address: addr}
		}
	}
	return nil
}
