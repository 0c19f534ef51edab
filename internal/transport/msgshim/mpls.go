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

// Package msgshim implements transport.Transport's MPLS label-route methods
// by hand-building rtnetlink RTM_NEWROUTE/RTM_DELROUTE messages over a raw
// mdlayher/netlink connection, rather than going through vishvananda/netlink
// (which has no MPLS route support). Everything else is delegated to an
// embedded transport, typically netlinkshim.Real.
//
// MPLS label routes are an rtnetlink family (AF_MPLS), not a generic-netlink
// one, so there is no genl family to bind mdlayher/genetlink to here; see
// DESIGN.md for why that dependency isn't wired into this package.
package msgshim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"

	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/pkg/ip"
)

// afMPLS is linux/socket.h's AF_MPLS, not exported by golang.org/x/sys/unix.
const afMPLS = 28

// rtnetlink route attribute types used for MPLS (linux/rtnetlink.h).
const (
	rtaDst       = 1
	rtaOif       = 4
	rtaPriority  = 6
	rtaTable     = 15
	rtaVia       = 18
	rtaNewDst    = 19
	rtaMultipath = 9
)

// MPLS adds label-route support to an inner transport.Transport that can't
// speak MPLS itself (netlinkshim.Real), by issuing hand-built rtnetlink
// messages over its own mdlayher/netlink socket.
type MPLS struct {
	inner transport.Transport

	mu   sync.Mutex
	conn *netlink.Conn
}

func New(inner transport.Transport) *MPLS {
	return &MPLS{inner: inner}
}

func (m *MPLS) conn_() (*netlink.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return m.conn, nil
	}
	c, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing rtnetlink for MPLS: %w", err)
	}
	m.conn = c
	return c, nil
}

func (m *MPLS) Capabilities() transport.Capabilities {
	return transport.Capabilities{MPLS: true}
}

func (m *MPLS) Subscribe() (<-chan transport.Delta, error) { return m.inner.Subscribe() }
func (m *MPLS) AddRoute(r objmodel.Route, flags transport.Flags) error {
	return m.inner.AddRoute(r, flags)
}
func (m *MPLS) DeleteRoute(r objmodel.Route) error     { return m.inner.DeleteRoute(r) }
func (m *MPLS) AddAddress(a objmodel.Address) error    { return m.inner.AddAddress(a) }
func (m *MPLS) DeleteAddress(a objmodel.Address) error { return m.inner.DeleteAddress(a) }
func (m *MPLS) RefillCache(cat transport.Category) ([]transport.Delta, error) {
	return m.inner.RefillCache(cat)
}
func (m *MPLS) Foreach(cat transport.Category, predicate func(transport.Delta) bool, visit func(transport.Delta)) error {
	return m.inner.Foreach(cat, predicate, visit)
}
func (m *MPLS) Close() {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()
	m.inner.Close()
}

func (m *MPLS) AddLabelRoute(r objmodel.Route) error {
	return m.sendLabelRoute(unix.RTM_NEWROUTE, netlink.Request|netlink.Acknowledge|netlink.Create|netlink.Replace, r)
}

func (m *MPLS) DeleteLabelRoute(r objmodel.Route) error {
	return m.sendLabelRoute(unix.RTM_DELROUTE, netlink.Request|netlink.Acknowledge, r)
}

func (m *MPLS) sendLabelRoute(msgType uint16, flags netlink.HeaderFlags, r objmodel.Route) error {
	if r.Label == nil {
		return fmt.Errorf("msgshim: route has no label")
	}
	conn, err := m.conn_()
	if err != nil {
		return err
	}

	body, err := buildRtMsg(r)
	if err != nil {
		return err
	}

	req := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(msgType),
			Flags: flags,
		},
		Data: body,
	}

	msgs, err := conn.Execute(req)
	if err != nil {
		return translateNetlinkError(err)
	}
	for _, msg := range msgs {
		if msg.Header.Type == netlink.Error {
			if errno := decodeErrno(msg.Data); errno != 0 {
				// Netlink ACK/Error messages carry the errno negated
				// (e.g. -ESRCH), matching the raw kernel convention.
				return translateNetlinkError(unix.Errno(-errno))
			}
		}
	}
	return nil
}

// rtmsg is linux/rtnetlink.h's struct rtmsg, 12 bytes, host byte order.
type rtmsg struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

func buildRtMsg(r objmodel.Route) ([]byte, error) {
	hdr := rtmsg{
		Family:   afMPLS,
		DstLen:   20, // MPLS labels are 20 significant bits.
		Table:    uint8(r.Table),
		Protocol: uint8(r.Protocol),
		Scope:    uint8(unix.RT_SCOPE_UNIVERSE),
		Type:     unix.RTN_UNICAST,
	}

	buf := make([]byte, 12)
	buf[0], buf[1], buf[2], buf[3] = hdr.Family, hdr.DstLen, hdr.SrcLen, hdr.Tos
	buf[4], buf[5], buf[6], buf[7] = hdr.Table, hdr.Protocol, hdr.Scope, hdr.Type
	nlenc.PutUint32(buf[8:12], hdr.Flags)

	ae := netlink.NewAttributeEncoder()
	ae.Bytes(rtaDst, encodeMPLSLabel(*r.Label))
	if r.Priority != 0 {
		ae.Uint32(rtaPriority, uint32(r.Priority))
	}

	switch len(r.NextHops) {
	case 0:
		return nil, fmt.Errorf("msgshim: MPLS route for label %d has no next hop", *r.Label)
	case 1:
		nh := r.NextHops[0]
		ae.Uint32(rtaOif, uint32(nh.IfaceIndex))
		if nh.Gateway != nil {
			ae.Bytes(rtaVia, encodeVia(nh.Gateway))
		}
	default:
		mp, err := encodeMultipath(r.NextHops)
		if err != nil {
			return nil, err
		}
		ae.Bytes(rtaMultipath, mp)
	}

	attrs, err := ae.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding MPLS route attributes: %w", err)
	}
	return append(buf, attrs...), nil
}

// encodeMPLSLabel packs one MPLS label stack entry (RFC 3032): 20 bits of
// label, 3 bits TC, 1 bit bottom-of-stack, 8 bits TTL, always network byte
// order regardless of host endianness.
func encodeMPLSLabel(label uint32) []byte {
	entry := (label << 12) | (1 << 8) // bottom-of-stack set, TTL/TC left zero
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, entry)
	return b
}

// encodeVia packs an RTA_VIA nexthop address: a 2-byte address family
// followed by the raw address bytes (linux/rtnetlink.h's struct rtvia).
func encodeVia(gw ip.Addr) []byte {
	addr := gw.AsNetIP()
	family := uint16(unix.AF_INET)
	if addr.To4() == nil {
		family = unix.AF_INET6
		addr = addr.To16()
	} else {
		addr = addr.To4()
	}
	b := make([]byte, 2+len(addr))
	nlenc.PutUint16(b[0:2], family)
	copy(b[2:], addr)
	return b
}

// encodeMultipath packs one rtnexthop entry per leg (linux/rtnetlink.h's
// struct rtnexthop), each followed by its own nested RTA_VIA attribute.
func encodeMultipath(nhs []objmodel.NextHop) ([]byte, error) {
	var out []byte
	for _, nh := range nhs {
		var legAttrs []byte
		if nh.Gateway != nil {
			via := encodeVia(nh.Gateway)
			legAttrs = append(legAttrs, attrTLV(rtaVia, via)...)
		}
		leg := make([]byte, 8)
		weight := uint8(nh.Weight)
		nlenc.PutUint16(leg[0:2], uint16(8+len(legAttrs)))
		leg[2] = 0 // flags
		leg[3] = weight
		nlenc.PutUint32(leg[4:8], uint32(nh.IfaceIndex))
		out = append(out, leg...)
		out = append(out, legAttrs...)
	}
	return out, nil
}

// attrTLV packs one netlink attribute (2-byte length, 2-byte type, payload,
// padded to a 4-byte boundary) without going through AttributeEncoder,
// since this is nested inside an RTA_MULTIPATH payload rather than being a
// top-level attribute.
func attrTLV(attrType uint16, payload []byte) []byte {
	length := 4 + len(payload)
	padded := (length + 3) &^ 3
	b := make([]byte, padded)
	nlenc.PutUint16(b[0:2], uint16(length))
	nlenc.PutUint16(b[2:4], attrType)
	copy(b[4:], payload)
	return b
}

func decodeErrno(data []byte) int32 {
	if len(data) < 4 {
		return 0
	}
	return int32(nlenc.Uint32(data[0:4]))
}

func translateNetlinkError(err error) error {
	switch {
	case errors.Is(err, unix.ESRCH):
		return transport.ErrObjNotFound
	case errors.Is(err, unix.EEXIST):
		return transport.ErrExist
	default:
		return err
	}
}

var _ transport.Transport = (*MPLS)(nil)
