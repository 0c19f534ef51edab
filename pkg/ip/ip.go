// Copyright (c) 2016-2024 Tigera, Inc. All rights reserved.
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

// Package ip contains yet another IP address (and CIDR) type. Addr and CIDR
// are backed by fixed-size arrays so that they're comparable and hashable,
// which lets them be used directly as map keys in the cache.
package ip

import (
	"fmt"
	"net"
)

// Addr represents either an IPv4 or IPv6 address. The zero value of each
// concrete type is not a valid address; use FromNetIP/FromString to build one.
type Addr interface {
	Version() uint8
	AsNetIP() net.IP
	String() string
	Less(Addr) bool
}

type V4Addr [4]byte

func (a V4Addr) Version() uint8    { return 4 }
func (a V4Addr) AsNetIP() net.IP   { return net.IP(a[:]).To4() }
func (a V4Addr) String() string    { return a.AsNetIP().String() }
func (a V4Addr) Less(o Addr) bool {
	ov, ok := o.(V4Addr)
	if !ok {
		return a.Version() < o.Version()
	}
	return string(a[:]) < string(ov[:])
}

type V6Addr [16]byte

func (a V6Addr) Version() uint8  { return 6 }
func (a V6Addr) AsNetIP() net.IP { return net.IP(a[:]) }
func (a V6Addr) String() string  { return a.AsNetIP().String() }
func (a V6Addr) Less(o Addr) bool {
	ov, ok := o.(V6Addr)
	if !ok {
		return a.Version() < o.Version()
	}
	return string(a[:]) < string(ov[:])
}

// FromNetIP converts a net.IP into the most specific Addr type it can.
func FromNetIP(netIP net.IP) Addr {
	if v4 := netIP.To4(); v4 != nil {
		var a V4Addr
		copy(a[:], v4)
		return a
	}
	var a V6Addr
	copy(a[:], netIP.To16())
	return a
}

// FromString parses a textual IP address. Panics on malformed input; it's
// meant for tests and for constants, not for parsing untrusted data.
func FromString(s string) Addr {
	netIP := net.ParseIP(s)
	if netIP == nil {
		panic(fmt.Sprintf("invalid IP address: %q", s))
	}
	return FromNetIP(netIP)
}

// CIDR represents a prefix: an Addr plus a prefix length.
type CIDR interface {
	Addr() Addr
	Prefix() uint8
	Version() uint8
	ToIPNet() net.IPNet
	String() string
}

type V4CIDR struct {
	addr   V4Addr
	prefix uint8
}

func (c V4CIDR) Addr() Addr     { return c.addr }
func (c V4CIDR) Prefix() uint8  { return c.prefix }
func (c V4CIDR) Version() uint8 { return 4 }
func (c V4CIDR) ToIPNet() net.IPNet {
	return net.IPNet{IP: c.addr.AsNetIP(), Mask: net.CIDRMask(int(c.prefix), 32)}
}
func (c V4CIDR) String() string { return fmt.Sprintf("%s/%d", c.addr, c.prefix) }

type V6CIDR struct {
	addr   V6Addr
	prefix uint8
}

func (c V6CIDR) Addr() Addr     { return c.addr }
func (c V6CIDR) Prefix() uint8  { return c.prefix }
func (c V6CIDR) Version() uint8 { return 6 }
func (c V6CIDR) ToIPNet() net.IPNet {
	return net.IPNet{IP: c.addr.AsNetIP(), Mask: net.CIDRMask(int(c.prefix), 128)}
}
func (c V6CIDR) String() string { return fmt.Sprintf("%s/%d", c.addr, c.prefix) }

// CIDRFromIPNet converts a net.IPNet (as returned by netlink) into a CIDR.
func CIDRFromIPNet(ipNet *net.IPNet) CIDR {
	if ipNet == nil {
		return nil
	}
	ones, bits := ipNet.Mask.Size()
	addr := FromNetIP(ipNet.IP)
	if bits == 32 {
		return V4CIDR{addr: addr.(V4Addr), prefix: uint8(ones)}
	}
	return V6CIDR{addr: addr.(V6Addr), prefix: uint8(ones)}
}

// MustParseCIDROrIP parses either a bare address ("10.0.0.1", assumed /32 or
// /128) or a CIDR ("10.0.0.0/24"). Host bits are kept, so "10.0.0.1/24"
// stays 10.0.0.1/24. Panics on malformed input.
func MustParseCIDROrIP(s string) CIDR {
	if addr, ipNet, err := net.ParseCIDR(s); err == nil {
		return CIDRFromIPNet(&net.IPNet{IP: addr, Mask: ipNet.Mask})
	}
	addr := FromString(s)
	if addr.Version() == 4 {
		return V4CIDR{addr: addr.(V4Addr), prefix: 32}
	}
	return V6CIDR{addr: addr.(V6Addr), prefix: 128}
}

// IsMulticast reports whether the CIDR's address is in a multicast range.
func IsMulticast(c CIDR) bool {
	return c.Addr().AsNetIP().IsMulticast()
}

// IsLinkLocalUnicast reports whether the CIDR's address is link-local.
func IsLinkLocalUnicast(c CIDR) bool {
	return c.Addr().AsNetIP().IsLinkLocalUnicast()
}
