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

	"github.com/commonnet/openr/pkg/ip"
)

var ErrNoPrefix = errors.New("address has no prefix")

type Family uint8

const (
	FamilyV4 Family = 4
	FamilyV6 Family = 6
)

// Address is an IP address assigned to an interface.
type Address struct {
	IfaceIndex int
	Prefix     ip.CIDR
	Scope      Scope
	Family     Family
}

func (a Address) Equal(o Address) bool {
	return a.IfaceIndex == o.IfaceIndex && a.Scope == o.Scope && a.Family == o.Family && cidrEqual(a.Prefix, o.Prefix)
}

func (a Address) String() string {
	return fmt.Sprintf("Address{if=%d prefix=%s scope=%d family=%d}", a.IfaceIndex, a.Prefix, a.Scope, a.Family)
}

type AddressBuilder struct {
	a Address
}

func NewAddressBuilder() *AddressBuilder {
	return &AddressBuilder{a: Address{Scope: ScopeUniverse}}
}

func (b *AddressBuilder) WithIfaceIndex(idx int) *AddressBuilder {
	b.a.IfaceIndex = idx
	return b
}

func (b *AddressBuilder) WithPrefix(cidr ip.CIDR) *AddressBuilder {
	b.a.Prefix = cidr
	if cidr != nil {
		b.a.Family = Family(cidr.Version())
	}
	return b
}

func (b *AddressBuilder) WithScope(s Scope) *AddressBuilder {
	b.a.Scope = s
	return b
}

func (b *AddressBuilder) WithFamily(f Family) *AddressBuilder {
	b.a.Family = f
	return b
}

func (b *AddressBuilder) Build() (Address, error) {
	if b.a.Prefix == nil {
		return Address{}, ErrNoPrefix
	}
	return b.a, nil
}
