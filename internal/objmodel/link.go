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
	"fmt"

	"github.com/commonnet/openr/pkg/ip"
	"github.com/commonnet/openr/pkg/set"
)

// Link is the core's view of a kernel network interface.
type Link struct {
	Name      string
	Index     int
	Up        bool
	Loopback  bool
	Prefixes  set.Set[ip.CIDR]
}

func (l Link) String() string {
	return fmt.Sprintf("Link{name=%s idx=%d up=%t loopback=%t prefixes=%d}",
		l.Name, l.Index, l.Up, l.Loopback, l.Prefixes.Len())
}

// LinkBuilder constructs a Link, initialising its prefix set.
type LinkBuilder struct {
	l Link
}

func NewLinkBuilder() *LinkBuilder {
	return &LinkBuilder{l: Link{Prefixes: set.New[ip.CIDR]()}}
}

func (b *LinkBuilder) WithName(name string) *LinkBuilder {
	b.l.Name = name
	return b
}

func (b *LinkBuilder) WithIndex(idx int) *LinkBuilder {
	b.l.Index = idx
	return b
}

func (b *LinkBuilder) WithUp(up bool) *LinkBuilder {
	b.l.Up = up
	return b
}

func (b *LinkBuilder) WithLoopback(loopback bool) *LinkBuilder {
	b.l.Loopback = loopback
	return b
}

func (b *LinkBuilder) AddPrefix(cidr ip.CIDR) *LinkBuilder {
	b.l.Prefixes.Add(cidr)
	return b
}

func (b *LinkBuilder) Build() (Link, error) {
	if b.l.Name == "" {
		return Link{}, fmt.Errorf("link has no name")
	}
	return b.l, nil
}
