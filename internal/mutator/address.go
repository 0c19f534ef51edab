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

package mutator

import (
	"errors"

	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
)

// AddAddress implements spec.md §4.6: duplicate adds tolerate EXIST.
func (m *Mutator) AddAddress(a objmodel.Address) error {
	err := m.tp.AddAddress(a)
	if err != nil {
		if errors.Is(err, transport.ErrExist) {
			m.logCxt.WithField("addr", a).Info("Address already present, treating as success.")
			recordOutcome("add_address", nil, true)
		} else {
			recordOutcome("add_address", err, false)
			return transportErr("add-address", err)
		}
	} else {
		recordOutcome("add_address", nil, false)
	}
	m.cache.AddAddressToLink(a)
	return nil
}

// DeleteAddress implements spec.md §4.6: deletes tolerate NOADDR.
func (m *Mutator) DeleteAddress(a objmodel.Address) error {
	err := m.tp.DeleteAddress(a)
	if err != nil {
		if errors.Is(err, transport.ErrNoAddr) {
			m.logCxt.WithField("addr", a).Info("Address already gone, treating as success.")
			recordOutcome("delete_address", nil, true)
		} else {
			recordOutcome("delete_address", err, false)
			return transportErr("delete-address", err)
		}
	} else {
		recordOutcome("delete_address", nil, false)
	}
	m.cache.RemoveAddressFromLink(a)
	return nil
}
