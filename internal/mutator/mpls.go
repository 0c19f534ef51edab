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
	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/objmodel"
)

// AddMPLSRoute implements spec.md §4.4's "MPLS add/update". Without the
// message-transport capability, it's a no-op that still returns success
// (the capability-missing error kind of spec.md §7).
func (m *Mutator) AddMPLSRoute(r objmodel.Route) error {
	if !r.IsMPLS() {
		recordOutcome("add_mpls_route", ErrNotMPLS, false)
		return ErrNotMPLS
	}
	if !m.tp.Capabilities().MPLS {
		m.logCxt.Warn("MPLS mutation requested without message-transport capability, ignoring.")
		recordOutcome("add_mpls_route", nil, true)
		return nil
	}

	key := cache.MPLSKey{Protocol: r.Protocol, Label: *r.Label}
	if existing, ok := m.cache.GetMPLS(key); ok {
		if existing.Equal(r) {
			recordOutcome("add_mpls_route", nil, true)
			return nil
		}
		m.cache.DeleteMPLS(key)
	}

	if err := m.tp.AddLabelRoute(r); err != nil {
		recordOutcome("add_mpls_route", err, false)
		return transportErr("add-mpls-route", err)
	}
	m.cache.SetMPLS(key, r)
	recordOutcome("add_mpls_route", nil, false)
	return nil
}

// DeleteMPLSRoute implements spec.md §4.4's "MPLS delete".
func (m *Mutator) DeleteMPLSRoute(r objmodel.Route) error {
	if !r.IsMPLS() {
		recordOutcome("delete_mpls_route", ErrNotMPLS, false)
		return ErrNotMPLS
	}
	if !m.tp.Capabilities().MPLS {
		m.logCxt.Warn("MPLS mutation requested without message-transport capability, ignoring.")
		recordOutcome("delete_mpls_route", nil, true)
		return nil
	}

	key := cache.MPLSKey{Protocol: r.Protocol, Label: *r.Label}
	if _, ok := m.cache.GetMPLS(key); !ok {
		m.logCxt.WithField("label", *r.Label).Warn("Delete requested for uncached MPLS route, ignoring.")
		recordOutcome("delete_mpls_route", nil, false)
		return nil
	}

	if err := m.tp.DeleteLabelRoute(r); err != nil {
		if errorsIsNotFound(err) {
			recordOutcome("delete_mpls_route", nil, true)
		} else {
			recordOutcome("delete_mpls_route", err, false)
			return transportErr("delete-mpls-route", err)
		}
	} else {
		recordOutcome("delete_mpls_route", nil, false)
	}
	m.cache.DeleteMPLS(key)
	return nil
}
