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

// Package mutator applies add/delete/replace mutations to the kernel FIB
// via a transport.Transport, keeping the cache consistent with
// success/failure and enforcing the family-specific rules of spec.md §4.4.
package mutator

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/commonnet/openr/internal/cache"
	"github.com/commonnet/openr/internal/metrics"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/internal/transport"
	"github.com/commonnet/openr/pkg/ip"
)

type Mutator struct {
	cache *cache.Cache
	tp    transport.Transport
	logCxt *log.Entry
}

func New(c *cache.Cache, tp transport.Transport) *Mutator {
	return &Mutator{cache: c, tp: tp, logCxt: log.WithField("component", "mutator")}
}

func recordOutcome(op string, err error, tolerated bool) {
	outcome := "success"
	switch {
	case tolerated:
		outcome = "tolerated"
	case err != nil:
		outcome = "error"
	}
	metrics.MutationsTotal.WithLabelValues(op, outcome).Inc()
}

// AddRoute implements the unicast add/update path of spec.md §4.4.
// Multicast and link-local destinations are rejected outright (scenario 3);
// they're handled by AddMulticastRoute or the link-scope path, not here.
func (m *Mutator) AddRoute(r objmodel.Route) error {
	if err := validateUnicastDestination(r); err != nil {
		recordOutcome("add_route", err, false)
		return err
	}

	key := cache.UnicastKey{Protocol: r.Protocol, Dst: r.Dst}
	logCxt := m.logCxt.WithField("dst", r.Dst)

	if existing, ok := m.cache.GetUnicast(key); ok {
		if existing.Equal(r) {
			logCxt.Debug("Route unchanged, skipping kernel call.")
			recordOutcome("add_route", nil, true)
			return nil
		}
		if r.Dst.Version() == 6 {
			// The kernel's IPv6 route implementation doesn't reliably
			// overwrite on REPLACE; delete explicitly first.
			err := m.tp.DeleteRoute(existing)
			if err != nil && !errors.Is(err, transport.ErrObjNotFound) {
				recordOutcome("add_route", err, false)
				return transportErr("delete-before-replace", err)
			}
		}
	}
	m.cache.DeleteUnicast(key)

	flags := transport.FlagReplace
	if r.Dst.Version() == 6 {
		flags = 0
	}
	if err := m.tp.AddRoute(r, flags); err != nil {
		logCxt.WithError(err).Warn("Failed to add route to kernel.")
		recordOutcome("add_route", err, false)
		return transportErr("add-route", err)
	}
	m.cache.SetUnicast(key, r)
	recordOutcome("add_route", nil, false)
	return nil
}

// DeleteRoute implements unicast delete (spec.md §4.4).
func (m *Mutator) DeleteRoute(r objmodel.Route) error {
	if err := validateUnicastDestination(r); err != nil {
		recordOutcome("delete_route", err, false)
		return err
	}

	key := cache.UnicastKey{Protocol: r.Protocol, Dst: r.Dst}
	existing, ok := m.cache.GetUnicast(key)
	if !ok {
		m.logCxt.WithField("dst", r.Dst).Warn("Delete requested for uncached route, ignoring.")
		recordOutcome("delete_route", nil, false)
		return nil
	}

	err := m.tp.DeleteRoute(existing)
	if err != nil {
		if errors.Is(err, transport.ErrObjNotFound) {
			m.logCxt.WithField("dst", r.Dst).Info("Kernel had already withdrawn the route.")
			recordOutcome("delete_route", nil, true)
		} else {
			recordOutcome("delete_route", err, false)
			return transportErr("delete-route", err)
		}
	} else {
		recordOutcome("delete_route", nil, false)
	}
	m.cache.DeleteUnicast(key)
	return nil
}

func validateUnicastDestination(r objmodel.Route) error {
	if r.IsMPLS() {
		return ErrMPLSViaUnicastPath
	}
	if r.Dst != nil {
		if ip.IsMulticast(r.Dst) {
			return ErrMulticastViaUnicastPath
		}
		if ip.IsLinkLocalUnicast(r.Dst) {
			return ErrLinkLocalViaUnicastPath
		}
	}
	return nil
}
