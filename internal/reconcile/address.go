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

package reconcile

import (
	"fmt"

	"github.com/commonnet/openr/internal/metrics"
	"github.com/commonnet/openr/internal/objmodel"
	"github.com/commonnet/openr/pkg/ip"
)

// SyncIfAddress implements spec.md §4.6: adds run before deletes, so the
// interface never transitions through the zero-address state (scenario 5).
func (r *Reconciler) SyncIfAddress(ifIndex int, desired []objmodel.Address, family objmodel.Family, scope objmodel.Scope) error {
	current := r.cache.AddressesForIface(ifIndex, family, scope, true, true)

	old := map[ip.CIDR]objmodel.Address{}
	for _, a := range current {
		old[a.Prefix] = a
	}
	newSet := map[ip.CIDR]objmodel.Address{}
	for _, a := range desired {
		newSet[a.Prefix] = a
	}

	for prefix, a := range newSet {
		if _, ok := old[prefix]; !ok {
			if err := r.mut.AddAddress(a); err != nil {
				return fmt.Errorf("sync_if_address: adding %s: %w", prefix, err)
			}
		}
	}
	for prefix, a := range old {
		if _, ok := newSet[prefix]; !ok {
			if err := r.mut.DeleteAddress(a); err != nil {
				return fmt.Errorf("sync_if_address: deleting %s: %w", prefix, err)
			}
		}
	}
	metrics.CacheSize.WithLabelValues("address").Set(float64(r.cache.AddressCount()))
	return nil
}
