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

// Package netlinkshim implements transport.Transport against a real kernel
// netlink socket via vishvananda/netlink. It is the concrete collaborator
// behind spec.md §6.1 for everything except MPLS label routes (see
// internal/transport/msgshim).
package netlinkshim

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

const maxConnFailures = 3

// handleManager lazily opens a netlink.Handle and reopens it after
// repeated failures, grounded on felix/netlinkshim/handlemgr's
// cached-handle-with-reopen-flag pattern.
type handleManager struct {
	mu sync.Mutex

	cached          *netlink.Handle
	reopenNextTime  bool
	repeatFailures  int
	socketTimeout   time.Duration
}

func newHandleManager() *handleManager {
	return &handleManager{socketTimeout: 10 * time.Second}
}

func (m *handleManager) Handle() (*netlink.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reopenNextTime && m.cached != nil {
		m.cached.Delete()
		m.cached = nil
	}
	m.reopenNextTime = false

	if m.cached != nil {
		return m.cached, nil
	}

	h, err := netlink.NewHandle(syscall.NETLINK_ROUTE)
	if err != nil {
		m.repeatFailures++
		return nil, fmt.Errorf("opening netlink handle: %w", err)
	}
	if err := h.SetSocketTimeout(m.socketTimeout); err != nil {
		log.WithError(err).Warn("Failed to set netlink socket timeout.")
	}
	m.repeatFailures = 0
	m.cached = h
	return h, nil
}

// MarkForReopen flags the cached handle as bad; the next Handle() call
// closes it and opens a fresh one. Used after a request returns an error
// that might indicate a dead socket.
func (m *handleManager) MarkForReopen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatFailures++
	if m.repeatFailures >= maxConnFailures {
		m.reopenNextTime = true
		m.repeatFailures = 0
		log.WithError(err).Warn("Repeated netlink failures, will reopen handle.")
	}
}
