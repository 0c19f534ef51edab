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

	"github.com/commonnet/openr/internal/transport"
)

// Validation-kind errors (spec.md §7): surfaced to the caller, cache
// untouched.
var (
	ErrMulticastViaUnicastPath = errors.New("route destination is multicast; not valid on the unicast path")
	ErrLinkLocalViaUnicastPath = errors.New("route destination is link-local; not valid on the unicast path")
	ErrMPLSViaUnicastPath      = errors.New("MPLS label route is not valid on the unicast path")
	ErrNotMulticast            = errors.New("multicast mutation requires a multicast destination")
	ErrNoEgressInterface       = errors.New("multicast/link-scope route must have exactly one next hop with an interface index")
	ErrNotMPLS                 = errors.New("MPLS mutation requires a route with a label, not a prefix")
)

// ErrTransport wraps an opaque, non-tolerated error code returned by the
// transport.
type ErrTransport struct {
	Op  string
	Err error
}

func (e *ErrTransport) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ErrTransport) Unwrap() error { return e.Err }

func transportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ErrTransport{Op: op, Err: err}
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, transport.ErrObjNotFound)
}
