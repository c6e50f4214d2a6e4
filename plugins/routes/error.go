// Copyright (c) 2024 wgroutemgr authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routes

import (
	"fmt"
	"net"
)

// Error describes a failed route operation for a single destination. It aborts
// the remaining routes of the reconciliation pass but is never fatal for the
// process - the dispatcher logs it and moves on to the next event.
type Error struct {
	dst     *net.IPNet
	origErr error
}

// NewError is the constructor for Error.
func NewError(dst *net.IPNet, origErr error) error {
	return &Error{dst: dst, origErr: origErr}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("route for %v: %v", e.dst, e.origErr)
}

// Destination returns the destination network the failed operation was for.
func (e *Error) Destination() *net.IPNet {
	return e.dst
}

// GetOriginalError returns the underlying netlink error.
func (e *Error) GetOriginalError() error {
	return e.origErr
}
