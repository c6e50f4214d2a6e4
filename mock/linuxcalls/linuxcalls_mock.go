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

// Package linuxcalls provides a mock of the netlink and namespace primitives
// for unit tests: an in-memory route table plus counters of performed
// operations.
package linuxcalls

import (
	"net"
	"sync"

	"github.com/containernetworking/plugins/pkg/ns"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
)

// MockLinuxCalls simulates the kernel route table of a single network
// namespace. It implements routes.RouteCalls and nsaccess.NetNSCalls.
type MockLinuxCalls struct {
	sync.Mutex

	routes []netlink.Route

	failDst map[string]bool
	nsErr   error

	listCount    int
	addCount     int
	delCount     int
	nsEnterCount int
}

// NewMockLinuxCalls is the constructor for MockLinuxCalls.
func NewMockLinuxCalls() *MockLinuxCalls {
	return &MockLinuxCalls{
		failDst: make(map[string]bool),
	}
}

// SetRoute pre-installs a route into the simulated table.
func (m *MockLinuxCalls) SetRoute(dst, gw string) {
	m.Lock()
	defer m.Unlock()
	_, network, err := net.ParseCIDR(dst)
	if err != nil {
		panic(err)
	}
	m.routes = append(m.routes, netlink.Route{Dst: network, Gw: net.ParseIP(gw)})
}

// FailForDst makes every mutating operation for the given destination fail.
func (m *MockLinuxCalls) FailForDst(dst string) {
	m.Lock()
	defer m.Unlock()
	m.failDst[dst] = true
}

// SetNamespaceError makes WithNetNSPath fail without running the callback.
func (m *MockLinuxCalls) SetNamespaceError(err error) {
	m.Lock()
	defer m.Unlock()
	m.nsErr = err
}

// RoutesForDst returns the simulated routes with exactly matching destination.
func (m *MockLinuxCalls) RoutesForDst(dst *net.IPNet) ([]netlink.Route, error) {
	m.Lock()
	defer m.Unlock()
	m.listCount++
	var matches []netlink.Route
	for _, route := range m.routes {
		if route.Dst != nil && route.Dst.String() == dst.String() {
			matches = append(matches, route)
		}
	}
	return matches, nil
}

// RouteAdd installs a route into the simulated table.
func (m *MockLinuxCalls) RouteAdd(route *netlink.Route) error {
	m.Lock()
	defer m.Unlock()
	m.addCount++
	if m.failDst[route.Dst.String()] {
		return errors.New("simulated netlink failure")
	}
	m.routes = append(m.routes, *route)
	return nil
}

// RouteDel removes a route from the simulated table.
func (m *MockLinuxCalls) RouteDel(route *netlink.Route) error {
	m.Lock()
	defer m.Unlock()
	m.delCount++
	if m.failDst[route.Dst.String()] {
		return errors.New("simulated netlink failure")
	}
	for i := range m.routes {
		if m.routes[i].Dst.String() == route.Dst.String() {
			m.routes = append(m.routes[:i], m.routes[i+1:]...)
			return nil
		}
	}
	return errors.New("no such route")
}

// WithNetNSPath pretends to enter the namespace and runs the callback on the
// same simulated table.
func (m *MockLinuxCalls) WithNetNSPath(nspath string, toRun func(ns.NetNS) error) error {
	m.Lock()
	m.nsEnterCount++
	err := m.nsErr
	m.Unlock()
	if err != nil {
		return err
	}
	return toRun(nil)
}

// Routes returns a snapshot of the simulated table.
func (m *MockLinuxCalls) Routes() []netlink.Route {
	m.Lock()
	defer m.Unlock()
	return append([]netlink.Route(nil), m.routes...)
}

// GatewayFor returns the gateway of the route with the given destination, or
// an empty string if no such route is installed.
func (m *MockLinuxCalls) GatewayFor(dst string) string {
	m.Lock()
	defer m.Unlock()
	for _, route := range m.routes {
		if route.Dst != nil && route.Dst.String() == dst {
			return route.Gw.String()
		}
	}
	return ""
}

// ListCount returns the number of route queries performed.
func (m *MockLinuxCalls) ListCount() int {
	m.Lock()
	defer m.Unlock()
	return m.listCount
}

// AddCount returns the number of route additions attempted.
func (m *MockLinuxCalls) AddCount() int {
	m.Lock()
	defer m.Unlock()
	return m.addCount
}

// DelCount returns the number of route deletions attempted.
func (m *MockLinuxCalls) DelCount() int {
	m.Lock()
	defer m.Unlock()
	return m.delCount
}

// NsEnterCount returns the number of namespace entries attempted.
func (m *MockLinuxCalls) NsEnterCount() int {
	m.Lock()
	defer m.Unlock()
	return m.nsEnterCount
}
