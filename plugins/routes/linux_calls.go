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
	"net"

	"github.com/vishvananda/netlink"
)

// RouteCalls allow to mock netlink calls in tests. All methods operate on the
// route table of the network namespace the calling thread is currently
// scoped to.
type RouteCalls interface {
	// RoutesForDst returns the installed routes whose destination matches dst
	// exactly (same address and prefix length), regardless of gateway.
	RoutesForDst(dst *net.IPNet) ([]netlink.Route, error)
	// RouteAdd installs a route.
	RouteAdd(route *netlink.Route) error
	// RouteDel removes a route.
	RouteDel(route *netlink.Route) error
}

type routeCalls struct{}

// NewRouteCalls returns the real netlink-backed implementation of RouteCalls.
func NewRouteCalls() RouteCalls {
	return &routeCalls{}
}

func (r *routeCalls) RoutesForDst(dst *net.IPNet) ([]netlink.Route, error) {
	return netlink.RouteListFiltered(family(dst),
		&netlink.Route{Dst: dst}, netlink.RT_FILTER_DST)
}

func (r *routeCalls) RouteAdd(route *netlink.Route) error {
	return netlink.RouteAdd(route)
}

func (r *routeCalls) RouteDel(route *netlink.Route) error {
	return netlink.RouteDel(route)
}

func family(dst *net.IPNet) int {
	if dst.IP.To4() != nil {
		return netlink.FAMILY_V4
	}
	return netlink.FAMILY_V6
}
