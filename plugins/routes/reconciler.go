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

// Package routes converges the kernel route table of a network namespace
// towards a desired set of destination networks routed via the VPN gateway.
package routes

import (
	"net"

	"github.com/ligato/cn-infra/logging"
	"github.com/vishvananda/netlink"
)

// Route pairs a destination network with its next-hop gateway. Desired routes
// are recomputed from the container label on every reconciliation pass, never
// stored.
type Route struct {
	Dst *net.IPNet
	Gw  net.IP
}

// Deps lists dependencies of the Reconciler.
type Deps struct {
	Log logging.Logger
}

// Reconciler computes and applies the minimal set of route changes needed to
// make the current namespace's route table contain every desired route.
type Reconciler struct {
	Deps
	calls RouteCalls
}

// NewReconciler creates a Reconciler. Passing nil calls selects the real
// netlink implementation.
func NewReconciler(deps Deps, calls RouteCalls) *Reconciler {
	if calls == nil {
		calls = NewRouteCalls()
	}
	return &Reconciler{Deps: deps, calls: calls}
}

// Reconcile converges the route table towards the desired set. It must be
// invoked while the calling thread is scoped inside the target namespace.
//
// Per desired route: a missing entry is added; an entry with matching
// destination and gateway is left alone; an entry with a different gateway or
// a differently encoded destination is deleted and re-added, since destination
// is the natural key of the table and a gateway change cannot be expressed as
// a field update. Installed routes for destinations absent from the desired
// set are not pruned - they disappear together with the namespace when the
// container exits.
//
// Returns the number of routes installed. The first netlink failure aborts the
// pass with an *Error carrying the affected destination.
func (r *Reconciler) Reconcile(desired []Route) (applied int, err error) {
	for _, d := range desired {
		existing, err := r.calls.RoutesForDst(d.Dst)
		if err != nil {
			return applied, NewError(d.Dst, err)
		}

		converged := false
		for i := range existing {
			route := &existing[i]
			if route.Dst != nil && route.Dst.String() == d.Dst.String() &&
				route.Gw.Equal(d.Gw) {
				r.Log.Infof("Route to %v already set", d.Dst)
				converged = true
				continue
			}
			r.Log.Infof("Removing existing route to %v via %v", d.Dst, route.Gw)
			if err := r.calls.RouteDel(route); err != nil {
				return applied, NewError(d.Dst, err)
			}
		}
		if converged {
			continue
		}

		r.Log.Infof("Setting route to %v via %v", d.Dst, d.Gw)
		if err := r.calls.RouteAdd(&netlink.Route{Dst: d.Dst, Gw: d.Gw}); err != nil {
			return applied, NewError(d.Dst, err)
		}
		applied++
	}
	return applied, nil
}
