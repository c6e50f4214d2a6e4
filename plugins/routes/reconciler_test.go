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
	"testing"

	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/onsi/gomega"

	"github.com/wg-tools/wgroutemgr/mock/linuxcalls"
)

func desiredRoutes(gw string, dsts ...string) []Route {
	var desired []Route
	for _, dst := range dsts {
		_, network, err := net.ParseCIDR(dst)
		if err != nil {
			panic(err)
		}
		desired = append(desired, Route{Dst: network, Gw: net.ParseIP(gw)})
	}
	return desired
}

func testReconciler(calls RouteCalls) *Reconciler {
	return NewReconciler(Deps{Log: logrus.DefaultLogger()}, calls)
}

func TestReconcileEmptyTable(t *testing.T) {
	gomega.RegisterTestingT(t)

	calls := linuxcalls.NewMockLinuxCalls()
	reconciler := testReconciler(calls)

	applied, err := reconciler.Reconcile(
		desiredRoutes("10.8.0.2", "10.0.0.0/24", "192.168.5.0/24"))
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(applied).To(gomega.BeEquivalentTo(2))
	gomega.Expect(calls.AddCount()).To(gomega.BeEquivalentTo(2))
	gomega.Expect(calls.DelCount()).To(gomega.BeEquivalentTo(0))
	gomega.Expect(calls.GatewayFor("10.0.0.0/24")).To(gomega.BeEquivalentTo("10.8.0.2"))
	gomega.Expect(calls.GatewayFor("192.168.5.0/24")).To(gomega.BeEquivalentTo("10.8.0.2"))
}

func TestReconcileReplacesStaleGateway(t *testing.T) {
	gomega.RegisterTestingT(t)

	calls := linuxcalls.NewMockLinuxCalls()
	calls.SetRoute("10.0.0.0/24", "10.8.0.9")
	reconciler := testReconciler(calls)

	applied, err := reconciler.Reconcile(desiredRoutes("10.8.0.2", "10.0.0.0/24"))
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(applied).To(gomega.BeEquivalentTo(1))
	gomega.Expect(calls.DelCount()).To(gomega.BeEquivalentTo(1))
	gomega.Expect(calls.AddCount()).To(gomega.BeEquivalentTo(1))
	gomega.Expect(calls.GatewayFor("10.0.0.0/24")).To(gomega.BeEquivalentTo("10.8.0.2"))
}

func TestReconcileIdempotent(t *testing.T) {
	gomega.RegisterTestingT(t)

	calls := linuxcalls.NewMockLinuxCalls()
	calls.SetRoute("10.0.0.0/24", "10.8.0.2")
	calls.SetRoute("192.168.5.0/24", "10.8.0.2")
	reconciler := testReconciler(calls)

	applied, err := reconciler.Reconcile(
		desiredRoutes("10.8.0.2", "10.0.0.0/24", "192.168.5.0/24"))
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(applied).To(gomega.BeEquivalentTo(0))
	gomega.Expect(calls.AddCount()).To(gomega.BeEquivalentTo(0))
	gomega.Expect(calls.DelCount()).To(gomega.BeEquivalentTo(0))
}

func TestReconcileLeavesUnrelatedRoutesAlone(t *testing.T) {
	gomega.RegisterTestingT(t)

	calls := linuxcalls.NewMockLinuxCalls()
	calls.SetRoute("172.16.0.0/12", "172.17.0.1")
	reconciler := testReconciler(calls)

	applied, err := reconciler.Reconcile(desiredRoutes("10.8.0.2", "10.0.0.0/24"))
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(applied).To(gomega.BeEquivalentTo(1))
	gomega.Expect(calls.GatewayFor("172.16.0.0/12")).To(gomega.BeEquivalentTo("172.17.0.1"))
	gomega.Expect(calls.Routes()).To(gomega.HaveLen(2))
}

func TestReconcileAbortsOnFailure(t *testing.T) {
	gomega.RegisterTestingT(t)

	calls := linuxcalls.NewMockLinuxCalls()
	calls.FailForDst("10.0.0.0/24")
	reconciler := testReconciler(calls)

	applied, err := reconciler.Reconcile(
		desiredRoutes("10.8.0.2", "10.0.0.0/24", "192.168.5.0/24"))
	gomega.Expect(err).NotTo(gomega.BeNil())
	gomega.Expect(applied).To(gomega.BeEquivalentTo(0))

	routeErr, isRouteErr := err.(*Error)
	gomega.Expect(isRouteErr).To(gomega.BeTrue())
	gomega.Expect(routeErr.Destination().String()).To(gomega.BeEquivalentTo("10.0.0.0/24"))
	gomega.Expect(routeErr.GetOriginalError()).NotTo(gomega.BeNil())

	// the pass aborted before the second destination
	gomega.Expect(calls.AddCount()).To(gomega.BeEquivalentTo(1))
	gomega.Expect(calls.GatewayFor("192.168.5.0/24")).To(gomega.BeEquivalentTo(""))
}
