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

package nsaccess

import (
	"testing"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/wg-tools/wgroutemgr/mock/linuxcalls"
)

func testAccessor(calls NetNSCalls) *Accessor {
	return NewAccessor(Deps{Log: logrus.DefaultLogger()}, calls)
}

func TestNamespaceKey(t *testing.T) {
	gomega.RegisterTestingT(t)

	accessor := testAccessor(linuxcalls.NewMockLinuxCalls())
	key, err := accessor.NamespaceKey(&docker.Container{
		NetworkSettings: &docker.NetworkSettings{SandboxKey: "/var/run/docker/netns/deadbeef"},
	})
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(key).To(gomega.BeEquivalentTo("/var/run/docker/netns/deadbeef"))
}

func TestNamespaceKeySharedStack(t *testing.T) {
	gomega.RegisterTestingT(t)

	accessor := testAccessor(linuxcalls.NewMockLinuxCalls())

	// --network container:<other> leaves the sandbox key empty
	_, err := accessor.NamespaceKey(&docker.Container{
		NetworkSettings: &docker.NetworkSettings{},
	})
	gomega.Expect(err).To(gomega.BeEquivalentTo(ErrSharedNetworkStack))

	_, err = accessor.NamespaceKey(&docker.Container{})
	gomega.Expect(err).To(gomega.BeEquivalentTo(ErrSharedNetworkStack))
}

func TestWithNamespaceRunsCallback(t *testing.T) {
	gomega.RegisterTestingT(t)

	calls := linuxcalls.NewMockLinuxCalls()
	accessor := testAccessor(calls)

	ran := false
	err := accessor.WithNamespace("/var/run/docker/netns/deadbeef", func() error {
		ran = true
		return nil
	})
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(ran).To(gomega.BeTrue())
	gomega.Expect(calls.NsEnterCount()).To(gomega.BeEquivalentTo(1))
}

func TestWithNamespacePropagatesCallbackError(t *testing.T) {
	gomega.RegisterTestingT(t)

	accessor := testAccessor(linuxcalls.NewMockLinuxCalls())
	failure := errors.New("reconciliation failed")
	err := accessor.WithNamespace("/var/run/docker/netns/deadbeef", func() error {
		return failure
	})
	gomega.Expect(err).To(gomega.BeEquivalentTo(failure))
}

func TestWithNamespaceEntryFailure(t *testing.T) {
	gomega.RegisterTestingT(t)

	calls := linuxcalls.NewMockLinuxCalls()
	calls.SetNamespaceError(errors.New("no such namespace"))
	accessor := testAccessor(calls)

	ran := false
	err := accessor.WithNamespace("/var/run/docker/netns/gone", func() error {
		ran = true
		return nil
	})
	gomega.Expect(err).NotTo(gomega.BeNil())
	gomega.Expect(ran).To(gomega.BeFalse())
}
