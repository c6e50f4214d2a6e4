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

// Package nsaccess provides scoped execution inside a container's network
// namespace.
//
// Namespace switching is a per-OS-thread effect, not a per-call-stack one.
// The accessor therefore must not be used from more than one goroutine at
// a time without external serialization; the event dispatcher guarantees this
// by running all reconciliations sequentially.
package nsaccess

import (
	"github.com/containernetworking/plugins/pkg/ns"
	docker "github.com/fsouza/go-dockerclient"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"
)

// ErrSharedNetworkStack is returned for containers without an own network
// namespace, i.e. those run with --network container:<other>. Such containers
// cannot be routed independently and are skipped with a warning.
var ErrSharedNetworkStack = errors.New("container has no own network namespace")

// NetNSCalls allow to mock namespace switching in tests.
type NetNSCalls interface {
	// WithNetNSPath enters the namespace identified by nspath, runs toRun and
	// restores the original namespace on every exit path.
	WithNetNSPath(nspath string, toRun func(ns.NetNS) error) error
}

type netNSCalls struct{}

func (n *netNSCalls) WithNetNSPath(nspath string, toRun func(ns.NetNS) error) error {
	return ns.WithNetNSPath(nspath, toRun)
}

// Deps lists dependencies of the Accessor.
type Deps struct {
	Log logging.Logger
}

// Accessor resolves container namespace handles and runs functions scoped to
// them.
type Accessor struct {
	Deps
	calls NetNSCalls
}

// NewAccessor creates an Accessor. Passing nil calls selects the real
// namespace primitives.
func NewAccessor(deps Deps, calls NetNSCalls) *Accessor {
	if calls == nil {
		calls = &netNSCalls{}
	}
	return &Accessor{Deps: deps, calls: calls}
}

// NamespaceKey returns the handle of the container's network namespace
// (Docker's sandbox key). The handle is only valid while the container's
// primary process is alive and must not be cached across events.
func (a *Accessor) NamespaceKey(details *docker.Container) (string, error) {
	if details.NetworkSettings == nil || details.NetworkSettings.SandboxKey == "" {
		return "", ErrSharedNetworkStack
	}
	return details.NetworkSettings.SandboxKey, nil
}

// WithNamespace runs fn inside the namespace identified by key. The calling
// goroutine's thread is locked, switched into the target namespace and
// restored before WithNamespace returns, regardless of fn's outcome.
func (a *Accessor) WithNamespace(key string, fn func() error) error {
	a.Log.Debugf("Entering network namespace %s", key)
	return a.calls.WithNetNSPath(key, func(ns.NetNS) error {
		return fn()
	})
}
