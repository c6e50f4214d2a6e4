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

// Package watcher drives the route reconciliation from the Docker container
// lifecycle event stream.
//
// The watcher runs everything on a single goroutine: the initial enumeration
// of running containers and the subsequent event handling. This serializes all
// namespace-scoped reconciliations, which is required because namespace
// switching is a per-OS-thread effect (see plugins/nsaccess).
package watcher

import (
	"strconv"
	"sync"
	"time"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/wg-tools/wgroutemgr/pkg/cidrs"
	"github.com/wg-tools/wgroutemgr/plugins/identity"
	"github.com/wg-tools/wgroutemgr/plugins/nsaccess"
	"github.com/wg-tools/wgroutemgr/plugins/routes"
)

// LabelNetworks is the label carrying the comma-separated list of destination
// networks a container wants routed through the VPN.
const LabelNetworks = "wgroutemgr.networks"

// Buffer for the event listener channel. The Docker client delivers events
// one by one; the buffer only decouples delivery from handling.
const eventBufferSize = 32

// State of the watcher's event loop.
type State int

const (
	// Initializing - enumerating containers already running at startup.
	Initializing State = iota
	// Running - consuming the lifecycle event stream.
	Running
	// Draining - own container was killed, no further events are consumed.
	Draining
	// Stopped - the loop has returned.
	Stopped
)

// DockerClient defines the API of the Docker client needed by the Watcher.
// The interface allows to inject a mock Docker client in the unit tests.
type DockerClient interface {
	// ListContainers returns a slice of containers matching the given criteria.
	ListContainers(opts docker.ListContainersOptions) ([]docker.APIContainers, error)
	// InspectContainer returns information about a container by its ID.
	InspectContainer(id string) (*docker.Container, error)
	// AddEventListenerWithOptions subscribes to the Docker event stream.
	AddEventListenerWithOptions(opts docker.EventsOptions, listener chan<- *docker.APIEvents) error
	// RemoveEventListener cancels the subscription.
	RemoveEventListener(listener chan *docker.APIEvents) error
}

// NamespaceAccessor provides scoped execution inside container namespaces.
type NamespaceAccessor interface {
	NamespaceKey(details *docker.Container) (string, error)
	WithNamespace(key string, fn func() error) error
}

// RouteReconciler converges the current namespace's route table.
type RouteReconciler interface {
	Reconcile(desired []routes.Route) (int, error)
}

// Deps lists dependencies of the Watcher.
type Deps struct {
	Log     logging.Logger
	Docker  DockerClient
	NS      NamespaceAccessor
	Routes  RouteReconciler
	Own     *identity.OwnContext
	Metrics *Metrics
}

// Watcher consumes the container lifecycle event stream and reconciles routes
// for tagged containers. It owns the registry of already processed containers.
type Watcher struct {
	Deps

	// mu guards processed and state; both are written only from the event
	// loop goroutine but read by the status HTTP server.
	mu        sync.Mutex
	processed map[string]string
	state     State
}

// NewWatcher is the constructor for the Watcher.
func NewWatcher(deps Deps) *Watcher {
	return &Watcher{
		Deps:      deps,
		processed: make(map[string]string),
	}
}

// Run executes the event loop. It first reconciles all containers running at
// the moment of the start, then handles events from the Docker stream until
// the own container is killed or the stream is closed.
//
// Errors of individual containers and events are logged and never abort the
// loop; only a failure to enumerate containers or to subscribe to the stream
// is returned.
func (w *Watcher) Run() error {
	w.Log.Info("Starting processing")
	w.setState(Initializing)

	// The timestamp is captured before enumeration so that events raced
	// during it are replayed by the subscription. Duplicates are harmless:
	// onContainerStarted is idempotent via the processed registry.
	since := time.Now()

	containers, err := w.Docker.ListContainers(docker.ListContainersOptions{})
	if err != nil {
		return errors.Wrap(err, "cannot list running containers")
	}
	for _, c := range containers {
		if err := w.onContainerStarted(c.ID); err != nil {
			w.logContainerError(c.ID, err)
		}
	}

	listener := make(chan *docker.APIEvents, eventBufferSize)
	err = w.Docker.AddEventListenerWithOptions(docker.EventsOptions{
		Since: strconv.FormatInt(since.Unix(), 10),
	}, listener)
	if err != nil {
		return errors.Wrap(err, "cannot subscribe to Docker events")
	}
	defer w.Docker.RemoveEventListener(listener)

	w.setState(Running)
loop:
	for event := range listener {
		if event.Type != "container" {
			continue
		}
		cid := containerIDOfEvent(event)
		switch event.Action {
		case "start":
			if err := w.onContainerStarted(cid); err != nil {
				w.logContainerError(cid, err)
			}
		case "die":
			w.onContainerDied(cid)
		case "kill":
			if cid == w.Own.OwnContainerID {
				w.Log.Debug("Own container was killed")
				w.setState(Draining)
				break loop
			}
		}
	}

	w.setState(Stopped)
	w.Log.Info("Stopping")
	return nil
}

// onContainerStarted reconciles the routes of a newly started (or newly
// discovered) container. Containers without the networks label, containers
// already processed, containers without an own namespace and containers not
// attached to the VPN network are all skipped without error.
func (w *Watcher) onContainerStarted(cid string) error {
	if _, done := w.lookupProcessed(cid); done {
		return nil
	}

	details, err := w.Docker.InspectContainer(cid)
	if err != nil {
		return errors.Wrapf(err, "cannot inspect container %s", cid)
	}
	if details.Config == nil {
		return nil
	}
	list, hasLabel := details.Config.Labels[LabelNetworks]
	if !hasLabel {
		return nil
	}
	name := identity.ContainerName(details)

	networks, err := cidrs.ParseList(list)
	if err != nil {
		return errors.Wrapf(err, "invalid %s label of %s", LabelNetworks, name)
	}
	if len(networks) == 0 {
		return nil
	}
	if err := cidrs.CheckOverlap(networks); err != nil {
		w.Log.Warnf("Networks requested by %s overlap: %v", name, err)
	}

	key, err := w.NS.NamespaceKey(details)
	if err == nsaccess.ErrSharedNetworkStack {
		w.Log.Warnf("Routing requested for %s but no network namespace, "+
			"--network container:... is not supported", name)
		return nil
	}
	if err != nil {
		return err
	}

	if !isAttached(details, w.Own.NetworkName) {
		w.Log.Warnf("Container %s is not attached to network %s",
			name, w.Own.NetworkName)
		return nil
	}

	w.Log.Infof("Setting routing for container %s", name)

	desired := make([]routes.Route, 0, len(networks))
	for _, network := range networks {
		desired = append(desired, routes.Route{Dst: network, Gw: w.Own.GatewayAddr})
	}

	var applied int
	err = w.NS.WithNamespace(key, func() error {
		var rerr error
		applied, rerr = w.Routes.Reconcile(desired)
		return rerr
	})
	if err != nil {
		return err
	}

	w.Metrics.addRoutesApplied(applied)
	w.Metrics.incContainersProcessed()
	w.setProcessed(cid, name)
	return nil
}

// onContainerDied drops the container from the processed registry. No route
// teardown is needed - the namespace and all routes in it died with the
// container.
func (w *Watcher) onContainerDied(cid string) {
	if name, done := w.takeProcessed(cid); done {
		w.Log.Infof("Container %s exited", name)
	}
}

func (w *Watcher) logContainerError(cid string, err error) {
	w.Metrics.incEventErrors()
	w.Log.Errorf("Error while handling container %s: %v", cid, err)
}

// State returns the current state of the event loop.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(state State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
}

// Processed returns a snapshot of the processed registry (container ID to
// display name).
func (w *Watcher) Processed() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	snapshot := make(map[string]string, len(w.processed))
	for id, name := range w.processed {
		snapshot[id] = name
	}
	return snapshot
}

func (w *Watcher) lookupProcessed(cid string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	name, done := w.processed[cid]
	return name, done
}

func (w *Watcher) setProcessed(cid, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.processed[cid] = name
}

func (w *Watcher) takeProcessed(cid string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	name, done := w.processed[cid]
	if done {
		delete(w.processed, cid)
	}
	return name, done
}

// containerIDOfEvent extracts the container ID, preferring the actor field
// over the deprecated top-level one.
func containerIDOfEvent(event *docker.APIEvents) string {
	if event.Actor.ID != "" {
		return event.Actor.ID
	}
	return event.ID
}
