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

// Package dockerclient provides a mock of the Docker client for unit tests.
package dockerclient

import (
	"sync"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/pkg/errors"
)

// ContainerSpec describes a simulated container.
type ContainerSpec struct {
	ID     string
	Name   string
	Labels map[string]string
	// Networks maps network name to the container's address on it.
	Networks   map[string]string
	SandboxKey string
}

// MockDockerClient is a mock for the Docker client. It simulates a set of
// running containers and the lifecycle event stream.
type MockDockerClient struct {
	sync.Mutex

	connected  bool
	containers map[string]ContainerSpec
	listeners  []chan<- *docker.APIEvents

	inspectCount int
}

// NewMockDockerClient is the constructor for MockDockerClient.
func NewMockDockerClient() *MockDockerClient {
	return &MockDockerClient{
		connected:  true,
		containers: make(map[string]ContainerSpec),
	}
}

// Disconnect puts the mock Docker client into the disconnected state.
func (m *MockDockerClient) Disconnect() {
	m.Lock()
	defer m.Unlock()
	m.connected = false
}

// AddContainer simulates a running container.
func (m *MockDockerClient) AddContainer(spec ContainerSpec) {
	m.Lock()
	defer m.Unlock()
	m.containers[spec.ID] = spec
}

// DelContainer simulates removal of a container.
func (m *MockDockerClient) DelContainer(id string) {
	m.Lock()
	defer m.Unlock()
	delete(m.containers, id)
}

// Ping pings the docker server.
func (m *MockDockerClient) Ping() error {
	m.Lock()
	defer m.Unlock()
	if !m.connected {
		return errors.New("docker client is not connected")
	}
	return nil
}

// ListContainers returns the simulated running containers.
func (m *MockDockerClient) ListContainers(opts docker.ListContainersOptions) ([]docker.APIContainers, error) {
	if err := m.Ping(); err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	var containers []docker.APIContainers
	for _, spec := range m.containers {
		containers = append(containers, docker.APIContainers{
			ID:     spec.ID,
			Names:  []string{"/" + spec.Name},
			Labels: spec.Labels,
			State:  "running",
		})
	}
	return containers, nil
}

// InspectContainer returns details of a simulated container.
func (m *MockDockerClient) InspectContainer(id string) (*docker.Container, error) {
	if err := m.Ping(); err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	m.inspectCount++
	spec, exists := m.containers[id]
	if !exists {
		return nil, &docker.NoSuchContainer{ID: id}
	}
	networks := make(map[string]docker.ContainerNetwork)
	for name, addr := range spec.Networks {
		networks[name] = docker.ContainerNetwork{IPAddress: addr}
	}
	return &docker.Container{
		ID:     spec.ID,
		Name:   "/" + spec.Name,
		Config: &docker.Config{Labels: spec.Labels},
		NetworkSettings: &docker.NetworkSettings{
			SandboxKey: spec.SandboxKey,
			Networks:   networks,
		},
	}, nil
}

// AddEventListenerWithOptions registers a listener for simulated events.
func (m *MockDockerClient) AddEventListenerWithOptions(opts docker.EventsOptions, listener chan<- *docker.APIEvents) error {
	if err := m.Ping(); err != nil {
		return err
	}
	m.Lock()
	defer m.Unlock()
	m.listeners = append(m.listeners, listener)
	return nil
}

// RemoveEventListener unregisters a listener.
func (m *MockDockerClient) RemoveEventListener(listener chan *docker.APIEvents) error {
	m.Lock()
	defer m.Unlock()
	for i, l := range m.listeners {
		if l == (chan<- *docker.APIEvents)(listener) {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			break
		}
	}
	return nil
}

// SendEvent delivers a container lifecycle event to all registered listeners.
func (m *MockDockerClient) SendEvent(action, containerID string) {
	m.Lock()
	defer m.Unlock()
	for _, listener := range m.listeners {
		listener <- &docker.APIEvents{
			Type:   "container",
			Action: action,
			Actor:  docker.APIActor{ID: containerID},
		}
	}
}

// CloseEventStream closes all registered listener channels, simulating the
// Docker daemon going away.
func (m *MockDockerClient) CloseEventStream() {
	m.Lock()
	defer m.Unlock()
	for _, listener := range m.listeners {
		close(listener)
	}
	m.listeners = nil
}

// InspectCount returns the number of InspectContainer calls performed.
func (m *MockDockerClient) InspectCount() int {
	m.Lock()
	defer m.Unlock()
	return m.inspectCount
}
