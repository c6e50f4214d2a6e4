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

// Package identity determines the identity of the sidecar's own container and
// of the container providing the VPN network stack.
//
// There is no documented Docker API for either lookup, so both are derived
// from host-level process records: the own container ID from the cgroup
// membership of the process (requires the container to be started with
// --cgroupns host) and the network container ID from the mount table, where
// the bind-mounted /etc/hosts and friends reveal the path of the container
// they were mounted from. Both records are host-configuration dependent; this
// package is the only place that touches them.
package identity

import (
	"bufio"
	"net"
	"os"
	"strings"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"
)

const (
	// LabelNetwork is the label on the own container that overrides the name
	// of the VPN network.
	LabelNetwork = "wgroutemgr.network"

	// DefaultNetwork is the VPN network name used when LabelNetwork is absent.
	DefaultNetwork = "wg-net"

	defaultCgroupFile    = "/proc/self/cgroup"
	defaultMountInfoFile = "/proc/self/mountinfo"

	// Example cgroup record:
	// 0::/system.slice/docker-40bca618699cc2400869a366399a4495c9849d3c0f756fedf198a5b60bd9830d.scope
	systemSliceMarker = "/system.slice/"
	scopePrefix       = "/docker-"
	scopeSuffix       = ".scope"

	// Example mountinfo record:
	// 1356 1234 202:1 /var/lib/docker/containers/23d4.../resolv.conf /etc/resolv.conf rw,relatime - ext4 /dev/xvda1 rw
	containersPathMarker = "/docker/containers/"
)

var (
	// ErrOwnIDNotFound is returned when the own container cannot be identified
	// from the cgroup record. A deployment precondition, not a runtime
	// condition: the container was not started with --cgroupns host.
	ErrOwnIDNotFound = errors.New("own container id not found, was the container started with --cgroupns host?")

	// ErrNetworkIDNotFound is returned when the container providing the
	// network stack cannot be identified from the mount table.
	ErrNetworkIDNotFound = errors.New("network container id not found")
)

// OwnContext holds the identity of the sidecar and of the VPN container,
// resolved once at startup and immutable afterwards.
type OwnContext struct {
	OwnContainerID       string
	OwnContainerName     string
	NetworkContainerID   string
	NetworkContainerName string

	// NetworkName is the name of the Docker network served by the VPN
	// container.
	NetworkName string

	// GatewayAddr is the address of the VPN container on NetworkName. All
	// routes installed by the sidecar use it as the next hop.
	GatewayAddr net.IP
}

// DockerClient defines the API of the Docker client needed by the Resolver.
// The interface allows to inject a mock Docker client in the unit tests.
type DockerClient interface {
	// InspectContainer returns detailed information about a container.
	InspectContainer(id string) (*docker.Container, error)
}

// Deps lists dependencies of the Resolver.
type Deps struct {
	Log    logging.Logger
	Docker DockerClient

	// DefaultNetwork overrides the built-in default VPN network name.
	// The LabelNetwork label still has priority over it.
	DefaultNetwork string

	// CgroupFile and MountInfoFile override the host record locations
	// (used by the unit tests).
	CgroupFile    string
	MountInfoFile string
}

// Resolver discovers container identities from host records and builds the
// OwnContext.
type Resolver struct {
	Deps
}

// NewResolver creates a Resolver with defaults filled in for the host record
// locations.
func NewResolver(deps Deps) *Resolver {
	if deps.CgroupFile == "" {
		deps.CgroupFile = defaultCgroupFile
	}
	if deps.MountInfoFile == "" {
		deps.MountInfoFile = defaultMountInfoFile
	}
	if deps.DefaultNetwork == "" {
		deps.DefaultNetwork = DefaultNetwork
	}
	return &Resolver{Deps: deps}
}

// OwnContainerID extracts the ID of the own container from the cgroup
// membership record. Lines that match the system-slice marker but not the
// docker scope markers are skipped, never mis-parsed.
func (r *Resolver) OwnContainerID() (string, error) {
	file, err := os.Open(r.CgroupFile)
	if err != nil {
		return "", errors.Wrap(err, "cannot read cgroup record")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.Contains(line, systemSliceMarker) {
			continue
		}
		idx := strings.LastIndex(line, scopePrefix)
		if idx < 0 {
			continue
		}
		id := line[idx+len(scopePrefix):]
		if end := strings.Index(id, scopeSuffix); end >= 0 {
			id = id[:end]
		}
		if id != "" {
			return id, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "cannot read cgroup record")
	}
	return "", ErrOwnIDNotFound
}

// NetworkContainerID extracts the ID of the container providing the network
// stack from the mount table: the first mount originating from a
// .../containers/<id>/... path.
func (r *Resolver) NetworkContainerID() (string, error) {
	file, err := os.Open(r.MountInfoFile)
	if err != nil {
		return "", errors.Wrap(err, "cannot read mount table")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, containersPathMarker)
		if idx < 0 {
			continue
		}
		id := line[idx+len(containersPathMarker):]
		if end := strings.Index(id, "/"); end >= 0 {
			id = id[:end]
		}
		if id != "" {
			return id, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "cannot read mount table")
	}
	return "", ErrNetworkIDNotFound
}

// Resolve builds the OwnContext: both container identities, the VPN network
// name (own container's LabelNetwork label, if present) and the gateway
// address (the network container's address on that network). Any failure here
// is fatal for the process - the deployment itself is misconfigured.
func (r *Resolver) Resolve() (*OwnContext, error) {
	ownID, err := r.OwnContainerID()
	if err != nil {
		return nil, err
	}
	netID, err := r.NetworkContainerID()
	if err != nil {
		return nil, err
	}

	own, err := r.Docker.InspectContainer(ownID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot inspect own container %s", ownID)
	}
	netCont, err := r.Docker.InspectContainer(netID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot inspect network container %s", netID)
	}

	ctx := &OwnContext{
		OwnContainerID:       own.ID,
		OwnContainerName:     ContainerName(own),
		NetworkContainerID:   netCont.ID,
		NetworkContainerName: ContainerName(netCont),
		NetworkName:          r.DefaultNetwork,
	}
	if own.Config != nil {
		if name, ok := own.Config.Labels[LabelNetwork]; ok {
			ctx.NetworkName = name
		}
	}

	r.Log.Infof("Own container name %s, using network of %s",
		ctx.OwnContainerName, ctx.NetworkContainerName)

	if netCont.NetworkSettings == nil {
		return nil, errors.Errorf("cannot get IP address of %s", ctx.NetworkName)
	}
	attachment, ok := netCont.NetworkSettings.Networks[ctx.NetworkName]
	if !ok {
		return nil, errors.Errorf("cannot get IP address of %s", ctx.NetworkName)
	}
	ctx.GatewayAddr = net.ParseIP(attachment.IPAddress)
	if ctx.GatewayAddr == nil {
		return nil, errors.Errorf("cannot parse IP address %q of %s",
			attachment.IPAddress, ctx.NetworkName)
	}

	r.Log.Infof("Address of %s is %s", ctx.NetworkName, ctx.GatewayAddr)
	return ctx, nil
}

// ContainerName returns the display name of a container without the leading
// slash that Docker prepends.
func ContainerName(details *docker.Container) string {
	name := strings.TrimPrefix(details.Name, "/")
	if name == "" {
		return details.ID
	}
	return name
}
