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

package watcher

import (
	docker "github.com/fsouza/go-dockerclient"
)

// isAttached reports whether the container is attached to the given Docker
// network. Routing via the VPN gateway only works for members of the VPN
// network, so containers that carry the label but are not attached are
// skipped.
func isAttached(details *docker.Container, networkName string) bool {
	if details.NetworkSettings == nil {
		return false
	}
	_, attached := details.NetworkSettings.Networks[networkName]
	return attached
}
