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

package main

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// Config represents the wgroutemgr configuration, loadable from an external
// YAML file. All fields are optional; labels on the own container still have
// priority over the file (e.g. wgroutemgr.network over DefaultNetwork).
type Config struct {
	// DockerEndpoint overrides the DOCKER_HOST environment / default socket.
	DockerEndpoint string `json:"dockerEndpoint"`
	// HTTPPort of the status and metrics server; 0 disables it.
	HTTPPort int `json:"httpPort"`
	// DefaultNetwork is the VPN network name used when the own container does
	// not carry the wgroutemgr.network label.
	DefaultNetwork string `json:"defaultNetwork"`
}

// loadConfig reads the configuration file. A missing file at the default
// location is not an error - the defaults apply.
func loadConfig(fileName string) (*Config, error) {
	config := &Config{}

	bytes, err := os.ReadFile(fileName)
	if os.IsNotExist(err) && fileName == defaultConfigFile {
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %s", fileName)
	}
	if err := yaml.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file %s", fileName)
	}
	return config, nil
}
