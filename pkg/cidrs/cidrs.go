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

// Package cidrs provides parsing and validation of destination network lists
// as declared in container labels.
package cidrs

import (
	"net"
	"strings"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/pkg/errors"
)

// ParseList parses a comma-separated list of CIDR networks. Parsing is strict:
// an entry with host bits set (e.g. "10.0.0.1/24") is rejected rather than
// silently masked to its network address.
func ParseList(list string) ([]*net.IPNet, error) {
	var networks []*net.IPNet
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		ip, network, err := net.ParseCIDR(item)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid network %q", item)
		}
		if !ip.Equal(network.IP) {
			return nil, errors.Errorf("network %q has host bits set", item)
		}
		networks = append(networks, network)
	}
	return networks, nil
}

// CheckOverlap returns a non-nil error if any two networks in the list
// overlap. Overlapping destinations are not necessarily a misconfiguration,
// but the kernel keys routes by destination, so the caller should at least
// warn about them.
func CheckOverlap(networks []*net.IPNet) error {
	var v4, v6 []*net.IPNet
	for _, n := range networks {
		if n.IP.To4() != nil {
			v4 = append(v4, n)
		} else {
			v6 = append(v6, n)
		}
	}
	if len(v4) > 1 {
		_, all, _ := net.ParseCIDR("0.0.0.0/0")
		if err := cidr.VerifyNoOverlap(v4, all); err != nil {
			return err
		}
	}
	if len(v6) > 1 {
		_, all, _ := net.ParseCIDR("::/0")
		if err := cidr.VerifyNoOverlap(v6, all); err != nil {
			return err
		}
	}
	return nil
}
