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

package rest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/onsi/gomega"

	"github.com/wg-tools/wgroutemgr/plugins/identity"
)

type staticStatus map[string]string

func (s staticStatus) Processed() map[string]string {
	return s
}

func TestStatusHandler(t *testing.T) {
	gomega.RegisterTestingT(t)

	server := NewServer(Deps{
		Log: logrus.DefaultLogger(),
		Own: &identity.OwnContext{
			OwnContainerName:     "wgroutemgr",
			NetworkContainerName: "wireguard",
			NetworkName:          "wg-net",
			GatewayAddr:          net.ParseIP("10.8.0.2"),
		},
		Status: staticStatus{"c1": "torrent"},
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, StatusURL, nil)
	server.statusGetHandler(server.formatter)(recorder, request)

	gomega.Expect(recorder.Code).To(gomega.BeEquivalentTo(http.StatusOK))

	var status statusData
	gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &status)).To(gomega.BeNil())
	gomega.Expect(status.OwnContainer).To(gomega.BeEquivalentTo("wgroutemgr"))
	gomega.Expect(status.NetworkContainer).To(gomega.BeEquivalentTo("wireguard"))
	gomega.Expect(status.VPNNetwork).To(gomega.BeEquivalentTo("wg-net"))
	gomega.Expect(status.Gateway).To(gomega.BeEquivalentTo("10.8.0.2"))
	gomega.Expect(status.Processed).To(gomega.HaveKeyWithValue("c1", "torrent"))
}
