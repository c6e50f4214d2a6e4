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

// Package rest exposes the sidecar's status and Prometheus metrics over HTTP.
package rest

import (
	"fmt"
	"net/http"

	"github.com/ligato/cn-infra/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"

	"github.com/wg-tools/wgroutemgr/plugins/identity"
)

const (
	// Prefix is the versioned prefix for REST URLs.
	Prefix = "/wgroutemgr/v1/"
	// StatusURL is the URL of the status endpoint.
	StatusURL = Prefix + "status"
	// MetricsURL is the URL of the Prometheus metrics endpoint.
	MetricsURL = "/metrics"
)

// StatusProvider supplies the live view of processed containers.
type StatusProvider interface {
	// Processed returns a snapshot of the processed registry.
	Processed() map[string]string
}

// Deps lists dependencies of the Server.
type Deps struct {
	Log      logging.Logger
	Own      *identity.OwnContext
	Status   StatusProvider
	Registry *prometheus.Registry
}

// Server serves the status and metrics endpoints.
type Server struct {
	Deps
	formatter *render.Render
	server    *http.Server
}

type statusData struct {
	OwnContainer     string            `json:"ownContainer"`
	NetworkContainer string            `json:"networkContainer"`
	VPNNetwork       string            `json:"vpnNetwork"`
	Gateway          string            `json:"gateway"`
	Processed        map[string]string `json:"processedContainers"`
}

// NewServer is the constructor for the Server.
func NewServer(deps Deps) *Server {
	return &Server{
		Deps:      deps,
		formatter: render.New(render.Options{IndentJSON: true}),
	}
}

// Start begins serving on the given port in a background goroutine.
func (s *Server) Start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc(StatusURL, s.statusGetHandler(s.formatter))
	if s.Registry != nil {
		mux.Handle(MetricsURL, promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	s.Log.Infof("Status HTTP server listening on port %d", port)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Log.Errorf("Status HTTP server failed: %v", err)
		}
	}()
}

// Close shuts the server down.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

func (s *Server) statusGetHandler(formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s.Log.Debug("Getting status data")
		formatter.JSON(w, http.StatusOK, statusData{
			OwnContainer:     s.Own.OwnContainerName,
			NetworkContainer: s.Own.NetworkContainerName,
			VPNNetwork:       s.Own.NetworkName,
			Gateway:          s.Own.GatewayAddr.String(),
			Processed:        s.Status.Processed(),
		})
	}
}
