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

// wgroutemgr is a sidecar for a WireGuard (or other VPN) container. It watches
// container lifecycle events and installs kernel routes so that containers
// tagged with the wgroutemgr.networks label have their declared destination
// networks routed via the VPN container's address.
package main

import (
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/namsral/flag"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"

	"github.com/wg-tools/wgroutemgr/plugins/identity"
	"github.com/wg-tools/wgroutemgr/plugins/nsaccess"
	"github.com/wg-tools/wgroutemgr/plugins/rest"
	"github.com/wg-tools/wgroutemgr/plugins/routes"
	"github.com/wg-tools/wgroutemgr/plugins/watcher"
)

const defaultConfigFile = "/etc/wgroutemgr/wgroutemgr.yaml"

var (
	configFile = flag.String("config", defaultConfigFile, "location of the wgroutemgr config file")
	httpPort   = flag.Int("http-port", 0, "port of the status HTTP server, overrides the config file")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

var logger logging.Logger // global logger

// init initializes the global logger
func init() {
	logger = logrus.DefaultLogger()
	logger.SetLevel(logging.InfoLevel)
}

// checkEnv verifies the deployment preconditions: Linux host and a Docker
// engine capable of bind propagation (Docker Desktop is not).
func checkEnv(client *docker.Client) error {
	if runtime.GOOS != "linux" {
		return errors.Errorf("Linux OS is required, is %s, exiting", runtime.GOOS)
	}

	info, err := client.Info()
	if err != nil {
		return errors.Wrap(err, "cannot get Docker engine info")
	}
	if strings.Contains(info.OperatingSystem, "Docker Desktop") {
		return errors.Errorf("%s does not support bind propagation, exiting",
			info.OperatingSystem)
	}
	return nil
}

// setup wires all components together and performs the startup-phase
// resolution. Any error here means the deployment is misconfigured and the
// process must exit with a failure status.
func setup(config *Config) (*watcher.Watcher, *rest.Server, error) {
	var client *docker.Client
	var err error
	if config.DockerEndpoint != "" {
		client, err = docker.NewClient(config.DockerEndpoint)
	} else {
		client, err = docker.NewClientFromEnv()
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot create Docker client")
	}

	if err := checkEnv(client); err != nil {
		return nil, nil, err
	}

	resolver := identity.NewResolver(identity.Deps{
		Log:            logger,
		Docker:         client,
		DefaultNetwork: config.DefaultNetwork,
	})
	own, err := resolver.Resolve()
	if err != nil {
		return nil, nil, err
	}

	metrics := watcher.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, nil, errors.Wrap(err, "cannot register metrics")
	}

	w := watcher.NewWatcher(watcher.Deps{
		Log:     logger,
		Docker:  client,
		NS:      nsaccess.NewAccessor(nsaccess.Deps{Log: logger}, nil),
		Routes:  routes.NewReconciler(routes.Deps{Log: logger}, nil),
		Own:     own,
		Metrics: metrics,
	})

	var restServer *rest.Server
	if config.HTTPPort > 0 {
		restServer = rest.NewServer(rest.Deps{
			Log:      logger,
			Own:      own,
			Status:   w,
			Registry: registry,
		})
		restServer.Start(config.HTTPPort)
	}

	return w, restServer, nil
}

func main() {
	flag.Parse()
	if *debug {
		logger.SetLevel(logging.DebugLevel)
	}

	config, err := loadConfig(*configFile)
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		config.HTTPPort = *httpPort
	}

	w, restServer, err := setup(config)
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
	if restServer != nil {
		defer restServer.Close()
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Run()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// A failure inside the loop is logged but exits cleanly - only startup
	// precondition failures use a non-zero status.
	select {
	case err := <-done:
		if err != nil {
			logger.Error(err)
		}
	case sig := <-sigs:
		logger.Infof("Exiting on signal %v", sig)
	}
}
