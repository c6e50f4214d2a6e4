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
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "wgroutemgr"

// Metrics holds the Prometheus counters maintained by the watcher. A nil
// *Metrics is valid and counts nothing, which keeps the unit tests free of
// registry bookkeeping.
type Metrics struct {
	containersProcessed prometheus.Counter
	routesApplied       prometheus.Counter
	eventErrors         prometheus.Counter
}

// NewMetrics creates the watcher counters.
func NewMetrics() *Metrics {
	return &Metrics{
		containersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "containers_processed_total",
			Help:      "Number of containers whose routes were successfully reconciled.",
		}),
		routesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "routes_applied_total",
			Help:      "Number of routes installed into container namespaces.",
		}),
		eventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "event_errors_total",
			Help:      "Number of lifecycle events whose handling failed.",
		}),
	}
}

// Register registers all counters with the given registerer.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		m.containersProcessed, m.routesApplied, m.eventErrors,
	} {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) incContainersProcessed() {
	if m == nil {
		return
	}
	m.containersProcessed.Inc()
}

func (m *Metrics) addRoutesApplied(count int) {
	if m == nil {
		return
	}
	m.routesApplied.Add(float64(count))
}

func (m *Metrics) incEventErrors() {
	if m == nil {
		return
	}
	m.eventErrors.Inc()
}
