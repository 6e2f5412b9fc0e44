// Package metrics instruments the bridge with Prometheus collectors on a
// private registry, so loading a plugin never touches the host process's
// default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Access results.
const (
	ResultOK    = "ok"
	ResultFail  = "fail"
	ResultPanic = "panic"
)

// Registry holds every collector exported by this package.
var Registry = prometheus.NewRegistry()

// Collectors, labeled by plugin name. Prefer the Record functions for
// updates; the vectors are exported for tests and custom registries.
var (
	InstancesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mmio_instances_created_total",
		Help: "Total number of device instances allocated by the host",
	}, []string{"plugin"})

	InstancesDestroyed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mmio_instances_destroyed_total",
		Help: "Total number of device instances deallocated by the host",
	}, []string{"plugin"})

	LiveInstances = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mmio_live_instances",
		Help: "Device instances currently owned by the host",
	}, []string{"plugin"})

	Accesses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mmio_accesses_total",
		Help: "Total number of load and store calls by plugin, op and result",
	}, []string{"plugin", "op", "result"})
)

func init() {
	Registry.MustRegister(
		InstancesCreated,
		InstancesDestroyed,
		LiveInstances,
		Accesses,
		collectors.NewGoCollector(),
	)
}

// RecordCreated counts an allocated instance.
func RecordCreated(plugin string) {
	InstancesCreated.WithLabelValues(plugin).Inc()
	LiveInstances.WithLabelValues(plugin).Inc()
}

// RecordDestroyed counts a deallocated instance.
func RecordDestroyed(plugin string) {
	InstancesDestroyed.WithLabelValues(plugin).Inc()
	LiveInstances.WithLabelValues(plugin).Dec()
}

// RecordAccess counts one load or store.
func RecordAccess(plugin, op, result string) {
	Accesses.WithLabelValues(plugin, op, result).Inc()
}
