// Package metrics exposes Prometheus metrics of the registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics provides observability for the registry.
// Tracks service group operations, SML calls, inconsistencies and write-ahead store activity.
type Metrics struct {
	ServiceGroupOperations *prometheus.CounterVec
	DirectoryCalls         *prometheus.CounterVec
	DirectoryCallDuration  *prometheus.HistogramVec
	Inconsistencies        prometheus.Counter
	WALAppends             *prometheus.CounterVec
	WALSnapshots           *prometheus.CounterVec
	Entities               *prometheus.GaugeVec
}

// New creates the registry metrics and registers them with reg.
// A nil reg registers with the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ServiceGroupOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smp_servicegroup_operations_total",
			Help: "Total number of service group create, update and delete operations",
		}, []string{"op", "result"}),
		DirectoryCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smp_directory_calls_total",
			Help: "Total number of SML registration hook calls",
		}, []string{"op", "result"}),
		DirectoryCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smp_directory_call_duration_seconds",
			Help:    "Duration of SML registration hook calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		Inconsistencies: factory.NewCounter(prometheus.CounterOpts{
			Name: "smp_inconsistencies_total",
			Help: "Total number of failed compensations leaving local storage and SML out of sync",
		}),
		WALAppends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smp_wal_appends_total",
			Help: "Total number of journal records appended",
		}, []string{"store"}),
		WALSnapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smp_wal_snapshots_total",
			Help: "Total number of snapshots written",
		}, []string{"store", "result"}),
		Entities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smp_entities",
			Help: "Number of stored entities by kind",
		}, []string{"kind"}),
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveServiceGroupOperation records a service group operation
func (m *Metrics) ObserveServiceGroupOperation(op string, err error) {
	m.ServiceGroupOperations.WithLabelValues(op, result(err)).Inc()
}

// ObserveDirectoryCall records an SML call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveDirectoryCall(op string, start time.Time, err error) {
	m.DirectoryCalls.WithLabelValues(op, result(err)).Inc()
	m.DirectoryCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// IncrementInconsistencies records a failed compensation
func (m *Metrics) IncrementInconsistencies() {
	m.Inconsistencies.Inc()
}

// SetEntities sets the number of stored entities of a kind
func (m *Metrics) SetEntities(kind string, n int) {
	m.Entities.WithLabelValues(kind).Set(float64(n))
}

// ObserveAppend records a journal append of store
func (m *Metrics) ObserveAppend(store string) {
	m.WALAppends.WithLabelValues(store).Inc()
}

// ObserveSnapshot records a snapshot of store
func (m *Metrics) ObserveSnapshot(store string, err error) {
	m.WALSnapshots.WithLabelValues(store, result(err)).Inc()
}
