package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/PiccoloProcione/supersmp/internal/metrics"
	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
)

var _ wal.Observer = (*metrics.Metrics)(nil)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveServiceGroupOperation("create", nil)
	m.ObserveServiceGroupOperation("create", errors.New("x"))
	m.ObserveServiceGroupOperation("create", nil)
	m.ObserveDirectoryCall("delete", time.Now(), nil)
	m.IncrementInconsistencies()
	m.ObserveAppend("servicegroups")
	m.ObserveAppend("servicegroups")
	m.ObserveSnapshot("redirects", errors.New("disk full"))
	m.SetEntities("servicegroup", 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ServiceGroupOperations.WithLabelValues("create", metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceGroupOperations.WithLabelValues("create", metrics.ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DirectoryCalls.WithLabelValues("delete", metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Inconsistencies))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WALAppends.WithLabelValues("servicegroups")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WALSnapshots.WithLabelValues("redirects", metrics.ResultError)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Entities.WithLabelValues("servicegroup")))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.New(prometheus.NewRegistry())
		metrics.New(prometheus.NewRegistry())
	})
}
