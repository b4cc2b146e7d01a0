// File: engine/metrics_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(label)
	require.NoError(t, err)
	return testutil.ToFloat64(c)
}

func TestMetricsRegisterOnPrivateRegistry(t *testing.T) {
	// Two engines in one process must not collide on metric names.
	_ = NewMetrics(nil)
	_ = NewMetrics(nil)
}
