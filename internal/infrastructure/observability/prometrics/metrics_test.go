package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "")

	c1 := r.Counter(observability.MUsecaseRequests, "help", "use_case", "outcome")
	c2 := r.Counter(observability.MUsecaseRequests, "help", "use_case", "outcome")

	c1.Add(1, observability.L("use_case", "order.checkout"), observability.L("outcome", "success"))
	c2.Add(2, observability.L("use_case", "order.checkout"), observability.L("outcome", "success"))

	cv, ok := r.counters.Load(observability.MUsecaseRequests)
	require.True(t, ok)
	assert.Equal(t, 3.0, testutil.ToFloat64(cv.(*prometheus.CounterVec).WithLabelValues("order.checkout", "success")))
}

func TestRegisterDefaults(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := New(reg, "minishop").RegisterDefaults()

	assert.Len(t, counters, 4)
	assert.Len(t, histograms, 3)

	histograms[observability.MUsecaseDuration].Observe(0.2, observability.L("use_case", "inventory.decrement"))
	n, err := testutil.GatherAndCount(reg, "minishop_usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
