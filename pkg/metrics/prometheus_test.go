package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordRecommendation("asian", "upper", "high")
	r.RecordRecommendation("asian", "upper", "high")
	r.RecordOutcome("size", "win")
	r.RecordMessageSent("kafka", "record.created")
	r.RecordError("store")
	r.RecordLatency("store.create", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.recommendations.WithLabelValues("asian", "upper", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("size", "win")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka", "record.created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store")))

	n, err := testutil.GatherAndCount(reg, "oddspulse_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
