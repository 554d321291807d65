package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveAPICall("lookup", "success", time.Now())
	m.ObserveAPICall("lookup", "not_found", time.Now())
	m.ObserveAPICall("lookup", "success", time.Now())
	m.RecordTransition("review")
	m.RecordPublish(nil)
	m.RecordPublish(errors.New("broker down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("lookup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("lookup", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionTransitions.WithLabelValues("review")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("error")))
}
