package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCountMetrics(reg)

	m.CaptureApplied("add", "applied")
	m.CaptureApplied("add", "applied")
	m.CaptureApplied("set", "rejected")
	m.SessionTransitioned("review")
	m.LinesApproved(3)
	m.LedgerEntriesPosted(2)
	m.LedgerEntriesPosted(0)
	m.ConflictDetected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.captures.WithLabelValues("add", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.captures.WithLabelValues("set", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("review")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.linesApproved))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledgerPosted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("true")))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 6, n)
}
