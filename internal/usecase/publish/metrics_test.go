package publish

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// globalTestMetrics avoids duplicate promauto registration across tests in
// this package. TestMetrics exposes the same instance to the external
// publish_test package, which is linked into the same test binary.
var globalTestMetrics = NewMetrics()

var TestMetrics = globalTestMetrics

func TestNewMetrics(t *testing.T) {
	m := globalTestMetrics
	if m.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}
	if m.ItemsPublishedTotal == nil {
		t.Error("ItemsPublishedTotal is nil")
	}
	if m.ItemsFailedTotal == nil {
		t.Error("ItemsFailedTotal is nil")
	}
	if m.BatchSize == nil {
		t.Error("BatchSize is nil")
	}
	if m.BatchDurationSeconds == nil {
		t.Error("BatchDurationSeconds is nil")
	}
}

func TestMetrics_RecordSuccessAndFailure(t *testing.T) {
	m := globalTestMetrics
	before := testutil.ToFloat64(m.ItemsPublishedTotal)
	m.recordSuccess()
	after := testutil.ToFloat64(m.ItemsPublishedTotal)
	if after != before+1 {
		t.Errorf("expected ItemsPublishedTotal to increment by 1, got %f -> %f", before, after)
	}

	beforeFail := testutil.ToFloat64(m.ItemsFailedTotal.WithLabelValues("transient"))
	m.recordFailure("transient")
	afterFail := testutil.ToFloat64(m.ItemsFailedTotal.WithLabelValues("transient"))
	if afterFail != beforeFail+1 {
		t.Errorf("expected transient failure counter to increment by 1, got %f -> %f", beforeFail, afterFail)
	}
}
