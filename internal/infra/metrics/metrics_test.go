package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHelpersNormalizeLabels(t *testing.T) {
	before := testutil.ToFloat64(deliveriesTotal.WithLabelValues("sent"))
	IncDelivery(" SENT ")
	if got := testutil.ToFloat64(deliveriesTotal.WithLabelValues("sent")); got != before+1 {
		t.Errorf("expected sent deliveries to grow by 1, got %v -> %v", before, got)
	}

	IncDecision("", "unmatched")
	if got := testutil.ToFloat64(decisionsTotal.WithLabelValues("none", "unmatched")); got < 1 {
		t.Errorf("expected empty action to be recorded as none, got %v", got)
	}
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
