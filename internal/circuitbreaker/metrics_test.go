package circuitbreaker

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if BreakerEnabled == nil {
		t.Error("BreakerEnabled not registered")
	}

	if BreakerLatched == nil {
		t.Error("BreakerLatched not registered")
	}

	if BreakerBalance == nil {
		t.Error("BreakerBalance not registered")
	}

	if BreakerDisableThreshold == nil {
		t.Error("BreakerDisableThreshold not registered")
	}

	if BreakerEnableThreshold == nil {
		t.Error("BreakerEnableThreshold not registered")
	}

	if BreakerAvgTradeSize == nil {
		t.Error("BreakerAvgTradeSize not registered")
	}

	if BreakerFailureRun == nil {
		t.Error("BreakerFailureRun not registered")
	}

	if BreakerStateChanges == nil {
		t.Error("BreakerStateChanges not registered")
	}

	if BreakerCheckDuration == nil {
		t.Error("BreakerCheckDuration not registered")
	}
}

// TestMetrics_GaugeSet tests gauge can be set
func TestMetrics_GaugeSet(t *testing.T) {
	BreakerEnabled.Set(1.0)
	BreakerLatched.Set(0.0)
	BreakerBalance.Set(100.0)
	BreakerDisableThreshold.Set(30.0)
	BreakerEnableThreshold.Set(45.0)
	BreakerAvgTradeSize.Set(10.0)
	BreakerFailureRun.Set(2.0)
}

// TestMetrics_CounterIncrement tests counter can be incremented
func TestMetrics_CounterIncrement(t *testing.T) {
	BreakerStateChanges.Inc()
}

// TestMetrics_HistogramObserve tests histogram can observe values
func TestMetrics_HistogramObserve(t *testing.T) {
	BreakerCheckDuration.Observe(0.001)
}
