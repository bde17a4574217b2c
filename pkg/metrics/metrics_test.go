package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	if err := (<-ch).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRPC("tasks/get", "ok", time.Millisecond)
	m.RecordBrokerDrop("status")
	m.RecordPushDispatch("failed", time.Second)
	if m.Handler() == nil {
		t.Fatal("Handler() returned nil on nil *Metrics")
	}
}

func TestMetrics_RecordRPC(t *testing.T) {
	m := New("a2a_test")
	m.RecordRPC("message/send", "ok", 10*time.Millisecond)

	got := counterValue(t, m.rpcRequests.WithLabelValues("message/send", "ok"))
	if got != 1 {
		t.Errorf("rpcRequests = %v, want 1", got)
	}
}

func TestMetrics_RecordBrokerDrop(t *testing.T) {
	m := New("a2a_test")
	m.RecordBrokerDrop("status")
	m.RecordBrokerDrop("status")

	got := counterValue(t, m.brokerDropped.WithLabelValues("status"))
	if got != 2 {
		t.Errorf("brokerDropped = %v, want 2", got)
	}
}

func TestMetrics_RecordPushDispatch(t *testing.T) {
	m := New("a2a_test")
	m.RecordPushDispatch("delivered", 50*time.Millisecond)

	got := counterValue(t, m.pushOutcomes.WithLabelValues("delivered"))
	if got != 1 {
		t.Errorf("pushOutcomes = %v, want 1", got)
	}
}
