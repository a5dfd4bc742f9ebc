package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetricsRecordsMutations(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.Mutated("create", 1)
	m.Mutated("create", 1)
	m.Mutated("rename", 0)
	m.Mutated("delete", -1)
	m.ListenerFailed("create")

	data := collect(t, reader)

	mutations, ok := data["agentdesk.registry.mutations"].(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("mutations metric missing or wrong type: %T", data["agentdesk.registry.mutations"])
	}
	byOp := make(map[string]int64)
	for _, dp := range mutations.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("op"))
		byOp[op.AsString()] = dp.Value
	}
	if byOp["create"] != 2 || byOp["rename"] != 1 || byOp["delete"] != 1 {
		t.Errorf("mutations by op = %v, want create=2 rename=1 delete=1", byOp)
	}

	sessions, ok := data["agentdesk.registry.sessions"].(metricdata.Sum[int64])
	if !ok || len(sessions.DataPoints) != 1 {
		t.Fatalf("sessions metric missing: %T", data["agentdesk.registry.sessions"])
	}
	if got := sessions.DataPoints[0].Value; got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}

	failures, ok := data["agentdesk.registry.listener_failures"].(metricdata.Sum[int64])
	if !ok || len(failures.DataPoints) != 1 || failures.DataPoints[0].Value != 1 {
		t.Errorf("listener failures = %+v, want one point of 1", data["agentdesk.registry.listener_failures"])
	}
}

func TestSetupMetricsDisabled(t *testing.T) {
	m, shutdown, err := SetupMetrics(context.Background(), MetricsOptions{})
	if err != nil {
		t.Fatalf("SetupMetrics: %v", err)
	}
	defer shutdown()

	// the global provider is a no-op by default; recording must not panic
	m.Mutated("create", 1)
	m.ListenerFailed("create")
}

func TestMetricsSessionCountUnderConcurrency(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Mutated("create", 1)
				m.Mutated("update_messages", 0)
				if j%2 == 0 {
					m.Mutated("delete", -1)
				}
			}
		}()
	}
	wg.Wait()

	sessions, ok := collect(t, reader)["agentdesk.registry.sessions"].(metricdata.Sum[int64])
	if !ok || len(sessions.DataPoints) != 1 {
		t.Fatalf("sessions metric missing")
	}
	if got := sessions.DataPoints[0].Value; got != 500 {
		t.Errorf("sessions = %d, want 500", got)
	}
}
