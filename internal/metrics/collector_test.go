package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{Version: "test"}, registry)
	return c, registry
}

// gather returns the metric family with the given name, or nil.
func gather(t *testing.T, registry *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range mf.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && lp.GetValue() != want {
				match = false
				break
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestCollectorInfo(t *testing.T) {
	_, registry := newTestCollector(t)

	mf := gather(t, registry, "buildferry_info")
	if mf == nil {
		t.Fatal("buildferry_info not registered")
	}
	m := mf.GetMetric()[0]
	if m.GetGauge().GetValue() != 1 {
		t.Error("info gauge must be 1")
	}
	if m.GetLabel()[0].GetValue() != "test" {
		t.Errorf("version label = %q, want test", m.GetLabel()[0].GetValue())
	}
}

func TestCollectorRunLifecycle(t *testing.T) {
	c, registry := newTestCollector(t)

	c.RunStarted(KindBuild)

	active := gather(t, registry, "buildferry_sessions_active")
	if got := active.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("sessions_active = %v, want 1", got)
	}

	c.RunFinished(KindBuild, ResultSuccess)

	active = gather(t, registry, "buildferry_sessions_active")
	if got := active.GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("sessions_active after finish = %v, want 0", got)
	}

	runs := gather(t, registry, "buildferry_runs_total")
	if got := counterValue(runs, map[string]string{"kind": "build", "result": "success"}); got != 1 {
		t.Errorf("runs_total{build,success} = %v, want 1", got)
	}

	durations := gather(t, registry, "buildferry_run_duration_seconds")
	if durations == nil {
		t.Fatal("run duration histogram not registered")
	}
	if got := durations.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("duration sample count = %d, want 1", got)
	}
}

func TestCollectorResultsAreIndependent(t *testing.T) {
	c, registry := newTestCollector(t)

	c.RunStarted(KindPublish)
	c.RunFinished(KindPublish, ResultFailure)
	c.RunStarted(KindPublish)
	c.RunFinished(KindPublish, ResultCancelled)

	runs := gather(t, registry, "buildferry_runs_total")
	if got := counterValue(runs, map[string]string{"kind": "publish", "result": "failure"}); got != 1 {
		t.Errorf("runs_total{publish,failure} = %v, want 1", got)
	}
	if got := counterValue(runs, map[string]string{"kind": "publish", "result": "cancelled"}); got != 1 {
		t.Errorf("runs_total{publish,cancelled} = %v, want 1", got)
	}
}

func TestCollectorOutputBytes(t *testing.T) {
	c, registry := newTestCollector(t)

	c.AddOutputBytes(KindBuild, 4096)
	c.AddOutputBytes(KindBuild, 1024)

	bytes := gather(t, registry, "buildferry_output_bytes_total")
	if got := counterValue(bytes, map[string]string{"kind": "build"}); got != 5120 {
		t.Errorf("output_bytes_total{build} = %v, want 5120", got)
	}
}

func TestServerServesMetrics(t *testing.T) {
	c, registry := newTestCollector(t)
	c.AddOutputBytes(KindPublish, 100)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("127.0.0.1:0", registry, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	if _, ok := families["buildferry_output_bytes_total"]; !ok {
		t.Error("exposition missing buildferry_output_bytes_total")
	}
	if _, ok := families["buildferry_info"]; !ok {
		t.Error("exposition missing buildferry_info")
	}
}

func TestServerHealth(t *testing.T) {
	_, registry := newTestCollector(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer("127.0.0.1:0", registry, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}
