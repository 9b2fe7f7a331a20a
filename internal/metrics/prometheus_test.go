// 本文件用于 Prometheus 指标测试 保障指标文本格式与核心字段可用

package metrics

import (
	"strings"
	"testing"
	"time"

	"schwer/internal/models"
)

func TestCollectorRenderPrometheus(t *testing.T) {
	collector := NewCollector()
	collector.ResetForTest()

	collector.SetLoadSettings(models.LoadSettings{CPUPct: 40, MemSizeMB: 512, Cores: 4})
	collector.IncLoadUpdate("cpu")
	collector.IncLoadUpdate("CPU")
	collector.ObserveHTTPRequest("/cpu", 202)
	collector.ObserveHTTPRequest("/cpu", 400)
	collector.ObserveHTTPRequest("/mem", 200)
	collector.SetWSSubscribers(3)
	collector.IncWSBroadcastError()
	collector.ObservePoll("cpu", "success", 20*time.Millisecond)
	collector.ObservePoll("mem", "failure", 2*time.Second)
	collector.IncFormSubmission("cpu-pct")

	out := collector.RenderPrometheus()

	mustContain := []string{
		"schwer_cpu_load_target_pct 40",
		"schwer_mem_load_target_mb 512",
		"schwer_cpu_cores 4",
		"schwer_ws_subscribers 3",
		"schwer_ws_broadcast_errors_total 1",
		`schwer_load_updates_total{resource="cpu"} 2`,
		`schwer_load_updates_total{resource="mem"} 0`,
		`schwer_http_requests_total{path="/cpu",status="202"} 1`,
		`schwer_http_requests_total{path="/cpu",status="400"} 1`,
		`schwer_http_requests_total{path="/mem",status="200"} 1`,
		`schwer_dashboard_polls_total{outcome="success",resource="cpu"} 1`,
		`schwer_dashboard_polls_total{outcome="failure",resource="mem"} 1`,
		`schwer_dashboard_poll_duration_seconds_bucket{le="0.025"} 1`,
		`schwer_dashboard_poll_duration_seconds_bucket{le="+Inf"} 2`,
		"schwer_dashboard_poll_duration_seconds_count 2",
		`schwer_dashboard_form_submissions_total{form="cpu-pct"} 1`,
		"# TYPE schwer_dashboard_poll_duration_seconds histogram",
	}
	for _, item := range mustContain {
		if !strings.Contains(out, item) {
			t.Fatalf("metrics output missing %q\n%s", item, out)
		}
	}
}

func TestCollectorNilSafe(t *testing.T) {
	var collector *Collector
	collector.IncLoadUpdate("cpu")
	collector.ObservePoll("cpu", "success", time.Millisecond)
	if collector.RenderPrometheus() != "" {
		t.Fatalf("nil collector should render nothing")
	}
}

func TestEscapeLabelValue(t *testing.T) {
	got := escapeLabelValue("a\"b\\c\nd")
	want := `a\"b\\c\nd`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
