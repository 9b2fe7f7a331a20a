package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"schwer/internal/metrics"
)

func TestForm_SubmitPostsOnceAndAlerts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Fatalf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("pct") != "80" {
			t.Fatalf("expected pct=80, got %q", r.FormValue("pct"))
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("CPU load percentage updated"))
	}))
	defer srv.Close()

	var alerts []string
	collector := metrics.NewTestCollector()
	form := NewForm(CPUFormID, srv.URL+"/cpu", srv.Client(), AlerterFunc(func(msg string) {
		alerts = append(alerts, msg)
	}), collector)
	form.Set("pct", "80")

	msg, err := form.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg != "CPU load percentage updated" {
		t.Fatalf("unexpected response %q", msg)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly one request, got %d", hits.Load())
	}
	if len(alerts) != 1 || alerts[0] != msg {
		t.Fatalf("expected one alert with response body, got %v", alerts)
	}
	if !strings.Contains(collector.RenderPrometheus(), `schwer_dashboard_form_submissions_total{form="cpu-pct"} 1`) {
		t.Fatalf("expected form submission metric")
	}
}

func TestForm_ErrorBodyShownVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Size value must be positive", http.StatusBadRequest)
	}))
	defer srv.Close()

	var got string
	form := NewForm(MemFormID, srv.URL+"/mem", srv.Client(), AlerterFunc(func(msg string) { got = msg }), nil)
	form.Set("size", "-1")

	if _, err := form.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got != "Size value must be positive\n" {
		t.Fatalf("unexpected alert %q", got)
	}
}

func TestForm_DoesNotFollowRedirect(t *testing.T) {
	var redirected atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cpu", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusSeeOther)
	})
	mux.HandleFunc("/elsewhere", func(w http.ResponseWriter, r *http.Request) {
		redirected.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	form := NewForm(CPUFormID, srv.URL+"/cpu", srv.Client(), nil, nil)
	form.Set("pct", "10")
	if _, err := form.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if redirected.Load() != 0 {
		t.Fatalf("expected redirect not to be followed")
	}
}

func TestForm_TransportErrorSkipsAlert(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	alerted := false
	form := NewForm(CPUFormID, url+"/cpu", nil, AlerterFunc(func(string) { alerted = true }), nil)
	if _, err := form.Submit(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
	if alerted {
		t.Fatalf("expected no alert on transport error")
	}
}

func TestNoRedirect_LeavesBaseClientUntouched(t *testing.T) {
	base := &http.Client{}
	c := noRedirect(base)
	if base.CheckRedirect != nil {
		t.Fatalf("expected base client unchanged")
	}
	if c.CheckRedirect == nil {
		t.Fatalf("expected redirect policy on copy")
	}
}
