package dashboard

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"schwer/internal/canvas"
	"schwer/internal/metrics"
	"schwer/internal/models"
)

func newTestPage(t *testing.T, server string, outDir string) *Page {
	t.Helper()
	page := NewPage(PageOptions{Server: server, OutDir: outDir})
	page.CPUCanvas = canvas.NewRecorder(CanvasWidth, CanvasHeight)
	page.MemCanvas = canvas.NewRecorder(CanvasWidth, CanvasHeight)
	return page
}

func TestPollCPU_SuccessRendersAndMirrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cpu" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[12,40,7]`))
	}))
	defer srv.Close()

	collector := metrics.NewTestCollector()
	page := newTestPage(t, srv.URL, "")
	p := NewPoller(srv.URL, srv.Client(), page, collector)
	p.PollCPU(context.Background())

	if got := page.CPUFallback.Text(); got != "12,40,7" {
		t.Fatalf("expected fallback 12,40,7, got %q", got)
	}
	reading, ticks := p.LastCPU()
	if reading.Failed() || len(reading.Levels) != 3 || ticks != 1 {
		t.Fatalf("unexpected state: %+v ticks=%d", reading, ticks)
	}
	rec := page.CPUCanvas.(*canvas.Recorder)
	if texts := rec.Texts(); len(texts) != 3 || texts[2].Text != "7%" {
		t.Fatalf("expected three meter labels, got %+v", texts)
	}
	if !strings.Contains(collector.RenderPrometheus(), `schwer_dashboard_polls_total{outcome="ok",resource="cpu"} 1`) {
		t.Fatalf("expected ok poll metric")
	}
}

func TestPollCPU_NetworkFailureShowsServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	page := newTestPage(t, url, "")
	p := NewPoller(url, nil, page, metrics.NewTestCollector())
	p.PollCPU(context.Background())

	if got := page.CPUFallback.Text(); got != models.ErrServerDown {
		t.Fatalf("expected %q, got %q", models.ErrServerDown, got)
	}
	texts := page.CPUCanvas.(*canvas.Recorder).Texts()
	if len(texts) != 1 || texts[0].Text != models.ErrServerDown {
		t.Fatalf("expected centered error text, got %+v", texts)
	}
	if texts[0].X != CanvasWidth/2 || texts[0].Y != CanvasHeight/2 {
		t.Fatalf("expected text at canvas center, got (%v,%v)", texts[0].X, texts[0].Y)
	}
}

func TestPoll_Non2xxAndBadBodyAreFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cpu":
			w.WriteHeader(http.StatusInternalServerError)
		case "/mem":
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	page := newTestPage(t, srv.URL, "")
	p := NewPoller(srv.URL, srv.Client(), page, nil)
	p.PollCPU(context.Background())
	p.PollMem(context.Background())

	if got := page.CPUFallback.Text(); got != models.ErrServerDown {
		t.Fatalf("cpu: expected server down, got %q", got)
	}
	if got := page.MemFallback.Text(); got != models.ErrServerDown {
		t.Fatalf("mem: expected server down, got %q", got)
	}
	if _, ok := page.MemSizeInput.Max(); ok {
		t.Fatalf("expected max untouched after failed memory poll")
	}
}

func TestPollMem_SuccessUpdatesInputMax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":4096,"available":2048,"used":2048,"usedpct":50}`))
	}))
	defer srv.Close()

	page := newTestPage(t, srv.URL, "")
	p := NewPoller(srv.URL, srv.Client(), page, nil)
	p.PollMem(context.Background())

	max, ok := page.MemSizeInput.Max()
	if !ok || max != 2048 {
		t.Fatalf("expected max 2048, got %d (set=%v)", max, ok)
	}
	if got := page.MemFallback.Text(); got != `{"total":4096,"available":2048,"used":2048,"usedpct":50}` {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestPollMem_FailureKeepsPreviousMax(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"total":1000,"available":600,"used":400,"usedpct":40}`))
	}))
	defer srv.Close()

	page := newTestPage(t, srv.URL, "")
	p := NewPoller(srv.URL, srv.Client(), page, nil)
	p.PollMem(context.Background())
	fail.Store(true)
	p.PollMem(context.Background())

	if max, _ := page.MemSizeInput.Max(); max != 600 {
		t.Fatalf("expected max to stay 600, got %d", max)
	}
	reading, ticks := p.LastMem()
	if !reading.Failed() || ticks != 2 {
		t.Fatalf("expected failed second reading, got %+v ticks=%d", reading, ticks)
	}
}

func TestPoller_SlowCPUDoesNotDelayMemory(t *testing.T) {
	release := make(chan struct{})
	var memHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cpu":
			select {
			case <-release:
			case <-r.Context().Done():
			}
			_, _ = w.Write([]byte(`[1]`))
		case "/mem":
			memHits.Add(1)
			_, _ = w.Write([]byte(`{"total":10,"available":5,"used":5,"usedpct":50}`))
		}
	}))
	defer srv.Close()
	defer close(release)

	page := newTestPage(t, srv.URL, "")
	p := NewPoller(srv.URL, srv.Client(), page, nil)
	p.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for memHits.Load() < 3 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("memory polls stalled behind a blocked cpu poll")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ticks := p.LastCPU(); ticks != 0 {
		t.Fatalf("expected cpu poll still pending, got %d ticks", ticks)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop after cancel")
	}
}

func TestPoll_FlushWritesPNG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[55]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	page := NewPage(PageOptions{Server: srv.URL, OutDir: dir})
	p := NewPoller(srv.URL, srv.Client(), page, nil)
	p.PollCPU(context.Background())

	data, err := os.ReadFile(filepath.Join(dir, CPUCanvasID+".png"))
	if err != nil {
		t.Fatalf("expected png written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatalf("expected png signature")
	}
}

func TestTextNode_Mirror(t *testing.T) {
	var buf bytes.Buffer
	node := NewTextNode(CPUFallbackID, &buf)
	node.SetText("1,2")

	if node.Text() != "1,2" {
		t.Fatalf("unexpected text %q", node.Text())
	}
	if got := buf.String(); got != "cpu-monitor-fallback: 1,2\n" {
		t.Fatalf("unexpected mirror output %q", got)
	}
}
