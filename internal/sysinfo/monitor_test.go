package sysinfo

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

func TestCPUMonitor_SaveUsageRoundsAndResizes(t *testing.T) {
	m := NewCPUMonitor(2, time.Second)
	if got := m.Usage(); len(got) != 2 {
		t.Fatalf("expected 2 placeholder cores, got %d", len(got))
	}

	m.saveUsage([]float64{12.4, 12.5, 99.9, 100.7})
	got := m.Usage()
	want := []int{12, 13, 100, 100}
	if len(got) != len(want) {
		t.Fatalf("expected %d cores, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("core %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	got[0] = 77
	if m.Usage()[0] != 12 {
		t.Fatalf("Usage must return a copy")
	}
}

func TestCPUMonitor_StartStopUsesSampler(t *testing.T) {
	m := NewCPUMonitor(1, 5*time.Millisecond)
	var calls atomic.Int32
	m.percent = func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error) {
		if !perCPU {
			t.Errorf("expected per-cpu sampling")
		}
		if calls.Add(1)%2 == 0 {
			return nil, errors.New("boom")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		return []float64{42, 7}, nil
	}

	m.Start()
	deadline := time.Now().Add(2 * time.Second)
	for len(m.Usage()) != 2 || m.Usage()[0] != 42 {
		if time.Now().After(deadline) {
			t.Fatalf("monitor did not store sample, got %v", m.Usage())
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
}

func TestMemMonitor_SaveUsageInMegabytes(t *testing.T) {
	m := NewMemMonitor(time.Second)
	m.saveUsage(4096*megaBytes, 3072*megaBytes+123, 1024*megaBytes, 25.4)

	got := m.Usage()
	if got.Total != 4096 || got.Available != 3072 || got.Used != 1024 || got.UsedPct != 25 {
		t.Fatalf("unexpected mem stats: %+v", got)
	}
}

func TestMemMonitor_StartStopUsesSampler(t *testing.T) {
	m := NewMemMonitor(5 * time.Millisecond)
	m.virtual = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{
			Total:       2048 * megaBytes,
			Available:   512 * megaBytes,
			Used:        1536 * megaBytes,
			UsedPercent: 75,
		}, nil
	}

	m.Start()
	deadline := time.Now().Add(2 * time.Second)
	for m.Usage().Total != 2048 {
		if time.Now().After(deadline) {
			t.Fatalf("monitor did not store sample")
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	if got := m.Usage(); got.UsedPct != 75 || got.Available != 512 {
		t.Fatalf("unexpected mem stats: %+v", got)
	}
}

func TestUsageTone_ClosedLowerBounds(t *testing.T) {
	cases := map[float64]string{
		100: ToneCritical,
		90:  ToneCritical,
		89:  ToneWarn,
		70:  ToneWarn,
		69:  ToneNormal,
		0:   ToneNormal,
	}
	for pct, want := range cases {
		if got := UsageTone(pct); got != want {
			t.Fatalf("UsageTone(%v): expected %s, got %s", pct, want, got)
		}
	}
}

func TestFormatMB(t *testing.T) {
	if got := FormatMB(1024); got != "1.0 GiB" {
		t.Fatalf("expected 1.0 GiB, got %q", got)
	}
	if got := FormatMB(0); got != "0 B" {
		t.Fatalf("expected 0 B, got %q", got)
	}
}

func TestParseBrandMHz(t *testing.T) {
	cases := map[string]float64{
		"Intel(R) Xeon(R) CPU @ 2.20GHz": 2200,
		"AMD EPYC 7B13 3 GHz":            3000,
		"Apple M2":                       0,
		"":                               0,
	}
	for brand, want := range cases {
		if got := parseBrandMHz(brand); got != want {
			t.Fatalf("parseBrandMHz(%q): expected %v, got %v", brand, want, got)
		}
	}
}

func TestFormatCPULabel(t *testing.T) {
	if got := formatCPULabel(8, 0); got != "8 核" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := formatCPULabel(4, 2200); got != "4 核 · 2.2 GHz" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := sanitizeMHz(24); got != 0 {
		t.Fatalf("expected tiny frequency to be dropped, got %v", got)
	}
}

func TestCollectHost_FillsPlaceholders(t *testing.T) {
	info := CollectHost()
	if info.Host == "" || info.OS == "" || info.CPU == "" {
		t.Fatalf("expected non-empty overview, got %+v", info)
	}
	if info.Self.PID != int32(os.Getpid()) {
		t.Fatalf("expected own pid %d, got %d", os.Getpid(), info.Self.PID)
	}
}
