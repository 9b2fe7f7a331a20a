package load

import (
	"math"
	"testing"
	"time"

	"schwer/internal/models"
)

func TestSleepDuration(t *testing.T) {
	cases := []struct {
		pct  int64
		want time.Duration
	}{
		{pct: 0, want: dutyPeriod},
		{pct: 25, want: dutyPeriod * 75 / 100},
		{pct: 100, want: 0},
		{pct: -5, want: dutyPeriod},
		{pct: 150, want: 0},
	}
	for _, tc := range cases {
		if got := sleepDuration(tc.pct); got != tc.want {
			t.Fatalf("sleepDuration(%d): expected %s, got %s", tc.pct, tc.want, got)
		}
	}
}

func TestCPULoad_UpdateDoesNotBlockAndStops(t *testing.T) {
	l := NewCPULoad(2, 0)
	l.Start()

	done := make(chan struct{})
	go func() {
		// 连续多次更新不能阻塞在缓冲通道上
		for i := int64(0); i <= 10; i++ {
			l.Update(i * 10)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Update blocked")
	}
	if l.Percent() != 100 {
		t.Fatalf("expected 100, got %d", l.Percent())
	}
	l.Update(5)
	l.Stop()
	if l.Cores() != 2 {
		t.Fatalf("expected 2 cores, got %d", l.Cores())
	}
}

func TestMemLoad_AllocatesAndReleases(t *testing.T) {
	l := NewMemLoad(0)
	l.Start()
	defer l.Stop()

	l.Update(2)
	waitFor(t, func() bool { return l.AllocatedMB() == 2 })
	if l.SizeMB() != 2 {
		t.Fatalf("expected requested size 2, got %d", l.SizeMB())
	}

	l.Update(0)
	waitFor(t, func() bool { return l.AllocatedMB() == 0 })
}

func TestMemLoad_InitialSizeAllocatedOnStart(t *testing.T) {
	l := NewMemLoad(1)
	l.Start()
	defer l.Stop()

	waitFor(t, func() bool { return l.AllocatedMB() == 1 })
}

func TestPagesFor(t *testing.T) {
	cases := []struct {
		name     string
		size     int64
		pageSize int
		want     int64
	}{
		{name: "one mb", size: 1, pageSize: 4096, want: 256},
		{name: "zero", size: 0, pageSize: 4096, want: 0},
		{name: "negative", size: -1, pageSize: 4096, want: 0},
		{name: "overflowing", size: models.MaxMemSizeMB + 1, pageSize: 4096, want: 0},
		{name: "max int", size: math.MaxInt64, pageSize: 4096, want: 0},
		{name: "bad page size", size: 1, pageSize: 0, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pagesFor(tc.size, tc.pageSize); got != tc.want {
				t.Fatalf("pagesFor(%d, %d) = %d, want %d", tc.size, tc.pageSize, got, tc.want)
			}
		})
	}
}

func TestMemLoad_OverflowingSizeAllocatesNothing(t *testing.T) {
	l := NewMemLoad(0)
	for _, size := range []int64{8796093022208, math.MaxInt64} {
		l.allocate(size)
		if l.AllocatedMB() != 0 || len(l.alloc) != 0 {
			t.Fatalf("size %d: expected nothing allocated, got %d MB", size, l.AllocatedMB())
		}
	}
	l.allocate(1)
	if l.AllocatedMB() != 1 {
		t.Fatalf("expected 1 MB after valid size, got %d", l.AllocatedMB())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
