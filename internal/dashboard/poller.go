// 本文件用于按固定节拍轮询服务端并刷新面板
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"schwer/internal/logger"
	"schwer/internal/metrics"
	"schwer/internal/models"
)

// PollInterval 固定轮询间隔，不可配置
const PollInterval = 1000 * time.Millisecond

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// meterState 保存单个仪表最近一次绘制的读数
type meterState[T any] struct {
	mu    sync.Mutex
	last  T
	ticks uint64
}

func (s *meterState[T]) store(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = v
	s.ticks++
}

func (s *meterState[T]) load() (T, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.ticks
}

// Poller 驱动 CPU 与内存两条互不等待的轮询
type Poller struct {
	server   string
	client   *http.Client
	page     *Page
	metrics  *metrics.Collector
	interval time.Duration

	cpu meterState[CPUReading]
	mem meterState[MemReading]
}

// NewPoller 创建轮询器，client 为空时使用默认客户端
func NewPoller(server string, client *http.Client, page *Page, collector *metrics.Collector) *Poller {
	if client == nil {
		client = http.DefaultClient
	}
	return &Poller{
		server:   strings.TrimRight(server, "/"),
		client:   client,
		page:     page,
		metrics:  collector,
		interval: PollInterval,
	}
}

// Run 启动两条轮询，直到 ctx 取消。首次轮询在一个间隔之后发生
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.loop(ctx, p.PollCPU)
	}()
	go func() {
		defer wg.Done()
		p.loop(ctx, p.PollMem)
	}()
	wg.Wait()
}

// 同一资源的轮询串行执行，网络阻塞期间错过的节拍由 Ticker 丢弃
func (p *Poller) loop(ctx context.Context, tick func(context.Context)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// PollCPU 执行一次 CPU 轮询并刷新仪表与回退文本
func (p *Poller) PollCPU(ctx context.Context) {
	start := time.Now()
	var levels models.CPULevels
	reading := CPUReading{}
	if err := p.getJSON(ctx, "/cpu", &levels); err != nil {
		logger.Debug("CPU 轮询失败: %v", err)
		reading.Err = models.ErrServerDown
		p.metrics.ObservePoll("cpu", outcomeError, time.Since(start))
	} else {
		reading.Levels = levels
		p.metrics.ObservePoll("cpu", outcomeOK, time.Since(start))
	}
	p.cpu.store(reading)

	DrawCPU(p.page.CPUCanvas, reading)
	p.page.CPUFallback.SetText(cpuFallbackText(reading))
	if err := p.page.Flush(p.page.CPUCanvas, CPUCanvasID); err != nil {
		logger.Warn("%v", err)
	}
}

// PollMem 执行一次内存轮询；成功时同步更新分配输入框的上限
func (p *Poller) PollMem(ctx context.Context) {
	start := time.Now()
	var stats models.MemStats
	reading := MemReading{}
	if err := p.getJSON(ctx, "/mem", &stats); err != nil {
		logger.Debug("内存轮询失败: %v", err)
		reading.Err = models.ErrServerDown
		p.metrics.ObservePoll("mem", outcomeError, time.Since(start))
	} else {
		reading.Stats = stats
		p.metrics.ObservePoll("mem", outcomeOK, time.Since(start))
	}
	p.mem.store(reading)

	DrawMem(p.page.MemCanvas, reading)
	p.page.MemFallback.SetText(memFallbackText(reading))
	if !reading.Failed() {
		p.page.MemSizeInput.SetMax(reading.Stats.Available)
	}
	if err := p.page.Flush(p.page.MemCanvas, MemCanvasID); err != nil {
		logger.Warn("%v", err)
	}
}

// Client 返回轮询使用的 HTTP 客户端
func (p *Poller) Client() *http.Client {
	return p.client
}

// LastCPU 返回最近一次 CPU 读数及累计轮询次数
func (p *Poller) LastCPU() (CPUReading, uint64) {
	return p.cpu.load()
}

// LastMem 返回最近一次内存读数及累计轮询次数
func (p *Poller) LastMem() (MemReading, uint64) {
	return p.mem.load()
}

// getJSON 网络错误、非 2xx 与解码失败统一视为失败
func (p *Poller) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.server+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// cpuFallbackText 以逗号连接各核心使用率，例如 12,40,7
func cpuFallbackText(r CPUReading) string {
	if r.Failed() {
		return r.Err
	}
	parts := make([]string, len(r.Levels))
	for i, v := range r.Levels {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// memFallbackText 以 JSON 文本展示内存采样
func memFallbackText(r MemReading) string {
	if r.Failed() {
		return r.Err
	}
	data, _ := json.Marshal(r.Stats)
	return string(data)
}
