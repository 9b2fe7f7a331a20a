// 本文件用于周期性采集 CPU 与内存使用情况
package sysinfo

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"schwer/internal/logger"
	"schwer/internal/models"
)

const megaBytes = 1 << 20

type cpuPercentFunc func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error)

type virtualMemoryFunc func(ctx context.Context) (*mem.VirtualMemoryStat, error)

// CPUMonitor 按核心采集 CPU 使用率
type CPUMonitor struct {
	interval time.Duration
	percent  cpuPercentFunc

	mu    sync.RWMutex
	usage models.CPULevels

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewCPUMonitor 创建 CPU 监控器，cores 用于预分配首次采样前的占位数据
func NewCPUMonitor(cores int, interval time.Duration) *CPUMonitor {
	if cores < 0 {
		cores = 0
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &CPUMonitor{
		interval: interval,
		percent:  cpu.PercentWithContext,
		usage:    make(models.CPULevels, cores),
	}
}

// Start 启动采集协程
func (m *CPUMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.monitor(ctx)
}

// Stop 停止采集协程并等待退出
func (m *CPUMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Usage 返回最近一次采样结果的副本
func (m *CPUMonitor) Usage() models.CPULevels {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u := make(models.CPULevels, len(m.usage))
	copy(u, m.usage)
	return u
}

func (m *CPUMonitor) monitor(ctx context.Context) {
	defer m.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		// cpu.Percent 自身会阻塞一个采样间隔
		vals, err := m.percent(ctx, m.interval, true)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("获取 CPU 使用率失败: %v", err)
			if !sleepCtx(ctx, m.interval) {
				return
			}
			continue
		}
		m.saveUsage(vals)
	}
}

// saveUsage 四舍五入后保存每个核心的使用率
func (m *CPUMonitor) saveUsage(values []float64) {
	levels := make(models.CPULevels, len(values))
	for i, v := range values {
		levels[i] = int(math.Round(clampPct(v)))
	}

	m.mu.Lock()
	m.usage = levels
	m.mu.Unlock()
}

// MemMonitor 采集虚拟内存使用情况
type MemMonitor struct {
	interval time.Duration
	virtual  virtualMemoryFunc

	mu    sync.RWMutex
	usage models.MemStats

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewMemMonitor 创建内存监控器
func NewMemMonitor(interval time.Duration) *MemMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &MemMonitor{
		interval: interval,
		virtual:  mem.VirtualMemoryWithContext,
	}
}

// Start 启动采集协程
func (m *MemMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.monitor(ctx)
}

// Stop 停止采集协程并等待退出
func (m *MemMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Usage 返回最近一次采样结果
func (m *MemMonitor) Usage() models.MemStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage
}

func (m *MemMonitor) monitor(ctx context.Context) {
	defer m.wg.Done()

	for {
		usage, err := m.virtual(ctx)
		if err != nil {
			logger.Warn("获取虚拟内存信息失败: %v", err)
		} else {
			m.saveUsage(usage.Total, usage.Available, usage.Used, usage.UsedPercent)
		}
		if !sleepCtx(ctx, m.interval) {
			return
		}
	}
}

// saveUsage 以 MB 保存容量并将使用率四舍五入为整数
func (m *MemMonitor) saveUsage(total, avail, used uint64, usedPct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.Total = int(total / megaBytes)
	m.usage.Available = int(avail / megaBytes)
	m.usage.Used = int(used / megaBytes)
	m.usage.UsedPct = int(math.Round(clampPct(usedPct)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
