package service

import (
	"sync"

	"schwer/internal/load"
	"schwer/internal/logger"
	"schwer/internal/metrics"
	"schwer/internal/models"
	"schwer/internal/sysinfo"
)

// Load 由负载生成器实现
type Load interface {
	Start()
	Stop()
	Update(int64)
}

// CPUMonitor 由 CPU 使用率监控器实现
type CPUMonitor interface {
	Start()
	Stop()
	Usage() models.CPULevels
}

// MemMonitor 由内存使用监控器实现
type MemMonitor interface {
	Start()
	Stop()
	Usage() models.MemStats
}

// LoadService 组合 CPU/内存负载与对应的监控器
type LoadService struct {
	cpuLoad    Load
	memLoad    Load
	cpuMonitor CPUMonitor
	memMonitor MemMonitor
	metrics    *metrics.Collector

	mu       sync.RWMutex
	settings models.LoadSettings
	started  bool
}

// NewLoadService 根据配置构造负载与监控组件
func NewLoadService(config *models.Config) *LoadService {
	interval := config.MonitorPeriod()
	return newLoadService(
		load.NewCPULoad(config.CPUCores, config.InitialCPUPct),
		load.NewMemLoad(config.InitialMemMB),
		sysinfo.NewCPUMonitor(config.CPUCores, interval),
		sysinfo.NewMemMonitor(interval),
		metrics.Global(),
		models.LoadSettings{
			CPUPct:    config.InitialCPUPct,
			MemSizeMB: config.InitialMemMB,
			Cores:     config.CPUCores,
		},
	)
}

func newLoadService(cpuLoad, memLoad Load, cpuMonitor CPUMonitor, memMonitor MemMonitor, collector *metrics.Collector, settings models.LoadSettings) *LoadService {
	s := &LoadService{
		cpuLoad:    cpuLoad,
		memLoad:    memLoad,
		cpuMonitor: cpuMonitor,
		memMonitor: memMonitor,
		metrics:    collector,
		settings:   settings,
	}
	collector.SetLoadSettings(settings)
	return s
}

// Start 先启动监控再启动负载
func (s *LoadService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	logger.Info("启动负载服务...")
	s.cpuMonitor.Start()
	s.memMonitor.Start()
	s.cpuLoad.Start()
	s.memLoad.Start()
	s.started = true
	logger.Info("负载服务启动成功，CPU 核心: %d, CPU 负载: %d%%, 内存负载: %s",
		s.settings.Cores, s.settings.CPUPct, sysinfo.FormatMB(s.settings.MemSizeMB))
}

// Stop 先停止负载再停止监控
func (s *LoadService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	logger.Info("停止负载服务...")
	s.cpuLoad.Stop()
	s.memLoad.Stop()
	s.cpuMonitor.Stop()
	s.memMonitor.Stop()
	s.started = false
	logger.Info("负载服务已停止")
}

// UpdateCPULoad 更新 CPU 负载百分比
func (s *LoadService) UpdateCPULoad(pct int64) {
	s.cpuLoad.Update(pct)
	s.mu.Lock()
	s.settings.CPUPct = pct
	settings := s.settings
	s.mu.Unlock()

	s.metrics.IncLoadUpdate("cpu")
	s.metrics.SetLoadSettings(settings)
}

// UpdateMemLoad 更新内存分配大小（MB）
func (s *LoadService) UpdateMemLoad(size int64) {
	s.memLoad.Update(size)
	s.mu.Lock()
	s.settings.MemSizeMB = size
	settings := s.settings
	s.mu.Unlock()

	s.metrics.IncLoadUpdate("mem")
	s.metrics.SetLoadSettings(settings)
}

// CPUUsage 返回最近一次 CPU 使用率采样
func (s *LoadService) CPUUsage() models.CPULevels {
	return s.cpuMonitor.Usage()
}

// MemUsage 返回最近一次内存采样
func (s *LoadService) MemUsage() models.MemStats {
	return s.memMonitor.Usage()
}

// Settings 返回当前负载目标
func (s *LoadService) Settings() models.LoadSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}
