// 本文件用于定义配置与资源负载模型
package models

import (
	"math"
	"time"
)

// ErrServerDown 是轮询失败时替代采样值展示的固定文案
const ErrServerDown = "Unable to connect to Schwer server."

// MaxMemSizeMB 内存分配上限，超过后换算为字节会溢出 int64
const MaxMemSizeMB = math.MaxInt64 >> 20

// Config 配置结构体
type Config struct {
	APIBind         string `yaml:"api_bind"` // API 服务监听地址
	LogLevel        string `yaml:"log_level"`
	LogFile         string `yaml:"log_file"`
	LogToStd        *bool  `yaml:"log_to_std"`
	CPUCores        int    `yaml:"cpu_cores"`        // CPU 负载协程数量
	MonitorInterval string `yaml:"monitor_interval"` // 资源采样间隔
	InitialCPUPct   int64  `yaml:"initial_cpu_pct"`
	InitialMemMB    int64  `yaml:"initial_mem_mb"`
	WatchConfig     *bool  `yaml:"watch_config"`
	DashboardServer string `yaml:"dashboard_server"`
	DashboardOutDir string `yaml:"dashboard_out_dir"`
}

// MonitorPeriod 返回解析后的采样间隔，非法值回退到 1 秒
func (c *Config) MonitorPeriod() time.Duration {
	if c == nil {
		return time.Second
	}
	d, err := time.ParseDuration(c.MonitorInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// CPULevels 表示每个 CPU 核心的使用率（0-100），按核心序号排列
type CPULevels []int

// MemStats 表示内存使用情况，容量单位为 MB
type MemStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Used      int `json:"used"`
	UsedPct   int `json:"usedpct"`
}

// LoadSettings 表示当前生效的负载目标
type LoadSettings struct {
	CPUPct    int64 `json:"cpuPct"`
	MemSizeMB int64 `json:"memSizeMB"`
	Cores     int   `json:"cores"`
}
