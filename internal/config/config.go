package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"schwer/internal/models"
)

const (
	MinPort     = 1024
	MaxPort     = 65535
	DefaultPort = 9999
)

// DefaultConfig 返回未提供配置文件时使用的默认配置
func DefaultConfig() *models.Config {
	cfg := &models.Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig 加载配置文件，文件不存在时返回默认配置
func LoadConfig(configFile string) (*models.Config, error) {
	var config models.Config
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyDefaults(&config)
	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *models.Config) {
	if strings.TrimSpace(config.APIBind) == "" {
		config.APIBind = ":" + strconv.Itoa(DefaultPort)
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.CPUCores <= 0 {
		config.CPUCores = runtime.NumCPU()
	}
	if strings.TrimSpace(config.MonitorInterval) == "" {
		config.MonitorInterval = "1s"
	}
	if strings.TrimSpace(config.DashboardServer) == "" {
		config.DashboardServer = "http://127.0.0.1:" + strconv.Itoa(DefaultPort)
	}
	if strings.TrimSpace(config.DashboardOutDir) == "" {
		config.DashboardOutDir = "dashboard"
	}
}

// ValidateConfig 验证配置
func ValidateConfig(config *models.Config) error {
	if _, err := ValidateBind(config.APIBind); err != nil {
		return err
	}
	d, err := time.ParseDuration(config.MonitorInterval)
	if err != nil {
		return fmt.Errorf("采样间隔格式错误: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("采样间隔必须为正数")
	}
	if config.InitialCPUPct < 0 || config.InitialCPUPct > 100 {
		return fmt.Errorf("初始 CPU 负载必须在 0-100 之间")
	}
	if config.InitialMemMB < 0 {
		return fmt.Errorf("初始内存分配不能为负数")
	}
	if config.InitialMemMB > models.MaxMemSizeMB {
		return fmt.Errorf("初始内存分配不能超过 %d MB", models.MaxMemSizeMB)
	}
	return nil
}

// ValidateBind 校验监听地址中的端口范围并返回端口号
func ValidateBind(bind string) (int, error) {
	_, portStr, err := net.SplitHostPort(bind)
	if err != nil {
		return 0, fmt.Errorf("监听地址格式错误: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("端口号格式错误: %s", portStr)
	}
	if port < MinPort || port > MaxPort {
		return 0, fmt.Errorf("端口号必须在 %d-%d 之间", MinPort, MaxPort)
	}
	return port, nil
}
