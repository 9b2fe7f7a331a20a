// 本文件用于程序启动入口
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"schwer/internal/api"
	"schwer/internal/config"
	"schwer/internal/logger"
	"schwer/internal/metrics"
	"schwer/internal/models"
	"schwer/internal/service"
	"schwer/internal/sysinfo"
	"schwer/internal/watcher"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("程序退出: %v", err)
	}
}

func run() error {
	configPath, port := parseFlags()
	log.Printf("程序启动，配置文件: %s", configPath)

	cfg, err := loadAndValidateConfig(configPath, port)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()

	logConfig(cfg)

	loadService := service.NewLoadService(cfg)
	loadService.Start()

	var configWatcher *watcher.ConfigWatcher
	if cfg.WatchConfig == nil || *cfg.WatchConfig {
		configWatcher = startConfigWatcher(configPath, loadService)
	}

	apiServer := api.NewServer(cfg, loadService)
	apiServer.Start()

	waitForShutdown(loadService, apiServer, configWatcher)
	return nil
}

func parseFlags() (string, int) {
	var configPath string
	var port int
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.IntVar(&port, "port", 0, "监听端口，覆盖配置中的 api_bind 端口")
	flag.Parse()
	return configPath, port
}

func loadAndValidateConfig(configPath string, port int) (*models.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if port == 0 {
		return cfg, nil
	}

	host, _, err := net.SplitHostPort(cfg.APIBind)
	if err != nil {
		return nil, fmt.Errorf("监听地址格式错误: %w", err)
	}
	bind := net.JoinHostPort(host, strconv.Itoa(port))
	if _, err := config.ValidateBind(bind); err != nil {
		return nil, err
	}
	cfg.APIBind = bind
	return cfg, nil
}

func logConfig(cfg *models.Config) {
	logger.Info("配置加载成功")
	logger.Info("监听地址: %s", cfg.APIBind)
	logger.Info("CPU 负载协程数: %d", cfg.CPUCores)
	logger.Info("初始 CPU 负载: %d%%", cfg.InitialCPUPct)
	logger.Info("初始内存分配: %s", sysinfo.FormatMB(cfg.InitialMemMB))
	logger.Info("采样间隔: %s", cfg.MonitorPeriod())
	logToStd := cfg.LogToStd == nil || *cfg.LogToStd
	logger.Info("日志级别: %s", cfg.LogLevel)
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
	logger.Info("日志输出到标准输出: %v", logToStd)
}

// startConfigWatcher 配置文件变化时同步日志级别与初始负载目标
func startConfigWatcher(configPath string, loadService *service.LoadService) *watcher.ConfigWatcher {
	cw, err := watcher.NewConfigWatcher(configPath, func(cfg *models.Config) {
		current := loadService.Settings()
		if cfg.InitialCPUPct != current.CPUPct {
			loadService.UpdateCPULoad(cfg.InitialCPUPct)
		}
		if cfg.InitialMemMB != current.MemSizeMB {
			loadService.UpdateMemLoad(cfg.InitialMemMB)
		}
	})
	if err != nil {
		logger.Warn("创建配置监控失败: %v", err)
		return nil
	}
	if err := cw.Start(); err != nil {
		logger.Warn("启动配置监控失败: %v", err)
		_ = cw.Close()
		return nil
	}
	return cw
}

func waitForShutdown(loadService *service.LoadService, apiServer *api.Server, configWatcher *watcher.ConfigWatcher) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	<-signalChan
	logger.Info("收到退出信号，正在关闭服务...")

	if configWatcher != nil {
		if err := configWatcher.Close(); err != nil {
			logger.Warn("关闭配置监控失败: %v", err)
		}
	}
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("关闭 API 服务失败: %v", err)
		}
	}
	loadService.Stop()

	logger.Info("最终负载状态: %s", metrics.Global().SnapshotString())
	logger.Info("程序已退出")
}
