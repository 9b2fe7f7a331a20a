// 本文件用于采集主机概览与本进程资源占用，供健康检查展示
package sysinfo

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/process"
)

var brandGHz = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*ghz`)

// HostInfo 主机概览
type HostInfo struct {
	Host   string      `json:"host"`
	OS     string      `json:"os"`
	Kernel string      `json:"kernel"`
	Uptime string      `json:"uptime"`
	Load   string      `json:"load"`
	CPU    string      `json:"cpu"`
	Self   ProcessInfo `json:"self"`
}

// ProcessInfo 本进程资源占用，内存负载生效后 RSS 随之上升
type ProcessInfo struct {
	PID     int32   `json:"pid"`
	RSS     string  `json:"rss"`
	RSSMB   int64   `json:"rssMB"`
	CPUPct  float64 `json:"cpuPct"`
	Threads int32   `json:"threads"`
}

// CollectHost 采集主机概览，单项失败时以 "--" 占位
func CollectHost() HostInfo {
	name, osName, kernel, uptime := collectHostInfo()
	return HostInfo{
		Host:   name,
		OS:     osName,
		Kernel: kernel,
		Uptime: uptime,
		Load:   collectLoadLabel(),
		CPU:    buildCPUInfoLabel(),
		Self:   collectSelf(),
	}
}

func collectHostInfo() (string, string, string, string) {
	info, err := host.Info()
	if err != nil {
		name, _ := os.Hostname()
		return fallbackString(name, "--"), runtime.GOOS, "--", "--"
	}
	osName := strings.TrimSpace(strings.Join([]string{info.Platform, info.PlatformVersion}, " "))
	if osName == "" {
		osName = runtime.GOOS
	}
	uptime := (time.Duration(info.Uptime) * time.Second).String()
	return fallbackString(info.Hostname, "--"), osName, fallbackString(info.KernelVersion, "--"), uptime
}

func collectLoadLabel() string {
	avg, err := load.Avg()
	if err != nil {
		return "--"
	}
	return fmt.Sprintf("%.2f / %.2f / %.2f", avg.Load1, avg.Load5, avg.Load15)
}

func buildCPUInfoLabel() string {
	cores := runtime.NumCPU()
	mhz := detectCPUMHz()
	if mhz <= 0 {
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			mhz = sanitizeMHz(infos[0].Mhz)
			if mhz <= 0 {
				mhz = parseBrandMHz(infos[0].ModelName)
			}
		}
	}
	return formatCPULabel(cores, mhz)
}

func formatCPULabel(cores int, mhz float64) string {
	if mhz <= 0 {
		return fmt.Sprintf("%d 核", cores)
	}
	return fmt.Sprintf("%d 核 · %.1f GHz", cores, mhz/1000)
}

// sanitizeMHz 部分平台会返回极小值（如 24 MHz），直接视为未知
func sanitizeMHz(mhz float64) float64 {
	if mhz < 100 {
		return 0
	}
	return mhz
}

// parseBrandMHz 从型号名中解析主频，例如 "Intel(R) Xeon(R) CPU @ 2.20GHz"
func parseBrandMHz(brand string) float64 {
	matches := brandGHz.FindStringSubmatch(brand)
	if len(matches) < 2 {
		return 0
	}
	val, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}
	return val * 1000
}

func collectSelf() ProcessInfo {
	pid := int32(os.Getpid())
	info := ProcessInfo{PID: pid, RSS: "--"}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return info
	}
	if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
		info.RSSMB = int64(mi.RSS / megaBytes)
		info.RSS = FormatMB(info.RSSMB)
	}
	if pct, err := proc.CPUPercent(); err == nil {
		info.CPUPct = float64(int(pct*10+0.5)) / 10
	}
	if n, err := proc.NumThreads(); err == nil {
		info.Threads = n
	}
	return info
}

func fallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
