//go:build darwin

package sysinfo

import "golang.org/x/sys/unix"

// detectCPUMHz Apple Silicon 上 hw.cpufrequency 不存在，返回 0 交由调用方兜底
func detectCPUMHz() float64 {
	freq, err := unix.SysctlUint64("hw.cpufrequency")
	if err != nil || freq == 0 {
		return 0
	}
	return float64(freq) / 1e6
}
