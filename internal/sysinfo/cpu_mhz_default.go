//go:build !darwin

package sysinfo

// detectCPUMHz 非 macOS 平台交由 cpu.Info 解析
func detectCPUMHz() float64 {
	return 0
}
