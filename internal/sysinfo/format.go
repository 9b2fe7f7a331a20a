// 本文件用于提供资源用量格式化与阈值判定
package sysinfo

import (
	"github.com/dustin/go-humanize"
)

// 用量等级，阈值为闭区间下界
const (
	ToneNormal   = "normal"
	ToneWarn     = "warn"
	ToneCritical = "critical"

	WarnThreshold     = 70
	CriticalThreshold = 90
)

// UsageTone 根据使用率返回用量等级：>=90 critical，>=70 warn，其余 normal
func UsageTone(pct float64) string {
	switch {
	case pct >= CriticalThreshold:
		return ToneCritical
	case pct >= WarnThreshold:
		return ToneWarn
	default:
		return ToneNormal
	}
}

// FormatMB 将 MB 数值格式化为易读的容量字符串
func FormatMB(mb int64) string {
	if mb < 0 {
		return "-" + humanize.IBytes(uint64(-mb)*megaBytes)
	}
	return humanize.IBytes(uint64(mb) * megaBytes)
}

func clampPct(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
