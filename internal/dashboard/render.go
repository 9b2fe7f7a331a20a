// 本文件用于将 CPU 与内存采样绘制为仪表
package dashboard

import (
	"image/color"
	"strconv"

	"schwer/internal/canvas"
	"schwer/internal/models"
	"schwer/internal/sysinfo"
)

// 仪表尺寸，含 1px 边框。内区高 100px，CPU 仪表按 1px 对应 1% 绘制
const (
	cpuMeterWidth  = 50
	cpuMeterHeight = 102
	cpuMeterGap    = 30

	memMeterWidth  = 602
	memMeterHeight = 102

	meterBorder = 1

	errorTextSize = 24
	labelTextSize = 16

	// 坐标轴标签与仪表底边的距离
	axisLabelOffset = 10
	// 仪表内部左右标签与边框的距离
	innerLabelPadding = 10
)

// CPUReading 是一次 CPU 轮询的结果：要么是各核心使用率，要么是错误文案
type CPUReading struct {
	Levels models.CPULevels
	Err    string
}

// Failed 表示本次轮询失败
func (r CPUReading) Failed() bool {
	return r.Err != ""
}

// MemReading 是一次内存轮询的结果
type MemReading struct {
	Stats models.MemStats
	Err   string
}

// Failed 表示本次轮询失败
func (r MemReading) Failed() bool {
	return r.Err != ""
}

// ColorFor 按三档阈值选择填充色：>=90 红，>=70 琥珀，其余绿
func ColorFor(value int) color.RGBA {
	switch sysinfo.UsageTone(float64(value)) {
	case sysinfo.ToneCritical:
		return canvas.Red
	case sysinfo.ToneWarn:
		return canvas.Amber
	default:
		return canvas.Green
	}
}

// CPUStartX 返回 n 个 CPU 仪表整体居中时第一个仪表的左边界
func CPUStartX(canvasWidth, n int) float64 {
	total := n*cpuMeterWidth + (n-1)*cpuMeterGap
	return float64(canvasWidth-total) / 2
}

// CPUMeterX 返回第 i 个 CPU 仪表的左边界
func CPUMeterX(canvasWidth, n, i int) float64 {
	return CPUStartX(canvasWidth, n) + float64(i*(cpuMeterWidth+cpuMeterGap))
}

// DrawError 清空画布并居中绘制错误文案
func DrawError(c canvas.Canvas, msg string) {
	canvas.Clear(c)
	w, h := c.Size()
	c.FillText(msg, float64(w)/2, float64(h)/2, canvas.TextStyle{
		Size:     errorTextSize,
		Align:    canvas.AlignCenter,
		Baseline: canvas.BaselineMiddle,
		Color:    canvas.Black,
	})
}

// DrawCPU 每次整体重绘：每个核心一个竖向仪表，自底向上填充
func DrawCPU(c canvas.Canvas, r CPUReading) {
	if r.Failed() {
		DrawError(c, r.Err)
		return
	}
	canvas.Clear(c)

	w, h := c.Size()
	n := len(r.Levels)
	startY := float64(h-cpuMeterHeight) / 2
	innerW := float64(cpuMeterWidth - 2*meterBorder)
	innerH := float64(cpuMeterHeight - 2*meterBorder)

	for i, value := range r.Levels {
		x := CPUMeterX(w, n, i)

		c.FillRect(x, startY, cpuMeterWidth, cpuMeterHeight, canvas.Black)
		c.FillRect(x+meterBorder, startY+meterBorder, innerW, innerH, ColorFor(value))
		// 先整体着色，再把未使用部分刷白
		c.FillRect(x+meterBorder, startY+meterBorder, innerW, unusedHeight(innerH, value), canvas.White)

		c.FillText(strconv.Itoa(value)+"%", x+cpuMeterWidth/2, startY+cpuMeterHeight/2, canvas.TextStyle{
			Size:     labelTextSize,
			Align:    canvas.AlignCenter,
			Baseline: canvas.BaselineMiddle,
			Color:    canvas.Black,
		})
	}
}

// unusedHeight 返回需要刷白的高度，只对像素几何做截断，标签仍显示原值
func unusedHeight(inner float64, value int) float64 {
	white := inner - float64(value)
	if white < 0 {
		return 0
	}
	if white > inner {
		return inner
	}
	return white
}

// DrawMem 绘制单个横向内存仪表及容量标签
func DrawMem(c canvas.Canvas, r MemReading) {
	if r.Failed() {
		DrawError(c, r.Err)
		return
	}
	canvas.Clear(c)

	w, h := c.Size()
	s := r.Stats
	x := float64(w-memMeterWidth) / 2
	y := float64(h-memMeterHeight) / 2
	innerH := float64(memMeterHeight - 2*meterBorder)

	c.FillRect(x, y, memMeterWidth, memMeterHeight, canvas.Black)
	c.FillRect(x+meterBorder, y+meterBorder, float64(memMeterWidth-2*meterBorder), innerH, canvas.White)
	c.FillRect(x+meterBorder, y+meterBorder, MemBarWidth(s.UsedPct), innerH, ColorFor(s.UsedPct))

	axis := canvas.TextStyle{Size: labelTextSize, Align: canvas.AlignCenter, Baseline: canvas.BaselineHanging, Color: canvas.Black}
	c.FillText("0 MB", x, y+memMeterHeight+axisLabelOffset, axis)
	c.FillText(strconv.Itoa(s.Total)+" MB", x+memMeterWidth, y+memMeterHeight+axisLabelOffset, axis)

	mid := y + memMeterHeight/2
	inner := canvas.TextStyle{Size: labelTextSize, Align: canvas.AlignCenter, Baseline: canvas.BaselineMiddle, Color: canvas.Black}
	c.FillText(strconv.Itoa(s.UsedPct)+"%", x+memMeterWidth/2, mid, inner)

	inner.Align = canvas.AlignStart
	c.FillText(strconv.Itoa(s.Used)+" MB", x+innerLabelPadding, mid, inner)

	inner.Align = canvas.AlignEnd
	c.FillText(strconv.Itoa(s.Available)+" MB", x+memMeterWidth-innerLabelPadding, mid, inner)
}

// MemBarWidth 返回已用比例对应的彩色条宽度
func MemBarWidth(usedPct int) float64 {
	return float64(memMeterWidth) * float64(usedPct) / 100
}
