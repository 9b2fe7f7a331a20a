// 本文件定义面板绘图抽象：矩形填充与文本绘制
package canvas

import "image/color"

// Align 文本水平对齐方式
type Align int

const (
	AlignStart Align = iota
	AlignCenter
	AlignEnd
)

// Baseline 文本垂直基线
type Baseline int

const (
	BaselineAlphabetic Baseline = iota
	BaselineMiddle
	BaselineHanging
)

const defaultTextSize = 16

// 面板使用的颜色
var (
	Black = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Red   = color.RGBA{R: 0xd5, G: 0x36, B: 0x00, A: 0xff}
	Amber = color.RGBA{R: 0xff, G: 0xbf, B: 0x00, A: 0xff}
	Green = color.RGBA{R: 0x60, G: 0xa9, B: 0x17, A: 0xff}
)

// TextStyle 描述一次文本绘制的字号、对齐与颜色
type TextStyle struct {
	Size     int
	Align    Align
	Baseline Baseline
	Color    color.RGBA
}

func (s TextStyle) size() int {
	if s.Size <= 0 {
		return defaultTextSize
	}
	return s.Size
}

// Canvas 二维绘图面，坐标原点在左上角
type Canvas interface {
	Size() (width, height int)
	FillRect(x, y, w, h float64, c color.RGBA)
	FillText(text string, x, y float64, style TextStyle)
}

// Clear 用白色覆盖整个画布
func Clear(c Canvas) {
	w, h := c.Size()
	c.FillRect(0, 0, float64(w), float64(h), White)
}
