package canvas

import (
	"image/color"
	"sync"
)

// Op 记录的一次绘制操作
type Op struct {
	Kind  string // rect 或 text
	X, Y  float64
	W, H  float64
	Color color.RGBA
	Text  string
	Style TextStyle
}

// Recorder 只记录绘制操作的画布，用于校验绘制逻辑
type Recorder struct {
	width  int
	height int

	mu  sync.Mutex
	ops []Op
}

// NewRecorder 创建记录画布
func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: width, height: height}
}

func (r *Recorder) Size() (int, int) {
	return r.width, r.height
}

func (r *Recorder) FillRect(x, y, w, h float64, c color.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: "rect", X: x, Y: y, W: w, H: h, Color: c})
}

func (r *Recorder) FillText(text string, x, y float64, style TextStyle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: "text", X: x, Y: y, Text: text, Style: style, Color: style.Color})
}

// Ops 返回已记录操作的副本
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Rects 只返回矩形操作
func (r *Recorder) Rects() []Op {
	return r.filter("rect")
}

// Texts 只返回文本操作
func (r *Recorder) Texts() []Op {
	return r.filter("text")
}

// Reset 清空记录
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

func (r *Recorder) filter(kind string) []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Op
	for _, op := range r.ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}
