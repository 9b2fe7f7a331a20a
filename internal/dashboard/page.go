// 本文件定义面板页面元素：画布、文本回退节点、表单与数字输入框
package dashboard

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"schwer/internal/canvas"
	"schwer/internal/metrics"
)

// 页面元素标识
const (
	CPUCanvasID    = "cpu-monitor"
	MemCanvasID    = "mem-monitor"
	CPUFallbackID  = "cpu-monitor-fallback"
	MemFallbackID  = "mem-monitor-fallback"
	CPUFormID      = "cpu-pct"
	MemFormID      = "mem-size"
	MemSizeInputID = "mem-size-input"

	CanvasWidth  = 800
	CanvasHeight = 160
)

// TextNode 纯文本节点，保存最近一次采样或错误的文字形式
type TextNode struct {
	ID string

	mu     sync.Mutex
	text   string
	mirror io.Writer
}

// NewTextNode 创建文本节点，mirror 非空时每次更新同步写出一行
func NewTextNode(id string, mirror io.Writer) *TextNode {
	return &TextNode{ID: id, mirror: mirror}
}

// SetText 替换节点文本
func (n *TextNode) SetText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = text
	if n.mirror != nil {
		_, _ = fmt.Fprintf(n.mirror, "%s: %s\n", n.ID, text)
	}
}

// Text 返回节点文本
func (n *TextNode) Text() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text
}

// NumberInput 数字输入框，max 随可用内存更新
type NumberInput struct {
	ID string

	mu     sync.Mutex
	max    int
	hasMax bool
}

// SetMax 更新上限
func (in *NumberInput) SetMax(max int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.max = max
	in.hasMax = true
}

// Max 返回当前上限，未设置时 ok 为 false
func (in *NumberInput) Max() (max int, ok bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.max, in.hasMax
}

// Page 聚合面板上的全部元素
type Page struct {
	CPUCanvas    canvas.Canvas
	MemCanvas    canvas.Canvas
	CPUFallback  *TextNode
	MemFallback  *TextNode
	CPUForm      *Form
	MemForm      *Form
	MemSizeInput *NumberInput

	outDir string
}

// PageOptions 页面构建参数
type PageOptions struct {
	Server  string       // 服务端根地址，例如 http://127.0.0.1:9999
	OutDir  string       // 画布 PNG 输出目录，为空时不落盘
	Client  *http.Client // 为空时使用默认客户端
	Alerter Alerter      // 表单响应展示方式
	Mirror  io.Writer    // 回退文本镜像输出
	Metrics *metrics.Collector
}

// NewPage 按固定元素标识构建页面，画布为位图实现
func NewPage(opts PageOptions) *Page {
	server := strings.TrimRight(opts.Server, "/")
	return &Page{
		CPUCanvas:    canvas.NewImage(CanvasWidth, CanvasHeight),
		MemCanvas:    canvas.NewImage(CanvasWidth, CanvasHeight),
		CPUFallback:  NewTextNode(CPUFallbackID, opts.Mirror),
		MemFallback:  NewTextNode(MemFallbackID, opts.Mirror),
		CPUForm:      NewForm(CPUFormID, server+"/cpu", opts.Client, opts.Alerter, opts.Metrics),
		MemForm:      NewForm(MemFormID, server+"/mem", opts.Client, opts.Alerter, opts.Metrics),
		MemSizeInput: &NumberInput{ID: MemSizeInputID},
		outDir:       opts.OutDir,
	}
}

type fileWriter interface {
	WriteFile(path string) error
}

// Flush 将画布写入输出目录，文件名为 <画布标识>.png
func (p *Page) Flush(c canvas.Canvas, id string) error {
	if p.outDir == "" {
		return nil
	}
	fw, ok := c.(fileWriter)
	if !ok {
		return nil
	}
	if err := fw.WriteFile(filepath.Join(p.outDir, id+".png")); err != nil {
		return fmt.Errorf("写入画布 %s 失败: %w", id, err)
	}
	return nil
}
