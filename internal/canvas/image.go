package canvas

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Image 基于 RGBA 位图的画布实现
type Image struct {
	rgba *image.RGBA
	face font.Face
}

// NewImage 创建指定尺寸的白底画布
func NewImage(width, height int) *Image {
	img := &Image{
		rgba: image.NewRGBA(image.Rect(0, 0, width, height)),
		face: basicfont.Face7x13,
	}
	Clear(img)
	return img
}

// Size 返回画布宽高
func (img *Image) Size() (int, int) {
	b := img.rgba.Bounds()
	return b.Dx(), b.Dy()
}

// At 返回指定像素颜色
func (img *Image) At(x, y int) color.RGBA {
	return img.rgba.RGBAAt(x, y)
}

// RGBA 返回底层位图
func (img *Image) RGBA() *image.RGBA {
	return img.rgba
}

// FillRect 填充矩形，宽高为负时向反方向延伸
func (img *Image) FillRect(x, y, w, h float64, c color.RGBA) {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	r := image.Rect(round(x), round(y), round(x+w), round(y+h))
	draw.Draw(img.rgba, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// FillText 以点阵字体绘制文本，并按字号缩放
func (img *Image) FillText(text string, x, y float64, style TextStyle) {
	width := font.MeasureString(img.face, text).Ceil()
	metrics := img.face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()
	if width <= 0 || height <= 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: img.face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)

	scale := float64(style.size()) / float64(height)
	sw := float64(width) * scale
	sh := float64(height) * scale

	left := x
	switch style.Align {
	case AlignCenter:
		left -= sw / 2
	case AlignEnd:
		left -= sw
	}
	top := y
	switch style.Baseline {
	case BaselineAlphabetic:
		top -= float64(ascent) * scale
	case BaselineMiddle:
		top -= sh / 2
	}

	dr := image.Rect(round(left), round(top), round(left+sw), round(top+sh))
	scaled := image.NewAlpha(dr)
	xdraw.ApproxBiLinear.Scale(scaled, dr, mask, mask.Bounds(), xdraw.Src, nil)
	draw.DrawMask(img.rgba, dr, image.NewUniform(style.Color), image.Point{}, scaled, dr.Min, draw.Over)
}

// EncodePNG 将画布编码为 PNG
func (img *Image) EncodePNG(w io.Writer) error {
	return png.Encode(w, img.rgba)
}

// WriteFile 原子写入 PNG 文件，读者不会看到半张图
func (img *Image) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "canvas-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := img.EncodePNG(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("编码 PNG 失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func round(v float64) int {
	return int(math.Round(v))
}
