// Package overlay draws a snapshot's node bounds and indices onto an image.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mj1618/uibridge/internal/model"
)

// LabelMode controls what text is drawn on each annotated node.
type LabelMode int

const (
	// LabelIndices draws "[i]" pre-order indices.
	LabelIndices LabelMode = iota
	// LabelCoords draws "(x,y)" node centers in dp.
	LabelCoords
)

// Options configures Render.
type Options struct {
	Mode LabelMode
	// All annotates every node instead of interactive ones only.
	All bool
	// Density sizes the blank canvas used when there is no background.
	Density float64
}

var (
	nativeColor  = color.RGBA{R: 255, G: 0, B: 0, A: 180}     // red
	webColor     = color.RGBA{R: 0, G: 120, B: 255, A: 180}   // blue
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255} // white
	outlineColor = color.RGBA{R: 0, G: 0, B: 0, A: 200}       // black
	canvasColor  = color.RGBA{R: 32, G: 32, B: 32, A: 255}
)

// Render annotates bg with the tree under root. Node bounds are dp; they
// are scaled to the image by the ratio of its width to the root's width.
// A nil bg renders onto a blank canvas of the root's size times density.
func Render(bg image.Image, root *model.GenericElement, opts Options) (*image.RGBA, error) {
	if root == nil {
		return nil, fmt.Errorf("render overlay: nil tree")
	}
	if root.Bounds.Empty() {
		return nil, fmt.Errorf("render overlay: root bounds %s are empty", root.Bounds)
	}
	if opts.Density <= 0 {
		opts.Density = 1
	}

	var canvas *image.RGBA
	if bg == nil {
		w := int(math.Round(float64(root.Bounds.Width()) * opts.Density))
		h := int(math.Round(float64(root.Bounds.Height()) * opts.Density))
		canvas = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(canvasColor), image.Point{}, draw.Src)
	} else {
		canvas = toRGBA(bg)
	}

	b := canvas.Bounds()
	scaleX := float64(b.Dx()) / float64(root.Bounds.Width())
	scaleY := float64(b.Dy()) / float64(root.Bounds.Height())

	model.Walk(root, func(el *model.GenericElement, _ int) bool {
		if el.Bounds.Empty() || (!opts.All && !interactive(el)) {
			return true
		}
		drawNode(canvas, el, root.Bounds, scaleX, scaleY, opts.Mode)
		return true
	})
	return canvas, nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func interactive(el *model.GenericElement) bool {
	return el.CanClick() || el.LongClickable || el.Checkable || el.Scrollable
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

func drawNode(img *image.RGBA, el *model.GenericElement, origin model.Rect, scaleX, scaleY float64, mode LabelMode) {
	x1 := int(float64(el.Bounds.Left-origin.Left) * scaleX)
	y1 := int(float64(el.Bounds.Top-origin.Top) * scaleY)
	x2 := int(float64(el.Bounds.Right-origin.Left) * scaleX)
	y2 := int(float64(el.Bounds.Bottom-origin.Top) * scaleY)

	c := nativeColor
	if el.PageType == model.PageWebView {
		c = webColor
	}
	drawRectangle(img, x1, y1, x2, y2, c)

	var label string
	switch mode {
	case LabelCoords:
		center := el.Bounds.Center()
		label = fmt.Sprintf("(%d,%d)", center.X, center.Y)
	default:
		label = fmt.Sprintf("[%d]", el.Index)
	}
	drawTextWithOutline(img, label, (x1+x2)/2, (y1+y2)/2)
}

// drawRectangle draws a rectangle outline clamped to the image.
func drawRectangle(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	r := image.Rect(x1, y1, x2, y2).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawTextWithOutline centers text at (x, y) with a one pixel outline.
func drawTextWithOutline(img *image.RGBA, text string, x, y int) {
	// basicfont.Face7x13 glyphs are 7 pixels wide and 13 high.
	offsetX := x - len(text)*7/2
	offsetY := y + 13/2

	d := &font.Drawer{Dst: img, Src: image.NewUniform(outlineColor), Face: basicfont.Face7x13}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d.Dot = fixed.P(offsetX+dx, offsetY+dy)
			d.DrawString(text)
		}
	}
	d.Src = image.NewUniform(textColor)
	d.Dot = fixed.P(offsetX, offsetY)
	d.DrawString(text)
}
