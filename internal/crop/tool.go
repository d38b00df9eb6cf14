// Package crop implements the crop and resize tool: one source image, one
// crop rectangle with eight resize handles, an optional print bleed, and a
// native-resolution export of the selected region.
package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/visualgpt/visualgpt/compositor/internal/engine"
)

const (
	// MinSize is the smallest crop width or height in image pixels, unless
	// the image itself is smaller.
	MinSize = 50
	// HandleTolerance is the grab distance around a handle in display pixels.
	HandleTolerance = 10
)

var ErrEmptyRegion = errors.New("crop region is empty")

type Handle uint8

const (
	HandleNone Handle = iota
	HandleNW
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
	HandleMove
)

var handleNames = [...]string{"none", "nw", "n", "ne", "e", "se", "s", "sw", "w", "move"}

func (h Handle) String() string {
	if int(h) < len(handleNames) {
		return handleNames[h]
	}
	return "none"
}

// edges reports which sides of the rect a handle drags.
func (h Handle) edges() (left, top, right, bottom bool) {
	switch h {
	case HandleNW:
		return true, true, false, false
	case HandleN:
		return false, true, false, false
	case HandleNE:
		return false, true, true, false
	case HandleE:
		return false, false, true, false
	case HandleSE:
		return false, false, true, true
	case HandleS:
		return false, false, false, true
	case HandleSW:
		return true, false, false, true
	case HandleW:
		return true, false, false, false
	}
	return false, false, false, false
}

// Tool holds the crop state for one image. Rect and Bleed are in source
// image pixels; pointer input is in display pixels.
type Tool struct {
	img   image.Image
	w, h  float64
	scale float64

	Rect  engine.Rect
	Bleed float64

	active    Handle
	origin    engine.Point
	startRect engine.Rect
}

// NewTool starts with the whole image selected. The display scale fits
// the image's longer side into displayMax pixels; it never enlarges.
func NewTool(img image.Image, displayMax int) *Tool {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	scale := 1.0
	if longest := math.Max(w, h); displayMax > 0 && longest > float64(displayMax) {
		scale = float64(displayMax) / longest
	}
	return &Tool{
		img:   img,
		w:     w,
		h:     h,
		scale: scale,
		Rect:  engine.Rect{Width: w, Height: h},
	}
}

// Scale is display pixels per image pixel.
func (t *Tool) Scale() float64 { return t.scale }

func (t *Tool) ImageSize() (int, int) { return int(t.w), int(t.h) }

// DisplaySize is the size of the preview Render draws.
func (t *Tool) DisplaySize() (int, int) {
	return int(math.Round(t.w * t.scale)), int(math.Round(t.h * t.scale))
}

// Active returns the handle being dragged.
func (t *Tool) Active() Handle { return t.active }

func (t *Tool) minW() float64 { return math.Min(MinSize, t.w) }
func (t *Tool) minH() float64 { return math.Min(MinSize, t.h) }

// SetRect replaces the crop rect, clamped to the minimum size and to the
// image.
func (t *Tool) SetRect(r engine.Rect) {
	r.Width = clamp(r.Width, t.minW(), t.w)
	r.Height = clamp(r.Height, t.minH(), t.h)
	r.X = clamp(r.X, 0, t.w-r.Width)
	r.Y = clamp(r.Y, 0, t.h-r.Height)
	t.Rect = r
}

// SetBleed sets the outward margin; negative values become zero.
func (t *Tool) SetBleed(px float64) {
	t.Bleed = math.Max(0, px)
}

type handlePoint struct {
	h Handle
	p engine.Point
}

// handlePoints returns the display position of every resize handle.
func (t *Tool) handlePoints() [8]handlePoint {
	s := t.scale
	l, tp := t.Rect.X*s, t.Rect.Y*s
	r, b := (t.Rect.X+t.Rect.Width)*s, (t.Rect.Y+t.Rect.Height)*s
	mx, my := (l+r)/2, (tp+b)/2
	// Corners first so they win where handles overlap on a small rect.
	return [8]handlePoint{
		{HandleNW, engine.Point{X: l, Y: tp}},
		{HandleNE, engine.Point{X: r, Y: tp}},
		{HandleSE, engine.Point{X: r, Y: b}},
		{HandleSW, engine.Point{X: l, Y: b}},
		{HandleN, engine.Point{X: mx, Y: tp}},
		{HandleE, engine.Point{X: r, Y: my}},
		{HandleS, engine.Point{X: mx, Y: b}},
		{HandleW, engine.Point{X: l, Y: my}},
	}
}

// HandleAt resolves a display-space point to a handle, HandleMove inside
// the rect, or HandleNone.
func (t *Tool) HandleAt(p engine.Point) Handle {
	for _, hp := range t.handlePoints() {
		if math.Abs(p.X-hp.p.X) <= HandleTolerance && math.Abs(p.Y-hp.p.Y) <= HandleTolerance {
			return hp.h
		}
	}
	s := t.scale
	disp := engine.Rect{X: t.Rect.X * s, Y: t.Rect.Y * s, Width: t.Rect.Width * s, Height: t.Rect.Height * s}
	if disp.Contains(p.X, p.Y) {
		return HandleMove
	}
	return HandleNone
}

// Begin starts a drag at p and returns the grabbed handle.
func (t *Tool) Begin(p engine.Point) Handle {
	t.active = t.HandleAt(p)
	t.origin = p
	t.startRect = t.Rect
	return t.active
}

// Drag applies the pointer delta since Begin to the rect. Results that
// would shrink the rect below the minimum or leave the image are clamped.
func (t *Tool) Drag(p engine.Point) bool {
	if t.active == HandleNone {
		return false
	}
	dx := (p.X - t.origin.X) / t.scale
	dy := (p.Y - t.origin.Y) / t.scale
	s := t.startRect

	if t.active == HandleMove {
		t.Rect = engine.Rect{
			X:      clamp(s.X+dx, 0, t.w-s.Width),
			Y:      clamp(s.Y+dy, 0, t.h-s.Height),
			Width:  s.Width,
			Height: s.Height,
		}
		return true
	}

	left, top := s.X, s.Y
	right, bottom := s.X+s.Width, s.Y+s.Height
	dl, dt, dr, db := t.active.edges()
	if dl {
		left = clamp(left+dx, 0, right-t.minW())
	}
	if dr {
		right = clamp(right+dx, left+t.minW(), t.w)
	}
	if dt {
		top = clamp(top+dy, 0, bottom-t.minH())
	}
	if db {
		bottom = clamp(bottom+dy, top+t.minH(), t.h)
	}
	t.Rect = engine.Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
	return true
}

// End finishes the drag.
func (t *Tool) End() {
	t.active = HandleNone
}

// Region is the exported area: the rect grown by the bleed on every side,
// rounded to whole pixels and clamped to the image. It is relative to the
// image's top-left corner.
func (t *Tool) Region() image.Rectangle {
	r := image.Rect(
		int(math.Round(t.Rect.X-t.Bleed)),
		int(math.Round(t.Rect.Y-t.Bleed)),
		int(math.Round(t.Rect.X+t.Rect.Width+t.Bleed)),
		int(math.Round(t.Rect.Y+t.Rect.Height+t.Bleed)),
	)
	return r.Intersect(image.Rect(0, 0, int(t.w), int(t.h)))
}

// Cropped copies the region at the source's native resolution.
func (t *Tool) Cropped() (*image.RGBA, error) {
	region := t.Region()
	if region.Empty() {
		return nil, ErrEmptyRegion
	}
	out := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(out, out.Bounds(), t.img, region.Min.Add(t.img.Bounds().Min), draw.Src)
	return out, nil
}

// Export PNG-encodes the cropped region.
func (t *Tool) Export() ([]byte, error) {
	img, err := t.Cropped()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(hi, v))
}
