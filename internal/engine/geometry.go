package engine

import (
	"image"
	"math"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// Size is a canvas size in logical pixels. It is fixed when a visual is
// loaded, from the natural size of its base image.
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

func (s Size) Valid() bool { return s.W > 0 && s.H > 0 }

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains checks if a point is inside the rect. All four edges count as
// inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Pixels rounds the rect outward to whole pixels.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)), int(math.Ceil(r.Y+r.Height)),
	)
}

// Viewport relates the on-screen size of the canvas element to its pixel
// buffer. Pointer events arrive in client pixels and must be mapped before
// they are compared with layer geometry.
type Viewport struct {
	BufferW float64 `json:"bufferWidth"`
	BufferH float64 `json:"bufferHeight"`
	ClientW float64 `json:"clientWidth"`
	ClientH float64 `json:"clientHeight"`
}

// DisplayScale returns the buffer-per-client-pixel factors. A zero client
// dimension maps with factor 1.
func (v Viewport) DisplayScale() (float64, float64) {
	sx, sy := 1.0, 1.0
	if v.ClientW > 0 && v.BufferW > 0 {
		sx = v.BufferW / v.ClientW
	}
	if v.ClientH > 0 && v.BufferH > 0 {
		sy = v.BufferH / v.ClientH
	}
	return sx, sy
}

// ToBuffer maps a client-space point into buffer space.
func (v Viewport) ToBuffer(x, y float64) Point {
	sx, sy := v.DisplayScale()
	return Point{X: x * sx, Y: y * sy}
}

// LayerBounds returns the hit-test and selection box of l. Text boxes sit
// on the baseline and extend one font size upward; rotation is ignored.
func LayerBounds(l layer.Layer, m TextMeasurer, canvas Size) Rect {
	switch v := l.(type) {
	case *layer.Background:
		return Rect{Width: float64(canvas.W), Height: float64(canvas.H)}
	case *layer.Image:
		return Rect{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height}
	case *layer.Shape:
		return Rect{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height}
	case *layer.Text:
		w := m.MeasureText(v)
		return Rect{
			X:      v.X - alignOffset(v.Align, w),
			Y:      v.Y - v.FontSize,
			Width:  w,
			Height: v.FontSize,
		}
	}
	return Rect{}
}
