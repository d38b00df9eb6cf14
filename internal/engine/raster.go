package engine

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Surface is a device-pixel RGBA target for one render pass. Scale is the
// ratio of device pixels to logical canvas pixels.
type Surface struct {
	img   *image.RGBA
	scale float64
	r     *vector.Rasterizer
}

// NewSurface allocates a transparent surface for a canvasW x canvasH canvas
// rendered at scale.
func NewSurface(canvasW, canvasH int, scale float64) *Surface {
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Round(float64(canvasW) * scale))
	h := int(math.Round(float64(canvasH) * scale))
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, w, h)), scale: scale}
}

func (s *Surface) Image() *image.RGBA      { return s.img }
func (s *Surface) Scale() float64          { return s.scale }
func (s *Surface) Bounds() image.Rectangle { return s.img.Bounds() }

// State returns the root paint state of the surface.
func (s *Surface) State() PaintState {
	return PaintState{Transform: Scale(s.scale, s.scale), Alpha: 1}
}

func (s *Surface) newBuffer() *image.RGBA {
	return image.NewRGBA(s.img.Bounds())
}

// Coverage rasterizes a path already in device coordinates into an alpha
// mask covering the whole surface. Overlapping subpaths of the same winding
// union; opposite windings cut holes.
func (s *Surface) Coverage(dev *Path) *image.Alpha {
	b := s.img.Bounds()
	mask := image.NewAlpha(b)
	if dev.Empty() {
		return mask
	}
	s.reset()
	dev.Replay(rasterSink{s.r})
	s.r.Draw(mask, b, image.Opaque, image.Point{})
	return mask
}

func (s *Surface) reset() {
	b := s.img.Bounds()
	if s.r == nil {
		s.r = vector.NewRasterizer(b.Dx(), b.Dy())
		return
	}
	s.r.Reset(b.Dx(), b.Dy())
}

// FillMask transforms a logical path by ps and rasterizes it.
func (s *Surface) FillMask(p *Path, ps PaintState) *image.Alpha {
	return s.Coverage(p.Transform(ps.Transform))
}

// StrokeMask strokes a logical path. width and dash are logical lengths.
func (s *Surface) StrokeMask(p *Path, ps PaintState, width float64, dash []float64) *image.Alpha {
	dev := p.Transform(ps.Transform)
	var devDash []float64
	for _, d := range dash {
		devDash = append(devDash, ps.Pixels(d))
	}
	b := s.img.Bounds()
	outline := strokeOutline(dev, ps.Pixels(width), devDash, float64(b.Dy()))
	mask := image.NewAlpha(b)
	if outline.IsEmpty() {
		return mask
	}
	s.reset()
	outline.ToRasterizer(s.r, 1)
	s.r.Draw(mask, b, image.Opaque, image.Point{})
	return mask
}

type rasterSink struct {
	r *vector.Rasterizer
}

func (rs rasterSink) MoveTo(x, y float64) { rs.r.MoveTo(float32(x), float32(y)) }
func (rs rasterSink) LineTo(x, y float64) { rs.r.LineTo(float32(x), float32(y)) }
func (rs rasterSink) QuadTo(cx, cy, x, y float64) {
	rs.r.QuadTo(float32(cx), float32(cy), float32(x), float32(y))
}
func (rs rasterSink) CubeTo(c1x, c1y, c2x, c2y, x, y float64) {
	rs.r.CubeTo(float32(c1x), float32(c1y), float32(c2x), float32(c2y), float32(x), float32(y))
}
func (rs rasterSink) Close() { rs.r.ClosePath() }

// paintMask paints src through mask onto dst.
func paintMask(dst *image.RGBA, mask *image.Alpha, src image.Image) {
	draw.DrawMask(dst, dst.Bounds(), src, image.Point{}, mask, mask.Bounds().Min, draw.Over)
}

// paintColor paints a flat color through mask onto dst.
func paintColor(dst *image.RGBA, mask *image.Alpha, c color.NRGBA) {
	if c.A == 0 {
		return
	}
	paintMask(dst, mask, image.NewUniform(c))
}

// composite draws src over dst at the given alpha, shifted by (dx, dy)
// device pixels.
func composite(dst, src *image.RGBA, alpha float64, dx, dy int) {
	if alpha <= 0 {
		return
	}
	r := src.Bounds().Add(image.Pt(dx, dy))
	if alpha >= 1 {
		draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
		return
	}
	m := image.NewUniform(color.Alpha{A: clamp8(alpha * 255)})
	draw.DrawMask(dst, r, src, src.Bounds().Min, m, image.Point{}, draw.Over)
}

// alphaOf extracts the alpha channel of img.
func alphaOf(img *image.RGBA) *image.Alpha {
	b := img.Bounds()
	m := image.NewAlpha(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := img.PixOffset(b.Min.X, y)
		di := m.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			m.Pix[di+x] = img.Pix[si+4*x+3]
		}
	}
	return m
}

// opaqueBounds returns the smallest rectangle holding every non-zero pixel
// of m, or an empty rectangle.
func opaqueBounds(m *image.Alpha) image.Rectangle {
	b := m.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
		for i, a := range row {
			if a == 0 {
				continue
			}
			x := b.Min.X + i
			minX, maxX = min(minX, x), max(maxX, x+1)
			minY, maxY = min(minY, y), max(maxY, y+1)
		}
	}
	if minX >= maxX || minY >= maxY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX, maxY)
}

// linearGradient is an image source interpolating c0 to c1 along the
// device-space segment (x0,y0)-(x1,y1), clamped at both ends.
type linearGradient struct {
	x0, y0, x1, y1 float64
	c0, c1         color.NRGBA
	bounds         image.Rectangle
}

func (g *linearGradient) ColorModel() color.Model { return color.NRGBAModel }
func (g *linearGradient) Bounds() image.Rectangle { return g.bounds }

func (g *linearGradient) At(x, y int) color.Color {
	dx, dy := g.x1-g.x0, g.y1-g.y0
	den := dx*dx + dy*dy
	var t float64
	if den > 0 {
		px, py := float64(x)+0.5-g.x0, float64(y)+0.5-g.y0
		t = (px*dx + py*dy) / den
	}
	t = math.Max(0, math.Min(1, t))
	lerp := func(a, b uint8) uint8 {
		return clamp8(float64(a) + (float64(b)-float64(a))*t)
	}
	return color.NRGBA{
		R: lerp(g.c0.R, g.c1.R),
		G: lerp(g.c0.G, g.c1.G),
		B: lerp(g.c0.B, g.c1.B),
		A: lerp(g.c0.A, g.c1.A),
	}
}

// drawImage resamples src into dst through the logical-to-device transform
// m, where m maps src's pixel grid onto the canvas.
func drawImage(dst *image.RGBA, src image.Image, m Matrix2D) {
	sb := src.Bounds()
	m = m.Multiply(Translate(float64(-sb.Min.X), float64(-sb.Min.Y)))
	if m.IsIdentity() {
		draw.Draw(dst, sb.Sub(sb.Min), src, sb.Min, draw.Over)
		return
	}
	draw.BiLinear.Transform(dst, m.Aff3(), src, sb, draw.Over, nil)
}
