package engine

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/visualgpt/visualgpt/compositor/internal/asset"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// ImageResolver hands the renderer decoded images. Resolve must not block.
type ImageResolver interface {
	Resolve(url string) (image.Image, asset.Status)
}

// ImageMap resolves from a fixed set of decoded images. URLs missing from
// the map are reported as failed.
type ImageMap map[string]image.Image

func (m ImageMap) Resolve(url string) (image.Image, asset.Status) {
	if img, ok := m[url]; ok && img != nil {
		return img, asset.Ready
	}
	return nil, asset.Failed
}

// Options parameterize one render pass. The interactive and export passes
// differ only in Scale and in whether the selection outline is drawn.
type Options struct {
	Scale       float64
	Selected    int
	Interactive bool
}

// RenderReport lists the layers that were skipped because their asset was
// not available.
type RenderReport struct {
	Pending []string `json:"pending,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

func (r RenderReport) Complete() bool {
	return len(r.Pending) == 0 && len(r.Failed) == 0
}

// SelectionColor is the accent used for the dashed selection outline.
var SelectionColor = color.NRGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF}

var selectionDash = []float64{6, 4}

const selectionWidth = 2

const (
	depthCopies = 6
	depthAlpha  = 0.08
)

// Renderer draws layer stacks. One Renderer serves both render passes.
type Renderer struct {
	fonts *Fonts
}

func NewRenderer(fonts *Fonts) *Renderer {
	if fonts == nil {
		fonts = NewFonts()
	}
	return &Renderer{fonts: fonts}
}

// Fonts returns the font set used for text layers and measurement.
func (r *Renderer) Fonts() *Fonts { return r.fonts }

// Render composites layers bottom to top onto a transparent buffer of
// canvas x opts.Scale device pixels.
func (r *Renderer) Render(canvas Size, layers layer.List, images ImageResolver, opts Options) (*image.RGBA, RenderReport) {
	s := NewSurface(canvas.W, canvas.H, opts.Scale)
	var report RenderReport
	root := s.State()

	for _, l := range layers {
		ps := root
		ps.Alpha = l.Common().Alpha()
		if ps.Alpha == 0 {
			continue
		}
		url, status := r.drawLayer(s, canvas, l, ps, images)
		switch status {
		case asset.Pending:
			report.Pending = append(report.Pending, url)
		case asset.Failed:
			report.Failed = append(report.Failed, url)
		}
	}

	if opts.Interactive && opts.Selected >= 0 && opts.Selected < len(layers) {
		r.drawSelection(s, canvas, layers[opts.Selected], root)
	}
	return s.Image(), report
}

// drawLayer renders one layer into its own buffer and composites it onto
// the surface at the layer's alpha. When an asset is missing it reports the
// URL and status instead of drawing.
func (r *Renderer) drawLayer(s *Surface, canvas Size, l layer.Layer, ps PaintState, images ImageResolver) (string, asset.Status) {
	var buf *image.RGBA
	switch v := l.(type) {
	case *layer.Background:
		var st asset.Status
		buf, st = r.drawBackground(s, canvas, v, ps, images)
		if st != asset.Ready {
			return v.BgValue.Value, st
		}
	case *layer.Image:
		var st asset.Status
		buf, st = r.drawImageLayer(s, v, ps, images)
		if st != asset.Ready {
			return v.URL, st
		}
	case *layer.Shape:
		buf = r.drawShape(s, v, ps)
	case *layer.Text:
		buf = r.drawText(s, v, ps)
	}
	if buf != nil {
		composite(s.Image(), buf, ps.Alpha, 0, 0)
	}
	return "", asset.Ready
}

func (r *Renderer) drawBackground(s *Surface, canvas Size, l *layer.Background, ps PaintState, images ImageResolver) (*image.RGBA, asset.Status) {
	w, h := l.Width, l.Height
	if w <= 0 || h <= 0 {
		w, h = float64(canvas.W), float64(canvas.H)
	}
	buf := s.newBuffer()
	b := buf.Bounds()

	switch l.BgType {
	case layer.BgSolid:
		c := MustColor(l.BgValue.Value)
		draw.Draw(buf, b, image.NewUniform(c), image.Point{}, draw.Src)
	case layer.BgGradient:
		x1, y1 := ps.Transform.TransformPoint(w, h)
		g := &linearGradient{
			x1: x1, y1: y1,
			c0:     MustColor(l.BgValue.Color1),
			c1:     MustColor(l.BgValue.Color2),
			bounds: b,
		}
		draw.Draw(buf, b, g, b.Min, draw.Src)
	case layer.BgImage:
		img, st := images.Resolve(l.BgValue.Value)
		if st != asset.Ready {
			return nil, st
		}
		ib := img.Bounds()
		m := ps.Transform.Multiply(Scale(w/float64(ib.Dx()), h/float64(ib.Dy())))
		drawImage(buf, img, m)
	default:
		return nil, asset.Ready
	}
	return buf, asset.Ready
}

func (r *Renderer) drawImageLayer(s *Surface, l *layer.Image, ps PaintState, images ImageResolver) (*image.RGBA, asset.Status) {
	img, st := images.Resolve(l.URL)
	if st != asset.Ready {
		return nil, st
	}
	ib := img.Bounds()
	if ib.Empty() || l.Width <= 0 || l.Height <= 0 {
		return nil, asset.Ready
	}

	place := ps.Then(Translate(l.X, l.Y)).
		Then(Scale(l.Width/float64(ib.Dx()), l.Height/float64(ib.Dy())))

	content := s.newBuffer()
	if l.BorderRadius > 0 {
		raw := s.newBuffer()
		drawImage(raw, img, place.Transform)
		var clip Path
		traceRoundedRect(&clip, l.X, l.Y, l.Width, l.Height, l.BorderRadius)
		paintMask(content, s.FillMask(&clip, ps), raw)
	} else {
		drawImage(content, img, place.Transform)
	}

	if l.Tint != nil {
		area := ps.Transform.TransformRect(Rect{X: l.X, Y: l.Y, Width: l.Width, Height: l.Height})
		applyTint(content, area.Pixels(), MustColor(l.Tint.Color), l.Tint.Alpha())
	}

	buf := s.newBuffer()
	if e := pickEffect(l.Shadow, l.Glow, l.Halo, nil); e.kind != effectNone {
		renderEffect(buf, alphaOf(content), e, ps)
	}
	composite(buf, content, 1, 0, 0)

	// The border goes on after the effect pass so it never casts a shadow.
	if l.Border != nil && l.Border.Width > 0 {
		var edge Path
		traceRoundedRect(&edge, l.X, l.Y, l.Width, l.Height, l.BorderRadius)
		paintColor(buf, s.StrokeMask(&edge, ps, l.Border.Width, nil), MustColor(l.Border.Color))
	}
	return buf, asset.Ready
}

func (r *Renderer) drawShape(s *Surface, l *layer.Shape, ps PaintState) *image.RGBA {
	if l.Width <= 0 || l.Height <= 0 {
		return nil
	}
	var p Path
	TraceShape(&p, l.ShapeKind, l.X, l.Y, l.Width, l.Height)
	cx, cy := l.X+l.Width/2, l.Y+l.Height/2
	rps := ps.Then(RotateAbout(l.Rotation, cx, cy))

	fill := MustColor(l.Fill)
	fillMask := s.FillMask(&p, rps)

	buf := s.newBuffer()
	if e := pickEffect(l.Shadow, l.Glow, nil, nil); e.kind != effectNone {
		renderEffect(buf, scaleAlpha(fillMask, fill.A), e, rps)
	}
	paintColor(buf, fillMask, fill)
	if l.Stroke != nil && l.Stroke.Width > 0 {
		paintColor(buf, s.StrokeMask(&p, rps, l.Stroke.Width, nil), MustColor(l.Stroke.Color))
	}
	return buf
}

func (r *Renderer) drawText(s *Surface, l *layer.Text, ps PaintState) *image.RGBA {
	p := r.fonts.TextPath(l)
	if p.Empty() {
		return nil
	}
	fillColor := MustColor(l.Color)
	fillMask := s.FillMask(p, ps)
	buf := s.newBuffer()

	if l.ThreeD {
		ob := opaqueBounds(fillMask)
		for i := depthCopies; i >= 1; i-- {
			shade := color.NRGBA{A: clamp8(255 * depthAlpha * float64(depthCopies+1-i))}
			off := int(math.Round(ps.Pixels(float64(i))))
			copyImg := colorize(fillMask, shade, ob)
			composite(buf, copyImg, 1, ob.Min.X+off, ob.Min.Y+off)
		}
	}

	if e := pickEffect(l.Shadow, l.Glow, l.Halo, l.Neon); e.kind != effectNone {
		renderEffect(buf, scaleAlpha(fillMask, fillColor.A), e, ps)
	}

	if l.Stroke != nil && l.Stroke.Width > 0 {
		paintColor(buf, s.StrokeMask(p, ps, l.Stroke.Width, nil), MustColor(l.Stroke.Color))
	}
	paintColor(buf, fillMask, fillColor)
	return buf
}

func (r *Renderer) drawSelection(s *Surface, canvas Size, l layer.Layer, ps PaintState) {
	b := LayerBounds(l, r.fonts, canvas)
	if b.IsEmpty() {
		return
	}
	var outline Path
	traceRect(&outline, b.X, b.Y, b.Width, b.Height)
	paintColor(s.Image(), s.StrokeMask(&outline, ps, selectionWidth, selectionDash), SelectionColor)
}

// scaleAlpha returns m multiplied by a/255, or m itself when a is opaque.
func scaleAlpha(m *image.Alpha, a uint8) *image.Alpha {
	if a == 255 {
		return m
	}
	out := image.NewAlpha(m.Bounds())
	for i, v := range m.Pix {
		out.Pix[i] = uint8(uint32(v) * uint32(a) / 255)
	}
	return out
}
