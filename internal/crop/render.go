package crop

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

var (
	scrimColor  = color.NRGBA{A: 128}
	borderColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	bleedColor  = color.NRGBA{R: 0xEF, G: 0x44, B: 0x44, A: 255}
	handleColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

var bleedDash = []float64{6, 4}

const (
	borderWidth = 2
	handleSize  = 8
)

// Render draws the display-scale preview: the image dimmed by a scrim
// everywhere except the crop rect, the rect border, a dashed bleed outline
// and the eight handles.
func (t *Tool) Render() *image.RGBA {
	w, h := t.DisplaySize()
	clean := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(clean, clean.Bounds(), t.img, t.img.Bounds(), draw.Src, nil)

	out := image.NewRGBA(clean.Bounds())
	draw.Draw(out, out.Bounds(), clean, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), image.NewUniform(scrimColor), image.Point{}, draw.Over)

	s := t.scale
	disp := engine.Rect{X: t.Rect.X * s, Y: t.Rect.Y * s, Width: t.Rect.Width * s, Height: t.Rect.Height * s}
	inner := disp.Pixels().Intersect(out.Bounds())
	draw.Draw(out, inner, clean, inner.Min, draw.Src)

	surf := engine.NewSurface(w, h, 1)
	ps := surf.State()
	outline := func(r engine.Rect, width float64, dash []float64, c color.NRGBA) {
		var p engine.Path
		engine.TraceShape(&p, layer.ShapeRectangle, r.X, r.Y, r.Width, r.Height)
		mask := surf.StrokeMask(&p, ps, width, dash)
		draw.DrawMask(out, out.Bounds(), image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
	}

	if t.Bleed > 0 {
		b := t.Bleed * s
		outline(engine.Rect{X: disp.X - b, Y: disp.Y - b, Width: disp.Width + 2*b, Height: disp.Height + 2*b},
			1, bleedDash, bleedColor)
	}
	outline(disp, borderWidth, nil, borderColor)

	for _, hp := range t.handlePoints() {
		sq := image.Rect(
			int(hp.p.X)-handleSize/2, int(hp.p.Y)-handleSize/2,
			int(hp.p.X)+handleSize/2, int(hp.p.Y)+handleSize/2,
		)
		draw.Draw(out, sq.Intersect(out.Bounds()), image.NewUniform(handleColor), image.Point{}, draw.Src)
	}
	return out
}
