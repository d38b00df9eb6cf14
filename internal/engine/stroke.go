package engine

import "github.com/tdewolff/canvas"

// miterLimit bounds miter joins, as a multiple of the stroke width, before
// they fall back to bevels.
const miterLimit = 2.0

// strokeOutline converts a device-space path into the fillable outline of a
// stroke of the given width, dashed when dash is non-empty. Joins are
// mitered and open ends get butt caps.
//
// The outline is built in canvas's y-up space over a surface of height h so
// that ToRasterizer lands it back on device rows.
func strokeOutline(dev *Path, width float64, dash []float64, h float64) *canvas.Path {
	src := &canvas.Path{}
	dev.Replay(flipSink{p: src, h: h})
	if src.IsEmpty() || width <= 0 {
		return &canvas.Path{}
	}
	if dashed(dash) {
		src = src.Dash(0, dash...)
	}
	joiner := canvas.MiterClipJoiner(canvas.BevelJoiner, miterLimit*width)
	return src.Stroke(width, canvas.ButtCapper, joiner)
}

func dashed(dash []float64) bool {
	var total float64
	for _, d := range dash {
		if d < 0 {
			return false
		}
		total += d
	}
	return total > 0
}

// flipSink mirrors y about h while copying segments into a canvas path.
type flipSink struct {
	p *canvas.Path
	h float64
}

func (f flipSink) MoveTo(x, y float64) { f.p.MoveTo(x, f.h-y) }
func (f flipSink) LineTo(x, y float64) { f.p.LineTo(x, f.h-y) }
func (f flipSink) QuadTo(cx, cy, x, y float64) {
	f.p.QuadTo(cx, f.h-cy, x, f.h-y)
}
func (f flipSink) CubeTo(c1x, c1y, c2x, c2y, x, y float64) {
	f.p.CubeTo(c1x, f.h-c1y, c2x, f.h-c2y, x, f.h-y)
}
func (f flipSink) Close() { f.p.Close() }
