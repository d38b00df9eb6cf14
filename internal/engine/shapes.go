package engine

import (
	"math"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// kappa places cubic control points for a quarter ellipse: 4*(sqrt(2)-1)/3.
const kappa = 0.5522847498

// TraceShape appends the closed outline of kind, fitted to the box
// (x, y, w, h), to sink. Output depends only on the arguments.
func TraceShape(sink PathSink, kind layer.ShapeKind, x, y, w, h float64) {
	switch kind {
	case layer.ShapeCircle:
		traceEllipse(sink, x+w/2, y+h/2, w/2, h/2)
	case layer.ShapeTriangle:
		sink.MoveTo(x+w/2, y)
		sink.LineTo(x+w, y+h)
		sink.LineTo(x, y+h)
		sink.Close()
	case layer.ShapeDiamond:
		sink.MoveTo(x+w/2, y)
		sink.LineTo(x+w, y+h/2)
		sink.LineTo(x+w/2, y+h)
		sink.LineTo(x, y+h/2)
		sink.Close()
	case layer.ShapeStar:
		traceStar(sink, x+w/2, y+h/2, min(w, h)/2)
	case layer.ShapeHeart:
		traceHeart(sink, x, y, w, h)
	case layer.ShapePentagon:
		tracePolygon(sink, 5, x+w/2, y+h/2, min(w, h)/2)
	case layer.ShapeHexagon:
		tracePolygon(sink, 6, x+w/2, y+h/2, min(w, h)/2)
	case layer.ShapeOctagon:
		tracePolygon(sink, 8, x+w/2, y+h/2, min(w, h)/2)
	default:
		traceRect(sink, x, y, w, h)
	}
}

func traceRect(sink PathSink, x, y, w, h float64) {
	sink.MoveTo(x, y)
	sink.LineTo(x+w, y)
	sink.LineTo(x+w, y+h)
	sink.LineTo(x, y+h)
	sink.Close()
}

// traceRoundedRect clamps the radius to half the shorter side.
func traceRoundedRect(sink PathSink, x, y, w, h, r float64) {
	r = math.Min(r, math.Min(w, h)/2)
	if r <= 0 {
		traceRect(sink, x, y, w, h)
		return
	}
	k := r * kappa
	sink.MoveTo(x+r, y)
	sink.LineTo(x+w-r, y)
	sink.CubeTo(x+w-r+k, y, x+w, y+r-k, x+w, y+r)
	sink.LineTo(x+w, y+h-r)
	sink.CubeTo(x+w, y+h-r+k, x+w-r+k, y+h, x+w-r, y+h)
	sink.LineTo(x+r, y+h)
	sink.CubeTo(x+r-k, y+h, x, y+h-r+k, x, y+h-r)
	sink.LineTo(x, y+r)
	sink.CubeTo(x, y+r-k, x+r-k, y, x+r, y)
	sink.Close()
}

func traceEllipse(sink PathSink, cx, cy, rx, ry float64) {
	kx, ky := rx*kappa, ry*kappa
	sink.MoveTo(cx+rx, cy)
	sink.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	sink.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	sink.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	sink.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	sink.Close()
}

// tracePolygon places n vertices at angles 2*pi*i/n - pi/2 so the first
// vertex points straight up.
func tracePolygon(sink PathSink, n int, cx, cy, r float64) {
	for i := range n {
		a := 2*math.Pi*float64(i)/float64(n) - math.Pi/2
		px, py := cx+r*math.Cos(a), cy+r*math.Sin(a)
		if i == 0 {
			sink.MoveTo(px, py)
		} else {
			sink.LineTo(px, py)
		}
	}
	sink.Close()
}

// traceStar alternates outer and inner vertices, five points, top first.
func traceStar(sink PathSink, cx, cy, outer float64) {
	const points = 5
	inner := outer * 0.4
	for i := range 2 * points {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := math.Pi*float64(i)/points - math.Pi/2
		px, py := cx+r*math.Cos(a), cy+r*math.Sin(a)
		if i == 0 {
			sink.MoveTo(px, py)
		} else {
			sink.LineTo(px, py)
		}
	}
	sink.Close()
}

// traceHeart draws two cubic lobes meeting at the bottom tip, with the notch
// at top-center 0.3h down.
func traceHeart(sink PathSink, x, y, w, h float64) {
	top := y + h*0.3
	sink.MoveTo(x+w/2, top)
	sink.CubeTo(x+w/2, y, x, y, x, top)
	sink.CubeTo(x, y+h*0.6, x+w/2, y+h*0.8, x+w/2, y+h)
	sink.CubeTo(x+w/2, y+h*0.8, x+w, y+h*0.6, x+w, top)
	sink.CubeTo(x+w, y, x+w/2, y, x+w/2, top)
	sink.Close()
}
