package engine

import "math"

// PathSink receives outline segments. Path implements it; TraceShape and the
// glyph loader write into it.
type PathSink interface {
	MoveTo(x, y float64)
	LineTo(x, y float64)
	QuadTo(cx, cy, x, y float64)
	CubeTo(c1x, c1y, c2x, c2y, x, y float64)
	Close()
}

// Point is a 2D coordinate.
type Point struct {
	X, Y float64
}

type segOp uint8

const (
	segMove segOp = iota
	segLine
	segQuad
	segCube
	segClose
)

type segment struct {
	op  segOp
	pts [3]Point
}

// Path is a sequence of outline segments in logical canvas coordinates.
type Path struct {
	segs []segment
}

func (p *Path) MoveTo(x, y float64) {
	p.segs = append(p.segs, segment{op: segMove, pts: [3]Point{{x, y}}})
}

func (p *Path) LineTo(x, y float64) {
	p.segs = append(p.segs, segment{op: segLine, pts: [3]Point{{x, y}}})
}

func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.segs = append(p.segs, segment{op: segQuad, pts: [3]Point{{cx, cy}, {x, y}}})
}

func (p *Path) CubeTo(c1x, c1y, c2x, c2y, x, y float64) {
	p.segs = append(p.segs, segment{op: segCube, pts: [3]Point{{c1x, c1y}, {c2x, c2y}, {x, y}}})
}

func (p *Path) Close() {
	p.segs = append(p.segs, segment{op: segClose})
}

// Empty reports whether the path has no drawable segments.
func (p *Path) Empty() bool {
	return len(p.segs) == 0
}

// Transform returns a copy of the path with every point mapped through m.
func (p *Path) Transform(m Matrix2D) *Path {
	out := &Path{segs: make([]segment, len(p.segs))}
	for i, s := range p.segs {
		for j := range pointCount(s.op) {
			s.pts[j].X, s.pts[j].Y = m.TransformPoint(s.pts[j].X, s.pts[j].Y)
		}
		out.segs[i] = s
	}
	return out
}

// Bounds returns the axis-aligned box of all points, including curve
// control points.
func (p *Path) Bounds() Rect {
	first := true
	var minX, minY, maxX, maxY float64
	for _, s := range p.segs {
		for j := range pointCount(s.op) {
			pt := s.pts[j]
			if first {
				minX, maxX, minY, maxY = pt.X, pt.X, pt.Y, pt.Y
				first = false
				continue
			}
			minX = math.Min(minX, pt.X)
			maxX = math.Max(maxX, pt.X)
			minY = math.Min(minY, pt.Y)
			maxY = math.Max(maxY, pt.Y)
		}
	}
	if first {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func pointCount(op segOp) int {
	switch op {
	case segMove, segLine:
		return 1
	case segQuad:
		return 2
	case segCube:
		return 3
	}
	return 0
}

// Replay feeds every segment of p into sink.
func (p *Path) Replay(sink PathSink) {
	for _, s := range p.segs {
		switch s.op {
		case segMove:
			sink.MoveTo(s.pts[0].X, s.pts[0].Y)
		case segLine:
			sink.LineTo(s.pts[0].X, s.pts[0].Y)
		case segQuad:
			sink.QuadTo(s.pts[0].X, s.pts[0].Y, s.pts[1].X, s.pts[1].Y)
		case segCube:
			sink.CubeTo(s.pts[0].X, s.pts[0].Y, s.pts[1].X, s.pts[1].Y, s.pts[2].X, s.pts[2].Y)
		case segClose:
			sink.Close()
		}
	}
}
