package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

func TestTraceShapeDeterministic(t *testing.T) {
	for _, kind := range layer.ShapeKinds() {
		var a, b Path
		TraceShape(&a, kind, 10, 20, 100, 80)
		TraceShape(&b, kind, 10, 20, 100, 80)
		assert.Equal(t, a, b, kind.String())
		assert.False(t, a.Empty(), kind.String())
	}
}

func TestTraceShapeScaleSimilar(t *testing.T) {
	for _, kind := range layer.ShapeKinds() {
		var one, two Path
		TraceShape(&one, kind, 10, 20, 100, 80)
		TraceShape(&two, kind, 20, 40, 200, 160)

		scaled := one.Transform(Scale(2, 2))
		a, b := scaled.Bounds(), two.Bounds()
		assert.InDelta(t, a.X, b.X, 1e-9, kind.String())
		assert.InDelta(t, a.Y, b.Y, 1e-9, kind.String())
		assert.InDelta(t, a.Width, b.Width, 1e-9, kind.String())
		assert.InDelta(t, a.Height, b.Height, 1e-9, kind.String())
	}
}

func TestTraceShapeStaysInBox(t *testing.T) {
	box := Rect{X: 5, Y: 5, Width: 120, Height: 90}
	for _, kind := range layer.ShapeKinds() {
		var p Path
		TraceShape(&p, kind, box.X, box.Y, box.Width, box.Height)
		b := p.Bounds()
		assert.GreaterOrEqual(t, b.X, box.X-1e-9, kind.String())
		assert.GreaterOrEqual(t, b.Y, box.Y-1e-9, kind.String())
		assert.LessOrEqual(t, b.X+b.Width, box.X+box.Width+1e-9, kind.String())
		assert.LessOrEqual(t, b.Y+b.Height, box.Y+box.Height+1e-9, kind.String())
	}
}

func TestUnknownShapeTracesRectangle(t *testing.T) {
	kind, ok := layer.ParseShapeKind("blob")
	assert.False(t, ok)

	var got, want Path
	TraceShape(&got, kind, 0, 0, 50, 40)
	traceRect(&want, 0, 0, 50, 40)
	assert.Equal(t, want, got)
}

func TestPolygonFirstVertexPointsUp(t *testing.T) {
	var p Path
	tracePolygon(&p, 6, 50, 50, 40)
	first := p.segs[0].pts[0]
	assert.InDelta(t, 50, first.X, 1e-9)
	assert.InDelta(t, 10, first.Y, 1e-9)
}
