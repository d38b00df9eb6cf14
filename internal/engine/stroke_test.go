package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func squarePath(x, y, side float64) *Path {
	p := &Path{}
	p.MoveTo(x, y)
	p.LineTo(x+side, y)
	p.LineTo(x+side, y+side)
	p.LineTo(x, y+side)
	p.Close()
	return p
}

func TestStrokeMaskMiterCorners(t *testing.T) {
	s := NewSurface(100, 100, 1)
	mask := s.StrokeMask(squarePath(20, 20, 60), s.State(), 10, nil)

	// A round join would leave the outer corner pixel uncovered.
	assert.GreaterOrEqual(t, mask.AlphaAt(15, 15).A, uint8(250), "mitered corner")
	assert.GreaterOrEqual(t, mask.AlphaAt(50, 20).A, uint8(250), "on the edge")
	assert.Equal(t, uint8(0), mask.AlphaAt(50, 50).A, "interior stays open")
	assert.Equal(t, uint8(0), mask.AlphaAt(10, 10).A, "outside the miter")
}

func TestStrokeMaskKeepsDeviceOrientation(t *testing.T) {
	s := NewSurface(100, 100, 1)
	p := &Path{}
	p.MoveTo(10, 10)
	p.LineTo(90, 10)
	mask := s.StrokeMask(p, s.State(), 4, nil)

	assert.GreaterOrEqual(t, mask.AlphaAt(50, 10).A, uint8(250))
	assert.Equal(t, uint8(0), mask.AlphaAt(50, 89).A)
}

func TestStrokeMaskDashes(t *testing.T) {
	s := NewSurface(100, 20, 1)
	p := &Path{}
	p.MoveTo(0, 10)
	p.LineTo(100, 10)
	mask := s.StrokeMask(p, s.State(), 4, []float64{10, 10})

	assert.GreaterOrEqual(t, mask.AlphaAt(5, 10).A, uint8(250), "first dash")
	assert.Equal(t, uint8(0), mask.AlphaAt(15, 10).A, "first gap")
	assert.GreaterOrEqual(t, mask.AlphaAt(25, 10).A, uint8(250), "second dash")
}

func TestStrokeMaskScalesWidth(t *testing.T) {
	s := NewSurface(50, 50, 2)
	mask := s.StrokeMask(squarePath(10, 10, 30), s.State(), 4, nil)

	// Logical width 4 is 8 device pixels, centred on the edge at x=20.
	assert.GreaterOrEqual(t, mask.AlphaAt(17, 50).A, uint8(250))
	assert.Equal(t, uint8(0), mask.AlphaAt(12, 50).A)
}

func TestStrokeMaskZeroWidth(t *testing.T) {
	s := NewSurface(20, 20, 1)
	mask := s.StrokeMask(squarePath(2, 2, 10), s.State(), 0, nil)
	assert.True(t, opaqueBounds(mask).Empty())
}
