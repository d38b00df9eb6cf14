package engine

import "github.com/visualgpt/visualgpt/compositor/internal/layer"

// Scene is the read-only context the controller hit-tests against.
type Scene struct {
	Layers   layer.List
	Measurer TextMeasurer
	Canvas   Size
}

type drag struct {
	index  int
	offset Point
}

// Controller turns pointer and touch events into selection changes and
// layer moves. It is either idle or dragging exactly one layer.
type Controller struct {
	drag *drag
}

// Dragging reports the index of the layer being dragged.
func (c *Controller) Dragging() (int, bool) {
	if c.drag == nil {
		return -1, false
	}
	return c.drag.index, true
}

// PointerDown hit-tests p and returns the new selection, -1 for none. On a
// hit the controller starts dragging that layer.
func (c *Controller) PointerDown(s Scene, p Point) int {
	c.drag = nil
	i := HitTest(s.Layers, s.Measurer, s.Canvas, p)
	if i < 0 {
		return -1
	}
	mv, ok := s.Layers[i].(layer.Movable)
	if !ok {
		return i
	}
	x, y := mv.Position()
	c.drag = &drag{index: i, offset: Point{X: p.X - x, Y: p.Y - y}}
	return i
}

// PointerMove repositions the dragged layer to p minus the grab offset and
// reports whether anything moved. Layers may leave the canvas.
func (c *Controller) PointerMove(layers layer.List, p Point) bool {
	if c.drag == nil || c.drag.index >= len(layers) {
		return false
	}
	mv, ok := layers[c.drag.index].(layer.Movable)
	if !ok {
		return false
	}
	x, y := p.X-c.drag.offset.X, p.Y-c.drag.offset.Y
	if ox, oy := mv.Position(); ox == x && oy == y {
		return false
	}
	mv.MoveTo(x, y)
	return true
}

// PointerUp ends any drag. The selection is kept.
func (c *Controller) PointerUp() {
	c.drag = nil
}

// PointerLeave behaves like PointerUp.
func (c *Controller) PointerLeave() {
	c.drag = nil
}

// TouchStart uses the first touch point as the pointer. An empty touch
// list clears the selection.
func (c *Controller) TouchStart(s Scene, touches []Point) int {
	if len(touches) == 0 {
		c.drag = nil
		return -1
	}
	return c.PointerDown(s, touches[0])
}

func (c *Controller) TouchMove(layers layer.List, touches []Point) bool {
	if len(touches) == 0 {
		c.drag = nil
		return false
	}
	return c.PointerMove(layers, touches[0])
}

func (c *Controller) TouchEnd() {
	c.drag = nil
}

// Cancel drops the drag state, e.g. after the dragged layer was removed.
func (c *Controller) Cancel() {
	c.drag = nil
}
