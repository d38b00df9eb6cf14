package engine

import "github.com/visualgpt/visualgpt/compositor/internal/layer"

// HitTest returns the index of the topmost non-background layer whose box
// contains p, or -1. Layers are tested front to back, so the highest index
// wins where boxes overlap.
func HitTest(layers layer.List, m TextMeasurer, canvas Size, p Point) int {
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		if l.Kind() == layer.KindBackground {
			continue
		}
		b := LayerBounds(l, m, canvas)
		if b.Width < 0 || b.Height < 0 {
			continue
		}
		if b.Contains(p.X, p.Y) {
			return i
		}
	}
	return -1
}

// SelectionBounds returns the outline box of the layer at index, or an empty
// rect when the index is out of range.
func SelectionBounds(layers layer.List, m TextMeasurer, canvas Size, index int) Rect {
	if index < 0 || index >= len(layers) {
		return Rect{}
	}
	return LayerBounds(layers[index], m, canvas)
}
