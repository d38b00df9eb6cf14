package engine

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// Direction is a z-order move.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	ToFront  Direction = "front"
	ToBack   Direction = "back"
)

// --- Commands (frontend → engine) ---

// AddText appends a text layer and selects it.
func (e *Editor) AddText(text string) (int, error) {
	if !e.canvas.Valid() {
		return -1, ErrNotLoaded
	}
	return e.push(e.factory.NewText(text)), nil
}

// AddShape appends a shape layer and selects it.
func (e *Editor) AddShape(kind layer.ShapeKind) (int, error) {
	if !e.canvas.Valid() {
		return -1, ErrNotLoaded
	}
	return e.push(e.factory.NewShape(kind)), nil
}

// AddImage awaits the image for its natural size and appends it scaled to
// fit half the canvas. Textures always cover the canvas.
func (e *Editor) AddImage(ctx context.Context, url string, isTexture bool) (int, error) {
	if !e.canvas.Valid() {
		return -1, ErrNotLoaded
	}
	img, err := e.assets.Await(ctx, url)
	if err != nil {
		return -1, fmt.Errorf("load image: %w", err)
	}
	b := img.Bounds()
	w, h := e.factory.FitHalf(float64(b.Dx()), float64(b.Dy()))
	return e.push(e.factory.NewImage(url, w, h, isTexture)), nil
}

// AddBackground puts a background at index 0. An existing background is
// replaced; otherwise every layer shifts up by one.
func (e *Editor) AddBackground(bgType layer.BgType, value layer.BgValue) (int, error) {
	if !e.canvas.Valid() {
		return -1, ErrNotLoaded
	}
	bg := e.factory.NewBackground(bgType, value)
	if len(e.layers) > 0 && e.layers[0].Kind() == layer.KindBackground {
		e.layers[0] = bg
	} else {
		e.layers = append(layer.List{bg}, e.layers...)
		if e.selected >= 0 {
			e.selected++
		}
		e.ctrl.Cancel()
	}
	e.dirty = true
	return 0, nil
}

func (e *Editor) push(l layer.Layer) int {
	e.layers = append(e.layers, l)
	e.selected = len(e.layers) - 1
	e.dirty = true
	return e.selected
}

// Update applies a JSON merge patch to the layer at index. The layer's type
// and id cannot change.
func (e *Editor) Update(index int, patch json.RawMessage) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	cur := e.layers[index]

	doc, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode layer: %w", err)
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}

	var head struct {
		Type *layer.Kind `json:"type"`
		ID   *string     `json:"id"`
	}
	if err := json.Unmarshal(merged, &head); err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}
	if head.Type == nil || *head.Type != cur.Kind() || head.ID == nil || *head.ID != cur.Common().ID {
		return ErrImmutableField
	}

	next, err := layer.Unmarshal(merged)
	if err != nil {
		return err
	}
	e.layers[index] = next
	e.dirty = true
	return nil
}

// Delete removes the layer at index and keeps the selection on the same
// layer when it survives.
func (e *Editor) Delete(index int) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	e.layers = append(e.layers[:index], e.layers[index+1:]...)
	switch {
	case e.selected == index:
		e.selected = -1
	case e.selected > index:
		e.selected--
	}
	e.ctrl.Cancel()
	e.dirty = true
	return nil
}

// Move changes the z-order of the layer at index and returns its new index.
// Backgrounds never move and other layers never go below them.
func (e *Editor) Move(index int, dir Direction) (int, error) {
	if err := e.checkIndex(index); err != nil {
		return -1, err
	}
	l := e.layers[index]
	if l.Kind() == layer.KindBackground {
		return index, nil
	}

	floor := 0
	for floor < len(e.layers) && e.layers[floor].Kind() == layer.KindBackground {
		floor++
	}
	top := len(e.layers) - 1

	to := index
	switch dir {
	case Forward:
		to = index + 1
	case Backward:
		to = index - 1
	case ToFront:
		to = top
	case ToBack:
		to = floor
	default:
		return -1, fmt.Errorf("unknown direction %q", dir)
	}
	to = max(floor, min(top, to))
	if to == index {
		return index, nil
	}

	var selectedID string
	if e.selected >= 0 {
		selectedID = e.layers[e.selected].Common().ID
	}

	rest := append(e.layers[:index:index], e.layers[index+1:]...)
	out := make(layer.List, 0, len(e.layers))
	out = append(out, rest[:to]...)
	out = append(out, l)
	out = append(out, rest[to:]...)
	e.layers = out

	if selectedID != "" {
		e.selected = e.layers.IndexOf(selectedID)
	}
	e.ctrl.Cancel()
	e.dirty = true
	return to, nil
}

// Select sets the selection; -1 clears it.
func (e *Editor) Select(index int) error {
	if index != -1 {
		if err := e.checkIndex(index); err != nil {
			return err
		}
	}
	if e.selected != index {
		e.selected = index
		e.dirty = true
	}
	return nil
}

// --- Pointer input, in client coordinates of the current viewport ---

func (e *Editor) PointerDown(x, y float64) int {
	e.setSelected(e.ctrl.PointerDown(e.scene(), e.viewport.ToBuffer(x, y)))
	return e.selected
}

func (e *Editor) PointerMove(x, y float64) bool {
	if e.ctrl.PointerMove(e.layers, e.viewport.ToBuffer(x, y)) {
		e.dirty = true
		return true
	}
	return false
}

func (e *Editor) PointerUp()    { e.ctrl.PointerUp() }
func (e *Editor) PointerLeave() { e.ctrl.PointerLeave() }

func (e *Editor) TouchStart(touches []Point) int {
	e.setSelected(e.ctrl.TouchStart(e.scene(), e.toBuffer(touches)))
	return e.selected
}

func (e *Editor) TouchMove(touches []Point) bool {
	if e.ctrl.TouchMove(e.layers, e.toBuffer(touches)) {
		e.dirty = true
		return true
	}
	return false
}

func (e *Editor) TouchEnd() { e.ctrl.TouchEnd() }

func (e *Editor) toBuffer(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = e.viewport.ToBuffer(p.X, p.Y)
	}
	return out
}

func (e *Editor) setSelected(i int) {
	if e.selected != i {
		e.selected = i
		e.dirty = true
	}
}
