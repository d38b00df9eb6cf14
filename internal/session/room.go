package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"sync"

	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

var ErrUnknownOp = errors.New("unknown operation")

// Room holds the authoritative editor for one visual. Operations from every
// client in the room are applied in arrival order under mu.
type Room struct {
	visualID string

	mu        sync.Mutex
	editor    *engine.Editor
	serverSeq int64
	unsaved   bool // layers changed since the last persist

	// Guarded by Hub.mu
	clients  map[string]*Client // clientID -> client
	joining  int
	presence *PresenceManager
}

func newRoom(visualID string, editor *engine.Editor) *Room {
	return &Room{
		visualID: visualID,
		editor:   editor,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
}

// result describes what an applied operation changed.
type result struct {
	index         int
	layersChanged bool // layers or selection
	frame         *FramePayload
	saved         *SavedPayload
}

// apply runs one client operation against the editor. The caller holds mu.
func (r *Room) apply(ctx context.Context, visuals Visuals, msg *Message) (*result, error) {
	e := r.editor
	res := &result{index: -1}
	before, selected := e.Layers(), e.Selected()

	switch msg.Type {
	case TypeLayerAdd:
		var p AddPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		i, err := r.add(ctx, p)
		if err != nil {
			return nil, err
		}
		res.index = i

	case TypeLayerUpdate:
		var p UpdatePayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if err := e.Update(p.Index, p.Patch); err != nil {
			return nil, err
		}
		res.index = p.Index

	case TypeLayerDelete:
		var p IndexPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if err := e.Delete(p.Index); err != nil {
			return nil, err
		}

	case TypeLayerMove:
		var p MovePayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		i, err := e.Move(p.Index, p.Direction)
		if err != nil {
			return nil, err
		}
		res.index = i

	case TypeLayerSelect:
		var p IndexPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		if err := e.Select(p.Index); err != nil {
			return nil, err
		}
		res.index = p.Index

	case TypePointerDown:
		var p PointerPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		res.index = e.PointerDown(p.X, p.Y)

	case TypePointerMove:
		var p PointerPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		e.PointerMove(p.X, p.Y)

	case TypePointerUp:
		e.PointerUp()

	case TypeTouchStart:
		var p TouchPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		res.index = e.TouchStart(touchPoints(p))

	case TypeTouchMove:
		var p TouchPayload
		if err := decode(msg, &p); err != nil {
			return nil, err
		}
		e.TouchMove(touchPoints(p))

	case TypeTouchEnd:
		e.TouchEnd()

	case TypeViewport:
		var vp engine.Viewport
		if err := decode(msg, &vp); err != nil {
			return nil, err
		}
		e.SetViewport(vp)

	case TypeRender:
		frame, err := r.render()
		if err != nil {
			return nil, err
		}
		res.frame = frame

	case TypeSave:
		saved, err := visuals.Save(ctx, r.visualID, e.Layers())
		if err != nil {
			return nil, err
		}
		r.unsaved = false
		res.saved = &SavedPayload{URL: saved.FlattenedURL, Skipped: saved.Skipped}

	case TypeStartOver:
		if _, err := visuals.StartOver(ctx, r.visualID); err != nil {
			return nil, err
		}
		if err := e.StartOver(); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, msg.Type)
	}

	switch {
	case msg.Type == TypeStartOver:
		res.layersChanged = true
		r.unsaved = false
	case !sameLayers(before, e.Layers()):
		res.layersChanged = true
		r.unsaved = true
	case selected != e.Selected():
		res.layersChanged = true
	}
	r.serverSeq++
	return res, nil
}

func (r *Room) add(ctx context.Context, p AddPayload) (int, error) {
	e := r.editor
	switch p.Kind {
	case AddText:
		return e.AddText(p.Text)
	case AddShape:
		return e.AddShape(p.Shape)
	case AddImage:
		return e.AddImage(ctx, p.URL, p.IsTexture)
	case AddBackground:
		return e.AddBackground(p.BgType, p.BgValue)
	default:
		return -1, fmt.Errorf("%w: layer kind %q", ErrUnknownOp, p.Kind)
	}
}

// render draws the preview and packs it as a frame. The caller holds mu.
func (r *Room) render() (*FramePayload, error) {
	img, report := r.editor.RenderPreview()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	b := img.Bounds()
	return &FramePayload{
		PNG:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Pending: report.Pending,
		Failed:  report.Failed,
	}, nil
}

// persist writes the layer list back if it changed. The caller holds mu.
func (r *Room) persist(ctx context.Context, visuals Visuals) error {
	if !r.unsaved {
		return nil
	}
	if _, err := visuals.UpdateLayers(ctx, r.visualID, r.editor.Layers()); err != nil {
		return fmt.Errorf("persist %s: %w", r.visualID, err)
	}
	r.unsaved = false
	return nil
}

func (r *Room) layersMessage() *Message {
	return newMessage(TypeLayers, LayersPayload{
		Layers:    r.editor.Layers(),
		Selected:  r.editor.Selected(),
		ServerSeq: r.serverSeq,
	})
}

func decode(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}

func touchPoints(p TouchPayload) []engine.Point {
	pts := make([]engine.Point, len(p.Touches))
	for i, t := range p.Touches {
		pts[i] = engine.Point{X: t.X, Y: t.Y}
	}
	return pts
}

func sameLayers(a, b layer.List) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}
