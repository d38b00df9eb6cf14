package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/visualgpt/visualgpt/compositor/internal/asset"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

var (
	ErrNotLoaded       = errors.New("editor has no visual loaded")
	ErrNoBaseImage     = errors.New("base image could not be loaded")
	ErrIndexOutOfRange = errors.New("layer index out of range")
	ErrImmutableField  = errors.New("layer type and id cannot change")
)

// DefaultExportScale is the resolution multiplier of the export pass.
const DefaultExportScale = 2

// AssetSource resolves image URLs. *asset.Loader implements it.
type AssetSource interface {
	Peek(url string) (image.Image, asset.Status)
	Request(url string, onReady func())
	Await(ctx context.Context, url string) (image.Image, error)
}

// ExportResult is the output of a save: the flattened bitmap plus the layer
// list needed to edit it again.
type ExportResult struct {
	PNG         []byte     `json:"-"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Layers      layer.List `json:"layers"`
	OriginalURL string     `json:"originalUrl"`

	// Skipped lists asset URLs that failed to decode and were left out.
	Skipped []string `json:"skipped,omitempty"`
}

// Editor owns one visual being edited: its layer stack, canvas size and
// selection. It is not safe for concurrent use; callers serialize access.
type Editor struct {
	assets      AssetSource
	renderer    *Renderer
	exportScale float64

	// Document state
	canvas      Size
	factory     layer.Factory
	layers      layer.List
	baseURL     string
	originalURL string

	// Interaction state
	selected int
	ctrl     Controller
	viewport Viewport

	// Dirty flag - preview needs re-render
	dirty bool

	onInvalidate func()
	pendingMu    sync.Mutex
	pending      map[string]bool
}

type Option func(*Editor)

func WithExportScale(scale float64) Option {
	return func(e *Editor) {
		if scale > 0 {
			e.exportScale = scale
		}
	}
}

func WithRenderer(r *Renderer) Option {
	return func(e *Editor) { e.renderer = r }
}

// WithInvalidate registers fn to run when an asset the preview was waiting
// on finishes decoding. fn may be called from another goroutine.
func WithInvalidate(fn func()) Option {
	return func(e *Editor) { e.onInvalidate = fn }
}

// NewEditor creates an empty editor. Load must be called before editing.
func NewEditor(assets AssetSource, opts ...Option) *Editor {
	e := &Editor{
		assets:      assets,
		exportScale: DefaultExportScale,
		selected:    -1,
		pending:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.renderer == nil {
		e.renderer = NewRenderer(nil)
	}
	return e
}

// --- Commands ---

// Load awaits the base image, fixes the canvas to its natural size and
// restores saved, or starts a fresh single-layer scene when saved is empty.
// originalURL defaults to baseURL.
func (e *Editor) Load(ctx context.Context, baseURL, originalURL string, saved layer.List) error {
	img, err := e.assets.Await(ctx, baseURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrNoBaseImage, err)
	}
	b := img.Bounds()
	e.Restore(Size{W: b.Dx(), H: b.Dy()}, baseURL, originalURL, saved)
	return nil
}

// Restore sets up the editor for a canvas of known size without touching
// the asset source.
func (e *Editor) Restore(canvas Size, baseURL, originalURL string, saved layer.List) {
	if originalURL == "" {
		originalURL = baseURL
	}
	e.canvas = canvas
	e.factory = layer.Factory{CanvasW: float64(canvas.W), CanvasH: float64(canvas.H)}
	e.baseURL = baseURL
	e.originalURL = originalURL
	if len(saved) > 0 {
		e.layers = saved.Clone()
	} else {
		e.layers = e.factory.DefaultScene(baseURL)
	}
	e.selected = -1
	e.ctrl.Cancel()
	e.viewport = Viewport{}
	e.dirty = true
}

// StartOver discards every edit and returns to the original base image.
func (e *Editor) StartOver() error {
	if !e.canvas.Valid() {
		return ErrNotLoaded
	}
	e.baseURL = e.originalURL
	e.layers = e.factory.DefaultScene(e.originalURL)
	e.selected = -1
	e.ctrl.Cancel()
	e.dirty = true
	return nil
}

// SetViewport records the on-screen size of the preview so pointer events
// can be mapped into canvas space.
func (e *Editor) SetViewport(vp Viewport) {
	e.viewport = vp
}

// --- Queries ---

func (e *Editor) Loaded() bool        { return e.canvas.Valid() }
func (e *Editor) Canvas() Size        { return e.canvas }
func (e *Editor) Selected() int       { return e.selected }
func (e *Editor) Dirty() bool         { return e.dirty }
func (e *Editor) ClearDirty()         { e.dirty = false }
func (e *Editor) BaseURL() string     { return e.baseURL }
func (e *Editor) OriginalURL() string { return e.originalURL }
func (e *Editor) Len() int            { return len(e.layers) }
func (e *Editor) Viewport() Viewport  { return e.viewport }

// Layers returns a deep copy of the layer stack.
func (e *Editor) Layers() layer.List {
	return e.layers.Clone()
}

// Layer returns a copy of the layer at index.
func (e *Editor) Layer(index int) (layer.Layer, error) {
	if err := e.checkIndex(index); err != nil {
		return nil, err
	}
	return e.layers[index].Clone(), nil
}

// HitTest resolves a canvas-space point to a layer index, or -1.
func (e *Editor) HitTest(p Point) int {
	return HitTest(e.layers, e.renderer.Fonts(), e.canvas, p)
}

// SelectionBounds returns the outline box of the selected layer.
func (e *Editor) SelectionBounds() Rect {
	return SelectionBounds(e.layers, e.renderer.Fonts(), e.canvas, e.selected)
}

func (e *Editor) scene() Scene {
	return Scene{Layers: e.layers, Measurer: e.renderer.Fonts(), Canvas: e.canvas}
}

// RenderPreview draws the interactive pass at scale 1 with the selection
// outline. It never blocks: layers whose assets are still decoding are left
// out and a decode is requested.
func (e *Editor) RenderPreview() (*image.RGBA, RenderReport) {
	img, report := e.renderer.Render(e.canvas, e.layers, previewResolver{e}, Options{
		Scale:       1,
		Selected:    e.selected,
		Interactive: true,
	})
	e.dirty = false
	return img, report
}

// Export awaits every referenced asset and renders the stack at the export
// scale without the selection outline. Assets that fail to decode are
// skipped. The layer list is never modified, so a failed export can be
// retried.
func (e *Editor) Export(ctx context.Context) (*ExportResult, error) {
	if !e.canvas.Valid() {
		return nil, ErrNotLoaded
	}
	layers := e.layers.Clone()

	images := make(ImageMap)
	var skipped []string
	for _, url := range layers.AssetURLs() {
		img, err := e.assets.Await(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			skipped = append(skipped, url)
			continue
		}
		images[url] = img
	}

	out, _ := e.renderer.Render(e.canvas, layers, images, Options{
		Scale:    e.exportScale,
		Selected: -1,
	})

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	b := out.Bounds()
	return &ExportResult{
		PNG:         buf.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
		Layers:      layers,
		OriginalURL: e.originalURL,
		Skipped:     skipped,
	}, nil
}

// previewResolver peeks at decoded images and requests the missing ones.
type previewResolver struct {
	e *Editor
}

func (r previewResolver) Resolve(url string) (image.Image, asset.Status) {
	img, st := r.e.assets.Peek(url)
	if st == asset.Pending {
		r.e.request(url)
	}
	return img, st
}

// request starts a decode and arranges a single invalidation per URL.
func (e *Editor) request(url string) {
	e.pendingMu.Lock()
	first := !e.pending[url]
	e.pending[url] = true
	e.pendingMu.Unlock()

	if !first {
		e.assets.Request(url, nil)
		return
	}
	e.assets.Request(url, func() {
		e.pendingMu.Lock()
		delete(e.pending, url)
		e.pendingMu.Unlock()
		if e.onInvalidate != nil {
			e.onInvalidate()
		}
	})
}

func (e *Editor) checkIndex(index int) error {
	if index < 0 || index >= len(e.layers) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return nil
}
