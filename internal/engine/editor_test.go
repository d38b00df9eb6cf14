package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualgpt/visualgpt/compositor/internal/asset"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// fakeAssets resolves from a fixed map; anything else fails.
type fakeAssets map[string]image.Image

func (f fakeAssets) Peek(url string) (image.Image, asset.Status) {
	if img, ok := f[url]; ok {
		return img, asset.Ready
	}
	return nil, asset.Failed
}

func (f fakeAssets) Request(url string, onReady func()) {
	if onReady != nil {
		onReady()
	}
}

func (f fakeAssets) Await(ctx context.Context, url string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img, ok := f[url]; ok {
		return img, nil
	}
	return nil, errors.New("not found")
}

func newTestEditor(t *testing.T) *Editor {
	t.Helper()
	assets := fakeAssets{
		"base.png":  solidImage(400, 300, color.RGBA{20, 20, 20, 255}),
		"photo.png": solidImage(800, 200, color.RGBA{200, 0, 0, 255}),
	}
	e := NewEditor(assets, WithRenderer(testRenderer))
	require.NoError(t, e.Load(context.Background(), "base.png", "", nil))
	return e
}

func TestEditorLoadFixesCanvas(t *testing.T) {
	e := newTestEditor(t)
	assert.Equal(t, Size{W: 400, H: 300}, e.Canvas())
	assert.Equal(t, "base.png", e.OriginalURL())
	require.Equal(t, 1, e.Len())

	base, ok := e.Layers()[0].(*layer.Image)
	require.True(t, ok)
	assert.True(t, base.IsBaseImage)
	assert.Equal(t, 400.0, base.Width)
	assert.Equal(t, -1, e.Selected())
}

func TestEditorLoadMissingBase(t *testing.T) {
	e := NewEditor(fakeAssets{})
	err := e.Load(context.Background(), "gone.png", "", nil)
	assert.ErrorIs(t, err, ErrNoBaseImage)
	assert.False(t, e.Loaded())

	_, err = e.AddText("hi")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestEditorRestoresSavedLayers(t *testing.T) {
	saved := layer.List{
		&layer.Text{Base: layer.Base{ID: "t1", Opacity: 100}, Text: "kept", FontSize: 20},
	}
	e := NewEditor(fakeAssets{"base.png": solidImage(10, 10, color.White)})
	require.NoError(t, e.Load(context.Background(), "base.png", "orig.png", saved))

	got := e.Layers()
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].(*layer.Text).Text)
	assert.Equal(t, "orig.png", e.OriginalURL())

	// The editor owns a copy.
	saved[0].(*layer.Text).Text = "changed"
	assert.Equal(t, "kept", e.Layers()[0].(*layer.Text).Text)
}

func TestEditorAddLayers(t *testing.T) {
	e := newTestEditor(t)

	i, err := e.AddText("")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, 1, e.Selected())

	i, err = e.AddShape(layer.ShapeHeart)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	i, err = e.AddImage(context.Background(), "photo.png", false)
	require.NoError(t, err)
	img := e.Layers()[i].(*layer.Image)
	assert.InDelta(t, 200, img.Width, 1e-9)
	assert.InDelta(t, 50, img.Height, 1e-9)
	assert.InDelta(t, 100, img.X, 1e-9)

	i, err = e.AddImage(context.Background(), "photo.png", true)
	require.NoError(t, err)
	tex := e.Layers()[i].(*layer.Image)
	assert.Equal(t, 400.0, tex.Width)
	assert.Equal(t, 400.0, tex.Height)
	assert.Equal(t, 50, tex.Opacity)

	_, err = e.AddImage(context.Background(), "missing.png", false)
	assert.Error(t, err)
	assert.Equal(t, 5, e.Len())
}

func TestEditorAddBackgroundAlwaysAtBottom(t *testing.T) {
	e := newTestEditor(t)
	_, err := e.AddText("top")
	require.NoError(t, err)
	require.Equal(t, 1, e.Selected())

	i, err := e.AddBackground(layer.BgGradient, layer.GradientValue("#000000", "#ffffff"))
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.Equal(t, layer.KindBackground, e.Layers()[0].Kind())
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, 2, e.Selected(), "selection follows the text layer")

	// A second background replaces the first.
	_, err = e.AddBackground(layer.BgSolid, layer.SolidValue("#ff0000"))
	require.NoError(t, err)
	assert.Equal(t, 3, e.Len())
	bg := e.Layers()[0].(*layer.Background)
	assert.Equal(t, layer.BgSolid, bg.BgType)
}

func TestEditorUpdate(t *testing.T) {
	e := newTestEditor(t)
	i, err := e.AddText("hello")
	require.NoError(t, err)
	id := e.Layers()[i].Common().ID

	require.NoError(t, e.Update(i, json.RawMessage(`{"text":"world","fontSize":48,"shadow":null,"opacity":150}`)))
	txt := e.Layers()[i].(*layer.Text)
	assert.Equal(t, "world", txt.Text)
	assert.Equal(t, 48.0, txt.FontSize)
	assert.Nil(t, txt.Shadow)
	assert.Equal(t, 100, txt.Opacity)
	assert.Equal(t, id, txt.ID)

	err = e.Update(i, json.RawMessage(`{"type":"shape"}`))
	assert.ErrorIs(t, err, ErrImmutableField)
	err = e.Update(i, json.RawMessage(`{"id":"other"}`))
	assert.ErrorIs(t, err, ErrImmutableField)
	assert.ErrorIs(t, e.Update(9, json.RawMessage(`{}`)), ErrIndexOutOfRange)
}

func TestEditorUpdateMergesNestedObjects(t *testing.T) {
	e := newTestEditor(t)
	i, err := e.AddText("hello")
	require.NoError(t, err)

	require.NoError(t, e.Update(i, json.RawMessage(`{"shadow":{"blur":12}}`)))
	txt := e.Layers()[i].(*layer.Text)
	require.NotNil(t, txt.Shadow)
	assert.Equal(t, 12.0, txt.Shadow.Blur)
	assert.Equal(t, "rgba(0,0,0,0.5)", txt.Shadow.Color, "untouched members survive")
	assert.Equal(t, 2.0, txt.Shadow.OffsetX)

	require.NoError(t, e.Update(i, json.RawMessage(`{"stroke":{"color":"navy","width":3}}`)))
	txt = e.Layers()[i].(*layer.Text)
	require.NotNil(t, txt.Stroke)
	assert.Equal(t, 3.0, txt.Stroke.Width)

	before := e.Layers()[i].(*layer.Text).Text
	assert.Error(t, e.Update(i, json.RawMessage(`{"text":`)))
	assert.Equal(t, before, e.Layers()[i].(*layer.Text).Text, "a malformed patch changes nothing")
}

func TestEditorDeleteAdjustsSelection(t *testing.T) {
	e := newTestEditor(t)
	_, _ = e.AddText("a")
	_, _ = e.AddText("b")
	require.NoError(t, e.Select(2))

	require.NoError(t, e.Delete(1))
	assert.Equal(t, 1, e.Selected())

	require.NoError(t, e.Delete(1))
	assert.Equal(t, -1, e.Selected())
	assert.Equal(t, 1, e.Len())
}

func TestEditorMove(t *testing.T) {
	e := newTestEditor(t)
	_, _ = e.AddBackground(layer.BgSolid, layer.SolidValue("#fff"))
	_, _ = e.AddText("a")
	_, _ = e.AddText("b")
	// [bg, base, a, b]
	ids := func() []string {
		var out []string
		for _, l := range e.Layers() {
			out = append(out, l.Common().ID)
		}
		return out
	}
	start := ids()
	require.NoError(t, e.Select(3))

	to, err := e.Move(3, ToBack)
	require.NoError(t, err)
	assert.Equal(t, 1, to, "never below the background")
	assert.Equal(t, []string{start[0], start[3], start[1], start[2]}, ids())
	assert.Equal(t, 1, e.Selected())

	to, err = e.Move(1, Forward)
	require.NoError(t, err)
	assert.Equal(t, 2, to)

	to, err = e.Move(2, ToFront)
	require.NoError(t, err)
	assert.Equal(t, 3, to)
	assert.Equal(t, start, ids())

	to, err = e.Move(0, ToFront)
	require.NoError(t, err)
	assert.Equal(t, 0, to, "backgrounds stay put")

	_, err = e.Move(1, Direction("sideways"))
	assert.Error(t, err)
}

func TestEditorDragMovesLayer(t *testing.T) {
	e := newTestEditor(t)
	i, _ := e.AddShape(layer.ShapeRectangle)
	require.NoError(t, e.Select(-1))
	// Preview shown at half size.
	e.SetViewport(Viewport{BufferW: 400, BufferH: 300, ClientW: 200, ClientH: 150})

	// Shape box is 150..250 x 100..200 in canvas space.
	assert.Equal(t, i, e.PointerDown(80, 60))
	assert.True(t, e.PointerMove(90, 70))
	e.PointerUp()
	assert.False(t, e.PointerMove(120, 120), "no drag after pointer up")

	s := e.Layers()[i].(*layer.Shape)
	assert.InDelta(t, 170, s.X, 1e-9)
	assert.InDelta(t, 120, s.Y, 1e-9)
	assert.Equal(t, i, e.Selected())
}

func TestEditorDragAllowsOffCanvas(t *testing.T) {
	e := newTestEditor(t)
	i, _ := e.AddShape(layer.ShapeRectangle)
	e.PointerDown(200, 150)
	e.PointerMove(-500, -500)
	e.PointerLeave()
	s := e.Layers()[i].(*layer.Shape)
	assert.InDelta(t, -550, s.X, 1e-9)
	assert.InDelta(t, -550, s.Y, 1e-9)
}

func TestEditorBackgroundNeverDrags(t *testing.T) {
	e := newTestEditor(t)
	_, _ = e.AddBackground(layer.BgSolid, layer.SolidValue("#fff"))
	require.NoError(t, e.Delete(1))
	before, _ := json.Marshal(e.Layers())

	assert.Equal(t, -1, e.PointerDown(10, 10))
	assert.False(t, e.PointerMove(100, 100))
	e.PointerUp()

	after, _ := json.Marshal(e.Layers())
	assert.JSONEq(t, string(before), string(after))
}

func TestEditorTouchUsesFirstPoint(t *testing.T) {
	e := newTestEditor(t)
	i, _ := e.AddShape(layer.ShapeRectangle)

	assert.Equal(t, i, e.TouchStart([]Point{{X: 200, Y: 150}, {X: 5, Y: 5}}))
	assert.True(t, e.TouchMove([]Point{{X: 210, Y: 160}, {X: 0, Y: 0}}))
	assert.False(t, e.TouchMove(nil), "an empty touch list ends the drag")
	assert.False(t, e.TouchMove([]Point{{X: 300, Y: 300}}))
	e.TouchEnd()

	s := e.Layers()[i].(*layer.Shape)
	assert.InDelta(t, 160, s.X, 1e-9)
	assert.InDelta(t, 110, s.Y, 1e-9)
}

func TestEditorPointerMissClearsSelection(t *testing.T) {
	e := newTestEditor(t)
	_, _ = e.AddShape(layer.ShapeRectangle)
	// The base image covers the canvas, so miss outside it.
	assert.Equal(t, -1, e.PointerDown(-10, -10))
	assert.Equal(t, -1, e.Selected())
}

func TestEditorExport(t *testing.T) {
	e := newTestEditor(t)
	_, _ = e.AddShape(layer.ShapeStar)
	_, _ = e.AddText("SALE")
	e.layers = append(e.layers, &layer.Image{
		Base: layer.Base{ID: "broken", Opacity: 100}, URL: "broken.png", Width: 10, Height: 10,
	})

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	res, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs.String(), "skips are reported, not logged")
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 600, res.Height)
	assert.Equal(t, []string{"broken.png"}, res.Skipped)
	assert.Equal(t, "base.png", res.OriginalURL)
	assert.Len(t, res.Layers, 4)

	img, err := png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())
}

func TestEditorExportFailureKeepsLayers(t *testing.T) {
	e := newTestEditor(t)
	_, _ = e.AddText("keep me")
	before, _ := json.Marshal(e.Layers())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Export(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	after, _ := json.Marshal(e.Layers())
	assert.JSONEq(t, string(before), string(after))
}

func TestEditorStartOver(t *testing.T) {
	e := NewEditor(fakeAssets{"edited.png": solidImage(50, 40, color.White)})
	require.NoError(t, e.Load(context.Background(), "edited.png", "orig.png", nil))
	_, _ = e.AddText("x")

	require.NoError(t, e.StartOver())
	require.Equal(t, 1, e.Len())
	assert.Equal(t, "orig.png", e.Layers()[0].(*layer.Image).URL)
	assert.Equal(t, "orig.png", e.BaseURL())
	assert.True(t, e.Dirty())
}

func TestEditorPreviewClearsDirty(t *testing.T) {
	calls := 0
	e := NewEditor(fakeAssets{"base.png": solidImage(20, 20, color.White)},
		WithRenderer(testRenderer), WithInvalidate(func() { calls++ }))
	require.NoError(t, e.Load(context.Background(), "base.png", "", nil))

	img, report := e.RenderPreview()
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())
	assert.True(t, report.Complete())
	assert.False(t, e.Dirty())
	assert.Equal(t, 0, calls)
}
