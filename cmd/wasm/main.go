//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"syscall/js"
	"time"

	"golang.org/x/image/draw"

	"github.com/visualgpt/visualgpt/compositor/internal/asset"
	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

var (
	mu           sync.Mutex
	editor       *engine.Editor
	onInvalidate js.Value
)

func main() {
	remote := asset.NewHTTPFetcher(30*time.Second, 32<<20, nil, "")
	loader := asset.NewLoader(asset.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if strings.HasPrefix(url, "blob:") {
			return fetchBlob(url)
		}
		return remote.Fetch(ctx, url)
	}), 64)

	// The callback may fire while a render holds mu, so it never runs inline.
	editor = engine.NewEditor(loader, engine.WithInvalidate(func() {
		go func() {
			if onInvalidate.Type() == js.TypeFunction {
				onInvalidate.Invoke()
			}
		}()
	}))

	api := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	api.Set("load", js.FuncOf(load))
	api.Set("loadSample", js.FuncOf(loadSample))
	api.Set("startOver", js.FuncOf(startOver))
	api.Set("setViewport", js.FuncOf(setViewport))
	api.Set("addText", js.FuncOf(addText))
	api.Set("addShape", js.FuncOf(addShape))
	api.Set("addImage", js.FuncOf(addImage))
	api.Set("addBackground", js.FuncOf(addBackground))
	api.Set("updateLayer", js.FuncOf(updateLayer))
	api.Set("deleteLayer", js.FuncOf(deleteLayer))
	api.Set("moveLayer", js.FuncOf(moveLayer))
	api.Set("select", js.FuncOf(selectLayer))
	api.Set("pointerDown", js.FuncOf(pointerDown))
	api.Set("pointerMove", js.FuncOf(pointerMove))
	api.Set("pointerUp", js.FuncOf(pointerUp))
	api.Set("pointerLeave", js.FuncOf(pointerLeave))
	api.Set("touchStart", js.FuncOf(touchStart))
	api.Set("touchMove", js.FuncOf(touchMove))
	api.Set("touchEnd", js.FuncOf(touchEnd))
	api.Set("onInvalidate", js.FuncOf(setOnInvalidate))

	// --- Queries (frontend ← engine) ---
	api.Set("render", js.FuncOf(render))
	api.Set("exportPNG", js.FuncOf(exportPNG))
	api.Set("isDirty", js.FuncOf(isDirty))
	api.Set("getLayers", js.FuncOf(getLayers))
	api.Set("getSelected", js.FuncOf(getSelected))
	api.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	api.Set("getCanvasSize", js.FuncOf(getCanvasSize))
	api.Set("hitTest", js.FuncOf(hitTest))

	js.Global().Set("visualgpt", api)

	// Signal that WASM is ready
	js.Global().Set("visualgptWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func result(index int, err error) interface{} {
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "index": index})
}

// promise runs fn off the JS event loop. Blocking calls such as image
// fetches deadlock if made from inside a js.FuncOf callback.
func promise(fn func() (interface{}, error)) js.Value {
	executor := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	defer executor.Release()
	return js.Global().Get("Promise").New(executor)
}

// fetchBlob reads a browser object URL through window.fetch.
func fetchBlob(url string) ([]byte, error) {
	resp, err := await(js.Global().Call("fetch", url))
	if err != nil {
		return nil, err
	}
	if !resp.Get("ok").Bool() {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.Get("status").Int())
	}
	buf, err := await(resp.Call("arrayBuffer"))
	if err != nil {
		return nil, err
	}
	arr := js.Global().Get("Uint8Array").New(buf)
	data := make([]byte, arr.Length())
	js.CopyBytesToGo(data, arr)
	return data, nil
}

func await(p js.Value) (js.Value, error) {
	done := make(chan struct{})
	var (
		val js.Value
		err error
	)
	onOK := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		val = args[0]
		close(done)
		return nil
	})
	onErr := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		err = errors.New(args[0].Call("toString").String())
		close(done)
		return nil
	})
	defer onOK.Release()
	defer onErr.Release()
	p.Call("then", onOK, onErr)
	<-done
	return val, err
}

// --- Command Handlers ---

// load(baseURL, originalURL?, layersJSON?) returns a Promise.
func load(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing base image URL"))
	}
	baseURL := args[0].String()
	var originalURL string
	if len(args) > 1 && args[1].Type() == js.TypeString {
		originalURL = args[1].String()
	}
	var saved layer.List
	if len(args) > 2 && args[2].Type() == js.TypeString {
		if err := json.Unmarshal([]byte(args[2].String()), &saved); err != nil {
			return fail(fmt.Errorf("invalid layers: %w", err))
		}
	}

	return promise(func() (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		if err := editor.Load(context.Background(), baseURL, originalURL, saved); err != nil {
			return nil, err
		}
		c := editor.Canvas()
		return js.ValueOf(map[string]interface{}{"width": c.W, "height": c.H}), nil
	})
}

// loadSample(baseURL) loads the base image under a demo layout. Returns a
// Promise.
func loadSample(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing base image URL"))
	}
	baseURL := args[0].String()

	return promise(func() (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		if err := editor.Load(context.Background(), baseURL, "", nil); err != nil {
			return nil, err
		}
		c := editor.Canvas()
		f := layer.Factory{CanvasW: float64(c.W), CanvasH: float64(c.H)}
		editor.Restore(c, baseURL, "", layer.SampleScene(f, baseURL))
		return js.ValueOf(map[string]interface{}{"width": c.W, "height": c.H}), nil
	})
}

func startOver(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if err := editor.StartOver(); err != nil {
		return fail(err)
	}
	return ok()
}

// setViewport(bufferWidth, bufferHeight, clientWidth, clientHeight)
func setViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	editor.SetViewport(engine.Viewport{
		BufferW: args[0].Float(),
		BufferH: args[1].Float(),
		ClientW: args[2].Float(),
		ClientH: args[3].Float(),
	})
	return nil
}

func addText(this js.Value, args []js.Value) interface{} {
	text := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		text = args[0].String()
	}
	mu.Lock()
	defer mu.Unlock()
	return result(editor.AddText(text))
}

func addShape(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing shape id"))
	}
	kind, _ := layer.ParseShapeKind(args[0].String())
	mu.Lock()
	defer mu.Unlock()
	return result(editor.AddShape(kind))
}

// addImage(url, isTexture) returns a Promise resolving to the new index.
func addImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing image URL"))
	}
	url := args[0].String()
	isTexture := len(args) > 1 && args[1].Truthy()

	return promise(func() (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		i, err := editor.AddImage(context.Background(), url, isTexture)
		if err != nil {
			return nil, err
		}
		return js.ValueOf(i), nil
	})
}

// addBackground(bgType, bgValueJSON)
func addBackground(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return fail(errors.New("missing background type or value"))
	}
	var value layer.BgValue
	if err := json.Unmarshal([]byte(args[1].String()), &value); err != nil {
		return fail(fmt.Errorf("invalid background value: %w", err))
	}
	mu.Lock()
	defer mu.Unlock()
	return result(editor.AddBackground(layer.BgType(args[0].String()), value))
}

// updateLayer(index, patchJSON)
func updateLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return fail(errors.New("missing index or patch"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := editor.Update(args[0].Int(), json.RawMessage(args[1].String())); err != nil {
		return fail(err)
	}
	return ok()
}

func deleteLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing index"))
	}
	mu.Lock()
	defer mu.Unlock()
	if err := editor.Delete(args[0].Int()); err != nil {
		return fail(err)
	}
	return ok()
}

// moveLayer(index, "forward" | "backward" | "front" | "back")
func moveLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return fail(errors.New("missing index or direction"))
	}
	mu.Lock()
	defer mu.Unlock()
	return result(editor.Move(args[0].Int(), engine.Direction(args[1].String())))
}

func selectLayer(this js.Value, args []js.Value) interface{} {
	index := -1
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		index = args[0].Int()
	}
	mu.Lock()
	defer mu.Unlock()
	if err := editor.Select(index); err != nil {
		return fail(err)
	}
	return ok()
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(-1)
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(editor.PointerDown(args[0].Float(), args[1].Float()))
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(editor.PointerMove(args[0].Float(), args[1].Float()))
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	editor.PointerUp()
	return nil
}

func pointerLeave(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	editor.PointerLeave()
	return nil
}

// touchStart(touchList) takes a TouchList or an array of {clientX, clientY}.
func touchStart(this js.Value, args []js.Value) interface{} {
	pts := touches(args)
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(editor.TouchStart(pts))
}

func touchMove(this js.Value, args []js.Value) interface{} {
	pts := touches(args)
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(editor.TouchMove(pts))
}

func touchEnd(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	editor.TouchEnd()
	return nil
}

func touches(args []js.Value) []engine.Point {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return nil
	}
	list := args[0]
	pts := make([]engine.Point, list.Length())
	for i := range pts {
		t := list.Index(i)
		pts[i] = engine.Point{X: t.Get("clientX").Float(), Y: t.Get("clientY").Float()}
	}
	return pts
}

func setOnInvalidate(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		onInvalidate = js.Undefined()
		return nil
	}
	onInvalidate = args[0]
	return nil
}

// --- Query Handlers ---

// render returns {width, height, pixels, pending, failed}; pixels is a
// Uint8ClampedArray ready for ImageData.
func render(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	frame, report := editor.RenderPreview()
	mu.Unlock()

	b := frame.Bounds()
	nrgba := image.NewNRGBA(b)
	draw.Draw(nrgba, b, frame, b.Min, draw.Src)
	pixels := js.Global().Get("Uint8ClampedArray").New(len(nrgba.Pix))
	js.CopyBytesToJS(pixels, nrgba.Pix)

	return js.ValueOf(map[string]interface{}{
		"width":   b.Dx(),
		"height":  b.Dy(),
		"pixels":  pixels,
		"pending": len(report.Pending),
		"failed":  len(report.Failed),
	})
}

// exportPNG returns a Promise resolving to {png, width, height, layers,
// originalUrl, skipped}; png is a Uint8Array and layers a JSON string.
func exportPNG(this js.Value, args []js.Value) interface{} {
	return promise(func() (interface{}, error) {
		mu.Lock()
		res, err := editor.Export(context.Background())
		mu.Unlock()
		if err != nil {
			return nil, err
		}
		png := js.Global().Get("Uint8Array").New(len(res.PNG))
		js.CopyBytesToJS(png, res.PNG)
		layers, err := json.Marshal(res.Layers)
		if err != nil {
			return nil, err
		}
		skipped := make([]interface{}, len(res.Skipped))
		for i, s := range res.Skipped {
			skipped[i] = s
		}
		return js.ValueOf(map[string]interface{}{
			"png":         png,
			"width":       res.Width,
			"height":      res.Height,
			"layers":      string(layers),
			"originalUrl": res.OriginalURL,
			"skipped":     skipped,
		}), nil
	})
}

func isDirty(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(editor.Dirty())
}

func getLayers(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	layers := editor.Layers()
	mu.Unlock()
	data, err := json.Marshal(layers)
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func getSelected(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(editor.Selected())
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	r := editor.SelectionBounds()
	mu.Unlock()
	data, _ := json.Marshal(r)
	return js.ValueOf(string(data))
}

func getCanvasSize(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	c := editor.Canvas()
	return js.ValueOf(map[string]interface{}{"width": c.W, "height": c.H})
}

// hitTest(x, y) takes canvas coordinates.
func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(-1)
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(editor.HitTest(engine.Point{X: args[0].Float(), Y: args[1].Float()}))
}
