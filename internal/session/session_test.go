package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualgpt/visualgpt/compositor/internal/asset"
	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/export"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
	"github.com/visualgpt/visualgpt/compositor/internal/visual"
)

const baseURL = "http://cdn/base.png"

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeFlattener struct{}

func (fakeFlattener) Flatten(_ context.Context, req export.FlattenRequest) (*export.FlattenResult, error) {
	return &export.FlattenResult{URL: "http://cdn/assets/flat.png", Layers: req.Layers}, nil
}

type fixture struct {
	visuals *visual.Service
	loader  *asset.Loader
	hub     *Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	data := pngBytes(t, 200, 100)
	loader := asset.NewLoader(asset.FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		if url == baseURL {
			return data, nil
		}
		return nil, errors.New("not found")
	}), 8)
	visuals := visual.NewService(visual.NewMemStore(), fakeFlattener{})
	return &fixture{
		visuals: visuals,
		loader:  loader,
		hub:     NewHub(visuals, loader),
	}
}

func (f *fixture) newVisual(t *testing.T) string {
	t.Helper()
	v, err := f.visuals.Create(context.Background(), baseURL)
	require.NoError(t, err)
	return v.ID
}

func msg(t *testing.T, typ string, payload any) *Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &Message{Type: typ, Payload: raw}
}

func TestRoomApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.hub.Open(ctx, f.newVisual(t))
	require.NoError(t, err)

	res, err := room.apply(ctx, f.visuals, msg(t, TypeLayerAdd, AddPayload{Kind: AddText, Text: "Hi"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.index)
	assert.True(t, res.layersChanged)
	assert.True(t, room.unsaved)
	assert.Equal(t, int64(1), room.serverSeq)

	res, err = room.apply(ctx, f.visuals, msg(t, TypeLayerUpdate, UpdatePayload{
		Index: 1,
		Patch: json.RawMessage(`{"text":"Hello"}`),
	}))
	require.NoError(t, err)
	l, err := room.editor.Layer(1)
	require.NoError(t, err)
	assert.Equal(t, "Hello", l.(*layer.Text).Text)

	_, err = room.apply(ctx, f.visuals, msg(t, TypeLayerDelete, IndexPayload{Index: 7}))
	assert.ErrorIs(t, err, engine.ErrIndexOutOfRange)

	_, err = room.apply(ctx, f.visuals, &Message{Type: "layer.explode"})
	assert.ErrorIs(t, err, ErrUnknownOp)

	_, err = room.apply(ctx, f.visuals, &Message{Type: TypeLayerAdd})
	assert.Error(t, err)
}

func TestRoomRenderFrame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.hub.Open(ctx, f.newVisual(t))
	require.NoError(t, err)

	res, err := room.apply(ctx, f.visuals, &Message{Type: TypeRender})
	require.NoError(t, err)
	require.NotNil(t, res.frame)
	assert.Equal(t, 200, res.frame.Width)
	assert.Equal(t, 100, res.frame.Height)
	assert.NotEmpty(t, res.frame.PNG)
	assert.False(t, res.layersChanged)
}

func TestRoomSaveAndStartOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newVisual(t)
	room, err := f.hub.Open(ctx, id)
	require.NoError(t, err)

	_, err = room.apply(ctx, f.visuals, msg(t, TypeLayerAdd, AddPayload{Kind: AddShape, Shape: layer.ShapeHeart}))
	require.NoError(t, err)

	res, err := room.apply(ctx, f.visuals, &Message{Type: TypeSave})
	require.NoError(t, err)
	require.NotNil(t, res.saved)
	assert.Equal(t, "http://cdn/assets/flat.png", res.saved.URL)
	assert.False(t, room.unsaved)

	v, err := f.visuals.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, v.Layers, 2)

	_, err = room.apply(ctx, f.visuals, &Message{Type: TypeStartOver})
	require.NoError(t, err)
	assert.Equal(t, 1, room.editor.Len())
	v, err = f.visuals.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, v.FlattenedURL)
}

func TestHubOpenUnknownVisual(t *testing.T) {
	f := newFixture(t)
	_, err := f.hub.Open(context.Background(), "vis_01h455vb4pex5vsknk084sn02q")
	assert.ErrorIs(t, err, visual.ErrNotFound)
}

func TestHubOpenSharesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newVisual(t)
	a, err := f.hub.Open(ctx, id)
	require.NoError(t, err)
	b, err := f.hub.Open(ctx, id)
	require.NoError(t, err)
	assert.Same(t, a, b)

	f.hub.Abandon(a)
	f.hub.Abandon(b)
	f.hub.mu.RLock()
	assert.Empty(t, f.hub.rooms)
	f.hub.mu.RUnlock()
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:5173", "*", "example.com"})
	assert.Equal(t, []string{"localhost:5173", "*", "example.com"}, got)
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) *Message {
	t.Helper()
	for {
		var m Message
		require.NoError(t, wsjson.Read(ctx, conn, &m))
		if m.Type == typ {
			return &m
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go f.hub.Run(ctx)

	r := mux.NewRouter()
	r.HandleFunc("/ws/visual/{visualId}", NewHandler(f.hub, []string{"*"}).ServeWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := f.newVisual(t)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/visual/"+id, nil)
	require.NoError(t, err)

	welcome := readUntil(t, ctx, conn, TypeWelcome)
	var w WelcomePayload
	require.NoError(t, json.Unmarshal(welcome.Payload, &w))
	assert.Equal(t, engine.Size{W: 200, H: 100}, w.Canvas)
	assert.Len(t, w.Layers, 1)

	add := msg(t, TypeLayerAdd, AddPayload{Kind: AddText, Text: "SALE"})
	add.Seq = 1
	require.NoError(t, wsjson.Write(ctx, conn, add))

	ack := readUntil(t, ctx, conn, TypeOpAck)
	assert.Equal(t, int64(1), ack.Seq)
	var a AckPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &a))
	assert.Equal(t, 1, a.Index)
	assert.Equal(t, 1, a.Selected)

	layers := readUntil(t, ctx, conn, TypeLayers)
	var lp LayersPayload
	require.NoError(t, json.Unmarshal(layers.Payload, &lp))
	assert.Len(t, lp.Layers, 2)

	bad := msg(t, TypeLayerDelete, IndexPayload{Index: 9})
	bad.Seq = 2
	require.NoError(t, wsjson.Write(ctx, conn, bad))
	nack := readUntil(t, ctx, conn, TypeOpNack)
	assert.Equal(t, int64(2), nack.Seq)

	require.NoError(t, wsjson.Write(ctx, conn, &Message{Type: TypeRender, Seq: 3}))
	frame := readUntil(t, ctx, conn, TypeFrame)
	var fp FramePayload
	require.NoError(t, json.Unmarshal(frame.Payload, &fp))
	assert.Equal(t, 200, fp.Width)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	// The last client leaving persists the edited layers.
	assert.Eventually(t, func() bool {
		v, err := f.visuals.Get(context.Background(), id)
		return err == nil && len(v.Layers) == 2
	}, 5*time.Second, 20*time.Millisecond)
}
