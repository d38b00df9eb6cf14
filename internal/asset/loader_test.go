package asset

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type countingFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
}

func newCountingFetcher(data map[string][]byte) *countingFetcher {
	return &countingFetcher{data: data, calls: make(map[string]int)}
}

func (f *countingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	d, ok := f.data[url]
	if !ok {
		return nil, errors.New("404")
	}
	return d, nil
}

func (f *countingFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func TestLoaderDecodesOnce(t *testing.T) {
	f := newCountingFetcher(map[string][]byte{"a": pngBytes(t, 4, 3, color.White)})
	l := NewLoader(f, 8)
	ctx := context.Background()

	img, err := l.Await(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	_, err = l.Await(ctx, "a")
	require.NoError(t, err)
	l.Request("a", nil)

	assert.Equal(t, 1, f.count("a"))
	got, st := l.Peek("a")
	assert.Equal(t, Ready, st)
	assert.Same(t, img, got)
}

func TestLoaderPeekNeverRequested(t *testing.T) {
	l := NewLoader(newCountingFetcher(nil), 8)
	img, st := l.Peek("nope")
	assert.Nil(t, img)
	assert.Equal(t, Pending, st)
}

func TestLoaderFailureIsPermanent(t *testing.T) {
	f := newCountingFetcher(map[string][]byte{"bad": []byte("definitely not an image")})
	l := NewLoader(f, 8)
	ctx := context.Background()

	_, err := l.Await(ctx, "bad")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = l.Await(ctx, "bad")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, 1, f.count("bad"))

	_, st := l.Peek("bad")
	assert.Equal(t, Failed, st)
}

func TestLoaderSharesIdenticalContent(t *testing.T) {
	data := pngBytes(t, 2, 2, color.Black)
	f := newCountingFetcher(map[string][]byte{"x": data, "y": data})
	l := NewLoader(f, 8)
	ctx := context.Background()

	a, err := l.Await(ctx, "x")
	require.NoError(t, err)
	b, err := l.Await(ctx, "y")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, l.Len())
}

func TestLoaderRequestCallback(t *testing.T) {
	f := newCountingFetcher(map[string][]byte{"a": pngBytes(t, 1, 1, color.White)})
	l := NewLoader(f, 8)

	var fired atomic.Int32
	done := make(chan struct{})
	l.Request("a", func() {
		fired.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
	}
	assert.Equal(t, int32(1), fired.Load())

	// Already decoded: the callback runs inline.
	ran := false
	l.Request("a", func() { ran = true })
	assert.True(t, ran)
}

func TestLoaderAwaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	l := NewLoader(FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		<-release
		return nil, errors.New("released")
	}), 8)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Await(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoaderRedecodesAfterEviction(t *testing.T) {
	f := newCountingFetcher(map[string][]byte{
		"a": pngBytes(t, 1, 1, color.White),
		"b": pngBytes(t, 1, 1, color.Black),
		"c": pngBytes(t, 2, 1, color.Black),
	})
	l := NewLoader(f, 1)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		_, err := l.Await(ctx, u)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, l.Len(), 1)

	img, err := l.Await(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
	assert.GreaterOrEqual(t, f.count("a"), 1)
}

func TestAwaitAllSkipsFailures(t *testing.T) {
	f := newCountingFetcher(map[string][]byte{"ok": pngBytes(t, 1, 1, color.White)})
	l := NewLoader(f, 8)

	images, failed, err := l.AwaitAll(context.Background(), []string{"ok", "missing"})
	require.NoError(t, err)
	assert.Contains(t, images, "ok")
	assert.Contains(t, failed, "missing")
}
