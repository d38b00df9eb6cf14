// Package asset resolves image URLs into decoded bitmaps, stores uploaded
// and exported images, and serves them over HTTP.
package asset

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	ggtext "github.com/gogpu/gg/text"
	"golang.org/x/crypto/blake2b"
)

// Status is the decode state of one URL.
type Status uint8

const (
	Ready Status = iota
	Pending
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Pending:
		return "pending"
	}
	return "failed"
}

// Fetcher retrieves the raw bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

type entry struct {
	state   Status
	hash    [blake2b.Size256]byte
	err     error
	done    chan struct{}
	waiters []func()
}

// Loader decodes each URL at most once. Decoded images live in a bounded
// LRU keyed by content hash, so identical bytes behind different URLs share
// one bitmap. A URL whose image was evicted is decoded again on next use. A
// failed URL stays failed for the lifetime of the Loader.
type Loader struct {
	fetcher Fetcher
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	images  *ggtext.Cache[[blake2b.Size256]byte, image.Image]
}

type LoaderOption func(*Loader)

// WithFetchTimeout bounds each background fetch.
func WithFetchTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// NewLoader returns a Loader holding at most roughly cacheSize decoded
// images.
func NewLoader(fetcher Fetcher, cacheSize int, opts ...LoaderOption) *Loader {
	if cacheSize < 1 {
		cacheSize = 1
	}
	l := &Loader{
		fetcher: fetcher,
		timeout: 30 * time.Second,
		entries: make(map[string]*entry),
		images:  ggtext.NewCache[[blake2b.Size256]byte, image.Image](cacheSize),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Peek returns the decoded image for url without blocking. A URL that has
// never been requested, or whose image was evicted, reports Pending.
func (l *Loader) Peek(url string) (image.Image, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[url]
	if !ok {
		return nil, Pending
	}
	switch e.state {
	case Ready:
		if img, ok := l.images.Get(e.hash); ok {
			return img, Ready
		}
		return nil, Pending
	case Failed:
		return nil, Failed
	}
	return nil, Pending
}

// Err returns the permanent decode error for url, if any.
func (l *Loader) Err(url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[url]; ok && e.state == Failed {
		return e.err
	}
	return nil
}

// Request starts decoding url in the background unless a decode is already
// in flight. onReady, when non-nil, runs once the URL is ready or failed; it
// runs immediately if that has already happened.
func (l *Loader) Request(url string, onReady func()) {
	l.mu.Lock()
	e, start := l.prepare(url)
	if e.state != Pending {
		l.mu.Unlock()
		if onReady != nil {
			onReady()
		}
		return
	}
	if onReady != nil {
		e.waiters = append(e.waiters, onReady)
	}
	l.mu.Unlock()

	if start {
		go l.decode(url, e)
	}
}

// prepare returns the entry for url, creating or restarting it when a
// decode has to run. Callers hold l.mu.
func (l *Loader) prepare(url string) (*entry, bool) {
	e, ok := l.entries[url]
	if !ok {
		e = &entry{state: Pending, done: make(chan struct{})}
		l.entries[url] = e
		return e, true
	}
	if e.state == Ready {
		if _, cached := l.images.Get(e.hash); !cached {
			e.state = Pending
			e.done = make(chan struct{})
			return e, true
		}
	}
	return e, false
}

// Await blocks until url is decoded or has failed, or ctx is done.
func (l *Loader) Await(ctx context.Context, url string) (image.Image, error) {
	for {
		l.Request(url, nil)

		l.mu.Lock()
		done := l.entries[url].done
		l.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		img, st := l.Peek(url)
		switch st {
		case Ready:
			return img, nil
		case Failed:
			return nil, l.Err(url)
		}
		// Evicted between completion and lookup; decode again.
	}
}

// AwaitAll awaits every URL and returns the decoded images by URL. URLs that
// fail are left out and their errors returned in failed. Only a context
// error aborts the wait.
func (l *Loader) AwaitAll(ctx context.Context, urls []string) (images map[string]image.Image, failed map[string]error, err error) {
	images = make(map[string]image.Image, len(urls))
	failed = make(map[string]error)
	for _, u := range urls {
		l.Request(u, nil)
	}
	for _, u := range urls {
		img, aerr := l.Await(ctx, u)
		if aerr != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			failed[u] = aerr
			continue
		}
		images[u] = img
	}
	return images, failed, nil
}

// Len reports how many decoded images are cached.
func (l *Loader) Len() int {
	return l.images.Len()
}

func (l *Loader) decode(url string, e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	var (
		img image.Image
		sum [blake2b.Size256]byte
	)
	data, err := l.fetcher.Fetch(ctx, url)
	if err == nil {
		sum = blake2b.Sum256(data)
		if cached, ok := l.images.Get(sum); ok {
			img = cached
		} else if img, err = Decode(data); err == nil {
			l.images.Set(sum, img)
		}
	}

	l.mu.Lock()
	if err != nil {
		e.state = Failed
		e.err = err
	} else {
		e.state = Ready
		e.hash = sum
	}
	waiters := e.waiters
	e.waiters = nil
	close(e.done)
	l.mu.Unlock()

	if err != nil {
		slog.Warn("asset decode failed", "url", url, "error", err)
	}
	for _, fn := range waiters {
		fn()
	}
}
