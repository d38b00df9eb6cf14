package asset

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// BlobReader opens stored assets by id.
type BlobReader interface {
	Open(id string) ([]byte, error)
}

// HTTPFetcher resolves http(s) URLs, data: URLs, local /assets/<id> paths
// and, when AllowFiles is set, file:// URLs and bare filesystem paths.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
	// Blobs serves /assets/<id> references and absolute URLs under PublicBaseURL
	// without a network round trip.
	Blobs         BlobReader
	PublicBaseURL string
	AllowFiles    bool
}

// NewHTTPFetcher returns a fetcher with the given per-request timeout and
// size limit.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, blobs BlobReader, publicBaseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:        &http.Client{Timeout: timeout},
		MaxBytes:      maxBytes,
		Blobs:         blobs,
		PublicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	switch {
	case strings.HasPrefix(raw, "data:"):
		return f.limit(decodeDataURL(raw))
	case f.Blobs != nil && f.PublicBaseURL != "" && strings.HasPrefix(raw, f.PublicBaseURL+assetPathPrefix):
		return f.Blobs.Open(strings.TrimPrefix(raw, f.PublicBaseURL+assetPathPrefix))
	case f.Blobs != nil && strings.HasPrefix(raw, assetPathPrefix):
		return f.Blobs.Open(strings.TrimPrefix(raw, assetPathPrefix))
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return f.fetchHTTP(ctx, raw)
	case f.AllowFiles:
		path := raw
		if strings.HasPrefix(raw, "file://") {
			u, err := url.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("parse file url: %w", err)
			}
			path = u.Path
		}
		return f.limit(os.ReadFile(path))
	}
	return nil, fmt.Errorf("%w: unsupported url %q", ErrUnsupported, raw)
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, raw string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", raw, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", raw, resp.StatusCode)
	}
	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	return f.limit(io.ReadAll(body))
}

func (f *HTTPFetcher) limit(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<payload>.
func decodeDataURL(raw string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data url", ErrUnsupported)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return []byte(s), nil
}
