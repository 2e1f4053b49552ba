package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; EmailHunter/1.0)"

// DefaultMaxBody caps a single document at 32 MiB.
const DefaultMaxBody = 32 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// ErrTooLarge is returned when a body exceeds the configured cap.
var ErrTooLarge = errors.New("response body too large")

// Response is a fully read document.
type Response struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// Fetcher performs single GET requests. It never retries.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBody   int64
	Header    http.Header
}

// NewFetcher returns a Fetcher with default limits.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{
		Client:    client,
		UserAgent: defaultUserAgent,
		MaxBody:   DefaultMaxBody,
	}
}

// Get downloads url. Extra headers in h are added to the fetcher's own.
func (f *Fetcher) Get(ctx context.Context, url string, h http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	limit := f.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("GET %s: %w", url, ErrTooLarge)
	}
	body, err = maybeGunzip(body, limit)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	return &Response{
		URL:         url,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// maybeGunzip decompresses bodies that still carry the gzip magic bytes, as
// served by hosts that gzip without a Content-Encoding header. The
// decompressed size is held to limit as well. Bodies that fail to decompress
// are returned unchanged.
func maybeGunzip(body []byte, limit int64) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body, nil
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return body, nil
	}
	if int64(len(out)) > limit {
		return nil, ErrTooLarge
	}
	return out, nil
}
