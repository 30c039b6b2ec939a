// Package web is a remote Source over HTTP(S) built on gocolly/colly.
// Keys are paths resolved against a base URL.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/rescache/source"
)

// Defaults applied by New.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxBodySize = 64 << 20
	DefaultUserAgent   = "rescache/1"
)

// StatusError reports a non-2xx answer other than 404.
type StatusError struct {
	URL  string
	Code int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("web source: %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

var (
	// ErrUnknownSize is returned by Size when the server omits Content-Length.
	ErrUnknownSize = errors.New("web source: unknown content length")
	// ErrTooLarge is returned by Fetch when the body exceeds MaxBodySize.
	ErrTooLarge = errors.New("web source: body exceeds max size")
)

// Config configures a Web source. Zero values pick the defaults above.
type Config struct {
	BaseURL     string
	Timeout     time.Duration // default DefaultTimeout
	MaxBodySize int           // default DefaultMaxBodySize
	UserAgent   string        // default DefaultUserAgent
}

// Web fetches keys relative to BaseURL. It is safe for concurrent use.
type Web struct {
	base    *url.URL
	c       *colly.Collector
	maxBody int
	sf      singleflight.Group // HEAD requests per key
}

var _ source.Source = (*Web)(nil)

// New validates cfg and builds the collector shared by all requests.
func New(cfg Config) (*Web, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("web source: base url must start with http:// or https://")
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
		// one byte over the limit tells a truncated body from an exact fit
		colly.MaxBodySize(maxBody+1),
		colly.UserAgent(ua),
	)
	c.SetRequestTimeout(timeout)
	return &Web{base: base, c: c, maxBody: maxBody}, nil
}

// URL resolves key against the base URL.
func (w *Web) URL(key string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(key, "/"))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return "", fmt.Errorf("web source: absolute key %q", key)
	}
	return w.base.ResolveReference(ref).String(), nil
}

// do runs one request on a private clone so callbacks never leak between calls.
func (w *Web) do(ctx context.Context, method, key string) (*colly.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := w.URL(key)
	if err != nil {
		return nil, err
	}
	c := w.c.Clone()
	c.Context = ctx

	var (
		resp    *colly.Response
		respErr error
	)
	c.OnResponse(func(r *colly.Response) { resp = r })
	c.OnError(func(r *colly.Response, err error) {
		switch {
		case r != nil && r.StatusCode == http.StatusNotFound:
			respErr = source.ErrNotFound
		case r != nil && r.StatusCode != 0:
			respErr = &StatusError{URL: u, Code: r.StatusCode}
		default:
			respErr = err
		}
	})

	if method == http.MethodHead {
		err = c.Head(u)
	} else {
		err = c.Visit(u)
	}
	if respErr != nil {
		return nil, respErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("web source: no response for %s", u)
	}
	return resp, nil
}

// Fetch GETs key. Bodies larger than MaxBodySize fail with ErrTooLarge
// instead of being returned truncated.
func (w *Web) Fetch(ctx context.Context, key string) ([]byte, error) {
	r, err := w.do(ctx, http.MethodGet, key)
	if err != nil {
		return nil, err
	}
	if len(r.Body) > w.maxBody {
		return nil, fmt.Errorf("%w: %s (limit %d)", ErrTooLarge, key, w.maxBody)
	}
	return append([]byte(nil), r.Body...), nil
}

// Size issues a HEAD request and reports Content-Length. Concurrent calls for
// the same key share one request; it runs detached from any single caller,
// and each caller stops waiting when its own ctx is done.
func (w *Web) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	headCtx := context.WithoutCancel(ctx)
	ch := w.sf.DoChan(key, func() (any, error) {
		r, err := w.do(headCtx, http.MethodHead, key)
		if err != nil {
			return int64(0), err
		}
		if r.Headers == nil {
			return int64(0), ErrUnknownSize
		}
		cl := r.Headers.Get("Content-Length")
		if cl == "" {
			return int64(0), ErrUnknownSize
		}
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return int64(0), ErrUnknownSize
		}
		return n, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close is a no-op; the collector holds no resources beyond idle connections.
func (w *Web) Close(context.Context) error { return nil }
