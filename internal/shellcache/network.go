package shellcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
)

// HandlerNetwork fetches from an in-process origin handler.
type HandlerNetwork struct {
	Handler http.Handler
}

func (n HandlerNetwork) Fetch(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	r, err := http.NewRequestWithContext(ctx, method, req.URL.RequestURI(), nil)
	if err != nil {
		return nil, err
	}
	if req.Header != nil {
		r.Header = req.Header.Clone()
	}
	rec := httptest.NewRecorder()
	n.Handler.ServeHTTP(rec, r)
	res := rec.Result()
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: body}, nil
}

// HTTPNetwork fetches from a remote origin. Transport errors are reported as
// network failures; any HTTP status is a successful fetch.
type HTTPNetwork struct {
	Base   *url.URL
	Client *http.Client
}

func NewHTTPNetwork(origin string, client *http.Client) (*HTTPNetwork, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", origin, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", origin)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPNetwork{Base: base, Client: client}, nil
}

func (n *HTTPNetwork) Fetch(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := n.Base.ResolveReference(&url.URL{Path: req.URL.Path, RawQuery: req.URL.RawQuery})
	r, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for _, h := range []string{"Accept", "Accept-Language", "User-Agent"} {
		if v := req.Header.Get(h); v != "" {
			r.Header.Set(h, v)
		}
	}

	res, err := n.Client.Do(r)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: body}, nil
}
