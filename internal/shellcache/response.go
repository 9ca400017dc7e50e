package shellcache

import (
	"context"
	"net/http"
	"net/url"
)

// Request is what the worker intercepts. Requests are keyed by URL path and
// query, which is how stored entries are matched.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
}

// NewRequest builds a GET request for a path such as "/index.html".
func NewRequest(path string) *Request {
	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: path}
	}
	return &Request{Method: http.MethodGet, URL: u, Header: http.Header{}}
}

// Key is the store key of the request.
func (r *Request) Key() string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// Response is a fully buffered response, so it can be stored and served
// more than once.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &Response{Status: r.Status, Header: r.Header.Clone(), Body: body}
}

// Network performs a live fetch. An error means the network was unavailable;
// a non-2xx status is still a successful fetch.
type Network interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// NetworkFunc adapts a function to Network.
type NetworkFunc func(ctx context.Context, req *Request) (*Response, error)

func (f NetworkFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
