package shellcache

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bher20/fuelkl/internal/logger"
)

// Handler serves HTTP requests through the registration. A network-first
// miss while offline maps to 504; any other failure to 502.
func Handler(reg *Registration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &Request{Method: r.Method, URL: r.URL, Header: r.Header}
		resp, err := reg.Handle(r.Context(), req)
		if err != nil {
			logger.WithModule("shell").Warnf("%s %s: %v", r.Method, r.URL.Path, err)
			if errors.Is(err, ErrNotCached) {
				http.Error(w, "offline and no stored copy", http.StatusGatewayTimeout)
				return
			}
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}

		for k, vs := range resp.Header {
			if k == "Content-Length" {
				continue
			}
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
		w.WriteHeader(resp.Status)
		if r.Method != http.MethodHead {
			_, _ = w.Write(resp.Body)
		}
	})
}
