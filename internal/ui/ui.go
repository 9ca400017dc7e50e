package ui

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"os"
	"time"
)

// content embeds the default app shell.
//
//go:embed static
var content embed.FS

// FS returns the shell assets: the directory at webRoot when set, otherwise
// the embedded defaults.
func FS(webRoot string) fs.FS {
	if webRoot != "" {
		return os.DirFS(webRoot)
	}
	sub, err := fs.Sub(content, "static")
	if err != nil {
		// This should never happen in a correctly built binary.
		panic(err)
	}
	return sub
}

// Handler returns an http.Handler that serves the shell assets under /.
// Both / and /index.html answer with the index document directly; the shell
// cache stores them as separate entries and must not see a redirect.
func Handler(webRoot string) http.Handler {
	fsys := FS(webRoot)
	files := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			files.ServeHTTP(w, r)
			return
		}
		b, err := fs.ReadFile(fsys, "index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		modTime := time.Time{}
		if fi, err := fs.Stat(fsys, "index.html"); err == nil {
			modTime = fi.ModTime()
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", modTime, bytes.NewReader(b))
	})
}
