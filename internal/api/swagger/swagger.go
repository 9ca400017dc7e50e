// Package swagger serves the embedded OpenAPI document and a browser for it.
package swagger

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Handler answers GET /openapi.yaml with the API description and GET / with
// a page that renders it. Any other path is 404. Mount it with
// http.StripPrefix so that both paths sit under the docs prefix.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/openapi.yaml", serveDocument)
	mux.HandleFunc("/", serveBrowser)
	return mux
}

func serveDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}

// serveBrowser loads the viewer assets from unpkg; only the page and the
// document come from this process.
func serveBrowser(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(browserPage))
}

const browserPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>fuelkl API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css">
  <style>body { margin: 0; } .swagger-ui .topbar { display: none; }</style>
</head>
<body>
  <div id="api-doc"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js"></script>
  <script>
    window.addEventListener("load", function () {
      SwaggerUIBundle({ url: "/docs/openapi.yaml", dom_id: "#api-doc", docExpansion: "list" });
    });
  </script>
</body>
</html>
`
