// Package swagger serves the API's OpenAPI document and a Swagger UI page.
package swagger

import (
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed openapi.yaml
var openAPIDocument []byte

const uiVersion = "5.17.14"

var page = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui.css">
  <style>body { margin: 0; } .swagger-ui .topbar { display: none; }</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function () {
      window.ui = SwaggerUIBundle({
        url: "{{.DocumentURL}}",
        dom_id: "#swagger-ui",
        deepLinking: true,
        docExpansion: "list",
        tryItOutEnabled: true
      });
    };
  </script>
</body>
</html>
`))

// Handler serves the Swagger UI at / and the OpenAPI document at
// /openapi.yaml. documentURL is the absolute path the browser uses to fetch
// the document, so mount the handler with http.StripPrefix.
func Handler(documentURL string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openAPIDocument)
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = page.Execute(w, struct {
			Title, Version, DocumentURL string
		}{"Utility Rates API Documentation", uiVersion, documentURL})
	})

	return mux
}
