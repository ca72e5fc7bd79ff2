// Package app provides the embedded single-page frontend for the course
// generator. Assets are embedded at compile time for zero-dependency
// deployment.
package app

import (
	_ "embed"
	"net/http"

	"github.com/abaykopenov/llm-scorm/pkg/routes"
)

//go:embed index.html
var indexHTML []byte

//go:embed app.js
var appJS []byte

//go:embed app.css
var appCSS []byte

// Handler serves the frontend assets.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Routes returns the route group for the frontend.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Description: "Embedded web frontend",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{$}", Handler: h.serveIndex},
			{Method: "GET", Pattern: "/app.js", Handler: h.serveJS},
			{Method: "GET", Pattern: "/app.css", Handler: h.serveCSS},
		},
	}
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}

func (h *Handler) serveJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(appJS)
}

func (h *Handler) serveCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(appCSS)
}
