// Package site serves the embedded operator panel and chart pages.
package site

import (
	"context"
	"net/http"
)

// Register attaches the operator panel at / and the chart page at /chart.
// Other paths under / are served from the embedded assets.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.FileServer(FS())
	mux.Handle("GET /", files)
	mux.HandleFunc("GET /chart", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, staticFS, "static/chart.html")
	})
}
