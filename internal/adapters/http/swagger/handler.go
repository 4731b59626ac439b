// Package swagger serves the generated OpenAPI document and Swagger UI.
package swagger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/swaggest/swgui/v5emb"
)

// Error constants.
var (
	ErrServe = errors.New("swagger serve failed")
)

const (
	specPath = "/openapi.json"
	docsPath = "/api-docs/"
)

// Register attaches Swagger UI and the OpenAPI spec routes to mux.
// Routes:
//
//	GET /openapi.json -> generated OpenAPI 3 document
//	GET /api-docs/    -> Swagger UI reading /openapi.json
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	data, err := Spec()
	mux.HandleFunc("GET "+specPath, func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			http.Error(w, fmt.Errorf("%w: %w", ErrServe, err).Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(data)
	})

	mux.Handle("GET "+docsPath, v5emb.New("Big Game API", specPath, docsPath))
	mux.Handle("GET /api-docs", http.RedirectHandler(docsPath, http.StatusMovedPermanently))
}
