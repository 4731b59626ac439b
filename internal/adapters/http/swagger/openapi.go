package swagger

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/okian/biggame/internal/domain/types"
)

// ErrorResponse documents the body of every API error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               []response
}

type response struct {
	status      int
	body        any
	contentType string
}

var operations = []operation{
	{
		method: http.MethodGet, path: "/api/v1/scoreboard",
		summary:     "Get scoreboard",
		description: "Returns the catalog, saved placements, totals, per-game scores, progress and winners.",
		resp: []response{
			{status: http.StatusOK, body: types.Scoreboard{}},
			{status: http.StatusServiceUnavailable, body: ErrorResponse{}},
		},
	},
	{
		method: http.MethodGet, path: "/api/v1/standings",
		summary:     "Get standings",
		description: "Returns the teams ranked by total score. Equal scores share a rank.",
		resp: []response{
			{status: http.StatusOK, body: []types.Standing{}},
			{status: http.StatusServiceUnavailable, body: ErrorResponse{}},
		},
	},
	{
		method: http.MethodPost, path: "/api/v1/placements",
		summary: "Toggle a placement",
		description: "Puts a team into a place of a game, moves it within the game, or removes it when it already holds that place. " +
			"An occupied place is never overwritten. Unknown ids are ignored. A repeated request_id is answered without applying the toggle again.",
		req: types.PlacementRequest{},
		resp: []response{
			{status: http.StatusOK, body: types.PlacementResult{}},
			{status: http.StatusBadRequest, body: ErrorResponse{}},
			{status: http.StatusServiceUnavailable, body: ErrorResponse{}},
		},
	},
	{
		method: http.MethodPost, path: "/api/v1/reset",
		summary:     "Reset",
		description: "Clears every placement.",
		resp: []response{
			{status: http.StatusOK, body: types.Scoreboard{}},
			{status: http.StatusServiceUnavailable, body: ErrorResponse{}},
		},
	},
	{
		method: http.MethodPost, path: "/api/v1/reload",
		summary:     "Reload from store",
		description: "Replaces the scoreboard with the results saved in the store.",
		resp: []response{
			{status: http.StatusOK, body: types.Scoreboard{}},
			{status: http.StatusConflict, body: ErrorResponse{}},
			{status: http.StatusServiceUnavailable, body: ErrorResponse{}},
		},
	},
	{
		method: http.MethodGet, path: "/api/v1/events",
		summary:     "SSE scoreboard stream",
		description: "Server-Sent Events stream. The first event is the current scoreboard, each later one follows a change.",
		resp:        []response{{status: http.StatusOK, contentType: "text/event-stream"}},
	},
	{
		method: http.MethodGet, path: "/ws",
		summary:     "WebSocket scoreboard stream",
		description: "Upgrades to a WebSocket that sends {kind, seq, scoreboard} messages.",
		resp:        []response{{status: http.StatusSwitchingProtocols, contentType: "application/json"}},
	},
	{
		method: http.MethodGet, path: "/qr",
		summary:     "Chart QR code",
		description: "PNG QR code linking to the chart page. The optional size query parameter sets the width in pixels.",
		resp: []response{
			{status: http.StatusOK, contentType: "image/png"},
			{status: http.StatusBadRequest, body: ErrorResponse{}},
		},
	},
	{
		method: http.MethodGet, path: "/healthz",
		summary:     "Metrics",
		description: "Prometheus metrics of the process.",
		resp:        []response{{status: http.StatusOK, contentType: "text/plain"}},
	},
	{
		method: http.MethodGet, path: "/stats",
		summary:     "Service statistics",
		description: "Sequence numbers, queue length, subscribers and progress.",
		resp:        []response{{status: http.StatusOK, body: map[string]any{}}},
	},
}

func newOpenAPISpec() (*openapi3.Spec, error) {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Big Game API"
	r.Spec.Info.Version = "1.0.0"
	r.Spec.Info.WithDescription("Scoreboard for the Big Game: podium placements, totals and live streams.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			return nil, err
		}
		oc.SetSummary(op.summary)
		oc.SetDescription(op.description)
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		for _, resp := range op.resp {
			opts := []openapi.ContentOption{openapi.WithHTTPStatus(resp.status)}
			if resp.contentType != "" {
				opts = append(opts, openapi.WithContentType(resp.contentType))
			}
			oc.AddRespStructure(resp.body, opts...)
		}
		if err := r.AddOperation(oc); err != nil {
			return nil, err
		}
	}
	return r.Spec, nil
}

// Spec returns the OpenAPI document as indented JSON.
func Spec() ([]byte, error) {
	spec, err := newOpenAPISpec()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(spec, "", "  ")
}
