package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/internal/domain/types"
)

// ScoreboardHandler serves the ledger read and write endpoints.
type ScoreboardHandler struct {
	deps Dependencies
}

// NewScoreboardHandler creates a new scoreboard handler.
func NewScoreboardHandler(deps Dependencies) *ScoreboardHandler {
	return &ScoreboardHandler{deps: deps}
}

// HandleGetScoreboard handles GET /api/v1/scoreboard.
func (h *ScoreboardHandler) HandleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	sb, err := h.deps.Scoreboard(r.Context())
	if err != nil {
		writeServiceError(w, "api.get_scoreboard", err)
		return
	}
	writeJSON(w, http.StatusOK, sb)
}

// HandleGetStandings handles GET /api/v1/standings.
func (h *ScoreboardHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.deps.Standings(r.Context())
	if err != nil {
		writeServiceError(w, "api.get_standings", err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

// HandlePostPlacement handles POST /api/v1/placements. Unknown game or team
// ids are not errors: they answer 200 with outcome "ignored".
func (h *ScoreboardHandler) HandlePostPlacement(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_placement"
	var req types.PlacementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if !req.Place.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, model.ErrUnknownPlace))
		return
	}

	res, err := h.deps.AssignPlace(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePostReset handles POST /api/v1/reset.
func (h *ScoreboardHandler) HandlePostReset(w http.ResponseWriter, r *http.Request) {
	sb, err := h.deps.Reset(r.Context())
	if err != nil {
		writeServiceError(w, "api.post_reset", err)
		return
	}
	writeJSON(w, http.StatusOK, sb)
}

// HandlePostReload handles POST /api/v1/reload.
func (h *ScoreboardHandler) HandlePostReload(w http.ResponseWriter, r *http.Request) {
	sb, err := h.deps.Reload(r.Context())
	if err != nil {
		writeServiceError(w, "api.post_reload", err)
		return
	}
	writeJSON(w, http.StatusOK, sb)
}
