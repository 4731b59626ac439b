package simulate

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/internal/domain/types"
)

// Generate returns n random placement toggles over the catalog. Each request
// gets a fresh uuid request id; with probability dupRate a request is
// followed by a retry carrying the same id, which the service must not apply
// twice. Retries are not counted in n.
func Generate(rng *rand.Rand, games []model.Game, teams []model.Team, n int, dupRate float64) []types.PlacementRequest {
	if len(games) == 0 || len(teams) == 0 {
		return nil
	}
	out := make([]types.PlacementRequest, 0, n)
	for range n {
		req := types.PlacementRequest{
			GameID:    games[rng.IntN(len(games))].ID,
			TeamID:    teams[rng.IntN(len(teams))].ID,
			Place:     model.Places[rng.IntN(len(model.Places))],
			RequestID: uuid.NewString(),
		}
		out = append(out, req)
		if dupRate > 0 && rng.Float64() < dupRate {
			out = append(out, req)
		}
	}
	return out
}

// partition splits reqs into per-worker lanes keyed by game so each game's
// toggles keep their order.
func partition(reqs []types.PlacementRequest, workers int) [][]types.PlacementRequest {
	lanes := make([][]types.PlacementRequest, workers)
	for _, r := range reqs {
		i := r.GameID % workers
		if i < 0 {
			i = -i
		}
		lanes[i] = append(lanes[i], r)
	}
	return lanes
}
