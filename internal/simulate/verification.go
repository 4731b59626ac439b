package simulate

import (
	"fmt"
	"maps"
	"slices"

	"github.com/okian/biggame/internal/domain/ledger"
	"github.com/okian/biggame/internal/domain/types"
)

// Replay applies reqs in order to a ledger that starts from initial,
// skipping repeated request ids the way the service does.
func Replay(initial types.Scoreboard, reqs []types.PlacementRequest) (*ledger.Ledger, error) {
	l := ledger.New(initial.Games, initial.Teams)
	if err := l.Restore(initial.Results); err != nil {
		return nil, fmt.Errorf("restore initial results: %w", err)
	}
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		if r.RequestID != "" {
			if _, dup := seen[r.RequestID]; dup {
				continue
			}
			seen[r.RequestID] = struct{}{}
		}
		l.AssignPlace(r.GameID, r.TeamID, r.Place)
	}
	return l, nil
}

// Verify compares the server scoreboard with the expected ledger and returns
// every mismatch found.
func Verify(got types.Scoreboard, want *ledger.Ledger) []string {
	var problems []string

	wantResults := want.Results()
	for _, id := range unionKeys(got.Results, wantResults) {
		if got.Results[id] != wantResults[id] {
			problems = append(problems, fmt.Sprintf("game %d: placement %v, expected %v", id, got.Results[id], wantResults[id]))
		}
	}

	wantTotals := want.TotalScore()
	for _, id := range unionKeys(got.Totals, wantTotals) {
		if got.Totals[id] != wantTotals[id] {
			problems = append(problems, fmt.Sprintf("team %d: total %d, expected %d", id, got.Totals[id], wantTotals[id]))
		}
	}

	if got.Complete != want.IsComplete() {
		problems = append(problems, fmt.Sprintf("complete %v, expected %v", got.Complete, want.IsComplete()))
	}
	if got.CompletedGames != want.CompletedGames() {
		problems = append(problems, fmt.Sprintf("completed games %d, expected %d", got.CompletedGames, want.CompletedGames()))
	}

	var wantWinners []int
	if winners, ok := want.Winner(); ok {
		for _, t := range winners {
			wantWinners = append(wantWinners, t.ID)
		}
	}
	var gotWinners []int
	for _, t := range got.Winners {
		gotWinners = append(gotWinners, t.ID)
	}
	if !slices.Equal(gotWinners, wantWinners) {
		problems = append(problems, fmt.Sprintf("winners %v, expected %v", gotWinners, wantWinners))
	}
	return problems
}

func unionKeys[V any](a, b map[int]V) []int {
	keys := slices.Collect(maps.Keys(a))
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
