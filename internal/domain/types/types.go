// Package types contains the read shapes shared by the API, the event
// streams and the simulator.
package types

import (
	"github.com/okian/biggame/internal/domain/ledger"
	"github.com/okian/biggame/internal/domain/model"
)

// Scoreboard is a full snapshot of the ledger and everything derived from it.
type Scoreboard struct {
	Seq            uint64              `json:"seq"`
	Games          []model.Game        `json:"games"`
	Teams          []model.Team        `json:"teams"`
	Results        model.Results       `json:"results"`
	Totals         map[int]int         `json:"totals"`
	Detailed       map[int]map[int]int `json:"detailed"`
	CompletedGames int                 `json:"completed_games"`
	TotalGames     int                 `json:"total_games"`
	Complete       bool                `json:"complete"`
	Winners        []model.Team        `json:"winners,omitempty"`
}

// PlacementRequest asks to toggle a team into a place of a game. RequestID is
// optional; a repeated id is answered without applying the toggle again.
type PlacementRequest struct {
	GameID    int         `json:"game_id" required:"true"`
	TeamID    int         `json:"team_id" required:"true"`
	Place     model.Place `json:"place" required:"true" enum:"first,second,third"`
	RequestID string      `json:"request_id,omitempty"`
}

// PlacementResult is the answer to a PlacementRequest. Original holds the
// first outcome when Outcome is OutcomeDuplicate.
type PlacementResult struct {
	Outcome    model.Outcome `json:"outcome"`
	Original   model.Outcome `json:"original,omitempty"`
	Scoreboard Scoreboard    `json:"scoreboard"`
}

// Standing is one row of the ranked standings.
type Standing struct {
	Rank   int    `json:"rank"`
	TeamID int    `json:"team_id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
}

// NewScoreboard snapshots l. seq is the sequence number of the last change.
func NewScoreboard(l *ledger.Ledger, seq uint64) Scoreboard {
	games := l.Games()
	sb := Scoreboard{
		Seq:            seq,
		Games:          games,
		Teams:          l.Teams(),
		Results:        l.Results(),
		Totals:         l.TotalScore(),
		Detailed:       l.DetailedScore(),
		CompletedGames: l.CompletedGames(),
		TotalGames:     len(games),
		Complete:       l.IsComplete(),
	}
	if winners, ok := l.Winner(); ok {
		sb.Winners = winners
	}
	return sb
}

// NewStandings converts ledger standings to their wire shape.
func NewStandings(in []ledger.Standing) []Standing {
	out := make([]Standing, 0, len(in))
	for _, s := range in {
		out = append(out, Standing{
			Rank:   s.Rank,
			TeamID: s.Team.ID,
			Name:   s.Team.Name,
			Score:  s.Score,
		})
	}
	return out
}
