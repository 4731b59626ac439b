// Package ledger holds the scoring ledger: which team took which place in
// each game, and the scores derived from it.
//
// Totals and per-game breakdowns are never updated incrementally. Every
// mutation rebuilds them from the placements, so they cannot drift.
package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/okian/biggame/internal/domain/model"
)

// ErrInvalidSnapshot is returned by Restore for results that reference unknown
// games or teams, or that put one team in two places of the same game.
var ErrInvalidSnapshot = errors.New("invalid ledger snapshot")

// Standing is a team's position in the overall ranking.
type Standing struct {
	Rank  int
	Team  model.Team
	Score int
}

// Ledger is a plain value owned by its caller. It is not safe for concurrent
// use; callers serialize access.
type Ledger struct {
	games []model.Game
	teams []model.Team

	gameByID map[int]model.Game
	teamByID map[int]model.Team

	results  model.Results
	totals   map[int]int
	detailed map[int]map[int]int
}

// New builds an empty ledger for a fixed catalog of games and teams.
// Catalog validation belongs to configuration; duplicate ids keep the last entry.
func New(games []model.Game, teams []model.Team) *Ledger {
	l := &Ledger{
		games:    slices.Clone(games),
		teams:    slices.Clone(teams),
		gameByID: make(map[int]model.Game, len(games)),
		teamByID: make(map[int]model.Team, len(teams)),
		results:  model.Results{},
	}
	for _, g := range games {
		l.gameByID[g.ID] = g
	}
	for _, t := range teams {
		l.teamByID[t.ID] = t
	}
	l.recompute()
	return l
}

// Games returns the configured games in catalog order.
func (l *Ledger) Games() []model.Game { return slices.Clone(l.games) }

// Teams returns the configured teams in catalog order.
func (l *Ledger) Teams() []model.Team { return slices.Clone(l.teams) }

// AssignPlace toggles team into place for game.
//
// If the team already holds place, the slot is emptied. Otherwise the team
// leaves any other slot it holds in that game and takes place, unless place
// is held by another team. Occupied slots are never overwritten: the call is
// blocked, and a team that left its old slot on the way is reported as
// vacated. Unknown games or teams are ignored.
func (l *Ledger) AssignPlace(gameID, teamID int, place model.Place) model.Outcome {
	if _, ok := l.gameByID[gameID]; !ok {
		return model.OutcomeIgnored
	}
	if _, ok := l.teamByID[teamID]; !ok || !place.Valid() {
		return model.OutcomeIgnored
	}

	p := l.results[gameID]
	holder := p.Team(place)

	if holder == teamID {
		p.Clear(place)
		l.store(gameID, p)
		return model.OutcomeRemoved
	}

	prev, held := p.PlaceOf(teamID)
	if held {
		p.Clear(prev)
	}
	var outcome model.Outcome
	switch {
	case holder != 0 && held:
		outcome = model.OutcomeVacated
	case holder != 0:
		return model.OutcomeBlocked
	case held:
		p.Set(place, teamID)
		outcome = model.OutcomeMoved
	default:
		p.Set(place, teamID)
		outcome = model.OutcomeAssigned
	}
	l.store(gameID, p)
	return outcome
}

// store writes p back, pruning empty placements, and recomputes scores.
func (l *Ledger) store(gameID int, p model.Placement) {
	if p.Empty() {
		delete(l.results, gameID)
	} else {
		l.results[gameID] = p
	}
	l.recompute()
}

// Reset clears every placement; all scores return to zero.
func (l *Ledger) Reset() {
	l.results = model.Results{}
	l.recompute()
}

// Restore replaces the placements with results after validating them.
// On error the ledger is left unchanged.
func (l *Ledger) Restore(results model.Results) error {
	clean := make(model.Results, len(results))
	for gameID, p := range results {
		if _, ok := l.gameByID[gameID]; !ok {
			return fmt.Errorf("%w: unknown game %d", ErrInvalidSnapshot, gameID)
		}
		seen := make(map[int]bool, len(model.Places))
		for _, pl := range model.Places {
			team := p.Team(pl)
			if team == 0 {
				continue
			}
			if _, ok := l.teamByID[team]; !ok {
				return fmt.Errorf("%w: unknown team %d in game %d", ErrInvalidSnapshot, team, gameID)
			}
			if seen[team] {
				return fmt.Errorf("%w: team %d holds two places in game %d", ErrInvalidSnapshot, team, gameID)
			}
			seen[team] = true
		}
		if !p.Empty() {
			clean[gameID] = p
		}
	}
	l.results = clean
	l.recompute()
	return nil
}

// recompute rebuilds totals and the per-game breakdown from the placements.
func (l *Ledger) recompute() {
	totals := make(map[int]int, len(l.teams))
	detailed := make(map[int]map[int]int, len(l.teams))
	for _, t := range l.teams {
		totals[t.ID] = 0
		perGame := make(map[int]int, len(l.games))
		for _, g := range l.games {
			perGame[g.ID] = 0
		}
		detailed[t.ID] = perGame
	}

	for gameID, p := range l.results {
		game, ok := l.gameByID[gameID]
		if !ok {
			continue
		}
		for _, pl := range model.Places {
			team := p.Team(pl)
			if _, ok := totals[team]; !ok {
				continue
			}
			pts := game.Points.For(pl)
			totals[team] += pts
			detailed[team][gameID] = pts
		}
	}

	l.totals = totals
	l.detailed = detailed
}

// Results returns a copy of the placements. Games without any placement are absent.
func (l *Ledger) Results() model.Results { return l.results.Clone() }

// TotalScore returns a copy of team id -> total points.
func (l *Ledger) TotalScore() map[int]int { return maps.Clone(l.totals) }

// DetailedScore returns a copy of team id -> game id -> points.
func (l *Ledger) DetailedScore() map[int]map[int]int {
	out := make(map[int]map[int]int, len(l.detailed))
	for team, perGame := range l.detailed {
		out[team] = maps.Clone(perGame)
	}
	return out
}

// CompletedGames counts configured games whose three places are all taken.
func (l *Ledger) CompletedGames() int {
	n := 0
	for _, g := range l.games {
		if l.results[g.ID].Complete() {
			n++
		}
	}
	return n
}

// IsComplete reports whether every configured game is complete. It is
// vacuously true when no games are configured.
func (l *Ledger) IsComplete() bool {
	return l.CompletedGames() == len(l.games)
}

// Winner returns every team sharing the highest total, ordered by id.
// ok is false until the event is complete. With no teams configured a
// complete event has an empty winner set.
func (l *Ledger) Winner() (winners []model.Team, ok bool) {
	if !l.IsComplete() {
		return nil, false
	}
	winners = []model.Team{}
	best := 0
	for i, t := range l.teams {
		if s := l.totals[t.ID]; i == 0 || s > best {
			best = s
		}
	}
	for _, t := range l.teams {
		if l.totals[t.ID] == best {
			winners = append(winners, t)
		}
	}
	slices.SortFunc(winners, func(a, b model.Team) int { return cmp.Compare(a.ID, b.ID) })
	return winners, true
}

// Standings ranks teams by total descending, then id ascending. Teams with
// equal totals share a rank and the next rank is skipped (1, 1, 3).
func (l *Ledger) Standings() []Standing {
	out := make([]Standing, 0, len(l.teams))
	for _, t := range l.teams {
		out = append(out, Standing{Team: t, Score: l.totals[t.ID]})
	}
	slices.SortFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Team.ID, b.Team.ID)
	})
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}
