// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
)

// ErrUnknownPlace is returned when a place name is not first, second or third.
var ErrUnknownPlace = errors.New("unknown place")

// Place is a podium slot within a single game.
type Place int

const (
	First Place = iota + 1
	Second
	Third
)

// Places lists every slot in podium order.
var Places = [...]Place{First, Second, Third}

func (p Place) String() string {
	switch p {
	case First:
		return "first"
	case Second:
		return "second"
	case Third:
		return "third"
	default:
		return fmt.Sprintf("place(%d)", int(p))
	}
}

// Valid reports whether p is one of the three podium slots.
func (p Place) Valid() bool { return p >= First && p <= Third }

// ParsePlace accepts "first", "second", "third" (case-insensitive) and the
// ordinals "1", "2", "3".
func ParsePlace(s string) (Place, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "1":
		return First, nil
	case "second", "2":
		return Second, nil
	case "third", "3":
		return Third, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPlace, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Place) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPlace, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Place) UnmarshalText(b []byte) error {
	v, err := ParsePlace(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Points holds the award for each podium slot of a game.
type Points struct {
	First  int `json:"first" koanf:"first"`
	Second int `json:"second" koanf:"second"`
	Third  int `json:"third" koanf:"third"`
}

// For returns the points awarded for place, 0 for an invalid place.
func (p Points) For(place Place) int {
	switch place {
	case First:
		return p.First
	case Second:
		return p.Second
	case Third:
		return p.Third
	}
	return 0
}

// Game is one of the configured mini-games.
type Game struct {
	ID     int    `json:"id" koanf:"id"`
	Name   string `json:"name" koanf:"name"`
	Points Points `json:"points" koanf:"points"`
}

// Team is one of the competing teams. Color and Icon are display hints only.
type Team struct {
	ID    int    `json:"id" koanf:"id"`
	Name  string `json:"name" koanf:"name"`
	Color string `json:"color,omitempty" koanf:"color"`
	Icon  string `json:"icon,omitempty" koanf:"icon"`
}

// Placement assigns teams to the podium slots of one game. A zero team id
// marks an empty slot.
type Placement [len(Places)]int

// Team returns the team holding place, or 0.
func (p Placement) Team(place Place) int {
	if !place.Valid() {
		return 0
	}
	return p[place-1]
}

// Set puts team into place.
func (p *Placement) Set(place Place, team int) {
	if place.Valid() {
		p[place-1] = team
	}
}

// Clear empties place.
func (p *Placement) Clear(place Place) { p.Set(place, 0) }

// PlaceOf returns the slot held by team, if any.
func (p Placement) PlaceOf(team int) (Place, bool) {
	if team == 0 {
		return 0, false
	}
	for _, pl := range Places {
		if p[pl-1] == team {
			return pl, true
		}
	}
	return 0, false
}

// Empty reports whether no slot is occupied.
func (p Placement) Empty() bool { return p == Placement{} }

// Complete reports whether every slot is occupied.
func (p Placement) Complete() bool {
	for _, team := range p {
		if team == 0 {
			return false
		}
	}
	return true
}

// MarshalJSON encodes occupied slots as {"first": 1, "third": 3}.
func (p Placement) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(Places))
	for _, pl := range Places {
		if team := p.Team(pl); team != 0 {
			m[pl.String()] = team
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the MarshalJSON form. Unknown keys, non-positive
// team ids and a place named twice (e.g. "first" and "1") are rejected.
func (p *Placement) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m == nil {
		return errors.New("placement must be an object")
	}
	var out Placement
	for k, team := range m {
		pl, err := ParsePlace(k)
		if err != nil {
			return err
		}
		if team <= 0 {
			return fmt.Errorf("invalid team id %d for %s", team, pl)
		}
		if out.Team(pl) != 0 {
			return fmt.Errorf("place %s set more than once", pl)
		}
		out.Set(pl, team)
	}
	*p = out
	return nil
}

// Results is the ledger: game id to that game's placement.
type Results map[int]Placement

// Clone returns an independent copy.
func (r Results) Clone() Results {
	if r == nil {
		return Results{}
	}
	return maps.Clone(r)
}

// Outcome describes what an assignment did to the ledger.
type Outcome string

const (
	OutcomeAssigned  Outcome = "assigned"
	OutcomeMoved     Outcome = "moved"
	OutcomeRemoved   Outcome = "removed"
	OutcomeBlocked   Outcome = "blocked"
	// OutcomeVacated is a blocked move: the team left its old slot but the
	// requested one was taken.
	OutcomeVacated   Outcome = "vacated"
	OutcomeIgnored   Outcome = "ignored"
	// OutcomeDuplicate answers a retried request id without re-applying it.
	OutcomeDuplicate Outcome = "duplicate"
)

// Changed reports whether the outcome mutated the ledger.
func (o Outcome) Changed() bool {
	return o == OutcomeAssigned || o == OutcomeMoved || o == OutcomeRemoved || o == OutcomeVacated
}

// ChangeKind identifies what produced a Change.
type ChangeKind string

const (
	ChangePlacement ChangeKind = "placement"
	ChangeReset     ChangeKind = "reset"
	ChangeReload    ChangeKind = "reload"
)

// Change is a ledger snapshot taken right after a mutation. Seq grows
// monotonically per process.
type Change struct {
	ID       string
	Seq      uint64
	Kind     ChangeKind
	Results  Results
	Totals   map[int]int
	Detailed map[int]map[int]int
}
