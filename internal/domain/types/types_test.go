package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/biggame/internal/domain/ledger"
	"github.com/okian/biggame/internal/domain/model"
	types "github.com/okian/biggame/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func newLedger() *ledger.Ledger {
	return ledger.New(
		[]model.Game{{ID: 1, Name: "Relay", Points: model.Points{First: 20, Second: 15, Third: 10}}},
		[]model.Team{{ID: 1, Name: "Water"}, {ID: 2, Name: "Land"}, {ID: 3, Name: "Air"}},
	)
}

func TestScoreboard(t *testing.T) {
	Convey("Given a ledger with an open game", t, func() {
		l := newLedger()
		l.AssignPlace(1, 2, model.First)

		Convey("When a scoreboard is built", func() {
			sb := types.NewScoreboard(l, 7)

			Convey("Then it mirrors the ledger", func() {
				So(sb.Seq, ShouldEqual, 7)
				So(sb.TotalGames, ShouldEqual, 1)
				So(sb.CompletedGames, ShouldEqual, 0)
				So(sb.Complete, ShouldBeFalse)
				So(sb.Winners, ShouldBeNil)
				So(sb.Totals[2], ShouldEqual, 20)
			})

			Convey("And it encodes places by name with string ids", func() {
				b, err := json.Marshal(sb)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"results":{"1":{"first":2}}`)
				So(string(b), ShouldContainSubstring, `"totals":{"1":0,"2":20,"3":0}`)
				So(string(b), ShouldNotContainSubstring, "winners")
			})
		})

		Convey("When the game is finished", func() {
			l.AssignPlace(1, 1, model.Second)
			l.AssignPlace(1, 3, model.Third)
			sb := types.NewScoreboard(l, 10)

			Convey("Then winners are included", func() {
				So(sb.Complete, ShouldBeTrue)
				So(sb.Winners, ShouldHaveLength, 1)
				So(sb.Winners[0].ID, ShouldEqual, 2)
			})
		})
	})
}

func TestStandings(t *testing.T) {
	Convey("Given ledger standings", t, func() {
		l := newLedger()
		l.AssignPlace(1, 3, model.First)

		Convey("When they are converted", func() {
			rows := types.NewStandings(l.Standings())

			Convey("Then rank, team and score are carried", func() {
				So(rows, ShouldHaveLength, 3)
				So(rows[0], ShouldResemble, types.Standing{Rank: 1, TeamID: 3, Name: "Air", Score: 20})
				So(rows[1].Rank, ShouldEqual, 2)
				So(rows[2].Rank, ShouldEqual, 2)
			})
		})
	})
}
