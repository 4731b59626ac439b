package simulate_test

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/biggame/internal/adapters/http/api"
	service "github.com/okian/biggame/internal/app"
	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/internal/domain/types"
	"github.com/okian/biggame/internal/simulate"
	"github.com/okian/biggame/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	games = []model.Game{
		{ID: 1, Name: "Relay", Points: model.Points{First: 30, Second: 20, Third: 10}},
		{ID: 2, Name: "Quiz", Points: model.Points{First: 50, Second: 30, Third: 10}},
		{ID: 3, Name: "Canoe", Points: model.Points{First: 15, Second: 10, Third: 5}},
	}
	teams = []model.Team{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}
)

func TestGenerate(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		rng := rand.New(rand.NewPCG(7, 11))

		Convey("When placements are generated without retries", func() {
			reqs := simulate.Generate(rng, games, teams, 200, 0)

			Convey("Then each uses catalog ids, a valid place and a unique request id", func() {
				So(reqs, ShouldHaveLength, 200)
				ids := map[string]bool{}
				for _, r := range reqs {
					So(r.GameID, ShouldBeBetweenOrEqual, 1, 3)
					So(r.TeamID, ShouldBeBetweenOrEqual, 1, 3)
					So(r.Place.Valid(), ShouldBeTrue)
					So(ids[r.RequestID], ShouldBeFalse)
					ids[r.RequestID] = true
				}
			})
		})

		Convey("When every request is retried", func() {
			reqs := simulate.Generate(rng, games, teams, 10, 1)

			Convey("Then each is immediately followed by its copy", func() {
				So(reqs, ShouldHaveLength, 20)
				for i := 0; i < len(reqs); i += 2 {
					So(reqs[i+1], ShouldResemble, reqs[i])
				}
			})
		})

		Convey("When the catalog is empty", func() {
			Convey("Then nothing is generated", func() {
				So(simulate.Generate(rng, nil, teams, 10, 0), ShouldBeEmpty)
			})
		})
	})
}

func TestReplayAndVerify(t *testing.T) {
	Convey("Given a starting scoreboard and some toggles", t, func() {
		initial := types.Scoreboard{Games: games, Teams: teams, Results: model.Results{}}
		reqs := []types.PlacementRequest{
			{GameID: 1, TeamID: 1, Place: model.First, RequestID: "a"},
			{GameID: 1, TeamID: 1, Place: model.First, RequestID: "a"},
			{GameID: 2, TeamID: 2, Place: model.Second, RequestID: "b"},
		}

		Convey("When they are replayed", func() {
			l, err := simulate.Replay(initial, reqs)
			So(err, ShouldBeNil)

			Convey("Then retried ids are applied once", func() {
				So(l.TotalScore()[1], ShouldEqual, 30)
				So(l.TotalScore()[2], ShouldEqual, 30)
			})

			Convey("And a matching scoreboard verifies cleanly", func() {
				So(simulate.Verify(types.NewScoreboard(l, 2), l), ShouldBeEmpty)
			})

			Convey("And a diverging scoreboard is reported", func() {
				sb := types.NewScoreboard(l, 2)
				sb.Totals[1] = 99
				sb.Complete = true
				problems := simulate.Verify(sb, l)
				So(problems, ShouldHaveLength, 2)
				So(problems[0], ShouldContainSubstring, "team 1: total 99, expected 30")
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running scoreboard server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithCatalog(games, teams), service.WithWatchInterval(0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cfg := &simulate.Config{
			BaseURL:       srv.URL,
			Placements:    300,
			Workers:       4,
			Timeout:       5 * time.Second,
			Seed:          42,
			DuplicateRate: 0.2,
			Reset:         true,
			OutputFile:    filepath.Join(t.TempDir(), "out", "placements.json"),
		}

		Convey("When the simulation runs", func() {
			stats, err := simulate.Run(ctx, cfg)

			Convey("Then the server matches the local replay", func() {
				So(err, ShouldBeNil)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Submitted, ShouldEqual, stats.Generated)
				So(stats.Duplicates, ShouldBeGreaterThan, 0)
				_, statErr := os.Stat(cfg.OutputFile)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the configuration is invalid", func() {
			cfg.Workers = 0
			_, err := simulate.Run(ctx, cfg)

			Convey("Then the run is refused", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given no server", t, func() {
		cfg := &simulate.Config{BaseURL: "http://127.0.0.1:1", Workers: 1, Timeout: time.Second}

		Convey("Then the health check fails", func() {
			_, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
