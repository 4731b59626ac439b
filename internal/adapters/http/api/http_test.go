package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/biggame/internal/adapters/broker"
	"github.com/okian/biggame/internal/adapters/http/api"
	service "github.com/okian/biggame/internal/app"
	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/internal/domain/types"
	"github.com/okian/biggame/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	testGames = []model.Game{
		{ID: 1, Name: "Relay", Points: model.Points{First: 30, Second: 20, Third: 10}},
		{ID: 2, Name: "Quiz", Points: model.Points{First: 50, Second: 30, Third: 10}},
	}
	testTeams = []model.Team{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}
)

// failingDeps answers every call with err.
type failingDeps struct{ err error }

func (f failingDeps) AssignPlace(context.Context, types.PlacementRequest) (types.PlacementResult, error) {
	return types.PlacementResult{}, f.err
}
func (f failingDeps) Reset(context.Context) (types.Scoreboard, error)      { return types.Scoreboard{}, f.err }
func (f failingDeps) Reload(context.Context) (types.Scoreboard, error)     { return types.Scoreboard{}, f.err }
func (f failingDeps) Scoreboard(context.Context) (types.Scoreboard, error) { return types.Scoreboard{}, f.err }
func (f failingDeps) Standings(context.Context) ([]types.Standing, error)  { return nil, f.err }
func (f failingDeps) Subscribe(string) chan broker.Event                   { return make(chan broker.Event) }
func (f failingDeps) Unsubscribe(chan broker.Event)                        {}
func (f failingDeps) GetStats() map[string]any                             { return map[string]any{} }

func newMux(deps api.Dependencies, stats api.StatsProvider, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, stats, opts...).Register(context.Background(), mux)
	return mux
}

func startService() *service.Service {
	svc := service.New(service.WithCatalog(testGames, testTeams), service.WithWatchInterval(0))
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestScoreboardRoutes(t *testing.T) {
	Convey("Given the API on a started service", t, func() {
		svc := startService()
		defer svc.Stop()
		mux := newMux(svc, svc)

		Convey("When the scoreboard is fetched", func() {
			w := do(mux, http.MethodGet, "/api/v1/scoreboard", "")
			var sb types.Scoreboard
			err := json.Unmarshal(w.Body.Bytes(), &sb)

			Convey("Then it lists the catalog with no results", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
				So(err, ShouldBeNil)
				So(sb.Games, ShouldHaveLength, 2)
				So(sb.Teams, ShouldHaveLength, 3)
				So(sb.TotalGames, ShouldEqual, 2)
				So(sb.Complete, ShouldBeFalse)
			})
		})

		Convey("When a route is called with the wrong method", func() {
			w := do(mux, http.MethodDelete, "/api/v1/scoreboard", "")

			Convey("Then the mux rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When a placement is posted", func() {
			w := do(mux, http.MethodPost, "/api/v1/placements", `{"game_id":1,"team_id":2,"place":"first"}`)
			var res types.PlacementResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)

			Convey("Then the outcome and new scores are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(res.Outcome, ShouldEqual, model.OutcomeAssigned)
				So(res.Scoreboard.Totals[2], ShouldEqual, 30)
			})

			Convey("And the standings rank the team first", func() {
				w := do(mux, http.MethodGet, "/api/v1/standings", "")
				var standings []types.Standing
				So(json.Unmarshal(w.Body.Bytes(), &standings), ShouldBeNil)
				So(standings[0], ShouldResemble, types.Standing{Rank: 1, TeamID: 2, Name: "B", Score: 30})
				So(standings[1].Rank, ShouldEqual, 2)
				So(standings[2].Rank, ShouldEqual, 2)
			})

			Convey("And the ledger is reset", func() {
				w := do(mux, http.MethodPost, "/api/v1/reset", "")
				var sb types.Scoreboard
				So(json.Unmarshal(w.Body.Bytes(), &sb), ShouldBeNil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(sb.Results, ShouldBeEmpty)
				So(sb.Totals[2], ShouldEqual, 0)
			})
		})

		Convey("When a placed team asks for a place another team holds", func() {
			do(mux, http.MethodPost, "/api/v1/placements", `{"game_id":1,"team_id":1,"place":"first"}`)
			do(mux, http.MethodPost, "/api/v1/placements", `{"game_id":1,"team_id":2,"place":"second"}`)
			w := do(mux, http.MethodPost, "/api/v1/placements", `{"game_id":1,"team_id":2,"place":"first"}`)
			var res types.PlacementResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)

			Convey("Then the team is left without a place", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(res.Outcome, ShouldEqual, model.OutcomeVacated)
				So(res.Scoreboard.Results[1].Team(model.First), ShouldEqual, 1)
				So(res.Scoreboard.Totals[2], ShouldEqual, 0)
			})
		})

		Convey("When a placement names unknown ids", func() {
			w := do(mux, http.MethodPost, "/api/v1/placements", `{"game_id":9,"team_id":2,"place":"second"}`)

			Convey("Then it is ignored without an error", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"outcome":"ignored"`)
			})
		})

		Convey("When a placement is retried with the same request id", func() {
			body := `{"game_id":1,"team_id":1,"place":"third","request_id":"r-1"}`
			do(mux, http.MethodPost, "/api/v1/placements", body)
			w := do(mux, http.MethodPost, "/api/v1/placements", body)
			var res types.PlacementResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)

			Convey("Then the retry does not toggle the team off", func() {
				So(res.Outcome, ShouldEqual, model.OutcomeDuplicate)
				So(res.Original, ShouldEqual, model.OutcomeAssigned)
				So(res.Scoreboard.Totals[1], ShouldEqual, 10)
			})
		})

		Convey("When a placement is malformed", func() {
			cases := []struct {
				name string
				body string
			}{
				{"broken JSON", `{"game_id":`},
				{"unknown place", `{"game_id":1,"team_id":1,"place":"fourth"}`},
				{"missing place", `{"game_id":1,"team_id":1}`},
			}

			Convey("Then each is rejected with 400", func() {
				for _, tc := range cases {
					w := do(mux, http.MethodPost, "/api/v1/placements", tc.body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(w.Body.String(), ShouldContainSubstring, `"code":"bad_request"`)
				}
			})
		})

		Convey("When the store is reloaded with nothing pending", func() {
			w := do(mux, http.MethodPost, "/api/v1/reload", "")

			Convey("Then the reloaded scoreboard is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestServiceErrors(t *testing.T) {
	Convey("Given the API on a service that is not started", t, func() {
		mux := newMux(failingDeps{err: service.ErrNotStarted}, failingDeps{})

		Convey("Then reads answer 503", func() {
			w := do(mux, http.MethodGet, "/api/v1/scoreboard", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, `"code":"unavailable"`)
		})
	})

	Convey("Given the API while local changes are unsaved", t, func() {
		mux := newMux(failingDeps{err: service.ErrPendingChanges}, failingDeps{})

		Convey("Then a reload answers 409", func() {
			w := do(mux, http.MethodPost, "/api/v1/reload", "")
			So(w.Code, ShouldEqual, http.StatusConflict)
		})
	})

	Convey("Given the API over a failing service", t, func() {
		mux := newMux(failingDeps{err: errors.New("boom")}, failingDeps{})

		Convey("Then a reset answers 500", func() {
			w := do(mux, http.MethodPost, "/api/v1/reset", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, "api.post_reset: boom")
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the API on a started service", t, func() {
		svc := startService()
		defer svc.Stop()

		Convey("When metrics are scraped", func() {
			w := do(newMux(svc, svc), http.MethodGet, "/healthz", "")

			Convey("Then Prometheus text is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "biggame_scoreboard_resets_total")
			})
		})

		Convey("When stats are requested", func() {
			w := do(newMux(svc, svc), http.MethodGet, "/stats", "")
			var stats map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)

			Convey("Then the service statistics are returned", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["games"], ShouldEqual, float64(2))
			})
		})

		Convey("When a QR code is requested", func() {
			w := do(newMux(svc, svc, api.WithPublicURL("https://scores.example/")), http.MethodGet, "/qr?size=256", "")

			Convey("Then a PNG is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "image/png")
				So(bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")), ShouldBeTrue)
			})
		})

		Convey("When a QR code is requested with a bad size", func() {
			w := do(newMux(svc, svc), http.MethodGet, "/qr?size=-1", "")

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestStreams(t *testing.T) {
	Convey("Given the API served over HTTP", t, func() {
		svc := startService()
		defer svc.Stop()
		srv := httptest.NewServer(newMux(svc, svc, api.WithPingInterval(time.Hour)))
		defer srv.Close()

		post := func() {
			resp, err := http.Post(srv.URL+"/api/v1/placements", "application/json",
				strings.NewReader(`{"game_id":2,"team_id":3,"place":"first"}`))
			So(err, ShouldBeNil)
			_ = resp.Body.Close()
		}

		Convey("When an SSE client connects and a placement follows", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			reader := bufio.NewReader(resp.Body)

			nextData := func() types.Scoreboard {
				for {
					line, err := reader.ReadString('\n')
					So(err, ShouldBeNil)
					if data, ok := strings.CutPrefix(line, "data: "); ok {
						var sb types.Scoreboard
						So(json.Unmarshal([]byte(data), &sb), ShouldBeNil)
						return sb
					}
				}
			}

			first := nextData()
			post()
			second := nextData()

			Convey("Then it receives the snapshot and then the change", func() {
				So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")
				So(first.Seq, ShouldEqual, 0)
				So(second.Seq, ShouldEqual, 1)
				So(second.Totals[3], ShouldEqual, 50)
			})
		})

		Convey("When a WebSocket client connects and a placement follows", func() {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

			var msg struct {
				Kind       string           `json:"kind"`
				Seq        uint64           `json:"seq"`
				Scoreboard types.Scoreboard `json:"scoreboard"`
			}
			So(conn.ReadJSON(&msg), ShouldBeNil)
			firstKind := msg.Kind
			post()
			So(conn.ReadJSON(&msg), ShouldBeNil)

			Convey("Then it receives the snapshot and then the change", func() {
				So(firstKind, ShouldEqual, "snapshot")
				So(msg.Kind, ShouldEqual, string(model.ChangePlacement))
				So(msg.Seq, ShouldEqual, 1)
				So(msg.Scoreboard.Totals[3], ShouldEqual, 50)
			})
		})
	})
}
