package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it registers under the biggame namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.resets.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				found := false
				for _, f := range families {
					if f.GetName() == "biggame_scoreboard_resets_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("lake"),
				WithSubsystem("board"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"event": "summer"}),
				WithPrometheusRegistry(registry),
			)
			manager.placements.WithLabelValues("assigned", "first").Inc()

			Convey("Then names and labels follow the options", func() {
				expected := `
# HELP lake_board_placements_total Placement requests by outcome and place
# TYPE lake_board_placements_total counter
lake_board_placements_total{event="summer",outcome="assigned",place="first"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "lake_board_placements_total")
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording scoreboard metrics", func() {
			before := testutil.ToFloat64(globalManager.placements.WithLabelValues("moved", "second"))
			RecordPlacement("moved", "second")
			UpdateTeamScore("1", 55)
			UpdateCompletion(3, false)

			Convey("Then the collectors reflect the calls", func() {
				So(testutil.ToFloat64(globalManager.placements.WithLabelValues("moved", "second")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.teamScore.WithLabelValues("1")), ShouldEqual, 55)
				So(testutil.ToFloat64(globalManager.completedGames), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.eventComplete), ShouldEqual, 0)
			})

			Convey("And completion flips the flag", func() {
				UpdateCompletion(5, true)
				So(testutil.ToFloat64(globalManager.eventComplete), ShouldEqual, 1)
			})
		})

		Convey("When recording operational metrics", func() {
			Convey("Then none of the helpers panic", func() {
				So(func() {
					RecordReset()
					RecordReload("watcher")
					RecordDuplicatePlacement()
					RecordStoreOperation("put", 1.5)
					RecordStoreError("get")
					RecordStoreDiscard()
					UpdateQueueSize(3)
					UpdateQueueCapacity(1024)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					UpdateWorkerCount(2)
					RecordWorkerProcessingLatency(0.4)
					RecordWorkerError()
					RecordStaleChange()
					RecordChangePublished()
					UpdateSubscribers("sse", 2)
					RecordHTTPRequest("/api/v1/scoreboard", "GET", "200")
					RecordHTTPRequestDuration("/api/v1/scoreboard", "GET", "200", 2.5)
					RecordErrorByComponent("store", "timeout")
					RecordErrorByEndpoint("/api/v1/placements", "POST", "bad_request")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})

		Convey("When gathering the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then it succeeds", func() {
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
			})
		})
	})
}
