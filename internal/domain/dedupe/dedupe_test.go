package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/biggame/internal/domain/dedupe"
	"github.com/okian/biggame/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When nothing was recorded", func() {
			_, ok := d.Lookup(ctx, "req-1")

			Convey("Then lookups miss", func() {
				So(ok, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a request id is recorded", func() {
			d.Record(ctx, "req-1", model.OutcomeAssigned)

			Convey("Then its outcome is returned", func() {
				out, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeTrue)
				So(out, ShouldEqual, model.OutcomeAssigned)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again keeps the first outcome", func() {
				d.Record(ctx, "req-1", model.OutcomeRemoved)
				out, _ := d.Lookup(ctx, "req-1")
				So(out, ShouldEqual, model.OutcomeAssigned)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more ids than the bound are recorded", func() {
			for i := 1; i <= 4; i++ {
				d.Record(ctx, fmt.Sprintf("req-%d", i), model.OutcomeAssigned)
			}

			Convey("Then the oldest id is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeFalse)
				for i := 2; i <= 4; i++ {
					_, ok := d.Lookup(ctx, fmt.Sprintf("req-%d", i))
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When an evicted id is recorded again", func() {
			d.Record(ctx, "a", model.OutcomeAssigned)
			d.Record(ctx, "b", model.OutcomeMoved)
			d.Record(ctx, "c", model.OutcomeRemoved)
			d.Record(ctx, "d", model.OutcomeBlocked)
			d.Record(ctx, "a", model.OutcomeVacated)

			Convey("Then it takes the new outcome and evicts the next oldest", func() {
				So(d.Size(), ShouldEqual, 3)
				out, ok := d.Lookup(ctx, "a")
				So(ok, ShouldBeTrue)
				So(out, ShouldEqual, model.OutcomeVacated)
				_, ok = d.Lookup(ctx, "b")
				So(ok, ShouldBeFalse)
				for _, id := range []string{"c", "d"} {
					_, ok := d.Lookup(ctx, id)
					So(ok, ShouldBeTrue)
				}
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many ids are recorded", func() {
			for i := 0; i < 5000; i++ {
				d.Record(ctx, fmt.Sprintf("req-%d", i), model.OutcomeAssigned)
			}

			Convey("Then none are evicted", func() {
				So(d.Size(), ShouldEqual, 5000)
				_, ok := d.Lookup(ctx, "req-0")
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given concurrent callers", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100))

		Convey("When goroutines record and look up ids", func() {
			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 200; i++ {
						id := fmt.Sprintf("%d-%d", g, i)
						d.Record(ctx, id, model.OutcomeAssigned)
						_, _ = d.Lookup(ctx, fmt.Sprintf("%d-%d", (g+1)%8, i))
					}
				}(g)
			}
			wg.Wait()

			Convey("Then the bound holds", func() {
				So(d.Size(), ShouldEqual, 100)
			})
		})
	})
}
