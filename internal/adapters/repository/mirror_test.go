package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/biggame/internal/adapters/repository"
	"github.com/okian/biggame/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMirror(t *testing.T) {
	ctx := context.Background()

	Convey("Given a mirror over an empty store", t, func() {
		store := repository.NewMemoryStore()
		m := repository.NewMirror(store)

		Convey("When nothing was saved", func() {
			results, err := m.Load(ctx)

			Convey("Then it loads empty results", func() {
				So(err, ShouldBeNil)
				So(results, ShouldBeEmpty)
			})
		})

		Convey("When a snapshot is saved", func() {
			results := model.Results{1: {2, 0, 3}}
			totals := map[int]int{1: 0, 2: 20, 3: 10}
			detailed := map[int]map[int]int{1: {1: 0}, 2: {1: 20}, 3: {1: 10}}
			rev, err := m.Save(ctx, results, totals, detailed)
			So(err, ShouldBeNil)

			Convey("Then the three keys hold the expected JSON", func() {
				raw, _, _ := store.Get(ctx, repository.KeyGameResults)
				So(string(raw), ShouldEqual, `{"1":{"first":2,"third":3}}`)
				raw, _, _ = store.Get(ctx, repository.KeyTotalScores)
				So(string(raw), ShouldEqual, `{"1":0,"2":20,"3":10}`)
				raw, _, _ = store.Get(ctx, repository.KeyDetailedScores)
				var d map[string]map[string]int
				So(json.Unmarshal(raw, &d), ShouldBeNil)
				So(d["2"]["1"], ShouldEqual, 20)
			})

			Convey("And the revision reflects the last write", func() {
				now, err := m.Revision(ctx)
				So(err, ShouldBeNil)
				So(now, ShouldEqual, rev)
			})

			Convey("And loading returns the same results", func() {
				loaded, err := m.Load(ctx)
				So(err, ShouldBeNil)
				So(loaded, ShouldResemble, results)
			})

			Convey("And clearing removes every key", func() {
				_, err := m.Clear(ctx)
				So(err, ShouldBeNil)
				for _, key := range []string{repository.KeyGameResults, repository.KeyTotalScores, repository.KeyDetailedScores} {
					_, found, _ := store.Get(ctx, key)
					So(found, ShouldBeFalse)
				}
			})
		})

		Convey("When the saved results are corrupt", func() {
			blobs := []string{
				`not json`,
				`null`,
				`[1,2,3]`,
				`{"x":{"first":1}}`,
				`{"1":{"fourth":1}}`,
				`{"1":{"first":-4}}`,
			}

			Convey("Then each is discarded and treated as empty", func() {
				for _, blob := range blobs {
					_, err := store.Put(ctx, repository.KeyGameResults, []byte(blob))
					So(err, ShouldBeNil)

					results, err := m.Load(ctx)
					So(errors.Is(err, repository.ErrCorruptBlob), ShouldBeTrue)
					So(results, ShouldBeEmpty)

					_, found, _ := store.Get(ctx, repository.KeyGameResults)
					So(found, ShouldBeFalse)
				}
			})
		})

		Convey("When the store fails", func() {
			_ = store.Close()
			_, err := m.Save(ctx, model.Results{}, nil, nil)

			Convey("Then the error is returned to the caller", func() {
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
			})
		})
	})
}
