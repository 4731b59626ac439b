package api_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/biggame/internal/adapters/http/api"
)

func TestErrorHelpers(t *testing.T) {
	Convey("Given a cause", t, func() {
		cause := errors.New("unexpected EOF")

		Convey("When it is wrapped with a kind", func() {
			err := api.WrapKind("api.post_placement", api.ErrBadRequest, cause)

			Convey("Then it prints op, kind and cause and matches both", func() {
				So(err.Error(), ShouldEqual, "api.post_placement: bad request: unexpected EOF")
				So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
			})
		})

		Convey("When it is wrapped without a kind", func() {
			err := api.Wrap("api.get_scoreboard", cause)

			Convey("Then only the op is added", func() {
				So(err.Error(), ShouldEqual, "api.get_scoreboard: unexpected EOF")
				So(errors.Is(err, cause), ShouldBeTrue)
				So(api.Wrap("op", nil), ShouldBeNil)
			})
		})

		Convey("When a bare kind is created", func() {
			err := api.NewKind("api.sse", api.ErrStreaming)

			Convey("Then it matches the kind", func() {
				So(err.Error(), ShouldEqual, "api.sse: streaming not supported")
				So(errors.Is(err, api.ErrStreaming), ShouldBeTrue)
			})
		})
	})
}
