package main

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/biggame/internal/simulate"
)

func TestNewCmd(t *testing.T) {
	convey.Convey("Given the simulate command", t, func() {
		convey.Convey("When flags are parsed", func() {
			cfg := &simulate.Config{}
			cmd := newCmd(cfg)
			err := cmd.ParseFlags([]string{"--url", "http://scores:9080", "-n", "25", "--duplicate_rate", "0.5", "--reset"})

			convey.Convey("Then the config is filled, with underscores normalized", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BaseURL, convey.ShouldEqual, "http://scores:9080")
				convey.So(cfg.Placements, convey.ShouldEqual, 25)
				convey.So(cfg.DuplicateRate, convey.ShouldEqual, 0.5)
				convey.So(cfg.Reset, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the environment sets a value", func() {
			t.Setenv("SIMULATE_PLACEMENTS", "7")
			t.Setenv("SIMULATE_URL", "http://env:1")
			cfg := &simulate.Config{}
			cmd := newCmd(cfg)
			err := cmd.ParseFlags(nil)

			convey.Convey("Then it is used when no flag overrides it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Placements, convey.ShouldEqual, 7)
				convey.So(cfg.BaseURL, convey.ShouldEqual, "http://env:1")
			})
		})
	})
}
