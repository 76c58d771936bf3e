package logger_test

import (
	"context"
	"testing"

	"github.com/okian/giteval/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLevels(t *testing.T) {
	Convey("Given the level parser", t, func() {
		Convey("Known levels parse", func() {
			for _, level := range []string{"debug", "info", "WARN", "warning", "Error", ""} {
				So(logger.SetLevelString(level), ShouldBeNil)
			}
		})

		Convey("Unknown levels are rejected", func() {
			So(logger.SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

func TestGlobalLogger(t *testing.T) {
	Convey("Given the global logger", t, func() {
		ctx := context.Background()
		log := logger.Get()

		Convey("Logging with fields does not panic", func() {
			So(func() {
				log.Info(ctx, "hello", logger.String("k", "v"), logger.Int("n", 1), logger.Bool("ok", true))
				log.Named("sub").Warn(ctx, "scoped", logger.Any("x", struct{}{}))
			}, ShouldNotPanic)
		})
	})
}
