package feed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/lootrota/internal/adapters/mq/feed"
	logging "github.com/okian/lootrota/pkg/logger"
)

func init() {
	_ = logging.Init()
}

func receive(t *testing.T, s *feed.Subscription) (feed.Message, bool) {
	t.Helper()
	select {
	case m, ok := <-s.C():
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return feed.Message{}, false
	}
}

func TestHub(t *testing.T) {
	convey.Convey("Given a running hub", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h := feed.NewHub(feed.WithBufferSize(2))
		go h.Run(ctx)

		convey.Convey("When two subscribers listen", func() {
			a, err := h.Subscribe()
			convey.So(err, convey.ShouldBeNil)
			b, err := h.Subscribe()
			convey.So(err, convey.ShouldBeNil)
			convey.So(h.Subscribers(), convey.ShouldEqual, 2)

			h.Publish(feed.Message{Collection: "events", Op: "create", ID: "e1"})

			convey.Convey("Then both receive the message with a timestamp", func() {
				ma, ok := receive(t, a)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(ma.ID, convey.ShouldEqual, "e1")
				convey.So(ma.At.IsZero(), convey.ShouldBeFalse)

				mb, ok := receive(t, b)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(mb.Collection, convey.ShouldEqual, "events")
			})

			convey.Convey("Then closing one subscription leaves the other", func() {
				a.Close()
				a.Close()
				convey.So(h.Subscribers(), convey.ShouldEqual, 1)
				for range a.C() {
				}
			})
		})

		convey.Convey("When a subscriber never reads", func() {
			s, _ := h.Subscribe()
			for i := 0; i < 10; i++ {
				h.Publish(feed.Message{Collection: "players", Op: "update"})
			}

			convey.Convey("Then the publisher is not blocked and the buffer caps delivery", func() {
				time.Sleep(50 * time.Millisecond)
				convey.So(len(s.C()), convey.ShouldBeLessThanOrEqualTo, 2)
			})
		})

		convey.Convey("When the hub shuts down", func() {
			s, _ := h.Subscribe()
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			err := h.Shutdown(sctx)

			convey.Convey("Then subscriptions are closed and new ones are refused", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := <-s.C()
				convey.So(ok, convey.ShouldBeFalse)
				_, err := h.Subscribe()
				convey.So(errors.Is(err, feed.ErrStopped), convey.ShouldBeTrue)
				convey.So(h.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}
