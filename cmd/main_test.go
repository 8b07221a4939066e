package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/lootrota/internal/adapters/repository"
	"github.com/okian/lootrota/internal/config"
	"github.com/okian/lootrota/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer l.Close()
	return l.Addr().String()
}

func TestNewStore(t *testing.T) {
	convey.Convey("Given configuration without a db_path", t, func() {
		cfg := config.New()
		s, err := newStore(context.Background(), cfg, logger.Get())

		convey.Convey("Then an in-memory store is used", func() {
			convey.So(err, convey.ShouldBeNil)
			_, ok := s.(*repository.MemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(s.Close(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given configuration with a db_path", t, func() {
		cfg := config.New()
		cfg.DBPath = filepath.Join(t.TempDir(), "loot.db")
		s, err := newStore(context.Background(), cfg, logger.Get())

		convey.Convey("Then the SQLite store is opened", func() {
			convey.So(err, convey.ShouldBeNil)
			_, ok := s.(*repository.SQLiteStore)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(s.Close(), convey.ShouldBeNil)
		})
	})
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given a started service behind the root handler", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.AdminToken = "t0ken"
		svc, err := newService(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		h := newHandler(cfg, svc, logger.Get())

		for _, path := range []string{"/healthz", "/api-docs", "/openapi.yaml", "/api/v1/items", "/metrics"} {
			convey.Convey("Then GET "+path+" is served", func() {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		}

		convey.Convey("Then writes need the admin token", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/history", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
		})
	})

	convey.Convey("Given an unknown history timezone", t, func() {
		cfg := config.New()
		cfg.HistoryTimezone = "Mars/Olympus"
		_, err := newService(context.Background(), cfg, logger.Get())

		convey.Convey("Then the service is not built", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given run on a free port", t, func() {
		cfg := config.New()
		cfg.Addr = freeAddr()
		cfg.ShutdownTimeout = 2 * time.Second
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- run(ctx, cfg, logger.Get()) }()

		convey.Convey("When the server is up and the context is canceled", func() {
			var resp *http.Response
			var err error
			for i := 0; i < 50; i++ {
				resp, err = http.Get("http://" + cfg.Addr + "/healthz")
				if err == nil {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			cancel()

			convey.Convey("Then run returns cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given system metrics", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
