package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/vctrank/internal/app"
	"github.com/okian/vctrank/internal/adapters/repository/memory"
	"github.com/okian/vctrank/internal/config"
)

func TestNewHandler(t *testing.T) {
	convey.Convey("Given a started service behind the HTTP handler", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.Recompute.Schedule = ""
		cfg.CORS.AllowedOrigins = []string{"https://ratings.example"}

		svc := app.New(cfg,
			app.WithStore(memory.New()),
			app.WithClock(func() time.Time { return time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC) }),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		h := newHandler(ctx, cfg, svc)

		convey.Convey("Then API, docs and metrics routes answer", func() {
			for _, target := range []string{"/v1/ratings/teams?scope=current", "/openapi.yaml", "/api-docs", "/healthz", "/stats"} {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then the configured max limit is enforced", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ratings/teams?limit=201", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("Then a preflight from the configured origin is allowed", func() {
			req := httptest.NewRequest(http.MethodOptions, "/v1/recompute", http.NoBody)
			req.Header.Set("Origin", "https://ratings.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "https://ratings.example")
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			startSystemMetricsUpdater(ctx)
			close(done)
		}()
		cancel()

		convey.So(func() { <-done }, convey.ShouldNotPanic)
	})
}
