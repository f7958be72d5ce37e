package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vctrank/internal/adapters/http/api"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/internal/domain/snapshot"
	"github.com/okian/vctrank/internal/domain/types"
)

type mockDependencies struct {
	lastScope model.Scope
	lastTopN  int
	recompute types.RecomputeTicket
	err       error
}

func (m *mockDependencies) TeamSnapshot(_ context.Context, scope model.Scope, topN int) (types.TeamTable, error) {
	m.lastScope, m.lastTopN = scope, topN
	if m.err != nil {
		return types.TeamTable{}, m.err
	}
	return types.TeamTable{Scope: scope.Key(), Source: "live", Entries: []types.TeamEntry{
		{Rank: 1, Team: "Sentinels", Rating: 1531.2, GamesPlayed: 4},
	}}, nil
}

func (m *mockDependencies) PlayerSnapshot(_ context.Context, scope model.Scope, topN int) (types.PlayerTable, error) {
	m.lastScope, m.lastTopN = scope, topN
	if m.err != nil {
		return types.PlayerTable{}, m.err
	}
	return types.PlayerTable{Scope: scope.Key(), Source: "unavailable", Entries: []types.PlayerEntry{}}, nil
}

func (m *mockDependencies) Resolve(_ context.Context, name string) (types.Resolution, error) {
	return types.Resolution{Raw: name, Canonical: "KRÜ Esports"}, nil
}

func (m *mockDependencies) RequestRecompute(_ context.Context, scope model.Scope) (types.RecomputeTicket, error) {
	m.lastScope = scope
	if m.err != nil {
		return types.RecomputeTicket{}, m.err
	}
	return m.recompute, nil
}

func (m *mockDependencies) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "workers": 2}
}

func newRouter(deps *mockDependencies) *mux.Router {
	r := mux.NewRouter()
	api.NewServer(deps, api.Limits{Default: 10, Max: 50}).Register(context.Background(), r)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestRatings(t *testing.T) {
	Convey("Given the ratings routes", t, func() {
		deps := &mockDependencies{}
		r := newRouter(deps)

		Convey("When no query is given", func() {
			w := serve(r, http.MethodGet, "/v1/ratings/teams", "")

			Convey("Then all-time is served at the default limit", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastScope, ShouldResemble, model.AllTime())
				So(deps.lastTopN, ShouldEqual, 10)
				var table types.TeamTable
				decode(w, &table)
				So(table.Entries[0].Team, ShouldEqual, "Sentinels")
			})
		})

		Convey("When a year and limit are given", func() {
			w := serve(r, http.MethodGet, "/v1/ratings/teams?scope=2023&limit=5", "")

			Convey("Then they are passed through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastScope, ShouldResemble, model.Year(2023))
				So(deps.lastTopN, ShouldEqual, 5)
			})
		})

		Convey("When players are requested", func() {
			w := serve(r, http.MethodGet, "/v1/ratings/players?scope=current", "")

			Convey("Then an unavailable table still renders an empty list", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"entries":[]`)
				So(deps.lastScope, ShouldResemble, model.Current())
			})
		})

		Convey("When the query is invalid", func() {
			cases := map[string]string{
				"/v1/ratings/teams?limit=0":       "bad_request",
				"/v1/ratings/teams?limit=abc":     "bad_request",
				"/v1/ratings/teams?limit=51":      "limit_exceeded",
				"/v1/ratings/teams?scope=someday": "invalid_scope",
				"/v1/ratings/players?scope=99":    "invalid_scope",
			}
			for target, code := range cases {
				w := serve(r, http.MethodGet, target, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var body map[string]string
				decode(w, &body)
				So(body["code"], ShouldEqual, code)
			}
		})

		Convey("When the service fails", func() {
			deps.err = errors.New("store down")
			w := serve(r, http.MethodGet, "/v1/ratings/teams", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)

			deps.err = fmt.Errorf("%w: 0", snapshot.ErrInvalidLimit)
			w = serve(r, http.MethodGet, "/v1/ratings/teams", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the method is wrong", func() {
			w := serve(r, http.MethodPost, "/v1/ratings/teams", "{}")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given the resolve route", t, func() {
		r := newRouter(&mockDependencies{})

		Convey("Then a name is resolved", func() {
			w := serve(r, http.MethodGet, "/v1/teams/resolve?name=kru", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var res types.Resolution
			decode(w, &res)
			So(res.Raw, ShouldEqual, "kru")
			So(res.Canonical, ShouldEqual, "KRÜ Esports")
		})

		Convey("Then a blank name is rejected", func() {
			w := serve(r, http.MethodGet, "/v1/teams/resolve?name=%20", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRecompute(t *testing.T) {
	Convey("Given the recompute route", t, func() {
		since := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
		deps := &mockDependencies{recompute: types.RecomputeTicket{JobID: "j1", Scope: "2023", Status: types.StatusQueued, Since: since}}
		r := newRouter(deps)

		Convey("When a new scope is posted", func() {
			w := serve(r, http.MethodPost, "/v1/recompute", `{"scope":"2023"}`)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.lastScope, ShouldResemble, model.Year(2023))
				var ticket types.RecomputeTicket
				decode(w, &ticket)
				So(ticket.JobID, ShouldEqual, "j1")
			})
		})

		Convey("When the body is empty", func() {
			w := serve(r, http.MethodPost, "/v1/recompute", "")

			Convey("Then all-time is requested", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.lastScope, ShouldResemble, model.AllTime())
			})
		})

		Convey("When the scope is already in flight", func() {
			deps.recompute = types.RecomputeTicket{Scope: "2023", Status: types.StatusDuplicate, Since: since}
			w := serve(r, http.MethodPost, "/v1/recompute", `{"scope":"2023"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the queue is full", func() {
			deps.err = fmt.Errorf("%w: 2023", types.ErrQueueFull)
			w := serve(r, http.MethodPost, "/v1/recompute", `{"scope":"2023"}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When the method is wrong", func() {
			So(serve(r, http.MethodGet, "/v1/recompute", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(serve(r, http.MethodDelete, "/v1/teams/resolve?name=kru", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When the body is malformed", func() {
			So(serve(r, http.MethodPost, "/v1/recompute", `{"scope":`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(r, http.MethodPost, "/v1/recompute", `{"year":2023}`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(r, http.MethodPost, "/v1/recompute", `{"scope":"later"}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the operational routes", t, func() {
		r := newRouter(&mockDependencies{})

		Convey("Then healthz serves metrics", func() {
			w := serve(r, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats are JSON", func() {
			w := serve(r, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			decode(w, &stats)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then unknown paths are 404", func() {
			So(serve(r, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a nil router", t, func() {
		s := api.NewServer(&mockDependencies{}, api.Limits{})
		So(func() { s.Register(context.Background(), nil) }, ShouldPanic)
	})
}

func TestCORS(t *testing.T) {
	Convey("Given a CORS-wrapped router", t, func() {
		h := api.WithCORS(newRouter(&mockDependencies{}), []string{"https://vlr.example"})

		Convey("When an allowed origin calls", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/ratings/teams", http.NoBody)
			req.Header.Set("Origin", "https://vlr.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then the origin is echoed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://vlr.example")
			})
		})

		Convey("When another origin calls", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/ratings/teams", http.NoBody)
			req.Header.Set("Origin", "https://elsewhere.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then no CORS header is set", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})
	})
}
