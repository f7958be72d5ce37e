package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/vctrank/internal/app"
	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/adapters/repository/memory"
	"github.com/okian/vctrank/internal/config"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/internal/domain/types"
)

var clock = func() time.Time { return time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC) }

func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.Recompute.Schedule = ""
	return cfg
}

func history() []model.MatchOutcome {
	return []model.MatchOutcome{
		{MatchID: "1", TeamA: "FNC", TeamB: "EG", TeamAScore: model.Score(2), TeamBScore: model.Score(0), SortDate: model.Date(2023, time.May, 1)},
		{MatchID: "2", TeamA: "Visa KRU Esports", TeamB: "LEV", TeamAScore: model.Score(2), TeamBScore: model.Score(1), SortDate: model.Date(2023, time.June, 1)},
		{MatchID: "3", TeamA: "Sentinels", TeamB: "Gen.G", TeamAScore: model.Score(3), TeamBScore: model.Score(2), SortDate: model.Date(2024, time.March, 24)},
		{MatchID: "4", TeamA: "Team International", TeamB: "Team World", TeamAScore: model.Score(1), TeamBScore: model.Score(0), SortDate: model.Date(2024, time.June, 1)},
	}
}

func startService(store repository.Store, opts ...service.Option) *service.Service {
	svc := service.New(testConfig(), append([]service.Option{service.WithStore(store), service.WithClock(clock)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		svc := service.New(testConfig())
		ctx := context.Background()

		Convey("Then reads report ErrNotStarted", func() {
			_, err := svc.TeamSnapshot(ctx, model.AllTime(), 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.RequestRecompute(ctx, model.AllTime())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Then Stop is a no-op", func() {
			svc.Stop(ctx)
		})
	})

	Convey("Given an unknown storage driver", t, func() {
		cfg := testConfig()
		cfg.Storage.Driver = "cassandra"
		err := service.New(cfg).Start(context.Background())

		Convey("Then Start fails", func() {
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
		})
	})

	Convey("Given an invalid schedule and an unknown storage driver", t, func() {
		cfg := testConfig()
		cfg.Recompute.Schedule = "every hour"
		cfg.Storage.Driver = "cassandra"
		svc := service.New(cfg)
		err := svc.Start(context.Background())

		Convey("Then Start rejects the schedule before opening storage", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "every hour")
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeFalse)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given an invalid schedule over a store with a seed file", t, func() {
		store := memory.New()
		cfg := testConfig()
		cfg.Recompute.Schedule = "every hour"
		cfg.Storage.Seed = filepath.Join(t.TempDir(), "missing.json")
		err := service.New(cfg, service.WithStore(store)).Start(context.Background())

		Convey("Then the store is left untouched", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldNotContainSubstring, "load seed")
		})
	})

	Convey("Given a sqlite driver", t, func() {
		cfg := testConfig()
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.DSN = ":memory:"
		svc := service.New(cfg, service.WithClock(clock))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop(context.Background())

		Convey("Then snapshots are served from it", func() {
			table, err := svc.TeamSnapshot(context.Background(), model.Current(), 5)
			So(err, ShouldBeNil)
			So(table.Source, ShouldEqual, "live")
			So(table.Entries, ShouldBeEmpty)
		})
	})
}

func TestService_Snapshots(t *testing.T) {
	Convey("Given a started service over a match history", t, func() {
		ctx := context.Background()
		store := memory.New()
		_, err := store.UpsertOutcomes(ctx, history())
		So(err, ShouldBeNil)
		svc := startService(store)
		defer svc.Stop(ctx)

		Convey("When the current year is requested", func() {
			table, err := svc.TeamSnapshot(ctx, model.Current(), 10)

			Convey("Then it is live and exhibition teams are hidden", func() {
				So(err, ShouldBeNil)
				So(table.Scope, ShouldEqual, "current")
				So(table.Source, ShouldEqual, "live")
				So(table.Entries, ShouldHaveLength, 2)
				So(table.Entries[0].Team, ShouldEqual, "Sentinels")
				So(table.Entries[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When a past year has no table", func() {
			table, err := svc.TeamSnapshot(ctx, model.Year(2023), 10)

			Convey("Then it is unavailable rather than computed", func() {
				So(err, ShouldBeNil)
				So(table.Source, ShouldEqual, "unavailable")
				So(table.Entries, ShouldBeEmpty)
			})
		})

		Convey("When a name is resolved", func() {
			r, err := svc.Resolve(ctx, "  visa kru esports ")
			So(err, ShouldBeNil)
			So(r.Canonical, ShouldEqual, "KRÜ Esports")
			So(r.Exhibition, ShouldBeFalse)

			show, _ := svc.Resolve(ctx, "Team International")
			So(show.Exhibition, ShouldBeTrue)
		})

		Convey("When the limit is invalid", func() {
			_, err := svc.TeamSnapshot(ctx, model.AllTime(), 0)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_Recompute(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		store := memory.New()
		_, _ = store.UpsertOutcomes(ctx, history())
		svc := startService(store)
		defer svc.Stop(ctx)

		Convey("When a past year is recomputed", func() {
			ticket, err := svc.RequestRecompute(ctx, model.Year(2023))
			So(err, ShouldBeNil)
			So(ticket.Status, ShouldEqual, types.StatusQueued)
			So(ticket.JobID, ShouldNotBeEmpty)

			Convey("Then the year is eventually served precomputed", func() {
				So(eventually(func() bool {
					table, err := svc.TeamSnapshot(ctx, model.Year(2023), 10)
					return err == nil && table.Source == "precomputed"
				}), ShouldBeTrue)

				table, _ := svc.TeamSnapshot(ctx, model.Year(2023), 10)
				So(table.Entries, ShouldHaveLength, 4)
				So(table.Entries[0].Team, ShouldBeIn, []string{"FNATIC", "KRÜ Esports"})

				stats := svc.GetStats()
				So(stats["tables"], ShouldNotBeNil)
				So(stats["last_batch"], ShouldNotBeNil)
			})
		})

		Convey("When the current scope is requested", func() {
			ticket, err := svc.RequestRecompute(ctx, model.Current())

			Convey("Then it is keyed by the calendar year", func() {
				So(err, ShouldBeNil)
				So(ticket.Scope, ShouldEqual, "2024")
			})
		})
	})

	Convey("Given a service whose workers are busy", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		cfg.Recompute.QueueSize = 1
		cfg.Recompute.Workers = 1
		store := &slowStore{Store: memory.New(), release: make(chan struct{})}
		svc := service.New(cfg, service.WithStore(store), service.WithClock(clock))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)
		defer close(store.release)

		first, err := svc.RequestRecompute(ctx, model.AllTime())
		So(err, ShouldBeNil)

		Convey("Then a repeat request is a duplicate", func() {
			dup, err := svc.RequestRecompute(ctx, model.AllTime())
			So(err, ShouldBeNil)
			So(dup.Status, ShouldEqual, types.StatusDuplicate)
			So(dup.Since, ShouldEqual, first.Since)
		})

		Convey("Then a new scope beyond capacity is refused", func() {
			_, err := svc.RequestRecompute(ctx, model.Year(2022))
			So(errors.Is(err, types.ErrQueueFull), ShouldBeTrue)
		})
	})
}

func TestService_Cache(t *testing.T) {
	Convey("Given a service with a redis cache", t, func() {
		ctx := context.Background()
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		Reset(func() { _ = rdb.Close() })

		store := memory.New()
		_, _ = store.UpsertOutcomes(ctx, history())
		svc := startService(store, service.WithRedisClient(rdb))
		defer svc.Stop(ctx)

		Convey("When all-time is read before any batch", func() {
			table, err := svc.TeamSnapshot(ctx, model.AllTime(), 3)
			So(err, ShouldBeNil)
			So(table.Source, ShouldEqual, "live")

			Convey("Then the answer is cached", func() {
				So(mr.Exists("vctrank:snapshot:team:all:3"), ShouldBeTrue)
				So(svc.GetStats()["cache_enabled"], ShouldEqual, true)
			})

			Convey("Then a recompute invalidates it", func() {
				_, err := svc.RequestRecompute(ctx, model.AllTime())
				So(err, ShouldBeNil)
				So(eventually(func() bool {
					table, err := svc.TeamSnapshot(ctx, model.AllTime(), 3)
					return err == nil && table.Source == "precomputed"
				}), ShouldBeTrue)
			})
		})
	})
}

func TestService_Seed(t *testing.T) {
	Convey("Given a seed file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "seed.json")
		So(os.WriteFile(path, []byte(`{
			"matches": [{"match_id": "1", "team_a": "PRX", "team_b": "DRX", "team_a_score": 2, "team_b_score": 0, "sort_date": "2024-02-01"}],
			"players": {"2023": [{"player": "f0rsakeN", "team": "Paper Rex", "rating": 1575, "games_played": 30}]}
		}`), 0o600), ShouldBeNil)

		cfg := testConfig()
		cfg.Storage.Seed = path
		svc := service.New(cfg, service.WithClock(clock))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop(context.Background())

		Convey("Then seeded matches and players are served", func() {
			teams, err := svc.TeamSnapshot(context.Background(), model.Current(), 5)
			So(err, ShouldBeNil)
			So(teams.Entries[0].Team, ShouldEqual, "Paper Rex")

			players, err := svc.PlayerSnapshot(context.Background(), model.Year(2023), 5)
			So(err, ShouldBeNil)
			So(players.Source, ShouldEqual, "precomputed")
			So(players.Entries[0].Player, ShouldEqual, "f0rsakeN")
		})
	})
}

// slowStore blocks saves until release is closed.
type slowStore struct {
	repository.Store
	release chan struct{}
}

func (s *slowStore) SaveTeamRatings(ctx context.Context, key, runID string, rows []model.TeamRating) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Store.SaveTeamRatings(ctx, key, runID, rows)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
