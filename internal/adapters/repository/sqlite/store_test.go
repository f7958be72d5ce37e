package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/domain/model"
)

func TestStore(t *testing.T) {
	Convey("Given an in-memory sqlite store", t, func() {
		ctx := context.Background()
		s, err := Open(ctx, ":memory:")
		So(err, ShouldBeNil)
		Reset(func() { _ = s.Close() })

		_, err = s.UpsertOutcomes(ctx, []model.MatchOutcome{
			{MatchID: "10", Tournament: "Masters Madrid", MatchType: "Grand Final", TeamA: "Sentinels", TeamB: "Gen.G",
				TeamAScore: model.Score(3), TeamBScore: model.Score(2), SortDate: model.Date(2024, time.March, 24)},
			{MatchID: "11", TeamA: "LOUD", TeamB: "DRX", SortDate: model.Date(2023, time.December, 31)},
			{MatchID: "12", TeamA: "FUT", TeamB: "BBL"},
		})
		So(err, ShouldBeNil)

		Convey("When reading a year window", func() {
			got, err := s.Outcomes(ctx, model.YearWindow(2024))

			Convey("Then only that year's dated matches come back", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].MatchID, ShouldEqual, "10")
				So(*got[0].TeamAScore, ShouldEqual, 3)
				So(got[0].SortDate.Equal(*model.Date(2024, time.March, 24)), ShouldBeTrue)
			})
		})

		Convey("When reading the unbounded window", func() {
			got, err := s.Outcomes(ctx, model.Window{})

			Convey("Then undated matches are included with null scores intact", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				for _, m := range got {
					if m.MatchID == "12" {
						So(m.SortDate, ShouldBeNil)
						So(m.TeamAScore, ShouldBeNil)
					}
				}
			})
		})

		Convey("When a malformed row sits in the table", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO matches (match_id, team_a, team_b, sort_date) VALUES ('13', 'EG', 'NRG', 'not-a-date')`)
			So(err, ShouldBeNil)
			got, err := s.Outcomes(ctx, model.Window{})

			Convey("Then it is skipped rather than failing the read", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
			})
		})

		Convey("When a match is upserted twice", func() {
			_, err := s.UpsertOutcomes(ctx, []model.MatchOutcome{{MatchID: "11", TeamA: "LOUD", TeamB: "DRX",
				TeamAScore: model.Score(1), TeamBScore: model.Score(2), SortDate: model.Date(2023, time.December, 31)}})
			So(err, ShouldBeNil)
			got, _ := s.Outcomes(ctx, model.YearWindow(2023))

			Convey("Then the later write wins", func() {
				So(got, ShouldHaveLength, 1)
				So(*got[0].TeamBScore, ShouldEqual, 2)
			})
		})

		Convey("When no table has been saved for a key", func() {
			rows, ok, err := s.TeamRatings(ctx, "2022")

			Convey("Then it reports absent", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(rows, ShouldBeNil)
			})
		})

		Convey("When an empty table is saved", func() {
			So(s.SaveTeamRatings(ctx, "2022", "run-0", nil), ShouldBeNil)
			rows, ok, err := s.TeamRatings(ctx, "2022")

			Convey("Then it is present but empty", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("When team and player tables are saved", func() {
			So(s.SaveTeamRatings(ctx, "all", "run-1", []model.TeamRating{
				{Team: "LOUD", Rating: 1520, GamesPlayed: 10},
				{Team: "FNATIC", Rating: 1580, GamesPlayed: 12},
				{Team: "DRX", Rating: 1520, GamesPlayed: 9},
			}), ShouldBeNil)
			So(s.SavePlayerRatings(ctx, "all", "run-1", []model.PlayerRating{
				{Player: "Chronicle", Team: "FNATIC", Rating: 1600, GamesPlayed: 12},
			}), ShouldBeNil)

			Convey("Then reads come back ranked", func() {
				rows, ok, err := s.TeamRatings(ctx, "all")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].Team, ShouldEqual, "FNATIC")
				So(rows[1].Team, ShouldEqual, "DRX")
				So(rows[2].Team, ShouldEqual, "LOUD")

				players, ok, err := s.PlayerRatings(ctx, "all")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(players[0].Team, ShouldEqual, "FNATIC")
			})

			Convey("Then a second save replaces the table", func() {
				So(s.SaveTeamRatings(ctx, "all", "run-2", []model.TeamRating{{Team: "EDG", Rating: 1610}}), ShouldBeNil)
				rows, _, _ := s.TeamRatings(ctx, "all")
				So(rows, ShouldHaveLength, 1)

				runs, err := s.Runs(ctx)
				So(err, ShouldBeNil)
				So(runs, ShouldHaveLength, 2)
				So(runs[0], ShouldResemble, repository.Run{Key: "all", Kind: repository.KindTeam, RunID: "run-2", Rows: 1})
				So(runs[1].Kind, ShouldEqual, repository.KindPlayer)
			})
		})

		Convey("When saving invalid rows", func() {
			err := s.SaveTeamRatings(ctx, "all", "run-x", []model.TeamRating{{Team: ""}})

			Convey("Then nothing is written", func() {
				So(errors.Is(err, repository.ErrInvalidRatings), ShouldBeTrue)
				_, ok, _ := s.TeamRatings(ctx, "all")
				So(ok, ShouldBeFalse)
			})
		})
	})
}
