// Package sqlite is a repository.Store backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver
	"github.com/pkg/errors"

	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/pkg/logger"
	"github.com/okian/vctrank/pkg/metrics"
)

const driver = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	match_id     TEXT NOT NULL PRIMARY KEY,
	tournament   TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL DEFAULT '',
	match_type   TEXT NOT NULL DEFAULT '',
	team_a       TEXT,
	team_b       TEXT,
	team_a_score INTEGER,
	team_b_score INTEGER,
	sort_date    TEXT
);
CREATE INDEX IF NOT EXISTS matches_sort_date ON matches (sort_date);
CREATE TABLE IF NOT EXISTS team_ratings (
	scope        TEXT NOT NULL,
	team         TEXT NOT NULL,
	rating       REAL NOT NULL,
	games_played INTEGER NOT NULL,
	PRIMARY KEY (scope, team)
);
CREATE TABLE IF NOT EXISTS player_ratings (
	scope        TEXT NOT NULL,
	player       TEXT NOT NULL,
	team         TEXT NOT NULL DEFAULT '',
	rating       REAL NOT NULL,
	games_played INTEGER NOT NULL,
	PRIMARY KEY (scope, player)
);
CREATE TABLE IF NOT EXISTS rating_runs (
	scope       TEXT NOT NULL,
	kind        TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	computed_at TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	PRIMARY KEY (scope, kind)
);`

// Store implements repository.Store on SQLite.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped rows.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open opens (or creates) the database at dsn and migrates the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open sqlite database")
	}
	// one writer, and :memory: databases are per connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "unable to create tables")
	}
	return s, nil
}

// Close implements repository.Store.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "unable to close database")
}

// Outcomes implements repository.Store. Rows that fail validation are
// skipped and logged.
func (s *Store) Outcomes(ctx context.Context, window model.Window) ([]model.MatchOutcome, error) {
	defer observe("outcomes", time.Now())

	query := `SELECT match_id, tournament, stage, match_type, team_a, team_b, team_a_score, team_b_score, sort_date FROM matches`
	var (
		where []string
		args  []any
	)
	if !window.Unbounded() {
		where = append(where, "sort_date IS NOT NULL")
		if !window.From.IsZero() {
			where = append(where, "sort_date >= ?")
			args = append(args, window.From.UTC().Format(repository.DateLayout))
		}
		if !window.To.IsZero() {
			where = append(where, "sort_date < ?")
			args = append(args, window.To.UTC().Format(repository.DateLayout))
		}
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordStoreError(driver, "outcomes")
		return nil, errors.Wrap(err, "unable to select matches")
	}
	defer rows.Close()

	var out []model.MatchOutcome
	for rows.Next() {
		var r repository.MatchRow
		if err := rows.Scan(&r.MatchID, &r.Tournament, &r.Stage, &r.MatchType,
			&r.TeamA, &r.TeamB, &r.TeamAScore, &r.TeamBScore, &r.SortDate); err != nil {
			metrics.RecordStoreError(driver, "outcomes")
			return nil, errors.Wrap(err, "unable to scan match")
		}
		m, err := repository.ParseMatchRow(r)
		if err != nil {
			metrics.RecordMatchSkipped("malformed_row")
			s.log.Warn(ctx, "skipping malformed match row", logger.String("match_id", r.MatchID), logger.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "unable to iterate matches")
}

// UpsertOutcomes implements repository.Store.
func (s *Store) UpsertOutcomes(ctx context.Context, outcomes []model.MatchOutcome) (int, error) {
	defer observe("upsert_outcomes", time.Now())
	if err := repository.ValidateOutcomes(outcomes); err != nil {
		return 0, err
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO matches
			(match_id, tournament, stage, match_type, team_a, team_b, team_a_score, team_b_score, sort_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "unable to prepare match insert")
		}
		defer stmt.Close()

		for _, m := range outcomes {
			r := repository.MatchRowOf(m)
			if _, err := stmt.ExecContext(ctx, r.MatchID, r.Tournament, r.Stage, r.MatchType,
				r.TeamA, r.TeamB, r.TeamAScore, r.TeamBScore, r.SortDate); err != nil {
				return errors.Wrapf(err, "unable to insert match %s", r.MatchID)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreError(driver, "upsert_outcomes")
		return 0, err
	}
	return len(outcomes), nil
}

// TeamRatings implements repository.Store.
func (s *Store) TeamRatings(ctx context.Context, key string) ([]model.TeamRating, bool, error) {
	defer observe("team_ratings", time.Now())

	ok, err := s.hasRun(ctx, key, repository.KindTeam)
	if err != nil || !ok {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT team, rating, games_played FROM team_ratings WHERE scope = ? ORDER BY rating DESC, team ASC`, key)
	if err != nil {
		metrics.RecordStoreError(driver, "team_ratings")
		return nil, false, errors.Wrap(err, "unable to select team ratings")
	}
	defer rows.Close()

	out := []model.TeamRating{}
	for rows.Next() {
		var r model.TeamRating
		if err := rows.Scan(&r.Team, &r.Rating, &r.GamesPlayed); err != nil {
			return nil, false, errors.Wrap(err, "unable to scan team rating")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.Wrap(err, "unable to iterate team ratings")
	}
	return out, true, nil
}

// PlayerRatings implements repository.Store.
func (s *Store) PlayerRatings(ctx context.Context, key string) ([]model.PlayerRating, bool, error) {
	defer observe("player_ratings", time.Now())

	ok, err := s.hasRun(ctx, key, repository.KindPlayer)
	if err != nil || !ok {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT player, team, rating, games_played FROM player_ratings WHERE scope = ? ORDER BY rating DESC, player ASC`, key)
	if err != nil {
		metrics.RecordStoreError(driver, "player_ratings")
		return nil, false, errors.Wrap(err, "unable to select player ratings")
	}
	defer rows.Close()

	out := []model.PlayerRating{}
	for rows.Next() {
		var r model.PlayerRating
		if err := rows.Scan(&r.Player, &r.Team, &r.Rating, &r.GamesPlayed); err != nil {
			return nil, false, errors.Wrap(err, "unable to scan player rating")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errors.Wrap(err, "unable to iterate player ratings")
	}
	return out, true, nil
}

// SaveTeamRatings implements repository.Store.
func (s *Store) SaveTeamRatings(ctx context.Context, key, runID string, rows []model.TeamRating) error {
	defer observe("save_team_ratings", time.Now())
	if err := repository.ValidateTeamRatings(key, rows); err != nil {
		return err
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_ratings WHERE scope = ?`, key); err != nil {
			return errors.Wrap(err, "unable to clear team ratings")
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO team_ratings (scope, team, rating, games_played) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "unable to prepare team rating insert")
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, key, r.Team, r.Rating, r.GamesPlayed); err != nil {
				return errors.Wrapf(err, "unable to insert team %s", r.Team)
			}
		}
		return recordRun(ctx, tx, key, repository.KindTeam, runID, len(rows))
	})
	if err != nil {
		metrics.RecordStoreError(driver, "save_team_ratings")
	}
	return err
}

// SavePlayerRatings implements repository.Store.
func (s *Store) SavePlayerRatings(ctx context.Context, key, runID string, rows []model.PlayerRating) error {
	defer observe("save_player_ratings", time.Now())
	if err := repository.ValidatePlayerRatings(key, rows); err != nil {
		return err
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM player_ratings WHERE scope = ?`, key); err != nil {
			return errors.Wrap(err, "unable to clear player ratings")
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO player_ratings (scope, player, team, rating, games_played) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "unable to prepare player rating insert")
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, key, r.Player, r.Team, r.Rating, r.GamesPlayed); err != nil {
				return errors.Wrapf(err, "unable to insert player %s", r.Player)
			}
		}
		return recordRun(ctx, tx, key, repository.KindPlayer, runID, len(rows))
	})
	if err != nil {
		metrics.RecordStoreError(driver, "save_player_ratings")
	}
	return err
}

// Runs implements repository.Store. Rows is the stored row count, which can
// be lower than what was saved when names repeat.
func (s *Store) Runs(ctx context.Context) ([]repository.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.scope, r.kind, r.run_id,
		CASE r.kind
			WHEN 'team' THEN (SELECT COUNT(*) FROM team_ratings t WHERE t.scope = r.scope)
			ELSE (SELECT COUNT(*) FROM player_ratings p WHERE p.scope = r.scope)
		END
		FROM rating_runs r ORDER BY r.kind DESC, r.scope ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "unable to select runs")
	}
	defer rows.Close()

	var out []repository.Run
	for rows.Next() {
		var r repository.Run
		if err := rows.Scan(&r.Key, &r.Kind, &r.RunID, &r.Rows); err != nil {
			return nil, errors.Wrap(err, "unable to scan run")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "unable to iterate runs")
}

func (s *Store) hasRun(ctx context.Context, key, kind string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rating_runs WHERE scope = ? AND kind = ?`, key, kind).Scan(&n)
	if err != nil {
		metrics.RecordStoreError(driver, "has_run")
		return false, errors.Wrap(err, "unable to look up run")
	}
	return n > 0, nil
}

func recordRun(ctx context.Context, tx *sql.Tx, key, kind, runID string, n int) error {
	_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO rating_runs (scope, kind, run_id, computed_at, row_count)
		VALUES (?, ?, ?, ?, ?)`, key, kind, runID, time.Now().UTC().Format(time.RFC3339), n)
	return errors.Wrap(err, "unable to record run")
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "unable to commit transaction")
}

func observe(op string, start time.Time) {
	metrics.RecordStoreQuery(driver, op, float64(time.Since(start).Microseconds())/1000)
}
