// Package postgres is a repository.Store backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/vctrank/internal/adapters/repository"
	"github.com/okian/vctrank/internal/domain/model"
	"github.com/okian/vctrank/pkg/logger"
	"github.com/okian/vctrank/pkg/metrics"
)

const driver = "postgres"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		match_id     TEXT PRIMARY KEY,
		tournament   TEXT NOT NULL DEFAULT '',
		stage        TEXT NOT NULL DEFAULT '',
		match_type   TEXT NOT NULL DEFAULT '',
		team_a       TEXT,
		team_b       TEXT,
		team_a_score INTEGER,
		team_b_score INTEGER,
		sort_date    DATE
	)`,
	`CREATE INDEX IF NOT EXISTS matches_sort_date ON matches (sort_date)`,
	`CREATE TABLE IF NOT EXISTS team_ratings (
		scope        TEXT NOT NULL,
		team         TEXT NOT NULL,
		rating       DOUBLE PRECISION NOT NULL,
		games_played INTEGER NOT NULL,
		PRIMARY KEY (scope, team)
	)`,
	`CREATE TABLE IF NOT EXISTS player_ratings (
		scope        TEXT NOT NULL,
		player       TEXT NOT NULL,
		team         TEXT NOT NULL DEFAULT '',
		rating       DOUBLE PRECISION NOT NULL,
		games_played INTEGER NOT NULL,
		PRIMARY KEY (scope, player)
	)`,
	`CREATE TABLE IF NOT EXISTS rating_runs (
		scope       TEXT NOT NULL,
		kind        TEXT NOT NULL,
		run_id      TEXT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		row_count   INTEGER NOT NULL,
		PRIMARY KEY (scope, kind)
	)`,
}

// Store implements repository.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
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

// Open connects to dsn and applies migrations.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{pool: pool, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating: %w", err)
		}
	}
	return s, nil
}

// Close implements repository.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Outcomes implements repository.Store.
func (s *Store) Outcomes(ctx context.Context, window model.Window) ([]model.MatchOutcome, error) {
	defer observe("outcomes", time.Now())

	query := `SELECT match_id, tournament, stage, match_type, team_a, team_b, team_a_score, team_b_score,
		to_char(sort_date, 'YYYY-MM-DD') FROM matches`
	var (
		where []string
		args  []any
	)
	if !window.Unbounded() {
		where = append(where, "sort_date IS NOT NULL")
		if !window.From.IsZero() {
			args = append(args, window.From.UTC())
			where = append(where, fmt.Sprintf("sort_date >= $%d", len(args)))
		}
		if !window.To.IsZero() {
			args = append(args, window.To.UTC())
			where = append(where, fmt.Sprintf("sort_date < $%d", len(args)))
		}
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordStoreError(driver, "outcomes")
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var out []model.MatchOutcome
	for rows.Next() {
		var r repository.MatchRow
		if err := rows.Scan(&r.MatchID, &r.Tournament, &r.Stage, &r.MatchType,
			&r.TeamA, &r.TeamB, &r.TeamAScore, &r.TeamBScore, &r.SortDate); err != nil {
			metrics.RecordStoreError(driver, "outcomes")
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m, err := repository.ParseMatchRow(r)
		if err != nil {
			metrics.RecordMatchSkipped("malformed_row")
			s.log.Warn(ctx, "skipping malformed match row", logger.String("match_id", r.MatchID), logger.Error(err))
			continue
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return out, nil
}

// UpsertOutcomes implements repository.Store.
func (s *Store) UpsertOutcomes(ctx context.Context, outcomes []model.MatchOutcome) (int, error) {
	defer observe("upsert_outcomes", time.Now())
	if err := repository.ValidateOutcomes(outcomes); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, m := range outcomes {
		r := repository.MatchRowOf(m)
		var date *time.Time
		if m.SortDate != nil {
			d := m.SortDate.UTC()
			date = &d
		}
		batch.Queue(`INSERT INTO matches
			(match_id, tournament, stage, match_type, team_a, team_b, team_a_score, team_b_score, sort_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (match_id) DO UPDATE SET
				tournament = EXCLUDED.tournament,
				stage = EXCLUDED.stage,
				match_type = EXCLUDED.match_type,
				team_a = EXCLUDED.team_a,
				team_b = EXCLUDED.team_b,
				team_a_score = EXCLUDED.team_a_score,
				team_b_score = EXCLUDED.team_b_score,
				sort_date = EXCLUDED.sort_date`,
			r.MatchID, r.Tournament, r.Stage, r.MatchType, r.TeamA, r.TeamB, r.TeamAScore, r.TeamBScore, date)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		metrics.RecordStoreError(driver, "upsert_outcomes")
		return 0, fmt.Errorf("upserting matches: %w", err)
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
	rows, err := s.pool.Query(ctx,
		`SELECT team, rating, games_played FROM team_ratings WHERE scope = $1 ORDER BY rating DESC, team ASC`, key)
	if err != nil {
		metrics.RecordStoreError(driver, "team_ratings")
		return nil, false, fmt.Errorf("querying team ratings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TeamRating, error) {
		var r model.TeamRating
		err := row.Scan(&r.Team, &r.Rating, &r.GamesPlayed)
		return r, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("scanning team ratings: %w", err)
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
	rows, err := s.pool.Query(ctx,
		`SELECT player, team, rating, games_played FROM player_ratings WHERE scope = $1 ORDER BY rating DESC, player ASC`, key)
	if err != nil {
		metrics.RecordStoreError(driver, "player_ratings")
		return nil, false, fmt.Errorf("querying player ratings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PlayerRating, error) {
		var r model.PlayerRating
		err := row.Scan(&r.Player, &r.Team, &r.Rating, &r.GamesPlayed)
		return r, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("scanning player ratings: %w", err)
	}
	return out, true, nil
}

// SaveTeamRatings implements repository.Store. Rows are bulk loaded with COPY.
func (s *Store) SaveTeamRatings(ctx context.Context, key, runID string, rows []model.TeamRating) error {
	defer observe("save_team_ratings", time.Now())
	if err := repository.ValidateTeamRatings(key, rows); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(rows))
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.Team]; dup {
			continue
		}
		seen[r.Team] = struct{}{}
		data = append(data, []any{key, r.Team, r.Rating, r.GamesPlayed})
	}

	err := s.replace(ctx, key, repository.KindTeam, runID, "team_ratings",
		[]string{"scope", "team", "rating", "games_played"}, data)
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

	seen := make(map[string]struct{}, len(rows))
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.Player]; dup {
			continue
		}
		seen[r.Player] = struct{}{}
		data = append(data, []any{key, r.Player, r.Team, r.Rating, r.GamesPlayed})
	}

	err := s.replace(ctx, key, repository.KindPlayer, runID, "player_ratings",
		[]string{"scope", "player", "team", "rating", "games_played"}, data)
	if err != nil {
		metrics.RecordStoreError(driver, "save_player_ratings")
	}
	return err
}

// Runs implements repository.Store.
func (s *Store) Runs(ctx context.Context) ([]repository.Run, error) {
	rows, err := s.pool.Query(ctx, `SELECT scope, kind, run_id, row_count FROM rating_runs ORDER BY kind DESC, scope ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.Run, error) {
		var r repository.Run
		err := row.Scan(&r.Key, &r.Kind, &r.RunID, &r.Rows)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning runs: %w", err)
	}
	return out, nil
}

func (s *Store) replace(ctx context.Context, key, kind, runID, table string, columns []string, data [][]any) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE scope = $1`, key); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(data)); err != nil {
			return fmt.Errorf("copying %s: %w", table, err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO rating_runs (scope, kind, run_id, computed_at, row_count)
			VALUES ($1, $2, $3, now(), $4)
			ON CONFLICT (scope, kind) DO UPDATE SET
				run_id = EXCLUDED.run_id,
				computed_at = EXCLUDED.computed_at,
				row_count = EXCLUDED.row_count`, key, kind, runID, len(data))
		if err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		return nil
	})
}

func (s *Store) hasRun(ctx context.Context, key, kind string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rating_runs WHERE scope = $1 AND kind = $2)`, key, kind).Scan(&exists)
	if err != nil {
		metrics.RecordStoreError(driver, "has_run")
		return false, fmt.Errorf("looking up run: %w", err)
	}
	return exists, nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreQuery(driver, op, float64(time.Since(start).Microseconds())/1000)
}
