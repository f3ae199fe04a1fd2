// Package postgres persists the adaptive-feedback data (learned pattern
// biases and per-game summaries) in PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmkv/sweepduel/internal/pattern"
)

type Store struct {
	db *pgxpool.Pool
}

var _ pattern.Store = (*Store)(nil)

func New(ctx context.Context, dbURL string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	return &Store{db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// EnsureSchema creates the three tables on first run.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pattern_bias (
			context bigint PRIMARY KEY,
			bias    double precision NOT NULL
		);
		CREATE TABLE IF NOT EXISTS game_summary (
			game_id        bigserial PRIMARY KEY,
			won            boolean NOT NULL,
			final_mood     text NOT NULL,
			score          integer NOT NULL,
			opponent_score integer NOT NULL,
			mistakes       integer NOT NULL,
			duration_ms    bigint NOT NULL,
			finished_at    timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS mood_record (
			mood  text PRIMARY KEY,
			games integer NOT NULL,
			wins  integer NOT NULL
		);`)
	return err
}

func (s *Store) LoadBiases(ctx context.Context) (map[pattern.Context]float64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT context, bias
		FROM pattern_bias;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	biases := make(map[pattern.Context]float64)
	for rows.Next() {
		var (
			key  int64
			bias float64
		)
		if err := rows.Scan(&key, &bias); err != nil {
			return nil, err
		}
		biases[pattern.Context(key)] = bias
	}
	return biases, rows.Err()
}

func (s *Store) SaveBiases(ctx context.Context, biases map[pattern.Context]float64) error {
	batch := &pgx.Batch{}
	for key, bias := range biases {
		batch.Queue(`
			INSERT INTO pattern_bias (context, bias)
			VALUES (@context, @bias)
			ON CONFLICT (context)
			DO UPDATE SET bias = GREATEST(pattern_bias.bias, EXCLUDED.bias)`,
			pgx.NamedArgs{
				"context": int64(key),
				"bias":    bias,
			})
	}
	return s.db.SendBatch(ctx, batch).Close()
}

func (s *Store) RecordGame(ctx context.Context, sum pattern.GameSummary) error {
	if _, err := s.db.Exec(ctx, `
		INSERT INTO game_summary (
			won, final_mood, score, opponent_score, mistakes, duration_ms
		)
		VALUES (
			@won, @final_mood, @score, @opponent_score, @mistakes, @duration_ms
		)`,
		pgx.NamedArgs{
			"won":            sum.Won,
			"final_mood":     sum.FinalMood,
			"score":          sum.Score,
			"opponent_score": sum.OpponentScore,
			"mistakes":       sum.Mistakes,
			"duration_ms":    sum.Duration.Milliseconds(),
		}); err != nil {
		return err
	}

	win := 0
	if sum.Won {
		win = 1
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO mood_record (mood, games, wins)
		VALUES ($1, 1, $2)`,
		sum.FinalMood, win)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		_, err = s.db.Exec(ctx, `
			UPDATE mood_record
			SET games = games + 1, wins = wins + $2
			WHERE mood = $1`,
			sum.FinalMood, win)
	}
	return err
}

func (s *Store) MoodRecords(ctx context.Context) (map[string]pattern.MoodRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT mood, games, wins
		FROM mood_record;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make(map[string]pattern.MoodRecord)
	for rows.Next() {
		var (
			mood string
			rec  pattern.MoodRecord
		)
		if err := rows.Scan(&mood, &rec.Games, &rec.Wins); err != nil {
			return nil, err
		}
		records[mood] = rec
	}
	return records, rows.Err()
}
