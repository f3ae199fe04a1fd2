// Package redis keeps the adaptive-feedback data in Redis hashes, for
// deployments without a PostgreSQL instance.
package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/dmkv/sweepduel/internal/pattern"
)

const (
	biasKey      = "sweepduel:bias"
	moodGamesKey = "sweepduel:mood:games"
	moodWinsKey  = "sweepduel:mood:wins"
)

type Store struct {
	client *redis.Client
}

var _ pattern.Store = (*Store)(nil)

func New(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client (for testing).
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) LoadBiases(ctx context.Context) (map[pattern.Context]float64, error) {
	fields, err := s.client.HGetAll(ctx, biasKey).Result()
	if err != nil {
		return nil, err
	}
	biases := make(map[pattern.Context]float64, len(fields))
	for field, value := range fields {
		key, err := strconv.ParseUint(field, 16, 32)
		if err != nil {
			continue // foreign field, not ours
		}
		bias, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		biases[pattern.Context(key)] = bias
	}
	return biases, nil
}

func (s *Store) SaveBiases(ctx context.Context, biases map[pattern.Context]float64) error {
	if len(biases) == 0 {
		return nil
	}
	values := make([]any, 0, len(biases)*2)
	for key, bias := range biases {
		values = append(values,
			strconv.FormatUint(uint64(key), 16),
			strconv.FormatFloat(bias, 'g', -1, 64),
		)
	}
	return s.client.HSet(ctx, biasKey, values...).Err()
}

func (s *Store) RecordGame(ctx context.Context, sum pattern.GameSummary) error {
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, moodGamesKey, sum.FinalMood, 1)
	if sum.Won {
		pipe.HIncrBy(ctx, moodWinsKey, sum.FinalMood, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) MoodRecords(ctx context.Context) (map[string]pattern.MoodRecord, error) {
	games, err := s.client.HGetAll(ctx, moodGamesKey).Result()
	if err != nil {
		return nil, err
	}
	wins, err := s.client.HGetAll(ctx, moodWinsKey).Result()
	if err != nil {
		return nil, err
	}
	records := make(map[string]pattern.MoodRecord, len(games))
	for mood, g := range games {
		n, err := strconv.Atoi(g)
		if err != nil {
			continue
		}
		rec := pattern.MoodRecord{Games: n}
		if w, ok := wins[mood]; ok {
			rec.Wins, _ = strconv.Atoi(w)
		}
		records[mood] = rec
	}
	return records, nil
}
