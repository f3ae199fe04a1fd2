package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/dmkv/sweepduel/internal/pattern"
)

type StoreSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.store = NewWithClient(client)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StoreSuite) TestBiasRoundTrip() {
	in := map[pattern.Context]float64{
		0x1234abcd: 0.15,
		0:          0.3,
	}
	s.Require().NoError(s.store.SaveBiases(s.ctx, in))

	out, err := s.store.LoadBiases(s.ctx)
	s.Require().NoError(err)
	s.Equal(in, out)
}

func (s *StoreSuite) TestSaveBiasesOverwritesPerContext() {
	s.Require().NoError(s.store.SaveBiases(s.ctx, map[pattern.Context]float64{1: 0.1, 2: 0.2}))
	s.Require().NoError(s.store.SaveBiases(s.ctx, map[pattern.Context]float64{1: 0.25}))

	out, err := s.store.LoadBiases(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[pattern.Context]float64{1: 0.25, 2: 0.2}, out)
}

func (s *StoreSuite) TestSaveBiasesEmptyIsNoop() {
	s.Require().NoError(s.store.SaveBiases(s.ctx, nil))

	out, err := s.store.LoadBiases(s.ctx)
	s.Require().NoError(err)
	s.Empty(out)
}

func (s *StoreSuite) TestLoadBiasesSkipsForeignFields() {
	s.mini.HSet(biasKey, "not-hex", "0.5")
	s.mini.HSet(biasKey, "a", "not-a-float")
	s.mini.HSet(biasKey, "b", "0.2")

	out, err := s.store.LoadBiases(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[pattern.Context]float64{0xb: 0.2}, out)
}

func (s *StoreSuite) TestRecordGameTallies() {
	won := pattern.GameSummary{Won: true, FinalMood: "aggressive"}
	lost := pattern.GameSummary{Won: false, FinalMood: "aggressive"}

	s.Require().NoError(s.store.RecordGame(s.ctx, won))
	s.Require().NoError(s.store.RecordGame(s.ctx, won))
	s.Require().NoError(s.store.RecordGame(s.ctx, lost))
	s.Require().NoError(s.store.RecordGame(s.ctx, pattern.GameSummary{Won: false, FinalMood: "balanced"}))

	records, err := s.store.MoodRecords(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]pattern.MoodRecord{
		"aggressive": {Games: 3, Wins: 2},
		"balanced":   {Games: 1, Wins: 0},
	}, records)
}

func (s *StoreSuite) TestMoodRecordsEmpty() {
	records, err := s.store.MoodRecords(s.ctx)
	s.Require().NoError(err)
	s.Empty(records)
}
