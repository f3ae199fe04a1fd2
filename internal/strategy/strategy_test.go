package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func state(my, opp int, elapsed float64) Competitive {
	total := 100 * time.Second
	return Competitive{
		MyScore:       my,
		OpponentScore: opp,
		TotalDuration: total,
		TimeRemaining: time.Duration((1 - elapsed) * float64(total)),
	}
}

func TestPhase(t *testing.T) {
	tests := []struct {
		elapsed float64
		want    Phase
	}{
		{0.0, PhaseEarly},
		{0.24, PhaseEarly},
		{0.25, PhaseMid},
		{0.59, PhaseMid},
		{0.60, PhaseLate},
		{0.84, PhaseLate},
		{0.85, PhaseCritical},
		{1.0, PhaseCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, state(0, 0, tt.elapsed).Phase(), "elapsed %.2f", tt.elapsed)
	}
	assert.Equal(t, PhaseMid, Competitive{}.Phase(), "no clock defaults to mid")
}

func TestNextMood(t *testing.T) {
	s := NewStrategist(DefaultConfig())
	ledger := NewLedger()

	tests := []struct {
		name     string
		state    Competitive
		velocity float64
		want     Mood
	}{
		{"even game", state(10, 10, 0.3), 0, MoodBalanced},
		{"big late deficit", state(0, 20, 0.7), 0, MoodDesperate},
		{"big early deficit is only aggressive", state(0, 20, 0.1), 0, MoodAggressive},
		{"moderate deficit", state(4, 11, 0.3), 0, MoodAggressive},
		{"opponent on a streak", state(10, 10, 0.3), 1.2, MoodAggressive},
		{"comfortable lead", state(25, 10, 0.5), 0, MoodDefensive},
		{"early lead stays balanced", state(25, 10, 0.1), 0, MoodBalanced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.NextMood(tt.state, tt.velocity, ledger))
		})
	}
}

// With enough recorded games, the best-performing mood overrides an
// otherwise balanced cycle but never a forced transition.
func TestBestMoodOverride(t *testing.T) {
	s := NewStrategist(DefaultConfig())
	ledger := NewLedger()
	ledger.SeedOutcomes(MoodAggressive, 8, 7)
	ledger.SeedOutcomes(MoodBalanced, 6, 1)

	assert.Equal(t, MoodAggressive, s.NextMood(state(10, 10, 0.3), 0, ledger))
	assert.Equal(t, MoodDefensive, s.NextMood(state(25, 10, 0.5), 0, ledger),
		"a forced transition beats the statistical override")
}

func TestBestMoodNeedsEnoughGames(t *testing.T) {
	ledger := NewLedger()
	_, ok := ledger.BestMood(10)
	assert.False(t, ok)

	ledger.SeedOutcomes(MoodDefensive, 4, 4)
	_, ok = ledger.BestMood(10)
	assert.False(t, ok)

	ledger.SeedOutcomes(MoodBalanced, 6, 1)
	best, ok := ledger.BestMood(10)
	require.True(t, ok)
	assert.Equal(t, MoodDefensive, best)
}

func TestRiskTolerancePerMood(t *testing.T) {
	assert.Greater(t, MoodDesperate.RiskTolerance(), MoodAggressive.RiskTolerance())
	assert.Greater(t, MoodAggressive.RiskTolerance(), MoodBalanced.RiskTolerance())
	assert.Greater(t, MoodBalanced.RiskTolerance(), MoodDefensive.RiskTolerance())
}

func TestLedgerEligibility(t *testing.T) {
	cfg := AbilityConfig{Limit: 2, Cooldown: 10 * time.Second, Cost: 3}
	now := time.Now()
	l := NewLedger()

	assert.False(t, l.Eligible(AbilityRadar, cfg, now, 2), "cannot afford the cost")
	assert.True(t, l.Eligible(AbilityRadar, cfg, now, 3))

	l.MarkUsed(AbilityRadar, now)
	assert.False(t, l.Eligible(AbilityRadar, cfg, now.Add(5*time.Second), 10), "cooling down")
	assert.True(t, l.Eligible(AbilityRadar, cfg, now.Add(10*time.Second), 10))

	l.MarkUsed(AbilityRadar, now.Add(10*time.Second))
	assert.False(t, l.Eligible(AbilityRadar, cfg, now.Add(time.Hour), 10), "limit exhausted")
}

func TestLedgerResetKeepsMoodTallies(t *testing.T) {
	l := NewLedger()
	l.MarkUsed(AbilityFreeze, time.Now())
	l.RecordOutcome(MoodBalanced, true)

	l.Reset()

	assert.Zero(t, l.Used(AbilityFreeze))
	best, ok := l.BestMood(1)
	require.True(t, ok)
	assert.Equal(t, MoodBalanced, best)
}

func TestScoresStayInRange(t *testing.T) {
	s := NewStrategist(DefaultConfig())
	states := []Competitive{
		state(0, 100, 0.9),
		state(100, 0, 0.9),
		state(0, 0, 0.0),
	}
	for _, st := range states {
		for _, mood := range []Mood{MoodBalanced, MoodAggressive, MoodDefensive, MoodDesperate} {
			for _, haveSafe := range []bool{true, false} {
				for ab, score := range s.Scores(st, mood, haveSafe) {
					assert.GreaterOrEqual(t, score, 0.0, "%s", ab)
					assert.LessOrEqual(t, score, 100.0, "%s", ab)
				}
			}
		}
	}
}

// Stuck logic favors radar; a late-game deficit favors freeze.
func TestScoreShape(t *testing.T) {
	s := NewStrategist(DefaultConfig())

	stuck := s.Scores(state(10, 10, 0.3), MoodBalanced, false)
	moving := s.Scores(state(10, 10, 0.3), MoodBalanced, true)
	assert.Greater(t, stuck[AbilityRadar], moving[AbilityRadar])

	behind := s.Scores(state(0, 15, 0.7), MoodDesperate, true)
	even := s.Scores(state(10, 10, 0.3), MoodBalanced, true)
	assert.Greater(t, behind[AbilityFreeze], even[AbilityFreeze])
}

func TestBestCandidate(t *testing.T) {
	s := NewStrategist(DefaultConfig())
	now := time.Now()

	t.Run("nothing affordable", func(t *testing.T) {
		_, ok := s.BestCandidate(state(0, 0, 0.3), MoodBalanced, NewLedger(), true, now)
		assert.False(t, ok, "zero points cover no ability cost")
	})

	t.Run("radar when stuck", func(t *testing.T) {
		c, ok := s.BestCandidate(state(20, 20, 0.3), MoodBalanced, NewLedger(), false, now)
		require.True(t, ok)
		assert.Equal(t, AbilityRadar, c.Ability)
	})

	t.Run("exhausted abilities are skipped", func(t *testing.T) {
		ledger := NewLedger()
		for range DefaultConfig().Abilities[AbilityRadar].Limit {
			ledger.MarkUsed(AbilityRadar, now.Add(-time.Hour))
		}
		c, ok := s.BestCandidate(state(20, 20, 0.3), MoodBalanced, ledger, false, now)
		require.True(t, ok)
		assert.NotEqual(t, AbilityRadar, c.Ability)
	})
}
