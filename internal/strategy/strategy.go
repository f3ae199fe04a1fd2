// Package strategy is the strategic layer: it tracks the competitive
// mood of the bot and decides when spending a duel ability beats making a
// board move.
package strategy

import (
	"time"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Ability identifies a duel power.
type Ability string

const (
	// AbilityRadar disclosed the mine status of a small board area.
	AbilityRadar Ability = "radar"
	// AbilityFreeze suspends the opponent for a few seconds.
	AbilityFreeze Ability = "freeze"
	// AbilityShield absorbs the next mine hit.
	AbilityShield Ability = "shield"
)

// Mood is the bot's competitive posture, recomputed every think cycle.
type Mood string

const (
	MoodBalanced   Mood = "balanced"
	MoodAggressive Mood = "aggressive"
	MoodDefensive  Mood = "defensive"
	MoodDesperate  Mood = "desperate"
)

// RiskTolerance maps the mood to the maximum guess risk the orchestrator
// accepts from the probabilistic layer.
func (m Mood) RiskTolerance() float64 {
	switch m {
	case MoodAggressive:
		return 0.40
	case MoodDefensive:
		return 0.15
	case MoodDesperate:
		return 0.55
	default:
		return 0.25
	}
}

// Phase buckets the match clock.
type Phase string

const (
	PhaseEarly    Phase = "early"
	PhaseMid      Phase = "mid"
	PhaseLate     Phase = "late"
	PhaseCritical Phase = "critical"
)

// Competitive is the externally observed match state.
type Competitive struct {
	MyScore       int
	OpponentScore int
	TimeRemaining time.Duration
	TotalDuration time.Duration
}

func (c Competitive) Differential() int {
	return c.MyScore - c.OpponentScore
}

// Phase derives the match phase from the elapsed fraction of the clock.
func (c Competitive) Phase() Phase {
	if c.TotalDuration <= 0 {
		return PhaseMid
	}
	elapsed := 1 - c.TimeRemaining.Seconds()/c.TotalDuration.Seconds()
	switch {
	case elapsed < 0.25:
		return PhaseEarly
	case elapsed < 0.60:
		return PhaseMid
	case elapsed < 0.85:
		return PhaseLate
	default:
		return PhaseCritical
	}
}

// AbilityConfig is the externally supplied budget for one ability.
type AbilityConfig struct {
	Limit    int           `json:"limit"`
	Cooldown time.Duration `json:"cooldown"`
	Cost     int           `json:"cost"`
}

// Config tunes the mood transitions and scoring. The thresholds are
// empirical defaults.
type Config struct {
	Abilities map[Ability]AbilityConfig

	// DesperateDeficit together with a late/critical phase flips the bot
	// to desperate; AggressiveDeficit alone is enough for aggressive.
	DesperateDeficit  int
	AggressiveDeficit int
	// DefensiveLead flips to defensive outside the early phase.
	DefensiveLead int
	// StreakVelocity is the opponent scoring speed (points per second)
	// treated as a streak.
	StreakVelocity float64
	// MinMoodGames is how many finished games are needed before the
	// statistically best mood may override a balanced cycle.
	MinMoodGames int
}

func DefaultConfig() Config {
	return Config{
		Abilities: map[Ability]AbilityConfig{
			AbilityRadar:  {Limit: 3, Cooldown: 20 * time.Second, Cost: 3},
			AbilityFreeze: {Limit: 2, Cooldown: 30 * time.Second, Cost: 5},
			AbilityShield: {Limit: 2, Cooldown: 25 * time.Second, Cost: 4},
		},
		DesperateDeficit:  15,
		AggressiveDeficit: 6,
		DefensiveLead:     10,
		StreakVelocity:    0.8,
		MinMoodGames:      10,
	}
}

// Ledger tracks per-game ability spending plus cross-game mood outcomes.
// It is owned by the orchestrator and reset at game start.
type Ledger struct {
	used    map[Ability]int
	lastUse map[Ability]time.Time
	moods   map[Mood]*moodTally
}

type moodTally struct {
	games, wins int
}

func NewLedger() *Ledger {
	return &Ledger{
		used:    make(map[Ability]int),
		lastUse: make(map[Ability]time.Time),
		moods:   make(map[Mood]*moodTally),
	}
}

// Reset clears the per-game state. Mood tallies survive across games.
func (l *Ledger) Reset() {
	l.used = make(map[Ability]int)
	l.lastUse = make(map[Ability]time.Time)
}

func (l *Ledger) Used(ab Ability) int { return l.used[ab] }

func (l *Ledger) MarkUsed(ab Ability, now time.Time) {
	l.used[ab]++
	l.lastUse[ab] = now
}

// Eligible applies the hard gates: usage limit, cooldown, and point cost.
func (l *Ledger) Eligible(ab Ability, cfg AbilityConfig, now time.Time, points int) bool {
	if l.used[ab] >= cfg.Limit {
		return false
	}
	if last, ok := l.lastUse[ab]; ok && now.Sub(last) < cfg.Cooldown {
		return false
	}
	return points >= cfg.Cost
}

// RecordOutcome feeds a finished game into the mood statistics.
func (l *Ledger) RecordOutcome(mood Mood, won bool) {
	t, ok := l.moods[mood]
	if !ok {
		t = &moodTally{}
		l.moods[mood] = t
	}
	t.games++
	if won {
		t.wins++
	}
}

// SeedOutcomes merges persisted tallies (from the feedback store) in.
func (l *Ledger) SeedOutcomes(mood Mood, games, wins int) {
	t, ok := l.moods[mood]
	if !ok {
		t = &moodTally{}
		l.moods[mood] = t
	}
	t.games += games
	t.wins += wins
}

// BestMood returns the mood with the highest observed win rate, if at
// least minGames outcomes back it.
func (l *Ledger) BestMood(minGames int) (Mood, bool) {
	var (
		best     Mood
		bestRate = -1.0
		total    int
	)
	for mood, t := range l.moods {
		total += t.games
		rate := float64(t.wins) / float64(t.games)
		if rate > bestRate {
			best, bestRate = mood, rate
		}
	}
	if total < minGames || bestRate < 0 {
		return "", false
	}
	return best, true
}
