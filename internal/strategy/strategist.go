package strategy

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Strategist turns the observed competitive state into a mood and scores
// the discrete ability actions against it. It holds no game state of its
// own; the ledger and mood live in the orchestrator.
type Strategist struct {
	cfg Config
}

func NewStrategist(cfg Config) *Strategist {
	if cfg.Abilities == nil {
		cfg = DefaultConfig()
	}
	return &Strategist{cfg: cfg}
}

func (s *Strategist) Config() Config { return s.cfg }

// NextMood applies the transition rules in priority order, first match
// wins. A statistically best-performing mood (enough recorded games)
// overrides an otherwise balanced cycle.
func (s *Strategist) NextMood(state Competitive, oppVelocity float64, ledger *Ledger) Mood {
	var (
		diff  = state.Differential()
		phase = state.Phase()
		late  = phase == PhaseLate || phase == PhaseCritical
	)
	switch {
	case diff <= -s.cfg.DesperateDeficit && late:
		return MoodDesperate
	case diff <= -s.cfg.AggressiveDeficit || oppVelocity >= s.cfg.StreakVelocity:
		return MoodAggressive
	case diff >= s.cfg.DefensiveLead && phase != PhaseEarly:
		return MoodDefensive
	default:
		if best, ok := ledger.BestMood(s.cfg.MinMoodGames); ok {
			return best
		}
		return MoodBalanced
	}
}

// Scores builds the additive per-ability score in [0,100] from phase,
// mood, score differential and whether deterministic safe moves exist.
func (s *Strategist) Scores(state Competitive, mood Mood, haveSafeMoves bool) map[Ability]float64 {
	var (
		diff   = float64(state.Differential())
		phase  = state.Phase()
		scores = make(map[Ability]float64, len(s.cfg.Abilities))
	)
	for ab := range s.cfg.Abilities {
		score := 25.0

		switch ab {
		case AbilityRadar:
			// Hidden information is most valuable when logic is stuck.
			if !haveSafeMoves {
				score += 35
			}
			if mood == MoodDesperate || mood == MoodAggressive {
				score += 10
			}
		case AbilityFreeze:
			// Denial scales with how much the opponent threatens.
			if diff < 0 {
				score += minf(-diff*1.5, 30)
			}
			if phase == PhaseLate || phase == PhaseCritical {
				score += 15
			}
			if mood == MoodDesperate {
				score += 15
			}
		case AbilityShield:
			// Insurance is worth more when the bot is about to gamble.
			if !haveSafeMoves {
				score += 20
			}
			if mood == MoodDefensive {
				score += 15
			}
			if diff > 0 {
				score += minf(diff, 10)
			}
		}

		if phase == PhaseCritical {
			score += 5
		}
		scores[ab] = clampScore(score)
	}
	return scores
}

// Candidate is an ability-use proposal for the orchestrator's merge step.
type Candidate struct {
	Ability Ability
	Score   float64
	Reason  string
}

// BestCandidate picks the highest-scoring eligible ability, or nothing if
// no ability passes its gates. Ties resolve in a fixed ability order so
// runs are reproducible.
func (s *Strategist) BestCandidate(
	state Competitive, mood Mood, ledger *Ledger, haveSafeMoves bool, now time.Time,
) (Candidate, bool) {
	scores := s.Scores(state, mood, haveSafeMoves)
	var (
		best  Candidate
		found bool
	)
	for _, ab := range []Ability{AbilityRadar, AbilityFreeze, AbilityShield} {
		cfg, ok := s.cfg.Abilities[ab]
		if !ok {
			continue
		}
		if !ledger.Eligible(ab, cfg, now, state.MyScore) {
			continue
		}
		if score := scores[ab]; !found || score > best.Score {
			best = Candidate{
				Ability: ab,
				Score:   score,
				Reason:  string(mood) + " mood, " + string(state.Phase()) + " phase",
			}
			found = true
		}
	}
	if found {
		Log.WithFields(logrus.Fields{
			"ability": best.Ability, "score": best.Score, "mood": mood,
		}).Debug("ability candidate")
	}
	return best, found
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
