package bot

import (
	"fmt"

	"github.com/dmkv/sweepduel/internal/board"
	"github.com/dmkv/sweepduel/internal/strategy"
)

type ActionKind int

const (
	ActionReveal ActionKind = iota
	ActionFlag
	ActionUnflag
	ActionUseAbility
)

func (k ActionKind) String() string {
	switch k {
	case ActionReveal:
		return "reveal"
	case ActionFlag:
		return "flag"
	case ActionUnflag:
		return "unflag"
	case ActionUseAbility:
		return "ability"
	default:
		return "unknown"
	}
}

// Action is one move the bot can dispatch to its host. Pos is set for the
// cell actions, Ability for ActionUseAbility. Reason exists for logs and
// tests, never for gameplay logic.
type Action struct {
	Kind     ActionKind
	Pos      board.Position
	Ability  strategy.Ability
	Priority float64
	Reason   string
}

func (a Action) String() string {
	if a.Kind == ActionUseAbility {
		return fmt.Sprintf("%s(%s) p=%.1f", a.Kind, a.Ability, a.Priority)
	}
	return fmt.Sprintf("%s(%s) p=%.1f", a.Kind, a.Pos, a.Priority)
}

// Candidate priorities, highest wins. Ties break by insertion order, which
// follows the layer order below. The ability priority is score-dependent
// and sits between safe reveals and guesses, but may climb past safe
// reveals (never past mine flags) when boosted.
const (
	prioDisclosedFlag = 100.0
	prioProvenFlag    = 90.0
	prioAbilityCap    = 88.0
	prioUnflag        = 85.0
	prioSafeReveal    = 80.0
	prioFallback      = 1.0
)

func abilityPriority(score float64, boost float64) float64 {
	p := 20 + 0.4*score + boost
	if p > prioAbilityCap {
		return prioAbilityCap
	}
	return p
}

// guessPriority is inversely related to risk: a near-certain guess rates
// close to a safe reveal, a coin flip barely beats the fallback.
func guessPriority(risk float64) float64 {
	return 10 + 30*(1-risk)
}

// DisclosedCell is a fairness-exempt revelation: an ability told the
// engine whether Pos hides a mine.
type DisclosedCell struct {
	Pos  board.Position
	Mine bool
}

// Outcome is the host's feedback for an applied action. It is used for
// bookkeeping only; board truth always comes from the next snapshot.
type Outcome struct {
	HitMine   bool
	Revealed  int
	Disclosed []DisclosedCell
}

// Host is the excluded game layer the engine drives. Implementations must
// be synchronous and must not call back into the bot from within Apply.
type Host interface {
	Snapshot() (*board.Snapshot, error)
	Apply(Action) (Outcome, error)
	Competitive() strategy.Competitive
}
